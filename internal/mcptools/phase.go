package mcptools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/magic-amatlan/backend/internal/lunar"
)

// PhaseTool handles the moon_phase MCP tool.
type PhaseTool struct {
	env Env
}

// NewPhaseTool creates a PhaseTool.
func NewPhaseTool(env Env) *PhaseTool {
	return &PhaseTool{env: env}
}

// Definition returns the MCP tool definition for moon_phase.
func (t *PhaseTool) Definition() mcp.Tool {
	return mcp.NewTool("moon_phase",
		mcp.WithDescription(
			"Get the moon phase, illumination and age at a date. "+
				"Uses a fixed synodic month anchored on the 2000-01-06 new moon.",
		),
		mcp.WithString("date",
			mcp.Description("RFC 3339 timestamp or YYYY-MM-DD date. Defaults to now."),
		),
		langOption,
	)
}

// Handle processes the moon_phase tool call.
func (t *PhaseTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	at, err := t.env.dateArg(req, "date")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	d := lunar.ComputePhase(at).Localized(t.env.namer(req.GetString("lang", "")))

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## %s\n\n", d.DisplayName))
	sb.WriteString(fmt.Sprintf("- **Date**: %s\n", at.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("- **Phase**: %s\n", d.Phase.ID()))
	sb.WriteString(fmt.Sprintf("- **Illumination**: %d%%\n", d.Illumination))
	sb.WriteString(fmt.Sprintf("- **Age**: %.2f days\n", d.AgeDays))
	if d.Description != "" {
		sb.WriteString("\n" + d.Description + "\n")
	}

	return mcp.NewToolResultText(sb.String()), nil
}
