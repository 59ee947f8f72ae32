package mcptools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/magic-amatlan/backend/internal/lunar"
)

// MonthTool handles the lunar_month MCP tool.
type MonthTool struct {
	env Env
}

// NewMonthTool creates a MonthTool.
func NewMonthTool(env Env) *MonthTool {
	return &MonthTool{env: env}
}

// Definition returns the MCP tool definition for lunar_month.
func (t *MonthTool) Definition() mcp.Tool {
	return mcp.NewTool("lunar_month",
		mcp.WithDescription(
			"Show the moon phase for every day of a month, in a Sunday-first weekly layout.",
		),
		mcp.WithNumber("year",
			mcp.Description("Calendar year. Defaults to the current year."),
		),
		mcp.WithNumber("month",
			mcp.Description("Month number 1-12. Defaults to the current month."),
		),
		langOption,
	)
}

// Handle processes the lunar_month tool call.
func (t *MonthTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	now := t.env.now()
	year := intArg(req, "year", now.Year())
	month := intArg(req, "month", int(now.Month()))
	if month < 1 || month > 12 {
		return mcp.NewToolResultError("month must be between 1 and 12"), nil
	}
	if year < 1 || year > 9999 {
		return mcp.NewToolResultError("year must be between 1 and 9999"), nil
	}

	cells := lunar.BuildMonthGrid(year, time.Month(month), t.env.location())
	if namer := t.env.namer(req.GetString("lang", "")); namer != nil {
		cells = lunar.LocalizeGrid(cells, namer)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## %s %d\n\n", time.Month(month), year))
	sb.WriteString("| Date | Weekday | Phase | Illumination |\n")
	sb.WriteString("|------|---------|-------|--------------|\n")
	for _, c := range cells {
		if c.IsPadding() {
			continue
		}
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %d%% |\n",
			c.Date.Format(time.DateOnly), c.Date.Weekday(), c.Phase.DisplayName, c.Phase.Illumination))
	}

	return mcp.NewToolResultText(sb.String()), nil
}
