package mcptools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/magic-amatlan/backend/internal/lunar"
)

// UpcomingTool handles the lunar_upcoming MCP tool.
type UpcomingTool struct {
	env Env
}

// NewUpcomingTool creates an UpcomingTool.
func NewUpcomingTool(env Env) *UpcomingTool {
	return &UpcomingTool{env: env}
}

// Definition returns the MCP tool definition for lunar_upcoming.
func (t *UpcomingTool) Definition() mcp.Tool {
	return mcp.NewTool("lunar_upcoming",
		mcp.WithDescription(
			"List the next principal moon phases (new, first quarter, full, last quarter) "+
				"after a date, one entry per phase.",
		),
		mcp.WithString("from",
			mcp.Description("Start date, RFC 3339 or YYYY-MM-DD. The scan begins the day after. Defaults to today."),
		),
		mcp.WithNumber("max_results",
			mcp.Description("Maximum number of phases to return (1-16). Default: 4"),
		),
		mcp.WithNumber("horizon_days",
			mcp.Description("Number of days to scan (1-366). Default: 60"),
		),
		langOption,
	)
}

// Handle processes the lunar_upcoming tool call.
func (t *UpcomingTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	from, err := t.env.dateArg(req, "from")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	defMax := t.env.MaxResults
	if defMax <= 0 {
		defMax = lunar.DefaultMaxResults
	}
	defHorizon := t.env.HorizonDays
	if defHorizon <= 0 {
		defHorizon = lunar.DefaultHorizonDays
	}
	maxResults := intArg(req, "max_results", defMax)
	if maxResults < 1 || maxResults > 16 {
		return mcp.NewToolResultError("max_results must be between 1 and 16"), nil
	}
	horizon := intArg(req, "horizon_days", defHorizon)
	if horizon < 1 || horizon > 366 {
		return mcp.NewToolResultError("horizon_days must be between 1 and 366"), nil
	}

	namer := t.env.namer(req.GetString("lang", ""))
	onsets := lunar.UpcomingPrincipalPhases(from, maxResults, horizon)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Principal phases after %s\n\n", from.Format(time.DateOnly)))
	if len(onsets) == 0 {
		sb.WriteString(fmt.Sprintf("No principal phase begins within %d days.\n", horizon))
		return mcp.NewToolResultText(sb.String()), nil
	}
	for _, e := range onsets {
		sb.WriteString(fmt.Sprintf("- **%s**: %s (%s)\n",
			e.Date.Format(time.DateOnly), t.env.phaseName(namer, e.Phase), e.Phase.ID()))
	}

	return mcp.NewToolResultText(sb.String()), nil
}
