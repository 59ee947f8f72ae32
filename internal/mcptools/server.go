package mcptools

import (
	"github.com/mark3labs/mcp-go/server"
)

// Version is set at build time via ldflags.
var Version = "dev"

// NewServer creates an MCP server with every lunar tool registered.
func NewServer(env Env) *server.MCPServer {
	s := server.NewMCPServer(
		"magic-amatlan-lunar",
		Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(
			"Moon phase tools for Magic Amatlán. Dates are interpreted in the site's timezone "+
				"and names can be returned in English or Spanish via the lang argument.",
		),
	)

	phaseTool := NewPhaseTool(env)
	s.AddTool(phaseTool.Definition(), phaseTool.Handle)

	upcomingTool := NewUpcomingTool(env)
	s.AddTool(upcomingTool.Definition(), upcomingTool.Handle)

	monthTool := NewMonthTool(env)
	s.AddTool(monthTool.Definition(), monthTool.Handle)

	return s
}
