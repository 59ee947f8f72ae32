package main

import (
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/magic-amatlan/backend/internal/locale"
	"github.com/magic-amatlan/backend/internal/mcptools"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the lunar tools over MCP stdio",
	Long: `Runs an MCP server on stdin/stdout exposing moon_phase, lunar_upcoming and
lunar_month. Logs go to stderr so they do not interfere with the transport.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		catalog, err := locale.New(logger)
		if err != nil {
			return err
		}

		s := mcptools.NewServer(mcptools.Env{
			Catalog:     catalog,
			Location:    cfg.Location(),
			MaxResults:  cfg.Lunar.MaxResults,
			HorizonDays: cfg.Lunar.HorizonDays,
		})

		logger.Info("serving MCP over stdio", zap.String("version", mcptools.Version))
		return server.ServeStdio(s)
	},
}
