// Package main is the entry point for the Magic Amatlán backend.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/magic-amatlan/backend/internal/config"
	"github.com/magic-amatlan/backend/internal/logging"
	"github.com/magic-amatlan/backend/internal/mcptools"
)

// version is set at build time via -ldflags "-X main.version=x.y.z".
// Defaults to "dev" when not provided.
var version = "dev"

var (
	// Global flags
	configPath string
	debug      bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "amatlan",
	Short: "Magic Amatlán backend: lunar calendar and event API",
	Long: `amatlan serves the Magic Amatlán site backend.

It computes moon phases for the lunar calendar, publishes an ICS feed of
principal phases and site events, and manages events and registrations.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Allow overriding version via environment (e.g., injected by container build/runtime)
		if envVer := os.Getenv("VERSION"); envVer != "" {
			version = envVer
		}
		mcptools.Version = version

		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("debug") {
			cfg.Debug = debug
		}

		logger, err = logging.New(cfg.Debug)
		if err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.Version = version
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("AMATLAN_CONFIG"), "Path to YAML config file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(serveCmd, moonCmd, mcpCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
