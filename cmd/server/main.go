// Command server runs the AquaGuard API.
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/aquaguard/aquaguard/internal/config"
	"github.com/aquaguard/aquaguard/pkg/logging"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "server",
		Short:   "AquaGuard water pledge API",
		Version: version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Configured again once the full config is loaded.
			logging.Setup()
		},
		SilenceUsage: true,
	}
	config.RegisterFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newSeedCmd())

	if err := rootCmd.Execute(); err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration and applies its log level.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, err
	}
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	logging.SetupWithLevel(level)
	return cfg, nil
}
