package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/harbour-analytics/transit-crime-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "transit-crime",
	Short: "Crime-incident and bus-route correlation pipeline",
	Long:  "Fetches police victimisation data and transit network geometry, resolves incidents to area boundaries, associates them with bus routes, and writes route-level crime statistics.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
