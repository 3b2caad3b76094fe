package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/opencivicdata/civic-import/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "civic-import",
	Short: "Import scraped civic data into the canonical database",
	Long:  "Deduplicates, merges, and cross-links scraped jurisdiction, legislative, and disclosure records against the canonical entity store.",
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
