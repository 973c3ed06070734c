package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/incident-evidence/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "incident-evidence",
	Short: "Incident evidence engine for emergency call transcripts",
	Long:  "Ingests transcript chunks, extracts probabilistic claims, merges them into per-incident state, and clusters related reports together.",
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
