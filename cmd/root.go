package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/domain-intel/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "domain-intel",
	Short: "Collect and merge intelligence about a web domain",
	Long:  "Runs pluggable collectors against a domain, extracts contact, social, content and metadata, and merges every run into one session with suggested next steps.",
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
