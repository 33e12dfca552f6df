package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/conductorhq/conductor/internal/config"
	"github.com/conductorhq/conductor/internal/storage"
)

var (
	cfg   *config.Config
	store storage.Storage

	configPath string
	dbPath     string
)

var rootCmd = &cobra.Command{
	Use:   "conductor",
	Short: "Autonomous task orchestrator for LLM-backed engineering work",
	Long: `Conductor queues natural-language engineering tasks, dispatches them
to an LLM agent one at a time, enforces approval gates, and retries
failures with classified context.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if dbPath != "" {
			cfg.Database = dbPath
		}

		store, err = storage.NewStorage(cmd.Context(), &storage.Config{Path: cfg.Database})
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if store != nil {
			store.Close()
		}
	},
}

func main() {
	ctx := context.Background()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default .conductor/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database file (overrides config)")
}
