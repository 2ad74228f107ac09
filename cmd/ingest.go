package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pedira/pedira/internal/app"
	"github.com/pedira/pedira/internal/config"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Scan the documents directory once and update the index",
	Long: `Ingest walks the configured documents directory, processes every new or
changed PDF, and retires documents that were removed. Unchanged documents
are skipped. Use it for an initial bulk load or a manual reindex.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIngest()
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest() error {
	logger := newLogger()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.ValidateServe(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	sum, err := a.Pipeline.Scan(ctx)
	if err != nil {
		return fmt.Errorf("scanning documents: %w", err)
	}

	fmt.Printf("Ingestion complete: %d new, %d changed, %d unchanged, %d removed, %d failed (%d chunks)\n",
		sum.New, sum.Changed, sum.Unchanged, sum.Removed, sum.Failed, sum.Chunks)
	if sum.Failed > 0 {
		return fmt.Errorf("%d documents failed, see logs", sum.Failed)
	}
	return nil
}
