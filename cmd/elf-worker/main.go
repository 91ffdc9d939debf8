// Command elf-worker runs the indexing outbox worker loop: claim PENDING/FAILED jobs, chunk and
// embed the referenced note, upsert vector points, mark DONE or reschedule with backoff. Split
// from elfd into its own process so indexing throughput can scale independently of request
// serving, mirroring original_source/apps/elf-worker's separate binary.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/steveyegge/elf/internal/app"
	"github.com/steveyegge/elf/internal/telemetry"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "elf-worker",
	Short: "elf-worker drains the indexing outbox: chunk, embed, and upsert vectors for pending note writes.",
	RunE:  runWorker,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "Path to the service configuration document")
}

func runWorker(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, "elf-worker")
	if err != nil {
		return fmt.Errorf("elf-worker: init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(shutdownCtx)
	}()

	a, err := app.Open(ctx, configPath)
	if err != nil {
		return fmt.Errorf("elf-worker: startup: %w", err)
	}
	defer a.Close()

	fmt.Fprintf(cmd.OutOrStdout(), "elf-worker: polling indexing_outbox every %s\n", a.Config.Indexer.PollInterval)
	if err := a.Worker.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("elf-worker: run: %w", err)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
