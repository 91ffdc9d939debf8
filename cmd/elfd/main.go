// Command elfd is the long-running service process: it bootstraps the relational schema and
// vector collection, wires the write/search orchestration layer, and then idles until signaled
// to stop. It intentionally does not speak HTTP or MCP itself (an explicit non-goal of the core
// — see SPEC_FULL.md §1); a front-end process embeds this binary's packages directly the way
// elfctl does for its admin subcommands, rather than this process exposing a wire protocol.
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
	Use:   "elfd",
	Short: "elfd runs the agent memory service's core: schema bootstrap, collection setup, and orchestration wiring.",
	RunE:  runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "Path to the service configuration document")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, "elfd")
	if err != nil {
		return fmt.Errorf("elfd: init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(shutdownCtx)
	}()

	a, err := app.Open(ctx, configPath)
	if err != nil {
		return fmt.Errorf("elfd: startup: %w", err)
	}
	defer a.Close()

	fmt.Fprintf(cmd.OutOrStdout(), "elfd: ready (tenant-scoped core wired: writegate, search, admin rebuild)\n")
	<-ctx.Done()
	fmt.Fprintf(cmd.OutOrStdout(), "elfd: shutting down\n")
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
