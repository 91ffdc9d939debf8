// Command elfctl is the admin CLI: list/search/rebuild subcommands calling straight into the
// core packages, no HTTP hop, mirroring how cmd/bd's subcommands call straight into
// internal/storage rather than going through a server process.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/steveyegge/elf/internal/app"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "elfctl",
	Short: "elfctl is the admin CLI for the agent memory service: list, search, and rebuild.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "Path to the service configuration document")
	rootCmd.AddCommand(listCmd, searchCmd, rebuildCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openApp(cmd *cobra.Command) (*app.App, func(), error) {
	a, err := app.Open(cmd.Context(), configPath)
	if err != nil {
		return nil, nil, err
	}
	return a, func() { _ = a.Close() }, nil
}
