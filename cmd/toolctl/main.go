// Command toolctl runs maintenance tasks against the ToolHub database:
// migrations, seeding, spreadsheet import and export, and the overdue
// check.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"toolhub/internal/app"
	"toolhub/internal/config"
	"toolhub/internal/pkg/logger"
)

var (
	verbose bool
	timeout time.Duration

	// set by openApp, released by main
	current *app.App
	flush   func()
)

var rootCmd = &cobra.Command{
	Use:           "toolctl",
	Short:         "ToolHub maintenance tool",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// openApp loads configuration and opens the database for a subcommand
func openApp(cmd *cobra.Command) (*app.App, context.Context, context.CancelFunc, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}

	if _, flush, err = logger.Init(cfg.AppMode, verbose); err != nil {
		return nil, nil, nil, err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	current, err = app.Open(ctx, cfg)
	if err != nil {
		cancel()
		return nil, nil, nil, err
	}
	return current, ctx, cancel, nil
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "Operation timeout")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(overdueCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(exportCmd)
}

func release() {
	if current != nil {
		current.Close()
	}
	if flush != nil {
		flush()
	}
}

func main() {
	err := rootCmd.Execute()
	release()
	if err != nil {
		fmt.Fprintln(os.Stderr, "toolctl:", err)
		os.Exit(1)
	}
}
