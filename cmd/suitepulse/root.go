package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
)

var version = "dev"

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "suitepulse",
		Short: "SuitePulse - streaming runner for native test suites",
		Long: `SuitePulse runs a compiled test binary inside a worker process,
streams its output live, and turns pass/fail markers into structured
reports.

When no worker can be started, a scripted demo run keeps the whole
pipeline exercised end to end.`,
		Version:      version,
		SilenceUsage: true,
	}

	debugLogging := cmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	cmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		configureLogging(*debugLogging)
	}

	// Add subcommands
	cmd.AddCommand(newRunCommand())
	cmd.AddCommand(newDemoCommand())
	cmd.AddCommand(newInitCommand())
	cmd.AddCommand(newCheckCommand())
	cmd.AddCommand(newTranscriptCommand())
	cmd.AddCommand(newWorkerCommand())

	return cmd
}

// configureLogging routes slog through tint on stderr. Stdout stays
// reserved for suite output and reports.
func configureLogging(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	})))
}

func execute() error {
	rootCmd := newRootCommand()
	return rootCmd.Execute()
}
