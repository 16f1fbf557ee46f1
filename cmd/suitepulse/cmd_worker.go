package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/suitepulse/suitepulse/internal/worker"
)

// newWorkerCommand is the entry point suitepulse re-executes itself
// with to obtain a worker process. The worker speaks the framed wire
// protocol on stdin/stdout, so nothing else may touch stdout here.
func newWorkerCommand() *cobra.Command {
	return &cobra.Command{
		Use:    "worker",
		Short:  "Serve the execution worker protocol on stdin/stdout",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return worker.Serve(cmd.Context(), os.Stdin, os.Stdout)
		},
	}
}
