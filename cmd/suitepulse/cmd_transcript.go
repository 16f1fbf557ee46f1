package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/suitepulse/suitepulse/internal/transcript"
)

func newTranscriptCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transcript",
		Short: "Work with saved run transcripts",
	}

	cmd.AddCommand(newTranscriptShowCommand())

	return cmd
}

func newTranscriptShowCommand() *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "show <file>",
		Short: "Replay a saved transcript",
		Long: `Print the entries of a compressed run transcript.

Each line shows its elapsed offset and the captured text; lifecycle
events are marked with an asterisk. With --raw only the captured suite
output prints, reproducing what the run streamed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return transcriptShowE(cmd.OutOrStdout(), args[0], raw)
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "Print only the captured output lines, verbatim")

	return cmd
}

func transcriptShowE(w io.Writer, path string, raw bool) error {
	entries, err := transcript.Read(path)
	if err != nil {
		return err
	}

	for _, e := range entries {
		if raw {
			if e.Kind == transcript.KindLine {
				fmt.Fprintln(w, e.Text) //nolint:errcheck
			}
			continue
		}

		marker := " "
		if e.Kind == transcript.KindEvent {
			marker = "*"
		}
		offset := time.Duration(e.ElapsedMs) * time.Millisecond
		fmt.Fprintf(w, "%10s %s %s\n", offset, marker, e.Text) //nolint:errcheck
	}
	return nil
}
