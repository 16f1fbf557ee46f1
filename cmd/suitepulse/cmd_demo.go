package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/suitepulse/suitepulse/internal/demo"
	"github.com/suitepulse/suitepulse/internal/orchestration"
)

var (
	demoScript  string
	demoDelayMs int
	demoRate    float64
	demoName    string
)

func newDemoCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Play a scripted run through the full pipeline",
		Long: `Play a canned test run without starting a worker.

Scripted lines go through the same classification, aggregation and
reporting pipeline live binary output feeds, with each test's pass or
fail rolled fresh on every play. Useful for demos and for exercising
reporters without the real suite at hand.`,
		Args: cobra.NoArgs,
		RunE: demoCommandE,
	}

	cmd.Flags().StringVar(&demoScript, "script", "", "Play this TOML script instead of the built-in one")
	cmd.Flags().IntVar(&demoDelayMs, "delay", 0, "Milliseconds between scripted lines (overrides the script)")
	cmd.Flags().Float64Var(&demoRate, "rate", 0, "Pass probability for scripted tests (overrides the script)")
	cmd.Flags().StringVar(&demoName, "name", "demo", "Suite name stamped on the outcome")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Echo every scripted line while streaming")
	cmd.Flags().BoolVar(&interpret, "interpret", false, "Print a plain-language interpretation of the results")
	cmd.Flags().StringVar(&format, "format", "default", "Output format: default, markdown")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output JSON file for the run outcome")
	cmd.Flags().StringVar(&junitPath, "junit", "", "Write a JUnit XML report to this path")

	return cmd
}

func demoCommandE(cmd *cobra.Command, args []string) error {
	script := demo.DefaultScript()
	if demoScript != "" {
		loaded, err := demo.LoadScript(demoScript)
		if err != nil {
			return err
		}
		script = loaded
	}
	if demoDelayMs > 0 {
		script.DelayMs = demoDelayMs
	}
	if demoRate > 0 {
		if demoRate > 1 {
			return fmt.Errorf("--rate %v is not in [0,1]", demoRate)
		}
		script.SuccessRate = demoRate
	}

	// The factory is never invoked: the controller starts with the
	// fallback already engaged.
	factory := func() (orchestration.Host, error) {
		return nil, errors.New("demo runs have no worker")
	}
	ctrl := orchestration.NewController(demoName, factory,
		orchestration.WithFallback(demo.NewRunner(script)),
		orchestration.WithFallbackEngaged(),
	)
	defer ctrl.Close()

	fmt.Printf("Playing demo suite: %s\n\n", demoName)

	report, _, err := executeRun(cmd.Context(), ctrl, demoName, 0)
	if err != nil {
		return err
	}

	if err := emitReports(report); err != nil {
		return err
	}

	if report.Failed > 0 {
		return &TestFailureError{
			Message: fmt.Sprintf("demo run completed with %d of %d test(s) failing", report.Failed, report.Total),
		}
	}

	return nil
}
