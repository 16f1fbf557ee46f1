package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/suitepulse/suitepulse/internal/demo"
	"github.com/suitepulse/suitepulse/internal/host"
	"github.com/suitepulse/suitepulse/internal/orchestration"
	"github.com/suitepulse/suitepulse/internal/publish"
	"github.com/suitepulse/suitepulse/internal/reporting"
	"github.com/suitepulse/suitepulse/internal/runspec"
	"github.com/suitepulse/suitepulse/internal/spinner"
	"github.com/suitepulse/suitepulse/internal/transcript"
)

var (
	outputPath    string
	junitPath     string
	verbose       bool
	interpret     bool
	format        string
	transcriptDir string
	demoMode      bool
	publishRun    bool
	timeoutFlag   time.Duration
	extraArgs     []string
)

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [suite.yaml]",
		Short: "Run a test suite and stream its results",
		Long: `Run the test binary described by a suite file and stream its output.

Without an argument the suite file is located by walking up from the
current directory. Pass/fail markers, category banners and the final
count are classified live; when the worker cannot come up, a scripted
demo run plays through the same pipeline instead.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCommandE,
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output JSON file for the run outcome")
	cmd.Flags().StringVar(&junitPath, "junit", "", "Write a JUnit XML report to this path")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Echo every raw suite line while streaming")
	cmd.Flags().BoolVar(&interpret, "interpret", false, "Print a plain-language interpretation of the results")
	cmd.Flags().StringVar(&format, "format", "default", "Output format: default, markdown")
	cmd.Flags().StringVar(&transcriptDir, "transcript-dir", "", "Directory to save a compressed transcript of the run")
	cmd.Flags().BoolVar(&demoMode, "demo", false, "Skip the worker and play the scripted demo run")
	cmd.Flags().BoolVar(&publishRun, "publish", false, "Upload the outcome to the suite's blob container")
	cmd.Flags().DurationVar(&timeoutFlag, "timeout", 0, "Abort the run after this duration (overrides the suite file)")
	cmd.Flags().StringArrayVar(&extraArgs, "arg", nil, "Extra argument passed to the test binary (can be repeated)")

	return cmd
}

func runCommandE(cmd *cobra.Command, args []string) error {
	specPath := ""
	if len(args) == 1 {
		specPath = args[0]
	} else {
		cwd, err := os.Getwd()
		if err != nil {
			return err
		}
		specPath, err = runspec.Find(cwd)
		if err != nil {
			return err
		}
	}

	spec, err := runspec.Load(specPath)
	if err != nil {
		return err
	}

	// CLI arguments come after the suite file's own.
	if len(extraArgs) > 0 {
		spec.Args = append(spec.Args, extraArgs...)
	}

	timeout := spec.RunTimeout()
	if timeoutFlag > 0 {
		timeout = timeoutFlag
	}

	player, err := newScriptPlayer(spec)
	if err != nil {
		return err
	}

	ctrl, err := newSuiteController(spec, player, demoMode)
	if err != nil {
		return err
	}
	defer ctrl.Close()

	printRunHeader(spec)

	report, transcriptPath, err := executeRun(cmd.Context(), ctrl, spec.Name, timeout)
	if err != nil {
		return err
	}

	if err := emitReports(report); err != nil {
		return err
	}

	if err := runSpecReporters(spec.Reporters, report); err != nil {
		return err
	}

	if transcriptPath != "" {
		fmt.Printf("\nTranscript saved to: %s\n", transcriptPath)
	}

	if publishRun {
		if err := publishArtifacts(cmd.Context(), spec, report, transcriptPath); err != nil {
			return fmt.Errorf("publishing outcome: %w", err)
		}
	}

	// Return test failure as error so main can map it to its exit code
	if report.Failed > 0 {
		return &TestFailureError{
			Message: fmt.Sprintf("suite completed with %d of %d test(s) failing", report.Failed, report.Total),
		}
	}

	return nil
}

// emitReports prints the run in the selected format and writes any
// report files requested by flag.
func emitReports(report *reporting.RunReport) error {
	switch format {
	case "markdown":
		fmt.Print(reporting.FormatMarkdownSummary(report))
	case "default":
		printSummary(report)

		if interpret {
			fmt.Println()
			fmt.Print(reporting.FormatSummaryReport(report))
		}
	default:
		return fmt.Errorf("unknown output format: %s (supported: default, markdown)", format)
	}

	if junitPath != "" {
		if err := reporting.WriteJUnitXML(report, junitPath); err != nil {
			return fmt.Errorf("failed to write JUnit report: %w", err)
		}
		fmt.Printf("\nJUnit report saved to: %s\n", junitPath)
	}

	if outputPath != "" {
		if err := reporting.WriteJSON(report, outputPath); err != nil {
			return fmt.Errorf("failed to save output: %w", err)
		}
		fmt.Printf("\nResults saved to: %s\n", outputPath)
	}
	return nil
}

// executeRun drives one controller run to completion and builds the
// outcome document. The returned transcript path is empty unless a
// transcript was requested and saved cleanly.
func executeRun(ctx context.Context, ctrl *orchestration.Controller, suiteName string, timeout time.Duration) (*reporting.RunReport, string, error) {
	var tw *transcript.Writer
	if transcriptDir != "" {
		var err error
		tw, err = transcript.NewWriter(transcriptDir, suiteName, time.Now())
		if err != nil {
			return nil, "", fmt.Errorf("opening transcript: %w", err)
		}
		ctrl.OnProgress(newTranscriptRecorder(tw).listen)
	}

	printer := &progressPrinter{verbose: verbose}
	ctrl.OnProgress(printer.listen)

	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	outcome, runErr := ctrl.Run(runCtx)
	printer.stop()

	transcriptPath := ""
	if tw != nil {
		transcriptPath = tw.Path()
		if cerr := tw.Close(); cerr != nil {
			slog.Warn("transcript not saved cleanly", "path", transcriptPath, "error", cerr)
			transcriptPath = ""
		}
	}

	if runErr != nil {
		if errors.Is(runErr, context.DeadlineExceeded) {
			return nil, transcriptPath, fmt.Errorf("suite run exceeded its %v budget", timeout)
		}
		return nil, transcriptPath, fmt.Errorf("suite run failed: %w", runErr)
	}

	fmt.Println()
	return reporting.BuildReport(suiteName, outcome), transcriptPath, nil
}

// newScriptPlayer builds the fallback player from the suite's demo
// settings, falling back to the built-in script.
func newScriptPlayer(spec *runspec.Spec) (*demo.Runner, error) {
	script := demo.DefaultScript()
	if path := spec.ScriptPath(); path != "" {
		loaded, err := demo.LoadScript(path)
		if err != nil {
			return nil, err
		}
		script = loaded
	}
	if spec.Demo.DelayMs > 0 {
		script.DelayMs = spec.Demo.DelayMs
	}
	if spec.Demo.SuccessRate > 0 {
		script.SuccessRate = spec.Demo.SuccessRate
	}
	return demo.NewRunner(script), nil
}

// newSuiteController wires a controller to a worker subprocess obtained
// by re-executing this binary with the hidden worker subcommand.
func newSuiteController(spec *runspec.Spec, player orchestration.ScriptPlayer, forceDemo bool) (*orchestration.Controller, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("locating own executable: %w", err)
	}

	factory := func() (orchestration.Host, error) {
		h, err := host.Spawn([]string{exe, "worker"},
			host.WithReadyTimeout(spec.ReadyTimeout()),
			host.WithPollInterval(spec.PollInterval()),
		)
		if err != nil {
			return nil, err
		}
		return h, nil
	}

	opts := []orchestration.Option{
		orchestration.WithArgs(spec.Args...),
		orchestration.WithExpectedTotal(spec.ExpectedTotal),
		orchestration.WithFallback(player),
	}
	if forceDemo {
		opts = append(opts, orchestration.WithFallbackEngaged())
	}
	return orchestration.NewController(spec.BinaryPath(), factory, opts...), nil
}

func printRunHeader(spec *runspec.Spec) {
	fmt.Printf("Running suite: %s\n", spec.Name)
	fmt.Printf("Binary: %s\n", spec.BinaryPath())
	if len(spec.Args) > 0 {
		fmt.Printf("Args: %s\n", strings.Join(spec.Args, " "))
	}
	if spec.ExpectedTotal > 0 {
		fmt.Printf("Expected tests: %d\n", spec.ExpectedTotal)
	}
	if demoMode {
		fmt.Println("Mode: scripted demo (no worker)")
	}
	fmt.Println()
}

// progressPrinter renders live progress. It owns the readiness spinner:
// the spinner starts when the worker context begins loading and stops on
// the first event after that.
type progressPrinter struct {
	verbose     bool
	stopSpinner func()
}

func (p *progressPrinter) listen(event orchestration.Event) {
	if event.Type == orchestration.EventHostLoading {
		if p.stopSpinner == nil {
			p.stopSpinner = spinner.Start(os.Stdout, "Waiting for the worker to come up")
		}
		return
	}
	p.stop()

	if p.verbose {
		p.verboseEvent(event)
		return
	}
	p.simpleEvent(event)
}

// stop halts the readiness spinner, if one is running.
func (p *progressPrinter) stop() {
	if p.stopSpinner != nil {
		p.stopSpinner()
		p.stopSpinner = nil
	}
}

func (p *progressPrinter) verboseEvent(event orchestration.Event) {
	switch event.Type {
	case orchestration.EventRunStarted:
		fmt.Printf("Session %s started\n", event.SessionID)
	case orchestration.EventOutputLine:
		fmt.Println(event.Line)
	case orchestration.EventFallbackEngaged:
		fmt.Printf("⚠ Worker unavailable (%v); playing the scripted demo\n", event.Err)
	case orchestration.EventRunFinished:
		duration := time.Duration(event.DurationMs) * time.Millisecond
		fmt.Printf("Run finished in %v\n", duration)
	}
}

func (p *progressPrinter) simpleEvent(event orchestration.Event) {
	switch event.Type {
	case orchestration.EventTestResult:
		status := "✓"
		if !event.TestPassed {
			status = "✗"
		}
		fmt.Printf("%s %s %s\n", status, progressLabel(event.Current, event.Total), event.Name)
	case orchestration.EventFallbackEngaged:
		fmt.Printf("⚠ Worker unavailable (%v); playing the scripted demo\n", event.Err)
	}
}

// progressLabel formats the running position. The total renders as "?"
// until a count is announced or preset.
func progressLabel(current, total int) string {
	if total <= 0 {
		return fmt.Sprintf("[%d/?]", current)
	}
	return fmt.Sprintf("[%d/%d]", current, total)
}

// transcriptRecorder appends the raw output stream, and the lifecycle
// edges around it, to a transcript file. Write errors are remembered and
// logged once rather than spamming every line.
type transcriptRecorder struct {
	tw     *transcript.Writer
	failed bool
}

func newTranscriptRecorder(tw *transcript.Writer) *transcriptRecorder {
	return &transcriptRecorder{tw: tw}
}

func (r *transcriptRecorder) listen(event orchestration.Event) {
	if r.failed {
		return
	}

	var err error
	switch event.Type {
	case orchestration.EventOutputLine:
		err = r.tw.Line(event.Line)
	case orchestration.EventRunStarted:
		err = r.tw.Event(fmt.Sprintf("run started sid=%s fallback=%t", event.SessionID, event.Fallback))
	case orchestration.EventFallbackEngaged:
		err = r.tw.Event(fmt.Sprintf("fallback engaged: %v", event.Err))
	case orchestration.EventRunFinished:
		err = r.tw.Event(fmt.Sprintf("run finished total=%d passed=%d failed=%d", event.Total, event.Passed, event.Failed))
	case orchestration.EventRunAborted:
		err = r.tw.Event(fmt.Sprintf("run aborted: %v", event.Err))
	}
	if err != nil {
		r.failed = true
		slog.Warn("transcript write failed, capture stopped", "error", err)
	}
}

func printSummary(report *reporting.RunReport) {
	fmt.Println("=" + strings.Repeat("=", 50))
	fmt.Println(" SUITE RESULTS")
	fmt.Println("=" + strings.Repeat("=", 50))
	fmt.Println()

	mode := "worker"
	if report.Fallback {
		mode = "scripted demo"
	}

	fmt.Printf("Suite:          %s\n", report.Suite)
	fmt.Printf("Session:        %s\n", report.SessionID)
	fmt.Printf("Mode:           %s\n", mode)
	fmt.Printf("Total Tests:    %d\n", report.Total)
	fmt.Printf("Passed:         %d\n", report.Passed)
	fmt.Printf("Failed:         %d\n", report.Failed)
	fmt.Printf("Pass Rate:      %.1f%%\n", reporting.PassRate(report))

	duration := time.Duration(report.DurationMs) * time.Millisecond
	fmt.Printf("Duration:       %v\n", duration)
	fmt.Println()

	if len(report.Categories) > 0 {
		fmt.Println("-" + strings.Repeat("-", 50))
		fmt.Println(" PER-CATEGORY BREAKDOWN")
		fmt.Println("-" + strings.Repeat("-", 50))
		for _, cat := range report.Categories {
			icon := "✓"
			if cat.Failed > 0 {
				icon = "✗"
			}
			fmt.Printf("  %s %-28s %d/%d passed\n", icon, cat.Name, cat.Passed, cat.Passed+cat.Failed)
		}
		fmt.Println()
	}

	// Show failed tests
	if report.Failed > 0 {
		fmt.Println("Failed Tests:")
		listed := 0
		for _, r := range report.Results {
			if !r.Passed {
				listed++
				fmt.Printf("  - %s (%s)\n", r.Name, r.Category)
			}
		}
		if listed < report.Failed {
			fmt.Printf("  plus %d failure(s) counted only in the binary's own summary\n", report.Failed-listed)
		}
		fmt.Println()
	}
}

// publishArtifacts uploads the outcome document, and the transcript when
// one was captured, to the suite's blob container.
func publishArtifacts(ctx context.Context, spec *runspec.Spec, report *reporting.RunReport, transcriptPath string) error {
	if spec.Publish.ContainerURL == "" {
		return errors.New("the suite file has no publish.container_url")
	}

	uploader, err := publish.NewContainerUploader(spec.Publish.ContainerURL)
	if err != nil {
		return err
	}
	pub := publish.New(uploader, spec.Publish.Prefix)

	name, err := pub.Outcome(ctx, report)
	if err != nil {
		return err
	}
	fmt.Printf("Published outcome to: %s\n", name)

	if transcriptPath != "" {
		name, err = pub.File(ctx, report.SessionID, transcriptPath)
		if err != nil {
			return err
		}
		fmt.Printf("Published transcript to: %s\n", name)
	}
	return nil
}
