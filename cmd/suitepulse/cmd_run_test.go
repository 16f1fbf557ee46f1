package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suitepulse/suitepulse/internal/orchestration"
	"github.com/suitepulse/suitepulse/internal/runspec"
	"github.com/suitepulse/suitepulse/internal/transcript"
)

// resetRunGlobals resets the package-level flag vars to their defaults so
// prior tests don't leak.
func resetRunGlobals() {
	outputPath = ""
	junitPath = ""
	verbose = false
	interpret = false
	format = "default"
	transcriptDir = ""
	demoMode = false
	publishRun = false
	timeoutFlag = 0
	extraArgs = nil
}

// passingScript plays three deterministic passes: success_rate 1.0 makes
// every roll land below the threshold.
const passingScript = `delay_ms = 1
success_rate = 1.0

[[steps]]
text = "=== Unit Conversion Tests ==="

[[steps]]
test = "Astronomical unit round trip"

[[steps]]
test = "Degrees to radians round trip"

[[steps]]
test = "Julian day conversion"
`

// failingScript carries its verdicts as literal text lines, so the
// outcome is one pass and one fail on every play.
const failingScript = `delay_ms = 1

[[steps]]
text = "=== Propagation Tests ==="

[[steps]]
text = "[PASS] Two-body orbit propagation"

[[steps]]
text = "[FAIL] CR3BP propagation"
`

// createSuiteFixture writes a suite.yaml and its demo script into a temp
// dir and returns the suite file path. Runs against it must use --demo;
// the binary it names does not exist.
func createSuiteFixture(t *testing.T, script string) string {
	t.Helper()
	dir := t.TempDir()

	spec := `version: "1.0"
name: fixture-suite
binary: bin/tudat_tests.wasm
expected_total: 2
demo:
  script: script.toml
  delay_ms: 1
`
	specPath := filepath.Join(dir, "suite.yaml")
	require.NoError(t, os.WriteFile(specPath, []byte(spec), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "script.toml"), []byte(script), 0o644))
	return specPath
}

// ---------------------------------------------------------------------------
// Argument validation
// ---------------------------------------------------------------------------

func TestRunCommand_RejectsTwoArgs(t *testing.T) {
	resetRunGlobals()

	cmd := newRunCommand()
	cmd.SetArgs([]string{"a.yaml", "b.yaml"})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	err := cmd.Execute()
	assert.Error(t, err)
}

// ---------------------------------------------------------------------------
// Flag parsing
// ---------------------------------------------------------------------------

func TestRunCommand_FlagsParsed(t *testing.T) {
	cmd := newRunCommand()
	require.NoError(t, cmd.ParseFlags([]string{
		"--output", "out.json",
		"--junit", "report.xml",
		"--verbose",
		"--format", "markdown",
		"--transcript-dir", "transcripts",
		"--demo",
		"--timeout", "30s",
		"--arg", "--filter=orbit",
		"--arg", "--seed=7",
	}))

	val, err := cmd.Flags().GetString("output")
	require.NoError(t, err)
	assert.Equal(t, "out.json", val)

	val, err = cmd.Flags().GetString("junit")
	require.NoError(t, err)
	assert.Equal(t, "report.xml", val)

	boolVal, err := cmd.Flags().GetBool("verbose")
	require.NoError(t, err)
	assert.True(t, boolVal)

	val, err = cmd.Flags().GetString("format")
	require.NoError(t, err)
	assert.Equal(t, "markdown", val)

	val, err = cmd.Flags().GetString("transcript-dir")
	require.NoError(t, err)
	assert.Equal(t, "transcripts", val)

	boolVal, err = cmd.Flags().GetBool("demo")
	require.NoError(t, err)
	assert.True(t, boolVal)

	dur, err := cmd.Flags().GetDuration("timeout")
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, dur)

	vals, err := cmd.Flags().GetStringArray("arg")
	require.NoError(t, err)
	assert.Equal(t, []string{"--filter=orbit", "--seed=7"}, vals)
}

func TestRunCommand_ShortFlags(t *testing.T) {
	cmd := newRunCommand()
	require.NoError(t, cmd.ParseFlags([]string{"-o", "out.json", "-v"}))

	val, err := cmd.Flags().GetString("output")
	require.NoError(t, err)
	assert.Equal(t, "out.json", val)

	boolVal, err := cmd.Flags().GetBool("verbose")
	require.NoError(t, err)
	assert.True(t, boolVal)
}

// ---------------------------------------------------------------------------
// Spec loading errors
// ---------------------------------------------------------------------------

func TestRunCommand_MissingSpecFile(t *testing.T) {
	resetRunGlobals()

	cmd := newRunCommand()
	cmd.SetArgs([]string{filepath.Join(t.TempDir(), "does-not-exist.yaml")})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading suite spec")
}

func TestRunCommand_SpecFailsSchema(t *testing.T) {
	resetRunGlobals()

	// No binary field, which the schema requires.
	specPath := filepath.Join(t.TempDir(), "suite.yaml")
	require.NoError(t, os.WriteFile(specPath, []byte("name: broken\n"), 0o644))

	cmd := newRunCommand()
	cmd.SetArgs([]string{specPath})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match the suite schema")

	var testFailureErr *TestFailureError
	assert.False(t, errors.As(err, &testFailureErr), "expected config error, not TestFailureError")
}

// ---------------------------------------------------------------------------
// Demo-mode runs through the full pipeline
// ---------------------------------------------------------------------------

func TestRunCommand_DemoRunWritesReports(t *testing.T) {
	resetRunGlobals()

	specPath := createSuiteFixture(t, passingScript)
	outFile := filepath.Join(t.TempDir(), "outcome.json")
	junitFile := filepath.Join(t.TempDir(), "junit.xml")

	cmd := newRunCommand()
	cmd.SetArgs([]string{specPath, "--demo", "-o", outFile, "--junit", junitFile})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	require.NoError(t, cmd.Execute())

	data, err := os.ReadFile(outFile)
	require.NoError(t, err)
	assert.Empty(t, runspec.ValidateOutcomeBytes(data), "outcome should satisfy its schema")

	var result map[string]any
	require.NoError(t, json.Unmarshal(data, &result))
	assert.Equal(t, "fixture-suite", result["suite"])
	assert.Equal(t, true, result["fallback"])
	assert.Equal(t, float64(3), result["total"])
	assert.Equal(t, float64(3), result["passed"])
	assert.Equal(t, float64(0), result["failed"])

	junitData, err := os.ReadFile(junitFile)
	require.NoError(t, err)
	assert.Contains(t, string(junitData), "<testsuites")
	assert.Contains(t, string(junitData), `tests="3"`)
	assert.Contains(t, string(junitData), "Unit Conversion")
}

func TestRunCommand_DemoRunFailureIsTestFailureError(t *testing.T) {
	resetRunGlobals()

	specPath := createSuiteFixture(t, failingScript)

	cmd := newRunCommand()
	cmd.SetArgs([]string{specPath, "--demo"})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	err := cmd.Execute()
	require.Error(t, err)

	var testFailureErr *TestFailureError
	assert.True(t, errors.As(err, &testFailureErr), "expected TestFailureError type")
	assert.Contains(t, err.Error(), "suite completed with 1 of 2 test(s) failing")
}

func TestRunCommand_UnknownFormat(t *testing.T) {
	resetRunGlobals()

	specPath := createSuiteFixture(t, passingScript)

	cmd := newRunCommand()
	cmd.SetArgs([]string{specPath, "--demo", "--format", "yaml"})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output format: yaml")
}

func TestRunCommand_TranscriptSaved(t *testing.T) {
	resetRunGlobals()

	specPath := createSuiteFixture(t, passingScript)
	tdir := t.TempDir()

	cmd := newRunCommand()
	cmd.SetArgs([]string{specPath, "--demo", "--transcript-dir", tdir})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	require.NoError(t, cmd.Execute())

	matches, err := filepath.Glob(filepath.Join(tdir, "*.jsonl.zst"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	entries, err := transcript.Read(matches[0])
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	assert.Equal(t, transcript.KindEvent, entries[0].Kind)
	assert.Contains(t, entries[0].Text, "run started")
	assert.Contains(t, entries[0].Text, "fallback=true")

	var sawPass bool
	for _, e := range entries {
		if e.Kind == transcript.KindLine && e.Text == "[PASS] Astronomical unit round trip" {
			sawPass = true
		}
	}
	assert.True(t, sawPass, "transcript should carry the raw output lines")

	last := entries[len(entries)-1]
	assert.Equal(t, transcript.KindEvent, last.Kind)
	assert.Equal(t, "run finished total=3 passed=3 failed=0", last.Text)
}

func TestRunCommand_SpecReportersRun(t *testing.T) {
	resetRunGlobals()

	dir := t.TempDir()
	outFile := filepath.Join(t.TempDir(), "reporter-outcome.json")
	mdFile := filepath.Join(t.TempDir(), "summary.md")

	spec := fmt.Sprintf(`version: "1.0"
name: fixture-suite
binary: bin/tudat_tests.wasm
demo:
  script: script.toml
  delay_ms: 1
reporters:
  - type: json
    options:
      path: %q
  - type: markdown
    options:
      path: %q
`, outFile, mdFile)
	specPath := filepath.Join(dir, "suite.yaml")
	require.NoError(t, os.WriteFile(specPath, []byte(spec), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "script.toml"), []byte(passingScript), 0o644))

	cmd := newRunCommand()
	cmd.SetArgs([]string{specPath, "--demo"})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	require.NoError(t, cmd.Execute())

	data, err := os.ReadFile(outFile)
	require.NoError(t, err)
	assert.Empty(t, runspec.ValidateOutcomeBytes(data))

	md, err := os.ReadFile(mdFile)
	require.NoError(t, err)
	assert.Contains(t, string(md), "Suite Results")
}

// ---------------------------------------------------------------------------
// Progress rendering helpers
// ---------------------------------------------------------------------------

func TestProgressLabel(t *testing.T) {
	tests := []struct {
		current int
		total   int
		want    string
	}{
		{1, 20, "[1/20]"},
		{5, 0, "[5/?]"},
		{3, -1, "[3/?]"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, progressLabel(tt.current, tt.total))
	}
}

// ---------------------------------------------------------------------------
// Transcript recorder
// ---------------------------------------------------------------------------

func TestTranscriptRecorder_CapturesLinesAndLifecycle(t *testing.T) {
	dir := t.TempDir()
	tw, err := transcript.NewWriter(dir, "recorder-test", time.Now())
	require.NoError(t, err)

	rec := newTranscriptRecorder(tw)
	rec.listen(orchestration.Event{Type: orchestration.EventRunStarted, SessionID: "sid-1", Fallback: false})
	rec.listen(orchestration.Event{Type: orchestration.EventOutputLine, Line: "[PASS] alpha"})
	rec.listen(orchestration.Event{Type: orchestration.EventTestResult, Name: "alpha", TestPassed: true})
	rec.listen(orchestration.Event{Type: orchestration.EventRunFinished, Total: 1, Passed: 1, Failed: 0})
	require.NoError(t, tw.Close())

	entries, err := transcript.Read(tw.Path())
	require.NoError(t, err)
	require.Len(t, entries, 3, "test result events are not recorded, their output lines are")

	assert.Equal(t, "run started sid=sid-1 fallback=false", entries[0].Text)
	assert.Equal(t, transcript.KindLine, entries[1].Kind)
	assert.Equal(t, "[PASS] alpha", entries[1].Text)
	assert.Equal(t, "run finished total=1 passed=1 failed=0", entries[2].Text)
}
