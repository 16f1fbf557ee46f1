package demo

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suitepulse/suitepulse/internal/scan"
)

func collect(t *testing.T, r *Runner) []string {
	t.Helper()
	var lines []string
	require.NoError(t, r.Play(context.Background(), func(line string) {
		lines = append(lines, line)
	}))
	return lines
}

func TestPlay_RollsVerdictsAgainstSuccessRate(t *testing.T) {
	script := Script{
		SuccessRate: 0.5,
		Steps: []Step{
			{Text: "=== Demo Tests ==="},
			{Test: "first"},
			{Test: "second"},
			{Test: "third"},
		},
	}

	r := NewRunner(script)
	rolls := []float64{0.1, 0.9, 0.49}
	r.roll = func() float64 {
		v := rolls[0]
		rolls = rolls[1:]
		return v
	}

	lines := collect(t, r)
	assert.Contains(t, lines, "[PASS] first")
	assert.Contains(t, lines, "[FAIL] second")
	assert.Contains(t, lines, "[PASS] third")
}

func TestPlay_AppendsComputedSummary(t *testing.T) {
	script := Script{
		SuccessRate: 1,
		Steps:       []Step{{Test: "only"}},
	}
	r := NewRunner(script)

	lines := collect(t, r)
	assert.Contains(t, lines, "=== Test Results ===")
	assert.Contains(t, lines, "[INFO] Tests run:    1")
	assert.Contains(t, lines, "[INFO] Tests passed: 1")
	assert.Contains(t, lines, "[INFO] Tests failed: 0")
	assert.Contains(t, lines, "*** ALL TESTS PASSED ***")

	for _, line := range lines {
		assert.False(t, strings.HasPrefix(line, "[PASS] ***"),
			"the summary verdict must not look like a test result")
	}
}

func TestPlay_FailuresFlipTheVerdictLine(t *testing.T) {
	r := NewRunner(Script{Steps: []Step{{Test: "doomed"}}})
	r.roll = func() float64 { return 0.999 }

	lines := collect(t, r)
	assert.Contains(t, lines, "[FAIL] doomed")
	assert.Contains(t, lines, "[INFO] Tests failed: 1")
	assert.Contains(t, lines, "*** SOME TESTS FAILED ***")
}

func TestPlay_TextOnlyScriptHasNoSummary(t *testing.T) {
	r := NewRunner(Script{Steps: []Step{{Text: "just narration"}}})

	lines := collect(t, r)
	assert.Equal(t, []string{"just narration"}, lines)
}

func TestPlay_StopsOnContextCancel(t *testing.T) {
	steps := make([]Step, 100)
	for i := range steps {
		steps[i] = Step{Text: "line"}
	}
	r := NewRunner(Script{DelayMs: 20, Steps: steps})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	var emitted int
	err := r.Play(ctx, func(string) { emitted++ })
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, emitted, len(steps))
}

func TestDefaultScript_SpeaksTheClassifierGrammar(t *testing.T) {
	script := DefaultScript()
	script.DelayMs = 0

	r := NewRunner(script)
	r.roll = func() float64 { return 0 }

	var results int
	var total int
	categories := map[string]bool{}
	require.NoError(t, r.Play(context.Background(), func(line string) {
		switch ev := scan.Classify(line).(type) {
		case scan.Result:
			results++
			assert.True(t, ev.Passed)
		case scan.Category:
			categories[ev.Name] = true
		case scan.Total:
			total = ev.Count
		}
	}))

	assert.Equal(t, 16, results)
	assert.Equal(t, 16, total)
	assert.True(t, categories["PROPAGATION"])
	assert.True(t, categories["SPICE"])
	assert.True(t, categories["EDGE CASE"])
}

func TestLoadScript_ReadsTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "script.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
delay_ms = 10
success_rate = 0.5

[[steps]]
text = "=== Custom Tests ==="

[[steps]]
test = "custom check"
`), 0o644))

	script, err := LoadScript(path)
	require.NoError(t, err)
	assert.Equal(t, 10, script.DelayMs)
	assert.Equal(t, 0.5, script.SuccessRate)
	require.Len(t, script.Steps, 2)
	assert.Equal(t, "=== Custom Tests ===", script.Steps[0].Text)
	assert.Equal(t, "custom check", script.Steps[1].Test)
}

func TestLoadScript_RejectsBadInput(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadScript(filepath.Join(dir, "missing.toml"))
	assert.ErrorContains(t, err, "reading script")

	empty := filepath.Join(dir, "empty.toml")
	require.NoError(t, os.WriteFile(empty, []byte("delay_ms = 5\n"), 0o644))
	_, err = LoadScript(empty)
	assert.ErrorContains(t, err, "no steps")

	badRate := filepath.Join(dir, "rate.toml")
	require.NoError(t, os.WriteFile(badRate, []byte("success_rate = 1.5\n\n[[steps]]\ntest = \"x\"\n"), 0o644))
	_, err = LoadScript(badRate)
	assert.ErrorContains(t, err, "not in [0,1]")
}
