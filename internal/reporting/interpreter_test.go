package reporting

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInterpretPassRate(t *testing.T) {
	tests := []struct {
		name string
		rate float64
		want string
	}{
		{"perfect", 1.0, "All tests passed (100%)"},
		{"most", 0.93, "Most tests passed (93%)"},
		{"half", 0.5, "About half the tests passed (50%)"},
		{"few", 0.2, "Few tests passed (20%)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InterpretPassRate(tt.rate))
		})
	}
}

func TestPassRate(t *testing.T) {
	report := newTestReport()
	assert.InDelta(t, 2.0/3.0, PassRate(report), 1e-9)

	// A run with no counted tests has no meaningful rate.
	assert.Zero(t, PassRate(&RunReport{}))
}

func TestInterpretCoverage(t *testing.T) {
	assert.Equal(t, "Every counted test produced a verdict line.", InterpretCoverage(3, 3))
	assert.Contains(t, InterpretCoverage(3, 5), "3 of 5 counted tests")
	assert.Contains(t, InterpretCoverage(5, 3), "5 verdict lines for 3 counted tests")
}

func TestInterpretFallback(t *testing.T) {
	assert.Contains(t, InterpretFallback(false), "real test binary")
	assert.Contains(t, InterpretFallback(true), "scripted fallback")
}

func TestFormatSummaryReport(t *testing.T) {
	report := newTestReport()
	out := FormatSummaryReport(report)

	assert.Contains(t, out, "=== Interpretation ===")
	assert.Contains(t, out, "About half the tests passed (67%)")
	assert.Contains(t, out, "2 passed, 1 failed out of 3 total")
	assert.Contains(t, out, "Every counted test produced a verdict line.")
	assert.Contains(t, out, "real test binary")
	assert.Contains(t, out, "✗ PROPAGATION: 1/2 passed")
	assert.Contains(t, out, "✓ SPICE: 1/1 passed")
}

func TestFormatSummaryReport_EmptyRun(t *testing.T) {
	out := FormatSummaryReport(&RunReport{Suite: "empty"})
	assert.Contains(t, out, "No tests ran.")
}
