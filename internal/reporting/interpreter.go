package reporting

import (
	"fmt"
	"strings"
	"time"
)

// PassRate returns the fraction of counted tests that passed (0-1).
func PassRate(report *RunReport) float64 {
	if report.Total <= 0 {
		return 0
	}
	return float64(report.Passed) / float64(report.Total)
}

// InterpretPassRate returns a human-readable explanation of a pass rate (0-1).
func InterpretPassRate(rate float64) string {
	pct := rate * 100
	switch {
	case pct >= 100:
		return fmt.Sprintf("All tests passed (%.0f%%)", pct)
	case pct >= 80:
		return fmt.Sprintf("Most tests passed (%.0f%%)", pct)
	case pct >= 50:
		return fmt.Sprintf("About half the tests passed (%.0f%%)", pct)
	default:
		return fmt.Sprintf("Few tests passed (%.0f%%)", pct)
	}
}

// InterpretCoverage explains how the classified result list relates to the
// binary's own test count.
func InterpretCoverage(listed, reported int) string {
	switch {
	case listed == reported:
		return "Every counted test produced a verdict line."
	case listed < reported:
		return fmt.Sprintf("%d of %d counted tests produced verdict lines; the rest ran silently.", listed, reported)
	default:
		return fmt.Sprintf("%d verdict lines for %d counted tests; some checks print their own markers.", listed, reported)
	}
}

// InterpretFallback explains where the results came from.
func InterpretFallback(fallback bool) string {
	if !fallback {
		return "Results come from the real test binary."
	}
	return "Results come from the scripted fallback run. They exercise the pipeline, not the binary."
}

// FormatSummaryReport produces a full plain-language report from a RunReport.
func FormatSummaryReport(report *RunReport) string {
	var b strings.Builder

	duration := time.Duration(report.DurationMs) * time.Millisecond

	b.WriteString("=== Interpretation ===\n\n")

	if report.Total == 0 {
		b.WriteString("No tests ran.\n")
	} else {
		b.WriteString(fmt.Sprintf("Pass Rate: %s\n", InterpretPassRate(PassRate(report))))
		b.WriteString(fmt.Sprintf("Duration:  %v\n", duration))
		b.WriteString(fmt.Sprintf("Tests:     %d passed, %d failed out of %d total\n",
			report.Passed, report.Failed, report.Total))
	}
	b.WriteString(InterpretCoverage(len(report.Results), report.Total) + "\n")
	b.WriteString(InterpretFallback(report.Fallback) + "\n")

	// Per-category interpretation
	if len(report.Categories) > 0 {
		b.WriteString("\nPer-Category Interpretation:\n")
		for _, cat := range report.Categories {
			icon := "✓"
			if cat.Failed > 0 {
				icon = "✗"
			}
			b.WriteString(fmt.Sprintf("  %s %s: %d/%d passed\n",
				icon, cat.Name, cat.Passed, cat.Passed+cat.Failed))
		}
	}

	return b.String()
}
