package reporting

import (
	"fmt"
	"strings"
	"time"

	"github.com/suitepulse/suitepulse/internal/session"
)

// formatDuration formats a duration in a consistent, human-readable way.
// This ensures stable output regardless of Go version changes.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return d.String()
}

// FormatMarkdownSummary formats a RunReport as a markdown comment for a
// PR or CI job summary.
func FormatMarkdownSummary(report *RunReport) string {
	var b strings.Builder

	duration := time.Duration(report.DurationMs) * time.Millisecond

	b.WriteString("## 🧪 Suite Results\n\n")

	// Overall status badge
	statusIcon := "✅ Passed"
	if report.Failed > 0 {
		statusIcon = "❌ Failed"
	}

	b.WriteString(fmt.Sprintf("**Status:** %s | **Tests:** %d | **Duration:** %s\n\n",
		statusIcon, report.Total, formatDuration(duration)))

	// Summary stats
	b.WriteString(fmt.Sprintf("- **Passed:** %d\n", report.Passed))
	b.WriteString(fmt.Sprintf("- **Failed:** %d\n", report.Failed))
	if report.ExpectedTotal > 0 && report.ExpectedTotal != report.Total {
		b.WriteString(fmt.Sprintf("- **Announced:** %d tests\n", report.ExpectedTotal))
	}
	if report.Fallback {
		b.WriteString("- **Mode:** scripted fallback, the real binary was unavailable\n")
	}
	b.WriteString("\n")

	// Per-category breakdown table
	if len(report.Categories) > 0 {
		b.WriteString("### Category Results\n\n")
		b.WriteString("| Category | Tests | Passed | Failed | Status |\n")
		b.WriteString("|----------|-------|--------|--------|--------|\n")

		for _, cat := range report.Categories {
			icon := "✅"
			if cat.Failed > 0 {
				icon = "❌"
			}
			b.WriteString(fmt.Sprintf("| %s | %d | %d | %d | %s |\n",
				cat.Name, len(cat.Results), cat.Passed, cat.Failed, icon))
		}
		b.WriteString("\n")
	}

	// Failed test details
	var failed []session.TestResult
	for _, r := range report.Results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	if len(failed) > 0 {
		b.WriteString("### Failed Tests\n\n")
		for _, r := range failed {
			b.WriteString(fmt.Sprintf("- ❌ **%s** (%s)\n", r.Name, r.Category))
		}
		if report.Failed > len(failed) {
			b.WriteString(fmt.Sprintf("\n%d more failures appear only in the binary's own summary.\n",
				report.Failed-len(failed)))
		}
		b.WriteString("\n")
	}

	// Footer with metadata
	b.WriteString("---\n\n")
	b.WriteString(fmt.Sprintf("**Suite:** %s | **Session:** %s\n",
		report.Suite, report.SessionID))

	return b.String()
}
