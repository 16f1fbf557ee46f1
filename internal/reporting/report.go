// Package reporting turns a finished run into the artifacts other
// tooling consumes: a JSON outcome document, JUnit XML, and markdown
// summaries.
package reporting

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/suitepulse/suitepulse/internal/orchestration"
	"github.com/suitepulse/suitepulse/internal/session"
)

// CategoryReport groups the results of one announced section.
type CategoryReport struct {
	Name    string               `json:"name"`
	Passed  int                  `json:"passed"`
	Failed  int                  `json:"failed"`
	Results []session.TestResult `json:"results"`
}

// RunReport is the outcome document for one finished run. Total,
// Passed and Failed carry the binary's own accounting; Results and
// Categories carry what the output stream showed, and the two can
// disagree when a test runs without printing a verdict line.
type RunReport struct {
	Suite         string               `json:"suite"`
	SessionID     string               `json:"sessionId"`
	Fallback      bool                 `json:"fallback"`
	Timestamp     time.Time            `json:"timestamp"`
	DurationMs    int64                `json:"durationMs"`
	Total         int                  `json:"total"`
	Passed        int                  `json:"passed"`
	Failed        int                  `json:"failed"`
	ExpectedTotal int                  `json:"expectedTotal"`
	Results       []session.TestResult `json:"results"`
	Categories    []CategoryReport     `json:"categories"`
}

// BuildReport assembles the outcome document from a finished run.
func BuildReport(suiteName string, outcome *orchestration.Outcome) *RunReport {
	snap := outcome.Snapshot

	report := &RunReport{
		Suite:         suiteName,
		SessionID:     outcome.SessionID,
		Fallback:      outcome.Fallback,
		Timestamp:     snap.StartedAt,
		DurationMs:    outcome.DurationMs,
		Total:         outcome.Total,
		Passed:        outcome.Passed,
		Failed:        outcome.Failed,
		ExpectedTotal: snap.ExpectedTotal,
		Results:       snap.Results,
	}

	for _, name := range snap.Categories {
		cat := CategoryReport{Name: name, Results: snap.ByCategory[name]}
		for _, r := range cat.Results {
			if r.Passed {
				cat.Passed++
			} else {
				cat.Failed++
			}
		}
		report.Categories = append(report.Categories, cat)
	}

	// A run with no classified results still serializes arrays, not null.
	if report.Results == nil {
		report.Results = []session.TestResult{}
	}
	if report.Categories == nil {
		report.Categories = []CategoryReport{}
	}
	return report
}

// WriteJSON writes the outcome document to the specified file path.
func WriteJSON(report *RunReport, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling outcome JSON: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
