package reporting

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suitepulse/suitepulse/internal/orchestration"
	"github.com/suitepulse/suitepulse/internal/runspec"
	"github.com/suitepulse/suitepulse/internal/session"
)

func newTestOutcome() *orchestration.Outcome {
	started := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	results := []session.TestResult{
		{Name: "Kepler equation inversion", Passed: true, Category: "PROPAGATION", ElapsedMs: 1000},
		{Name: "Two-body orbit propagation", Passed: false, Category: "PROPAGATION", ElapsedMs: 2500},
		{Name: "SPICE kernel loading", Passed: true, Category: "SPICE", ElapsedMs: 3400},
	}
	return &orchestration.Outcome{
		SessionID:  "8f14e45f-ceea-4672-950e-0c2ad2b0a387",
		Total:      3,
		Passed:     2,
		Failed:     1,
		DurationMs: 3500,
		Snapshot: session.Snapshot{
			Results: results,
			ByCategory: map[string][]session.TestResult{
				"PROPAGATION": {results[0], results[1]},
				"SPICE":       {results[2]},
			},
			Categories:    []string{"PROPAGATION", "SPICE"},
			PassCount:     2,
			FailCount:     1,
			ExpectedTotal: 3,
			StartedAt:     started,
		},
	}
}

func TestBuildReport_FromOutcome(t *testing.T) {
	outcome := newTestOutcome()
	report := BuildReport("tudat_tests", outcome)

	assert.Equal(t, "tudat_tests", report.Suite)
	assert.Equal(t, outcome.SessionID, report.SessionID)
	assert.False(t, report.Fallback)
	assert.Equal(t, outcome.Snapshot.StartedAt, report.Timestamp)
	assert.Equal(t, int64(3500), report.DurationMs)
	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 2, report.Passed)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 3, report.ExpectedTotal)
	assert.Len(t, report.Results, 3)

	// Category order follows first appearance, with per-category counts
	// recomputed from the grouped results.
	require.Len(t, report.Categories, 2)
	assert.Equal(t, "PROPAGATION", report.Categories[0].Name)
	assert.Equal(t, 1, report.Categories[0].Passed)
	assert.Equal(t, 1, report.Categories[0].Failed)
	assert.Equal(t, "SPICE", report.Categories[1].Name)
	assert.Equal(t, 1, report.Categories[1].Passed)
	assert.Equal(t, 0, report.Categories[1].Failed)
}

func TestBuildReport_EmptyRunSerializesArrays(t *testing.T) {
	outcome := &orchestration.Outcome{
		SessionID: "s-empty",
		Snapshot: session.Snapshot{
			ByCategory: map[string][]session.TestResult{},
			StartedAt:  time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC),
		},
	}

	report := BuildReport("empty", outcome)
	require.NotNil(t, report.Results)
	require.NotNil(t, report.Categories)

	data, err := json.Marshal(report)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"results":[]`)
}

func TestWriteJSON_MatchesTheOutcomeSchema(t *testing.T) {
	report := BuildReport("tudat_tests", newTestOutcome())
	dir := t.TempDir()
	path := filepath.Join(dir, "outcome.json")

	require.NoError(t, WriteJSON(report, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, runspec.ValidateOutcomeBytes(data))

	var parsed RunReport
	require.NoError(t, json.Unmarshal(data, &parsed))
	assert.Equal(t, report.SessionID, parsed.SessionID)
	assert.Equal(t, report.Results, parsed.Results)
}
