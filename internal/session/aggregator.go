// Package session holds the live state of one run: the ordered result list,
// its per-category partition, and the running counters that feed progress
// reporting.
package session

import (
	"math"
	"time"

	"github.com/suitepulse/suitepulse/internal/scan"
)

// TestResult is one test verdict. It is created the instant a result event
// is applied and never modified afterwards; the category is whatever was
// current at classification time.
type TestResult struct {
	Name      string `json:"name"`
	Passed    bool   `json:"passed"`
	Category  string `json:"category"`
	ElapsedMs int64  `json:"elapsedMs"`
}

// Delta describes the aggregator state immediately after one event was
// applied. Index is the zero-based position of the appended result and is
// the authoritative ordering key for downstream reporting; it is -1 when
// the event appended nothing.
type Delta struct {
	Index         int
	Passed        int
	Failed        int
	ExpectedTotal int
	Result        *TestResult
}

// Aggregator consumes classified events for a single run. It is not safe
// for concurrent use; the run loop applies events one at a time, which is
// what keeps the monotonic index consistent without locking.
type Aggregator struct {
	defaultTotal int
	now          func() time.Time

	results       []TestResult
	byCategory    map[string][]TestResult
	categoryOrder []string
	passCount     int
	failCount     int
	expectedTotal int
	startedAt     time.Time
}

// NewAggregator returns an empty aggregator. defaultTotal is the expected
// total reported until the stream provides one; zero means unknown.
func NewAggregator(defaultTotal int) *Aggregator {
	a := &Aggregator{defaultTotal: defaultTotal, now: time.Now}
	a.Reset()
	return a
}

// Reset clears all state back to empty defaults and restarts the run clock.
// Callable at any time, including mid-run; resetting mid-run is how a run
// is abandoned.
func (a *Aggregator) Reset() {
	a.results = nil
	a.byCategory = make(map[string][]TestResult)
	a.categoryOrder = nil
	a.passCount = 0
	a.failCount = 0
	a.expectedTotal = a.defaultTotal
	a.startedAt = a.now()
}

// Apply folds one event into the run state. category is the tracker's value
// at classification time and is stamped onto result events. Raw and
// Category events change no counters; category bookkeeping happens when the
// stamped results arrive.
func (a *Aggregator) Apply(ev scan.Event, category string) Delta {
	switch ev := ev.(type) {
	case scan.Result:
		res := TestResult{
			Name:      ev.Name,
			Passed:    ev.Passed,
			Category:  category,
			ElapsedMs: a.now().Sub(a.startedAt).Milliseconds(),
		}
		a.results = append(a.results, res)
		if _, seen := a.byCategory[category]; !seen {
			a.categoryOrder = append(a.categoryOrder, category)
		}
		a.byCategory[category] = append(a.byCategory[category], res)
		if res.Passed {
			a.passCount++
		} else {
			a.failCount++
		}
		return Delta{
			Index:         len(a.results) - 1,
			Passed:        a.passCount,
			Failed:        a.failCount,
			ExpectedTotal: a.expectedTotal,
			Result:        &res,
		}

	case scan.Total:
		// Zero, one, or many per run; last value wins.
		a.expectedTotal = ev.Count
	}

	return Delta{
		Index:         -1,
		Passed:        a.passCount,
		Failed:        a.failCount,
		ExpectedTotal: a.expectedTotal,
	}
}

// SetExpectedTotal applies an expected-total hint that arrived outside the
// classified output stream.
func (a *Aggregator) SetExpectedTotal(count int) {
	a.expectedTotal = count
}

// Len returns the number of results so far.
func (a *Aggregator) Len() int {
	return len(a.results)
}

// PassCount returns the running pass counter.
func (a *Aggregator) PassCount() int {
	return a.passCount
}

// FailCount returns the running fail counter.
func (a *Aggregator) FailCount() int {
	return a.failCount
}

// ExpectedTotal returns the current expected-total value.
func (a *Aggregator) ExpectedTotal() int {
	return a.expectedTotal
}

// Snapshot is a copy of the aggregator's state, safe to hold after the
// aggregator is reset for the next run.
type Snapshot struct {
	Results       []TestResult            `json:"results"`
	ByCategory    map[string][]TestResult `json:"byCategory"`
	Categories    []string                `json:"categories"`
	PassCount     int                     `json:"passCount"`
	FailCount     int                     `json:"failCount"`
	ExpectedTotal int                     `json:"expectedTotal"`
	StartedAt     time.Time               `json:"startedAt"`
}

// Snapshot copies the current run state. The per-category map is always a
// partition of Results induced by each result's Category field.
func (a *Aggregator) Snapshot() Snapshot {
	snap := Snapshot{
		Results:       make([]TestResult, len(a.results)),
		ByCategory:    make(map[string][]TestResult, len(a.byCategory)),
		Categories:    make([]string, len(a.categoryOrder)),
		PassCount:     a.passCount,
		FailCount:     a.failCount,
		ExpectedTotal: a.expectedTotal,
		StartedAt:     a.startedAt,
	}
	copy(snap.Results, a.results)
	copy(snap.Categories, a.categoryOrder)
	for cat, results := range a.byCategory {
		bucket := make([]TestResult, len(results))
		copy(bucket, results)
		snap.ByCategory[cat] = bucket
	}
	return snap
}

// ProgressPercent converts a current/total pair into a whole percentage,
// rounded and clamped to [0,100]. A total of zero or less reports 0, not a
// division error.
func ProgressPercent(current, total int) int {
	if total <= 0 {
		return 0
	}
	pct := int(math.Round(float64(current) / float64(total) * 100))
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}
