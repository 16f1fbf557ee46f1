// Package scan turns the test binary's raw output lines into typed events.
// The binary offers no schema guarantees, so classification is total: every
// line maps to exactly one event shape (or to nothing, for blank lines) and
// never fails.
package scan

import (
	"strconv"
	"strings"
)

// Event is one classified output line. The concrete types form a closed set;
// consumers dispatch with a type switch.
type Event interface {
	isEvent()
}

// Result is a single test verdict line.
type Result struct {
	Name   string
	Passed bool
}

// Category is a section header line. It changes the category stamped onto
// subsequent results.
type Category struct {
	Name string
}

// Total is an expected-test-count hint.
type Total struct {
	Count int
}

// Raw is any line that matched no known shape. It is forwarded for display
// only and never aggregated.
type Raw struct {
	Text string
}

func (Result) isEvent()   {}
func (Category) isEvent() {}
func (Total) isEvent()    {}
func (Raw) isEvent()      {}

const (
	passMarker = "[PASS]"
	failMarker = "[FAIL]"
)

// totalPhrases are the count-of-tests phrasings the known binaries emit.
// Longer phrases come first so "total tests:" is not shadowed by "total:".
var totalPhrases = []string{"total tests:", "tests run:", "total:"}

// Classify maps one line of output to an event. It returns nil for lines
// that are empty or whitespace-only; those produce no event at all.
//
// Precedence: pass/fail markers, then category headers, then total phrases,
// then Raw. A total phrase with no parsable integer degrades to Raw rather
// than an error.
func Classify(line string) Event {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return nil
	}

	switch {
	case strings.HasPrefix(trimmed, passMarker):
		return Result{Name: strings.TrimSpace(trimmed[len(passMarker):]), Passed: true}
	case strings.HasPrefix(trimmed, failMarker):
		return Result{Name: strings.TrimSpace(trimmed[len(failMarker):]), Passed: false}
	}

	if name, ok := categoryName(trimmed); ok {
		return Category{Name: name}
	}
	if count, ok := totalCount(trimmed); ok {
		return Total{Count: count}
	}

	return Raw{Text: line}
}

// HasTotalPhrase reports whether the line contains one of the known
// count-of-tests phrases, whether or not a count could be parsed from it.
// Callers use it to notice malformed total lines that degraded to Raw.
func HasTotalPhrase(line string) bool {
	lower := strings.ToLower(line)
	for _, phrase := range totalPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// categoryName recognizes header lines framed by runs of '=' on both ends,
// like "=== Unit Conversions Tests ===". The delimiters are stripped and a
// trailing "Tests" word is dropped, so the returned name reads as a plain
// category label.
func categoryName(line string) (string, bool) {
	if !strings.HasPrefix(line, "==") || !strings.HasSuffix(line, "==") {
		return "", false
	}
	inner := strings.TrimSpace(strings.Trim(line, "="))
	if inner == "" {
		return "", false
	}
	return trimTestsSuffix(inner), true
}

func trimTestsSuffix(name string) string {
	if i := strings.LastIndexByte(name, ' '); i > 0 && strings.EqualFold(name[i+1:], "tests") {
		return strings.TrimSpace(name[:i])
	}
	return name
}

// totalCount looks for a count-of-tests phrase followed by an integer.
func totalCount(line string) (int, bool) {
	lower := strings.ToLower(line)
	for _, phrase := range totalPhrases {
		i := strings.Index(lower, phrase)
		if i < 0 {
			continue
		}
		fields := strings.Fields(line[i+len(phrase):])
		if len(fields) == 0 {
			continue
		}
		count, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}
		return count, true
	}
	return 0, false
}
