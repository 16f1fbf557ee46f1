package reporting

import (
	"encoding/xml"
	"fmt"
	"os"
	"strconv"
	"time"
)

// JUnit XML schema types

// JUnitTestSuites is the top-level container.
type JUnitTestSuites struct {
	XMLName    xml.Name         `xml:"testsuites"`
	Tests      int              `xml:"tests,attr"`
	Failures   int              `xml:"failures,attr"`
	Errors     int              `xml:"errors,attr"`
	Time       float64          `xml:"time,attr"`
	TestSuites []JUnitTestSuite `xml:"testsuite"`
}

// JUnitTestSuite maps to one announced section of the run.
type JUnitTestSuite struct {
	XMLName    xml.Name        `xml:"testsuite"`
	Name       string          `xml:"name,attr"`
	Tests      int             `xml:"tests,attr"`
	Failures   int             `xml:"failures,attr"`
	Errors     int             `xml:"errors,attr"`
	Time       float64         `xml:"time,attr"`
	Timestamp  string          `xml:"timestamp,attr"`
	Properties []JUnitProperty `xml:"properties>property,omitempty"`
	TestCases  []JUnitTestCase `xml:"testcase"`
}

// JUnitTestCase maps to one classified test verdict.
type JUnitTestCase struct {
	XMLName   xml.Name      `xml:"testcase"`
	Name      string        `xml:"name,attr"`
	Classname string        `xml:"classname,attr"`
	Time      float64       `xml:"time,attr"`
	Failure   *JUnitFailure `xml:"failure,omitempty"`
}

// JUnitFailure represents a [FAIL] verdict.
type JUnitFailure struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Body    string `xml:",chardata"`
}

// JUnitProperty is a key-value metadata entry.
type JUnitProperty struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// ConvertToJUnit converts a RunReport to JUnit XML format. Each
// announced section becomes one testsuite, in first-seen order. The
// top-level counts carry the binary's own totals, which may exceed the
// listed cases when tests run without printing a verdict line.
func ConvertToJUnit(report *RunReport) *JUnitTestSuites {
	timestamp := report.Timestamp.Format(time.RFC3339)
	props := []JUnitProperty{
		{Name: "session", Value: report.SessionID},
		{Name: "fallback", Value: strconv.FormatBool(report.Fallback)},
	}

	suitesByName := make(map[string]*JUnitTestSuite)
	var order []string

	// Case time comes from the spacing of the elapsed stamps in stream
	// order; the first case absorbs the lead-in.
	var prevMs int64
	for _, r := range report.Results {
		caseSec := float64(r.ElapsedMs-prevMs) / 1000.0
		if caseSec < 0 {
			caseSec = 0
		}
		prevMs = r.ElapsedMs

		suite, ok := suitesByName[r.Category]
		if !ok {
			suite = &JUnitTestSuite{
				Name:       r.Category,
				Timestamp:  timestamp,
				Properties: props,
			}
			suitesByName[r.Category] = suite
			order = append(order, r.Category)
		}

		tc := JUnitTestCase{
			Name:      r.Name,
			Classname: report.Suite,
			Time:      caseSec,
		}
		if !r.Passed {
			tc.Failure = &JUnitFailure{
				Message: fmt.Sprintf("%s reported [FAIL]", r.Name),
				Type:    "TestFailure",
				Body:    fmt.Sprintf("category: %s", r.Category),
			}
			suite.Failures++
		}
		suite.Tests++
		suite.Time += caseSec
		suite.TestCases = append(suite.TestCases, tc)
	}

	out := &JUnitTestSuites{
		Tests:    report.Total,
		Failures: report.Failed,
		Time:     float64(report.DurationMs) / 1000.0,
	}
	for _, name := range order {
		out.TestSuites = append(out.TestSuites, *suitesByName[name])
	}
	return out
}

// WriteJUnitXML writes JUnit XML to the specified file path.
func WriteJUnitXML(report *RunReport, path string) error {
	suites := ConvertToJUnit(report)

	data, err := xml.MarshalIndent(suites, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JUnit XML: %w", err)
	}

	output := append([]byte(xml.Header), data...)
	return os.WriteFile(path, output, 0644)
}
