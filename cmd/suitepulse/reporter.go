package main

import (
	"fmt"
	"os"

	"github.com/go-viper/mapstructure/v2"

	"github.com/suitepulse/suitepulse/internal/reporting"
	"github.com/suitepulse/suitepulse/internal/runspec"
)

// Default artifact names for reporters configured without a path.
const (
	defaultJUnitPath    = "junit.xml"
	defaultOutcomePath  = "outcome.json"
	defaultMarkdownPath = "summary.md"
)

// runSpecReporters executes every reporter listed in the suite file.
// Relative output paths land in the working directory, not next to the
// suite file.
func runSpecReporters(reporters []runspec.ReporterConfig, report *reporting.RunReport) error {
	for _, rc := range reporters {
		if err := runReporter(rc, report); err != nil {
			return fmt.Errorf("reporter %s: %w", rc.Type, err)
		}
	}
	return nil
}

func runReporter(rc runspec.ReporterConfig, report *reporting.RunReport) error {
	switch rc.Type {
	case "junit":
		var v struct {
			Path string `mapstructure:"path"`
		}
		if err := mapstructure.Decode(rc.Options, &v); err != nil {
			return err
		}
		if v.Path == "" {
			v.Path = defaultJUnitPath
		}
		if err := reporting.WriteJUnitXML(report, v.Path); err != nil {
			return err
		}
		fmt.Printf("JUnit report saved to: %s\n", v.Path)
		return nil

	case "json":
		var v struct {
			Path string `mapstructure:"path"`
		}
		if err := mapstructure.Decode(rc.Options, &v); err != nil {
			return err
		}
		if v.Path == "" {
			v.Path = defaultOutcomePath
		}
		if err := reporting.WriteJSON(report, v.Path); err != nil {
			return err
		}
		fmt.Printf("Outcome saved to: %s\n", v.Path)
		return nil

	case "markdown":
		var v struct {
			Path string `mapstructure:"path"`
		}
		if err := mapstructure.Decode(rc.Options, &v); err != nil {
			return err
		}
		if v.Path == "" {
			v.Path = defaultMarkdownPath
		}
		summary := reporting.FormatMarkdownSummary(report)
		if err := os.WriteFile(v.Path, []byte(summary), 0644); err != nil {
			return err
		}
		fmt.Printf("Markdown summary saved to: %s\n", v.Path)
		return nil

	default:
		// The schema rejects unknown types before a run starts; this
		// guards reporters built in code.
		return fmt.Errorf("unknown reporter type: %s", rc.Type)
	}
}
