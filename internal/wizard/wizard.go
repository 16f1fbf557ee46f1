// Package wizard collects the fields of a new suite.yaml through an
// interactive form and renders the file.
package wizard

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/template"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"
)

// SuiteSpec holds all fields collected during the interactive wizard.
// ScriptPath is not asked for; init fills it when it scaffolds a demo
// script next to the suite file.
type SuiteSpec struct {
	Name          string
	Binary        string
	Args          []string
	ExpectedTotal int
	WithDemo      bool
	ScriptPath    string
	Reporter      string
}

const suiteYAMLTemplate = `version: "1.0"
name: {{ .Name }}
binary: {{ .Binary }}
{{- if .Args }}
args:
{{- range .Args }}
  - {{ . }}
{{- end }}
{{- end }}
{{- if .ExpectedTotal }}
expected_total: {{ .ExpectedTotal }}
{{- end }}
{{- if .WithDemo }}

demo:
{{- if .ScriptPath }}
  script: {{ .ScriptPath }}
{{- end }}
  delay_ms: 75
  success_rate: 0.93
{{- end }}
{{- if .Reporter }}

reporters:
  - type: {{ .Reporter }}
{{- end }}
`

// RunSuiteWizard runs an interactive huh form to collect suite settings.
// If initialBinary is non-empty, it pre-populates the binary field.
func RunSuiteWizard(in io.Reader, out io.Writer, initialBinary string) (*SuiteSpec, error) {
	var (
		name     string
		binary   = initialBinary
		argsRaw  string
		totalRaw string
		withDemo = true
		reporter string
	)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Test binary").
				Description("Path to the test binary, relative to suite.yaml").
				Placeholder("bin/tudat_tests.wasm").
				Value(&binary).
				Validate(func(s string) error {
					return validateBinary(strings.TrimSpace(s))
				}),
			huh.NewInput().
				Title("Suite name").
				Description("Display name; leave empty to use the binary name").
				Placeholder("tudat-wasm-tests").
				Value(&name),
			huh.NewInput().
				Title("Extra arguments").
				Description("Comma-separated arguments passed to the binary").
				Placeholder("--verbose, --seed=7").
				Value(&argsRaw),
			huh.NewInput().
				Title("Expected test count").
				Description("Shown as the progress total until the binary announces its own").
				Placeholder("16").
				Value(&totalRaw).
				Validate(func(s string) error {
					return validateCount(strings.TrimSpace(s))
				}),
			huh.NewConfirm().
				Title("Scripted fallback").
				Description("Play a canned run when the binary cannot load?").
				Value(&withDemo),
			huh.NewSelect[string]().
				Title("Reporter").
				Options(
					huh.NewOption("none", ""),
					huh.NewOption("junit", "junit"),
					huh.NewOption("json", "json"),
					huh.NewOption("markdown", "markdown"),
				).
				Value(&reporter),
		),
	).
		WithInput(in).
		WithOutput(out)

	// Use accessible mode for non-TTY input (e.g., tests, piped input).
	if f, ok := in.(*os.File); !ok || !term.IsTerminal(int(f.Fd())) {
		form = form.WithAccessible(true)
	}

	if err := form.Run(); err != nil {
		return nil, fmt.Errorf("wizard failed: %w", err)
	}

	total := 0
	if trimmed := strings.TrimSpace(totalRaw); trimmed != "" {
		total, _ = strconv.Atoi(trimmed)
	}

	spec := &SuiteSpec{
		Name:          strings.TrimSpace(name),
		Binary:        strings.TrimSpace(binary),
		Args:          splitAndTrim(argsRaw),
		ExpectedTotal: total,
		WithDemo:      withDemo,
		Reporter:      reporter,
	}
	if spec.Name == "" {
		spec.Name = DefaultName(spec.Binary)
	}
	return spec, nil
}

// GenerateSuiteYAML renders a suite.yaml from the given spec.
func GenerateSuiteYAML(spec *SuiteSpec) (string, error) {
	tmpl, err := template.New("suiteyaml").Parse(suiteYAMLTemplate)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf strings.Builder
	if err := tmpl.Execute(&buf, spec); err != nil {
		return "", fmt.Errorf("failed to render template: %w", err)
	}
	return buf.String(), nil
}

func validateBinary(s string) error {
	if s == "" {
		return fmt.Errorf("binary path is required")
	}
	return nil
}

func validateCount(s string) error {
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return fmt.Errorf("expected a non-negative number")
	}
	return nil
}

// DefaultName derives a suite name from the binary reference: the base
// name with its extension stripped.
func DefaultName(binary string) string {
	base := binary
	if i := strings.LastIndexByte(base, '/'); i >= 0 {
		base = base[i+1:]
	}
	if i := strings.LastIndexByte(base, '.'); i > 0 {
		base = base[:i]
	}
	return base
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	var result []string
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
