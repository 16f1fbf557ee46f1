package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/suitepulse/suitepulse/internal/wizard"
)

// exampleDemoScript is the scripted fallback scaffolded next to a new
// suite file. It plays when the binary cannot load, and on demand via
// the demo command.
const exampleDemoScript = `# Scripted fallback for this suite. Played when the test binary cannot
# load, and on demand with "suitepulse demo --script demo.toml".
delay_ms = 75
success_rate = 0.93

[[steps]]
text = "=== Example Suite ==="

[[steps]]
test = "Numbers still add up"

[[steps]]
test = "Strings compare equal to themselves"

[[steps]]
text = ""

[[steps]]
text = "=== EDGE CASES ==="

[[steps]]
test = "Empty input stays empty"
`

func newInitCommand() *cobra.Command {
	var (
		interactive bool
		binary      string
		name        string
		total       int
	)

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new suite definition",
		Long: `Initialize a directory with a suite.yaml, a demo script and a README.

Use --interactive to answer a short form instead of taking the flag
values. If no directory is specified, the current directory is used.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return initCommandE(cmd, args, interactive, binary, name, total)
		},
	}

	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Run the guided suite setup form")
	cmd.Flags().StringVar(&binary, "binary", "bin/tudat_tests.wasm", "Test binary the suite runs")
	cmd.Flags().StringVar(&name, "name", "", "Suite display name (default: binary base name)")
	cmd.Flags().IntVar(&total, "expected-total", 0, "Expected test count before the binary announces one")

	return cmd
}

func initCommandE(cmd *cobra.Command, args []string, interactive bool, binary, name string, total int) error {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}

	// Create the root directory if it doesn't exist
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	var spec *wizard.SuiteSpec
	if interactive {
		collected, err := wizard.RunSuiteWizard(cmd.InOrStdin(), cmd.OutOrStdout(), binary)
		if err != nil {
			return err
		}
		spec = collected
	} else {
		spec = &wizard.SuiteSpec{
			Name:          name,
			Binary:        binary,
			ExpectedTotal: total,
			WithDemo:      true,
		}
		if spec.Name == "" {
			spec.Name = wizard.DefaultName(spec.Binary)
		}
	}
	if spec.WithDemo {
		spec.ScriptPath = "demo.toml"
	}

	content, err := wizard.GenerateSuiteYAML(spec)
	if err != nil {
		return err
	}

	specPath := filepath.Join(dir, "suite.yaml")
	if err := os.WriteFile(specPath, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write suite.yaml: %w", err)
	}

	created := []string{specPath}

	if spec.WithDemo {
		scriptPath := filepath.Join(dir, "demo.toml")
		if err := os.WriteFile(scriptPath, []byte(exampleDemoScript), 0o644); err != nil {
			return fmt.Errorf("failed to write demo script: %w", err)
		}
		created = append(created, scriptPath)
	}

	readmePath := filepath.Join(dir, "README.md")
	if err := os.WriteFile(readmePath, []byte(initReadme(spec)), 0o644); err != nil {
		return fmt.Errorf("failed to write README.md: %w", err)
	}
	created = append(created, readmePath)

	// Print summary
	fmt.Fprintln(cmd.OutOrStdout(), "Initialized suite:") //nolint:errcheck
	for _, path := range created {
		fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", path) //nolint:errcheck
	}

	return nil
}

func initReadme(spec *wizard.SuiteSpec) string {
	readme := fmt.Sprintf(`# %s

Run the suite from this directory:

    suitepulse run

- [suite.yaml](suite.yaml) describes the test binary and how to run it
`, spec.Name)
	if spec.WithDemo {
		readme += "- [demo.toml](demo.toml) scripts the fallback played when the binary is unavailable\n"
	}
	return readme
}
