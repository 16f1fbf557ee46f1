package main

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/suitepulse/suitepulse/internal/runspec"
)

var checkVerbose bool

func newCheckCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [path ...]",
		Short: "Validate suite files and what they point at",
		Long: `Validate suite.yaml files against the suite schema and check their
surroundings: the demo script they reference, the test binary, and the
local links in any markdown next to the suite file.

Directories are searched recursively for suite.yaml files; with no
arguments the current directory is searched. A missing test binary is
reported as a warning, not a failure, because a run without the binary
still works through the scripted fallback.`,
		RunE: checkCommandE,
	}

	cmd.Flags().BoolVarP(&checkVerbose, "verbose", "v", false, "Print every issue, not just the summary table")

	return cmd
}

// suiteCheck accumulates everything check found out about one suite
// file.
type suiteCheck struct {
	path   string
	name   string
	loaded bool // schema passed and the file decoded

	schemaErrs []string
	loadErr    string

	binaryMissing bool
	binaryDetail  string

	hasScript     bool
	scriptMissing bool
	scriptDetail  string

	linkIssues []linkIssue
	linksTotal int
}

// passed reports whether the file is usable as-is. A missing binary
// does not fail the check; the runtime falls back to the scripted demo.
func (c *suiteCheck) passed() bool {
	return len(c.schemaErrs) == 0 && c.loadErr == "" &&
		!c.scriptMissing && len(c.linkIssues) == 0
}

func (c *suiteCheck) displayName() string {
	if c.name != "" {
		return c.name
	}
	return c.path
}

func checkCommandE(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		args = []string{"."}
	}

	var paths []string
	for _, arg := range args {
		found, err := collectSuiteFiles(arg)
		if err != nil {
			return err
		}
		paths = append(paths, found...)
	}
	if len(paths) == 0 {
		return fmt.Errorf("no %s files found", runspec.DefaultFileName)
	}

	var checks []*suiteCheck
	failed := 0
	for _, path := range paths {
		c := checkSuiteFile(path)
		checks = append(checks, c)
		if !c.passed() {
			failed++
		}
	}

	w := cmd.OutOrStdout()
	if checkVerbose {
		for _, c := range checks {
			printCheckDetails(w, c)
		}
	}
	printCheckTable(w, checks)

	if failed > 0 {
		return fmt.Errorf("%d of %d suite file(s) failed validation", failed, len(checks))
	}
	fmt.Fprintf(w, "All %d suite file(s) passed validation\n", len(checks)) //nolint:errcheck
	return nil
}

// collectSuiteFiles resolves one check argument to suite file paths. A
// file argument is taken as-is; a directory is searched recursively.
func collectSuiteFiles(arg string) ([]string, error) {
	info, err := os.Stat(arg)
	if err != nil {
		return nil, fmt.Errorf("checking %s: %w", arg, err)
	}
	if !info.IsDir() {
		return []string{arg}, nil
	}

	var files []string
	walkErr := filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && d.Name() == runspec.DefaultFileName {
			files = append(files, path)
		}
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("searching %s: %w", arg, walkErr)
	}
	return files, nil
}

func checkSuiteFile(path string) *suiteCheck {
	c := &suiteCheck{path: path}

	errs, err := runspec.ValidateSuiteFile(path)
	if err != nil {
		c.schemaErrs = []string{err.Error()}
		return c
	}
	if len(errs) > 0 {
		c.schemaErrs = errs
		return c
	}

	spec, err := runspec.Load(path)
	if err != nil {
		c.loadErr = err.Error()
		return c
	}
	c.loaded = true
	c.name = spec.Name

	if _, err := os.Stat(spec.BinaryPath()); err != nil {
		c.binaryMissing = true
		c.binaryDetail = fmt.Sprintf("binary %s is not there; runs will use the scripted fallback", spec.Binary)
	}

	if scriptPath := spec.ScriptPath(); scriptPath != "" {
		c.hasScript = true
		if _, err := os.Stat(scriptPath); err != nil {
			c.scriptMissing = true
			c.scriptDetail = fmt.Sprintf("demo script %s does not exist", spec.Demo.Script)
		}
	}

	c.linkIssues, c.linksTotal = lintLinks(filepath.Dir(path))
	return c
}

func printCheckDetails(w io.Writer, c *suiteCheck) {
	status := "✓"
	if !c.passed() {
		status = "✗"
	}
	fmt.Fprintf(w, "%s %s\n", status, c.path) //nolint:errcheck
	for _, e := range c.schemaErrs {
		fmt.Fprintf(w, "    schema: %s\n", e) //nolint:errcheck
	}
	if c.loadErr != "" {
		fmt.Fprintf(w, "    load: %s\n", c.loadErr) //nolint:errcheck
	}
	if c.binaryMissing {
		fmt.Fprintf(w, "    warning: %s\n", c.binaryDetail) //nolint:errcheck
	}
	if c.scriptMissing {
		fmt.Fprintf(w, "    %s\n", c.scriptDetail) //nolint:errcheck
	}
	for _, li := range c.linkIssues {
		fmt.Fprintf(w, "    link in %s: %s (%s)\n", li.Source, li.Target, li.Reason) //nolint:errcheck
	}
	fmt.Fprintln(w) //nolint:errcheck
}

func printCheckTable(w io.Writer, checks []*suiteCheck) {
	const maxNameWidth = 25
	const minNameWidth = 10

	// Compute dynamic column width from the longest suite name.
	nameWidth := len("Suite")
	for _, c := range checks {
		if runeLen := utf8.RuneCountInString(c.displayName()); runeLen > nameWidth {
			nameWidth = runeLen
		}
	}
	if nameWidth > maxNameWidth {
		nameWidth = maxNameWidth
	}
	if nameWidth < minNameWidth {
		nameWidth = minNameWidth
	}

	// Fixed column widths (display columns) for emoji-safe alignment.
	const colSchema = 8
	const colBinary = 8
	const colScript = 8
	totalWidth := nameWidth + colSchema + colBinary + colScript + len("Links") + 8 // 8 = 4 gaps × 2 spaces

	fmt.Fprintf(w, "\n")                                      //nolint:errcheck
	fmt.Fprintf(w, "%s\n", strings.Repeat("═", totalWidth))   //nolint:errcheck
	fmt.Fprintf(w, " CHECK SUMMARY\n")                        //nolint:errcheck
	fmt.Fprintf(w, "%s\n\n", strings.Repeat("═", totalWidth)) //nolint:errcheck

	fmt.Fprintf(w, "%s  %s  %s  %s  %s\n", //nolint:errcheck
		padRight("Suite", nameWidth),
		padRight("Schema", colSchema),
		padRight("Binary", colBinary),
		padRight("Script", colScript),
		"Links")
	fmt.Fprintf(w, "%s\n", strings.Repeat("─", totalWidth)) //nolint:errcheck

	for _, c := range checks {
		name := truncateName(c.displayName(), nameWidth)

		schemaStatus := "✅"
		if len(c.schemaErrs) > 0 || c.loadErr != "" {
			schemaStatus = "❌"
		}

		binaryStatus := "—"
		if c.loaded {
			binaryStatus = "✅"
			if c.binaryMissing {
				binaryStatus = "⚠️ "
			}
		}

		scriptStatus := "—"
		if c.loaded && c.hasScript {
			scriptStatus = "✅"
			if c.scriptMissing {
				scriptStatus = "❌"
			}
		}

		linkStatus := "—"
		if c.loaded && c.linksTotal > 0 {
			if len(c.linkIssues) > 0 {
				linkStatus = fmt.Sprintf("❌ %d/%d", len(c.linkIssues), c.linksTotal)
			} else {
				linkStatus = fmt.Sprintf("✅ %d", c.linksTotal)
			}
		}

		fmt.Fprintf(w, "%s  %s  %s  %s  %s\n", //nolint:errcheck
			padRight(name, nameWidth),
			padRight(schemaStatus, colSchema),
			padRight(binaryStatus, colBinary),
			padRight(scriptStatus, colScript),
			linkStatus)
	}
	fmt.Fprintf(w, "\n") //nolint:errcheck
}

// truncateName shortens a name to maxLen runes, replacing the last rune with "…" if needed.
func truncateName(name string, maxLen int) string {
	runes := []rune(name)
	if len(runes) <= maxLen {
		return name
	}
	return string(runes[:maxLen-1]) + "…"
}

// padRight pads s with spaces so its terminal display width reaches width.
func padRight(s string, width int) string {
	sw := runewidth.StringWidth(s)
	if sw >= width {
		return s
	}
	return s + strings.Repeat(" ", width-sw)
}
