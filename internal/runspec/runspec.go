// Package runspec loads and validates suite.yaml, the file that tells
// suitepulse which test binary to run and how to treat its output.
package runspec

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultFileName is the suite definition file name Find looks for.
const DefaultFileName = "suite.yaml"

// SpecVersion is the only suite file format version this build reads.
const SpecVersion = "1.0"

// Defaults applied by New. Keep these in sync with the descriptions in
// suite.schema.json.
const (
	DefaultReadyTimeoutSec = 60
	DefaultPollIntervalMs  = 100
	DefaultRunTimeoutSec   = 600
)

// maxSearchDepth bounds how far up the directory tree Find walks.
const maxSearchDepth = 10

// DemoConfig tunes the scripted fallback run.
type DemoConfig struct {
	// Script points at a TOML script file; empty selects the built-in
	// script.
	Script      string  `yaml:"script,omitempty"`
	DelayMs     int     `yaml:"delay_ms,omitempty"`
	SuccessRate float64 `yaml:"success_rate,omitempty"`
}

// ReporterConfig selects one reporter to run after the suite finishes.
// Options are opaque here; each reporter decodes its own.
type ReporterConfig struct {
	Type    string         `yaml:"type"`
	Options map[string]any `yaml:"options,omitempty"`
}

// PublishConfig points at the blob container run artifacts upload to.
type PublishConfig struct {
	ContainerURL string `yaml:"container_url,omitempty"`
	Prefix       string `yaml:"prefix,omitempty"`
}

// Spec is one suite definition, decoded from suite.yaml with defaults
// filled in.
type Spec struct {
	Version         string           `yaml:"version,omitempty"`
	Name            string           `yaml:"name,omitempty"`
	Binary          string           `yaml:"binary"`
	Args            []string         `yaml:"args,omitempty"`
	ExpectedTotal   int              `yaml:"expected_total,omitempty"`
	ReadyTimeoutSec int              `yaml:"ready_timeout,omitempty"`
	PollIntervalMs  int              `yaml:"poll_interval_ms,omitempty"`
	RunTimeoutSec   int              `yaml:"run_timeout,omitempty"`
	Demo            DemoConfig       `yaml:"demo,omitempty"`
	Reporters       []ReporterConfig `yaml:"reporters,omitempty"`
	Publish         PublishConfig    `yaml:"publish,omitempty"`

	// Dir is the directory the spec was loaded from. Relative paths in
	// the spec resolve against it. Empty for specs built in memory.
	Dir string `yaml:"-"`
}

// New returns a Spec with every default populated.
func New() *Spec {
	return &Spec{
		Version:         SpecVersion,
		ReadyTimeoutSec: DefaultReadyTimeoutSec,
		PollIntervalMs:  DefaultPollIntervalMs,
		RunTimeoutSec:   DefaultRunTimeoutSec,
	}
}

// ReadyTimeout returns the readiness wait budget as a duration.
func (s *Spec) ReadyTimeout() time.Duration {
	return time.Duration(s.ReadyTimeoutSec) * time.Second
}

// PollInterval returns the readiness poll interval as a duration.
func (s *Spec) PollInterval() time.Duration {
	return time.Duration(s.PollIntervalMs) * time.Millisecond
}

// RunTimeout returns the whole-run budget as a duration.
func (s *Spec) RunTimeout() time.Duration {
	return time.Duration(s.RunTimeoutSec) * time.Second
}

// BinaryPath resolves the binary reference against the spec directory.
func (s *Spec) BinaryPath() string {
	return s.resolve(s.Binary)
}

// ScriptPath resolves the demo script reference against the spec
// directory. Empty when no script is configured.
func (s *Spec) ScriptPath() string {
	if s.Demo.Script == "" {
		return ""
	}
	return s.resolve(s.Demo.Script)
}

func (s *Spec) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) || s.Dir == "" {
		return path
	}
	return filepath.Join(s.Dir, path)
}

// Load reads one suite.yaml, checks it against the suite schema, and
// decodes it over the defaults.
func Load(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading suite spec: %w", err)
	}

	if errs := ValidateSuiteBytes(data); len(errs) > 0 {
		return nil, fmt.Errorf("%s does not match the suite schema:\n  %s",
			path, strings.Join(errs, "\n  "))
	}

	var loaded Spec
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	spec := New()
	merge(spec, &loaded)

	if spec.Name == "" {
		spec.Name = suiteNameFromBinary(spec.Binary)
	}

	dir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("resolving spec directory: %w", err)
	}
	spec.Dir = dir
	return spec, nil
}

// Find walks up from startDir looking for suite.yaml and returns its
// path. It gives up after a few levels so a stray file near the
// filesystem root is not silently picked up.
func Find(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("resolving path %q: %w", startDir, err)
	}

	for i := 0; i < maxSearchDepth; i++ {
		candidate := filepath.Join(dir, DefaultFileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("checking %q: %w", candidate, err)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", fmt.Errorf("no %s found in %s or any parent: %w",
		DefaultFileName, startDir, os.ErrNotExist)
}

// merge overlays non-zero fields from src onto dst. The schema has
// already rejected zero values where they would be invalid, so a zero
// here always means "not set".
func merge(dst, src *Spec) {
	if src.Version != "" {
		dst.Version = src.Version
	}
	if src.Name != "" {
		dst.Name = src.Name
	}
	dst.Binary = src.Binary
	if len(src.Args) > 0 {
		dst.Args = src.Args
	}
	if src.ExpectedTotal != 0 {
		dst.ExpectedTotal = src.ExpectedTotal
	}
	if src.ReadyTimeoutSec != 0 {
		dst.ReadyTimeoutSec = src.ReadyTimeoutSec
	}
	if src.PollIntervalMs != 0 {
		dst.PollIntervalMs = src.PollIntervalMs
	}
	if src.RunTimeoutSec != 0 {
		dst.RunTimeoutSec = src.RunTimeoutSec
	}
	dst.Demo = src.Demo
	if len(src.Reporters) > 0 {
		dst.Reporters = src.Reporters
	}
	dst.Publish = src.Publish
}

func suiteNameFromBinary(binary string) string {
	base := filepath.Base(binary)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
