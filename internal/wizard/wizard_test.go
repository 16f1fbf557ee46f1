package wizard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suitepulse/suitepulse/internal/runspec"
)

func TestGenerateSuiteYAML_FullSpec(t *testing.T) {
	spec := &SuiteSpec{
		Name:          "tudat-wasm-tests",
		Binary:        "bin/tudat_tests.wasm",
		Args:          []string{"--verbose", "--seed=7"},
		ExpectedTotal: 16,
		WithDemo:      true,
		ScriptPath:    "demo.toml",
		Reporter:      "junit",
	}

	result, err := GenerateSuiteYAML(spec)
	require.NoError(t, err)

	assert.Contains(t, result, `version: "1.0"`)
	assert.Contains(t, result, "name: tudat-wasm-tests")
	assert.Contains(t, result, "binary: bin/tudat_tests.wasm")
	assert.Contains(t, result, "- --verbose")
	assert.Contains(t, result, "- --seed=7")
	assert.Contains(t, result, "expected_total: 16")
	assert.Contains(t, result, "script: demo.toml")
	assert.Contains(t, result, "success_rate: 0.93")
	assert.Contains(t, result, "- type: junit")

	// The rendered file must satisfy the same schema the loader enforces.
	assert.Empty(t, runspec.ValidateSuiteBytes([]byte(result)))
}

func TestGenerateSuiteYAML_MinimalSpec(t *testing.T) {
	spec := &SuiteSpec{
		Name:   "tudat_tests",
		Binary: "tudat_tests.wasm",
	}

	result, err := GenerateSuiteYAML(spec)
	require.NoError(t, err)

	assert.Contains(t, result, "binary: tudat_tests.wasm")
	assert.NotContains(t, result, "args:")
	assert.NotContains(t, result, "expected_total")
	assert.NotContains(t, result, "demo:")
	assert.NotContains(t, result, "reporters:")

	assert.Empty(t, runspec.ValidateSuiteBytes([]byte(result)))
}

func TestValidateBinary(t *testing.T) {
	assert.NoError(t, validateBinary("bin/tests.wasm"))
	assert.EqualError(t, validateBinary(""), "binary path is required")
}

func TestValidateCount(t *testing.T) {
	assert.NoError(t, validateCount(""))
	assert.NoError(t, validateCount("0"))
	assert.NoError(t, validateCount("16"))
	assert.Error(t, validateCount("-1"))
	assert.Error(t, validateCount("many"))
}

func TestDefaultName(t *testing.T) {
	assert.Equal(t, "tudat_tests", DefaultName("bin/tudat_tests.wasm"))
	assert.Equal(t, "tests", DefaultName("tests"))
	assert.Equal(t, ".hidden", DefaultName(".hidden"))
}

func TestSplitAndTrim(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{"empty", "", nil},
		{"single", "hello", []string{"hello"}},
		{"multiple", "a, b, c", []string{"a", "b", "c"}},
		{"with blanks", "a,, b, ,c", []string{"a", "b", "c"}},
		{"whitespace only", "  ,  ,  ", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, splitAndTrim(tt.input))
		})
	}
}
