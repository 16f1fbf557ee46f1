package runspec

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"

	"github.com/suitepulse/suitepulse/schemas"
)

// defaultPrinter renders schema violation messages.
var defaultPrinter = message.NewPrinter(language.English)

var (
	suiteSchema   *jsonschema.Schema
	outcomeSchema *jsonschema.Schema
)

func init() {
	suiteSchema = mustCompileSchema(schemas.SuiteSchemaJSON, "suite.schema.json")
	outcomeSchema = mustCompileSchema(schemas.OutcomeSchemaJSON, "outcome.schema.json")
}

func mustCompileSchema(schemaJSON string, name string) *jsonschema.Schema {
	var schemaDoc any
	if err := json.Unmarshal([]byte(schemaJSON), &schemaDoc); err != nil {
		panic(fmt.Sprintf("parsing embedded schema %s: %v", name, err))
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, schemaDoc); err != nil {
		panic(fmt.Sprintf("adding schema resource %s: %v", name, err))
	}

	schema, err := compiler.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("compiling schema %s: %v", name, err))
	}
	return schema
}

// ValidateSuiteBytes checks raw suite.yaml bytes against the suite
// schema. It returns one message per violation, or nil when the
// document is valid.
func ValidateSuiteBytes(data []byte) []string {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return []string{fmt.Sprintf("YAML parse error: %v", err)}
	}
	return validateDocument(suiteSchema, convertToJSONCompatible(doc))
}

// ValidateSuiteFile reads and validates one suite.yaml. The error is
// for I/O trouble only; schema violations come back in the slice.
func ValidateSuiteFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading suite spec: %w", err)
	}
	return ValidateSuiteBytes(data), nil
}

// ValidateOutcomeBytes checks a saved run outcome JSON document against
// the outcome schema.
func ValidateOutcomeBytes(data []byte) []string {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return []string{fmt.Sprintf("JSON parse error: %v", err)}
	}
	return validateDocument(outcomeSchema, doc)
}

func validateDocument(schema *jsonschema.Schema, doc any) []string {
	err := schema.Validate(doc)
	if err == nil {
		return nil
	}
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return []string{fmt.Sprintf("schema: %v", err)}
	}
	var errs []string
	collectSchemaErrors(ve, &errs)
	return errs
}

// collectSchemaErrors flattens the validation error tree into leaf
// messages prefixed with their document location.
func collectSchemaErrors(ve *jsonschema.ValidationError, errs *[]string) {
	if len(ve.Causes) == 0 {
		loc := "/"
		if len(ve.InstanceLocation) > 0 {
			loc = "/" + strings.Join(ve.InstanceLocation, "/")
		}
		*errs = append(*errs, fmt.Sprintf("%s: %s", loc, ve.ErrorKind.LocalizedString(defaultPrinter)))
		return
	}
	for _, c := range ve.Causes {
		collectSchemaErrors(c, errs)
	}
}

// convertToJSONCompatible rebuilds YAML-decoded containers so the
// validator sees fresh maps and slices. Integers stay as-is.
func convertToJSONCompatible(v any) any {
	switch val := v.(type) {
	case map[string]any:
		result := make(map[string]any, len(val))
		for k, v2 := range val {
			result[k] = convertToJSONCompatible(v2)
		}
		return result
	case []any:
		result := make([]any, len(val))
		for i, v2 := range val {
			result[i] = convertToJSONCompatible(v2)
		}
		return result
	default:
		return val
	}
}
