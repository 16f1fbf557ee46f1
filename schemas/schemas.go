// Package schemas embeds the JSON Schemas for suitepulse file formats.
package schemas

import _ "embed"

// SuiteSchemaJSON validates suite.yaml files.
//
//go:embed suite.schema.json
var SuiteSchemaJSON string

// OutcomeSchemaJSON validates saved run outcome JSON files.
//
//go:embed outcome.schema.json
var OutcomeSchemaJSON string
