// Package schema validates structuring and report documents against the
// embedded JSON Schemas.
package schema

import (
	"embed"
	"encoding/json"
	"fmt"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed schemas/*.json
var files embed.FS

const baseURL = "https://healthrag.local/schemas/"

// Schema file names.
const (
	StructuredOutput = "structured_output.json"
	ReportOutput     = "report_output.json"
)

// Validator holds one compiled schema.
type Validator struct {
	name   string
	schema *jsonschema.Schema
}

// New compiles the embedded schema called name.
func New(name string) (*Validator, error) {
	b, err := files.ReadFile("schemas/" + name)
	if err != nil {
		return nil, fmt.Errorf("open schema %s: %w", name, err)
	}

	var doc any
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("parse schema %s: %w", name, err)
	}

	c := jsonschema.NewCompiler()
	c.DefaultDraft(jsonschema.Draft2020)
	c.AssertFormat()

	url := baseURL + name
	if err := c.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("add schema %s: %w", name, err)
	}
	s, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	return &Validator{name: name, schema: s}, nil
}

// MustNew is New for schemas known to be valid at build time.
func MustNew(name string) *Validator {
	v, err := New(name)
	if err != nil {
		panic(err)
	}
	return v
}

// Validate checks v, which may be any JSON-marshalable value.
func (v *Validator) Validate(value any) error {
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode instance: %w", err)
	}
	var inst any
	if err := json.Unmarshal(b, &inst); err != nil {
		return fmt.Errorf("decode instance: %w", err)
	}
	if err := v.schema.Validate(inst); err != nil {
		return fmt.Errorf("%s: %w", v.name, err)
	}
	return nil
}
