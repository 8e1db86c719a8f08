package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/medilink/constants"
)

// Validator checks structured replies for one document type against its
// compiled schema. Schema keeps the map form for prompts and sanitizing.
type Validator struct {
	DocType constants.DocType
	Schema  map[string]any

	compiled *jsonschema.Schema
}

// CompileSchema compiles schema for docType.
func CompileSchema(docType constants.DocType, schema map[string]any) (*Validator, error) {
	b, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("marshal %s schema: %w", docType, err)
	}
	url := string(docType) + ".schema.json"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add %s schema: %w", docType, err)
	}
	compiled, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile %s schema: %w", docType, err)
	}
	return &Validator{DocType: docType, Schema: schema, compiled: compiled}, nil
}

// Validate checks a recovered JSON payload.
func (v *Validator) Validate(data []byte) error {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("unmarshal %s reply: %w", v.DocType, err)
	}
	if err := v.compiled.Validate(doc); err != nil {
		return fmt.Errorf("%s reply does not match schema: %w", v.DocType, err)
	}
	return nil
}

// the built-in schemas are static, so they compile once per process
var builtinValidators = sync.OnceValue(func() map[constants.DocType]*Validator {
	out := make(map[constants.DocType]*Validator, 2)
	for _, t := range []constants.DocType{constants.DocPrescription, constants.DocLabReport} {
		schema, _ := SchemaFor(t)
		v, err := CompileSchema(t, schema)
		if err != nil {
			panic(err)
		}
		out[t] = v
	}
	return out
})

// ValidatorFor returns the shared validator for t, if t has a schema.
func ValidatorFor(t constants.DocType) (*Validator, bool) {
	v, ok := builtinValidators()[t]
	return v, ok
}
