package devserver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const payloadSchemaURL = "mem://formdesk/payload.json"

// payloadSchema is the shape of a generation request: a form id plus flat
// string answers keyed by question.
const payloadSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["form_id"],
  "properties": {
    "form_id": {"type": ["string", "integer"], "minLength": 1}
  },
  "additionalProperties": {"type": "string"}
}`

type payloadValidator struct {
	schema *jsonschema.Schema
}

func newPayloadValidator() (*payloadValidator, error) {
	c := jsonschema.NewCompiler()
	if err := c.AddResource(payloadSchemaURL, bytes.NewReader([]byte(payloadSchema))); err != nil {
		return nil, fmt.Errorf("add payload schema: %w", err)
	}
	s, err := c.Compile(payloadSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile payload schema: %w", err)
	}
	return &payloadValidator{schema: s}, nil
}

// formPayload is a validated generation request.
type formPayload struct {
	FormID string
	Values map[string]string
}

// Decode parses and validates raw JSON.
func (v *payloadValidator) Decode(r io.Reader) (formPayload, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return formPayload{}, fmt.Errorf("invalid JSON: %w", err)
	}
	if err := v.schema.Validate(doc); err != nil {
		return formPayload{}, fmt.Errorf("invalid payload: %w", err)
	}

	obj := doc.(map[string]any)
	p := formPayload{Values: make(map[string]string, len(obj))}
	for k, val := range obj {
		if k == "form_id" {
			p.FormID = fmt.Sprint(val)
			continue
		}
		p.Values[k] = val.(string)
	}
	return p, nil
}
