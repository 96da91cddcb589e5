// Package document talks to the generation side of the backend: rendering a
// preview of a filled form and downloading the final document.
package document

import (
	"bytes"
	"encoding/json"

	"github.com/jask/formdesk/internal/catalog"
)

// FormIDKey is the payload key that names the form being filled.
const FormIDKey = "form_id"

// Payload is the flat object sent for generation and download:
// {"form_id": <id>, "<key>": "<value>", ...}. Keys are encoded in field order.
type Payload struct {
	FormID catalog.ID
	// FormName is used locally for fallback filenames and is not sent.
	FormName string
	keys     []string
	values   map[string]string
}

// NewPayload builds a payload holding exactly keys; keys missing from values
// are sent as "".
func NewPayload(formID catalog.ID, formName string, keys []string, values map[string]string) Payload {
	p := Payload{FormID: formID, FormName: formName, values: make(map[string]string, len(keys))}
	for _, k := range keys {
		if k == FormIDKey {
			continue
		}
		if _, dup := p.values[k]; dup {
			continue
		}
		p.keys = append(p.keys, k)
		p.values[k] = values[k]
	}
	return p
}

// Keys returns the field keys in encoding order.
func (p Payload) Keys() []string { return append([]string(nil), p.keys...) }

// Value returns the value sent for key.
func (p Payload) Value(key string) (string, bool) {
	v, ok := p.values[key]
	return v, ok
}

func (p Payload) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"` + FormIDKey + `":`)
	id, err := json.Marshal(p.FormID)
	if err != nil {
		return nil, err
	}
	buf.Write(id)
	for _, k := range p.keys {
		kb, _ := json.Marshal(k)
		vb, _ := json.Marshal(p.values[k])
		buf.WriteByte(',')
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
