package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ID identifies a service, form, category or question. The backend sends
// either JSON strings ("SVC001") or numbers (10); an ID remembers which, so
// it can be echoed back in payloads exactly as received.
type ID struct {
	value   string
	numeric bool
}

// StringID returns an ID that encodes as a JSON string.
func StringID(s string) ID { return ID{value: s} }

// NumberID returns an ID that encodes as a JSON number.
func NumberID(n int64) ID { return ID{value: strconv.FormatInt(n, 10), numeric: true} }

func (id ID) String() string { return id.value }

// IsZero reports whether the ID is unset.
func (id ID) IsZero() bool { return id.value == "" }

// Numeric reports whether the ID arrived as a JSON number.
func (id ID) Numeric() bool { return id.numeric }

func (id ID) MarshalJSON() ([]byte, error) {
	if id.numeric {
		return []byte(id.value), nil
	}
	return json.Marshal(id.value)
}

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*id = ID{}
		return nil
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID{value: s}
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a string or number, got %s", b)
	}
	*id = ID{value: n.String(), numeric: true}
	return nil
}
