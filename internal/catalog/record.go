package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// RecordKind tags one element of a form-details response.
type RecordKind int

const (
	RecordUnknown RecordKind = iota
	RecordMeta
	RecordCategory
	RecordQuestion
)

func (k RecordKind) String() string {
	switch k {
	case RecordMeta:
		return "meta"
	case RecordCategory:
		return "category"
	case RecordQuestion:
		return "question"
	default:
		return "unknown"
	}
}

// Record is one element of the mixed form-details array. Exactly one of
// Meta, Category or Question is set, matching Kind; unknown records keep only Raw.
type Record struct {
	Kind     RecordKind
	Meta     *FormMeta
	Category *Category
	Question *Question
	Raw      json.RawMessage
}

// MetaRecord, CategoryRecord and QuestionRecord build tagged records directly.
func MetaRecord(m FormMeta) Record { return Record{Kind: RecordMeta, Meta: &m} }
func CategoryRecord(c Category) Record { return Record{Kind: RecordCategory, Category: &c} }
func QuestionRecord(q Question) Record { return Record{Kind: RecordQuestion, Question: &q} }

func (r *Record) UnmarshalJSON(b []byte) error {
	rec, err := ClassifyRecord(b)
	if err != nil {
		return err
	}
	*r = rec
	return nil
}

func (r Record) MarshalJSON() ([]byte, error) {
	switch r.Kind {
	case RecordMeta:
		return json.Marshal(r.Meta)
	case RecordCategory:
		return json.Marshal(r.Category)
	case RecordQuestion:
		return json.Marshal(r.Question)
	default:
		if len(r.Raw) == 0 {
			return []byte("null"), nil
		}
		return r.Raw, nil
	}
}

// ClassifyRecord is the only place that infers a record's variant from the
// fields it carries: a form identifier makes it meta, a question identifier a
// question, and a bare name a category. Anything else is RecordUnknown.
// Field presence follows the backend's loose typing: null, "" and false count
// as absent. Any number, zero included, is an identifier and counts as present.
func ClassifyRecord(raw []byte) (Record, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		// not an object; let the assembler report it
		return Record{Kind: RecordUnknown, Raw: append(json.RawMessage(nil), raw...)}, nil
	}

	switch {
	case present(fields, "form_id"):
		var m FormMeta
		if err := json.Unmarshal(raw, &m); err != nil {
			return Record{}, fmt.Errorf("decode form meta: %w", err)
		}
		return MetaRecord(m), nil
	case present(fields, "ques_id"):
		var q Question
		if err := json.Unmarshal(raw, &q); err != nil {
			return Record{}, fmt.Errorf("decode question: %w", err)
		}
		return QuestionRecord(q), nil
	case present(fields, "name"):
		var c Category
		if err := json.Unmarshal(raw, &c); err != nil {
			return Record{}, fmt.Errorf("decode category: %w", err)
		}
		return CategoryRecord(c), nil
	default:
		return Record{Kind: RecordUnknown, Raw: append(json.RawMessage(nil), raw...)}, nil
	}
}

func present(fields map[string]json.RawMessage, key string) bool {
	v, ok := fields[key]
	if !ok {
		return false
	}
	v = bytes.TrimSpace(v)
	switch string(v) {
	case "", "null", `""`, "false":
		return false
	}
	return true
}
