// Package schema turns the flat form-details record list into an ordered
// category → question hierarchy.
package schema

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jask/formdesk/internal/catalog"
	"github.com/jask/formdesk/internal/logging"
)

// DiagnosticKind classifies a recoverable problem found while assembling.
type DiagnosticKind int

const (
	SchemaInconsistency DiagnosticKind = iota + 1
	DuplicateMeta
	UnknownRecord
	MissingMeta
	DuplicateKey
)

func (k DiagnosticKind) String() string {
	switch k {
	case SchemaInconsistency:
		return "schema inconsistency"
	case DuplicateMeta:
		return "duplicate meta"
	case UnknownRecord:
		return "unknown record"
	case MissingMeta:
		return "missing meta"
	case DuplicateKey:
		return "duplicate key"
	default:
		return fmt.Sprintf("diagnostic(%d)", int(k))
	}
}

// Diagnostic describes input the assembler skipped. None of them are fatal.
type Diagnostic struct {
	Kind    DiagnosticKind
	Ref     string
	Message string
}

func (d Diagnostic) String() string {
	if d.Ref == "" {
		return d.Kind.String() + ": " + d.Message
	}
	return fmt.Sprintf("%s (%s): %s", d.Kind, d.Ref, d.Message)
}

// Group is one category and its questions in arrival order.
type Group struct {
	Category  catalog.Category
	Questions []catalog.Question
}

// Schema is the assembled form description.
type Schema struct {
	Meta        *catalog.FormMeta
	Groups      []Group
	NoFields    bool
	Diagnostics []Diagnostic
}

// Fields returns the normalized keys of every question, in display order.
func (s Schema) Fields() []string {
	var keys []string
	for _, g := range s.Groups {
		for _, q := range g.Questions {
			keys = append(keys, NormalizeKey(q.ID.String()))
		}
	}
	return keys
}

// Question looks up a question by its normalized key.
func (s Schema) Question(key string) (catalog.Question, bool) {
	for _, g := range s.Groups {
		for _, q := range g.Questions {
			if NormalizeKey(q.ID.String()) == key {
				return q, true
			}
		}
	}
	return catalog.Question{}, false
}

// Title is the form name from the meta record, if any.
func (s Schema) Title() string {
	if s.Meta == nil {
		return ""
	}
	return s.Meta.Name
}

// NormalizeKey strips the leading non-digit prefix of a question id, so
// "Q001" becomes "001". Ids without digits come back unchanged.
func NormalizeKey(id string) string {
	k := strings.TrimLeftFunc(id, func(r rune) bool { return r < '0' || r > '9' })
	if k == "" {
		return id
	}
	return k
}

// Assemble groups questions under their categories. Groups are ordered by
// where each category first appears among the questions, not by the order
// of the category records. Questions whose category is absent are dropped
// with a SchemaInconsistency diagnostic.
func Assemble(records []catalog.Record, log *zap.Logger) Schema {
	log = logging.OrNop(log).Named("schema")
	var (
		s          Schema
		categories = map[string]catalog.Category{}
		questions  []catalog.Question
	)
	note := func(d Diagnostic) {
		s.Diagnostics = append(s.Diagnostics, d)
		log.Warn("form details", zap.Stringer("kind", d.Kind), zap.String("ref", d.Ref), zap.String("detail", d.Message))
	}

	for i, r := range records {
		switch r.Kind {
		case catalog.RecordMeta:
			if s.Meta != nil {
				note(Diagnostic{Kind: DuplicateMeta, Ref: r.Meta.FormID.String(), Message: "extra form meta record ignored"})
				continue
			}
			m := *r.Meta
			s.Meta = &m
		case catalog.RecordCategory:
			id := r.Category.ID.String()
			if _, ok := categories[id]; ok {
				continue
			}
			categories[id] = *r.Category
		case catalog.RecordQuestion:
			questions = append(questions, *r.Question)
		case catalog.RecordUnknown:
			note(Diagnostic{Kind: UnknownRecord, Ref: fmt.Sprintf("#%d", i), Message: "record is neither meta, category nor question"})
		}
	}
	if s.Meta == nil {
		note(Diagnostic{Kind: MissingMeta, Message: "no form meta record"})
	}

	var order []string
	byCategory := map[string][]catalog.Question{}
	for _, q := range questions {
		cid := q.CategoryID.String()
		if _, seen := byCategory[cid]; !seen {
			order = append(order, cid)
		}
		byCategory[cid] = append(byCategory[cid], q)
	}

	keys := map[string]bool{}
	for _, cid := range order {
		cat, ok := categories[cid]
		if !ok {
			note(Diagnostic{Kind: SchemaInconsistency, Ref: cid, Message: fmt.Sprintf("category missing for %d question(s)", len(byCategory[cid]))})
			continue
		}
		g := Group{Category: cat}
		for _, q := range byCategory[cid] {
			key := NormalizeKey(q.ID.String())
			if keys[key] {
				note(Diagnostic{Kind: DuplicateKey, Ref: q.ID.String(), Message: "question key " + key + " already used"})
				continue
			}
			keys[key] = true
			g.Questions = append(g.Questions, q)
		}
		if len(g.Questions) > 0 {
			s.Groups = append(s.Groups, g)
		}
	}
	s.NoFields = len(s.Groups) == 0
	return s
}
