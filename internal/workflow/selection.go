package workflow

import (
	"github.com/jask/formdesk/internal/catalog"
	"github.com/jask/formdesk/internal/schema"
)

// Selection is the chosen service and form, the assembled schema and the
// values entered so far. The controller replaces it wholesale on every new
// selection; Generation identifies which selection a response belongs to.
type Selection struct {
	Generation  uint64
	ServiceID   catalog.ID
	ServiceName string
	FormID      catalog.ID
	FormName    string
	Schema      *schema.Schema
	Values      map[string]string
}

// HasForm reports whether a form is selected and its fields are loaded.
func (s Selection) HasForm() bool {
	return !s.FormID.IsZero() && s.Schema != nil
}

// Value returns the stored value for a normalized key.
func (s Selection) Value(key string) string {
	return s.Values[key]
}

func (s Selection) clone() Selection {
	cp := s
	cp.Values = make(map[string]string, len(s.Values))
	for k, v := range s.Values {
		cp.Values[k] = v
	}
	return cp
}
