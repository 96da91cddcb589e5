package tui

import (
	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/textinput"

	"github.com/jask/formdesk/internal/schema"
)

// fieldInput is one question's text input, with the category heading shown
// above the first input of each group.
type fieldInput struct {
	key     string
	label   string
	heading string
	desc    string
	input   textinput.Model
}

func buildInputs(s *schema.Schema, values map[string]string) []fieldInput {
	if s == nil {
		return nil
	}
	var out []fieldInput
	for _, g := range s.Groups {
		for i, q := range g.Questions {
			in := textinput.New()
			in.Placeholder = q.Placeholder
			in.Prompt = "› "
			in.CharLimit = 256
			in.Cursor.SetMode(cursor.CursorStatic)
			key := schema.NormalizeKey(q.ID.String())
			in.SetValue(values[key])
			f := fieldInput{key: key, label: q.Text, input: in}
			if i == 0 {
				f.heading = g.Category.Name
				f.desc = g.Category.Description
			}
			out = append(out, f)
		}
	}
	if len(out) > 0 {
		out[0].input.Focus()
	}
	return out
}

func inputValues(fields []fieldInput) map[string]string {
	vals := make(map[string]string, len(fields))
	for _, f := range fields {
		vals[f.key] = f.input.Value()
	}
	return vals
}
