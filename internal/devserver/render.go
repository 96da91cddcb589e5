package devserver

import (
	"bytes"
	"fmt"
	"html/template"
	"sort"
	"strings"

	"github.com/jask/formdesk/internal/database/repository"
	"github.com/jask/formdesk/internal/schema"
)

// answer is one filled-in field resolved to its question text.
type answer struct {
	Question string
	Value    string
}

// resolveAnswers pairs payload values with the form's questions, in question
// order. Keys that match no question are listed last as "Field <key>".
func resolveAnswers(questions []repository.Question, values map[string]string) []answer {
	var out []answer
	used := make(map[string]bool, len(values))
	for _, q := range questions {
		key := schema.NormalizeKey(q.ID)
		v, ok := values[key]
		if !ok {
			continue
		}
		used[key] = true
		out = append(out, answer{Question: q.Text, Value: v})
	}

	var extra []string
	for k := range values {
		if !used[k] {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	for _, k := range extra {
		out = append(out, answer{Question: "Field " + k, Value: values[k]})
	}
	return out
}

var previewTemplate = template.Must(template.New("preview").Parse(`<div class="alert alert-info">
  <h3>Document Preview</h3>
  <p>The selected document "{{.Form.Name}}" will be completed with the information below.</p>
  <div class="card p-3 my-3">
    <h4>Form Data Provided:</h4>
    <ul>
{{- range .Answers}}
      <li><strong>{{.Question}}:</strong> {{.Value}}</li>
{{- end}}
    </ul>
  </div>
  <p>The final document is a completed version of the form with your information inserted in the appropriate places.</p>
  <p><a href="{{.Form.Link}}" target="_blank">View Original Form</a></p>
</div>`))

func renderPreview(form repository.Form, answers []answer) (string, error) {
	var buf bytes.Buffer
	err := previewTemplate.Execute(&buf, struct {
		Form    repository.Form
		Answers []answer
	}{form, answers})
	if err != nil {
		return "", fmt.Errorf("render preview: %w", err)
	}
	return buf.String(), nil
}

// renderDocument is the downloadable plain-text version of the filled form.
func renderDocument(form repository.Form, answers []answer) []byte {
	var b strings.Builder
	b.WriteString(form.Name + "\n")
	b.WriteString(strings.Repeat("=", len(form.Name)) + "\n\n")
	b.WriteString("Form Details\n\n")
	for _, a := range answers {
		fmt.Fprintf(&b, "%s: %s\n", a.Question, a.Value)
	}
	fmt.Fprintf(&b, "\nOriginal Document: %s\n", form.Link)
	return []byte(b.String())
}
