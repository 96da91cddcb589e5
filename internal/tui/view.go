package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/jask/formdesk/internal/chat"
	"github.com/jask/formdesk/internal/workflow"
)

const (
	noServicesText = "No services available"
	noFormsText    = "No forms available for this service"
	noFieldsText   = "This form has no input fields. You can still generate the document."
)

func (a *App) View() string {
	var b strings.Builder
	b.WriteString(a.renderHeader())
	b.WriteString("\n\n")

	body := a.renderBody()
	if err := a.wf.Err(); err != nil {
		body = a.renderError(err)
	}
	if a.chat != nil {
		body = lipgloss.JoinHorizontal(lipgloss.Top, a.mainPane(body), a.renderChat())
	}
	b.WriteString(body)
	b.WriteString("\n")
	b.WriteString(a.renderFooter())
	return b.String()
}

func (a *App) renderHeader() string {
	sel := a.wf.Selection()
	crumbs := []string{"Services"}
	if sel.ServiceName != "" {
		crumbs = append(crumbs, sel.ServiceName)
	}
	if sel.FormName != "" {
		crumbs = append(crumbs, sel.FormName)
	}
	return headerStyle.Render("formdesk") + "  " + crumbStyle.Render(strings.Join(crumbs, " › "))
}

func (a *App) renderBody() string {
	switch a.wf.State() {
	case workflow.Idle:
		if a.wf.Busy(workflow.KindServices) {
			return a.loading("Loading services")
		}
		return mutedStyle.Render("Press r to load services.")
	case workflow.ServicesLoaded:
		return a.renderServices()
	case workflow.ServiceSelected:
		return a.loading("Loading forms")
	case workflow.FormsLoaded:
		return a.renderForms()
	case workflow.FormSelected:
		return a.loading("Loading form fields")
	case workflow.FieldsLoaded:
		return a.renderFields()
	case workflow.Generating:
		return a.loading("Generating document")
	case workflow.DocumentReady:
		return a.renderPreview()
	}
	return ""
}

func (a *App) loading(label string) string {
	return a.spinner.View() + " " + mutedStyle.Render(label+"...")
}

func (a *App) renderServices() string {
	svcs := a.wf.Services()
	if len(svcs) == 0 {
		return titleStyle.Render("Select a service") + "\n\n" + mutedStyle.Render(noServicesText)
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render("Select a service"))
	b.WriteString("\n\n")
	for i, s := range svcs {
		b.WriteString(a.listRow(i, s.Name))
		if s.Description != "" {
			b.WriteString("  " + mutedStyle.Render(s.Description))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (a *App) renderForms() string {
	forms := a.wf.Forms()
	if len(forms) == 0 {
		return titleStyle.Render("Select a form") + "\n\n" + mutedStyle.Render(noFormsText)
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render("Select a form"))
	b.WriteString("\n\n")
	for i, f := range forms {
		b.WriteString(a.listRow(i, f.Name))
		b.WriteString("\n")
	}
	return b.String()
}

func (a *App) listRow(i int, label string) string {
	if i == a.cursor {
		return cursorStyle.Render("> " + label)
	}
	return "  " + label
}

func (a *App) renderFields() string {
	sel := a.wf.Selection()
	var b strings.Builder
	b.WriteString(titleStyle.Render(sel.FormName))
	if sel.Schema != nil && sel.Schema.Meta != nil && sel.Schema.Meta.Description != "" {
		b.WriteString("\n" + mutedStyle.Render(sel.Schema.Meta.Description))
	}
	b.WriteString("\n")
	if len(a.inputs) == 0 {
		b.WriteString("\n" + mutedStyle.Render(noFieldsText) + "\n")
		return b.String()
	}
	for _, f := range a.inputs {
		if f.heading != "" {
			b.WriteString(groupStyle.Render(f.heading))
			b.WriteString("\n")
			if f.desc != "" {
				b.WriteString(mutedStyle.Render(f.desc))
				b.WriteString("\n")
			}
		}
		b.WriteString(f.label)
		b.WriteString("\n")
		b.WriteString(f.input.View())
		b.WriteString("\n")
	}
	return b.String()
}

func (a *App) renderPreview() string {
	var b strings.Builder
	b.WriteString(successStyle.Render("Document ready"))
	b.WriteString("\n\n")
	b.WriteString(a.preview.View())
	return b.String()
}

func (a *App) renderError(err error) string {
	box := errorBoxStyle.Render("Error\n\n" + err.Error() + "\n\n" + mutedStyle.Render("esc to dismiss"))
	if a.width == 0 {
		return box
	}
	return lipgloss.Place(a.mainWidth(), lipgloss.Height(box)+2, lipgloss.Center, lipgloss.Center, box)
}

func (a *App) mainWidth() int {
	if a.width == 0 {
		return 80
	}
	if a.chat != nil {
		return a.width * 2 / 3
	}
	return a.width
}

func (a *App) mainPane(body string) string {
	style := paneStyle
	if !a.chatFocused {
		style = focusedPaneStyle
	}
	return style.Width(a.mainWidth() - 2).Render(body)
}

func (a *App) renderChat() string {
	w := 30
	if a.width > 0 {
		w = a.width - a.mainWidth() - 2
		if w < 20 {
			w = 20
		}
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render("Assistant"))
	b.WriteString("\n\n")
	for _, m := range a.chat.Messages() {
		if m.Sender == chat.User {
			b.WriteString(userStyle.Render("You: "))
		} else {
			b.WriteString(assistantStyle.Render("Assistant: "))
		}
		b.WriteString(m.Text)
		b.WriteString("\n")
	}
	if a.chat.Pending() {
		b.WriteString(a.spinner.View() + " " + mutedStyle.Render("thinking..."))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(a.chatInput.View())

	style := paneStyle
	if a.chatFocused {
		style = focusedPaneStyle
	}
	return style.Width(w - 2).Render(b.String())
}

func (a *App) renderFooter() string {
	var status string
	if a.status != "" {
		status = statusStyle.Render(" "+a.status+" ") + "\n"
	}
	parts := make([]string, 0, 8)
	for _, kb := range a.helpBindings() {
		h := kb.Help()
		parts = append(parts, keyStyle.Render(h.Key)+helpDescStyle.Render(" "+h.Desc))
	}
	line := strings.Join(parts, helpDescStyle.Render("  "))
	if a.width > 0 && ansi.StringWidth(line) > a.width {
		line = ansi.Truncate(line, a.width, "…")
	}
	return status + footerStyle.Render(line)
}

func (a *App) helpBindings() []key.Binding {
	k := a.keys
	if a.wf.Err() != nil {
		return []key.Binding{k.Back, k.Quit}
	}
	if a.chatFocused {
		return []key.Binding{k.Select, k.Back, k.Quit}
	}
	var out []key.Binding
	switch a.wf.State() {
	case workflow.Idle, workflow.ServicesLoaded:
		out = []key.Binding{k.Up, k.Down, k.Select, k.Refresh}
	case workflow.FormsLoaded:
		out = []key.Binding{k.Up, k.Down, k.Select, k.Back}
	case workflow.FieldsLoaded:
		out = []key.Binding{k.Next, k.Prev, k.Generate, k.Download, k.Back}
	case workflow.DocumentReady:
		out = []key.Binding{k.Up, k.Down, k.Download, k.Back}
	default:
		out = []key.Binding{k.Back}
	}
	if a.chat != nil {
		out = append(out, k.Chat)
	}
	return append(out, k.Quit)
}
