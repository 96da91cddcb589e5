// Package tui is the terminal front end. It owns the workflow controller and
// chat session and runs their tasks as bubbletea commands, so every state
// change happens on the Update loop.
package tui

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/jask/formdesk/internal/chat"
	"github.com/jask/formdesk/internal/logging"
	"github.com/jask/formdesk/internal/workflow"
)

type workflowMsg struct{ outcome workflow.Outcome }

type chatMsg struct{ outcome chat.Outcome }

// App is the root bubbletea model.
type App struct {
	ctx  context.Context
	wf   *workflow.Controller
	chat *chat.Session
	log  *zap.Logger
	keys keyMap

	width  int
	height int

	cursor int

	inputs   []fieldInput
	focus    int
	built    bool
	builtFor uint64

	chatInput   textinput.Model
	chatFocused bool

	preview viewport.Model
	spinner spinner.Model
	status  string
}

// New builds the model. cs may be nil to hide the assistant pane.
func New(ctx context.Context, wf *workflow.Controller, cs *chat.Session, log *zap.Logger) *App {
	ci := textinput.New()
	ci.Placeholder = "Ask about this form..."
	ci.Prompt = "› "
	ci.CharLimit = 500
	ci.Cursor.SetMode(cursor.CursorStatic)

	return &App{
		ctx:       ctx,
		wf:        wf,
		chat:      cs,
		log:       logging.OrNop(log).Named("tui"),
		keys:      defaultKeys(),
		chatInput: ci,
		preview:   viewport.New(80, 12),
		spinner:   spinner.New(spinner.WithSpinner(spinner.Dot)),
	}
}

func (a *App) Init() tea.Cmd {
	return tea.Batch(a.runWorkflow(a.wf.LoadServices()), a.spinner.Tick)
}

func (a *App) runWorkflow(t workflow.Task) tea.Cmd {
	if t == nil {
		return nil
	}
	ctx := a.ctx
	return func() tea.Msg { return workflowMsg{outcome: t(ctx)} }
}

func (a *App) runChat(t chat.Task) tea.Cmd {
	if t == nil {
		return nil
	}
	ctx := a.ctx
	return func() tea.Msg { return chatMsg{outcome: t(ctx)} }
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.resizePreview()
		return a, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd
	case workflowMsg:
		a.applyWorkflow(msg.outcome)
		return a, nil
	case chatMsg:
		if a.chat != nil {
			a.chat.Apply(msg.outcome)
		}
		return a, nil
	case tea.KeyMsg:
		return a.handleKey(msg)
	}
	return a, nil
}

func (a *App) applyWorkflow(o workflow.Outcome) {
	if !a.wf.Apply(o) {
		return
	}
	if o.Err != nil {
		a.status = ""
		a.syncInputs()
		return
	}
	switch o.Ticket.Kind {
	case workflow.KindServices:
		a.clampCursor(len(a.wf.Services()))
	case workflow.KindForms:
		a.cursor = 0
	case workflow.KindDetails:
		a.syncInputs()
	case workflow.KindGenerate:
		if p, ok := a.wf.Preview(); ok {
			a.preview.SetContent(p.Text)
			a.preview.GotoTop()
		}
		a.status = ""
	case workflow.KindDownload:
		if d, ok := a.wf.LastDownload(); ok {
			a.status = fmt.Sprintf("Saved %s (%d bytes)", d.Path, d.Bytes)
		}
	}
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, a.keys.Quit) {
		return a, tea.Quit
	}
	if a.wf.Err() != nil {
		if key.Matches(msg, a.keys.Back, a.keys.Select) {
			a.wf.DismissError()
		}
		return a, nil
	}
	if a.chatFocused {
		return a.handleChatKey(msg)
	}
	if key.Matches(msg, a.keys.Chat) && a.chat != nil {
		a.chatFocused = true
		a.blurFields()
		a.chatInput.Focus()
		return a, nil
	}

	switch a.wf.State() {
	case workflow.Idle, workflow.ServicesLoaded:
		return a.handleServiceList(msg)
	case workflow.FormsLoaded:
		return a.handleFormList(msg)
	case workflow.FieldsLoaded:
		return a.handleFields(msg)
	case workflow.DocumentReady:
		return a.handlePreview(msg)
	default:
		if key.Matches(msg, a.keys.Back) {
			a.back()
		}
	}
	return a, nil
}

func (a *App) handleServiceList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	svcs := a.wf.Services()
	switch {
	case key.Matches(msg, a.keys.Up):
		a.moveCursor(-1, len(svcs))
	case key.Matches(msg, a.keys.Down):
		a.moveCursor(1, len(svcs))
	case key.Matches(msg, a.keys.Refresh):
		a.status = ""
		return a, a.runWorkflow(a.wf.LoadServices())
	case key.Matches(msg, a.keys.Select):
		if a.cursor >= len(svcs) {
			return a, nil
		}
		task, err := a.wf.SelectService(svcs[a.cursor].ID)
		if err != nil {
			a.status = err.Error()
			return a, nil
		}
		a.cursor = 0
		a.syncInputs()
		return a, a.runWorkflow(task)
	}
	return a, nil
}

func (a *App) handleFormList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	forms := a.wf.Forms()
	switch {
	case key.Matches(msg, a.keys.Up):
		a.moveCursor(-1, len(forms))
	case key.Matches(msg, a.keys.Down):
		a.moveCursor(1, len(forms))
	case key.Matches(msg, a.keys.Back):
		a.back()
	case key.Matches(msg, a.keys.Select):
		if a.cursor >= len(forms) {
			return a, nil
		}
		f := forms[a.cursor]
		task, err := a.wf.SelectForm(f.ID, f.Name)
		if err != nil {
			a.status = err.Error()
			return a, nil
		}
		a.syncInputs()
		return a, a.runWorkflow(task)
	}
	return a, nil
}

func (a *App) handleFields(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, a.keys.Back):
		a.back()
		return a, nil
	case key.Matches(msg, a.keys.Next):
		a.cycleFocus(1)
		return a, nil
	case key.Matches(msg, a.keys.Prev):
		a.cycleFocus(-1)
		return a, nil
	case key.Matches(msg, a.keys.Generate):
		return a, a.submit()
	case key.Matches(msg, a.keys.Download):
		return a, a.download()
	}
	if a.focus < len(a.inputs) {
		var cmd tea.Cmd
		a.inputs[a.focus].input, cmd = a.inputs[a.focus].input.Update(msg)
		return a, cmd
	}
	return a, nil
}

func (a *App) handlePreview(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, a.keys.Back):
		a.back()
		return a, nil
	case key.Matches(msg, a.keys.Download):
		return a, a.download()
	}
	var cmd tea.Cmd
	a.preview, cmd = a.preview.Update(msg)
	return a, cmd
}

func (a *App) handleChatKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, a.keys.Back, a.keys.Chat):
		a.chatFocused = false
		a.chatInput.Blur()
		a.focusField()
		return a, nil
	case key.Matches(msg, a.keys.Select):
		task := a.chat.Begin(a.chatInput.Value())
		a.chatInput.Reset()
		return a, a.runChat(task)
	}
	var cmd tea.Cmd
	a.chatInput, cmd = a.chatInput.Update(msg)
	return a, cmd
}

func (a *App) submit() tea.Cmd {
	task, err := a.wf.Submit(inputValues(a.inputs))
	if err != nil {
		var missing *workflow.MissingFieldsError
		if errors.As(err, &missing) && len(missing.Keys) > 0 {
			a.focusKey(missing.Keys[0])
		}
		a.status = err.Error()
		return nil
	}
	a.status = "Generating document..."
	return a.runWorkflow(task)
}

func (a *App) download() tea.Cmd {
	task, err := a.wf.Download(inputValues(a.inputs))
	if err != nil {
		a.status = err.Error()
		return nil
	}
	a.status = "Downloading..."
	return a.runWorkflow(task)
}

func (a *App) back() {
	if a.wf.Back() {
		a.cursor = 0
		a.status = ""
		a.syncInputs()
	}
}

// syncInputs rebuilds the field inputs when the selection they were built
// for has been replaced. Values typed into the current selection survive.
func (a *App) syncInputs() {
	sel := a.wf.Selection()
	if sel.Schema == nil {
		a.inputs, a.focus, a.built = nil, 0, false
		return
	}
	if a.built && a.builtFor == sel.Generation {
		return
	}
	a.inputs = buildInputs(sel.Schema, sel.Values)
	a.focus = 0
	a.built, a.builtFor = true, sel.Generation
}

func (a *App) cycleFocus(delta int) {
	if len(a.inputs) == 0 {
		return
	}
	a.focus = (a.focus + delta + len(a.inputs)) % len(a.inputs)
	a.focusField()
}

func (a *App) focusKey(k string) {
	for i, f := range a.inputs {
		if f.key == k {
			a.focus = i
			a.focusField()
			return
		}
	}
}

func (a *App) focusField() {
	for i := range a.inputs {
		if i == a.focus && !a.chatFocused {
			a.inputs[i].input.Focus()
		} else {
			a.inputs[i].input.Blur()
		}
	}
}

func (a *App) blurFields() {
	for i := range a.inputs {
		a.inputs[i].input.Blur()
	}
}

func (a *App) moveCursor(delta, n int) {
	if n == 0 {
		return
	}
	a.cursor += delta
	a.clampCursor(n)
}

func (a *App) clampCursor(n int) {
	if a.cursor >= n {
		a.cursor = n - 1
	}
	if a.cursor < 0 {
		a.cursor = 0
	}
}

func (a *App) resizePreview() {
	w := a.width - 4
	if a.chat != nil {
		w = a.width*2/3 - 4
	}
	h := a.height - 8
	if w < 20 {
		w = 20
	}
	if h < 5 {
		h = 5
	}
	a.preview.Width = w
	a.preview.Height = h
}
