package prompt

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jask/formdesk/internal/chat"
	"github.com/jask/formdesk/internal/logging"
	"github.com/jask/formdesk/internal/schema"
	"github.com/jask/formdesk/internal/workflow"
)

const (
	optAssistant  = "Ask the assistant"
	optRefresh    = "Refresh services"
	optQuit       = "Quit"
	optBack       = "Back"
	optGenerate   = "Generate preview"
	optDownload   = "Download document"
	optEdit       = "Edit answers"
	optOtherForm  = "Choose another form"
	noServices    = "No services available"
	noForms       = "No forms available for this service"
	noFieldsLabel = "This form has no input fields. You can still generate the document."
)

var errQuit = errors.New("quit")

// Flow runs the workflow synchronously, one prompt at a time.
type Flow struct {
	d    Driver
	wf   *workflow.Controller
	chat *chat.Session
	log  *zap.Logger

	answered   bool
	answeredAt uint64
}

// NewFlow wires a driver to a controller. cs may be nil to hide the assistant.
func NewFlow(d Driver, wf *workflow.Controller, cs *chat.Session, log *zap.Logger) *Flow {
	return &Flow{d: d, wf: wf, chat: cs, log: logging.OrNop(log).Named("prompt")}
}

// Run walks the user from service selection to a downloaded document. It
// returns nil when the user quits.
func (f *Flow) Run(ctx context.Context) error {
	err := f.loop(ctx)
	if errors.Is(err, errQuit) {
		return nil
	}
	return err
}

func (f *Flow) loop(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		var err error
		switch f.wf.State() {
		case workflow.Idle:
			err = f.loadServices(ctx)
		case workflow.ServicesLoaded:
			err = f.pickService(ctx)
		case workflow.FormsLoaded:
			err = f.pickForm(ctx)
		case workflow.FieldsLoaded:
			err = f.fields(ctx)
		case workflow.DocumentReady:
			err = f.document(ctx)
		default:
			f.wf.Back()
		}
		if err != nil {
			return err
		}
	}
}

// do runs task to completion and folds it in. A failed request comes back
// as the error and the overlay is cleared.
func (f *Flow) do(ctx context.Context, task workflow.Task) error {
	f.wf.Apply(task(ctx))
	if err := f.wf.Err(); err != nil {
		f.wf.DismissError()
		return err
	}
	return nil
}

func (f *Flow) retry(ctx context.Context, cause error) (bool, error) {
	if err := f.d.Info(ctx, "Error: "+cause.Error()); err != nil {
		return false, err
	}
	return f.d.Confirm(ctx, ConfirmConfig{Message: "Try again?", Default: true})
}

func (f *Flow) loadServices(ctx context.Context) error {
	err := f.do(ctx, f.wf.LoadServices())
	if err == nil {
		return nil
	}
	again, perr := f.retry(ctx, err)
	if perr != nil {
		return perr
	}
	if !again {
		return errQuit
	}
	return nil
}

func (f *Flow) pickService(ctx context.Context) error {
	svcs := f.wf.Services()
	if len(svcs) == 0 {
		if err := f.d.Info(ctx, noServices); err != nil {
			return err
		}
	}
	opts := make([]string, 0, len(svcs)+3)
	for _, s := range svcs {
		opts = append(opts, s.Name)
	}
	opts = append(opts, f.extras(optRefresh)...)
	idx, err := f.d.Select(ctx, SelectConfig{Message: "Select a service", Options: opts})
	if err != nil {
		return err
	}
	if idx >= 0 && idx < len(svcs) {
		task, err := f.wf.SelectService(svcs[idx].ID)
		if err != nil {
			return err
		}
		if err := f.do(ctx, task); err != nil {
			return f.d.Info(ctx, "Error: "+err.Error())
		}
		return nil
	}
	return f.extra(ctx, option(opts, idx), func() error {
		if err := f.do(ctx, f.wf.LoadServices()); err != nil {
			return f.d.Info(ctx, "Error: "+err.Error())
		}
		return nil
	})
}

func (f *Flow) pickForm(ctx context.Context) error {
	forms := f.wf.Forms()
	if len(forms) == 0 {
		if err := f.d.Info(ctx, noForms); err != nil {
			return err
		}
	}
	opts := make([]string, 0, len(forms)+3)
	for _, fm := range forms {
		opts = append(opts, fm.Name)
	}
	opts = append(opts, f.extras(optBack)...)
	idx, err := f.d.Select(ctx, SelectConfig{Message: "Select a form", Options: opts})
	if err != nil {
		return err
	}
	if idx >= 0 && idx < len(forms) {
		task, err := f.wf.SelectForm(forms[idx].ID, forms[idx].Name)
		if err != nil {
			return err
		}
		if err := f.do(ctx, task); err != nil {
			return f.d.Info(ctx, "Error: "+err.Error())
		}
		return nil
	}
	return f.extra(ctx, option(opts, idx), func() error {
		f.wf.Back()
		return nil
	})
}

func (f *Flow) fields(ctx context.Context) error {
	sel := f.wf.Selection()
	if !f.answered || f.answeredAt != sel.Generation {
		if err := f.ask(ctx, sel); err != nil {
			return err
		}
		f.answered, f.answeredAt = true, sel.Generation
	}

	opts := []string{optGenerate, optDownload, optEdit}
	opts = append(opts, f.extras(optBack)...)
	idx, err := f.d.Select(ctx, SelectConfig{Message: sel.FormName, Options: opts})
	if err != nil {
		return err
	}
	switch choice := option(opts, idx); choice {
	case optGenerate:
		task, err := f.wf.Submit(nil)
		if err != nil {
			return f.d.Info(ctx, err.Error())
		}
		if err := f.do(ctx, task); err != nil {
			return f.d.Info(ctx, "Error: "+err.Error())
		}
		return nil
	case optDownload:
		return f.download(ctx)
	case optEdit:
		f.answered = false
		return nil
	default:
		return f.extra(ctx, choice, func() error {
			f.wf.Back()
			return nil
		})
	}
}

func (f *Flow) ask(ctx context.Context, sel workflow.Selection) error {
	if sel.Schema == nil || sel.Schema.NoFields {
		return f.d.Info(ctx, noFieldsLabel)
	}
	for _, g := range sel.Schema.Groups {
		heading := "== " + g.Category.Name + " =="
		if g.Category.Description != "" {
			heading += "\n" + g.Category.Description
		}
		if err := f.d.Info(ctx, heading); err != nil {
			return err
		}
		for _, q := range g.Questions {
			key := schema.NormalizeKey(q.ID.String())
			val, err := f.d.Input(ctx, InputConfig{
				Message:   q.Text,
				Default:   sel.Value(key),
				Help:      q.Placeholder,
				Validator: required,
			})
			if err != nil {
				return err
			}
			if err := f.wf.SetField(key, val); err != nil {
				return err
			}
		}
	}
	return nil
}

func (f *Flow) document(ctx context.Context) error {
	if p, ok := f.wf.Preview(); ok {
		if err := f.d.Info(ctx, p.Text); err != nil {
			return err
		}
	}
	opts := []string{optDownload, optEdit, optOtherForm}
	opts = append(opts, f.extras("")...)
	idx, err := f.d.Select(ctx, SelectConfig{Message: "Document ready", Options: opts})
	if err != nil {
		return err
	}
	switch choice := option(opts, idx); choice {
	case optDownload:
		return f.download(ctx)
	case optEdit:
		f.wf.Back()
		f.answered = false
		return nil
	case optOtherForm:
		f.wf.Back()
		f.wf.Back()
		return nil
	default:
		return f.extra(ctx, choice, nil)
	}
}

func (f *Flow) download(ctx context.Context) error {
	task, err := f.wf.Download(nil)
	if err != nil {
		return err
	}
	if err := f.do(ctx, task); err != nil {
		return f.d.Info(ctx, "Error: "+err.Error())
	}
	d, _ := f.wf.LastDownload()
	return f.d.Info(ctx, fmt.Sprintf("Saved %s (%d bytes)", d.Path, d.Bytes))
}

// Chat asks questions until the user submits a blank line.
func (f *Flow) Chat(ctx context.Context) error {
	if f.chat == nil {
		return nil
	}
	for {
		text, err := f.d.Input(ctx, InputConfig{Message: "You:", Help: "Leave blank to return"})
		if err != nil {
			return err
		}
		msg, ok := f.chat.Send(ctx, text)
		if !ok {
			return nil
		}
		if err := f.d.Info(ctx, "Assistant: "+msg.Text); err != nil {
			return err
		}
	}
}

// extras are the options appended after the state's own choices.
func (f *Flow) extras(nav string) []string {
	var out []string
	if nav != "" {
		out = append(out, nav)
	}
	if f.chat != nil {
		out = append(out, optAssistant)
	}
	return append(out, optQuit)
}

func (f *Flow) extra(ctx context.Context, choice string, nav func() error) error {
	switch choice {
	case "":
		return nil
	case optAssistant:
		return f.Chat(ctx)
	case optQuit:
		return errQuit
	}
	if nav != nil {
		return nav()
	}
	return nil
}

func option(opts []string, idx int) string {
	if idx < 0 || idx >= len(opts) {
		return ""
	}
	return opts[idx]
}

func required(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("this field is required")
	}
	return nil
}
