// Package workflow drives the service → form → fields → document flow.
//
// The controller is owned by a single event loop. Every transition has a
// begin half, which updates state and returns a Task to run off the loop,
// and Apply, which folds the Task's Outcome back in. Outcomes that were
// superseded by a newer request of the same kind, or that belong to an
// earlier selection, are dropped.
package workflow

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jask/formdesk/internal/catalog"
	"github.com/jask/formdesk/internal/document"
	"github.com/jask/formdesk/internal/logging"
	"github.com/jask/formdesk/internal/schema"
)

// Catalog is the read side of the backend.
type Catalog interface {
	ListServices(ctx context.Context) ([]catalog.Service, error)
	ListForms(ctx context.Context, serviceID catalog.ID) ([]catalog.Form, error)
	FetchFormDetails(ctx context.Context, formID catalog.ID) ([]catalog.Record, error)
}

// Generator renders a preview of the filled form.
type Generator interface {
	Generate(ctx context.Context, payload document.Payload) (document.Preview, error)
}

// Downloader fetches and saves the final document.
type Downloader interface {
	TriggerDownload(ctx context.Context, payload document.Payload) (document.DownloadResult, error)
}

// TaskKind names a class of request. A newer request of a kind supersedes
// older ones of the same kind.
type TaskKind int

const (
	KindServices TaskKind = iota
	KindForms
	KindDetails
	KindGenerate
	KindDownload
	numKinds
)

func (k TaskKind) String() string {
	switch k {
	case KindServices:
		return "services"
	case KindForms:
		return "forms"
	case KindDetails:
		return "details"
	case KindGenerate:
		return "generate"
	case KindDownload:
		return "download"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// selectionBound kinds are discarded once the selection they were issued for is replaced.
func (k TaskKind) selectionBound() bool { return k != KindServices }

// Ticket identifies one request.
type Ticket struct {
	Kind       TaskKind
	Seq        uint64
	Generation uint64
}

// Outcome is the result of a Task. Only the fields matching Ticket.Kind are set.
type Outcome struct {
	Ticket   Ticket
	Services []catalog.Service
	Forms    []catalog.Form
	Records  []catalog.Record
	Preview  document.Preview
	Download document.DownloadResult
	Err      error
}

// Task performs the network half of a transition.
type Task func(ctx context.Context) Outcome

// Controller holds the workflow state. It is not safe for concurrent use.
type Controller struct {
	catalog    Catalog
	generator  Generator
	downloader Downloader
	log        *zap.Logger

	state    State
	err      error
	services []catalog.Service
	forms    []catalog.Form
	sel      Selection
	preview  *document.Preview
	download *document.DownloadResult

	seq      [numKinds]uint64
	inflight [numKinds]bool
}

// New returns an idle controller.
func New(cat Catalog, gen Generator, dl Downloader, log *zap.Logger) *Controller {
	return &Controller{
		catalog:    cat,
		generator:  gen,
		downloader: dl,
		log:        logging.OrNop(log).Named("workflow"),
		sel:        Selection{Values: map[string]string{}},
	}
}

func (c *Controller) State() State                { return c.state }
func (c *Controller) Services() []catalog.Service { return c.services }
func (c *Controller) Forms() []catalog.Form       { return c.forms }

// Selection returns a copy of the current selection.
func (c *Controller) Selection() Selection { return c.sel.clone() }

// Preview returns the last generated preview while in DocumentReady.
func (c *Controller) Preview() (document.Preview, bool) {
	if c.preview == nil {
		return document.Preview{}, false
	}
	return *c.preview, true
}

// LastDownload returns the most recently saved document, if any.
func (c *Controller) LastDownload() (document.DownloadResult, bool) {
	if c.download == nil {
		return document.DownloadResult{}, false
	}
	return *c.download, true
}

// Busy reports whether a request of kind is outstanding.
func (c *Controller) Busy(kind TaskKind) bool { return c.inflight[kind] }

// Err returns the error overlay, or nil. By the time it is set the
// controller already rests in a stable state.
func (c *Controller) Err() error { return c.err }

// DismissError clears the overlay. State and loaded data are untouched.
func (c *Controller) DismissError() { c.err = nil }

func (c *Controller) issue(kind TaskKind) Ticket {
	c.seq[kind]++
	c.inflight[kind] = true
	return Ticket{Kind: kind, Seq: c.seq[kind], Generation: c.sel.Generation}
}

// replaceSelection installs next under a new generation, orphaning every
// selection-bound request still in flight.
func (c *Controller) replaceSelection(next Selection) {
	next.Generation = c.sel.Generation + 1
	next.Values = map[string]string{}
	c.sel = next
	for k := TaskKind(0); k < numKinds; k++ {
		if k.selectionBound() {
			c.inflight[k] = false
		}
	}
}

func (c *Controller) setState(s State) {
	if s != c.state {
		c.log.Debug("transition", zap.Stringer("from", c.state), zap.Stringer("to", s))
	}
	c.state = s
}

// LoadServices fetches the service list. A failure keeps the previous list.
func (c *Controller) LoadServices() Task {
	t := c.issue(KindServices)
	cat := c.catalog
	return func(ctx context.Context) Outcome {
		svcs, err := cat.ListServices(ctx)
		return Outcome{Ticket: t, Services: svcs, Err: err}
	}
}

// SelectService starts a new selection for id and fetches its forms.
func (c *Controller) SelectService(id catalog.ID) (Task, error) {
	if id.IsZero() {
		return nil, ErrNoService
	}
	c.replaceSelection(Selection{ServiceID: id, ServiceName: c.serviceName(id)})
	c.forms = nil
	c.preview = nil
	c.setState(ServiceSelected)

	t := c.issue(KindForms)
	cat := c.catalog
	return func(ctx context.Context) Outcome {
		forms, err := cat.ListForms(ctx, id)
		return Outcome{Ticket: t, Forms: forms, Err: err}
	}, nil
}

// SelectForm starts a new selection for form id under the current service
// and fetches its details. name may be empty; it is then looked up.
func (c *Controller) SelectForm(id catalog.ID, name string) (Task, error) {
	if c.sel.ServiceID.IsZero() {
		return nil, ErrNoService
	}
	if id.IsZero() {
		return nil, ErrNoForm
	}
	if name == "" {
		name = c.formName(id)
	}
	c.replaceSelection(Selection{
		ServiceID:   c.sel.ServiceID,
		ServiceName: c.sel.ServiceName,
		FormID:      id,
		FormName:    name,
	})
	c.preview = nil
	c.setState(FormSelected)

	t := c.issue(KindDetails)
	cat := c.catalog
	return func(ctx context.Context) Outcome {
		recs, err := cat.FetchFormDetails(ctx, id)
		return Outcome{Ticket: t, Records: recs, Err: err}
	}, nil
}

// SetField stores value under the normalized form of key.
func (c *Controller) SetField(key, value string) error {
	if !c.sel.HasForm() {
		return ErrNoForm
	}
	key = schema.NormalizeKey(key)
	if _, ok := c.sel.Schema.Question(key); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownField, key)
	}
	c.sel.Values[key] = value
	return nil
}

// Submit stores values, checks that every field is filled and requests a
// preview. values may be nil to submit what SetField stored.
func (c *Controller) Submit(values map[string]string) (Task, error) {
	if !c.sel.HasForm() {
		return nil, ErrNoForm
	}
	c.store(values)
	if err := c.missing(); err != nil {
		return nil, err
	}
	payload := c.payload()
	c.preview = nil
	c.setState(Generating)

	t := c.issue(KindGenerate)
	gen := c.generator
	return func(ctx context.Context) Outcome {
		prev, err := gen.Generate(ctx, payload)
		return Outcome{Ticket: t, Preview: prev, Err: err}
	}, nil
}

// Download stores values and fetches the final document. It does not change
// state and does not require a prior preview.
func (c *Controller) Download(values map[string]string) (Task, error) {
	if !c.sel.HasForm() {
		return nil, ErrNoForm
	}
	c.store(values)
	payload := c.payload()

	t := c.issue(KindDownload)
	dl := c.downloader
	return func(ctx context.Context) Outcome {
		res, err := dl.TriggerDownload(ctx, payload)
		return Outcome{Ticket: t, Download: res, Err: err}
	}, nil
}

// Back steps out one level without touching the network. It reports whether
// anything changed.
func (c *Controller) Back() bool {
	switch c.state {
	case DocumentReady, Generating:
		c.seq[KindGenerate]++
		c.inflight[KindGenerate] = false
		c.preview = nil
		c.setState(FieldsLoaded)
	case FieldsLoaded, FormSelected:
		c.replaceSelection(Selection{ServiceID: c.sel.ServiceID, ServiceName: c.sel.ServiceName})
		c.preview = nil
		c.setState(FormsLoaded)
	case FormsLoaded, ServiceSelected:
		c.replaceSelection(Selection{})
		c.forms = nil
		if c.services != nil {
			c.setState(ServicesLoaded)
		} else {
			c.setState(Idle)
		}
	default:
		return false
	}
	return true
}

// Apply folds an outcome into the controller. It reports false when the
// outcome was stale and dropped.
func (c *Controller) Apply(o Outcome) bool {
	t := o.Ticket
	if t.Kind < 0 || t.Kind >= numKinds {
		return false
	}
	if t.Seq != c.seq[t.Kind] || (t.Kind.selectionBound() && t.Generation != c.sel.Generation) {
		c.log.Debug("stale outcome dropped",
			zap.Stringer("kind", t.Kind),
			zap.Uint64("seq", t.Seq), zap.Uint64("latest_seq", c.seq[t.Kind]),
			zap.Uint64("generation", t.Generation), zap.Uint64("current_generation", c.sel.Generation))
		return false
	}
	c.inflight[t.Kind] = false

	if o.Err != nil {
		c.err = o.Err
		c.log.Warn("request failed", zap.Stringer("kind", t.Kind), zap.Error(o.Err))
		c.settle(t.Kind)
		return true
	}

	switch t.Kind {
	case KindServices:
		c.services = nonNil(o.Services)
		if c.state == Idle {
			c.setState(ServicesLoaded)
		}
	case KindForms:
		c.forms = nonNil(o.Forms)
		c.setState(FormsLoaded)
	case KindDetails:
		s := schema.Assemble(o.Records, c.log)
		c.sel.Schema = &s
		if c.sel.FormName == "" {
			c.sel.FormName = s.Title()
		}
		c.setState(FieldsLoaded)
	case KindGenerate:
		p := o.Preview
		c.preview = &p
		c.setState(DocumentReady)
	case KindDownload:
		d := o.Download
		c.download = &d
	}
	return true
}

// settle returns a failed load to the stable state it started from. The
// chosen service and the lists already fetched stay; the selection the
// failed request was for is dropped.
func (c *Controller) settle(kind TaskKind) {
	switch {
	case kind == KindGenerate:
		c.setState(FieldsLoaded)
	case kind == KindForms && c.state == ServiceSelected,
		kind == KindDetails && c.state == FormSelected:
		c.Back()
	}
}

// store merges values into the selection, keeping only keys of the current form.
func (c *Controller) store(values map[string]string) {
	for k, v := range values {
		k = schema.NormalizeKey(k)
		if _, ok := c.sel.Schema.Question(k); ok {
			c.sel.Values[k] = v
		}
	}
}

func (c *Controller) missing() error {
	var e MissingFieldsError
	for _, k := range c.sel.Schema.Fields() {
		if strings.TrimSpace(c.sel.Values[k]) != "" {
			continue
		}
		label := k
		if q, _ := c.sel.Schema.Question(k); q.Text != "" {
			label = q.Text
		}
		e.Keys = append(e.Keys, k)
		e.Labels = append(e.Labels, label)
	}
	if len(e.Keys) > 0 {
		return &e
	}
	return nil
}

func (c *Controller) payload() document.Payload {
	return document.NewPayload(c.sel.FormID, c.sel.FormName, c.sel.Schema.Fields(), c.sel.Values)
}

func (c *Controller) serviceName(id catalog.ID) string {
	for _, s := range c.services {
		if s.ID == id {
			return s.Name
		}
	}
	return ""
}

func (c *Controller) formName(id catalog.ID) string {
	for _, f := range c.forms {
		if f.ID == id {
			return f.Name
		}
	}
	return ""
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
