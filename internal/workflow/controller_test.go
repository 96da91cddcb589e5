package workflow

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/jask/formdesk/internal/catalog"
	"github.com/jask/formdesk/internal/document"
	"github.com/jask/formdesk/internal/httpapi"
)

type fakeCatalog struct {
	services []catalog.Service
	forms    map[string][]catalog.Form
	details  map[string][]catalog.Record
	err      error
}

func (f *fakeCatalog) ListServices(context.Context) ([]catalog.Service, error) {
	return f.services, f.err
}

func (f *fakeCatalog) ListForms(_ context.Context, id catalog.ID) ([]catalog.Form, error) {
	return f.forms[id.String()], f.err
}

func (f *fakeCatalog) FetchFormDetails(_ context.Context, id catalog.ID) ([]catalog.Record, error) {
	return f.details[id.String()], f.err
}

type fakeGenerator struct {
	got  []document.Payload
	html string
	err  error
}

func (f *fakeGenerator) Generate(_ context.Context, p document.Payload) (document.Preview, error) {
	f.got = append(f.got, p)
	if f.err != nil {
		return document.Preview{}, f.err
	}
	return document.Preview{HTML: f.html, Text: f.html}, nil
}

type fakeDownloader struct {
	got []document.Payload
	err error
}

func (f *fakeDownloader) TriggerDownload(_ context.Context, p document.Payload) (document.DownloadResult, error) {
	f.got = append(f.got, p)
	if f.err != nil {
		return document.DownloadResult{}, f.err
	}
	return document.DownloadResult{Path: "/tmp/out.txt", Filename: "out.txt"}, nil
}

func sid(s string) catalog.ID { return catalog.StringID(s) }

func newFixture() *fakeCatalog {
	return &fakeCatalog{
		services: []catalog.Service{{ID: sid("S1"), Name: "Divorce"}, {ID: sid("S2"), Name: "Wills"}},
		forms: map[string][]catalog.Form{
			"S1": {{ID: sid("F1"), Name: "Petition", ServiceID: sid("S1")}, {ID: sid("F2"), Name: "Settlement", ServiceID: sid("S1")}},
			"S2": {{ID: sid("F3"), Name: "Last Will", ServiceID: sid("S2")}},
		},
		details: map[string][]catalog.Record{
			"F1": {
				catalog.MetaRecord(catalog.FormMeta{FormID: sid("F1"), Name: "Petition"}),
				catalog.CategoryRecord(catalog.Category{ID: sid("C1"), Name: "Personal"}),
				catalog.QuestionRecord(catalog.Question{ID: sid("Q001"), CategoryID: sid("C1"), Text: "Full name"}),
				catalog.QuestionRecord(catalog.Question{ID: sid("Q002"), CategoryID: sid("C1"), Text: "Address"}),
			},
			"F2": {
				catalog.MetaRecord(catalog.FormMeta{FormID: sid("F2"), Name: "Settlement"}),
				catalog.CategoryRecord(catalog.Category{ID: sid("C2"), Name: "Assets"}),
				catalog.QuestionRecord(catalog.Question{ID: sid("Q005"), CategoryID: sid("C2"), Text: "House value"}),
			},
		},
	}
}

func run(t *testing.T, task Task) Outcome {
	t.Helper()
	require.NotNil(t, task)
	return task(context.Background())
}

// toFields drives the controller from idle to FieldsLoaded on S1/F1.
func toFields(t *testing.T, c *Controller) {
	t.Helper()
	require.True(t, c.Apply(run(t, c.LoadServices())))
	task, err := c.SelectService(sid("S1"))
	require.NoError(t, err)
	require.True(t, c.Apply(run(t, task)))
	task, err = c.SelectForm(sid("F1"), "")
	require.NoError(t, err)
	require.True(t, c.Apply(run(t, task)))
	require.Equal(t, FieldsLoaded, c.State())
}

func TestHappyPath(t *testing.T) {
	gen := &fakeGenerator{html: "<p>done</p>"}
	c := New(newFixture(), gen, &fakeDownloader{}, zaptest.NewLogger(t))
	require.Equal(t, Idle, c.State())

	toFields(t, c)
	sel := c.Selection()
	require.Equal(t, "Divorce", sel.ServiceName)
	require.Equal(t, "Petition", sel.FormName)
	require.Equal(t, []string{"001", "002"}, sel.Schema.Fields())

	require.NoError(t, c.SetField("Q001", "Jane"))
	task, err := c.Submit(map[string]string{"002": "1 Main St"})
	require.NoError(t, err)
	require.Equal(t, Generating, c.State())
	require.True(t, c.Busy(KindGenerate))
	require.True(t, c.Apply(run(t, task)))

	require.Equal(t, DocumentReady, c.State())
	prev, ok := c.Preview()
	require.True(t, ok)
	require.Equal(t, "<p>done</p>", prev.HTML)
	require.Len(t, gen.got, 1)
	v, _ := gen.got[0].Value("001")
	require.Equal(t, "Jane", v)
}

func TestSelectServiceClearsEverything(t *testing.T) {
	c := New(newFixture(), &fakeGenerator{}, &fakeDownloader{}, nil)
	toFields(t, c)
	require.NoError(t, c.SetField("001", "Jane"))
	before := c.Selection().Generation

	task, err := c.SelectService(sid("S2"))
	require.NoError(t, err)
	sel := c.Selection()
	require.Greater(t, sel.Generation, before)
	require.True(t, sel.FormID.IsZero())
	require.Nil(t, sel.Schema)
	require.Empty(t, sel.Values)
	require.Nil(t, c.Forms())
	require.Equal(t, ServiceSelected, c.State())

	require.True(t, c.Apply(run(t, task)))
	require.Equal(t, FormsLoaded, c.State())
	require.Len(t, c.Forms(), 1)
}

func TestFieldValuesDoNotLeakAcrossForms(t *testing.T) {
	c := New(newFixture(), &fakeGenerator{}, &fakeDownloader{}, nil)
	toFields(t, c)
	require.NoError(t, c.SetField("001", "Jane"))

	task, err := c.SelectForm(sid("F2"), "")
	require.NoError(t, err)
	require.True(t, c.Apply(run(t, task)))
	sel := c.Selection()
	require.Equal(t, "Settlement", sel.FormName)
	require.Empty(t, sel.Values)
	require.ErrorIs(t, c.SetField("001", "x"), ErrUnknownField)
}

func TestStaleDetailsDiscarded(t *testing.T) {
	c := New(newFixture(), &fakeGenerator{}, &fakeDownloader{}, zaptest.NewLogger(t))
	require.True(t, c.Apply(run(t, c.LoadServices())))
	task, err := c.SelectService(sid("S1"))
	require.NoError(t, err)
	require.True(t, c.Apply(run(t, task)))

	taskA, err := c.SelectForm(sid("F1"), "")
	require.NoError(t, err)
	taskB, err := c.SelectForm(sid("F2"), "")
	require.NoError(t, err)

	outB := run(t, taskB)
	outA := run(t, taskA)
	require.True(t, c.Apply(outB))
	require.False(t, c.Apply(outA), "form A's late details must be dropped")

	sel := c.Selection()
	require.Equal(t, "F2", sel.FormID.String())
	require.Equal(t, []string{"005"}, sel.Schema.Fields())
	require.False(t, c.Busy(KindDetails))
}

func TestStaleFormsDiscardedAfterServiceSwitch(t *testing.T) {
	c := New(newFixture(), &fakeGenerator{}, &fakeDownloader{}, nil)
	require.True(t, c.Apply(run(t, c.LoadServices())))

	taskA, err := c.SelectService(sid("S1"))
	require.NoError(t, err)
	taskB, err := c.SelectService(sid("S2"))
	require.NoError(t, err)

	require.False(t, c.Apply(run(t, taskA)))
	require.Equal(t, ServiceSelected, c.State())
	require.True(t, c.Apply(run(t, taskB)))
	require.Equal(t, "Last Will", c.Forms()[0].Name)
}

func TestOlderServicesRefreshDropped(t *testing.T) {
	c := New(newFixture(), &fakeGenerator{}, &fakeDownloader{}, nil)
	first := c.LoadServices()
	second := c.LoadServices()
	require.False(t, c.Apply(run(t, first)))
	require.True(t, c.Apply(run(t, second)))
	require.Equal(t, ServicesLoaded, c.State())
}

func TestServiceLoadFailureKeepsPreviousList(t *testing.T) {
	cat := newFixture()
	c := New(cat, &fakeGenerator{}, &fakeDownloader{}, nil)
	require.True(t, c.Apply(run(t, c.LoadServices())))

	cat.err = errors.New("offline")
	require.True(t, c.Apply(run(t, c.LoadServices())))
	require.EqualError(t, c.Err(), "offline")
	require.Len(t, c.Services(), 2)
	require.Equal(t, ServicesLoaded, c.State())

	c.DismissError()
	require.NoError(t, c.Err())
	require.Equal(t, ServicesLoaded, c.State())
}

func TestFormsFailureReturnsToServicesLoaded(t *testing.T) {
	cat := newFixture()
	c := New(cat, &fakeGenerator{}, &fakeDownloader{}, zaptest.NewLogger(t))
	require.True(t, c.Apply(run(t, c.LoadServices())))

	cat.err = errors.New("offline")
	task, err := c.SelectService(sid("S1"))
	require.NoError(t, err)
	require.True(t, c.Apply(run(t, task)))
	require.EqualError(t, c.Err(), "offline")
	require.Equal(t, ServicesLoaded, c.State())
	require.False(t, c.Busy(KindForms))

	c.DismissError()
	require.Equal(t, ServicesLoaded, c.State())
	require.Len(t, c.Services(), 2)

	cat.err = nil
	task, err = c.SelectService(sid("S1"))
	require.NoError(t, err)
	require.True(t, c.Apply(run(t, task)))
	require.Equal(t, FormsLoaded, c.State())
}

func TestDetailsFailureReturnsToFormsLoaded(t *testing.T) {
	cat := newFixture()
	c := New(cat, &fakeGenerator{}, &fakeDownloader{}, zaptest.NewLogger(t))
	require.True(t, c.Apply(run(t, c.LoadServices())))
	task, err := c.SelectService(sid("S1"))
	require.NoError(t, err)
	require.True(t, c.Apply(run(t, task)))

	cat.err = errors.New("timeout")
	task, err = c.SelectForm(sid("F1"), "")
	require.NoError(t, err)
	require.True(t, c.Apply(run(t, task)))
	require.EqualError(t, c.Err(), "timeout")

	c.DismissError()
	require.NoError(t, c.Err())
	require.Equal(t, FormsLoaded, c.State())
	require.False(t, c.Busy(KindDetails))
	require.Len(t, c.Forms(), 2, "forms list survives the failure")
	sel := c.Selection()
	require.Equal(t, "S1", sel.ServiceID.String())
	require.True(t, sel.FormID.IsZero())

	cat.err = nil
	task, err = c.SelectForm(sid("F1"), "")
	require.NoError(t, err)
	require.True(t, c.Apply(run(t, task)))
	require.Equal(t, FieldsLoaded, c.State())
}

func TestSubmitRequiresEveryField(t *testing.T) {
	gen := &fakeGenerator{}
	c := New(newFixture(), gen, &fakeDownloader{}, nil)
	toFields(t, c)

	task, err := c.Submit(map[string]string{"001": "Jane", "002": "   "})
	require.Nil(t, task)
	var missing *MissingFieldsError
	require.ErrorAs(t, err, &missing)
	require.Equal(t, []string{"002"}, missing.Keys)
	require.Contains(t, err.Error(), "Address")
	require.Equal(t, FieldsLoaded, c.State())
	require.Empty(t, gen.got)
	require.Equal(t, "Jane", c.Selection().Value("001"))
}

func TestSubmitWithoutForm(t *testing.T) {
	c := New(newFixture(), &fakeGenerator{}, &fakeDownloader{}, nil)
	_, err := c.Submit(nil)
	require.ErrorIs(t, err, ErrNoForm)
	_, err = c.Download(nil)
	require.ErrorIs(t, err, ErrNoForm)
	_, err = c.SelectForm(sid("F1"), "")
	require.ErrorIs(t, err, ErrNoService)
	_, err = c.SelectService(catalog.ID{})
	require.ErrorIs(t, err, ErrNoService)
}

func TestGenerationFailureKeepsValues(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("backend down")}
	c := New(newFixture(), gen, &fakeDownloader{}, nil)
	toFields(t, c)

	task, err := c.Submit(map[string]string{"001": "Jane", "002": "1 Main St"})
	require.NoError(t, err)
	require.True(t, c.Apply(run(t, task)))

	require.Equal(t, FieldsLoaded, c.State())
	require.Error(t, c.Err())
	require.Equal(t, "Jane", c.Selection().Value("001"))
	_, ok := c.Preview()
	require.False(t, ok)
}

func TestDownloadDoesNotChangeState(t *testing.T) {
	dl := &fakeDownloader{}
	c := New(newFixture(), &fakeGenerator{}, dl, nil)
	toFields(t, c)

	task, err := c.Download(map[string]string{"001": "Jane"})
	require.NoError(t, err)
	require.Equal(t, FieldsLoaded, c.State())
	require.True(t, c.Apply(run(t, task)))
	require.Equal(t, FieldsLoaded, c.State())

	res, ok := c.LastDownload()
	require.True(t, ok)
	require.Equal(t, "out.txt", res.Filename)
	require.Equal(t, []string{"001", "002"}, dl.got[0].Keys())
	v, _ := dl.got[0].Value("002")
	require.Equal(t, "", v)
}

func TestDownloadFailureSetsOverlayOnly(t *testing.T) {
	c := New(newFixture(), &fakeGenerator{html: "x"}, &fakeDownloader{err: errors.New("disk full")}, nil)
	toFields(t, c)
	task, err := c.Submit(map[string]string{"001": "a", "002": "b"})
	require.NoError(t, err)
	require.True(t, c.Apply(run(t, task)))

	task, err = c.Download(nil)
	require.NoError(t, err)
	require.True(t, c.Apply(run(t, task)))
	require.Equal(t, DocumentReady, c.State())
	require.EqualError(t, c.Err(), "disk full")
}

func TestBack(t *testing.T) {
	c := New(newFixture(), &fakeGenerator{html: "x"}, &fakeDownloader{}, nil)
	toFields(t, c)
	task, err := c.Submit(map[string]string{"001": "a", "002": "b"})
	require.NoError(t, err)
	require.True(t, c.Apply(run(t, task)))

	var states []State
	for c.Back() {
		states = append(states, c.State())
	}
	want := []State{FieldsLoaded, FormsLoaded, ServicesLoaded}
	if diff := cmp.Diff(want, states); diff != "" {
		t.Fatalf("back sequence (-want +got):\n%s", diff)
	}
	require.Len(t, c.Services(), 2)
}

func TestBackCancelsPendingGeneration(t *testing.T) {
	c := New(newFixture(), &fakeGenerator{html: "x"}, &fakeDownloader{}, nil)
	toFields(t, c)
	task, err := c.Submit(map[string]string{"001": "a", "002": "b"})
	require.NoError(t, err)
	require.True(t, c.Back())
	require.False(t, c.Apply(run(t, task)))
	require.Equal(t, FieldsLoaded, c.State())
}

func TestNoFieldsFormCanGenerate(t *testing.T) {
	cat := newFixture()
	cat.details["F2"] = []catalog.Record{catalog.MetaRecord(catalog.FormMeta{FormID: sid("F2")})}
	gen := &fakeGenerator{}
	c := New(cat, gen, &fakeDownloader{}, nil)
	require.True(t, c.Apply(run(t, c.LoadServices())))
	task, _ := c.SelectService(sid("S1"))
	c.Apply(run(t, task))
	task, err := c.SelectForm(sid("F2"), "Settlement")
	require.NoError(t, err)
	require.True(t, c.Apply(run(t, task)))
	require.True(t, c.Selection().Schema.NoFields)

	task, err = c.Submit(nil)
	require.NoError(t, err)
	require.True(t, c.Apply(run(t, task)))
	require.Equal(t, DocumentReady, c.State())
}

// The end-to-end example from the product walkthrough, over real clients.
func TestPassportRenewalOverHTTP(t *testing.T) {
	var previewBody string
	mux := http.NewServeMux()
	mux.HandleFunc("/api/services", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"service_id":1,"service_name":"Passport"}]`)
	})
	mux.HandleFunc("/api/forms", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("service_id"))
		_, _ = io.WriteString(w, `[{"form_id":10,"form_name":"Renewal","service_id":1,"service_name":"Passport"}]`)
	})
	mux.HandleFunc("/api/form-details", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "10", r.URL.Query().Get("form_id"))
		_, _ = io.WriteString(w, `[{"form_id":10},{"id":"C1","name":"Personal"},{"ques_id":"Q001","category_id":"C1","ques_text":"Full name"}]`)
	})
	mux.HandleFunc("/api/final-content", func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		previewBody = string(b)
		_, _ = io.WriteString(w, `{"content":"<p>ok</p>"}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	tr := httpapi.New(srv.URL, time.Second, zaptest.NewLogger(t))
	c := New(catalog.NewClient(tr), document.NewPreviewer(tr), document.NewFormDownloader(tr, t.TempDir(), nil), zaptest.NewLogger(t))

	require.True(t, c.Apply(run(t, c.LoadServices())))
	svc := c.Services()[0]
	task, err := c.SelectService(svc.ID)
	require.NoError(t, err)
	require.True(t, c.Apply(run(t, task)))
	form := c.Forms()[0]
	task, err = c.SelectForm(form.ID, form.Name)
	require.NoError(t, err)
	require.True(t, c.Apply(run(t, task)))

	sch := c.Selection().Schema
	require.Len(t, sch.Groups, 1)
	require.Equal(t, "Personal", sch.Groups[0].Category.Name)
	require.Equal(t, "Q001", sch.Groups[0].Questions[0].ID.String())

	task, err = c.Submit(map[string]string{"001": "Jane Doe"})
	require.NoError(t, err)
	require.True(t, c.Apply(run(t, task)))

	require.JSONEq(t, `{"form_id":10,"001":"Jane Doe"}`, previewBody)
	prev, ok := c.Preview()
	require.True(t, ok)
	require.Equal(t, "<p>ok</p>", prev.HTML)
}
