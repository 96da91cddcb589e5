package devserver

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/jask/formdesk/internal/catalog"
	"github.com/jask/formdesk/internal/chat"
	"github.com/jask/formdesk/internal/database"
	"github.com/jask/formdesk/internal/document"
	"github.com/jask/formdesk/internal/httpapi"
	"github.com/jask/formdesk/internal/llm"
	"github.com/jask/formdesk/internal/schema"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dev.db")
	require.NoError(t, database.RunMigrations(path))
	db, err := database.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	seed, err := database.DefaultSeed()
	require.NoError(t, err)
	require.NoError(t, database.SeedDefaults(context.Background(), db, seed))

	kb, err := llm.DefaultKnowledgeBase()
	require.NoError(t, err)

	h, err := Routes(Dependencies{DB: db, Assistant: llm.NewKeywordProvider(kb), Log: zaptest.NewLogger(t)})
	require.NoError(t, err)
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func TestCatalogEndToEnd(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	c := catalog.NewClient(httpapi.New(srv.URL, time.Second, zaptest.NewLogger(t)))

	svcs, err := c.ListServices(ctx)
	require.NoError(t, err)
	require.Len(t, svcs, 4)
	require.Equal(t, "SVC001", svcs[0].ID.String())
	require.Equal(t, "Legal services related to divorce proceedings", svcs[0].Description)

	forms, err := c.ListForms(ctx, svcs[0].ID)
	require.NoError(t, err)
	require.Len(t, forms, 1)
	require.Equal(t, "Divorce Petition", forms[0].Name)
	require.Equal(t, "Divorce", forms[0].ServiceName)

	recs, err := c.FetchFormDetails(ctx, forms[0].ID)
	require.NoError(t, err)
	s := schema.Assemble(recs, zaptest.NewLogger(t))
	require.Empty(t, s.Diagnostics)
	require.Equal(t, "Divorce Petition", s.Title())
	require.Len(t, s.Groups, 2)
	require.Equal(t, "Personal Information", s.Groups[0].Category.Name)
	require.Equal(t, "Spouse Information", s.Groups[1].Category.Name)
	require.Equal(t, []string{"001", "002", "003", "004", "007"}, s.Fields())
}

func TestUnknownFormDetailsIsEmpty(t *testing.T) {
	srv := newTestServer(t)
	c := catalog.NewClient(httpapi.New(srv.URL, time.Second, nil))
	recs, err := c.FetchFormDetails(context.Background(), catalog.StringID("FRM999"))
	require.NoError(t, err)
	require.Empty(t, recs)
	require.True(t, schema.Assemble(recs, nil).NoFields)
}

func TestPreviewAndDownloadEndToEnd(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	tr := httpapi.New(srv.URL, time.Second, zaptest.NewLogger(t))

	payload := document.NewPayload(catalog.StringID("FRM002"), "Simple Will",
		[]string{"001", "002", "003"},
		map[string]string{"001": "Jane <Doe>", "002": "01/02/1980", "003": "1 Main St"})

	prev, err := document.NewPreviewer(tr).Generate(ctx, payload)
	require.NoError(t, err)
	require.Contains(t, prev.HTML, "Jane &lt;Doe&gt;")
	require.Contains(t, prev.Text, "- Full Name: Jane <Doe>")
	require.Contains(t, prev.Text, "- Date of Birth: 01/02/1980")

	dir := t.TempDir()
	res, err := document.NewFormDownloader(tr, dir, nil).TriggerDownload(ctx, payload)
	require.NoError(t, err)
	require.Equal(t, "Simple Will_filled.txt", res.Filename)
	body, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	require.Contains(t, string(body), "Address: 1 Main St")
	require.Contains(t, string(body), "Original Document: https://www.courts.gov.bc.ca/")
}

func TestFinalContentRejectsBadPayloads(t *testing.T) {
	srv := newTestServer(t)
	for name, body := range map[string]string{
		"missing form id":  `{"001":"x"}`,
		"non-string value": `{"form_id":"FRM001","001":5}`,
		"not json":         `form_id=FRM001`,
	} {
		t.Run(name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/api/final-content", "application/json", strings.NewReader(body))
			require.NoError(t, err)
			defer resp.Body.Close()
			require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}

	resp, err := http.Post(srv.URL+"/api/final-content", "application/json", strings.NewReader(`{"form_id":"FRM999"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestFinalFormAcceptsJSONBody(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Post(srv.URL+"/api/final-form", "application/json", strings.NewReader(`{"form_id":"FRM004","006":"Acme"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	require.Contains(t, string(body), "Business Name: Acme")

	empty, err := http.PostForm(srv.URL+"/api/final-form", nil)
	require.NoError(t, err)
	defer empty.Body.Close()
	require.Equal(t, http.StatusBadRequest, empty.StatusCode)
}

func TestChatEndToEnd(t *testing.T) {
	srv := newTestServer(t)
	s := chat.NewSession(chat.NewClient(httpapi.New(srv.URL, time.Second, nil)), nil)

	msg, ok := s.Send(context.Background(), "How do I set up an LLC?")
	require.True(t, ok)
	require.Equal(t, chat.Assistant, msg.Sender)
	require.Contains(t, msg.Text, "business documentation")
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/api/services")
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	require.Contains(t, string(body), `formdesk_http_requests_total{method="GET",route="/api/services",status="200"} 1`)
}
