package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestGetJSONDecodesAndStampsRequestID(t *testing.T) {
	var gotID, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = r.Header.Get(RequestIDHeader)
		gotQuery = r.URL.RawQuery
		_, _ = io.WriteString(w, `{"name":"ok"}`)
	}))
	defer srv.Close()

	tr := New(srv.URL+"/", time.Second, zaptest.NewLogger(t))
	var out struct{ Name string }
	err := tr.GetJSON(context.Background(), "probe", "/api/thing", url.Values{"a": {"1"}}, &out)
	require.NoError(t, err)
	require.Equal(t, "ok", out.Name)
	require.NotEmpty(t, gotID)
	require.Equal(t, "a=1", gotQuery)
}

func TestNonSuccessStatusIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"error":"database is locked"}`)
	}))
	defer srv.Close()

	tr := New(srv.URL, time.Second, nil)
	err := tr.GetJSON(context.Background(), "list services", "/api/services", nil, &[]string{})

	var ne *NetworkError
	require.True(t, errors.As(err, &ne))
	require.Equal(t, http.StatusInternalServerError, ne.StatusCode)
	require.Contains(t, ne.Error(), "database is locked")
	require.True(t, IsNetworkError(err))
}

func TestTransportFailureIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	tr := New(addr, time.Second, nil)
	err := tr.PostJSON(context.Background(), "chat", "/api/chat", map[string]string{"user_chat": "hi"}, nil)

	var ne *NetworkError
	require.True(t, errors.As(err, &ne))
	require.Zero(t, ne.StatusCode)
	require.Error(t, ne.Unwrap())
}

func TestUndecodableBodyIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `<html>not json</html>`)
	}))
	defer srv.Close()

	tr := New(srv.URL, time.Second, nil)
	var out []string
	err := tr.GetJSON(context.Background(), "list", "/x", nil, &out)
	require.True(t, IsNetworkError(err))
}

func TestPostFormEncodesBody(t *testing.T) {
	var contentType, formData string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		_ = r.ParseForm()
		formData = r.PostForm.Get("formData")
		_, _ = io.WriteString(w, "file-bytes")
	}))
	defer srv.Close()

	tr := New(srv.URL, time.Second, nil)
	resp, err := tr.PostForm(context.Background(), "download", "/api/final-form", url.Values{"formData": {`{"form_id":"F1"}`}})
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	require.Equal(t, "application/x-www-form-urlencoded", contentType)
	require.Equal(t, `{"form_id":"F1"}`, formData)
	require.Equal(t, "file-bytes", string(body))
}
