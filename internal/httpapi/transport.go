// Package httpapi is the HTTP transport shared by the catalog, document and
// chat clients. Every failure leaves it as a *NetworkError; nothing retries.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jask/formdesk/internal/logging"
)

// RequestIDHeader carries the per-call id that also appears in client logs.
const RequestIDHeader = "X-Request-ID"

// maxErrorBody bounds how much of a failed response is kept for the error message.
const maxErrorBody = 512

// Transport issues requests against one backend base URL.
type Transport struct {
	baseURL string
	http    *http.Client
	log     *zap.Logger
}

// New returns a transport for baseURL. timeout applies per request; zero
// means no client-side timeout.
func New(baseURL string, timeout time.Duration, log *zap.Logger) *Transport {
	return &Transport{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		log:     logging.OrNop(log).Named("http"),
	}
}

// WithHTTPClient swaps the underlying client, mostly for tests.
func (t *Transport) WithHTTPClient(c *http.Client) *Transport {
	cp := *t
	cp.http = c
	return &cp
}

// BaseURL returns the backend root.
func (t *Transport) BaseURL() string { return t.baseURL }

// GetJSON performs GET path?query and decodes a JSON body into out.
func (t *Transport) GetJSON(ctx context.Context, op, path string, query url.Values, out any) error {
	u := t.url(path, query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return &NetworkError{Op: op, Method: http.MethodGet, URL: u, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	return t.doJSON(op, req, out)
}

// PostJSON sends body as JSON and decodes the JSON response into out.
func (t *Transport) PostJSON(ctx context.Context, op, path string, body, out any) error {
	u := t.url(path, nil)
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%s: encode body: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return &NetworkError{Op: op, Method: http.MethodPost, URL: u, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return t.doJSON(op, req, out)
}

// PostForm submits form as application/x-www-form-urlencoded, the way a
// browser form submission does, and hands back the successful response. The
// caller owns resp.Body.
func (t *Transport) PostForm(ctx context.Context, op, path string, form url.Values) (*http.Response, error) {
	u := t.url(path, nil)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &NetworkError{Op: op, Method: http.MethodPost, URL: u, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return t.do(op, req)
}

func (t *Transport) doJSON(op string, req *http.Request, out any) error {
	resp, err := t.do(op, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &NetworkError{Op: op, Method: req.Method, URL: req.URL.String(), StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func (t *Transport) do(op string, req *http.Request) (*http.Response, error) {
	id := uuid.NewString()
	req.Header.Set(RequestIDHeader, id)
	log := t.log.With(zap.String("op", op), zap.String("request_id", id), zap.String("method", req.Method), zap.String("path", req.URL.Path))

	start := time.Now()
	resp, err := t.http.Do(req)
	if err != nil {
		log.Warn("request failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return nil, &NetworkError{Op: op, Method: req.Method, URL: req.URL.String(), Err: err}
	}
	log.Debug("response", zap.Int("status", resp.StatusCode), zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		detail := readErrorDetail(resp.Body)
		log.Warn("non-success status", zap.Int("status", resp.StatusCode), zap.String("detail", detail))
		ne := &NetworkError{Op: op, Method: req.Method, URL: req.URL.String(), StatusCode: resp.StatusCode}
		if detail != "" {
			ne.Err = errors.New(detail)
		}
		return nil, ne
	}
	return resp, nil
}

func (t *Transport) url(path string, query url.Values) string {
	u := t.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// readErrorDetail pulls {"error": "..."} out of a failed response, falling
// back to the raw text.
func readErrorDetail(r io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		return body.Error
	}
	return strings.TrimSpace(string(raw))
}
