package document

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/jask/formdesk/internal/httpapi"
	"github.com/jask/formdesk/internal/logging"
)

const (
	finalFormPath = "/api/final-form"
	// formDataField is the form field carrying the JSON-encoded payload.
	formDataField = "formData"
	maxNameTries  = 1000
)

// DownloadResult describes a saved document.
type DownloadResult struct {
	Path        string
	Filename    string
	Bytes       int64
	ContentType string
}

// FormDownloader submits the payload the way a browser form post would and
// saves the returned attachment under dir.
type FormDownloader struct {
	t   *httpapi.Transport
	dir string
	log *zap.Logger
}

// NewFormDownloader saves into dir, creating it on first use.
func NewFormDownloader(t *httpapi.Transport, dir string, log *zap.Logger) *FormDownloader {
	return &FormDownloader{t: t, dir: dir, log: logging.OrNop(log).Named("download")}
}

// TriggerDownload fetches the final document for payload. Existing files are
// never overwritten; a " (n)" suffix is added instead.
func (d *FormDownloader) TriggerDownload(ctx context.Context, payload Payload) (DownloadResult, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return DownloadResult{}, fmt.Errorf("encode payload: %w", err)
	}
	resp, err := d.t.PostForm(ctx, "download document", finalFormPath, url.Values{formDataField: {string(raw)}})
	if err != nil {
		return DownloadResult{}, err
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	name := attachmentName(resp.Header.Get("Content-Disposition"))
	if name == "" {
		name = fallbackName(payload.FormName, contentType)
	}

	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return DownloadResult{}, fmt.Errorf("create download dir: %w", err)
	}
	f, err := createUnique(d.dir, name)
	if err != nil {
		return DownloadResult{}, fmt.Errorf("save download: %w", err)
	}
	n, err := io.Copy(f, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(f.Name())
		return DownloadResult{}, fmt.Errorf("save download: %w", err)
	}

	res := DownloadResult{Path: f.Name(), Filename: filepath.Base(f.Name()), Bytes: n, ContentType: contentType}
	d.log.Info("document saved", zap.String("path", res.Path), zap.Int64("bytes", n))
	return res, nil
}

func attachmentName(disposition string) string {
	if disposition == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(disposition)
	if err != nil {
		return ""
	}
	return safeName(params["filename"])
}

func fallbackName(formName, contentType string) string {
	base := safeName(formName)
	if base == "" {
		base = "document"
	}
	ext := ".bin"
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		if e, ok := preferredExt[mt]; ok {
			ext = e
		} else if exts, _ := mime.ExtensionsByType(mt); len(exts) > 0 {
			ext = exts[0]
		}
	}
	return base + ext
}

// preferredExt pins extensions where the system mime table lists several.
var preferredExt = map[string]string{
	"text/plain":      ".txt",
	"text/html":       ".html",
	"application/pdf": ".pdf",

	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": ".docx",
}

// safeName keeps only the final path element and drops characters that are
// awkward in filenames.
func safeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if name == "." || name == "/" || name == ".." {
		return ""
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		if r < 0x20 {
			return -1
		}
		return r
	}, name)
}

func createUnique(dir, name string) (*os.File, error) {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 0; i < maxNameTries; i++ {
		candidate := name
		if i > 0 {
			candidate = fmt.Sprintf("%s (%d)%s", stem, i, ext)
		}
		f, err := os.OpenFile(filepath.Join(dir, candidate), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("no free filename for %q in %s", name, dir)
}
