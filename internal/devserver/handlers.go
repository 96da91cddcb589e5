package devserver

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/jask/formdesk/internal/database/repository"
)

// WriteError answers with {"error": msg}, the shape the clients decode.
func WriteError(w http.ResponseWriter, status int, msg string, log *zap.Logger) {
	if status >= http.StatusInternalServerError {
		log.Error("request failed", zap.Int("status", status), zap.String("error", msg))
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *server) healthz(w http.ResponseWriter, r *http.Request) {
	if _, err := s.services.Count(r.Context()); err != nil {
		WriteError(w, http.StatusServiceUnavailable, "database unavailable", s.log)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) listServices(w http.ResponseWriter, r *http.Request) {
	svcs, err := s.services.List(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error(), s.log)
		return
	}
	writeJSON(w, http.StatusOK, svcs)
}

func (s *server) listForms(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("service_id")
	if id == "" {
		WriteError(w, http.StatusBadRequest, "service_id is required", s.log)
		return
	}
	forms, err := s.forms.ListByService(r.Context(), id)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error(), s.log)
		return
	}
	writeJSON(w, http.StatusOK, forms)
}

// formDetails answers with one mixed array: the form row, then the
// categories its questions use, then the questions.
func (s *server) formDetails(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("form_id")
	if id == "" {
		WriteError(w, http.StatusBadRequest, "form_id is required", s.log)
		return
	}
	ctx := r.Context()

	out := []any{}
	form, err := s.forms.Get(ctx, id)
	switch {
	case errors.Is(err, repository.ErrNotFound):
	case err != nil:
		WriteError(w, http.StatusInternalServerError, err.Error(), s.log)
		return
	default:
		out = append(out, form)
	}

	cats, err := s.questions.CategoriesForForm(ctx, id)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error(), s.log)
		return
	}
	for _, c := range cats {
		out = append(out, c)
	}
	qs, err := s.questions.QuestionsForForm(ctx, id)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error(), s.log)
		return
	}
	for _, q := range qs {
		out = append(out, q)
	}
	writeJSON(w, http.StatusOK, out)
}

// loadAnswers resolves a payload against its form. It writes the error
// response itself and reports false on failure.
func (s *server) loadAnswers(w http.ResponseWriter, r *http.Request, p formPayload) (repository.Form, []answer, bool) {
	ctx := r.Context()
	form, err := s.forms.Get(ctx, p.FormID)
	if errors.Is(err, repository.ErrNotFound) {
		WriteError(w, http.StatusNotFound, "unknown form "+p.FormID, s.log)
		return repository.Form{}, nil, false
	}
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error(), s.log)
		return repository.Form{}, nil, false
	}
	qs, err := s.questions.QuestionsForForm(ctx, p.FormID)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error(), s.log)
		return repository.Form{}, nil, false
	}
	return form, resolveAnswers(qs, p.Values), true
}

func (s *server) finalContent(w http.ResponseWriter, r *http.Request) {
	p, err := s.payloads.Decode(r.Body)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error(), s.log)
		return
	}
	form, answers, ok := s.loadAnswers(w, r, p)
	if !ok {
		return
	}
	html, err := renderPreview(form, answers)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error(), s.log)
		return
	}
	s.metrics.Documents.WithLabelValues("preview").Inc()
	writeJSON(w, http.StatusOK, map[string]string{"content": html})
}

// finalForm accepts the payload either as a JSON body or as the formData
// field of a form post, and answers with the filled document as an attachment.
func (s *server) finalForm(w http.ResponseWriter, r *http.Request) {
	var (
		p   formPayload
		err error
	)
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/json" {
		p, err = s.payloads.Decode(r.Body)
	} else {
		raw := r.PostFormValue("formData")
		if raw == "" {
			WriteError(w, http.StatusBadRequest, "No form data provided", s.log)
			return
		}
		p, err = s.payloads.Decode(strings.NewReader(raw))
	}
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error(), s.log)
		return
	}
	form, answers, ok := s.loadAnswers(w, r, p)
	if !ok {
		return
	}

	body := renderDocument(form, answers)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": form.Name + "_filled.txt",
	}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
	s.metrics.Documents.WithLabelValues("download").Inc()
}

type chatRequest struct {
	UserChat string `json:"user_chat"`
}

func (s *server) chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body", s.log)
		return
	}
	if s.assistant == nil {
		WriteError(w, http.StatusServiceUnavailable, "assistant disabled", s.log)
		return
	}
	reply, err := s.assistant.Reply(r.Context(), req.UserChat)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error(), s.log)
		return
	}
	s.metrics.ChatReplies.Inc()
	writeJSON(w, http.StatusOK, map[string]string{"aiMessage": reply})
}
