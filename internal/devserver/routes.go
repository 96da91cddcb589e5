// Package devserver is a local implementation of the document backend, so
// the clients can run without the hosted service.
package devserver

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/jask/formdesk/internal/database/repository"
	"github.com/jask/formdesk/internal/llm"
	"github.com/jask/formdesk/internal/logging"
)

// Dependencies are the collaborators the handlers need.
type Dependencies struct {
	DB        *sql.DB
	Assistant llm.Provider
	Log       *zap.Logger
	Metrics   *Metrics
}

type server struct {
	services  *repository.ServiceRepo
	forms     *repository.FormRepo
	questions *repository.QuestionRepo
	assistant llm.Provider
	payloads  *payloadValidator
	metrics   *Metrics
	log       *zap.Logger
}

// Routes builds the HTTP surface the clients talk to.
func Routes(d Dependencies) (http.Handler, error) {
	pv, err := newPayloadValidator()
	if err != nil {
		return nil, err
	}
	if d.Metrics == nil {
		d.Metrics = NewMetrics()
	}
	s := &server{
		services:  repository.NewServiceRepo(d.DB),
		forms:     repository.NewFormRepo(d.DB),
		questions: repository.NewQuestionRepo(d.DB),
		assistant: d.Assistant,
		payloads:  pv,
		metrics:   d.Metrics,
		log:       logging.OrNop(d.Log).Named("devserver"),
	}

	r := chi.NewRouter()
	r.Use(RequestLogger(s.log))
	r.Use(s.metrics.Middleware)

	r.Get("/healthz", s.healthz)
	r.Handle("/metrics", s.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/services", s.listServices)
		r.Get("/forms", s.listForms)
		r.Get("/form-details", s.formDetails)
		r.Post("/final-content", s.finalContent)
		r.Post("/final-form", s.finalForm)
		r.Post("/chat", s.chat)
	})
	return r, nil
}

// Serve runs the backend on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, h http.Handler, log *zap.Logger) error {
	log = logging.OrNop(log)
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info("server stopped")
	return nil
}
