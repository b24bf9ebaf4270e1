package http

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/melenae/task-tracker-app/internal/adapters/events"
	"github.com/melenae/task-tracker-app/internal/application"
)

// ListenerView exposes the inbound listener to the status endpoint.
type ListenerView interface {
	State() events.State
	Stats() events.Stats
}

// ReadinessCheck reports whether a dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

type Handler struct {
	service  *application.Service
	listener ListenerView
	checks   map[string]ReadinessCheck
	logger   *slog.Logger
}

func NewHandler(service *application.Service, listener ListenerView, checks map[string]ReadinessCheck, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Handler{service: service, listener: listener, checks: checks, logger: logger}
}

func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware(handler.logger))
	r.Use(loggingMiddleware(handler.logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { writeMessage(w, http.StatusOK, "ok") })
	r.Get("/readyz", handler.readiness)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/sync", func(r chi.Router) {
			r.Get("/status", handler.syncStatus)
			r.Get("/dead-letters", handler.listDeadLetters)
		})
		r.Route("/issues", func(r chi.Router) {
			r.Post("/", handler.createIssue)
			r.Get("/{id}", handler.getIssue)
			r.Put("/{id}", handler.updateIssue)
			r.Delete("/{id}", handler.deleteIssue)
			r.Post("/{id}/status", handler.changeStatus)
			r.Post("/{id}/comments", handler.addComment)
		})
	})
	return r
}
