package http

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alexandrecuer/postprocess/internal/observability"
	"github.com/alexandrecuer/postprocess/internal/process"
)

// maxBodySize bounds the settings document of a create or update request.
const maxBodySize = 1 << 20

// ProcessService is the process controller the API exposes.
type ProcessService interface {
	Descriptions() map[string]process.Description
	Create(ctx context.Context, userID int, name string, params map[string]string) (process.Item, error)
	Update(ctx context.Context, userID int, name string, params map[string]string) (process.Item, error)
	List(ctx context.Context, userID int) ([]process.ListedItem, error)
}

// Server exposes the process API with health, readiness, and metrics routes.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	service    ProcessService
	logger     *slog.Logger
}

// NewServer creates an HTTP server.
func NewServer(addr string, service ProcessService, ready sharedobs.ReadinessChecker, logger *slog.Logger) *Server {
	s := &Server{
		router:  chi.NewRouter(),
		service: service,
		logger:  logger,
	}
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)

	s.router.Get("/healthz", sharedobs.LivenessHandler())
	s.router.Get("/readyz", sharedobs.ReadinessHandler(ready))
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/processes", s.handleDescriptions)
		r.Get("/process/list", s.handleList)
		r.Post("/process/create", s.handleCreate)
		r.Post("/process/update", s.handleUpdate)
	})
	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the router, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleDescriptions(w http.ResponseWriter, _ *http.Request) {
	sharedobs.WriteJSON(w, http.StatusOK, s.service.Descriptions())
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}
	items, err := s.service.List(r.Context(), userID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, items)
}

type mutation func(ctx context.Context, userID int, name string, params map[string]string) (process.Item, error)

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	s.handleMutation(w, r, s.service.Create)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	s.handleMutation(w, r, s.service.Update)
}

// handleMutation reads the process name and owner from the query and the
// settings from the JSON body.
func (s *Server) handleMutation(w http.ResponseWriter, r *http.Request, fn mutation) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}
	name := r.URL.Query().Get("process")
	if name == "" {
		s.respondMessage(w, http.StatusBadRequest, "missing process name")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		s.respondMessage(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	params, err := process.DecodeParams(body)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	item, err := fn(r.Context(), userID, name, params)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "item": item})
}

func (s *Server) userID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(r.URL.Query().Get("userid"))
	if err != nil || id < 1 {
		s.respondMessage(w, http.StatusBadRequest, "userid must be numeric and more than 0")
		return 0, false
	}
	return id, true
}

// respondError maps controller errors to a status and writes the message the
// controller produced.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	msg := "internal error"
	var verr *process.ValidationError
	switch {
	case errors.As(err, &verr):
		status, msg = http.StatusBadRequest, verr.Msg
	case errors.Is(err, process.ErrInvalidItem):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, process.ErrUnknownProcess):
		status, msg = http.StatusNotFound, err.Error()
	case errors.Is(err, process.ErrNotRegistered):
		status, msg = http.StatusNotFound, err.Error()
	}

	logger := observability.FromContext(r.Context(), s.logger)
	if status >= http.StatusInternalServerError {
		logger.Error("request error", "path", r.URL.Path, "method", r.Method, "error", err)
	} else {
		logger.Info("request rejected", "path", r.URL.Path, "method", r.Method, "status", status, "error", err)
	}
	s.respondMessage(w, status, msg)
}

func (s *Server) respondMessage(w http.ResponseWriter, status int, msg string) {
	sharedobs.WriteJSON(w, status, map[string]any{"success": false, "message": msg})
}
