// Package api exposes the read-only HTTP surface over execution records.
// Writes only ever arrive through the bus; the API is for operators and the
// request ledger to inspect state.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/goliatone/go-orchestrator"
	"github.com/goliatone/go-orchestrator/store"
)

// Server serves the execution inspection endpoints.
type Server struct {
	store  store.Store
	logger orchestrator.Logger
}

type Option func(*Server)

func WithLogger(l orchestrator.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

func NewServer(st store.Store, opts ...Option) *Server {
	s := &Server{store: st}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.logger = orchestrator.LoggerWithFields(s.logger, map[string]any{"component": "api"})
	return s
}

// Router builds the chi routing tree.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/executions", func(r chi.Router) {
		r.Get("/", s.handleList)
		r.Get("/{id}", s.handleGet)
	})
	return r
}

type listEnvelope struct {
	Data    []*orchestrator.JobExecution `json:"data"`
	Total   int                          `json:"total"`
	Page    int                          `json:"page"`
	PerPage int                          `json:"per_page"`
}

type errorEnvelope struct {
	Error string `json:"error"`
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := s.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "execution not found")
			return
		}
		s.logger.Error("get execution %s: %v", id, err)
		s.writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := store.ListOptions{
		RequestID: q.Get("request_id"),
		Status:    orchestrator.Status(q.Get("status")),
		Page:      intParam(q.Get("page"), 1),
		PerPage:   intParam(q.Get("per_page"), 50),
	}
	if opts.Status != "" && !opts.Status.Valid() {
		s.writeError(w, http.StatusBadRequest, "unknown status filter")
		return
	}

	records, total, err := s.store.List(r.Context(), opts)
	if err != nil {
		s.logger.Error("list executions: %v", err)
		s.writeError(w, http.StatusInternalServerError, "listing failed")
		return
	}

	if opts.Page < 1 {
		opts.Page = 1
	}
	s.writeJSON(w, http.StatusOK, listEnvelope{
		Data:    records,
		Total:   total,
		Page:    opts.Page,
		PerPage: opts.PerPage,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("response encode: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorEnvelope{Error: msg})
}

func intParam(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
