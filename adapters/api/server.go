// Package api serves persisted runs over a read-only HTTP interface.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"zerofield/domain/core"
	"zerofield/domain/run"
	"zerofield/internal"
	apperrors "zerofield/internal/errors"
	"zerofield/ports"
)

const (
	defaultChainLimit = 1000
	maxChainLimit     = 10000
	defaultRunLimit   = 50
)

// Server routes HTTP requests to the run repository
type Server struct {
	router *chi.Mux
	repo   ports.RunRepository
	logger *internal.Logger
}

// NewServer creates a server. metrics controls whether /metrics is mounted.
func NewServer(repo ports.RunRepository, logger *internal.Logger, metrics bool) *Server {
	s := &Server{
		router: chi.NewRouter(),
		repo:   repo,
		logger: internal.OrDefault(logger),
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)

	s.router.Get("/health", s.handleHealth)
	s.router.Route("/runs", func(r chi.Router) {
		r.Get("/", s.handleListRuns)
		r.Get("/{id}", s.handleGetRun)
		r.Get("/{id}/summary", s.handleGetSummary)
		r.Get("/{id}/chain", s.handleGetChain)
	})
	if metrics {
		s.router.Handle("/metrics", promhttp.Handler())
	}
	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, apperrors.NotFound("route "+r.URL.Path))
	})
	return s
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("%s %s -> %d (%s) [%s]", r.Method, r.URL.Path, ww.Status(), time.Since(start), middleware.GetReqID(r.Context()))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultRunLimit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		s.writeError(w, err)
		return
	}
	filters := ports.RunFilters{Limit: limit, Offset: offset}
	if status := r.URL.Query().Get("status"); status != "" {
		st := run.Status(status)
		filters.Status = &st
	}

	runs, err := s.repo.ListRuns(r.Context(), filters)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"runs": runs, "count": len(runs)})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id, err := runID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	rec, err := s.repo.GetRun(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"manifest":    rec.Manifest,
		"stats":       rec.Stats,
		"summary":     rec.Summary,
		"diagnostics": rec.Diagnostics,
	})
}

func (s *Server) handleGetSummary(w http.ResponseWriter, r *http.Request) {
	id, err := runID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	summary, err := s.repo.GetSummary(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleGetChain(w http.ResponseWriter, r *http.Request) {
	id, err := runID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	limit, err := queryInt(r, "limit", defaultChainLimit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if limit > maxChainLimit {
		limit = maxChainLimit
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		s.writeError(w, err)
		return
	}

	rows, err := s.repo.GetChain(r.Context(), id, limit, offset)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"run_id":  id,
		"limit":   limit,
		"offset":  offset,
		"samples": rows,
	})
}

func runID(r *http.Request) (core.RunID, error) {
	id, err := core.ParseRunID(chi.URLParam(r, "id"))
	if err != nil {
		return "", apperrors.InvalidInput(err.Error())
	}
	return id, nil
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperrors.InvalidInput(key + " must be a non-negative integer")
	}
	return n, nil
}

// errorStatus maps domain and app errors to HTTP status codes
func errorStatus(err error) int {
	switch {
	case core.IsNotFoundError(err), apperrors.GetCode(err) == apperrors.CodeNotFound:
		return http.StatusNotFound
	case apperrors.GetCode(err) == apperrors.CodeInvalidInput,
		apperrors.GetCode(err) == apperrors.CodeValidationError:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := errorStatus(err)
	code := apperrors.GetCode(err)
	if errors.Is(err, core.ErrNotFound) {
		code = apperrors.CodeNotFound
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed: %v", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error(), "code": code})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
