// Package api exposes the session tracker over a small REST surface for the
// web frontend. All business rules live in the tracker; handlers only decode,
// delegate, and map error kinds to status codes.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dvaldes/worklog/internal/models"
	"github.com/dvaldes/worklog/internal/report"
	"github.com/dvaldes/worklog/internal/store"
	"github.com/dvaldes/worklog/internal/tracker"
)

// Server provides the REST API handlers.
type Server struct {
	store   store.Store
	tracker *tracker.Manager
	logger  *slog.Logger
}

// NewServer creates a new API server. A nil logger falls back to the default
// slog logger.
func NewServer(s store.Store, m *tracker.Manager, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{store: s, tracker: m, logger: logger}
}

// Router returns an http.Handler for the API routes.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/sessions", s.startSession)
	mux.HandleFunc("GET /api/v1/sessions", s.listSessions)
	mux.HandleFunc("GET /api/v1/sessions/{id}", s.getSession)
	mux.HandleFunc("POST /api/v1/sessions/{id}/pause", s.pauseSession)
	mux.HandleFunc("POST /api/v1/sessions/{id}/resume", s.resumeSession)
	mux.HandleFunc("POST /api/v1/sessions/{id}/finish", s.finishSession)

	mux.HandleFunc("POST /api/v1/entries", s.createEntry)

	mux.HandleFunc("GET /api/v1/report", s.buildReport)

	return corsMiddleware(s.logMiddleware(mux))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeTrackerError maps tracker failure kinds to HTTP status codes.
func writeTrackerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, tracker.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, tracker.ErrInvalidTransition), errors.Is(err, tracker.ErrOpenSessionLimit):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, tracker.ErrValidation):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// --- Sessions ---

type startRequest struct {
	CollaboratorID string `json:"collaborator_id"`
	ProjectID      string `json:"project_id"`
	ServiceID      string `json:"service_id"`
	Description    string `json:"description"`
	Actor          string `json:"actor"`
}

func (s *Server) startSession(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	sess, err := s.tracker.Start(r.Context(), tracker.StartInput{
		CollaboratorID: req.CollaboratorID,
		ProjectID:      req.ProjectID,
		ServiceID:      req.ServiceID,
		Description:    req.Description,
		Actor:          req.Actor,
	})
	if err != nil {
		writeTrackerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

type transitionRequest struct {
	Description string `json:"description"`
	Actor       string `json:"actor"`
}

func (s *Server) pauseSession(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, s.tracker.Pause)
}

func (s *Server) resumeSession(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, s.tracker.Resume)
}

func (s *Server) finishSession(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, s.tracker.Finish)
}

func (s *Server) transition(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id, description, actor string) (*models.Session, error)) {
	id := r.PathValue("id")
	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	sess, err := op(r.Context(), id, req.Description, req.Actor)
	if err != nil {
		writeTrackerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.tracker.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeTrackerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sessions, err := s.store.ListSessions(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

// --- Manual entries ---

type entryRequest struct {
	CollaboratorID string `json:"collaborator_id"`
	ProjectID      string `json:"project_id"`
	ServiceID      string `json:"service_id"`
	Date           string `json:"date"`
	Hours          int    `json:"hours"`
	Minutes        int    `json:"minutes"`
	Description    string `json:"description"`
	Actor          string `json:"actor"`
}

func (s *Server) createEntry(w http.ResponseWriter, r *http.Request) {
	var req entryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sess, err := s.tracker.CreateManualEntry(r.Context(), tracker.ManualEntryInput{
		CollaboratorID: req.CollaboratorID,
		ProjectID:      req.ProjectID,
		ServiceID:      req.ServiceID,
		Date:           date,
		Hours:          req.Hours,
		Minutes:        req.Minutes,
		Description:    req.Description,
		Actor:          req.Actor,
	})
	if err != nil {
		writeTrackerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

// --- Reports ---

func (s *Server) buildReport(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sessions, err := s.store.ListSessions(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report.Build(sessions, filter.DateFrom, filter.DateTo))
}

// --- Query parsing ---

func filterFromQuery(r *http.Request) (store.SessionFilter, error) {
	q := r.URL.Query()
	filter := store.SessionFilter{
		CollaboratorID:  q.Get("collaborator"),
		ProjectID:       q.Get("project"),
		NonFinishedOnly: q.Get("open") == "true",
		IncludeDeleted:  q.Get("include_deleted") == "true",
	}
	if v := q.Get("from"); v != "" {
		t, err := parseDate(v)
		if err != nil {
			return filter, err
		}
		filter.DateFrom = &t
	}
	if v := q.Get("to"); v != "" {
		t, err := parseDate(v)
		if err != nil {
			return filter, err
		}
		filter.DateTo = &t
	}
	return filter, nil
}

func parseDate(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD or RFC3339)", v)
	}
	return t, nil
}
