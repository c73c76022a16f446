// Package httpapi exposes the tutoring flow over HTTP and WebSocket.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/edubot/edubot/internal/content"
	"github.com/edubot/edubot/internal/flow"
	"github.com/edubot/edubot/internal/report"
)

// HealthCheck probes one dependency for the readiness endpoint.
type HealthCheck func(ctx context.Context) error

// Server wires the flow controller, content catalog, and report generator
// into an HTTP handler.
type Server struct {
	ctrl    *flow.Controller
	content content.Provider
	reports *report.Generator
	logger  *slog.Logger
	checks  map[string]HealthCheck
}

func New(ctrl *flow.Controller, provider content.Provider, reports *report.Generator, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		ctrl:    ctrl,
		content: provider,
		reports: reports,
		logger:  logger,
		checks:  make(map[string]HealthCheck),
	}
}

// AddCheck registers a named dependency probe for /readyz.
func (s *Server) AddCheck(name string, check HealthCheck) {
	s.checks[name] = check
}

// Routes builds the HTTP router.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/sessions", s.handleStartSession)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("POST /api/sessions/{id}/turns", s.handleTurn)
	mux.HandleFunc("GET /api/sessions/{id}/ws", s.handleSessionSocket)
	mux.HandleFunc("GET /api/topics", s.handleTopics)
	mux.HandleFunc("GET /api/students/{id}/report.xlsx", s.handleStudentReport)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /readyz", s.handleReadyz)
	return mux
}

type startRequest struct {
	StudentID string `json:"student_id"`
	Topic     string `json:"topic"`
	SessionID string `json:"session_id,omitempty"`
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.StudentID == "" || req.Topic == "" {
		s.writeError(w, http.StatusBadRequest, "student_id and topic are required")
		return
	}

	res, err := s.ctrl.Start(r.Context(), req.StudentID, req.Topic, req.SessionID)
	if err != nil {
		s.logger.Error("starting session failed", "student_id", req.StudentID, "topic", req.Topic, "error", err)
		s.writeError(w, http.StatusInternalServerError, "could not start session")
		return
	}
	s.writeJSON(w, http.StatusCreated, res)
}

type turnRequest struct {
	Message string `json:"message"`
}

func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req turnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	res, err := s.ctrl.Continue(r.Context(), id, req.Message)
	if err != nil {
		s.writeTurnError(w, id, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) writeTurnError(w http.ResponseWriter, id string, err error) {
	switch {
	case errors.Is(err, flow.ErrSessionNotFound):
		s.writeError(w, http.StatusNotFound, "session not found")
	case errors.Is(err, flow.ErrSessionBusy):
		s.writeError(w, http.StatusConflict, "session is processing another turn")
	default:
		s.logger.Error("processing turn failed", "session_id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "could not process turn")
	}
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sess, err := s.ctrl.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, flow.ErrSessionNotFound) {
			s.writeError(w, http.StatusNotFound, "session not found")
			return
		}
		s.logger.Error("loading session failed", "session_id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "could not load session")
		return
	}
	s.writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleTopics(w http.ResponseWriter, r *http.Request) {
	topics, err := s.content.Topics(r.Context())
	if err != nil {
		s.logger.Error("listing topics failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "could not list topics")
		return
	}
	if topics == nil {
		topics = []content.TopicInfo{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"topics": topics})
}

func (s *Server) handleStudentReport(w http.ResponseWriter, r *http.Request) {
	studentID := r.PathValue("id")
	f, err := s.reports.StudentWorkbook(r.Context(), studentID, 100)
	if err != nil {
		s.logger.Error("building report failed", "student_id", studentID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "could not build report")
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", studentID+"-sessions.xlsx"))
	if err := f.Write(w); err != nil {
		s.logger.Warn("writing report response failed", "student_id", studentID, "error", err)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	for name, check := range s.checks {
		if err := check(r.Context()); err != nil {
			s.logger.Warn("readiness check failed", "dependency", name, "error", err)
			s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
				"failed": name,
			})
			return
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("encoding response failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
