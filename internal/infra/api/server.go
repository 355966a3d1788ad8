package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"support-ticket-client/internal/domain"
	"support-ticket-client/internal/domain/model"
	"support-ticket-client/internal/usecase"
)

// Server exposes the active conversation session to the presentation layer.
type Server struct {
	sessions *usecase.SessionManager
	log      *zerolog.Logger
	metrics  bool
}

func NewServer(sessions *usecase.SessionManager, logger *zerolog.Logger, withMetrics bool) *Server {
	l := logger.With().Str("component", "api").Logger()
	return &Server{sessions: sessions, log: &l, metrics: withMetrics}
}

// Routes builds the router.
//
//	GET  /health
//	GET  /metrics
//	GET  /api/v1/session
//	POST /api/v1/session/reset
//	POST /api/v1/ticket     {"subject","description"}
//	POST /api/v1/messages   {"text"}
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID(), SessionID(func() string { return s.sessions.Current().ID() }), RequestLog(s.log), Recover(s.log))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	if s.metrics {
		r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/session", s.handleGetSession)
		r.Post("/session/reset", s.handleReset)
		r.Post("/ticket", s.handleCreateTicket)
		r.Post("/messages", s.handleSendMessage)
	})
	return r
}

type sessionView struct {
	model.ConversationSession
	MaxAttempts       int  `json:"max_attempts"`
	RemainingAttempts int  `json:"remaining_attempts"`
	CanSend           bool `json:"can_send"`
}

func newSessionView(s model.ConversationSession) sessionView {
	return sessionView{
		ConversationSession: s,
		MaxAttempts:         model.MaxAttempts,
		RemainingAttempts:   model.MaxAttempts - s.AttemptCount,
		CanSend:             s.CanChat(),
	}
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newSessionView(s.sessions.Current().Snapshot()))
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	c := s.sessions.Reset()
	writeJSON(w, http.StatusOK, newSessionView(c.Snapshot()))
}

type createTicketRequest struct {
	Subject     string `json:"subject"`
	Description string `json:"description"`
}

func (s *Server) handleCreateTicket(w http.ResponseWriter, r *http.Request) {
	var req createTicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	c := s.sessions.Current()
	created, err := c.CreateTicket(r.Context(), req.Subject, req.Description)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	code := http.StatusCreated
	if !created {
		code = http.StatusOK
	}
	writeJSON(w, code, operationResponse{Accepted: created, Session: newSessionView(c.Snapshot())})
}

type sendMessageRequest struct {
	Text string `json:"text"`
}

// operationResponse reports whether a ticket or message was taken; false means nothing changed.
type operationResponse struct {
	Accepted bool        `json:"accepted"`
	Session  sessionView `json:"session"`
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	c := s.sessions.Current()
	accepted := c.SendMessage(r.Context(), req.Text)
	writeJSON(w, http.StatusOK, operationResponse{Accepted: accepted, Session: newSessionView(c.Snapshot())})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrBackend):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrSessionClosed):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
