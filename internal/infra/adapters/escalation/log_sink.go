package escalation

import (
	"context"

	"github.com/rs/zerolog"

	"support-ticket-client/internal/domain/model"
	"support-ticket-client/internal/domain/ports/adapter"
	"support-ticket-client/internal/infra/logging"
)

var _ adapter.EscalationSink = (*LogSink)(nil)

// LogSink writes the handoff to the structured log. Used when no store is configured.
type LogSink struct {
	log *zerolog.Logger
	dev bool
}

func NewLogSink(logger *zerolog.Logger, dev bool) *LogSink {
	l := logger.With().Str("component", "EscalationLogSink").Logger()
	return &LogSink{log: &l, dev: dev}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Deliver(ctx context.Context, h *model.Handoff) error {
	logging.With(ctx, s.log).Warn().
		Str("session_id", h.SessionID).
		Str("user_id", h.UserID).
		Str("subject", logging.Redact(h.Subject, s.dev)).
		Int("attempts", h.Attempts).
		Int("messages", len(h.Transcript)).
		Str("reason", h.Reason).
		Time("escalated_at", h.EscalatedAt).
		Msg("ticket escalated to human support")
	return nil
}
