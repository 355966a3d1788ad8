package adapter

import (
	"context"

	"support-ticket-client/internal/domain/model"
)

// EscalationSink receives the handoff of an escalated session for human support.
// Implementations must be idempotent per session ID.
type EscalationSink interface {
	Name() string
	Deliver(ctx context.Context, h *model.Handoff) error
}
