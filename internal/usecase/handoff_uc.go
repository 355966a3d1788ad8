// File: internal/usecase/handoff_uc.go
package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"support-ticket-client/internal/domain"
	"support-ticket-client/internal/domain/model"
	"support-ticket-client/internal/domain/ports/adapter"
	"support-ticket-client/internal/infra/metrics"
	"support-ticket-client/internal/infra/worker"
)

// HandoffNotifier is told about every escalated session.
type HandoffNotifier interface {
	Dispatch(h *model.Handoff)
}

// TaskSubmitter is satisfied by *worker.Pool.
type TaskSubmitter interface {
	Submit(task worker.Task) error
}

var _ HandoffNotifier = (*HandoffDispatcher)(nil)

// HandoffDispatcher delivers escalation handoffs to every sink in the
// background. Delivery failures never reach the conversation.
type HandoffDispatcher struct {
	pool    TaskSubmitter
	sinks   []adapter.EscalationSink
	timeout time.Duration
	log     *zerolog.Logger
}

func NewHandoffDispatcher(pool TaskSubmitter, sinks []adapter.EscalationSink, timeout time.Duration, logger *zerolog.Logger) *HandoffDispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	l := logger.With().Str("component", "HandoffDispatcher").Logger()
	return &HandoffDispatcher{pool: pool, sinks: sinks, timeout: timeout, log: &l}
}

func (d *HandoffDispatcher) Dispatch(h *model.Handoff) {
	for _, sink := range d.sinks {
		sink := sink
		err := d.pool.Submit(func(ctx context.Context) error {
			return d.deliver(ctx, sink, h)
		})
		if err != nil {
			metrics.IncHandoff(sink.Name(), "dropped")
			d.log.Warn().Err(err).Str("sink", sink.Name()).Str("session_id", h.SessionID).Msg("handoff dropped")
		}
	}
}

func (d *HandoffDispatcher) deliver(ctx context.Context, sink adapter.EscalationSink, h *model.Handoff) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	err := sink.Deliver(ctx, h)
	switch {
	case err == nil:
		metrics.IncHandoff(sink.Name(), "delivered")
		d.log.Info().Str("sink", sink.Name()).Str("session_id", h.SessionID).Msg("handoff delivered")
		return nil
	case errors.Is(err, domain.ErrDuplicate):
		metrics.IncHandoff(sink.Name(), "duplicate")
		return nil
	default:
		metrics.IncHandoff(sink.Name(), "failed")
		return err
	}
}
