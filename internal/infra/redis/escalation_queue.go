package redis

import (
	"context"
	"fmt"
	"time"

	"support-ticket-client/internal/domain"
	"support-ticket-client/internal/domain/model"
	"support-ticket-client/internal/domain/ports/adapter"
	"support-ticket-client/internal/infra/security"
)

var _ adapter.EscalationSink = (*EscalationQueue)(nil)

// EscalationQueue stores each handoff under handoff:<session_id> and pushes
// the session id onto a list that human support tooling consumes.
type EscalationQueue struct {
	client   RedisClient
	queueKey string
	ttl      time.Duration
	sealer   *security.EncryptionService
}

func NewEscalationQueue(client RedisClient, queueKey string, ttl time.Duration, sealer *security.EncryptionService) *EscalationQueue {
	return &EscalationQueue{client: client, queueKey: queueKey, ttl: ttl, sealer: sealer}
}

func (q *EscalationQueue) Name() string { return "redis" }

func handoffKey(sessionID string) string { return "support:handoff:" + sessionID }

func (q *EscalationQueue) Deliver(ctx context.Context, h *model.Handoff) error {
	payload, err := q.sealer.SealJSON(h)
	if err != nil {
		return fmt.Errorf("seal handoff: %w", err)
	}
	ok, err := q.client.SetNX(ctx, handoffKey(h.SessionID), payload, q.ttl)
	if err != nil {
		return fmt.Errorf("store handoff: %w", err)
	}
	if !ok {
		return domain.ErrDuplicate
	}
	if err := q.client.RPush(ctx, q.queueKey, h.SessionID); err != nil {
		// leave no orphan record behind so a retry can enqueue again
		_ = q.client.Del(ctx, handoffKey(h.SessionID))
		return fmt.Errorf("enqueue handoff: %w", err)
	}
	return nil
}

// Load returns the stored handoff for sessionID.
func (q *EscalationQueue) Load(ctx context.Context, sessionID string) (*model.Handoff, error) {
	raw, err := q.client.Get(ctx, handoffKey(sessionID))
	if IsNil(err) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var h model.Handoff
	if err := q.sealer.OpenJSON(raw, &h); err != nil {
		return nil, fmt.Errorf("open handoff: %w", err)
	}
	return &h, nil
}
