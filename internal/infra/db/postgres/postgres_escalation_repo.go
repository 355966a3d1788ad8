// File: internal/infra/db/postgres/postgres_escalation_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgconn"

	"support-ticket-client/internal/domain"
	"support-ticket-client/internal/domain/model"
	"support-ticket-client/internal/domain/ports/adapter"
	"support-ticket-client/internal/infra/security"
)

var _ adapter.EscalationSink = (*EscalationRepo)(nil)

const uniqueViolation = "23505"

// Execer is the subset of *pgxpool.Pool the repo needs.
type Execer interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
}

// EscalationRepo records escalated sessions in support_escalations.
// The transcript column holds JSON, sealed when an encryption key is configured.
type EscalationRepo struct {
	db     Execer
	sealer *security.EncryptionService
}

func NewEscalationRepo(db Execer, sealer *security.EncryptionService) *EscalationRepo {
	return &EscalationRepo{db: db, sealer: sealer}
}

const createEscalationsTable = `
CREATE TABLE IF NOT EXISTS support_escalations (
  session_id   TEXT PRIMARY KEY,
  user_id      TEXT NOT NULL DEFAULT '',
  subject      TEXT NOT NULL,
  description  TEXT NOT NULL,
  attempts     INT  NOT NULL,
  reason       TEXT NOT NULL,
  transcript   TEXT NOT NULL,
  escalated_at TIMESTAMPTZ NOT NULL,
  created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

// EnsureSchema creates the table when missing.
func (r *EscalationRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, createEscalationsTable); err != nil {
		return fmt.Errorf("create support_escalations: %w", err)
	}
	return nil
}

func (r *EscalationRepo) Name() string { return "postgres" }

func (r *EscalationRepo) Deliver(ctx context.Context, h *model.Handoff) error {
	transcript, err := r.sealer.SealJSON(h.Transcript)
	if err != nil {
		return fmt.Errorf("seal transcript: %w", err)
	}
	const q = `
INSERT INTO support_escalations (session_id, user_id, subject, description, attempts, reason, transcript, escalated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8);`
	_, err = r.db.Exec(ctx, q, h.SessionID, h.UserID, h.Subject, h.Description, h.Attempts, h.Reason, transcript, h.EscalatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("insert escalation: %w", err)
	}
	return nil
}
