package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// CredentialExpirer is satisfied by identity.Provider.
type CredentialExpirer interface {
	ExpireIfStale() bool
}

// CredentialExpiryWorker periodically logs the user out once the bearer credential expires.
type CredentialExpiryWorker struct {
	interval time.Duration
	expirer  CredentialExpirer
	log      *zerolog.Logger
}

func NewCredentialExpiryWorker(interval time.Duration, expirer CredentialExpirer, logger *zerolog.Logger) *CredentialExpiryWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	l := logger.With().Str("component", "CredentialExpiryWorker").Logger()
	return &CredentialExpiryWorker{
		interval: interval,
		expirer:  expirer,
		log:      &l,
	}
}

func (w *CredentialExpiryWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting credential expiry worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping credential expiry worker")
			return ctx.Err()
		case <-ticker.C:
			if w.expirer.ExpireIfStale() {
				w.log.Info().Msg("credential expired; user logged out")
			}
		}
	}
}
