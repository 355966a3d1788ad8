package usecase

import (
	"sync/atomic"

	"github.com/rs/zerolog"

	"support-ticket-client/internal/domain/ports/adapter"
	"support-ticket-client/internal/infra/metrics"
)

// ControllerFactory builds a controller for a fresh session.
type ControllerFactory func() *ConversationController

// NewControllerFactory returns a factory that builds every controller with the same collaborators.
func NewControllerFactory(backend adapter.TicketBackend, logger *zerolog.Logger, opts ...ControllerOption) ControllerFactory {
	return func() *ConversationController {
		return NewConversationController(backend, logger, opts...)
	}
}

// SessionManager holds the active conversation and is the only component
// allowed to replace it.
type SessionManager struct {
	current    atomic.Pointer[ConversationController]
	newSession ControllerFactory
	log        *zerolog.Logger
}

// NewSessionManager starts the first session. When identity is non-nil the
// session is reset every time the user becomes unauthenticated.
func NewSessionManager(factory ControllerFactory, identity adapter.IdentityProvider, logger *zerolog.Logger) *SessionManager {
	l := logger.With().Str("component", "SessionManager").Logger()
	m := &SessionManager{newSession: factory, log: &l}
	m.current.Store(factory())
	if identity != nil {
		identity.OnUnauthenticated(func() { m.reset("unauthenticated") })
	}
	return m
}

// Current returns the active controller.
func (m *SessionManager) Current() *ConversationController {
	return m.current.Load()
}

// Reset discards the active session and swaps in a new one collecting a ticket.
func (m *SessionManager) Reset() *ConversationController {
	return m.reset("user")
}

func (m *SessionManager) reset(reason string) *ConversationController {
	next := m.newSession()
	prev := m.current.Swap(next)
	if prev != nil {
		prev.Close()
	}
	metrics.IncSessionReset(reason)
	ev := m.log.Info().Str("reason", reason).Str("session_id", next.ID())
	if prev != nil {
		ev = ev.Str("previous_session_id", prev.ID())
	}
	ev.Msg("session reset")
	return next
}

// Close closes the active session on shutdown.
func (m *SessionManager) Close() {
	if c := m.current.Load(); c != nil {
		c.Close()
	}
}
