// File: internal/usecase/conversation_uc.go
package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"support-ticket-client/internal/domain"
	"support-ticket-client/internal/domain/model"
	"support-ticket-client/internal/domain/ports/adapter"
	"support-ticket-client/internal/infra/logging"
	"support-ticket-client/internal/infra/metrics"
)

const (
	FollowUpSubject     = "Follow-up"
	TicketFallbackReply = "Received your ticket."
	ChatFallbackReply   = "I understand your concern."
	ConnectivityNotice  = "Having trouble connecting to the support assistant. Please try again."
	EscalationNotice    = "Can't generate proper response after 3 attempts. Please contact human support."

	DefaultEscalationDelay = 1500 * time.Millisecond
	escalationReason       = "automated attempts exhausted"
)

// ConversationController owns one ticket's session and is its only mutator.
//
// Operations are serialized by opMu, which is held across the backend round
// trip. mu guards the session itself so Snapshot never waits on the network.
type ConversationController struct {
	opMu sync.Mutex

	mu              sync.RWMutex
	session         *model.ConversationSession
	closed          bool
	escalationTimer *time.Timer
	escalationSent  bool
	escalated       chan struct{}

	backend         adapter.TicketBackend
	identity        adapter.IdentityProvider
	handoff         HandoffNotifier
	escalationDelay time.Duration
	now             func() time.Time
	dev             bool
	log             *zerolog.Logger

	// lifetime is cancelled by Close; in-flight backend calls derive from it.
	lifetime context.Context
	cancel   context.CancelFunc
}

type ControllerOption func(*ConversationController)

// WithIdentity makes the controller refuse to operate without an authenticated user.
func WithIdentity(p adapter.IdentityProvider) ControllerOption {
	return func(c *ConversationController) { c.identity = p }
}

func WithHandoff(n HandoffNotifier) ControllerOption {
	return func(c *ConversationController) { c.handoff = n }
}

// WithEscalationDelay sets how long the escalation notice waits after the last
// reply. Zero appends it immediately.
func WithEscalationDelay(d time.Duration) ControllerOption {
	return func(c *ConversationController) {
		if d < 0 {
			d = 0
		}
		c.escalationDelay = d
	}
}

func WithClock(now func() time.Time) ControllerOption {
	return func(c *ConversationController) { c.now = now }
}

func WithDevMode(dev bool) ControllerOption {
	return func(c *ConversationController) { c.dev = dev }
}

func NewConversationController(backend adapter.TicketBackend, logger *zerolog.Logger, opts ...ControllerOption) *ConversationController {
	c := &ConversationController{
		backend:         backend,
		escalationDelay: DefaultEscalationDelay,
		now:             time.Now,
		escalated:       make(chan struct{}),
	}
	for _, o := range opts {
		o(c)
	}
	c.lifetime, c.cancel = context.WithCancel(context.Background())
	c.session = model.NewConversationSession(uuid.NewString(), "", c.now())

	l := logger.With().Str("component", "ConversationController").Logger()
	c.log = &l
	return c
}

// ID returns the session id. It never changes for a controller.
func (c *ConversationController) ID() string { return c.session.ID }

// Snapshot returns a copy of the session for presentation.
func (c *ConversationController) Snapshot() model.ConversationSession {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session.Clone()
}

// EscalationNotified is closed once the escalation notice has been appended.
func (c *ConversationController) EscalationNotified() <-chan struct{} {
	return c.escalated
}

// CreateTicket opens the ticket: the backend is consulted with the raw
// description and the session moves to active chat with one attempt used.
// Outside of ticket collection it does nothing and reports false.
func (c *ConversationController) CreateTicket(ctx context.Context, subject, description string) (bool, error) {
	defer logging.TraceDuration(c.log, "ConversationController.CreateTicket")()
	c.opMu.Lock()
	defer c.opMu.Unlock()

	ctx = c.scope(ctx)
	log := logging.With(ctx, c.log)

	c.mu.RLock()
	closed, phase := c.closed, c.session.Phase
	c.mu.RUnlock()
	if closed {
		return false, domain.ErrSessionClosed
	}
	if phase != model.PhaseCollectingTicket {
		log.Debug().Str("phase", string(phase)).Msg("create ticket ignored")
		return false, nil
	}
	user, err := c.authorize()
	if err != nil {
		metrics.IncTicket("unauthenticated")
		return false, err
	}
	if err := model.ValidateTicket(subject, description); err != nil {
		metrics.IncTicket("invalid")
		return false, err
	}

	reply, err := c.submit(ctx, "ticket", subject, description)
	if err != nil {
		if c.isClosed() {
			return false, domain.ErrSessionClosed
		}
		metrics.IncTicket("backend_error")
		log.Warn().Err(err).Msg("ticket submission failed")
		return false, fmt.Errorf("create ticket: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false, domain.ErrSessionClosed
	}
	if user != nil {
		c.session.UserID = user.ID
	}
	now := c.now()
	c.session.AddMessage(model.SenderUser, subject+": "+description, now)
	c.session.AddMessage(model.SenderAssistant, replyText(reply, TicketFallbackReply), now)
	if err := c.session.OpenTicket(subject, description); err != nil {
		return false, err
	}
	c.session.ConsumeAttempt()

	metrics.IncTicket("created")
	log.Info().
		Str("user_id", c.session.UserID).
		Str("subject", logging.Redact(subject, c.dev)).
		Str("backend_status", reply.Status).
		Msg("ticket created")
	return true, nil
}

// SendMessage runs one follow-up round trip. It reports false, changing
// nothing, when the session is not in active chat, the attempt budget is
// spent, text is blank or the user is unauthenticated. Backend failures are
// recorded in the log as a system notice and still consume the attempt.
func (c *ConversationController) SendMessage(ctx context.Context, text string) bool {
	defer logging.TraceDuration(c.log, "ConversationController.SendMessage")()
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if strings.TrimSpace(text) == "" {
		return false
	}
	ctx = c.scope(ctx)
	c.mu.Lock()
	if c.closed || !c.session.CanChat() {
		c.mu.Unlock()
		return false
	}
	if _, err := c.authorize(); err != nil {
		c.mu.Unlock()
		return false
	}
	c.session.AddMessage(model.SenderUser, text, c.now())
	c.mu.Unlock()

	log := logging.With(ctx, c.log)
	reply, err := c.submit(ctx, "follow_up", FollowUpSubject, text)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		log.Debug().Msg("discarding reply for replaced session")
		return false
	}
	switch {
	case err != nil:
		metrics.IncChatAttempt("failure")
		log.Warn().Err(err).Msg("follow-up submission failed")
		c.session.AddMessage(model.SenderSystem, ConnectivityNotice, c.now())
	case reply.Text == "":
		metrics.IncChatAttempt("fallback")
		c.session.AddMessage(model.SenderAssistant, ChatFallbackReply, c.now())
	default:
		metrics.IncChatAttempt("reply")
		c.session.AddMessage(model.SenderAssistant, reply.Text, c.now())
	}

	var handoff *model.Handoff
	if exhausted := c.session.ConsumeAttempt(); exhausted {
		c.session.Escalate()
		log.Info().Int("attempts", c.session.AttemptCount).Msg("attempts exhausted; escalating")
		// the handoff is owed even if the session is replaced before the notice shows
		handoff = model.NewHandoff(c.session.Clone(), escalationReason, c.now())
		metrics.IncEscalation()
		c.scheduleNoticeLocked()
	}
	c.mu.Unlock()

	if handoff != nil && c.handoff != nil {
		c.handoff.Dispatch(handoff)
	}
	return true
}

// Close discards the session: in-flight results and a pending escalation
// notice are dropped. Safe to call more than once.
func (c *ConversationController) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.escalationTimer != nil {
		c.escalationTimer.Stop()
	}
	c.mu.Unlock()
	c.cancel()
}

// scope tags ctx with the ids every log line of this session carries.
// Callers hold opMu, which also guards writes to UserID.
func (c *ConversationController) scope(ctx context.Context) context.Context {
	ctx = logging.WithSessID(ctx, c.session.ID)
	if c.session.UserID != "" {
		ctx = logging.WithUserID(ctx, c.session.UserID)
	}
	return ctx
}

func (c *ConversationController) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// authorize returns the current user, or nil when no identity provider is wired.
func (c *ConversationController) authorize() (*model.Identity, error) {
	if c.identity == nil {
		return nil, nil
	}
	u, ok := c.identity.CurrentUser()
	if !ok {
		return nil, domain.ErrUnauthenticated
	}
	return u, nil
}

// submit calls the backend with a context that also ends when the controller closes.
func (c *ConversationController) submit(ctx context.Context, call, subject, text string) (adapter.TicketReply, error) {
	callCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(c.lifetime, cancel)
	defer func() {
		stop()
		cancel()
	}()

	start := time.Now()
	reply, err := c.backend.Submit(callCtx, subject, text)
	metrics.ObserveBackendCall(call, time.Since(start), err == nil)
	return reply, err
}

// scheduleNoticeLocked appends the escalation notice now or after the
// configured delay. Caller holds mu. Close cancels a pending notice.
func (c *ConversationController) scheduleNoticeLocked() {
	if c.escalationDelay <= 0 {
		c.appendNoticeLocked()
		return
	}
	c.escalationTimer = time.AfterFunc(c.escalationDelay, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed {
			return
		}
		c.appendNoticeLocked()
	})
}

func (c *ConversationController) appendNoticeLocked() {
	if c.escalationSent {
		return
	}
	c.escalationSent = true
	c.session.AddMessage(model.SenderSystem, EscalationNotice, c.now())
	close(c.escalated)
}

func replyText(r adapter.TicketReply, fallback string) string {
	if r.Text == "" {
		return fallback
	}
	return r.Text
}
