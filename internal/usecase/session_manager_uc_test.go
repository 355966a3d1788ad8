package usecase

import (
	"context"
	"testing"
	"time"

	"support-ticket-client/internal/domain/model"
	"support-ticket-client/internal/domain/ports/adapter"
	"support-ticket-client/internal/infra/logging"
)

func newTestManager(b adapter.TicketBackend, idp adapter.IdentityProvider, opts ...ControllerOption) *SessionManager {
	all := append([]ControllerOption{WithEscalationDelay(0)}, opts...)
	return NewSessionManager(NewControllerFactory(b, logging.Nop(), all...), idp, logging.Nop())
}

func TestSessionManager_ResetStartsFreshSession(t *testing.T) {
	m := newTestManager(replyWith("ok"), nil)
	defer m.Close()

	first := m.Current()
	openTicket(t, first)
	first.SendMessage(context.Background(), "more")

	next := m.Reset()
	if next == first || m.Current() != next {
		t.Fatal("reset must swap in a new controller")
	}
	if next.ID() == first.ID() {
		t.Fatal("new session must have a new id")
	}
	s := next.Snapshot()
	if s.Phase != model.PhaseCollectingTicket || s.Messages.Len() != 0 || s.AttemptCount != 0 {
		t.Fatalf("new session not in initial state: %+v", s)
	}

	// the old controller is closed and no longer accepts work
	if first.SendMessage(context.Background(), "late") {
		t.Fatal("replaced controller must reject sends")
	}
	if old := first.Snapshot(); old.AttemptCount != 2 {
		t.Fatalf("old session should be left as it was, got %d attempts", old.AttemptCount)
	}
}

func TestSessionManager_ResetDropsPendingEscalation(t *testing.T) {
	m := newTestManager(replyWith("ok"), nil, WithEscalationDelay(30*time.Millisecond))
	old := m.Current()
	openTicket(t, old)
	old.SendMessage(context.Background(), "one")
	old.SendMessage(context.Background(), "two")

	next := m.Reset()
	defer m.Close()

	time.Sleep(80 * time.Millisecond)
	if countText(snapLog(old.Snapshot()).All(), EscalationNotice) != 0 {
		t.Fatal("escalation notice applied to a discarded session")
	}
	if snapLog(next.Snapshot()).Len() != 0 {
		t.Fatal("escalation notice leaked into the new session")
	}
}

func TestSessionManager_ResetKeepsEscalationHandoff(t *testing.T) {
	notifier := &recordingNotifier{}
	m := newTestManager(replyWith("ok"), nil, WithEscalationDelay(30*time.Millisecond), WithHandoff(notifier))
	old := m.Current()
	openTicket(t, old)
	old.SendMessage(context.Background(), "one")
	old.SendMessage(context.Background(), "two")

	m.Reset()
	defer m.Close()

	time.Sleep(80 * time.Millisecond)
	if countText(snapLog(old.Snapshot()).All(), EscalationNotice) != 0 {
		t.Fatal("escalation notice applied to a discarded session")
	}
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.handoffs) != 1 {
		t.Fatalf("escalated session must still be handed off once, got %d", len(notifier.handoffs))
	}
	h := notifier.handoffs[0]
	if h.SessionID != old.ID() || h.Attempts != model.MaxAttempts {
		t.Fatalf("unexpected handoff: %+v", h)
	}
	if last := h.Transcript[len(h.Transcript)-1]; last.Sender != model.SenderAssistant || last.Text != "ok" {
		t.Fatalf("transcript should end with the last reply, got %+v", last)
	}
}

func TestSessionManager_ResetDiscardsInFlightReply(t *testing.T) {
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	backend := &fakeBackend{reply: func(ctx context.Context, subject, _ string) (adapter.TicketReply, error) {
		if subject == FollowUpSubject {
			started <- struct{}{}
			select {
			case <-release:
			case <-ctx.Done():
			}
		}
		return adapter.TicketReply{Text: "late reply"}, nil
	}}
	m := newTestManager(backend, nil)
	defer m.Close()
	old := m.Current()
	openTicket(t, old)

	done := make(chan bool, 1)
	go func() { done <- old.SendMessage(context.Background(), "slow") }()
	<-started
	next := m.Reset()
	close(release)

	if <-done {
		t.Fatal("reply for a replaced session must be discarded")
	}
	if countText(snapLog(old.Snapshot()).All(), "late reply") != 0 {
		t.Fatal("stale reply applied to the old session")
	}
	if snapLog(next.Snapshot()).Len() != 0 {
		t.Fatal("stale reply applied to the new session")
	}
}

func TestSessionManager_ResetOnUnauthenticated(t *testing.T) {
	idp := &fakeIdentity{user: &model.Identity{ID: "7"}}
	m := newTestManager(replyWith("ok"), idp, WithIdentity(idp))
	defer m.Close()

	first := m.Current()
	openTicket(t, first)
	idp.logout()

	if m.Current() == first {
		t.Fatal("logout should reset the session")
	}
	if snapLog(m.Current().Snapshot()).Len() != 0 {
		t.Fatal("new session should be empty")
	}
	if _, err := m.Current().CreateTicket(context.Background(), "a", "b"); err == nil {
		t.Fatal("new session must refuse to operate while unauthenticated")
	}
}
