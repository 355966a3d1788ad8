// File: internal/usecase/fakes_test.go
package usecase

import (
	"context"
	"sync"

	"support-ticket-client/internal/domain/model"
	"support-ticket-client/internal/domain/ports/adapter"
	"support-ticket-client/internal/infra/worker"
)

// ---- Fakes ----

type submitCall struct {
	Subject string
	Text    string
}

// fakeBackend answers every Submit through reply; it records the calls it saw.
type fakeBackend struct {
	mu    sync.Mutex
	calls []submitCall
	reply func(ctx context.Context, subject, text string) (adapter.TicketReply, error)
}

func replyWith(text string) *fakeBackend {
	return &fakeBackend{reply: func(context.Context, string, string) (adapter.TicketReply, error) {
		return adapter.TicketReply{Text: text}, nil
	}}
}

func (f *fakeBackend) Submit(ctx context.Context, subject, text string) (adapter.TicketReply, error) {
	f.mu.Lock()
	f.calls = append(f.calls, submitCall{Subject: subject, Text: text})
	f.mu.Unlock()
	return f.reply(ctx, subject, text)
}

func (f *fakeBackend) Calls() []submitCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]submitCall(nil), f.calls...)
}

// fakeIdentity is a settable identity provider.
type fakeIdentity struct {
	mu   sync.Mutex
	user *model.Identity
	subs []func()
}

func (f *fakeIdentity) CurrentCredential() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.user == nil {
		return "", false
	}
	return "token-" + f.user.ID, true
}

func (f *fakeIdentity) CurrentUser() (*model.Identity, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.user == nil {
		return nil, false
	}
	cp := *f.user
	return &cp, true
}

func (f *fakeIdentity) OnUnauthenticated(fn func()) {
	f.mu.Lock()
	f.subs = append(f.subs, fn)
	f.mu.Unlock()
}

func (f *fakeIdentity) logout() {
	f.mu.Lock()
	f.user = nil
	subs := append([]func(){}, f.subs...)
	f.mu.Unlock()
	for _, fn := range subs {
		fn()
	}
}

// recordingNotifier captures dispatched handoffs.
type recordingNotifier struct {
	mu       sync.Mutex
	handoffs []*model.Handoff
}

func (r *recordingNotifier) Dispatch(h *model.Handoff) {
	r.mu.Lock()
	r.handoffs = append(r.handoffs, h)
	r.mu.Unlock()
}

func (r *recordingNotifier) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handoffs)
}

// inlinePool runs tasks on the caller's goroutine.
type inlinePool struct {
	err  error
	errs []error
}

func (p *inlinePool) Submit(task worker.Task) error {
	if p.err != nil {
		return p.err
	}
	p.errs = append(p.errs, task(context.Background()))
	return nil
}

type fakeSink struct {
	name string
	err  error

	mu        sync.Mutex
	delivered []*model.Handoff
}

func (s *fakeSink) Name() string { return s.name }

func (s *fakeSink) Deliver(ctx context.Context, h *model.Handoff) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	s.delivered = append(s.delivered, h)
	s.mu.Unlock()
	return nil
}

// snapLog returns an addressable pointer to a snapshot's message log so its
// pointer-receiver accessors can be called on the copy.
func snapLog(s model.ConversationSession) *model.MessageLog { return &s.Messages }
