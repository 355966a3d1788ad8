package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"support-ticket-client/internal/domain"
	"support-ticket-client/internal/domain/model"
	"support-ticket-client/internal/domain/ports/adapter"
	"support-ticket-client/internal/infra/logging"
	"support-ticket-client/internal/infra/worker"
)

func testHandoff() *model.Handoff {
	s := model.NewConversationSession("s1", "u1", time.Now())
	return model.NewHandoff(s.Clone(), escalationReason, time.Now())
}

func TestHandoffDispatcher_DeliversToEverySink(t *testing.T) {
	pool := &inlinePool{}
	ok := &fakeSink{name: "ok"}
	dup := &fakeSink{name: "dup", err: domain.ErrDuplicate}
	bad := &fakeSink{name: "bad", err: errors.New("connection refused")}
	d := NewHandoffDispatcher(pool, []adapter.EscalationSink{ok, dup, bad}, time.Second, logging.Nop())

	d.Dispatch(testHandoff())

	if len(ok.delivered) != 1 || ok.delivered[0].SessionID != "s1" {
		t.Fatalf("expected one delivery to ok sink, got %d", len(ok.delivered))
	}
	if len(pool.errs) != 3 {
		t.Fatalf("expected one task per sink, got %d", len(pool.errs))
	}
	if pool.errs[0] != nil || pool.errs[1] != nil {
		t.Fatalf("delivered and duplicate handoffs should succeed: %v", pool.errs)
	}
	if pool.errs[2] == nil {
		t.Fatal("failed sink should report its error to the pool")
	}
}

func TestHandoffDispatcher_DropsWhenPoolFull(t *testing.T) {
	sink := &fakeSink{name: "ok"}
	d := NewHandoffDispatcher(&inlinePool{err: worker.ErrQueueFull}, []adapter.EscalationSink{sink}, time.Second, logging.Nop())

	d.Dispatch(testHandoff())
	if len(sink.delivered) != 0 {
		t.Fatal("nothing should be delivered when the pool rejects the task")
	}
}

func TestHandoffDispatcher_WithPool(t *testing.T) {
	sink := &fakeSink{name: "ok"}
	pool := worker.NewPool(1, logging.Nop())
	pool.Start(context.Background())
	d := NewHandoffDispatcher(pool, []adapter.EscalationSink{sink}, time.Second, logging.Nop())

	c := NewConversationController(replyWith("ok"), logging.Nop(), WithEscalationDelay(0), WithHandoff(d))
	defer c.Close()
	openTicket(t, c)
	c.SendMessage(context.Background(), "one")
	c.SendMessage(context.Background(), "two")
	pool.Stop()

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.delivered) != 1 {
		t.Fatalf("expected one handoff, got %d", len(sink.delivered))
	}
	h := sink.delivered[0]
	if h.SessionID != c.ID() || h.Attempts != model.MaxAttempts || h.Subject != "Printer down" {
		t.Fatalf("unexpected handoff: %+v", h)
	}
	if len(h.Transcript) == 0 || h.Transcript[len(h.Transcript)-1].Sender != model.SenderAssistant {
		t.Fatal("handoff transcript should end with the last reply")
	}
}
