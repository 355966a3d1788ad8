package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"support-ticket-client/internal/infra/logging"
)

func TestPool_RunsAndDrainsOnStop(t *testing.T) {
	p := NewPool(2, logging.Nop())
	p.Start(context.Background())

	var ran atomic.Int32
	for i := 0; i < 6; i++ {
		if err := p.Submit(func(ctx context.Context) error {
			ran.Add(1)
			return nil
		}); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}
	p.Stop()
	if ran.Load() != 6 {
		t.Fatalf("expected all queued tasks to run, got %d", ran.Load())
	}

	if err := p.Submit(func(context.Context) error { return nil }); !errors.Is(err, ErrStopped) {
		t.Fatalf("expected ErrStopped, got %v", err)
	}
	p.Stop() // idempotent
}

func TestPool_RejectsNilAndFull(t *testing.T) {
	p := NewPool(1, logging.Nop())
	if err := p.Submit(nil); !errors.Is(err, ErrNilTask) {
		t.Fatalf("expected ErrNilTask, got %v", err)
	}
	// not started: the buffer fills up
	var err error
	for i := 0; i < 10 && err == nil; i++ {
		err = p.Submit(func(context.Context) error { return nil })
	}
	if !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
}

func TestPool_TaskErrorDoesNotStopWorker(t *testing.T) {
	p := NewPool(1, logging.Nop())
	p.Start(context.Background())

	var ran atomic.Int32
	_ = p.Submit(func(context.Context) error { return errors.New("sink down") })
	_ = p.Submit(func(context.Context) error { ran.Add(1); return nil })
	p.Stop()
	if ran.Load() != 1 {
		t.Fatal("worker should keep going after a failed task")
	}
}
