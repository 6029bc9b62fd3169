package dispatch

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunsEnqueuedJob(t *testing.T) {
	d := New(16)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := d.Start(ctx, 1); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer d.Stop(200 * time.Millisecond)

	done := make(chan struct{}, 1)
	if _, err := d.Enqueue(ctx, Job{Run: func(context.Context) error {
		done <- struct{}{}
		return nil
	}}); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	select {
	case <-done:
	case <-time.After(300 * time.Millisecond):
		t.Fatal("expected job to run")
	}
}

func TestFailedJobIsNotRequeued(t *testing.T) {
	d := New(16)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := d.Start(ctx, 1); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer d.Stop(200 * time.Millisecond)

	var attempts atomic.Int32
	if _, err := d.Enqueue(ctx, Job{Run: func(context.Context) error {
		attempts.Add(1)
		return errors.New("always fail")
	}}); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	time.Sleep(100 * time.Millisecond)
	if got := attempts.Load(); got != 1 {
		t.Fatalf("expected exactly 1 attempt, got %d", got)
	}
	if stats := d.Stats(); stats.Failed != 1 {
		t.Fatalf("failed counter = %d, want 1", stats.Failed)
	}
}

func TestAttemptTimeoutCancelsJob(t *testing.T) {
	d := New(16)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := d.Start(ctx, 1); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer d.Stop(200 * time.Millisecond)

	finished := make(chan error, 1)
	if _, err := d.Enqueue(ctx, Job{
		AttemptTimeout: 20 * time.Millisecond,
		Run: func(runCtx context.Context) error {
			<-runCtx.Done()
			finished <- runCtx.Err()
			return nil
		},
	}); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	select {
	case err := <-finished:
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("expected deadline exceeded, got %v", err)
		}
	case <-time.After(300 * time.Millisecond):
		t.Fatal("expected timeout cancellation")
	}
}

func TestEnqueueReturnsWhenBufferIsFull(t *testing.T) {
	d := New(1)

	if _, err := d.Enqueue(context.Background(), Job{Run: func(context.Context) error { return nil }}); err != nil {
		t.Fatalf("first enqueue failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := d.Enqueue(ctx, Job{Run: func(context.Context) error { return nil }})
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("expected ErrRejected, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestEnqueueAfterStopIsRejected(t *testing.T) {
	d := New(4)
	ctx := context.Background()
	if err := d.Start(ctx, 1); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := d.Stop(200 * time.Millisecond); err != nil {
		t.Fatalf("stop failed: %v", err)
	}

	if _, err := d.Enqueue(ctx, Job{Run: func(context.Context) error { return nil }}); err == nil {
		t.Fatal("expected enqueue after stop to fail")
	}
}
