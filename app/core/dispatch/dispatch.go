package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrStarted  = errors.New("dispatch: already started")
	ErrStopped  = errors.New("dispatch: stopped")
	ErrRejected = errors.New("dispatch: job rejected")
)

// Job is one unit of background work. Failed jobs are not re-queued
// here; retry is an explicit caller decision.
type Job struct {
	ID             string
	AttemptTimeout time.Duration
	Run            func(context.Context) error
}

// Dispatcher runs jobs on a bounded worker pool. Enqueue blocks when the
// buffer is full so callers exert backpressure instead of piling work up.
type Dispatcher struct {
	mu        sync.Mutex
	jobs      chan Job
	started   bool
	stopping  bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	nextID    atomic.Uint64
	inFlight  atomic.Int64
	completed atomic.Uint64
	failed    atomic.Uint64
}

type Stats struct {
	Started   bool   `json:"started"`
	Depth     int    `json:"depth"`
	Capacity  int    `json:"capacity"`
	Completed uint64 `json:"completed"`
	Failed    uint64 `json:"failed"`
}

func New(buffer int) *Dispatcher {
	if buffer <= 0 {
		buffer = 32
	}
	return &Dispatcher{jobs: make(chan Job, buffer)}
}

func (d *Dispatcher) Start(parent context.Context, workers int) error {
	if workers <= 0 {
		workers = 1
	}

	d.mu.Lock()
	if d.started {
		d.mu.Unlock()
		return ErrStarted
	}
	ctx, cancel := context.WithCancel(parent)
	d.cancel = cancel
	d.started = true
	d.stopping = false
	d.mu.Unlock()

	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx)
	}
	return nil
}

func (d *Dispatcher) Enqueue(ctx context.Context, job Job) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if job.Run == nil {
		return "", fmt.Errorf("%w: run callback is required", ErrRejected)
	}
	if job.ID == "" {
		job.ID = fmt.Sprintf("job-%d", d.nextID.Add(1))
	}

	d.mu.Lock()
	jobs := d.jobs
	stopping := d.stopping
	d.mu.Unlock()
	if stopping {
		return "", ErrStopped
	}

	select {
	case jobs <- job:
		return job.ID, nil
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %w", ErrRejected, ctx.Err())
	}
}

func (d *Dispatcher) Stats() Stats {
	d.mu.Lock()
	started := d.started
	d.mu.Unlock()

	return Stats{
		Started:   started,
		Depth:     len(d.jobs),
		Capacity:  cap(d.jobs),
		Completed: d.completed.Load(),
		Failed:    d.failed.Load(),
	}
}

// Stop drains queued and in-flight jobs, waiting up to the timeout
// before cancelling workers outright.
func (d *Dispatcher) Stop(timeout time.Duration) error {
	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return nil
	}
	cancel := d.cancel
	d.cancel = nil
	d.started = false
	d.stopping = true
	d.mu.Unlock()

	deadline := time.Now().Add(timeout)
	timedOut := false
	for {
		if len(d.jobs) == 0 && d.inFlight.Load() == 0 {
			break
		}
		if timeout > 0 && time.Now().After(deadline) {
			timedOut = true
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	d.wg.Wait()

	// stopping stays set: a stopped dispatcher does not accept new work.
	if timedOut {
		return fmt.Errorf("dispatch: stop timeout after %s", timeout)
	}
	return nil
}

func (d *Dispatcher) worker(ctx context.Context) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-d.jobs:
			d.inFlight.Add(1)
			d.runOnce(ctx, job)
			d.inFlight.Add(-1)
		}
	}
}

func (d *Dispatcher) runOnce(parent context.Context, job Job) {
	runCtx := parent
	cancel := func() {}
	if job.AttemptTimeout > 0 {
		runCtx, cancel = context.WithTimeout(parent, job.AttemptTimeout)
	}
	err := job.Run(runCtx)
	cancel()
	if err != nil {
		d.failed.Add(1)
		return
	}
	d.completed.Add(1)
}
