package mapview

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

// ErrLoopStopped is returned by Do once Run has returned.
var ErrLoopStopped = errors.New("loop stopped")

// Loop serialises all access to a Map on one goroutine. Every network message, pointer
// event and timer callback becomes one task, so a lookup-mutate-redraw sequence is never
// interleaved with another.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	stopped chan struct{}
	log     zerolog.Logger

	// OnFlush runs on the loop goroutine after every batch of tasks.
	OnFlush func()
}

// NewLoop creates a loop. Tasks queue up until Run is called.
func NewLoop(log zerolog.Logger) *Loop {
	return &Loop{
		wake:    make(chan struct{}, 1),
		stopped: make(chan struct{}),
		log:     log,
	}
}

// Scheduler returns a Scheduler whose callbacks run on this loop.
func (l *Loop) Scheduler() Scheduler {
	return loopScheduler{loop: l}
}

// Post enqueues fn without waiting. Safe from any goroutine, including the loop itself.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Do runs fn on the loop and waits for it. It must not be called from a loop task.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	l.Post(func() {
		defer close(done)
		fn()
	})
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.stopped:
		return ErrLoopStopped
	}
}

// Run processes tasks until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) {
	defer close(l.stopped)
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.wake:
		}
		for {
			l.mu.Lock()
			batch := l.queue
			l.queue = nil
			l.mu.Unlock()
			if len(batch) == 0 {
				break
			}
			for _, fn := range batch {
				l.run(fn)
			}
			if l.OnFlush != nil {
				l.run(l.OnFlush)
			}
		}
	}
}

// run executes one task. A panicking task is logged and the loop keeps going.
func (l *Loop) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error().Interface("panic", r).Msg("loop task panicked")
		}
	}()
	fn()
}
