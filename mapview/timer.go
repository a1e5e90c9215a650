package mapview

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// CancelFunc stops a scheduled callback. Calling it after the callback ran is a no-op.
type CancelFunc func()

// Scheduler runs delayed callbacks.
type Scheduler interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) CancelFunc
}

// Debouncer keeps at most one pending callback: each Trigger cancels the previous one.
type Debouncer struct {
	sched  Scheduler
	delay  time.Duration
	cancel CancelFunc
	gen    uint64
}

// NewDebouncer creates a debouncer firing delay after the last Trigger.
func NewDebouncer(sched Scheduler, delay time.Duration) *Debouncer {
	return &Debouncer{sched: sched, delay: delay}
}

// Trigger replaces any pending callback with fn.
func (d *Debouncer) Trigger(fn func()) {
	d.Stop()
	d.gen++
	gen := d.gen
	d.cancel = d.sched.AfterFunc(d.delay, func() {
		if gen != d.gen {
			return
		}
		d.cancel = nil
		fn()
	})
}

// Stop cancels the pending callback, if any.
func (d *Debouncer) Stop() {
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.gen++
}

// Pending reports whether a callback is waiting.
func (d *Debouncer) Pending() bool {
	return d.cancel != nil
}

// ========================================
// Wall-clock schedulers
// ========================================

// timerScheduler fires callbacks on timer goroutines. Only safe when the map is not
// driven from a Loop; use Loop.Scheduler otherwise.
type timerScheduler struct{}

func (timerScheduler) Now() time.Time { return time.Now() }

func (timerScheduler) AfterFunc(d time.Duration, fn func()) CancelFunc {
	t := time.AfterFunc(d, fn)
	return func() { t.Stop() }
}

// loopScheduler posts fired callbacks back onto a Loop so they run on its goroutine.
type loopScheduler struct {
	loop *Loop
}

func (s loopScheduler) Now() time.Time { return time.Now() }

func (s loopScheduler) AfterFunc(d time.Duration, fn func()) CancelFunc {
	var cancelled atomic.Bool
	t := time.AfterFunc(d, func() {
		s.loop.Post(func() {
			if !cancelled.Load() {
				fn()
			}
		})
	})
	return func() {
		cancelled.Store(true)
		t.Stop()
	}
}

// ========================================
// ManualScheduler
// ========================================

// ManualScheduler is a Scheduler whose clock only moves on Advance. Callbacks run on the
// goroutine calling Advance, in due-time order.
type ManualScheduler struct {
	mu     sync.Mutex
	now    time.Time
	seq    int
	timers []*manualTimer
}

type manualTimer struct {
	at        time.Time
	seq       int
	fn        func()
	cancelled bool
}

// NewManualScheduler starts the clock at start.
func NewManualScheduler(start time.Time) *ManualScheduler {
	return &ManualScheduler{now: start}
}

func (m *ManualScheduler) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *ManualScheduler) AfterFunc(d time.Duration, fn func()) CancelFunc {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	t := &manualTimer{at: m.now.Add(d), seq: m.seq, fn: fn}
	m.timers = append(m.timers, t)
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		t.cancelled = true
	}
}

// Advance moves the clock forward by d, running every callback that falls due.
func (m *ManualScheduler) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	m.mu.Unlock()

	for {
		t := m.next(target)
		if t == nil {
			break
		}
		t.fn()
	}

	m.mu.Lock()
	m.now = target
	m.mu.Unlock()
}

// next pops the earliest live timer due by target and moves the clock to it.
func (m *ManualScheduler) next(target time.Time) *manualTimer {
	m.mu.Lock()
	defer m.mu.Unlock()

	live := m.timers[:0]
	for _, t := range m.timers {
		if !t.cancelled {
			live = append(live, t)
		}
	}
	m.timers = live
	sort.Slice(m.timers, func(i, j int) bool {
		if m.timers[i].at.Equal(m.timers[j].at) {
			return m.timers[i].seq < m.timers[j].seq
		}
		return m.timers[i].at.Before(m.timers[j].at)
	})
	if len(m.timers) == 0 || m.timers[0].at.After(target) {
		return nil
	}
	t := m.timers[0]
	m.timers = m.timers[1:]
	m.now = t.at
	return t
}

// Pending is the number of live timers.
func (m *ManualScheduler) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.timers {
		if !t.cancelled {
			n++
		}
	}
	return n
}
