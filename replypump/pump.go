// Package replypump implements the Reply Pump: a bounded, mutex-guarded
// queue of already-serialized reply scripts, flushed from the UI thread
// in FIFO order (spec §4.4).
//
// The mutex-guarded-slice shape is the same idiom github.com/bjaus/dispatch
// uses for its own small pieces of call-scoped state (see DESIGN.md);
// Silk adds the single-flight flush_scheduled flag spec §3/§4.4 require.
package replypump

import (
	"errors"
	"sync"
)

// ErrQueueFull is returned by Enqueue when the pump is already holding
// its maximum number of entries (DefaultMaxQueued unless WithMaxQueued
// overrides it). The caller (the UI-thread entry point) should log
// and drop rather than block — spec §4.4 never blocks the UI thread.
var ErrQueueFull = errors.New("replypump: queue full")

// DefaultMaxQueued bounds the pump so a runaway producer cannot grow
// memory without limit. 4096 in-flight replies is far beyond what any
// single webview frame will accumulate between UI-thread turns.
const DefaultMaxQueued = 4096

// ScheduleFunc asks the external collaborator to arrange exactly one
// future call to Flush on the UI thread (spec §4.4's schedule_on_ui).
type ScheduleFunc func(flush func())

// PostFunc evaluates one script on the UI thread (spec §4.4's
// post_script). The host guarantees this runs on the UI thread and does
// not re-enter the pump within the same stack.
type PostFunc func(script string)

// Pump is the Reply Pump.
type Pump struct {
	mu             sync.Mutex
	queue          []string
	flushScheduled bool
	maxQueued      int

	schedule ScheduleFunc
	post     PostFunc
}

// Option configures a Pump at construction time.
type Option func(*Pump)

// WithMaxQueued overrides DefaultMaxQueued.
func WithMaxQueued(n int) Option {
	return func(p *Pump) { p.maxQueued = n }
}

// New creates a Pump. schedule and post are the UI-thread collaborators
// described in spec §4.4; both must be non-nil.
func New(schedule ScheduleFunc, post PostFunc, opts ...Option) *Pump {
	p := &Pump{
		schedule:  schedule,
		post:      post,
		maxQueued: DefaultMaxQueued,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Enqueue appends script to the queue. If no flush is currently
// scheduled, it flips flushScheduled and asks the host to schedule one.
// Returns ErrQueueFull if the bound is exceeded; the caller should log
// and drop the reply rather than block the calling thread.
func (p *Pump) Enqueue(script string) error {
	p.mu.Lock()
	if len(p.queue) >= p.maxQueued {
		p.mu.Unlock()
		return ErrQueueFull
	}
	p.queue = append(p.queue, script)
	needsSchedule := !p.flushScheduled
	if needsSchedule {
		p.flushScheduled = true
	}
	p.mu.Unlock()

	if needsSchedule {
		p.schedule(p.Flush)
	}
	return nil
}

// Flush runs on the UI thread: it takes the lock, clears
// flushScheduled, drains the queue, and calls post for each entry in
// FIFO order. Entries enqueued while Flush is draining are not lost —
// they simply extend the next flush cycle, scheduled by the Enqueue
// call that follows flushScheduled being cleared (spec §4.4).
func (p *Pump) Flush() {
	p.mu.Lock()
	p.flushScheduled = false
	drained := p.queue
	p.queue = nil
	p.mu.Unlock()

	for _, script := range drained {
		p.post(script)
	}
}

// Len reports the number of scripts currently queued. Intended for
// diagnostics/tests; not part of the dispatch contract.
func (p *Pump) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}
