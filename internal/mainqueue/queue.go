// Package mainqueue implements the main-thread work queue: a FIFO of
// closures enqueued from any goroutine (typically the IPC control
// handler) and drained exactly once per paint-traverse detour tick, the
// only point at which it is safe to touch the scripting runtime.
package mainqueue

import (
	"sync"

	"github.com/autorun-labs/autorun/internal/ffi"
)

// Job is one closure awaiting execution on the main (host) thread. It
// receives the realm's VM handle so it can safely call into the
// scripting runtime.
type Job func(vm ffi.VM)

// HookSnapshot captures, clears, and restores the scripting runtime's
// debug hook around each drained closure. Save records the hook in
// place before the closure runs; Clear then removes it, so a closure
// that never touches hooks runs with none installed. Restore is called
// unconditionally after the closure returns; an implementation that
// finds a hook installed at that point (the closure set its own) should
// log a warning and leave it in place rather than silently overwriting
// it with the saved snapshot.
type HookSnapshot interface {
	Save(vm ffi.VM) any
	Clear(vm ffi.VM)
	Restore(vm ffi.VM, snapshot any)
}

// Queue is a mutex-guarded FIFO. Unlike internal/chanbuf's unbounded
// channel buffer, the queue here is drained synchronously and entirely
// from the main thread's tick, never from a background goroutine, so a
// plain guarded slice is enough (no select-loop is needed).
type Queue struct {
	mu   sync.Mutex
	jobs []Job
	hook HookSnapshot
}

// New constructs an empty queue. hook may be nil if the host's debug
// hook never needs saving (e.g. during early bring-up before
// internal/ffi.Shim.SetHook is wired).
func New(hook HookSnapshot) *Queue {
	return &Queue{hook: hook}
}

// Enqueue appends job to the tail of the queue. Safe to call from any
// goroutine.
func (q *Queue) Enqueue(job Job) {
	q.mu.Lock()
	q.jobs = append(q.jobs, job)
	q.mu.Unlock()
}

// Len reports the number of jobs currently queued, for diagnostics
// (internal/debugmon.Stats.MainQueueLen).
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// DrainOne pops and runs at most one job: the queue drains and the
// closure executes at the next paint detour tick, one job per tick, so
// a single job can't starve the host's own per-frame work.
func (q *Queue) DrainOne(vm ffi.VM) {
	job, ok := q.pop()
	if !ok {
		return
	}

	var snapshot any
	if q.hook != nil {
		snapshot = q.hook.Save(vm)
		q.hook.Clear(vm)
	}
	defer func() {
		if q.hook != nil {
			q.hook.Restore(vm, snapshot)
		}
	}()

	job(vm)
}

func (q *Queue) pop() (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.jobs) == 0 {
		return nil, false
	}
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	return job, true
}
