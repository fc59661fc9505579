// Package scheduler implements OrgLang's cooperative fiber scheduler: a
// single FIFO ready queue driving pump/sink pipeline tasks to completion
// with no preemption and no locks, matching the reference's single-threaded
// event loop.
package scheduler

import (
	"github.com/google/uuid"

	"orglang/internal/arena"
	"orglang/internal/bignum"
	"orglang/internal/runtimeconfig"
	"orglang/internal/value"
)

// ResumeFunc is a fiber's body: given the arena it is running in and its
// current opaque state, it either produces the next state (done=false, the
// fiber re-enqueues itself at the tail) or finishes (done=true).
type ResumeFunc func(a *arena.Arena, state value.Value) (next value.Value, done bool)

// Fiber is one schedulable unit of work. Parent is reserved for a future
// join operation and is not otherwise consulted by Run.
type Fiber struct {
	ID     uuid.UUID
	Resume ResumeFunc
	State  value.Value
	Parent *Fiber
	Arena  *arena.Arena
}

// Scheduler owns the single ready queue. It is not safe for concurrent use
// from multiple goroutines — by design, matching the reference's
// single-threaded cooperative model (see package doc).
type Scheduler struct {
	queue []*Fiber
}

// current is the process-wide scheduler instance Init attaches, mirroring
// the reference's thread-local-in-practice-process-wide "current fiber"
// context (see internal/bignum's CurrentArena, which this package drives).
var current *Scheduler

// Init creates a fresh Scheduler and attaches it as the process-wide
// current scheduler. a is accepted for symmetry with the reference's
// init(arena) signature — the returned Scheduler itself owns no arena;
// each Fiber carries its own. opts tunes the ready queue's initial
// capacity (runtimeconfig.WithSchedulerQueueCapacity); absent any, it
// preallocates runtimeconfig.DefaultSchedulerQueueCapacity slots.
func Init(a *arena.Arena, opts ...runtimeconfig.Option) *Scheduler {
	o := runtimeconfig.New(opts...)
	current = &Scheduler{queue: make([]*Fiber, 0, o.SchedulerQueueCapacity)}
	return current
}

// Current returns the process-wide scheduler attached by the most recent
// Init call, or nil if none has run yet.
func Current() *Scheduler {
	return current
}

// Spawn enqueues a new fiber at the tail of the ready queue and returns it.
func (s *Scheduler) Spawn(a *arena.Arena, fn ResumeFunc, state value.Value) *Fiber {
	f := &Fiber{ID: uuid.New(), Resume: fn, State: state, Arena: a}
	s.queue = append(s.queue, f)
	return f
}

// SpawnChild is Spawn with Parent set, reserved for a future join
// operation.
func (s *Scheduler) SpawnChild(a *arena.Arena, parent *Fiber, fn ResumeFunc, state value.Value) *Fiber {
	f := s.Spawn(a, fn, state)
	f.Parent = parent
	return f
}

// Pending reports the number of fibers currently queued.
func (s *Scheduler) Pending() int {
	return len(s.queue)
}

// Run drains the ready queue: dequeue the head fiber, set it as the current
// bignum arena, invoke its Resume, and — unless it reports done — re-enqueue
// it at the tail with its updated state. Run returns once the queue is
// empty.
//
// Ordering guarantee: if a fiber's Resume body spawns another fiber (e.g. a
// pump spawning the sink task for the value it just produced) before
// returning, that spawned fiber lands at the tail ahead of the spawning
// fiber's own re-enqueue — Run only re-enqueues after Resume returns — so a
// pump's sink for a given value is always scheduled before the pump's next
// turn, preserving per-pipeline emission order. Across independent pumps,
// only FIFO fairness is guaranteed.
func (s *Scheduler) Run() {
	for len(s.queue) > 0 {
		f := s.queue[0]
		s.queue = s.queue[1:]

		bignum.SetCurrentArena(f.Arena)
		next, done := f.Resume(f.Arena, f.State)
		if !done {
			f.State = next
			s.queue = append(s.queue, f)
		}
	}
}
