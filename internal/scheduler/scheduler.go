// Package scheduler runs named, priority-ordered tasks cooperatively on a
// single worker goroutine. Each task is gated by a delay; the callback's
// result decides whether the task is removed, re-armed, or run again on
// the next tick.
package scheduler

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrDuplicateTask is returned when adding a task whose name is taken.
var ErrDuplicateTask = errors.New("duplicate task name")

// Result is returned by a task callback to steer the task's lifecycle.
type Result int

const (
	// Done removes the task.
	Done Result = iota
	// Wait re-arms the delay from now.
	Wait
	// Cont runs the task again next tick with no delay gate.
	Cont
)

// State tells whether a task is waiting for its turn or currently running.
type State int

const (
	Waiting State = iota
	Running
)

// Func is a task callback. It receives its own task so periodic jobs can
// inspect or retune themselves.
type Func func(*Task) Result

// Task is one scheduled callback.
type Task struct {
	name     string
	priority int
	delay    time.Duration
	fn       Func

	lastRun time.Time
	noDelay bool // set by Cont: skip the delay gate once
	state   State
	seq     uint64 // insertion order, stabilizes the heap
	index   int    // heap bookkeeping
}

// Name returns the task's unique name.
func (t *Task) Name() string { return t.name }

// Priority returns the task's priority; lower runs first.
func (t *Task) Priority() int { return t.priority }

// Delay returns the task's current delay gate.
func (t *Task) Delay() time.Duration { return t.delay }

// SetDelay retunes the delay applied after the next Wait result.
func (t *Task) SetDelay(d time.Duration) { t.delay = d }

// State returns the task's lifecycle state.
func (t *Task) State() State { return t.state }

// taskHeap is a min-heap ordered by priority, then insertion order.
type taskHeap []*Task

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority < h[j].priority
	}
	return h[i].seq < h[j].seq
}

func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *taskHeap) Push(x any) {
	t := x.(*Task)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return t
}

// tickInterval is the cooperative cycle period.
const tickInterval = 10 * time.Millisecond

// Scheduler owns the task set and the worker loop.
type Scheduler struct {
	mu      sync.Mutex
	tasks   map[string]*Task
	heap    taskHeap
	nextSeq uint64
	now     func() time.Time // swapped in tests
}

// New creates an empty scheduler.
func New() *Scheduler {
	return &Scheduler{
		tasks: make(map[string]*Task),
		now:   time.Now,
	}
}

// Add registers a task. Lower priority runs earlier within a cycle; the
// callback first fires once delay has elapsed since Add. Name collisions
// are a hard error.
func (s *Scheduler) Add(name string, priority int, delay time.Duration, fn Func) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[name]; exists {
		return nil, fmt.Errorf("adding task %q: %w", name, ErrDuplicateTask)
	}

	t := &Task{
		name:     name,
		priority: priority,
		delay:    delay,
		fn:       fn,
		lastRun:  s.now(),
		seq:      s.nextSeq,
	}
	s.nextSeq++

	s.tasks[name] = t
	heap.Push(&s.heap, t)
	return t, nil
}

// Remove deletes a task by name. Removing an unknown task is an error.
func (s *Scheduler) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remove(name)
}

func (s *Scheduler) remove(name string) error {
	t, ok := s.tasks[name]
	if !ok {
		return fmt.Errorf("removing unknown task %q", name)
	}
	// Mid-tick the task may be parked outside the heap; the tick loop
	// notices the map deletion and drops it.
	if t.index < len(s.heap) && s.heap[t.index] == t {
		heap.Remove(&s.heap, t.index)
	}
	delete(s.tasks, name)
	return nil
}

// Has reports whether a task with the given name is scheduled.
func (s *Scheduler) Has(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tasks[name]
	return ok
}

// Len returns the number of scheduled tasks.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Run drives the worker loop until ctx is cancelled. On shutdown the task
// set is drained without running further callbacks.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.drain()
			return ctx.Err()
		case <-ticker.C:
			s.Tick()
		}
	}
}

// Tick runs one cooperative cycle: every waiting task, in priority order,
// whose delay has elapsed.
func (s *Scheduler) Tick() {
	s.mu.Lock()

	// Pop the heap for a stable priority ordering, then reinsert the
	// survivors. Cheaper than re-sorting the whole set every cycle once
	// removal is heap-managed too.
	ordered := make([]*Task, 0, len(s.heap))
	for s.heap.Len() > 0 {
		ordered = append(ordered, heap.Pop(&s.heap).(*Task))
	}

	now := s.now()
	kept := ordered[:0]
	for _, t := range ordered {
		if t.state != Waiting {
			kept = append(kept, t)
			continue
		}
		if !t.noDelay && now.Sub(t.lastRun) < t.delay {
			kept = append(kept, t)
			continue
		}

		t.state = Running
		s.mu.Unlock()
		res := s.runTask(t)
		s.mu.Lock()
		t.state = Waiting

		if _, ok := s.tasks[t.name]; !ok {
			// Removed while running.
			continue
		}

		switch res {
		case Done:
			delete(s.tasks, t.name)
		case Wait:
			t.noDelay = false
			t.lastRun = s.now()
			kept = append(kept, t)
		case Cont:
			t.noDelay = true
			kept = append(kept, t)
		default:
			slog.Error("task returned invalid result, removing", "task", t.name, "result", int(res))
			delete(s.tasks, t.name)
		}
	}

	for _, t := range kept {
		heap.Push(&s.heap, t)
	}
	s.mu.Unlock()
}

func (s *Scheduler) runTask(t *Task) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("task panicked, removing", "task", t.name, "panic", r)
			res = Done
		}
	}()
	return t.fn(t)
}

func (s *Scheduler) drain() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = make(map[string]*Task)
	s.heap = nil
}
