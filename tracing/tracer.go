package tracing

import (
	"sync"

	"github.com/desimio/desim/sim"
)

// Tracer collects task traces for a single run. Handlers call it directly
// from within a dispatch (it is safe for concurrent use from the worker
// pool and from active components' goroutines alike), rather than
// through the hook mechanism the teacher uses for tracing - a handler
// that wants tracing already has a Tracer reference in hand, so there is
// no need for the extra indirection of a hook position per tracing verb.
type Tracer interface {
	StartTask(task Task)
	StepTask(id string, step TaskStep)
	EndTask(id string, endTime sim.SimTime)
}

// MemTracer is the default Tracer: it keeps every task in memory for the
// duration of the run and exposes the finished set through Tasks, which
// JSONWriter.Flush writes out.
// Unlike the teacher's per-backend tracers (dbtracer.go, mysqltracer.go),
// MemTracer has no notion of a live connection to flush against - it is
// just a guarded map, which is all a single run's worth of tasks needs.
type MemTracer struct {
	mu        sync.Mutex
	inflight  map[string]*Task
	completed []Task
}

// NewMemTracer creates an empty MemTracer.
func NewMemTracer() *MemTracer {
	return &MemTracer{inflight: make(map[string]*Task)}
}

// StartTask begins tracking task. A task with the same ID already in
// flight is replaced, matching the teacher's inflightTasks map semantics.
func (t *MemTracer) StartTask(task Task) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cp := task
	t.inflight[task.ID] = &cp
}

// StepTask appends step to the in-flight task named id. A step for a task
// that is not in flight (already ended, or never started) is silently
// dropped, the same tolerance the teacher's StepTask no-op shows.
func (t *MemTracer) StepTask(id string, step TaskStep) {
	t.mu.Lock()
	defer t.mu.Unlock()

	task, ok := t.inflight[id]
	if !ok {
		return
	}

	task.Steps = append(task.Steps, step)
}

// EndTask closes the in-flight task named id, stamping endTime, and moves
// it into the completed set. Ending a task that is not in flight is a
// no-op.
func (t *MemTracer) EndTask(id string, endTime sim.SimTime) {
	t.mu.Lock()
	defer t.mu.Unlock()

	task, ok := t.inflight[id]
	if !ok {
		return
	}

	delete(t.inflight, id)

	task.EndTime = endTime
	t.completed = append(t.completed, *task)
}

// Tasks returns every completed task recorded so far, in completion
// order. Tasks still in flight when Tasks is called are not included.
func (t *MemTracer) Tasks() []Task {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Task, len(t.completed))
	copy(out, t.completed)

	return out
}
