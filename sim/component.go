package sim

import (
	"context"
	"math/rand"
	"sync"
)

// ComponentInfo is the read-only view of a registered component exposed to
// introspection.
type ComponentInfo struct {
	ID   ComponentID
	Name string
	Kind ComponentKind
}

func (k ComponentKind) String() string {
	if k == Active {
		return "active"
	}

	return "passive"
}

// ComponentKind selects a registered component's runtime: Active
// components get a dedicated goroutine and process their own events one
// at a time in delivery order; Passive components are dispatched from a
// shared worker pool sized to GOMAXPROCS, with no guarantee that two
// events for the same passive component run on the same goroutine.
type ComponentKind int

// The two supported component runtimes.
const (
	Passive ComponentKind = iota
	Active
)

// component is the registry's internal record for one registered
// component. Handler is the behavior the engine dispatches events to.
// rng/rngMu is the component's private deterministic random stream;
// dispatchGroup only ever runs one of a component's events at a time, in
// Sequence order, so rngMu is never actually contended - it stays as a
// defensive invariant against a future dispatch path that forgets that
// rule, not as the thing making concurrent access safe.
type component struct {
	id          ComponentID
	name        string
	handlerKind ComponentKind
	handler     Handler

	rngMu sync.Mutex
	rng   *rand.Rand

	inbox    chan dispatchJob // capacity 1: non-nil only for Active components
	quit     chan struct{}
	finished chan struct{}
}

// dispatchJob is one unit of work handed to an active component's
// goroutine through its inbox. Passive components' events go to the
// worker pool as plain closures instead.
type dispatchJob struct {
	evt    Event
	snap   *StoreSnapshot
	ctx    context.Context
	result chan *Effector
}

// runHandler invokes c's handler under c's RNG lock, building the
// Effector the handler populates, and returns it (with any rejected
// fault already attached by the handler's calls into the Effector, or a
// HandlerPanic fault if the handler itself panicked).
func (c *component) runHandler(evt Event, snap *StoreSnapshot, ctx context.Context) (eff *Effector) {
	c.rngMu.Lock()
	defer c.rngMu.Unlock()

	eff = newEffector(c.id, evt.ScheduledTime, c.rng)

	defer func() {
		if r := recover(); r != nil {
			eff.rejected = &Fault{
				Kind:        HandlerPanic,
				ComponentID: c.id,
				SimTime:     evt.ScheduledTime,
				Message:     formatPanic(r),
			}
		}
	}()

	dctx := &DispatchContext{
		Event:    evt,
		Now:      evt.ScheduledTime,
		Snapshot: snap,
		Effector: eff,
		RNG:      c.rng,
		Ctx:      ctx,
	}

	if err := c.handler(dctx); err != nil {
		eff.rejected = &Fault{
			Kind:        HandlerPanic,
			ComponentID: c.id,
			SimTime:     evt.ScheduledTime,
			Message:     err.Error(),
		}
	}

	return eff
}

// runActive is the dedicated goroutine body for an Active component: it
// serially drains its inbox, one job at a time, for as long as the
// simulation runs.
func (c *component) runActive() {
	defer close(c.finished)

	for {
		select {
		case job, ok := <-c.inbox:
			if !ok {
				return
			}

			job.result <- c.runHandler(job.evt, job.snap, job.ctx)
		case <-c.quit:
			return
		}
	}
}

func formatPanic(r interface{}) string {
	if err, ok := r.(error); ok {
		return "panic: " + err.Error()
	}

	return "panic: " + toString(r)
}

func toString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}

	return "non-string panic value"
}

// workerPool dispatches passive-component jobs across a fixed number of
// goroutines, mirroring the teacher's GOMAXPROCS-sized parallel engine
// worker count.
type workerPool struct {
	jobs chan func()
	wg   sync.WaitGroup
}

func newWorkerPool(n int) *workerPool {
	if n <= 0 {
		n = 1
	}

	p := &workerPool{jobs: make(chan func(), n*4)}

	p.wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer p.wg.Done()

			for job := range p.jobs {
				job()
			}
		}()
	}

	return p
}

func (p *workerPool) submit(job func()) {
	p.jobs <- job
}

func (p *workerPool) close() {
	close(p.jobs)
	p.wg.Wait()
}
