package sim

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/xid"
)

// pausePollInterval bounds how long Run's between-ticks pause gate sleeps
// before re-checking whether it has been unpaused or cancelled.
const pausePollInterval = 50 * time.Millisecond

// defaultShutdownGrace is how long Run waits for Active components'
// goroutines to exit after closing their quit channels, before reporting
// the remainder as stragglers. The teacher's engines have no equivalent
// concept - ParallelEngine.Run simply returns once its event channel
// drains - so this value is this repo's own choice for an ambient
// resilience concern a production scheduler needs.
const defaultShutdownGrace = 2 * time.Second

// PanicPolicy controls what Run does when a Handler panics.
type PanicPolicy int

const (
	// PolicyContinue discards the offending effector, records the fault,
	// and keeps the run going. Default for Passive components.
	PolicyContinue PanicPolicy = iota
	// PolicyAbort stops Run with StopReason InternalError as soon as the
	// tick that produced the panic finishes committing. Default for
	// Active components.
	PolicyAbort
)

// Simulation is the conductor: it owns the event queue, the Store, the
// component registry, and the worker pool, and drives the tick loop
// described in the engine's scheduling design - drain the batch at the
// queue's current minimum time, dispatch every event in that batch in
// parallel, then commit every resulting effector in Sequence order before
// advancing to the next batch.
type Simulation struct {
	HookableBase

	registry *registry
	store    *Store
	queue    EventQueue
	logSink  LogSink
	pool     *workerPool

	// seq is this Simulation's own Sequence counter. It is never a
	// package-level singleton - per SPEC_FULL.md §9's "global state ->
	// explicit context" rule, Sequence numbers are state owned by one
	// Simulation value, so two Simulations built with the same seed and
	// setup schedule assign identical Sequence numbers regardless of how
	// many other Simulations have already run in this process.
	seq atomic.Uint64

	// runStarted and runCompleted gate the build-then-run lifecycle: once
	// Run has begun, RegisterComponent refuses further registrations, and
	// once Run has returned, ScheduleAt refuses further scheduling. Both
	// are reported as SchedulerMisuse errors rather than panics, since
	// they are mistakes a caller can recover from (e.g. a scenario that
	// tries to re-run against a Simulation it already ran).
	runStarted   atomic.Bool
	runCompleted atomic.Bool

	masterSeed    uint64
	ShutdownGrace time.Duration
	paused        atomic.Bool

	// StrictMode escalates a StoreAccessViolation from "rejected effector,
	// run continues" to "abort the run with InternalError". Off by
	// default, matching the teacher's engines, which have no equivalent
	// concept of aborting on a single component's misbehavior.
	StrictMode bool

	panicMu     sync.Mutex
	panicPolicy map[ComponentKind]PanicPolicy
}

// WithPanicPolicy sets the PanicPolicy applied to HandlerPanic faults
// raised by components of the given kind. Call it before Run; it is not
// safe to call concurrently with a running simulation.
func (s *Simulation) WithPanicPolicy(kind ComponentKind, policy PanicPolicy) *Simulation {
	s.panicMu.Lock()
	defer s.panicMu.Unlock()

	s.panicPolicy[kind] = policy

	return s
}

func (s *Simulation) panicPolicyFor(kind ComponentKind) PanicPolicy {
	s.panicMu.Lock()
	defer s.panicMu.Unlock()

	return s.panicPolicy[kind]
}

// Pause asks Run to stop advancing between ticks until Continue is
// called. The current tick, if any is in flight, still runs to
// completion - pausing is only ever observed at a tick boundary, the same
// place stop conditions and context cancellation are checked.
func (s *Simulation) Pause() { s.paused.Store(true) }

// Continue releases a pause requested with Pause.
func (s *Simulation) Continue() { s.paused.Store(false) }

// Paused reports whether Pause has been called without a matching
// Continue.
func (s *Simulation) Paused() bool { return s.paused.Load() }

// Option configures a Simulation at construction time.
type Option func(*simOptions)

type simOptions struct {
	workers int
	queue   EventQueue
	logSink LogSink
	seed    uint64
}

// WithWorkers sets the passive worker-pool size at construction time. It
// defaults to runtime.GOMAXPROCS(0), mirroring the teacher's parallel
// engine default. Use Simulation.WithWorkerPoolSize to resize an existing
// Simulation instead.
func WithWorkers(n int) Option {
	return func(o *simOptions) { o.workers = n }
}

// WithEventQueue overrides the default binary-heap EventQueue, e.g. with
// NewInsertionQueue for workloads dominated by mostly-sorted small
// batches.
func WithEventQueue(q EventQueue) Option {
	return func(o *simOptions) { o.queue = q }
}

// WithLogSink attaches a LogSink. If omitted, log lines are discarded.
func WithLogSink(sink LogSink) Option {
	return func(o *simOptions) { o.logSink = sink }
}

// WithSeed sets the simulation's master RNG seed. Two simulations built
// with the same seed, the same registered components, and the same setup
// schedule produce bit-identical RunOutcomes apart from RunID (a fresh
// xid on every run) and the wall-clock fields, regardless of worker count.
func WithSeed(seed uint64) Option {
	return func(o *simOptions) { o.seed = seed }
}

// NewSimulation creates a Simulation ready for component registration.
func NewSimulation(opts ...Option) *Simulation {
	o := simOptions{workers: runtime.GOMAXPROCS(0)}
	for _, fn := range opts {
		fn(&o)
	}

	store := NewStore()

	sim := &Simulation{
		registry:      newRegistry(o.seed),
		store:         store,
		masterSeed:    o.seed,
		ShutdownGrace: defaultShutdownGrace,
		panicPolicy: map[ComponentKind]PanicPolicy{
			Passive: PolicyContinue,
			Active:  PolicyAbort,
		},
	}

	if o.queue != nil {
		sim.queue = o.queue
	} else {
		sim.queue = NewEventQueue()
	}

	if o.logSink != nil {
		sim.logSink = o.logSink
	} else {
		sim.logSink = discardLogSink{}
	}

	store.SetNameResolver(sim.registry.Name)
	sim.pool = newWorkerPool(o.workers)

	return sim
}

// WithWorkerPoolSize replaces the passive worker pool with one of size n.
// Call it before Run; it is not safe to call concurrently with a running
// simulation. Returns sim so it can be chained onto NewSimulation.
func (s *Simulation) WithWorkerPoolSize(n int) *Simulation {
	s.pool.close()
	s.pool = newWorkerPool(n)

	return s
}

// RegisterComponent registers a new component and returns its ComponentID.
// It fails with a SchedulerMisuse Fault if Run has already started -
// registration is a build-time step, not something safe to do against a
// running simulation.
func (s *Simulation) RegisterComponent(name string, kind ComponentKind, handler Handler) (ComponentID, error) {
	if s.runStarted.Load() {
		return 0, Fault{
			Kind:    SchedulerMisuse,
			Message: fmt.Sprintf("cannot register component %q: run has already started", name),
		}
	}

	return s.registry.Register(name, kind, handler), nil
}

// Store exposes the Store for introspection and test assertions. Handler
// code must never call this - it must go through DispatchContext.Snapshot
// and DispatchContext.Effector instead.
func (s *Simulation) Store() *Store { return s.store }

// Lookup resolves a registered component name to its ID.
func (s *Simulation) Lookup(name string) (ComponentID, bool) { return s.registry.Lookup(name) }

// NameOf resolves a registered component's ID to its display name, or ""
// if id is not registered.
func (s *Simulation) NameOf(id ComponentID) string { return s.registry.Name(id) }

// Names returns every registered component's name in registration order.
func (s *Simulation) Names() []string { return s.registry.Names() }

// ListComponents returns every registered component's public metadata, in
// registration order. It backs the introspection component listing.
func (s *Simulation) ListComponents() []ComponentInfo { return s.registry.Infos() }

// ScheduleAt enqueues an event directly, bypassing any effector. It is
// meant for pre-Run setup (seeding the initial event batch) and for
// tests; handler code schedules outbound events through
// Effector.ScheduleEvent instead. It fails with a SchedulerMisuse Fault if
// Run has already returned - there is no tick loop left to ever dispatch
// the event.
func (s *Simulation) ScheduleAt(name string, payload Value, at SimTime, target ComponentID) error {
	if s.runCompleted.Load() {
		return Fault{
			Kind:        SchedulerMisuse,
			ComponentID: target,
			SimTime:     at,
			Message:     fmt.Sprintf("cannot schedule %q: run has already completed", name),
		}
	}

	s.queue.Push(makeEvent(name, payload, at, target, s.nextSequence()))

	return nil
}

// nextSequence draws the next Sequence number from s's own counter.
func (s *Simulation) nextSequence() uint64 {
	return s.seq.Add(1)
}

// commitEffector applies one effector's pending state mutations through
// batch, then - only if the effector was accepted - assigns final
// sequence numbers to its outbound events and pushes them onto the queue,
// and forwards its log lines to the sink. Faults are appended to faults
// and logged at error level regardless of which path rejected the
// effector. It reports whether this fault should abort the run: a
// StoreAccessViolation under StrictMode, or a HandlerPanic whose
// component kind's PanicPolicy is PolicyAbort.
func (s *Simulation) commitEffector(batch *commitBatch, eff *Effector, faults *[]Fault) (abort bool) {
	if eff.rejected != nil {
		*faults = append(*faults, *eff.rejected)
		s.logSink.Record(LogRecord{
			SimTime:     eff.now,
			WallTimeNS:  nowWallNS(),
			ComponentID: eff.ownerID,
			Level:       LevelError,
			Message:     eff.rejected.Error(),
		})

		return s.shouldAbort(*eff.rejected)
	}

	if fault := batch.applyEffector(eff); fault != nil {
		*faults = append(*faults, *fault)
		s.logSink.Record(LogRecord{
			SimTime:     eff.now,
			WallTimeNS:  nowWallNS(),
			ComponentID: fault.ComponentID,
			Level:       LevelError,
			Message:     fault.Error(),
		})

		return s.shouldAbort(*fault)
	}

	for _, pe := range eff.outbound {
		s.queue.Push(Event{
			Name:          pe.name,
			Payload:       pe.payload,
			ScheduledTime: pe.at,
			Target:        pe.target,
			Sequence:      s.nextSequence(),
		})
	}

	for _, rec := range eff.logs {
		rec.WallTimeNS = nowWallNS()
		s.logSink.Record(rec)
	}

	return false
}

// shouldAbort decides whether fault should escalate to aborting the run,
// per §7's error-handling policy: StoreAccessViolation only escalates
// under StrictMode; HandlerPanic escalates per the offending component's
// kind's PanicPolicy; every other fault kind never aborts the run by
// itself.
func (s *Simulation) shouldAbort(fault Fault) bool {
	switch fault.Kind {
	case StoreAccessViolation:
		return s.StrictMode
	case HandlerPanic:
		c := s.registry.Get(fault.ComponentID)
		if c == nil {
			return false
		}

		return s.panicPolicyFor(c.handlerKind) == PolicyAbort
	default:
		return false
	}
}

// dispatchBatch partitions batch by target component - preserving each
// component's events in their relative batch order, which is already
// Sequence-ascending since batch comes from PopBatch - and dispatches one
// group per component. Distinct components' groups run concurrently, but
// within a single component's group events are run one at a time in
// Sequence order, never as independent racing goroutines, so a component
// that receives several events in the same tick still produces the same
// RNG draws and handler-visible ordering on every run regardless of
// goroutine scheduling.
func (s *Simulation) dispatchBatch(
	ctx context.Context,
	batch []Event,
	snap *StoreSnapshot,
	results []*Effector,
) {
	order := make([]ComponentID, 0, len(batch))
	groups := make(map[ComponentID][]int, len(batch))

	for i, evt := range batch {
		if _, ok := groups[evt.Target]; !ok {
			order = append(order, evt.Target)
		}

		groups[evt.Target] = append(groups[evt.Target], i)
	}

	var wg sync.WaitGroup
	wg.Add(len(order))

	for _, cid := range order {
		s.dispatchGroup(ctx, cid, batch, groups[cid], snap, &wg, results)
	}

	wg.Wait()
}

// dispatchGroup runs every index in idxs - all events targeting cid,
// already in Sequence order - against cid's handler one at a time,
// either on cid's own goroutine (Active) or a single worker-pool job
// (Passive), and stores each resulting Effector into results. It calls
// wg.Done() exactly once, whichever path it takes.
func (s *Simulation) dispatchGroup(
	ctx context.Context,
	cid ComponentID,
	batch []Event,
	idxs []int,
	snap *StoreSnapshot,
	wg *sync.WaitGroup,
	results []*Effector,
) {
	c := s.registry.Get(cid)
	if c == nil {
		defer wg.Done()

		for _, idx := range idxs {
			evt := batch[idx]
			results[idx] = &Effector{
				ownerID: evt.Target,
				now:     evt.ScheduledTime,
				rejected: &Fault{
					Kind:        SchedulerMisuse,
					ComponentID: evt.Target,
					SimTime:     evt.ScheduledTime,
					Message:     "event targets an unregistered component",
				},
			}
		}

		return
	}

	if c.handlerKind == Active {
		go func() {
			defer wg.Done()

			for _, idx := range idxs {
				job := dispatchJob{evt: batch[idx], snap: snap, ctx: ctx, result: make(chan *Effector, 1)}
				c.inbox <- job
				results[idx] = <-job.result
			}
		}()

		return
	}

	s.pool.submit(func() {
		defer wg.Done()

		for _, idx := range idxs {
			results[idx] = c.runHandler(batch[idx], snap, nil)
		}
	})
}

// Run drives the simulation until one of stop's bounds is reached, the
// event queue drains, or ctx is cancelled. Stop conditions and ctx are
// polled only between ticks, so a tick always completes once it starts.
func (s *Simulation) Run(ctx context.Context, stop StopCondition) (RunOutcome, error) {
	started := time.Now()
	runID := xid.New().String()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.runStarted.Store(true)
	s.registry.startActive()

	var (
		eventsDispatched uint64
		faults           []Fault
		lastTime         SimTime
	)

	finish := func(reason StopReason) RunOutcome {
		cancel()
		stragglers := s.registry.stopActive(s.ShutdownGrace)
		s.pool.close()
		s.runCompleted.Store(true)

		return RunOutcome{
			RunID:            runID,
			StoppedReason:    reason,
			EventsDispatched: eventsDispatched,
			FinalSimTime:     lastTime,
			WallClockMS:      time.Since(started).Milliseconds(),
			Stragglers:       stragglers,
			Faults:           faults,
		}
	}

	for {
		select {
		case <-ctx.Done():
			return finish(InternalError), ctx.Err()
		default:
		}

		for s.paused.Load() {
			select {
			case <-ctx.Done():
				return finish(InternalError), ctx.Err()
			case <-time.After(pausePollInterval):
			}
		}

		if s.queue.Len() == 0 {
			return finish(QueueEmpty), nil
		}

		nextTime := s.queue.Peek().ScheduledTime

		if stop.MaxSimTime > 0 && nextTime > stop.MaxSimTime {
			return finish(TimeBound), nil
		}

		if stop.MaxWallClock > 0 && SimDuration(time.Since(started)) > stop.MaxWallClock {
			return finish(WallBound), nil
		}

		if stop.MaxEvents > 0 && eventsDispatched >= stop.MaxEvents {
			return finish(EventBound), nil
		}

		if stop.Predicate != nil && stop.Predicate(s.store.Snapshot()) {
			return finish(Predicate), nil
		}

		batch := PopBatch(s.queue)
		lastTime = nextTime
		snap := s.store.Snapshot()

		results := make([]*Effector, len(batch))

		if s.NumHooks() > 0 {
			s.InvokeHook(HookCtx{Domain: s, Pos: HookPosBeforeDispatch, Item: batch, Detail: nextTime})
		}

		s.dispatchBatch(runCtx, batch, snap, results)

		if s.NumHooks() > 0 {
			s.InvokeHook(HookCtx{Domain: s, Pos: HookPosAfterDispatch, Item: results, Detail: nextTime})
		}

		cb := s.store.beginCommit()

		if s.NumHooks() > 0 {
			s.InvokeHook(HookCtx{Domain: s, Pos: HookPosBeforeCommit, Item: results, Detail: nextTime})
		}

		abort := false
		for _, eff := range results {
			if s.commitEffector(cb, eff, &faults) {
				abort = true
			}
		}
		cb.finalize()

		if s.NumHooks() > 0 {
			s.InvokeHook(HookCtx{Domain: s, Pos: HookPosAfterCommit, Item: results, Detail: nextTime})
		}

		eventsDispatched += uint64(len(batch))

		if abort {
			return finish(InternalError), nil
		}
	}
}
