package sim

import (
	"context"
	"fmt"
	"math/rand"
)

// ErrorKind classifies a Fault raised while running a simulation.
type ErrorKind int

// The recognized fault kinds.
const (
	// SchedulerMisuse covers programmer errors in how the engine itself is
	// used: scheduling an event for an unregistered component, scheduling
	// into the past, registering two components under the same name, etc.
	SchedulerMisuse ErrorKind = iota

	// StoreTypeViolation is raised when an effector writes a value whose
	// type does not match the type already fixed for that key.
	StoreTypeViolation

	// StoreAccessViolation is raised when an effector writes a key owned
	// by a different component than the one that produced the effector.
	StoreAccessViolation

	// HandlerPanic is raised when a Handler panics during dispatch. The
	// panic is recovered, converted to a Fault, and the offending
	// effector is discarded as if it had never run.
	HandlerPanic

	// QueueExhausted is not an error in itself - it is the StoppedReason
	// used when the event queue drains with no further work and no other
	// stop condition is what ended the run.
	QueueExhausted
)

func (k ErrorKind) String() string {
	switch k {
	case SchedulerMisuse:
		return "scheduler_misuse"
	case StoreTypeViolation:
		return "store_type_violation"
	case StoreAccessViolation:
		return "store_access_violation"
	case HandlerPanic:
		return "handler_panic"
	case QueueExhausted:
		return "queue_exhausted"
	default:
		return "unknown"
	}
}

// Fault describes one rejected effector or scheduler-level error.
// The offending effector is discarded, an error-level LogRecord is
// emitted, and the fault is appended to RunOutcome.Faults. A fault stops
// the run (with InternalError) only when it is a StoreAccessViolation
// under Simulation.StrictMode or a HandlerPanic whose component kind's
// PanicPolicy is PolicyAbort; every other fault leaves the run going.
type Fault struct {
	Kind        ErrorKind
	ComponentID ComponentID
	SimTime     SimTime
	Message     string
}

func (f Fault) Error() string {
	return fmt.Sprintf("%s: component %d at t=%d: %s", f.Kind, f.ComponentID, f.SimTime, f.Message)
}

// DispatchContext is what a Handler receives for one event. It exposes a
// read-only, tick-framed view of the Store plus an Effector the handler
// fills in to request mutations, outbound events, and log lines. None of
// those take effect until the scheduler commits the effector after the
// whole tick's batch has been dispatched.
//
// Ctx is non-nil only for Active components: it is cancelled when the
// run's context is cancelled or the simulation is shutting down, so a
// handler that blocks internally has something to select against. Passive
// handlers run on the shared worker pool and have no per-event
// cancellation signal beyond the batch's own WaitGroup barrier.
type DispatchContext struct {
	Event    Event
	Now      SimTime
	Snapshot *StoreSnapshot
	Effector *Effector
	RNG      *rand.Rand
	Ctx      context.Context
}

// Handler is the unit of component behavior: given one event and a
// dispatch context, it reads the snapshot and records its intended
// mutations, outbound events, and log lines on the supplied Effector. A
// Handler must not retain ctx.Snapshot or ctx.Effector past return, and
// must not perform any I/O whose outcome could vary between runs with the
// same seed.
type Handler func(ctx *DispatchContext) error

// StopCondition bounds how long Simulation.Run executes. Any field left at
// its zero value is treated as "no bound" except MaxEvents, where 0 also
// means unbounded (a run that must stop after zero events is not a
// meaningful request). At least one bound, or a non-nil Predicate, should
// be set or the run will only stop when the event queue drains.
type StopCondition struct {
	MaxSimTime  SimTime
	MaxWallClock SimDuration // wall-clock nanoseconds, despite the SimDuration type
	MaxEvents   uint64
	Predicate   func(snap *StoreSnapshot) bool
}

// StopReason records why Simulation.Run returned.
type StopReason string

// The recognized stop reasons.
const (
	TimeBound    StopReason = "time_bound"
	WallBound    StopReason = "wall_bound"
	EventBound   StopReason = "event_bound"
	Predicate    StopReason = "predicate"
	QueueEmpty   StopReason = "queue_empty"
	InternalError StopReason = "internal_error"
)

// RunOutcome summarizes one completed (or stopped) run. RunID is produced
// by rs/xid - it is non-deterministic and exists only to correlate a run's
// logs and traces after the fact; it never participates in dispatch
// ordering.
type RunOutcome struct {
	RunID            string
	StoppedReason    StopReason
	EventsDispatched uint64
	FinalSimTime     SimTime
	WallClockMS      int64
	Stragglers       []ComponentID
	Faults           []Fault
}
