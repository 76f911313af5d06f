package sim

import (
	"fmt"
	"math/rand"
)

// mutation is one pending Store write recorded by an Effector.
type mutation struct {
	key   storeKey
	value Value
}

// Effector is the transactional side-effect buffer a Handler writes to.
// Nothing an Effector records - state mutations, outbound events, log
// lines - takes effect until the scheduler commits it, in Sequence order,
// after the entire tick's batch has been dispatched. A Handler that
// panics, or whose effector is rejected for a type or access violation,
// leaves the Store exactly as if it had never run.
type Effector struct {
	ownerID ComponentID
	now     SimTime
	rng     *rand.Rand

	mutations []mutation
	outbound  []pendingEvent
	logs      []LogRecord

	rejected *Fault
}

// pendingEvent is an outbound event recorded by an Effector, before the
// scheduler has assigned it a final Sequence at commit time.
type pendingEvent struct {
	name    string
	payload Value
	at      SimTime
	target  ComponentID
}

// newEffector creates the Effector a component's dispatch will write to.
// now is the tick's current SimTime, rng is the component's own derived
// RNG stream.
func newEffector(owner ComponentID, now SimTime, rng *rand.Rand) *Effector {
	return &Effector{ownerID: owner, now: now, rng: rng}
}

// Owner returns the component this effector was created for.
func (e *Effector) Owner() ComponentID { return e.ownerID }

// Set records a pending write to the calling component's own key. Writing
// a key owned by a different component is rejected at commit time as a
// StoreAccessViolation; Set always stamps the effector's own owner as the
// key's component, so that path is only reachable through direct struct
// construction, never through this API.
func (e *Effector) Set(key string, v Value) {
	e.mutations = append(e.mutations, mutation{
		key:   storeKey{cid: e.ownerID, key: key},
		value: v,
	})
}

// ScheduleEvent records an outbound event targeting target, to be
// delivered at e.now+delay. delay must be non-negative: a delay of zero
// schedules the event for the current simulated instant, picked up on the
// scheduler's next loop iteration rather than within the tick batch
// currently being dispatched, since that batch has already been drained
// from the queue. A negative delay is a SchedulerMisuse fault, rejecting
// the whole effector.
func (e *Effector) ScheduleEvent(delay SimDuration, target ComponentID, name string, payload Value) {
	if delay < 0 {
		e.rejected = &Fault{
			Kind:        SchedulerMisuse,
			ComponentID: e.ownerID,
			SimTime:     e.now,
			Message:     fmt.Sprintf("component %d scheduled %q with negative delay %d", e.ownerID, name, delay),
		}

		return
	}

	e.outbound = append(e.outbound, pendingEvent{
		name:    name,
		payload: payload,
		at:      e.now.Add(delay),
		target:  target,
	})
}

// Log records a log line at the given level, attributed to the calling
// component and the tick's current SimTime. The wall-clock timestamp is
// stamped at commit time, not here, so that it reflects when the line
// actually reached the sink rather than when the handler happened to run
// on its worker goroutine.
func (e *Effector) Log(level LogLevel, format string, args ...interface{}) {
	e.logs = append(e.logs, LogRecord{
		SimTime:     e.now,
		ComponentID: e.ownerID,
		Level:       level,
		Message:     fmt.Sprintf(format, args...),
	})
}

// RNG returns the component's own deterministic random source. Handlers
// must use this instead of math/rand's global functions, which would
// break run-to-run determinism under parallel dispatch.
func (e *Effector) RNG() *rand.Rand { return e.rng }
