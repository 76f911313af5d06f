package sim

// Event is something the scheduler will dispatch to a Component at a given
// SimTime. Sequence is assigned once, at the moment the event is scheduled,
// and is never reassigned - it is the canonical tiebreaker for both
// per-tick dispatch order and commit order.
type Event struct {
	Name          string
	Payload       Value
	ScheduledTime SimTime
	Target        ComponentID
	Sequence      uint64
}

// makeEvent stamps an event with the given Sequence. Every production
// call site draws seq from Simulation.nextSequence (see scheduler.go),
// never from a package-level counter - Sequence is per-Simulation state,
// so that two Simulation values scheduling the same setup in the same
// order produce byte-identical Sequence numbers regardless of how many
// other Simulations have already run in the process.
func makeEvent(name string, payload Value, t SimTime, target ComponentID, seq uint64) Event {
	return Event{
		Name:          name,
		Payload:       payload,
		ScheduledTime: t,
		Target:        target,
		Sequence:      seq,
	}
}
