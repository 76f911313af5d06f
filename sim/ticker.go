package sim

// Ticker is a convenience for components that need to act periodically
// rather than purely in reaction to events from other components. A
// handler built around a Ticker schedules its own next occurrence as part
// of handling the current one, which is what makes periodic behavior fall
// out of the same Effector-mediated commit discipline as everything else
// - there is no separate "clock" primitive cutting across the scheduler.
type Ticker struct {
	Name   string
	Period SimDuration
	Target ComponentID
}

// NewTicker creates a Ticker that re-fires Name as a self-addressed event
// every Period.
func NewTicker(name string, freq Freq, target ComponentID) Ticker {
	return Ticker{Name: name, Period: freq.Period(), Target: target}
}

// Arm schedules this ticker's first occurrence. Call it once, before
// Simulation.Run, typically from the same setup code that registers the
// owning component.
func (t Ticker) Arm(sim *Simulation, at SimTime) error {
	return sim.ScheduleAt(t.Name, Value{}, at, t.Target)
}

// Rearm schedules this ticker's next occurrence, one Period after the
// event currently being handled. Call it from inside the handler that
// receives the ticker's own events.
func (t Ticker) Rearm(eff *Effector) {
	eff.ScheduleEvent(t.Period, t.Target, t.Name, Value{})
}
