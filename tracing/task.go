// Package tracing is a lightweight, in-memory task tracer for a single
// simulation run, adapted from the teacher's SQL-backed tracer family
// (tracing/dbtracer.go, tracing/mysqltracer.go, tracing/mongodbtracer.go)
// and its Task/Tracer interfaces. Run-history persistence - the part of
// the teacher's design this package deliberately does not carry forward
// - belongs to a database, not to an in-process simulation run.
package tracing

import "github.com/desimio/desim/sim"

// TaskStep records one milestone reached while a task is in flight.
type TaskStep struct {
	Time sim.SimTime `json:"time"`
	What string      `json:"what"`
}

// Task is one traced unit of work: an event's processing, a multi-tick
// transaction, or any other span a component wants to make visible to
// post-hoc analysis.
type Task struct {
	ID        string      `json:"id"`
	ParentID  string      `json:"parent_id,omitempty"`
	Kind      string      `json:"kind"`
	What      string      `json:"what"`
	Where     string      `json:"where"`
	StartTime sim.SimTime `json:"start_time"`
	EndTime   sim.SimTime `json:"end_time"`
	Steps     []TaskStep  `json:"steps,omitempty"`
}
