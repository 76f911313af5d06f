package analysis

import (
	"github.com/tebeka/atexit"

	"github.com/desimio/desim/sim"
)

// BufferAnalyzer hooks into a sim.Buffer's push/pop events and
// periodically reports the average buffer depth to a PerfLogger,
// adapted from the teacher's analysis.BufferAnalyzer. The teacher
// buckets by simulated time (VTimeInSec); a Buffer here has no notion of
// "now" of its own (it is a plain bookkeeping structure, not wired to
// the clock), so this version buckets by event count instead - one
// summarized window every sampleWindow push/pop events.
type BufferAnalyzer struct {
	sim.HookableBase

	perf         PerfLogger
	buf          sim.Buffer
	name         string
	sampleWindow int

	windowStart int
	samples     int
	sumLevel    int64
}

// NewBufferAnalyzer creates a BufferAnalyzer reporting buf's depth to
// perf in windows of sampleWindow push/pop events, and registers buf so
// the analyzer starts receiving HookPosBufPush/HookPosBufPop events
// immediately. A sampleWindow of 0 reports once, over the buffer's whole
// observed lifetime, when tebeka/atexit runs its handlers (atexit.Exit);
// a process that exits any other way never emits that report.
func NewBufferAnalyzer(name string, buf sim.Buffer, perf PerfLogger, sampleWindow int) *BufferAnalyzer {
	a := &BufferAnalyzer{
		perf:         perf,
		buf:          buf,
		name:         name,
		sampleWindow: sampleWindow,
	}

	buf.AcceptHook(a)
	atexit.Register(a.summarize)

	return a
}

// Func implements sim.Hook, sampling the buffer's depth on every push or
// pop.
func (a *BufferAnalyzer) Func(_ sim.HookCtx) {
	a.sumLevel += int64(a.buf.Size())
	a.samples++

	if a.sampleWindow > 0 && a.samples >= a.sampleWindow {
		a.summarize()
		a.reset()
	}
}

func (a *BufferAnalyzer) reset() {
	a.windowStart += a.samples
	a.samples = 0
	a.sumLevel = 0
}

// summarize emits one PerfEntry covering the samples accumulated in the
// current window. It is registered with tebeka/atexit so the final
// partial window is still reported when the process exits through
// atexit.Exit.
func (a *BufferAnalyzer) summarize() {
	if a.samples == 0 {
		return
	}

	a.perf.AddDataEntry(PerfEntry{
		Start:     sim.SimTime(a.windowStart),
		End:       sim.SimTime(a.windowStart + a.samples),
		Where:     a.name,
		What:      "buffer_depth",
		EntryType: "buffer",
		Value:     float64(a.sumLevel) / float64(a.samples),
		Unit:      "elements",
	})
}
