package analysis

import (
	"sync"
	"time"

	"github.com/tebeka/atexit"

	"github.com/desimio/desim/sim"
)

// StoreAnalyzer periodically summarizes per-key write churn on a Store,
// adapted from the teacher's analysis.PerfAnalyzer (a generic periodic
// summarizer) applied here to this engine's Store.ChangeFeed instead of
// the teacher's port/buffer hook points. It runs its own goroutine
// reading the change feed, so it samples on wall-clock ticks rather than
// simulated ticks - acceptable for a metrics side channel that never
// feeds back into dispatch.
type StoreAnalyzer struct {
	feed   sim.ChangeFeed
	perf   PerfLogger
	period time.Duration

	mu       sync.Mutex
	counts   map[string]int64
	stop     chan struct{}
	stopped  chan struct{}
	closeOne sync.Once
}

// NewStoreAnalyzer subscribes to store's change feed matching pattern
// (path.Match syntax against "<component-name>/<key>") and starts
// reporting write counts per key to perf every period.
func NewStoreAnalyzer(store *sim.Store, pattern string, perf PerfLogger, period time.Duration) *StoreAnalyzer {
	a := &StoreAnalyzer{
		feed:    store.Subscribe(pattern),
		perf:    perf,
		period:  period,
		counts:  make(map[string]int64),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}

	go a.run()
	atexit.Register(a.Close)

	return a
}

func (a *StoreAnalyzer) run() {
	defer close(a.stopped)

	ticker := time.NewTicker(a.period)
	defer ticker.Stop()

	for {
		select {
		case rec, ok := <-a.feed.C():
			if !ok {
				a.summarize()
				return
			}

			a.mu.Lock()
			a.counts[recordKey(rec)]++
			a.mu.Unlock()
		case <-ticker.C:
			a.summarize()
		case <-a.stop:
			a.drain()
			a.summarize()
			return
		}
	}
}

func recordKey(rec sim.ChangeRecord) string {
	return rec.Key
}

// drain consumes every record already buffered on the change feed without
// blocking, so a Close racing with in-flight publishes still accounts for
// every record delivered before the stop signal was sent.
func (a *StoreAnalyzer) drain() {
	for {
		select {
		case rec, ok := <-a.feed.C():
			if !ok {
				return
			}

			a.mu.Lock()
			a.counts[recordKey(rec)]++
			a.mu.Unlock()
		default:
			return
		}
	}
}

func (a *StoreAnalyzer) summarize() {
	a.mu.Lock()
	snapshot := a.counts
	a.counts = make(map[string]int64)
	a.mu.Unlock()

	for key, count := range snapshot {
		a.perf.AddDataEntry(PerfEntry{
			Where:     key,
			What:      "write_count",
			EntryType: "store",
			Value:     float64(count),
			Unit:      "writes",
		})
	}
}

// Close stops the analyzer's background goroutine and emits a final
// summary. It is safe to call more than once.
func (a *StoreAnalyzer) Close() {
	a.closeOne.Do(func() {
		close(a.stop)
		<-a.stopped
		a.feed.Close()
	})
}
