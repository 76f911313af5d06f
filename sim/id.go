package sim

import (
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/rs/xid"
)

// ComponentID is an opaque, dense handle in [0, N) assigned at registration.
// It is stable for the lifetime of a run and is the only address an Event or
// a Store key ever carries for "who".
type ComponentID int

// invalidComponentID marks the absence of a component.
const invalidComponentID ComponentID = -1

// IDGenerator produces opaque string identifiers used purely for
// correlation (run IDs, trace task IDs) - never for anything that
// participates in the deterministic dispatch order. Sequence, not these
// IDs, is the tiebreaker the engine relies on.
type IDGenerator interface {
	Generate() string
}

var (
	idGeneratorMu    sync.Mutex
	idGeneratorInUse bool
	idGenerator      IDGenerator = &sequentialIDGenerator{}
)

// UseSequentialIDGenerator configures the package-level ID generator to
// produce IDs in sequential order. Useful when a simulation wants
// byte-for-byte reproducible log output for its correlation IDs too.
func UseSequentialIDGenerator() {
	swapIDGenerator(&sequentialIDGenerator{})
}

// UseParallelIDGenerator configures the package-level ID generator to use
// github.com/rs/xid, which is fast and collision-resistant but not
// deterministic across runs.
func UseParallelIDGenerator() {
	swapIDGenerator(&parallelIDGenerator{})
}

func swapIDGenerator(g IDGenerator) {
	idGeneratorMu.Lock()
	defer idGeneratorMu.Unlock()

	if idGeneratorInUse {
		panic("cannot change id generator type after using it")
	}

	idGenerator = g
}

// GetIDGenerator returns the ID generator in use for this process.
func GetIDGenerator() IDGenerator {
	idGeneratorMu.Lock()
	idGeneratorInUse = true
	g := idGenerator
	idGeneratorMu.Unlock()

	return g
}

type sequentialIDGenerator struct {
	next uint64
}

func (g *sequentialIDGenerator) Generate() string {
	n := atomic.AddUint64(&g.next, 1)
	return strconv.FormatUint(n, 10)
}

type parallelIDGenerator struct{}

func (parallelIDGenerator) Generate() string {
	return xid.New().String()
}
