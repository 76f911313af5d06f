package sim

import (
	"fmt"
	"sync"
	"time"
)

// registry owns component identity: name <-> ComponentID, and the
// component records the scheduler dispatches into. Registration happens
// before Run starts and is not safe to do concurrently with a running
// simulation, mirroring the teacher's build-then-run engine lifecycle.
type registry struct {
	mu         sync.RWMutex
	byID       []*component
	byName     map[string]ComponentID
	masterSeed uint64
}

func newRegistry(masterSeed uint64) *registry {
	return &registry{byName: make(map[string]ComponentID), masterSeed: masterSeed}
}

// Register adds a new component under name, running with kind, dispatched
// to handler. It returns the freshly assigned ComponentID. Registering two
// components under the same name is a SchedulerMisuse, reported by
// panicking - this is a build-time programmer error, not a runtime fault
// that should show up in RunOutcome.Faults.
func (r *registry) Register(name string, kind ComponentKind, handler Handler) ComponentID {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[name]; exists {
		panic(fmt.Sprintf("sim: component %q already registered", name))
	}

	id := ComponentID(len(r.byID))

	c := &component{
		id:          id,
		name:        name,
		handlerKind: kind,
		handler:     handler,
		rng:         newComponentRNG(r.masterSeed, id),
	}

	if kind == Active {
		c.inbox = make(chan dispatchJob, 1)
		c.quit = make(chan struct{})
		c.finished = make(chan struct{})
	}

	r.byID = append(r.byID, c)
	r.byName[name] = id

	return id
}

// Name resolves a ComponentID to its registered name, or "" if unknown.
func (r *registry) Name(id ComponentID) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if int(id) < 0 || int(id) >= len(r.byID) {
		return ""
	}

	return r.byID[id].name
}

// Lookup resolves a registered name to its ComponentID.
func (r *registry) Lookup(name string) (ComponentID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byName[name]

	return id, ok
}

// Get returns the component record for id, or nil if id is not registered.
func (r *registry) Get(id ComponentID) *component {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if int(id) < 0 || int(id) >= len(r.byID) {
		return nil
	}

	return r.byID[id]
}

// Names returns every registered component name, in registration
// (ComponentID) order. Used by the introspection component listing.
func (r *registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.byID))
	for i, c := range r.byID {
		names[i] = c.name
	}

	return names
}

// Infos returns every registered component's public metadata, in
// registration (ComponentID) order.
func (r *registry) Infos() []ComponentInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]ComponentInfo, len(r.byID))
	for i, c := range r.byID {
		infos[i] = ComponentInfo{ID: c.id, Name: c.name, Kind: c.handlerKind}
	}

	return infos
}

// startActive launches the dedicated goroutines for every registered
// Active component.
func (r *registry) startActive() {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, c := range r.byID {
		if c.handlerKind == Active {
			go c.runActive()
		}
	}
}

// stopActive signals every Active component's goroutine to exit and waits
// up to grace for them to do so. Any component whose goroutine has not
// exited by then is reported as a straggler and left running rather than
// force-killed, matching the engine's no-forced-termination shutdown
// contract.
func (r *registry) stopActive(grace time.Duration) []ComponentID {
	r.mu.RLock()
	active := make([]*component, 0, len(r.byID))
	for _, c := range r.byID {
		if c.handlerKind == Active {
			active = append(active, c)
		}
	}
	r.mu.RUnlock()

	for _, c := range active {
		close(c.quit)
	}

	exited := make(chan ComponentID, len(active))
	for _, c := range active {
		go func(c *component) {
			<-c.finished
			exited <- c.id
		}(c)
	}

	remaining := make(map[ComponentID]struct{}, len(active))
	for _, c := range active {
		remaining[c.id] = struct{}{}
	}

	deadline := time.After(grace)

	for len(remaining) > 0 {
		select {
		case id := <-exited:
			delete(remaining, id)
		case <-deadline:
			stragglers := make([]ComponentID, 0, len(remaining))
			for id := range remaining {
				stragglers = append(stragglers, id)
			}

			return stragglers
		}
	}

	return nil
}
