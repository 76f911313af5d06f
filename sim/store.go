package sim

import (
	"fmt"
	"path"
	"sync"
	"sync/atomic"
)

// atomicSnapshot is a tiny typed wrapper around atomic.Pointer[StoreSnapshot]
// so Store.Snapshot reads never take a lock.
type atomicSnapshot struct {
	p atomic.Pointer[StoreSnapshot]
}

func (a *atomicSnapshot) load() *StoreSnapshot        { return a.p.Load() }
func (a *atomicSnapshot) store(s *StoreSnapshot)      { a.p.Store(s) }

// storeKey addresses one Store slot.
type storeKey struct {
	cid ComponentID
	key string
}

// StoreSnapshot is the immutable view of all component state as of the
// start of the current tick. Handlers only ever see a *StoreSnapshot, never
// the mutable Store itself - this is what makes "reads during a tick are
// lock-free on an immutable snapshot" true without any locking in Get.
//
// Internally a snapshot is a short chain of copy-on-write overlays rather
// than a full copy of the whole store on every tick, which keeps memory
// cost roughly linear in the number of keys actually mutated per tick. The
// chain is flattened periodically (see flattenThreshold) so that Get stays
// cheap even after a very long run.
type StoreSnapshot struct {
	version uint64
	depth   int
	base    *StoreSnapshot
	overlay map[storeKey]Value
}

// Version returns the store's version epoch as of this snapshot. The epoch
// advances by exactly one at the end of each tick's commit phase that
// writes at least one key, regardless of how many effectors committed
// during that tick; a tick that writes nothing leaves it unchanged.
func (s *StoreSnapshot) Version() uint64 {
	if s == nil {
		return 0
	}

	return s.version
}

// Get returns the value stored at (cid, key) as of this snapshot, and
// whether it has ever been written.
func (s *StoreSnapshot) Get(cid ComponentID, key string) (Value, bool) {
	for n := s; n != nil; n = n.base {
		if v, ok := n.overlay[storeKey{cid, key}]; ok {
			return v, true
		}
	}

	return Value{}, false
}

// ForComponent returns every key currently set for cid as of this
// snapshot. It walks the full copy-on-write chain, so its cost is
// proportional to the chain's depth, not just the overlay at the top -
// callers on a hot path should prefer Get for a single key.
func (s *StoreSnapshot) ForComponent(cid ComponentID) map[string]Value {
	out := make(map[string]Value)

	for n := s; n != nil; n = n.base {
		for k, v := range n.overlay {
			if k.cid != cid {
				continue
			}

			if _, seen := out[k.key]; !seen {
				out[k.key] = v
			}
		}
	}

	return out
}

// ChangeRecord describes one key's transition, delivered to introspection
// subscribers.
type ChangeRecord struct {
	Version     uint64
	ComponentID ComponentID
	Key         string
	Old         Value
	HasOld      bool
	New         Value
}

// ChangeFeed delivers ChangeRecords to an introspection subscriber.
// Delivery is best-effort: a slow subscriber drops records rather than
// stalling the scheduler's commit phase.
type ChangeFeed interface {
	C() <-chan ChangeRecord
	Close()
}

type changeSub struct {
	pattern string
	ch      chan ChangeRecord
	closed  bool
	mu      sync.Mutex
}

func (c *changeSub) C() <-chan ChangeRecord { return c.ch }

func (c *changeSub) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.ch)
		c.closed = true
	}
}

func (c *changeSub) deliver(r ChangeRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	select {
	case c.ch <- r:
	default:
		// Best-effort delivery: drop the oldest pending record to make
		// room rather than block the committing conductor goroutine.
		select {
		case <-c.ch:
		default:
		}
		select {
		case c.ch <- r:
		default:
		}
	}
}

// flattenThreshold bounds how deep a StoreSnapshot's copy-on-write chain is
// allowed to grow before the Store flattens it into a single overlay.
const flattenThreshold = 32

// historyLimit bounds how many past versions the Store keeps reachable by
// version number for introspection clients that ask for a snapshot older
// than the current one.
const historyLimit = 64

// Store is the key-addressed, typed state repository described in §4.2. All
// mutation goes through committing Effectors; there is no public Set method
// on Store itself, which is what makes "only events cross component
// boundaries" enforceable.
type Store struct {
	typesMu sync.RWMutex
	types   map[storeKey]string

	snapshot atomicSnapshot

	historyMu    sync.Mutex
	history      map[uint64]*StoreSnapshot
	historyOrder []uint64

	subsMu sync.Mutex
	subs   []*changeSub

	nameOf func(ComponentID) string
}

// NewStore creates an empty Store at version 0.
func NewStore() *Store {
	s := &Store{
		types:   make(map[storeKey]string),
		history: make(map[uint64]*StoreSnapshot),
	}

	root := &StoreSnapshot{overlay: map[storeKey]Value{}}
	s.snapshot.store(root)
	s.remember(root)

	return s
}

// remember records snap under its version, evicting the oldest retained
// version once historyLimit is exceeded.
func (s *Store) remember(snap *StoreSnapshot) {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()

	s.history[snap.version] = snap
	s.historyOrder = append(s.historyOrder, snap.version)

	if len(s.historyOrder) > historyLimit {
		oldest := s.historyOrder[0]
		s.historyOrder = s.historyOrder[1:]
		delete(s.history, oldest)
	}
}

// SnapshotAt returns the snapshot recorded for version, if it is still
// within the retained history window.
func (s *Store) SnapshotAt(version uint64) (*StoreSnapshot, bool) {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()

	snap, ok := s.history[version]

	return snap, ok
}

// SetNameResolver wires a ComponentID->name lookup used for change-feed
// glob matching. It is set once, by Simulation, after the registry exists.
func (s *Store) SetNameResolver(f func(ComponentID) string) {
	s.nameOf = f
}

// Snapshot returns the current immutable snapshot. The scheduler calls this
// exactly once per tick, before dispatch, and hands the same pointer to
// every handler in the batch.
func (s *Store) Snapshot() *StoreSnapshot {
	return s.snapshot.load()
}

// Get reads the current committed value, bypassing the tick-framing
// discipline. It exists for introspection and tests; handler code must go
// through the DispatchContext's snapshot instead.
func (s *Store) Get(cid ComponentID, key string) (Value, bool) {
	return s.Snapshot().Get(cid, key)
}

// Subscribe registers a glob-pattern (path.Match syntax, matched against
// "<component-name>/<key>") subscriber to the change feed.
func (s *Store) Subscribe(pattern string) ChangeFeed {
	sub := &changeSub{pattern: pattern, ch: make(chan ChangeRecord, 64)}

	s.subsMu.Lock()
	s.subs = append(s.subs, sub)
	s.subsMu.Unlock()

	return sub
}

func (s *Store) publish(r ChangeRecord) {
	s.subsMu.Lock()
	subs := make([]*changeSub, len(s.subs))
	copy(subs, s.subs)
	s.subsMu.Unlock()

	if len(subs) == 0 {
		return
	}

	name := ""
	if s.nameOf != nil {
		name = s.nameOf(r.ComponentID)
	}
	subject := name + "/" + r.Key

	for _, sub := range subs {
		matched, err := path.Match(sub.pattern, subject)
		if err == nil && matched {
			sub.deliver(r)
		}
	}
}

// commitBatch accumulates the effects of every effector committed during a
// single tick. Simulation.Run opens one commitBatch per tick, feeds it
// every accepted effector's mutations in Sequence order, and finalizes it
// once at the end of the tick - which is what makes the version epoch
// advance at most once per tick rather than once per effector.
type commitBatch struct {
	store   *Store
	base    *StoreSnapshot
	overlay map[storeKey]Value
	changes []ChangeRecord

	pendingTypes map[storeKey]string
}

func (s *Store) beginCommit() *commitBatch {
	return &commitBatch{
		store:        s,
		base:         s.Snapshot(),
		overlay:      make(map[storeKey]Value),
		pendingTypes: make(map[storeKey]string),
	}
}

// typeOf returns the type fingerprint fixed for key, considering both
// already-committed state and any first-write that happened earlier in
// this same batch.
func (b *commitBatch) typeOf(k storeKey) (string, bool) {
	if fp, ok := b.pendingTypes[k]; ok {
		return fp, true
	}

	b.store.typesMu.RLock()
	fp, ok := b.store.types[k]
	b.store.typesMu.RUnlock()

	return fp, ok
}

// applyEffector validates and applies one effector's mutations atomically:
// either every mutation lands, or none does. It returns a non-nil *Fault
// describing the first violation found when the effector is rejected.
func (b *commitBatch) applyEffector(eff *Effector) *Fault {
	for _, m := range eff.mutations {
		if m.key.cid != eff.ownerID {
			return &Fault{
				Kind:        StoreAccessViolation,
				ComponentID: eff.ownerID,
				SimTime:     eff.now,
				Message: fmt.Sprintf(
					"component %d attempted to write key %q owned by component %d",
					eff.ownerID, m.key.key, m.key.cid),
			}
		}

		if existing, ok := b.typeOf(m.key); ok && existing != m.value.fingerprint() {
			return &Fault{
				Kind:        StoreTypeViolation,
				ComponentID: eff.ownerID,
				SimTime:     eff.now,
				Message: fmt.Sprintf(
					"component %d wrote %s to key %q whose type is already fixed to %s",
					eff.ownerID, m.value.Tag(), m.key.key, existing),
			}
		}
	}

	for _, m := range eff.mutations {
		old, hadOld := b.overlay[m.key]
		if !hadOld {
			old, hadOld = b.base.Get(m.key.cid, m.key.key)
		}

		b.overlay[m.key] = m.value
		b.pendingTypes[m.key] = m.value.fingerprint()

		b.changes = append(b.changes, ChangeRecord{
			ComponentID: m.key.cid,
			Key:         m.key.key,
			Old:         old,
			HasOld:      hadOld,
			New:         m.value,
		})
	}

	return nil
}

// finalize merges the batch's overlay into the Store, advances the version
// epoch exactly once, and publishes change records to subscribers. A batch
// with no accepted writes installs no new snapshot and keeps the version.
func (b *commitBatch) finalize() {
	b.store.typesMu.Lock()
	for k, t := range b.pendingTypes {
		b.store.types[k] = t
	}
	b.store.typesMu.Unlock()

	if len(b.overlay) == 0 {
		return
	}

	next := &StoreSnapshot{
		version: b.base.Version() + 1,
		depth:   b.base.depth + 1,
		base:    b.base,
		overlay: b.overlay,
	}

	if next.depth >= flattenThreshold {
		next = flatten(next)
	}

	b.store.snapshot.store(next)
	b.store.remember(next)

	for i := range b.changes {
		b.changes[i].Version = next.version
		b.store.publish(b.changes[i])
	}
}

// flatten collapses a snapshot's copy-on-write chain into a single overlay
// with no base, bounding future Get cost.
func flatten(s *StoreSnapshot) *StoreSnapshot {
	merged := make(map[storeKey]Value)

	var chain []*StoreSnapshot
	for n := s; n != nil; n = n.base {
		chain = append(chain, n)
	}

	for i := len(chain) - 1; i >= 0; i-- {
		for k, v := range chain[i].overlay {
			merged[k] = v
		}
	}

	return &StoreSnapshot{version: s.version, overlay: merged}
}

