package sim

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Store", func() {
	var store *Store

	BeforeEach(func() {
		store = NewStore()
	})

	It("fixes a key's type on first write and rejects a later type change", func() {
		const owner ComponentID = 0

		eff := newEffector(owner, 1, nil)
		eff.Set("counter", IntValue(1))

		cb := store.beginCommit()
		Expect(cb.applyEffector(eff)).To(BeNil())
		cb.finalize()

		v, ok := store.Get(owner, "counter")
		Expect(ok).To(BeTrue())
		n, _ := v.Int()
		Expect(n).To(Equal(int64(1)))

		eff2 := newEffector(owner, 2, nil)
		eff2.Set("counter", StringValue("one"))

		cb2 := store.beginCommit()
		fault := cb2.applyEffector(eff2)
		Expect(fault).NotTo(BeNil())
		Expect(fault.Kind).To(Equal(StoreTypeViolation))
		cb2.finalize()

		v, _ = store.Get(owner, "counter")
		n, _ = v.Int()
		Expect(n).To(Equal(int64(1)))
	})

	It("rejects a write to a key owned by a different component", func() {
		const a ComponentID = 0
		const b ComponentID = 1

		eff := newEffector(a, 1, nil)
		eff.mutations = append(eff.mutations, mutation{key: storeKey{cid: b, key: "x"}, value: IntValue(1)})

		cb := store.beginCommit()
		fault := cb.applyEffector(eff)

		Expect(fault).NotTo(BeNil())
		Expect(fault.Kind).To(Equal(StoreAccessViolation))

		cb.finalize()

		_, ok := store.Get(b, "x")
		Expect(ok).To(BeFalse())
	})

	It("never observes a write committed within the same tick from the base snapshot used to dispatch it", func() {
		const owner ComponentID = 0

		eff := newEffector(owner, 1, nil)
		eff.Set("k", IntValue(1))

		snapBefore := store.Snapshot()

		cb := store.beginCommit()
		cb.applyEffector(eff)
		cb.finalize()

		_, ok := snapBefore.Get(owner, "k")
		Expect(ok).To(BeFalse())

		_, ok = store.Snapshot().Get(owner, "k")
		Expect(ok).To(BeTrue())
	})

	It("advances the version epoch by exactly one per commit regardless of effector count", func() {
		const a ComponentID = 0
		const b ComponentID = 1

		startVersion := store.Snapshot().Version()

		effA := newEffector(a, 1, nil)
		effA.Set("x", IntValue(1))

		effB := newEffector(b, 1, nil)
		effB.Set("y", IntValue(2))

		cb := store.beginCommit()
		cb.applyEffector(effA)
		cb.applyEffector(effB)
		cb.finalize()

		Expect(store.Snapshot().Version()).To(Equal(startVersion + 1))
	})
})
