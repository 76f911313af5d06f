package sim

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("deriveSeed", func() {
	It("is a pure function of (masterSeed, cid)", func() {
		Expect(deriveSeed(42, 7)).To(Equal(deriveSeed(42, 7)))
	})

	It("differs across adjacent component IDs", func() {
		Expect(deriveSeed(42, 0)).NotTo(Equal(deriveSeed(42, 1)))
	})

	It("differs across master seeds for the same component", func() {
		Expect(deriveSeed(1, 0)).NotTo(Equal(deriveSeed(2, 0)))
	})
})

var _ = Describe("registry", func() {
	It("panics when registering two components under the same name", func() {
		s := NewSimulation(WithSeed(1))
		s.RegisterComponent("dup", Passive, func(ctx *DispatchContext) error { return nil })

		Expect(func() {
			s.RegisterComponent("dup", Passive, func(ctx *DispatchContext) error { return nil })
		}).To(Panic())
	})
})
