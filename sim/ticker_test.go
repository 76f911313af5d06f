package sim

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Ticker", func() {
	It("computes Period as Second/Freq", func() {
		t := NewTicker("tick", Hz1, 0)
		Expect(t.Period).To(Equal(SimDuration(Second)))

		t2 := NewTicker("tick", KHz1, 0)
		Expect(t2.Period).To(Equal(SimDuration(Second) / 1000))
	})

	It("panics computing Period for a non-positive Freq", func() {
		Expect(func() { _ = Freq(0).Period() }).To(Panic())
	})

	It("rearms itself every Period when driven from a handler", func() {
		s := NewSimulation(WithSeed(1))

		var id ComponentID
		var fired int

		ticker := NewTicker("beat", KHz1, 0)

		regID, err := s.RegisterComponent("beater", Passive, func(ctx *DispatchContext) error {
			fired++
			if fired < 3 {
				ticker.Rearm(ctx.Effector)
			}
			return nil
		})
		Expect(err).NotTo(HaveOccurred())

		id = regID
		ticker.Target = id

		Expect(ticker.Arm(s, 0)).To(Succeed())

		outcome, err := s.Run(context.Background(), StopCondition{})
		Expect(err).NotTo(HaveOccurred())
		Expect(fired).To(Equal(3))
		Expect(outcome.EventsDispatched).To(Equal(uint64(3)))
		Expect(outcome.FinalSimTime).To(Equal(SimTime(2 * ticker.Period)))
	})
})
