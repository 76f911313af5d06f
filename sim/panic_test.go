package sim

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Fault handling", func() {
	It("records a HandlerPanic fault and continues a Passive run by default", func() {
		s := NewSimulation(WithSeed(1))

		id, err := s.RegisterComponent("boom", Passive, func(ctx *DispatchContext) error {
			panic("kaboom")
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(s.ScheduleAt("go", Value{}, 0, id)).To(Succeed())

		outcome, err := s.Run(context.Background(), StopCondition{})
		Expect(err).NotTo(HaveOccurred())
		Expect(outcome.StoppedReason).To(Equal(QueueEmpty))
		Expect(outcome.Faults).To(HaveLen(1))
		Expect(outcome.Faults[0].Kind).To(Equal(HandlerPanic))
	})

	It("records a HandlerPanic fault from a returned error the same as a recovered panic", func() {
		s := NewSimulation(WithSeed(1))

		id, err := s.RegisterComponent("erroring", Passive, func(ctx *DispatchContext) error {
			return errors.New("boom")
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(s.ScheduleAt("go", Value{}, 0, id)).To(Succeed())

		outcome, err := s.Run(context.Background(), StopCondition{})
		Expect(err).NotTo(HaveOccurred())
		Expect(outcome.Faults).To(HaveLen(1))
		Expect(outcome.Faults[0].Kind).To(Equal(HandlerPanic))
	})

	It("aborts the run when PolicyAbort is configured for the offending component kind", func() {
		s := NewSimulation(WithSeed(1))
		s.WithPanicPolicy(Passive, PolicyAbort)

		id, err := s.RegisterComponent("boom", Passive, func(ctx *DispatchContext) error {
			panic("kaboom")
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(s.ScheduleAt("go", Value{}, 0, id)).To(Succeed())

		outcome, err := s.Run(context.Background(), StopCondition{})
		Expect(err).NotTo(HaveOccurred())
		Expect(outcome.StoppedReason).To(Equal(InternalError))
		Expect(outcome.EventsDispatched).To(Equal(uint64(1)))
	})

	It("aborts on a StoreAccessViolation only when StrictMode is set", func() {
		run := func(strict bool) RunOutcome {
			s := NewSimulation(WithSeed(1))
			s.StrictMode = strict

			var bID ComponentID

			aID, err := s.RegisterComponent("a", Passive, func(ctx *DispatchContext) error {
				ctx.Effector.mutations = append(ctx.Effector.mutations,
					mutation{key: storeKey{cid: bID, key: "x"}, value: IntValue(1)})
				return nil
			})
			Expect(err).NotTo(HaveOccurred())

			bID, err = s.RegisterComponent("b", Passive, func(ctx *DispatchContext) error { return nil })
			Expect(err).NotTo(HaveOccurred())

			Expect(s.ScheduleAt("go", Value{}, 0, aID)).To(Succeed())

			outcome, err := s.Run(context.Background(), StopCondition{})
			Expect(err).NotTo(HaveOccurred())

			return outcome
		}

		lenient := run(false)
		Expect(lenient.StoppedReason).To(Equal(QueueEmpty))

		strict := run(true)
		Expect(strict.StoppedReason).To(Equal(InternalError))
	})
})
