package sim

import (
	"context"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// buildChain registers n passive components named "n0".."n(n-1)", each of
// which appends its own name to the payload and forwards to the next
// component after one tick, and seeds the chain with an initial event
// addressed to "n0".
func buildChain(s *Simulation, n int) {
	ids := make([]ComponentID, n)

	for i := 0; i < n; i++ {
		idx := i

		id, err := s.RegisterComponent(nameFor(idx), Passive, func(ctx *DispatchContext) error {
			msg, _ := ctx.Event.Payload.String()
			ctx.Effector.Set("msg", StringValue(msg))

			if idx+1 < n {
				ctx.Effector.ScheduleEvent(1, ids[idx+1], "tick", StringValue(msg))
			}

			return nil
		})
		Expect(err).NotTo(HaveOccurred())

		ids[idx] = id
	}

	Expect(s.ScheduleAt("tick", StringValue("hi"), 0, ids[0])).To(Succeed())
}

func nameFor(i int) string {
	const letters = "n"
	return letters + string(rune('0'+i))
}

var _ = Describe("Simulation", func() {
	It("runs a telephone chain to completion deterministically", func() {
		run := func() RunOutcome {
			s := NewSimulation(WithSeed(42))
			buildChain(s, 5)

			outcome, err := s.Run(context.Background(), StopCondition{})
			Expect(err).NotTo(HaveOccurred())

			return outcome
		}

		first := run()
		second := run()

		Expect(first.StoppedReason).To(Equal(QueueEmpty))
		Expect(first.EventsDispatched).To(Equal(uint64(5)))
		Expect(first.FinalSimTime).To(Equal(SimTime(4)))
		Expect(first.EventsDispatched).To(Equal(second.EventsDispatched))
		Expect(first.FinalSimTime).To(Equal(second.FinalSimTime))

		s := NewSimulation(WithSeed(42))
		buildChain(s, 5)
		_, err := s.Run(context.Background(), StopCondition{})
		Expect(err).NotTo(HaveOccurred())

		last, ok := s.Lookup("n4")
		Expect(ok).To(BeTrue())

		v, ok := s.Store().Get(last, "msg")
		Expect(ok).To(BeTrue())

		msg, _ := v.String()
		Expect(msg).To(Equal("hi"))
	})

	It("advances FinalSimTime to the last dispatched event's ScheduledTime", func() {
		s := NewSimulation(WithSeed(1))
		buildChain(s, 5)

		outcome, err := s.Run(context.Background(), StopCondition{})
		Expect(err).NotTo(HaveOccurred())
		Expect(outcome.FinalSimTime).To(Equal(SimTime(4)))
	})

	It("rejects a cross-component write without mutating state", func() {
		s := NewSimulation(WithSeed(1))

		var bID ComponentID

		aID, err := s.RegisterComponent("a", Passive, func(ctx *DispatchContext) error {
			ctx.Effector.mutations = append(ctx.Effector.mutations,
				mutation{key: storeKey{cid: bID, key: "x"}, value: IntValue(1)})
			return nil
		})
		Expect(err).NotTo(HaveOccurred())

		bID, err = s.RegisterComponent("b", Passive, func(ctx *DispatchContext) error {
			return nil
		})
		Expect(err).NotTo(HaveOccurred())

		Expect(s.ScheduleAt("go", Value{}, 0, aID)).To(Succeed())

		outcome, err := s.Run(context.Background(), StopCondition{})
		Expect(err).NotTo(HaveOccurred())
		Expect(outcome.Faults).To(HaveLen(1))
		Expect(outcome.Faults[0].Kind).To(Equal(StoreAccessViolation))

		_, ok := s.Store().Get(bID, "x")
		Expect(ok).To(BeFalse())
	})

	It("stops on MaxWallClock without completing a partial tick", func() {
		s := NewSimulation(WithSeed(1))

		var loopID ComponentID
		loopID, err := s.RegisterComponent("looper", Passive, func(ctx *DispatchContext) error {
			ctx.Effector.ScheduleEvent(1, loopID, "tick", Value{})
			return nil
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(s.ScheduleAt("tick", Value{}, 0, loopID)).To(Succeed())

		outcome, err := s.Run(context.Background(), StopCondition{MaxWallClock: SimDuration(50 * time.Millisecond)})
		Expect(err).NotTo(HaveOccurred())
		Expect(outcome.StoppedReason).To(Equal(WallBound))
	})

	It("dispatches ten simultaneous events at the same SimTime deterministically across 20 runs", func() {
		const fanout = 10

		runOnce := func() []string {
			s := NewSimulation(WithSeed(42))
			ids := make([]ComponentID, fanout)

			for i := 0; i < fanout; i++ {
				id, err := s.RegisterComponent(nameFor(i), Passive, func(ctx *DispatchContext) error {
					draw := ctx.RNG.Int63()
					ctx.Effector.Set("draw", IntValue(draw))

					return nil
				})
				Expect(err).NotTo(HaveOccurred())

				ids[i] = id
			}

			for i := 0; i < fanout; i++ {
				Expect(s.ScheduleAt("go", Value{}, 100, ids[i])).To(Succeed())
			}

			outcome, err := s.Run(context.Background(), StopCondition{})
			Expect(err).NotTo(HaveOccurred())
			Expect(outcome.EventsDispatched).To(Equal(uint64(fanout)))
			Expect(outcome.FinalSimTime).To(Equal(SimTime(100)))
			Expect(outcome.Faults).To(BeEmpty())

			log := make([]string, fanout)
			for i := 0; i < fanout; i++ {
				v, ok := s.Store().Get(ids[i], "draw")
				Expect(ok).To(BeTrue())

				draw, _ := v.Int()
				log[i] = fmt.Sprintf("%s=%d", nameFor(i), draw)
			}

			return log
		}

		first := runOnce()
		Expect(first).To(HaveLen(fanout))

		for i := 0; i < 19; i++ {
			Expect(runOnce()).To(Equal(first))
		}
	})

	It("processes an active component's events sequentially in Sequence order", func() {
		s := NewSimulation(WithSeed(7))

		seen := make(chan int, 4)

		id, err := s.RegisterComponent("active", Active, func(ctx *DispatchContext) error {
			n, _ := ctx.Event.Payload.Int()
			seen <- int(n)
			time.Sleep(5 * time.Millisecond)
			return nil
		})
		Expect(err).NotTo(HaveOccurred())

		for i := int64(0); i < 4; i++ {
			Expect(s.ScheduleAt("step", IntValue(i), SimTime(i), id)).To(Succeed())
		}

		outcome, err := s.Run(context.Background(), StopCondition{})
		Expect(err).NotTo(HaveOccurred())
		Expect(outcome.EventsDispatched).To(Equal(uint64(4)))

		close(seen)

		var order []int
		for n := range seen {
			order = append(order, n)
		}
		Expect(order).To(Equal([]int{0, 1, 2, 3}))
	})
})
