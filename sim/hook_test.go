package sim

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type countingHook struct {
	counts map[*HookPos]int
}

func (h *countingHook) Func(ctx HookCtx) {
	if h.counts == nil {
		h.counts = make(map[*HookPos]int)
	}

	h.counts[ctx.Pos]++
}

var _ = Describe("Simulation hooks", func() {
	It("invokes BeforeDispatch/AfterDispatch/BeforeCommit/AfterCommit once per tick", func() {
		s := NewSimulation(WithSeed(1))
		hook := &countingHook{}
		s.AcceptHook(hook)

		id, err := s.RegisterComponent("n0", Passive, func(ctx *DispatchContext) error { return nil })
		Expect(err).NotTo(HaveOccurred())
		Expect(s.ScheduleAt("go", Value{}, 0, id)).To(Succeed())
		Expect(s.ScheduleAt("go", Value{}, 1, id)).To(Succeed())

		_, err = s.Run(context.Background(), StopCondition{})
		Expect(err).NotTo(HaveOccurred())

		Expect(hook.counts[HookPosBeforeDispatch]).To(Equal(2))
		Expect(hook.counts[HookPosAfterDispatch]).To(Equal(2))
		Expect(hook.counts[HookPosBeforeCommit]).To(Equal(2))
		Expect(hook.counts[HookPosAfterCommit]).To(Equal(2))
	})
})
