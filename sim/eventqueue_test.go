package sim

import (
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("EventQueue", func() {
	var queue EventQueue

	BeforeEach(func() {
		queue = NewEventQueue()
	})

	It("pops in (ScheduledTime, Sequence) order", func() {
		const n = 200

		for i := 0; i < n; i++ {
			queue.Push(makeEvent("tick", Value{}, SimTime(rand.Intn(20)), ComponentID(i), uint64(i+1)))
		}

		var lastTime SimTime
		var lastSeq uint64

		for queue.Len() > 0 {
			evt := queue.Pop()

			if evt.ScheduledTime == lastTime {
				Expect(evt.Sequence > lastSeq).To(BeTrue())
			} else {
				Expect(evt.ScheduledTime > lastTime).To(BeTrue())
			}

			lastTime, lastSeq = evt.ScheduledTime, evt.Sequence
		}
	})

	It("batches every event sharing the minimum ScheduledTime", func() {
		queue.Push(makeEvent("a", Value{}, 5, 0, 1))
		queue.Push(makeEvent("b", Value{}, 5, 1, 2))
		queue.Push(makeEvent("c", Value{}, 7, 2, 3))

		batch := PopBatch(queue)

		Expect(batch).To(HaveLen(2))
		Expect(batch[0].ScheduledTime).To(Equal(SimTime(5)))
		Expect(batch[1].ScheduledTime).To(Equal(SimTime(5)))
		Expect(queue.Len()).To(Equal(1))
	})
})

var _ = Describe("InsertionQueue", func() {
	It("pops in (ScheduledTime, Sequence) order", func() {
		queue := NewInsertionQueue()

		queue.Push(makeEvent("c", Value{}, 9, 0, 1))
		queue.Push(makeEvent("a", Value{}, 1, 0, 2))
		queue.Push(makeEvent("b", Value{}, 1, 0, 3))

		first := queue.Pop()
		second := queue.Pop()
		third := queue.Pop()

		Expect(first.ScheduledTime).To(Equal(SimTime(1)))
		Expect(second.ScheduledTime).To(Equal(SimTime(1)))
		Expect(first.Sequence < second.Sequence).To(BeTrue())
		Expect(third.ScheduledTime).To(Equal(SimTime(9)))
	})
})
