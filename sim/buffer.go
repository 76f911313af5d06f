package sim

import "log"

// Buffer is a fifo queue a component can use as a bounded mailbox, so
// that the analysis package can report its depth over time through the
// push/pop hooks. Active components' inbound job queues are plain
// channels, not Buffers. It carries no scheduling
// semantics of its own - it is purely an observable bookkeeping structure,
// adapted from the teacher's port/connection buffers to this engine's
// component-addressed, port-less event model.
type Buffer interface {
	Named
	Hookable

	CanPush() bool
	Push(item interface{})
	Pop() interface{}
	Peek() interface{}
	Capacity() int
	Size() int
	Clear()
}

// Named is implemented by anything with a stable display name.
type Named interface {
	Name() string
}

type bufferImpl struct {
	HookableBase

	name     string
	capacity int
	elements []interface{}
}

// NewBuffer creates a Buffer with the given capacity. A capacity of 0 means
// unbounded.
func NewBuffer(name string, capacity int) Buffer {
	return &bufferImpl{name: name, capacity: capacity}
}

func (b *bufferImpl) Name() string { return b.name }

func (b *bufferImpl) CanPush() bool {
	return b.capacity == 0 || len(b.elements) < b.capacity
}

func (b *bufferImpl) Push(item interface{}) {
	if !b.CanPush() {
		log.Panicf("buffer %s overflow", b.name)
	}

	b.elements = append(b.elements, item)

	if b.NumHooks() > 0 {
		b.InvokeHook(HookCtx{Domain: b, Pos: HookPosBufPush, Item: item})
	}
}

func (b *bufferImpl) Pop() interface{} {
	if len(b.elements) == 0 {
		return nil
	}

	item := b.elements[0]
	b.elements = b.elements[1:]

	if b.NumHooks() > 0 {
		b.InvokeHook(HookCtx{Domain: b, Pos: HookPosBufPop, Item: item})
	}

	return item
}

func (b *bufferImpl) Peek() interface{} {
	if len(b.elements) == 0 {
		return nil
	}

	return b.elements[0]
}

func (b *bufferImpl) Capacity() int { return b.capacity }
func (b *bufferImpl) Size() int     { return len(b.elements) }

func (b *bufferImpl) Clear() {
	b.elements = nil
}
