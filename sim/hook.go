package sim

// HookPos defines the enum of possible hooking positions.
type HookPos struct {
	Name string
}

// HookCtx is the context that holds all the information about the site at
// which a hook is triggered.
type HookCtx struct {
	Domain Hookable
	Pos    *HookPos
	Item   interface{}
	Detail interface{}
}

// Hookable defines an object that accepts Hooks.
type Hookable interface {
	AcceptHook(hook Hook)
	NumHooks() int
}

// Hook is a short piece of program that can be invoked by a hookable object.
type Hook interface {
	Func(ctx HookCtx)
}

// Positions at which the scheduler and Buffer invoke registered hooks.
// Simulation invokes the four tick-boundary positions itself, once per
// batch, around dispatch and commit. HookPosStoreMutation is declared for
// parity with the teacher's hook position set but is not invoked
// separately - Store.Subscribe's ChangeFeed already delivers per-mutation
// notifications to introspection and the analysis package, so a second,
// Hook-shaped channel for the same event would just be a redundant path
// to the same information.
var (
	HookPosBeforeDispatch = &HookPos{Name: "BeforeDispatch"}
	HookPosAfterDispatch  = &HookPos{Name: "AfterDispatch"}
	HookPosBeforeCommit   = &HookPos{Name: "BeforeCommit"}
	HookPosAfterCommit    = &HookPos{Name: "AfterCommit"}
	HookPosStoreMutation  = &HookPos{Name: "StoreMutation"}
	HookPosBufPush        = &HookPos{Name: "BufferPush"}
	HookPosBufPop         = &HookPos{Name: "BufferPop"}
)

// HookableBase provides a reusable implementation of the Hookable interface.
type HookableBase struct {
	hooks []Hook
}

// AcceptHook registers a hook.
func (h *HookableBase) AcceptHook(hook Hook) {
	h.hooks = append(h.hooks, hook)
}

// NumHooks returns the number of hooks currently registered.
func (h *HookableBase) NumHooks() int {
	return len(h.hooks)
}

// InvokeHook triggers the registered hooks in registration order.
func (h *HookableBase) InvokeHook(ctx HookCtx) {
	for _, hook := range h.hooks {
		hook.Func(ctx)
	}
}
