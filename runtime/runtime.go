package runtime

import (
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/mlbridge"
	"github.com/wippyai/mlbridge/value"
)

// State is the lifecycle state of a handle.
type State int

const (
	Uninitialized State = iota
	Active
	Suspended
	Returned
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Active:
		return "active"
	case Suspended:
		return "suspended"
	case Returned:
		return "returned"
	}
	return "state(" + strconv.Itoa(int(s)) + ")"
}

// Runtime is the handle through which native code touches the foreign heap.
// At most one handle is Active process-wide; entering a new one suspends the
// current one until the new one is left.
type Runtime struct {
	abi   mlbridge.ABI
	state State
	prev  *Runtime
	base  int
	pins  []*value.Value
}

var (
	mu      sync.Mutex
	current *Runtime
)

// Enter activates a new handle on abi.
func Enter(abi mlbridge.ABI) *Runtime {
	mu.Lock()
	defer mu.Unlock()
	rt := &Runtime{abi: abi, state: Active, prev: current, base: abi.LocalsTop()}
	if current != nil {
		current.state = Suspended
	}
	current = rt
	return rt
}

// Leave returns the handle, dropping its local roots and pins and resuming
// the handle it suspended. Leaving an already returned handle does nothing.
// Handles entered after rt and never left are returned first.
func (rt *Runtime) Leave() {
	mu.Lock()
	defer mu.Unlock()
	if rt.state == Returned || rt.state == Uninitialized {
		return
	}
	for current != nil && current != rt {
		Logger().Warn("abandoned runtime handle returned", zap.Int("base", current.base))
		current.release()
		current = current.prev
	}
	rt.release()
	current = rt.prev
	if current != nil {
		current.state = Active
	}
}

func (rt *Runtime) release() {
	for _, p := range rt.pins {
		rt.abi.RemoveGlobalRoot(p)
	}
	rt.pins = nil
	rt.abi.PopLocals(rt.base)
	rt.state = Returned
}

// Current returns the active handle, or nil.
func Current() *Runtime {
	mu.Lock()
	defer mu.Unlock()
	if current == nil || current.state != Active {
		return nil
	}
	return current
}

// ActiveCount returns the number of active handles, which is 0 or 1.
func ActiveCount() int {
	mu.Lock()
	defer mu.Unlock()
	n := 0
	for rt := current; rt != nil; rt = rt.prev {
		if rt.state == Active {
			n++
		}
	}
	return n
}

// State returns the handle's lifecycle state.
func (rt *Runtime) State() State {
	mu.Lock()
	defer mu.Unlock()
	return rt.state
}

func (rt *Runtime) check() {
	if s := rt.State(); s != Active {
		panic("runtime: handle used while " + s.String())
	}
}

// ABI returns the foreign runtime behind the handle.
func (rt *Runtime) ABI() mlbridge.ABI {
	rt.check()
	return rt.abi
}

// Token returns an allocation token for the handle.
func (rt *Runtime) Token() AllocToken {
	rt.check()
	return AllocToken{rt: rt}
}

// AllocToken marks code that may allocate on the foreign heap. Any function
// taking a token may run the collector and move every unrooted block its
// caller holds.
type AllocToken struct {
	rt *Runtime
}

// Runtime returns the handle the token was produced from.
func (t AllocToken) Runtime() *Runtime {
	return t.rt
}

// ABI returns the foreign runtime for allocation.
func (t AllocToken) ABI() mlbridge.ABI {
	return t.rt.ABI()
}
