package runtime

import (
	"github.com/wippyai/mlbridge"
	"github.com/wippyai/mlbridge/value"
)

// Frame is a scope of local roots. Frames close in LIFO order.
type Frame struct {
	rt  *Runtime
	top int
}

// Frame opens a local root frame.
func (rt *Runtime) Frame() *Frame {
	rt.check()
	return &Frame{rt: rt, top: rt.abi.LocalsTop()}
}

// Root registers v in the frame.
func (f *Frame) Root(v value.Value) Root {
	return Root{abi: f.rt.abi, slot: f.rt.abi.PushLocal(v)}
}

// Close drops every root registered in the frame and in frames opened after it.
func (f *Frame) Close() {
	f.rt.abi.PopLocals(f.top)
}

// Root is a local root slot. The collector keeps its content current.
type Root struct {
	abi  mlbridge.ABI
	slot int
}

// Get returns the current value of the root.
func (r Root) Get() value.Value {
	return r.abi.Local(r.slot)
}

// Set replaces the rooted value.
func (r Root) Set(v value.Value) {
	r.abi.SetLocal(r.slot, v)
}

// GlobalRoot keeps a value alive independently of any handle.
type GlobalRoot struct {
	abi      mlbridge.ABI
	cell     *value.Value
	released bool
}

// NewGlobalRoot registers v as a global root.
func NewGlobalRoot(rt *Runtime, v value.Value) *GlobalRoot {
	abi := rt.ABI()
	g := &GlobalRoot{abi: abi, cell: new(value.Value)}
	*g.cell = v
	abi.RegisterGlobalRoot(g.cell)
	return g
}

// Get returns the current value. After Release it returns the last value
// seen by the collector, which may be stale.
func (g *GlobalRoot) Get() value.Value {
	return *g.cell
}

// Set replaces the rooted value.
func (g *GlobalRoot) Set(v value.Value) {
	*g.cell = v
}

// Release unregisters the root. Releasing twice is a no-op.
func (g *GlobalRoot) Release() {
	if g.released {
		return
	}
	g.released = true
	g.abi.RemoveGlobalRoot(g.cell)
}

// Pinned is a value rooted until its handle is left.
type Pinned struct {
	cell *value.Value
}

// Get returns the current value.
func (p *Pinned) Get() value.Value {
	return *p.cell
}

// Pin roots v for the rest of the handle's lifetime.
func (rt *Runtime) Pin(v value.Value) *Pinned {
	rt.check()
	cell := new(value.Value)
	*cell = v
	rt.abi.RegisterGlobalRoot(cell)
	rt.pins = append(rt.pins, cell)
	return &Pinned{cell: cell}
}
