package types

import (
	"sync"

	"fortio.org/safecast"

	"github.com/wippyai/mlbridge"
	"github.com/wippyai/mlbridge/errors"
	"github.com/wippyai/mlbridge/resource"
	"github.com/wippyai/mlbridge/runtime"
	"github.com/wippyai/mlbridge/value"
)

// Ops describes a Go type stored in custom blocks.
type Ops[T any] struct {
	// Identifier names the block kind to foreign code.
	Identifier string
	// Finalize runs after the block is collected, unless the pointer was
	// dropped first. It must not touch the foreign heap.
	Finalize func(x T)
	// Compare enables polymorphic comparison of blocks.
	Compare func(a, b T) int
	// Hash enables polymorphic hashing of blocks.
	Hash func(x T) int64
	// Used and Max report out-of-heap memory held by each value; see
	// mlbridge.ABI.AllocCustom.
	Used, Max int
}

// Pointer refers to a Go value owned by a foreign block. Custom and final
// blocks release the value when collected; abstract blocks have no finalizer
// and must be dropped explicitly.
type Pointer[T any] struct {
	rt    *runtime.Runtime
	block *runtime.Pinned
	kind  resource.Kind
}

// handle field of each block kind.
func handleField(kind resource.Kind) int {
	if kind == resource.KindAbstract {
		return 0
	}
	return 1
}

type opsKey struct {
	abi mlbridge.ABI
	ops any
}

// customOps maps a typed Ops to its registered table, one per heap.
var customOps sync.Map // opsKey -> *mlbridge.CustomOps

func lookup[T any](natives *resource.Table, v value.Value) (T, bool) {
	var zero T
	h, err := safecast.Conv[resource.Handle](v.Field(1).IntVal())
	if err != nil {
		return zero, false
	}
	raw, ok := natives.GetKind(h, resource.KindCustom)
	if !ok {
		return zero, false
	}
	x, ok := raw.(T)
	return x, ok
}

func (o *Ops[T]) forABI(abi mlbridge.ABI) *mlbridge.CustomOps {
	key := opsKey{abi: abi, ops: o}
	if ops, ok := customOps.Load(key); ok {
		return ops.(*mlbridge.CustomOps)
	}
	natives := abi.Natives()
	ops := &mlbridge.CustomOps{
		Identifier: o.Identifier,
		Finalize: func(v value.Value) {
			h, err := safecast.Conv[resource.Handle](v.Field(1).IntVal())
			if err != nil || h == 0 {
				return
			}
			raw, ok := natives.Remove(h)
			if ok && o.Finalize != nil {
				o.Finalize(raw.(T))
			}
		},
	}
	if o.Compare != nil {
		ops.Compare = func(a, b value.Value) int {
			x, okx := lookup[T](natives, a)
			y, oky := lookup[T](natives, b)
			if !okx || !oky {
				return compareBool(okx, oky)
			}
			return o.Compare(x, y)
		}
	}
	if o.Hash != nil {
		ops.Hash = func(v value.Value) int64 {
			x, ok := lookup[T](natives, v)
			if !ok {
				return 0
			}
			return o.Hash(x)
		}
	}
	actual, _ := customOps.LoadOrStore(key, ops)
	return actual.(*mlbridge.CustomOps)
}

// dropped pointers sort first.
func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	}
	return 1
}

// AllocCustom stores x in a custom block described by ops.
func AllocCustom[T any](tok runtime.AllocToken, ops *Ops[T], x T) Pointer[T] {
	abi := tok.ABI()
	v := abi.AllocCustom(ops.forABI(abi), 1, ops.Used, ops.Max)
	h := abi.Natives().Insert(resource.KindCustom, x)
	v.StoreField(1, value.Int(int64(h)))
	rt := tok.Runtime()
	return Pointer[T]{rt: rt, block: rt.Pin(v), kind: resource.KindCustom}
}

// AllocFinal stores x in a finalized block. finalize may be nil.
func AllocFinal[T any](tok runtime.AllocToken, x T, finalize func(x T)) Pointer[T] {
	abi := tok.ABI()
	natives := abi.Natives()
	v := abi.AllocFinal(1, func(v value.Value) {
		h, err := safecast.Conv[resource.Handle](v.Field(1).IntVal())
		if err != nil || h == 0 {
			return
		}
		raw, ok := natives.Remove(h)
		if ok && finalize != nil {
			finalize(raw.(T))
		}
	}, 0, 1)
	h := natives.Insert(resource.KindFinal, x)
	v.StoreField(1, value.Int(int64(h)))
	rt := tok.Runtime()
	return Pointer[T]{rt: rt, block: rt.Pin(v), kind: resource.KindFinal}
}

// AllocAbstract stores x in an abstract block. Abstract blocks are never
// finalized: Drop releases x.
func AllocAbstract[T any](tok runtime.AllocToken, x T) Pointer[T] {
	abi := tok.ABI()
	v := abi.Alloc(1, value.AbstractTag)
	h := abi.Natives().Insert(resource.KindAbstract, x)
	v.StoreField(0, value.Int(int64(h)))
	rt := tok.Runtime()
	return Pointer[T]{rt: rt, block: rt.Pin(v), kind: resource.KindAbstract}
}

// PointerOf wraps a block created by one of the Alloc functions.
func PointerOf[T any](rt *runtime.Runtime, v value.Value) (Pointer[T], error) {
	var kind resource.Kind
	switch {
	case v.IsBlock() && v.Tag() == value.AbstractTag && v.Wosize() == 1:
		kind = resource.KindAbstract
	case v.IsBlock() && v.Tag() == value.CustomTag && v.Wosize() == 2:
		kind = resource.KindCustom
		if rt.ABI().IsCustom(v, mlbridge.FinalOps) {
			kind = resource.KindFinal
		}
	default:
		return Pointer[T]{}, errors.TypeMismatch(errors.PhaseDecode, nil, "expected custom or abstract block, got "+v.Tag().String())
	}
	p := Pointer[T]{rt: rt, block: rt.Pin(v), kind: kind}
	if _, err := p.Get(); err != nil {
		return Pointer[T]{}, err
	}
	return p, nil
}

// Value returns the block. It is current until the next allocation.
func (p Pointer[T]) Value() value.Value {
	return p.block.Get()
}

// ToValue makes a Pointer usable as a field of marshalled Go values.
func (p Pointer[T]) ToValue(runtime.AllocToken) value.Value {
	return p.block.Get()
}

func (p Pointer[T]) handle() resource.Handle {
	h, err := safecast.Conv[resource.Handle](p.block.Get().Field(handleField(p.kind)).IntVal())
	if err != nil {
		return 0
	}
	return h
}

// Get returns the stored value.
func (p Pointer[T]) Get() (T, error) {
	var zero T
	raw, ok := p.rt.ABI().Natives().GetKind(p.handle(), p.kind)
	if !ok {
		return zero, errors.InvalidArgument("pointer to a dropped " + p.kind.String() + " value")
	}
	x, ok := raw.(T)
	if !ok {
		return zero, errors.TypeMismatch(errors.PhaseDecode, nil, p.kind.String()+" block holds a different Go type")
	}
	return x, nil
}

// Set replaces the stored value.
func (p Pointer[T]) Set(x T) error {
	if !p.rt.ABI().Natives().Replace(p.handle(), x) {
		return errors.InvalidArgument("pointer to a dropped " + p.kind.String() + " value")
	}
	return nil
}

// Drop releases the stored value now. The block stays valid but Get fails
// afterwards and no finalizer runs for it. Dropping twice is a no-op.
func (p Pointer[T]) Drop() {
	h := p.handle()
	if h == 0 {
		return
	}
	p.block.Get().StoreField(handleField(p.kind), value.Int(0))
	p.rt.ABI().Natives().Remove(h)
}
