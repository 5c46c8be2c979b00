package engine

import (
	"bytes"
	"cmp"
	"math"
	"math/bits"

	"github.com/wippyai/mlbridge/value"
)

// Compare is structural comparison. Immediates order before blocks; blocks
// order by tag, then size, then fields. Functional and abstract values raise
// Invalid_argument.
func (h *Heap) Compare(a, b value.Value) int {
	return h.compare(a, b, 0)
}

// Equal reports structural equality.
func (h *Heap) Equal(a, b value.Value) bool {
	return h.Compare(a, b) == 0
}

func (h *Heap) compare(a, b value.Value, depth int) int {
	if a == b {
		return 0
	}
	if depth > h.cfg.MaxCallDepth {
		h.RaiseStackOverflow()
	}
	switch {
	case a.IsImmediate() && b.IsImmediate():
		return cmp.Compare(a.IntVal(), b.IntVal())
	case a.IsImmediate():
		return -1
	case b.IsImmediate():
		return 1
	}
	ta, tb := a.Tag(), b.Tag()
	if ta != tb {
		return cmp.Compare(ta, tb)
	}
	switch ta {
	case value.StringTag:
		return bytes.Compare(a.Bytes(), b.Bytes())
	case value.DoubleTag:
		return compareFloat(a.FloatVal(), b.FloatVal())
	case value.DoubleArrayTag:
		na, nb := a.ArrayLen(), b.ArrayLen()
		if na != nb {
			return cmp.Compare(na, nb)
		}
		for i := 0; i < na; i++ {
			if c := compareFloat(a.DoubleField(i), b.DoubleField(i)); c != 0 {
				return c
			}
		}
		return 0
	case value.CustomTag:
		oa, ob := h.CustomOpsOf(a), h.CustomOpsOf(b)
		if oa == nil || ob == nil {
			h.InvalidArgument("compare: abstract value")
		}
		if oa.Identifier != ob.Identifier {
			return cmp.Compare(oa.Identifier, ob.Identifier)
		}
		if oa.Compare == nil {
			h.InvalidArgument("compare: abstract value")
		}
		return oa.Compare(a, b)
	case value.ClosureTag, value.InfixTag:
		h.InvalidArgument("compare: functional value")
	case value.AbstractTag:
		h.InvalidArgument("compare: abstract value")
	case value.ObjectTag:
		return cmp.Compare(a.Field(1).IntVal(), b.Field(1).IntVal())
	}
	sa, sb := a.Wosize(), b.Wosize()
	if sa != sb {
		return cmp.Compare(sa, sb)
	}
	for i := 0; i < sa; i++ {
		if c := h.compare(a.Field(i), b.Field(i), depth+1); c != 0 {
			return c
		}
	}
	return 0
}

// compareFloat is a total order: NaN equals itself and sorts first.
func compareFloat(x, y float64) int {
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	case x == y:
		return 0
	case math.IsNaN(x) && math.IsNaN(y):
		return 0
	case math.IsNaN(x):
		return -1
	}
	return 1
}

// Hash limits: meaningful values mixed and blocks visited.
const (
	hashCount = 10
	hashLimit = 256
)

func hashMix(h, d uint32) uint32 {
	d *= 0xcc9e2d51
	d = bits.RotateLeft32(d, 15)
	d *= 0x1b873593
	h ^= d
	h = bits.RotateLeft32(h, 13)
	return h*5 + 0xe6546b64
}

func hashFinal(h uint32) uint32 {
	h ^= h >> 16
	h *= 0x85ebca6b
	h ^= h >> 13
	h *= 0xc2b2ae35
	h ^= h >> 16
	return h
}

func hashMixInt(h uint32, d int64) uint32 {
	n := uint64(d>>32) ^ uint64(d>>63) ^ uint64(d)
	return hashMix(h, uint32(n)) //nolint:gosec // truncation is the mixing step
}

func hashMixFloat(h uint32, f float64) uint32 {
	switch {
	case math.IsNaN(f):
		f = math.NaN()
	case f == 0:
		f = 0
	}
	b := math.Float64bits(f)
	h = hashMix(h, uint32(b))       //nolint:gosec // low word
	return hashMix(h, uint32(b>>32)) //nolint:gosec // high word
}

func hashMixString(h uint32, s []byte) uint32 {
	i := 0
	for ; i+4 <= len(s); i += 4 {
		w := uint32(s[i]) | uint32(s[i+1])<<8 | uint32(s[i+2])<<16 | uint32(s[i+3])<<24
		h = hashMix(h, w)
	}
	var w uint32
	switch len(s) & 3 {
	case 3:
		w = uint32(s[i+2]) << 16
		fallthrough
	case 2:
		w |= uint32(s[i+1]) << 8
		fallthrough
	case 1:
		w |= uint32(s[i])
		h = hashMix(h, w)
	}
	return h ^ uint32(len(s)) //nolint:gosec // length folded into the hash
}

// Hash is the polymorphic hash: a breadth-first walk mixing at most 10
// meaningful values over at most 256 blocks. The result fits in 30 bits.
func (h *Heap) Hash(v value.Value) int64 {
	var acc uint32
	queue := []value.Value{v}
	num := hashCount
	for rd := 0; rd < len(queue) && num > 0; rd++ {
		v := queue[rd]
		if v.IsImmediate() {
			acc = hashMixInt(acc, int64(v))
			num--
			continue
		}
		switch tag := v.Tag(); tag {
		case value.StringTag:
			acc = hashMixString(acc, v.Bytes())
			num--
		case value.DoubleTag:
			acc = hashMixFloat(acc, v.FloatVal())
			num--
		case value.DoubleArrayTag:
			for i, n := 0, v.ArrayLen(); i < n; i++ {
				acc = hashMixFloat(acc, v.DoubleField(i))
			}
			num--
		case value.AbstractTag, value.ClosureTag, value.InfixTag:
		case value.ObjectTag:
			acc = hashMixInt(acc, v.Field(1).IntVal())
			num--
		case value.CustomTag:
			if ops := h.CustomOpsOf(v); ops != nil && ops.Hash != nil {
				acc = hashMix(acc, uint32(ops.Hash(v))) //nolint:gosec // custom hashes are 32-bit
				num--
			}
		default:
			acc = hashMix(acc, uint32(v.Header().WithColor(value.White))) //nolint:gosec // header low word
			for i, n := 0, v.Wosize(); i < n && len(queue) < hashLimit; i++ {
				queue = append(queue, v.Field(i))
			}
		}
	}
	return int64(hashFinal(acc) & 0x3FFFFFFF)
}

// HashVariant returns the immediate tag of a polymorphic variant constructor.
func (h *Heap) HashVariant(name string) value.Value {
	return HashVariant(name)
}

// HashVariant computes the polymorphic variant hash of name.
func HashVariant(name string) value.Value {
	var acc int64
	for i := 0; i < len(name); i++ {
		acc = 223*acc + int64(name[i])
	}
	acc &= 1<<31 - 1
	if acc > 0x3FFFFFFF {
		acc -= 1 << 31
	}
	return value.Int(acc)
}
