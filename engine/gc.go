package engine

import (
	"time"
	"unsafe"

	"go.uber.org/zap"

	"github.com/wippyai/mlbridge"
	"github.com/wippyai/mlbridge/value"
)

// collector copies reachable blocks out of from-space. A forwarded block has
// a zero header and its new address in field 0.
type collector struct {
	from   func(addr uintptr) bool
	alloc  func(wosize int, hd value.Header) value.Value
	work   []value.Value
	copied int
}

func (c *collector) forward(p *value.Value) {
	v := *p
	if v.IsImmediate() || !c.from(uintptr(v)) {
		return
	}
	hd := v.Header()
	if hd == 0 {
		*p = v.Field(0)
		return
	}
	n := int(hd.Wosize())
	nv := c.alloc(n, hd)
	copy(nv.Words(), v.Words())
	v.SetHeader(0)
	v.StoreField(0, nv)
	c.copied += n + 1
	if !hd.Tag().IsNoScan() {
		c.work = append(c.work, nv)
	}
	*p = nv
}

func (c *collector) drain() {
	for len(c.work) > 0 {
		v := c.work[len(c.work)-1]
		c.work = c.work[:len(c.work)-1]
		for i, n := 0, v.Wosize(); i < n; i++ {
			c.forward(v.FieldAddr(i))
		}
	}
}

// scanRoots forwards every root the collector knows about.
func (h *Heap) scanRoots(c *collector) {
	for p := range h.globals {
		c.forward(p)
	}
	for i := range h.locals {
		c.forward(&h.locals[i])
	}
	for _, cell := range h.named {
		c.forward(cell)
	}
	c.forward(&h.pending)
	for _, mem := range h.statics {
		v := value.Of(unsafe.Pointer(&mem[1]))
		if v.Tag().IsNoScan() {
			continue
		}
		for i, n := 0, v.Wosize(); i < n; i++ {
			c.forward(v.FieldAddr(i))
		}
	}
}

// MinorCollection empties the minor heap, promoting live young blocks.
func (h *Heap) MinorCollection() {
	h.checkAlloc()
	h.minorCollection()
}

func (h *Heap) minorCollection() {
	start := time.Now()
	h.inGC = true
	c := &collector{from: h.isYoungAddr, alloc: h.promote}
	h.scanRoots(c)
	for _, p := range h.remembered {
		c.forward(p)
	}
	c.drain()
	dead := h.sweepFinals(h.isYoungAddr)
	h.remembered = h.remembered[:0]
	h.inGC = false

	h.runFinalizers(dead)
	h.resetMinor()
	h.stats.MinorCollections++
	h.stats.PromotedWords += c.copied
	Logger().Debug("minor collection",
		zap.Int("promoted_words", c.copied),
		zap.Int("major_words", h.majorWords),
		zap.Int("finalized", len(dead)),
		zap.Duration("elapsed", time.Since(start)))

	if h.majorWords > h.budget {
		h.compact("major budget")
	}
}

// resetMinor empties the minor heap. Under Poison the old chunk is poisoned
// and retired so stale young pointers keep reading poison until Close.
func (h *Heap) resetMinor() {
	if !h.cfg.Poison {
		h.minor.next = 0
		return
	}
	h.minor.poison()
	h.graveyard = append(h.graveyard, h.minor)
	h.minor = newChunk(len(h.minor.mem))
}

// FullMajor runs a full collection: every live block is copied into fresh
// major memory and all young blocks are promoted.
func (h *Heap) FullMajor() {
	h.checkAlloc()
	h.compact("full major")
}

// Compact is FullMajor.
func (h *Heap) Compact() {
	h.FullMajor()
}

func (h *Heap) compact(reason string) {
	start := time.Now()
	h.compactRequested = false
	h.pressure = 0
	old := h.major
	from := func(addr uintptr) bool {
		return h.isYoungAddr(addr) || inChunks(old, addr)
	}
	to := newChunk(max(h.cfg.MajorChunkWords, h.majorWords+h.minor.next))
	h.major = []*chunk{to}

	h.inGC = true
	c := &collector{from: from, alloc: to.alloc}
	h.scanRoots(c)
	c.drain()
	dead := h.sweepFinals(from)
	h.remembered = h.remembered[:0]
	h.inGC = false

	h.runFinalizers(dead)
	before := h.majorWords
	h.majorWords = to.next
	h.budget = max(h.cfg.MajorHeapWords, 2*h.majorWords)
	if h.cfg.Poison {
		for _, oc := range old {
			oc.poison()
		}
		h.graveyard = append(h.graveyard, old...)
	}
	h.resetMinor()
	h.stats.Compactions++
	debugf("compaction copied %d words", c.copied)
	Logger().Debug("compaction",
		zap.String("reason", reason),
		zap.Int("before_words", before),
		zap.Int("live_words", h.majorWords),
		zap.Int("finalized", len(dead)),
		zap.Duration("elapsed", time.Since(start)))
}

// sweepFinals updates finalized blocks that moved and returns the dead ones.
func (h *Heap) sweepFinals(from func(uintptr) bool) []value.Value {
	var dead []value.Value
	kept := h.finals[:0]
	for _, v := range h.finals {
		switch {
		case !from(uintptr(v)):
			kept = append(kept, v)
		case v.Header() == 0:
			kept = append(kept, v.Field(0))
		default:
			dead = append(dead, v)
		}
	}
	h.finals = kept
	return dead
}

// runFinalizers runs finalizers of dead blocks. Their memory is still intact.
func (h *Heap) runFinalizers(dead []value.Value) {
	if len(dead) == 0 {
		return
	}
	h.noAlloc = true
	defer func() { h.noAlloc = false }()
	for _, v := range dead {
		id := int(v.Field(0).IntVal())
		slot := h.ops[id]
		h.finalize(slot.ops, v)
		if slot.owned {
			h.releaseOps(id)
		}
		h.stats.Finalized++
	}
}

func (h *Heap) finalize(ops *mlbridge.CustomOps, v value.Value) {
	defer func() {
		if r := recover(); r != nil {
			h.pending = value.Unit
			Logger().Error("finalizer panicked",
				zap.String("ops", ops.Identifier),
				zap.Any("panic", r))
		}
	}()
	Logger().Debug("finalize", zap.String("ops", ops.Identifier))
	ops.Finalize(v)
}
