package engine

import (
	"unsafe"

	"fortio.org/safecast"
	"go.uber.org/zap"

	"github.com/wippyai/mlbridge"
	"github.com/wippyai/mlbridge/resource"
	"github.com/wippyai/mlbridge/value"
)

// PoisonWord fills retired heap memory when Config.Poison is set.
const PoisonWord uint64 = 0xdeadbeefdeadbee0

// chunk is a contiguous run of heap words. Go never moves heap objects,
// so the addresses of its words stay valid while the chunk is referenced.
type chunk struct {
	mem  []uint64
	base uintptr
	end  uintptr
	next int
}

func newChunk(words int) *chunk {
	mem := make([]uint64, words)
	base := uintptr(unsafe.Pointer(unsafe.SliceData(mem)))
	return &chunk{mem: mem, base: base, end: base + uintptr(words)*value.WordSize}
}

func (c *chunk) contains(addr uintptr) bool {
	return addr >= c.base && addr < c.end
}

// used reports whether addr lies in the allocated part of the chunk.
func (c *chunk) used(addr uintptr) bool {
	return addr >= c.base && addr < c.base+uintptr(c.next)*value.WordSize
}

func (c *chunk) free() int {
	return len(c.mem) - c.next
}

func (c *chunk) alloc(wosize int, hd value.Header) value.Value {
	c.mem[c.next] = uint64(hd)
	v := value.Value(c.base + uintptr(c.next+1)*value.WordSize)
	c.next += wosize + 1
	return v
}

func (c *chunk) poison() {
	for i := range c.mem[:c.next] {
		c.mem[i] = PoisonWord
	}
}

// Stats reports collector activity.
type Stats struct {
	MinorCollections int
	Compactions      int
	MinorWords       int
	MajorWords       int
	PromotedWords    int
	AllocatedWords   int
	Finalized        int
	Chunks           int
}

// Heap is a single-threaded foreign runtime instance. It implements
// mlbridge.ABI. A Heap must only be used by one goroutine at a time.
type Heap struct {
	cfg Config

	minor      *chunk
	major      []*chunk
	majorWords int
	budget     int
	atoms      *chunk
	statics    [][]uint64
	graveyard  []*chunk

	remembered []*value.Value
	globals    map[*value.Value]struct{}
	locals     []value.Value
	named      map[string]*value.Value

	codes     []codeEntry
	externals map[string]*external

	ops      []opsSlot
	opsIndex map[*mlbridge.CustomOps]int
	freeOps  []int
	finals   []value.Value
	natives  *resource.Table
	pressure float64

	exn       predefined
	nextExnID int64
	signal    *raiseSignal
	pending   value.Value
	depth     int

	wasm *wasmHost

	compactRequested bool
	inGC             bool
	noAlloc          bool
	closed           bool

	stats Stats
}

var _ mlbridge.ABI = (*Heap)(nil)

// New creates a heap with the given configuration. Zero fields take defaults.
func New(cfg Config) *Heap {
	cfg = cfg.withDefaults()
	h := &Heap{
		cfg:       cfg,
		minor:     newChunk(cfg.MinorHeapWords),
		budget:    cfg.MajorHeapWords,
		atoms:     newChunk(256),
		globals:   make(map[*value.Value]struct{}),
		named:     make(map[string]*value.Value),
		externals: make(map[string]*external),
		opsIndex:  make(map[*mlbridge.CustomOps]int),
		natives:   resource.NewTable(),
		pending:   value.Unit,
	}
	h.signal = &raiseSignal{heap: h}
	for i := 0; i < 256; i++ {
		h.atoms.alloc(0, value.MakeHeader(0, value.White, value.Tag(i)))
	}
	h.initBuiltinOps()
	h.initExceptions()
	h.initCodes()
	Logger().Debug("heap created",
		zap.Int("minor_words", cfg.MinorHeapWords),
		zap.Int("major_budget", cfg.MajorHeapWords),
		zap.Bool("gc_stress", cfg.GCStress),
		zap.Bool("poison", cfg.Poison))
	return h
}

// Config returns the effective configuration.
func (h *Heap) Config() Config {
	return h.cfg
}

// Stats returns a snapshot of collector counters.
func (h *Heap) Stats() Stats {
	s := h.stats
	s.MinorWords = h.minor.next
	s.MajorWords = h.majorWords
	s.Chunks = len(h.major)
	return s
}

// Natives returns the table holding native values referenced from custom blocks.
func (h *Heap) Natives() *resource.Table {
	return h.natives
}

// Close releases the heap. Retired memory kept for poisoning is dropped,
// native values are released and the wasm runtime, if any, is closed.
func (h *Heap) Close() error {
	if h.closed {
		return nil
	}
	h.closed = true
	var firstErr error
	if err := h.natives.Close(); err != nil {
		firstErr = err
	}
	if h.wasm != nil {
		if err := h.wasm.close(); err != nil && firstErr == nil {
			firstErr = err
		}
		h.wasm = nil
	}
	h.major = nil
	h.graveyard = nil
	h.statics = nil
	h.locals = nil
	h.remembered = nil
	return firstErr
}

// Atom returns the zero-sized block for tag.
func (h *Heap) Atom(tag value.Tag) value.Value {
	return value.Value(h.atoms.base + uintptr(int(tag)+1)*value.WordSize)
}

// IsYoung reports whether v is a block in the minor heap.
func (h *Heap) IsYoung(v value.Value) bool {
	return v.IsBlock() && h.minor.used(uintptr(v))
}

// InHeap reports whether v is a block owned by the collector.
func (h *Heap) InHeap(v value.Value) bool {
	if v.IsImmediate() {
		return false
	}
	if h.minor.used(uintptr(v)) {
		return true
	}
	return inChunks(h.major, uintptr(v))
}

func (h *Heap) isYoungAddr(addr uintptr) bool {
	return h.minor.used(addr)
}

func inChunks(chunks []*chunk, addr uintptr) bool {
	for _, c := range chunks {
		if c.used(addr) {
			return true
		}
	}
	return false
}

// inHeapMemory reports whether p points into minor, major or static memory.
func (h *Heap) inHeapMemory(p unsafe.Pointer) bool {
	addr := uintptr(p)
	if h.minor.contains(addr) {
		return true
	}
	for _, c := range h.major {
		if c.contains(addr) {
			return true
		}
	}
	for _, s := range h.statics {
		base := uintptr(unsafe.Pointer(unsafe.SliceData(s)))
		if addr >= base && addr < base+uintptr(len(s))*value.WordSize {
			return true
		}
	}
	return false
}

func (h *Heap) checkAlloc() {
	if h.closed {
		panic("engine: allocation on a closed heap")
	}
	if h.noAlloc {
		panic("engine: allocation during finalization")
	}
	if h.inGC {
		panic("engine: allocation during collection")
	}
}

// allocBlock is the single allocation path. Scanned blocks are filled with
// Unit, unscanned blocks with zero words.
func (h *Heap) allocBlock(wosize int, tag value.Tag) value.Value {
	h.checkAlloc()
	size, err := safecast.Conv[uint64](wosize)
	if err != nil || size > value.MaxWosize {
		h.InvalidArgument("alloc: invalid block size")
	}
	if wosize == 0 {
		return h.Atom(tag)
	}
	if h.cfg.GCStress || h.compactRequested {
		h.compact("stress")
	}
	hd := value.MakeHeader(size, value.White, tag)
	var v value.Value
	if wosize <= MaxYoungWosize {
		if h.minor.free() < wosize+1 {
			h.minorCollection()
		}
		v = h.minor.alloc(wosize, hd)
	} else {
		v = h.allocMajor(wosize, hd)
	}
	fill := value.Unit
	if tag.IsNoScan() {
		fill = 0
	}
	for i := 0; i < wosize; i++ {
		v.StoreField(i, fill)
	}
	h.stats.AllocatedWords += wosize + 1
	return v
}

func (h *Heap) allocMajor(wosize int, hd value.Header) value.Value {
	need := wosize + 1
	switch {
	case h.cfg.MaxHeapWords > 0 && h.majorWords+need > h.cfg.MaxHeapWords:
		h.compact("heap limit")
		if h.majorWords+need > h.cfg.MaxHeapWords {
			Logger().Warn("heap limit exceeded",
				zap.Int("major_words", h.majorWords),
				zap.Int("request", need),
				zap.Int("max_heap_words", h.cfg.MaxHeapWords))
			h.RaiseOutOfMemory()
		}
	case h.majorWords+need > h.budget:
		h.compact("major budget")
	}
	return h.promote(wosize, hd)
}

// promote allocates in the major heap without triggering a collection.
func (h *Heap) promote(wosize int, hd value.Header) value.Value {
	need := wosize + 1
	var c *chunk
	if n := len(h.major); n > 0 && h.major[n-1].free() >= need {
		c = h.major[n-1]
	} else {
		c = newChunk(max(h.cfg.MajorChunkWords, need))
		h.major = append(h.major, c)
	}
	h.majorWords += need
	return c.alloc(wosize, hd)
}

// Alloc allocates a block of wosize fields. Scanned fields start as Unit.
func (h *Heap) Alloc(wosize int, tag value.Tag) value.Value {
	return h.allocBlock(wosize, tag)
}

// AllocSmall allocates a block that must fit in the minor heap.
func (h *Heap) AllocSmall(wosize int, tag value.Tag) value.Value {
	if wosize > MaxYoungWosize {
		h.InvalidArgument("alloc_small: block too large")
	}
	return h.allocBlock(wosize, tag)
}

// AllocTuple allocates a tag-0 block of n fields.
func (h *Heap) AllocTuple(n int) value.Value {
	return h.allocBlock(n, 0)
}

// AllocString allocates a string block holding a copy of data.
func (h *Heap) AllocString(data []byte) value.Value {
	if len(data) > 0 && h.inHeapMemory(unsafe.Pointer(unsafe.SliceData(data))) {
		data = append([]byte(nil), data...)
	}
	v := h.allocBlock(value.StringWosize(len(data)), value.StringTag)
	v.FillString(data)
	return v
}

// AllocFloat allocates a boxed float.
func (h *Heap) AllocFloat(f float64) value.Value {
	v := h.allocBlock(1, value.DoubleTag)
	v.StoreFloat(f)
	return v
}

// AllocDoubleArray allocates a flat float array of n zeroed elements.
// The empty array is the tag-0 atom.
func (h *Heap) AllocDoubleArray(n int) value.Value {
	if n == 0 {
		return h.Atom(0)
	}
	return h.allocBlock(n, value.DoubleArrayTag)
}

// AllocStatic allocates a block outside the collected heap. It never moves
// and is never freed before Close. Its fields must not point into the heap
// unless written through Modify.
func (h *Heap) AllocStatic(wosize int, tag value.Tag) value.Value {
	if h.closed {
		panic("engine: allocation on a closed heap")
	}
	size, err := safecast.Conv[uint64](wosize)
	if err != nil || size > value.MaxWosize {
		h.InvalidArgument("alloc_static: invalid block size")
	}
	if wosize == 0 {
		return h.Atom(tag)
	}
	mem := make([]uint64, wosize+1)
	mem[0] = uint64(value.MakeHeader(size, value.Black, tag))
	if !tag.IsNoScan() {
		for i := 1; i <= wosize; i++ {
			mem[i] = uint64(value.Unit)
		}
	}
	h.statics = append(h.statics, mem)
	return value.Of(unsafe.Pointer(&mem[1]))
}

func (h *Heap) staticString(s string) value.Value {
	v := h.AllocStatic(value.StringWosize(len(s)), value.StringTag)
	v.FillString([]byte(s))
	return v
}

// Modify stores v into field i of block and records the field when an old
// block receives a young pointer.
func (h *Heap) Modify(block value.Value, i int, v value.Value) {
	block.StoreField(i, v)
	if v.IsBlock() && h.isYoungAddr(uintptr(v)) && !h.isYoungAddr(uintptr(block)) {
		h.remembered = append(h.remembered, block.FieldAddr(i))
	}
}

// Initialize stores into a field of a freshly allocated block.
func (h *Heap) Initialize(block value.Value, i int, v value.Value) {
	h.Modify(block, i, v)
}

// RegisterGlobalRoot makes *p a root until RemoveGlobalRoot.
func (h *Heap) RegisterGlobalRoot(p *value.Value) {
	h.globals[p] = struct{}{}
}

// RemoveGlobalRoot unregisters a global root. Unknown roots are ignored.
func (h *Heap) RemoveGlobalRoot(p *value.Value) {
	delete(h.globals, p)
}

// GlobalRoots returns the number of registered global roots.
func (h *Heap) GlobalRoots() int {
	return len(h.globals)
}

// PushLocal appends v to the local root stack and returns its slot.
func (h *Heap) PushLocal(v value.Value) int {
	h.locals = append(h.locals, v)
	return len(h.locals) - 1
}

// Local reads local root slot i.
func (h *Heap) Local(i int) value.Value {
	return h.locals[i]
}

// SetLocal overwrites local root slot i.
func (h *Heap) SetLocal(i int, v value.Value) {
	h.locals[i] = v
}

// LocalsTop returns the current height of the local root stack.
func (h *Heap) LocalsTop() int {
	return len(h.locals)
}

// PopLocals truncates the local root stack to top.
func (h *Heap) PopLocals(top int) {
	if top < len(h.locals) {
		h.locals = h.locals[:top]
	}
}

// NamedValue returns the cell registered under name, or nil.
func (h *Heap) NamedValue(name string) *value.Value {
	return h.named[name]
}

// RegisterNamedValue publishes v under name. The cell is a root.
func (h *Heap) RegisterNamedValue(name string, v value.Value) {
	if cell, ok := h.named[name]; ok {
		*cell = v
		return
	}
	cell := new(value.Value)
	*cell = v
	h.named[name] = cell
}
