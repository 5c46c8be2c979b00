package value

import "unsafe"

// StringWosize returns the block size needed for n bytes.
// At least one padding byte is always present.
func StringWosize(n int) int {
	return (n + WordSize) / WordSize
}

// StringLen returns the byte length of a string block.
// The last byte of the block stores wosize*8-1-len.
func (v Value) StringLen() int {
	size := v.Wosize() * WordSize
	last := *(*byte)(unsafe.Add(v.Ptr(0), size-1))
	return size - 1 - int(last)
}

// Bytes returns the payload of a string block, aliasing the heap.
func (v Value) Bytes() []byte {
	n := v.StringLen()
	if n == 0 {
		return []byte{}
	}
	return unsafe.Slice((*byte)(v.Ptr(0)), n)
}

// StringVal copies the payload of a string block.
func (v Value) StringVal() string {
	return string(v.Bytes())
}

// FillString writes data and the padding into a freshly allocated string block.
func (v Value) FillString(data []byte) {
	size := v.Wosize() * WordSize
	dst := unsafe.Slice((*byte)(v.Ptr(0)), size)
	copy(dst, data)
	for i := len(data); i < size-1; i++ {
		dst[i] = 0
	}
	dst[size-1] = byte(size - 1 - len(data))
}
