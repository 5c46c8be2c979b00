package value

// Tag is the 8-bit kind stored in a block header.
type Tag uint8

const (
	LazyTag        Tag = 246
	ClosureTag     Tag = 247
	ObjectTag      Tag = 248
	InfixTag       Tag = 249
	ForwardTag     Tag = 250
	NoScanTag      Tag = 251
	AbstractTag    Tag = 251
	StringTag      Tag = 252
	DoubleTag      Tag = 253
	DoubleArrayTag Tag = 254
	CustomTag      Tag = 255
)

// MaxVariantTag is the largest tag usable by a variant constructor.
const MaxVariantTag Tag = 245

// IsNoScan reports whether the collector must not interpret fields as values.
func (t Tag) IsNoScan() bool {
	return t >= NoScanTag
}

func (t Tag) String() string {
	switch t {
	case LazyTag:
		return "lazy"
	case ClosureTag:
		return "closure"
	case ObjectTag:
		return "object"
	case InfixTag:
		return "infix"
	case ForwardTag:
		return "forward"
	case AbstractTag:
		return "abstract"
	case StringTag:
		return "string"
	case DoubleTag:
		return "double"
	case DoubleArrayTag:
		return "double_array"
	case CustomTag:
		return "custom"
	}
	return "block"
}

// Color is the two GC bits of a header.
type Color uint8

const (
	White Color = 0
	Gray  Color = 1
	Blue  Color = 2
	Black Color = 3
)

// Header is a block header word.
type Header uint64

// MaxWosize is the largest block size a header can describe.
const MaxWosize = 1<<54 - 1

// MakeHeader builds a header word.
func MakeHeader(wosize uint64, color Color, tag Tag) Header {
	return Header(wosize<<10 | uint64(color&3)<<8 | uint64(tag))
}

// Wosize returns the size field in words.
func (h Header) Wosize() uint64 {
	return uint64(h) >> 10
}

// Tag returns the tag field.
func (h Header) Tag() Tag {
	return Tag(h & 0xff)
}

// Color returns the GC color bits.
func (h Header) Color() Color {
	return Color(h >> 8 & 3)
}

// WithColor returns h with its color replaced.
func (h Header) WithColor(c Color) Header {
	return h&^(3<<8) | Header(c&3)<<8
}
