package engine

import (
	"strconv"
	"strings"

	"github.com/wippyai/mlbridge/value"
)

// Format renders v for diagnostics. Lists, options and tuples are not told
// apart from other tag-0 blocks; nesting deeper than 16 prints "...".
func (h *Heap) Format(v value.Value) string {
	var sb strings.Builder
	h.format(&sb, v, 0)
	return sb.String()
}

func (h *Heap) format(sb *strings.Builder, v value.Value, depth int) {
	if v.IsExceptionResult() {
		sb.WriteString("exception ")
		h.format(sb, v.ExceptionOf(), depth)
		return
	}
	if v.IsImmediate() {
		sb.WriteString(strconv.FormatInt(v.IntVal(), 10))
		return
	}
	if depth > 16 {
		sb.WriteString("...")
		return
	}
	switch tag := v.Tag(); tag {
	case value.StringTag:
		sb.WriteString(strconv.Quote(v.StringVal()))
	case value.DoubleTag:
		sb.WriteString(strconv.FormatFloat(v.FloatVal(), 'g', -1, 64))
	case value.DoubleArrayTag:
		sb.WriteString("[|")
		for i, n := 0, v.ArrayLen(); i < n; i++ {
			if i > 0 {
				sb.WriteString("; ")
			}
			sb.WriteString(strconv.FormatFloat(v.DoubleField(i), 'g', -1, 64))
		}
		sb.WriteString("|]")
	case value.ClosureTag:
		sb.WriteString("<fun")
		if name := h.CodeName(v); name != "" {
			sb.WriteString(" " + name)
		}
		sb.WriteString("/" + strconv.Itoa(ClosureArity(v)) + ">")
	case value.ObjectTag:
		if ctor := exceptionCtor(v); ctor != 0 {
			sb.WriteString(ExceptionName(v))
			return
		}
		sb.WriteString("<object>")
	case value.CustomTag:
		h.formatCustom(sb, v)
	case value.AbstractTag:
		sb.WriteString("<abstract>")
	default:
		if tag == 0 && exceptionCtor(v) != 0 {
			sb.WriteString(ExceptionName(v))
			if arg, ok := ExceptionArg(v); ok {
				sb.WriteString(" ")
				h.format(sb, arg, depth+1)
			}
			return
		}
		sb.WriteString(strconv.Itoa(int(tag)))
		sb.WriteString("(")
		for i, n := 0, v.Wosize(); i < n; i++ {
			if i > 0 {
				sb.WriteString(", ")
			}
			h.format(sb, v.Field(i), depth+1)
		}
		sb.WriteString(")")
	}
}

func (h *Heap) formatCustom(sb *strings.Builder, v value.Value) {
	ops := h.CustomOpsOf(v)
	if ops == nil {
		sb.WriteString("<custom>")
		return
	}
	switch ops.Identifier {
	case Int32Ops:
		sb.WriteString(strconv.FormatInt(int64(h.Int32Val(v)), 10) + "l")
	case Int64Ops:
		sb.WriteString(strconv.FormatInt(h.Int64Val(v), 10) + "L")
	case NativeintOps:
		sb.WriteString(strconv.FormatInt(h.NativeintVal(v), 10) + "n")
	case BigarrayOps:
		ba, _ := h.BigarrayOf(v)
		sb.WriteString("<bigarray")
		if ba != nil {
			for _, d := range ba.Dims {
				sb.WriteString(" " + strconv.Itoa(d))
			}
		}
		sb.WriteString(">")
	default:
		sb.WriteString("<custom " + ops.Identifier + ">")
	}
}
