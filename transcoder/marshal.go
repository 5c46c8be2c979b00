package transcoder

import (
	"reflect"
	"strconv"

	"github.com/wippyai/mlbridge/errors"
	"github.com/wippyai/mlbridge/runtime"
	"github.com/wippyai/mlbridge/value"
)

// Foreign ints carry 63 bits.
const (
	maxInt63 = 1<<62 - 1
	minInt63 = -1 << 62
)

func sub(path []string, seg string) []string {
	return append(append([]string{}, path...), seg)
}

// Marshal encodes x by reflection.
//
//	bool                 immediate 0/1
//	ints, uints          immediate, range checked against 63 bits
//	float32, float64     boxed double
//	string, []byte       string block
//	slices, arrays       array block, double array for floats
//	pointers             None or Some block
//	structs              record block, double array when every field is a float
//	struct{}             unit
//	value.Value          unchanged
//	ToValue              its own encoding
func Marshal(tok runtime.AllocToken, x any) (value.Value, error) {
	if x == nil {
		return value.Unit, nil
	}
	rv := reflect.ValueOf(x)
	p, err := compile(rv.Type())
	if err != nil {
		return value.Unit, err
	}
	return encode(tok, p, rv, nil)
}

func encode(tok runtime.AllocToken, p *plan, rv reflect.Value, path []string) (value.Value, error) {
	abi := tok.ABI()
	switch p.kind {
	case planRaw:
		return value.Value(rv.Uint()), nil
	case planCustom:
		if !p.encoder {
			return value.Unit, errors.TypeMismatch(errors.PhaseEncode, path, p.typ.String()+" does not implement ToValue")
		}
		return rv.Interface().(ToValue).ToValue(tok), nil
	case planUnit:
		return value.Unit, nil
	case planBool:
		return value.Bool(rv.Bool()), nil
	case planInt:
		i := rv.Int()
		if i < minInt63 || i > maxInt63 {
			return value.Unit, errors.Overflow(errors.PhaseEncode, path, i, "foreign int")
		}
		return value.Int(i), nil
	case planUint:
		u := rv.Uint()
		if u > maxInt63 {
			return value.Unit, errors.Overflow(errors.PhaseEncode, path, u, "foreign int")
		}
		return value.Int(int64(u)), nil
	case planFloat:
		return abi.AllocFloat(rv.Float()), nil
	case planString:
		return abi.AllocString([]byte(rv.String())), nil
	case planBytes:
		return abi.AllocString(rv.Bytes()), nil
	case planArray:
		if p.flat {
			return buildDoubles(tok, rv.Len(), func(i int) float64 { return rv.Index(i).Float() }), nil
		}
		return buildErr(tok, 0, rv.Len(), func(i int) (value.Value, error) {
			return encode(tok, p.elem, rv.Index(i), sub(path, index(i)))
		})
	case planList:
		return buildList(tok, rv.Len(), func(i int) (value.Value, error) {
			return encode(tok, p.elem, rv.Index(i), sub(path, index(i)))
		})
	case planOption:
		if rv.IsNil() {
			return value.None, nil
		}
		return buildErr(tok, 0, 1, func(int) (value.Value, error) {
			return encode(tok, p.elem, rv.Elem(), sub(path, "[some]"))
		})
	case planRecord:
		if p.flat {
			return buildDoubles(tok, len(p.fields), func(i int) float64 {
				return rv.Field(p.fields[i].index).Float()
			}), nil
		}
		return buildErr(tok, 0, len(p.fields), func(i int) (value.Value, error) {
			f := p.fields[i]
			return encode(tok, f.plan, rv.Field(f.index), sub(path, f.name))
		})
	}
	return value.Unit, errors.TypeMismatch(errors.PhaseEncode, path, "unsupported Go type "+p.typ.String())
}

// Unmarshal decodes v into the value ptr points to. It checks the shape of
// every block before reading it and never allocates on the foreign heap.
func Unmarshal(rt *runtime.Runtime, v value.Value, ptr any) error {
	rv := reflect.ValueOf(ptr)
	if !rv.IsValid() || rv.Kind() != reflect.Pointer || rv.IsNil() {
		return errors.New(errors.PhaseDecode, errors.KindTypeMismatch).
			Detail("target must be a non-nil pointer, got %T", ptr).
			Build()
	}
	p, err := compile(rv.Elem().Type())
	if err != nil {
		return err
	}
	return decode(rt, p, v, rv.Elem(), nil)
}

func shape(path []string, v value.Value, want string) error {
	return errors.TypeMismatch(errors.PhaseDecode, path, "expected "+want+", got "+describe(v))
}

func decode(rt *runtime.Runtime, p *plan, v value.Value, dst reflect.Value, path []string) error {
	switch p.kind {
	case planRaw:
		dst.SetUint(uint64(v))
	case planCustom:
		if !p.decoder {
			return errors.TypeMismatch(errors.PhaseDecode, path, p.typ.String()+" does not implement FromValue")
		}
		if err := dst.Addr().Interface().(FromValue).FromValue(rt, v); err != nil {
			return within(err, path)
		}
	case planUnit:
		if v != value.Unit {
			return shape(path, v, "unit")
		}
	case planBool:
		if v != value.True && v != value.False {
			return shape(path, v, "bool")
		}
		dst.SetBool(v.BoolVal())
	case planInt:
		if !v.IsImmediate() {
			return shape(path, v, "int")
		}
		i := v.IntVal()
		if dst.OverflowInt(i) {
			return errors.Overflow(errors.PhaseDecode, path, i, p.typ.String())
		}
		dst.SetInt(i)
	case planUint:
		if !v.IsImmediate() {
			return shape(path, v, "int")
		}
		i := v.IntVal()
		if i < 0 || dst.OverflowUint(uint64(i)) {
			return errors.Overflow(errors.PhaseDecode, path, i, p.typ.String())
		}
		dst.SetUint(uint64(i))
	case planFloat:
		if !v.IsBlock() || v.Tag() != value.DoubleTag {
			return shape(path, v, "float")
		}
		f := v.FloatVal()
		if dst.OverflowFloat(f) {
			return errors.Overflow(errors.PhaseDecode, path, f, p.typ.String())
		}
		dst.SetFloat(f)
	case planString:
		if !v.IsBlock() || v.Tag() != value.StringTag {
			return shape(path, v, "string")
		}
		dst.SetString(v.StringVal())
	case planBytes:
		if !v.IsBlock() || v.Tag() != value.StringTag {
			return shape(path, v, "bytes")
		}
		dst.SetBytes(append([]byte(nil), v.Bytes()...))
	case planArray:
		return decodeArrayInto(rt, p, v, dst, path)
	case planList:
		out := reflect.Zero(p.typ)
		err := walkList(v, func(_ int, head value.Value) error {
			elem := reflect.New(p.elem.typ).Elem()
			if err := decode(rt, p.elem, head, elem, nil); err != nil {
				return err
			}
			out = reflect.Append(out, elem)
			return nil
		})
		if err != nil {
			return within(err, path)
		}
		dst.Set(out)
	case planOption:
		if v == value.None {
			dst.SetZero()
			return nil
		}
		if !v.IsBlock() || v.Tag() != 0 || v.Wosize() != 1 {
			return shape(path, v, "option")
		}
		elem := reflect.New(p.typ.Elem())
		if err := decode(rt, p.elem, v.Field(0), elem.Elem(), sub(path, "[some]")); err != nil {
			return err
		}
		dst.Set(elem)
	case planRecord:
		return decodeRecord(rt, p, v, dst, path)
	}
	return nil
}

func decodeArrayInto(rt *runtime.Runtime, p *plan, v value.Value, dst reflect.Value, path []string) error {
	if !v.IsBlock() {
		return shape(path, v, "array")
	}
	var n int
	double := false
	switch {
	case v.Tag() == value.DoubleArrayTag && p.flat:
		n, double = v.ArrayLen(), true
	case v.Tag() == 0:
		n = v.Wosize()
	default:
		return shape(path, v, "array")
	}
	if p.typ.Kind() == reflect.Array {
		if n != dst.Len() {
			return shape(path, v, "array of "+strconv.Itoa(dst.Len()))
		}
	} else {
		dst.Set(reflect.MakeSlice(p.typ, n, n))
	}
	for i := 0; i < n; i++ {
		if double {
			dst.Index(i).SetFloat(v.DoubleField(i))
			continue
		}
		if err := decode(rt, p.elem, v.Field(i), dst.Index(i), sub(path, index(i))); err != nil {
			return err
		}
	}
	return nil
}

func decodeRecord(rt *runtime.Runtime, p *plan, v value.Value, dst reflect.Value, path []string) error {
	if p.flat {
		if !v.IsBlock() || v.Tag() != value.DoubleArrayTag || v.ArrayLen() != len(p.fields) {
			return shape(path, v, "float record of "+strconv.Itoa(len(p.fields)))
		}
		for i, f := range p.fields {
			dst.Field(f.index).SetFloat(v.DoubleField(i))
		}
		return nil
	}
	if !v.IsBlock() || v.Tag() != 0 || v.Wosize() != len(p.fields) {
		return shape(path, v, "record of "+strconv.Itoa(len(p.fields))+" fields")
	}
	for i, f := range p.fields {
		if err := decode(rt, f.plan, v.Field(i), dst.Field(f.index), sub(path, f.name)); err != nil {
			return err
		}
	}
	return nil
}
