package transcoder

import (
	"reflect"
	"strings"
	"sync"

	"github.com/wippyai/mlbridge/errors"
	"github.com/wippyai/mlbridge/value"
)

type planKind int

const (
	planRaw planKind = iota
	planCustom
	planUnit
	planBool
	planInt
	planUint
	planFloat
	planString
	planBytes
	planArray
	planList
	planOption
	planRecord
)

// plan is the compiled conversion of one Go type.
type plan struct {
	typ    reflect.Type
	elem   *plan
	fields []fieldPlan
	kind   planKind
	// flat records and arrays store unboxed doubles.
	flat    bool
	encoder bool
	decoder bool
}

type fieldPlan struct {
	name  string
	plan  *plan
	index int
}

var (
	valueType     = reflect.TypeFor[value.Value]()
	toValueType   = reflect.TypeFor[ToValue]()
	fromValueType = reflect.TypeFor[FromValue]()
)

// plans caches compiled plans by Go type.
var plans sync.Map // reflect.Type -> *plan

func compile(t reflect.Type) (*plan, error) {
	if cached, ok := plans.Load(t); ok {
		return cached.(*plan), nil
	}
	p, err := compileType(t, make(map[reflect.Type]*plan), nil)
	if err != nil {
		return nil, err
	}
	plans.Store(t, p)
	return p, nil
}

func compileType(t reflect.Type, seen map[reflect.Type]*plan, path []string) (*plan, error) {
	if p, ok := seen[t]; ok {
		return p, nil
	}
	p := &plan{typ: t}
	seen[t] = p

	if t == valueType {
		p.kind = planRaw
		return p, nil
	}
	p.encoder = t.Implements(toValueType)
	p.decoder = reflect.PointerTo(t).Implements(fromValueType)
	if p.encoder || p.decoder {
		p.kind = planCustom
		return p, nil
	}

	switch t.Kind() {
	case reflect.Bool:
		p.kind = planBool
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		p.kind = planInt
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		p.kind = planUint
	case reflect.Float32, reflect.Float64:
		p.kind = planFloat
	case reflect.String:
		p.kind = planString
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			p.kind = planBytes
			return p, nil
		}
		return compileElem(p, planArray, t, seen, path)
	case reflect.Array:
		return compileElem(p, planArray, t, seen, path)
	case reflect.Pointer:
		return compileElem(p, planOption, t, seen, path)
	case reflect.Struct:
		return compileRecord(p, t, seen, path)
	default:
		return nil, errors.TypeMismatch(errors.PhaseEncode, path, "unsupported Go type "+t.String())
	}
	return p, nil
}

func compileElem(p *plan, kind planKind, t reflect.Type, seen map[reflect.Type]*plan, path []string) (*plan, error) {
	elem, err := compileType(t.Elem(), seen, append(append([]string{}, path...), "[elem]"))
	if err != nil {
		return nil, err
	}
	p.kind = kind
	p.elem = elem
	p.flat = kind == planArray && elem.kind == planFloat
	return p, nil
}

// compileRecord maps exported fields in declaration order. The ml struct tag
// renames a field in error paths, skips it with "-", and ",list" encodes a
// slice field as a foreign list.
func compileRecord(p *plan, t reflect.Type, seen map[reflect.Type]*plan, path []string) (*plan, error) {
	p.kind = planRecord
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		name, opts, _ := strings.Cut(sf.Tag.Get("ml"), ",")
		if name == "-" {
			continue
		}
		if name == "" {
			name = sf.Name
		}
		fieldPath := append(append([]string{}, path...), name)
		fp, err := compileType(sf.Type, seen, fieldPath)
		if err != nil {
			return nil, err
		}
		if opts == "list" {
			if sf.Type.Kind() != reflect.Slice {
				return nil, errors.TypeMismatch(errors.PhaseEncode, fieldPath, "list option on non-slice "+sf.Type.String())
			}
			elem, err := compileType(sf.Type.Elem(), seen, fieldPath)
			if err != nil {
				return nil, err
			}
			fp = &plan{typ: sf.Type, kind: planList, elem: elem}
		}
		p.fields = append(p.fields, fieldPlan{name: name, index: i, plan: fp})
	}
	if len(p.fields) == 0 {
		p.kind = planUnit
		return p, nil
	}
	p.flat = true
	for _, f := range p.fields {
		p.flat = p.flat && f.plan.kind == planFloat
	}
	return p, nil
}
