package host

import (
	"reflect"
	"slices"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"go.uber.org/zap"

	"github.com/wippyai/mlbridge"
	"github.com/wippyai/mlbridge/errors"
	"github.com/wippyai/mlbridge/runtime"
	"github.com/wippyai/mlbridge/transcoder"
	"github.com/wippyai/mlbridge/value"
)

// Host is the interface for struct-based host modules.
// All exported methods (except Namespace) are registered as externals named
// namespace_method_name.
type Host interface {
	// Namespace prefixes every external of the host, e.g. "demo".
	Namespace() string
}

// ExplicitRegistrar allows hosts to provide exact external names when the
// automatic PascalCase to snake_case conversion doesn't apply.
type ExplicitRegistrar interface {
	Register() map[string]any
}

// Func is a registered handler.
type Func struct {
	Name    string
	Handler reflect.Value
	// Arity counts the foreign arguments; a leading *runtime.Runtime
	// parameter is not one of them.
	Arity   int
	params  []reflect.Type
	withRT  bool
	result  bool
	failing bool
}

type Registry struct {
	funcs map[string]*Func
	mu    sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{
		funcs: make(map[string]*Func),
	}
}

var (
	runtimeType = reflect.TypeFor[*runtime.Runtime]()
	errorType   = reflect.TypeFor[error]()
)

func invalid(format string, args ...any) error {
	return errors.New(errors.PhaseRuntime, errors.KindInvalidArgument).
		Detail(format, args...).
		Build()
}

// inspect checks that fn has the shape
//
//	func([*runtime.Runtime,] args...) [(result)] [error]
func inspect(name string, fn any) (*Func, error) {
	rv := reflect.ValueOf(fn)
	if rv.Kind() != reflect.Func {
		return nil, errors.New(errors.PhaseRuntime, errors.KindTypeMismatch).
			Detail("handler for %s must be a function, got %T", name, fn).
			Build()
	}
	ft := rv.Type()
	if ft.IsVariadic() {
		return nil, invalid("handler for %s is variadic", name)
	}
	f := &Func{Name: name, Handler: rv}
	for i := 0; i < ft.NumIn(); i++ {
		in := ft.In(i)
		if i == 0 && in == runtimeType {
			f.withRT = true
			continue
		}
		f.params = append(f.params, in)
	}
	f.Arity = len(f.params)

	outs := ft.NumOut()
	if outs > 0 && ft.Out(outs-1) == errorType {
		f.failing = true
		outs--
	}
	switch outs {
	case 0:
	case 1:
		f.result = true
	default:
		return nil, invalid("handler for %s returns %d values", name, ft.NumOut())
	}
	return f, nil
}

func (r *Registry) add(f *Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[f.Name] = f
}

func (r *Registry) RegisterHost(h Host) error {
	ns := h.Namespace()
	if ns == "" {
		return invalid("namespace cannot be empty")
	}

	if er, ok := h.(ExplicitRegistrar); ok {
		for name, handler := range er.Register() {
			f, err := inspect(ns+"_"+name, handler)
			if err != nil {
				return err
			}
			r.add(f)
		}
		return nil
	}

	rv := reflect.ValueOf(h)
	rt := rv.Type()

	for i := 0; i < rt.NumMethod(); i++ {
		method := rt.Method(i)

		if !method.IsExported() || method.Name == "Namespace" {
			continue
		}

		f, err := inspect(ns+"_"+toSnakeCase(method.Name), rv.Method(i).Interface())
		if err != nil {
			return err
		}
		r.add(f)
	}

	return nil
}

// RegisterFunc registers a single handler under name.
func (r *Registry) RegisterFunc(name string, fn any) error {
	if name == "" {
		return invalid("function name cannot be empty")
	}
	f, err := inspect(name, fn)
	if err != nil {
		return err
	}
	r.add(f)
	return nil
}

// Lookup returns the handler registered under name.
func (r *Registry) Lookup(name string) (*Func, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.funcs[name]
	return f, ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Bind exports every handler on abi. Arguments are unmarshalled into the
// parameter types and the result is marshalled back; a returned error is
// raised on the foreign side.
func (r *Registry) Bind(abi mlbridge.ABI) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, f := range r.funcs {
		runtime.Export(abi, f.Name, f.Arity, f.call)
	}
	Logger().Debug("host functions bound", zap.Int("count", len(r.funcs)))
}

func (f *Func) call(rt *runtime.Runtime, args runtime.Args) (value.Value, error) {
	in := make([]reflect.Value, 0, len(f.params)+1)
	if f.withRT {
		in = append(in, reflect.ValueOf(rt))
	}
	for i, pt := range f.params {
		arg := reflect.New(pt)
		if err := transcoder.Unmarshal(rt, args.Get(i), arg.Interface()); err != nil {
			return value.Unit, argPath(err, i)
		}
		in = append(in, arg.Elem())
	}

	out := f.Handler.Call(in)

	if f.failing {
		if errv := out[len(out)-1]; !errv.IsNil() {
			return value.Unit, errv.Interface().(error)
		}
	}
	if !f.result {
		return value.Unit, nil
	}
	return transcoder.Marshal(rt.Token(), out[0].Interface())
}

func argPath(err error, i int) error {
	e, ok := err.(*errors.Error)
	if !ok {
		return err
	}
	e.Path = append([]string{"arg" + strconv.Itoa(i)}, e.Path...)
	return e
}

// toSnakeCase converts PascalCase to snake_case.
// Handles acronyms: XMLParser -> xml_parser, ParseWKT -> parse_wkt
func toSnakeCase(s string) string {
	if len(s) == 0 {
		return ""
	}

	runes := []rune(s)
	var result strings.Builder

	for i := 0; i < len(runes); i++ {
		r := runes[i]

		if unicode.IsUpper(r) {
			acronymEnd := i + 1
			for acronymEnd < len(runes) && unicode.IsUpper(runes[acronymEnd]) {
				acronymEnd++
			}

			if acronymEnd > i+1 {
				// Last uppercase before lowercase starts next word, not part of acronym
				if acronymEnd < len(runes) && unicode.IsLower(runes[acronymEnd]) {
					acronymEnd--
				}
			}

			if i > 0 {
				result.WriteByte('_')
			}

			for j := i; j < acronymEnd; j++ {
				result.WriteRune(unicode.ToLower(runes[j]))
			}
			i = acronymEnd - 1 // -1 because loop will increment
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}
