package engine

import (
	"context"
	"fmt"
	"slices"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/mlbridge/value"
)

// wasmHost owns the wazero runtime backing wasm closure code.
type wasmHost struct {
	ctx     context.Context
	runtime wazero.Runtime
	modules []api.Module
}

func (w *wasmHost) close() error {
	return w.runtime.Close(w.ctx)
}

// WasmConfig holds configuration for the wasm runtime.
type WasmConfig struct {
	// MemoryLimitPages sets the maximum memory per module in pages (64KB each).
	// 0 means the wazero default.
	MemoryLimitPages uint32
}

// EnableWasm creates the wasm runtime with cfg. LoadWasm calls it with the
// zero config when the runtime does not exist yet.
func (h *Heap) EnableWasm(ctx context.Context, cfg WasmConfig) {
	if h.wasm != nil {
		return
	}
	runtimeCfg := wazero.NewRuntimeConfig()
	if cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}
	h.wasm = &wasmHost{ctx: ctx, runtime: wazero.NewRuntimeWithConfig(ctx, runtimeCfg)}
}

// LoadWasm instantiates a core wasm module and defines closure code for every
// exported function of type (i64, ...) -> i64. Parameters and the result are
// raw value words; the result must be an immediate. It returns the code index
// of each usable export.
func (h *Heap) LoadWasm(ctx context.Context, name string, wasmBytes []byte) (map[string]int, error) {
	h.EnableWasm(ctx, WasmConfig{})
	compiled, err := h.wasm.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, fmt.Errorf("compile wasm %s: %w", name, err)
	}
	mod, err := h.wasm.runtime.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(name))
	if err != nil {
		return nil, fmt.Errorf("instantiate wasm %s: %w", name, err)
	}
	h.wasm.modules = append(h.wasm.modules, mod)

	exports := compiled.ExportedFunctions()
	names := make([]string, 0, len(exports))
	for export := range exports {
		names = append(names, export)
	}
	slices.Sort(names)

	codes := make(map[string]int)
	for _, export := range names {
		def := exports[export]
		params := def.ParamTypes()
		if len(params) == 0 || !wordsOnly(params) || !wordsOnly(def.ResultTypes()) || len(def.ResultTypes()) != 1 {
			Logger().Debug("skipping wasm export", zap.String("module", name), zap.String("export", export))
			continue
		}
		fn := mod.ExportedFunction(export)
		qualified := name + "." + export
		codes[export] = h.DefineCode(qualified, len(params), wasmCode(ctx, qualified, fn))
	}
	return codes, nil
}

func wordsOnly(types []api.ValueType) bool {
	for _, t := range types {
		if t != api.ValueTypeI64 {
			return false
		}
	}
	return true
}

func wasmCode(ctx context.Context, name string, fn api.Function) Code {
	return func(c *Call) value.Value {
		params := make([]uint64, c.NArgs())
		for i := range params {
			params[i] = uint64(c.Arg(i))
		}
		results, err := fn.Call(ctx, params...)
		if err != nil {
			c.Heap().Failwith("wasm " + name + ": " + err.Error())
		}
		r := value.Value(results[0])
		if !r.IsImmediate() {
			c.Heap().Failwith("wasm " + name + ": result is not an immediate")
		}
		return r
	}
}
