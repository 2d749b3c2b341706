package engine

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/zap"

	"github.com/wippyai/polyglot-native/errors"
)

// LanguageWasm is the id of the WebAssembly language.
const LanguageWasm = "wasm"

var wasmMagic = []byte{0x00, 0x61, 0x73, 0x6d}

func init() {
	register(Language{ID: LanguageWasm, Name: "WebAssembly", Version: "2.0"}, func(c *Context) (evaluator, error) {
		return &wasmEvaluator{}, nil
	})
}

// wasmEvaluator instantiates modules in a wazero runtime owned by the
// context. Evaluating a module yields an object of its exported functions.
type wasmEvaluator struct {
	mu      sync.Mutex
	runtime wazero.Runtime
	seq     atomic.Uint64
}

func (e *wasmEvaluator) ensureRuntime(c *Context) wazero.Runtime {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.runtime != nil {
		return e.runtime
	}

	cfg := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if raw, ok := c.Option(OptionWasmMemoryLimitPages); ok {
		if n, err := strconv.ParseUint(raw, 10, 32); err == nil {
			cfg = cfg.WithMemoryLimitPages(uint32(n))
		}
	}
	e.runtime = wazero.NewRuntimeWithConfig(c.base, cfg)
	if c.access.io() {
		if _, err := wasi_snapshot_preview1.Instantiate(c.base, e.runtime); err != nil {
			c.logger.Warn("instantiate wasi", zap.Error(err))
		}
	}
	c.logger.Debug("wasm runtime created", zap.Bool("wasi", c.access.io()))
	return e.runtime
}

// decodeWasmSource accepts a raw binary or its base64 text.
func decodeWasmSource(code string) ([]byte, error) {
	if strings.HasPrefix(code, string(wasmMagic)) {
		return []byte(code), nil
	}
	bin, err := base64.StdEncoding.DecodeString(strings.TrimSpace(code))
	if err != nil {
		return nil, fmt.Errorf("source is neither a wasm binary nor base64: %w", err)
	}
	if !bytes.HasPrefix(bin, wasmMagic) {
		return nil, fmt.Errorf("decoded source lacks the wasm magic number")
	}
	return bin, nil
}

func (e *wasmEvaluator) eval(ctx context.Context, c *Context, src Source) (any, error) {
	bin, err := decodeWasmSource(src.Code)
	if err != nil {
		return nil, wasmException(err, src.Name, true)
	}

	rt := e.ensureRuntime(c)
	compiled, err := rt.CompileModule(ctx, bin)
	if err != nil {
		return nil, wasmException(err, src.Name, true)
	}

	name := src.Name
	if name == "" {
		name = "module"
	}
	name = fmt.Sprintf("%s#%d", name, e.seq.Add(1))

	// Without IO access wasi_snapshot_preview1 is absent and WASI guests fail to link.
	mod, err := rt.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(name))
	if err != nil {
		compiled.Close(ctx)
		return nil, wasmException(err, src.Name, false)
	}

	exports := NewObject()
	defs := mod.ExportedFunctionDefinitions()
	names := make([]string, 0, len(defs))
	for n := range defs {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		exports.Put(n, e.export(c, mod, defs[n]))
	}
	return exports, nil
}

func (e *wasmEvaluator) export(c *Context, mod api.Module, def api.FunctionDefinition) *Function {
	exportName := def.ExportNames()[0]
	params := def.ParamTypes()
	results := def.ResultTypes()

	return newGuestFunction(LanguageWasm, exportName, func(ctx context.Context, args []*Value) (any, error) {
		if len(args) != len(params) {
			return nil, errors.New(errors.PhaseValue, errors.KindInvalidInput).
				Path(exportName).
				Detail("expected %d arguments, got %d", len(params), len(args)).
				Build()
		}
		stack := make([]uint64, len(params))
		for i, p := range params {
			enc, err := encodeWasmArg(p, args[i])
			if err != nil {
				return nil, err
			}
			stack[i] = enc
		}

		fn := mod.ExportedFunction(exportName)
		if fn == nil {
			return nil, errors.NotFound(errors.PhaseValue, "export", exportName)
		}
		out, err := fn.Call(ctx, stack...)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, wasmException(err, mod.Name(), false)
		}
		if err := Poll(ctx); err != nil {
			return nil, err
		}

		decoded := make([]any, len(results))
		for i, r := range results {
			decoded[i] = decodeWasmResult(r, out[i])
		}
		switch len(decoded) {
		case 0:
			return nil, nil
		case 1:
			return decoded[0], nil
		default:
			return NewArray(decoded...), nil
		}
	})
}

func encodeWasmArg(t api.ValueType, v *Value) (uint64, error) {
	switch t {
	case api.ValueTypeI32:
		n, err := v.AsInt64()
		if err != nil {
			return 0, err
		}
		if n < -1<<31 || n > 1<<32-1 {
			return 0, errors.Overflow(errors.PhaseValue, n, "i32")
		}
		return api.EncodeI32(int32(n)), nil
	case api.ValueTypeI64:
		n, err := v.AsInt64()
		if err != nil {
			return 0, err
		}
		return api.EncodeI64(n), nil
	case api.ValueTypeF32:
		f, err := v.AsFloat64()
		if err != nil {
			return 0, err
		}
		return api.EncodeF32(float32(f)), nil
	case api.ValueTypeF64:
		f, err := v.AsFloat64()
		if err != nil {
			return 0, err
		}
		return api.EncodeF64(f), nil
	default:
		return 0, errors.Unsupported(errors.PhaseValue, "wasm parameter type "+api.ValueTypeName(t))
	}
}

func decodeWasmResult(t api.ValueType, raw uint64) any {
	switch t {
	case api.ValueTypeI32:
		return int64(api.DecodeI32(raw))
	case api.ValueTypeI64:
		return int64(raw)
	case api.ValueTypeF32:
		return float64(api.DecodeF32(raw))
	case api.ValueTypeF64:
		return api.DecodeF64(raw)
	default:
		return int64(raw)
	}
}

func wasmException(err error, source string, syntax bool) *Exception {
	return &Exception{
		Message:     err.Error(),
		SyntaxError: syntax,
		Frames:      []StackFrame{{Language: LanguageWasm, Name: "<module>", Source: source}},
		Cause:       err,
	}
}

func (e *wasmEvaluator) close() error {
	e.mu.Lock()
	rt := e.runtime
	e.runtime = nil
	e.mu.Unlock()
	if rt == nil {
		return nil
	}
	if err := rt.Close(context.Background()); err != nil {
		Logger().Warn("close wasm runtime", zap.Error(err))
		return errors.Wrap(errors.PhaseContext, errors.KindIllegalState, err, "close wasm runtime")
	}
	return nil
}
