package runtime

import (
	"context"
	"fmt"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/wasm-bridge/buffer"
	"github.com/wippyai/wasm-bridge/engine"
	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/resource"
	"github.com/wippyai/wasm-bridge/view"
)

type Instance struct {
	module *Module
	handle resource.Handle
}

// Handle returns the instance handle in the runtime registry.
func (i *Instance) Handle() resource.Handle {
	return i.handle
}

func (i *Instance) Module() *Module {
	return i.module
}

// Call invokes an exported function. Arguments are lowered to the function's
// WIT signature when the module was loaded with one, and to its core
// signature otherwise; string arguments are parsed. Results are lifted the
// same way: a u8 result comes back as uint8, a bool as bool, an untyped i32
// as int32.
func (i *Instance) Call(ctx context.Context, name string, args ...any) ([]any, error) {
	eng := i.module.runtime.engine
	reg := eng.Registry()

	params, results, err := i.signature(name)
	if err != nil {
		return nil, err
	}
	if len(args) != len(params) {
		return nil, errors.InvalidInput(errors.PhaseRuntime,
			fmt.Sprintf("%s expects %d arguments, got %d", name, len(params), len(args)))
	}

	// argument and result handles only live for the duration of the call
	var transient []resource.Handle
	defer func() {
		for _, h := range transient {
			_ = reg.Destroy(h)
		}
	}()

	argHandles := make([]resource.Handle, len(args))
	for idx, arg := range args {
		v, err := lower(arg, params[idx])
		if err != nil {
			return nil, errors.New(errors.PhaseRuntime, errors.KindInvalidInput).
				Path(name, fmt.Sprintf("arg%d", idx)).
				Cause(err).
				Build()
		}
		h, err := eng.NewValue(v)
		if err != nil {
			return nil, err
		}
		transient = append(transient, h)
		argHandles[idx] = h
	}

	out, err := eng.Call(ctx, i.handle, name, argHandles...)
	if err != nil {
		return nil, err
	}
	transient = append(transient, out...)

	values := make([]any, len(out))
	for idx, h := range out {
		v, err := eng.ValueOf(h)
		if err != nil {
			return nil, err
		}
		var t wit.Type
		if len(results) == len(out) {
			t = results[idx]
		}
		values[idx] = lift(v, t)
	}
	return values, nil
}

// signature prefers the WIT signature and falls back to the core one.
func (i *Instance) signature(name string) ([]wit.Type, []wit.Type, error) {
	if i.module.witText != "" {
		params, results, err := i.module.FunctionTypes(name)
		if err == nil {
			return params, results, nil
		}
		if !errors.Is(err, errors.ErrNotFound) {
			return nil, nil, err
		}
	}

	coreParams, coreResults, err := i.module.runtime.engine.Signature(i.handle, name)
	if err != nil {
		return nil, nil, err
	}
	params := make([]wit.Type, len(coreParams))
	for idx, t := range coreParams {
		params[idx] = engine.WitTypeOf(t)
	}
	results := make([]wit.Type, len(coreResults))
	for idx, t := range coreResults {
		results[idx] = engine.WitTypeOf(t)
	}
	return params, results, nil
}

// Memory adopts the named exported memory, or the first memory when name is
// empty. The caller owns the returned buffer's reference and must Close it.
// The buffer is detached when the instance closes.
func (i *Instance) Memory(name string) (*buffer.ArrayBuffer, error) {
	return i.module.runtime.engine.Memory(i.handle, name)
}

// View returns a typed view of length elements starting offset elements
// into the instance's memory. The view holds the only reference on the
// adopted buffer, so closing the view releases it.
func (i *Instance) View(kind view.Kind, offset, length uint32) (*view.View, error) {
	buf, err := i.Memory("")
	if err != nil {
		return nil, err
	}
	defer buf.Close()
	return view.New(buf, kind, offset, length)
}

// Close destroys the instance handle and detaches every buffer adopted from
// its memory. Closing twice is a no-op.
func (i *Instance) Close() error {
	return i.module.runtime.Registry().Destroy(i.handle)
}
