package engine

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-bridge/buffer"
	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/resource"
)

// WazeroEngine runs WebAssembly on wazero and exposes every artifact it
// produces as a handle in its registry.
type WazeroEngine struct {
	runtime     wazero.Runtime
	registry    *resource.Registry
	alloc       *buffer.HeapAllocator
	logger      *zap.Logger
	instanceSeq atomic.Uint64
}

// Config holds configuration for engine creation
type Config struct {
	// Logger receives engine and registry logs. Defaults to Logger().
	Logger *zap.Logger

	// MaxBufferBytes caps the bytes held by host-allocated array buffers at
	// once. 0 means buffer.DefaultLimit.
	MaxBufferBytes uint64

	// MemoryLimitPages sets the maximum memory per instance in pages (64KB each).
	// 0 means default (65536 pages = 4GB).
	MemoryLimitPages uint32
}

// InstanceConfig holds configuration for module instantiation
type InstanceConfig struct {
	// Name registers the instance under this name in the runtime. Empty
	// picks a unique generated name.
	Name string
}

// Instance is the native object behind an instance handle: the wazero
// module plus the array buffers adopted from its memories.
type Instance struct {
	module  api.Module
	adopted []*buffer.ArrayBuffer
	mu      sync.Mutex
}

// Module returns the wazero module.
func (i *Instance) Module() api.Module {
	return i.module
}

func (i *Instance) track(buf *buffer.ArrayBuffer) {
	i.mu.Lock()
	i.adopted = append(i.adopted, buf)
	i.mu.Unlock()
}

func (i *Instance) untrack(buf *buffer.ArrayBuffer) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if idx := slices.Index(i.adopted, buf); idx >= 0 {
		i.adopted = slices.Delete(i.adopted, idx, idx+1)
	}
}

func (i *Instance) close(ctx context.Context) error {
	i.mu.Lock()
	adopted := i.adopted
	i.adopted = nil
	i.mu.Unlock()

	for _, buf := range adopted {
		_ = buf.Detach()
	}
	return i.module.Close(ctx)
}

// NewWazeroEngine creates a new wazero-based engine
func NewWazeroEngine(ctx context.Context) (*WazeroEngine, error) {
	return NewWazeroEngineWithConfig(ctx, nil)
}

// NewWazeroEngineWithConfig creates a new engine with custom configuration
func NewWazeroEngineWithConfig(ctx context.Context, cfg *Config) (*WazeroEngine, error) {
	if cfg == nil {
		cfg = &Config{}
	}

	runtimeCfg := wazero.NewRuntimeConfig()
	if cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = Logger()
	}

	e := &WazeroEngine{
		runtime: wazero.NewRuntimeWithConfig(ctx, runtimeCfg),
		alloc:   buffer.NewHeapAllocator(cfg.MaxBufferBytes),
		logger:  logger,
	}
	e.registry = resource.NewRegistry(
		resource.WithLogger(logger),
		resource.WithDestructor(resource.KindByteArray, destroyBytes),
		resource.WithDestructor(resource.KindModule, destroyModule),
		resource.WithDestructor(resource.KindInstance, destroyInstance),
		resource.WithDestructor(resource.KindValue, destroyValue),
	)
	return e, nil
}

func destroyBytes(native any) error {
	b, ok := native.([]byte)
	if !ok {
		return fmt.Errorf("byte-array destructor got %T", native)
	}
	clear(b)
	return nil
}

func destroyModule(native any) error {
	m, ok := native.(wazero.CompiledModule)
	if !ok {
		return fmt.Errorf("module destructor got %T", native)
	}
	return m.Close(context.Background())
}

func destroyInstance(native any) error {
	inst, ok := native.(*Instance)
	if !ok {
		return fmt.Errorf("instance destructor got %T", native)
	}
	return inst.close(context.Background())
}

func destroyValue(native any) error {
	v, ok := native.(*Value)
	if !ok {
		return fmt.Errorf("value destructor got %T", native)
	}
	*v = Value{}
	return nil
}

// Registry returns the engine's handle registry.
func (e *WazeroEngine) Registry() *resource.Registry {
	return e.registry
}

// NewBytes registers a copy of data as a byte-array handle.
func (e *WazeroEngine) NewBytes(data []byte) (resource.Handle, error) {
	return e.registry.Register(slices.Clone(data), resource.KindByteArray)
}

// Bytes returns the contents of a byte-array handle.
func (e *WazeroEngine) Bytes(h resource.Handle) ([]byte, error) {
	return resource.ExtractAs[[]byte](e.registry, h, resource.KindByteArray)
}

// Compile compiles the binary behind a byte-array handle and returns a
// module handle. The byte-array handle stays live.
func (e *WazeroEngine) Compile(ctx context.Context, bytes resource.Handle) (resource.Handle, error) {
	wasm, err := e.Bytes(bytes)
	if err != nil {
		return 0, err
	}

	compiled, err := e.runtime.CompileModule(ctx, wasm)
	if err != nil {
		return 0, errors.Load("compile module", err)
	}

	h, err := e.registry.Register(compiled, resource.KindModule)
	if err != nil {
		_ = compiled.Close(ctx)
		return 0, err
	}
	e.logger.Debug("module compiled", zap.Stringer("handle", h), zap.Int("bytes", len(wasm)))
	return h, nil
}

// Exports returns the sorted names of the functions a module exports.
func (e *WazeroEngine) Exports(module resource.Handle) ([]string, error) {
	compiled, err := resource.ExtractAs[wazero.CompiledModule](e.registry, module, resource.KindModule)
	if err != nil {
		return nil, err
	}
	defs := compiled.ExportedFunctions()
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}

// Instantiate creates an instance of a compiled module and returns its
// handle. The instance does not keep the module handle alive; see the
// package documentation on ordering.
func (e *WazeroEngine) Instantiate(ctx context.Context, module resource.Handle, cfg *InstanceConfig) (resource.Handle, error) {
	compiled, err := resource.ExtractAs[wazero.CompiledModule](e.registry, module, resource.KindModule)
	if err != nil {
		return 0, err
	}

	name := ""
	if cfg != nil {
		name = cfg.Name
	}
	if name == "" {
		name = fmt.Sprintf("instance-%d", e.instanceSeq.Add(1))
	}

	mod, err := e.runtime.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(name))
	if err != nil {
		return 0, errors.Instantiation(err)
	}

	h, err := e.registry.Register(&Instance{module: mod}, resource.KindInstance)
	if err != nil {
		_ = mod.Close(ctx)
		return 0, err
	}
	e.logger.Debug("module instantiated", zap.Stringer("handle", h), zap.String("name", name))
	return h, nil
}

// NewValue registers v as a value handle.
func (e *WazeroEngine) NewValue(v Value) (resource.Handle, error) {
	return e.registry.Register(&v, resource.KindValue)
}

// ValueOf returns the value behind a value handle.
func (e *WazeroEngine) ValueOf(h resource.Handle) (Value, error) {
	v, err := resource.ExtractAs[*Value](e.registry, h, resource.KindValue)
	if err != nil {
		return Value{}, err
	}
	return *v, nil
}

// Call invokes an exported function with value handles as arguments and
// registers each result as a new value handle.
func (e *WazeroEngine) Call(ctx context.Context, instance resource.Handle, name string, args ...resource.Handle) ([]resource.Handle, error) {
	inst, err := resource.ExtractAs[*Instance](e.registry, instance, resource.KindInstance)
	if err != nil {
		return nil, err
	}

	fn := inst.module.ExportedFunction(name)
	if fn == nil {
		return nil, errors.NotFound(errors.PhaseEngine, "function", name)
	}

	paramTypes := fn.Definition().ParamTypes()
	if len(args) != len(paramTypes) {
		return nil, errors.InvalidInput(errors.PhaseEngine,
			fmt.Sprintf("%s expects %d arguments, got %d", name, len(paramTypes), len(args)))
	}

	params := make([]uint64, len(args))
	for i, h := range args {
		v, err := e.ValueOf(h)
		if err != nil {
			return nil, err
		}
		if v.Type != paramTypes[i] {
			return nil, errors.New(errors.PhaseEngine, errors.KindInvalidInput).
				Path(name, fmt.Sprintf("arg%d", i)).
				Detail("expected %s, got %s", api.ValueTypeName(paramTypes[i]), api.ValueTypeName(v.Type)).
				Build()
		}
		params[i] = v.Bits
	}

	raw, err := fn.Call(ctx, params...)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseEngine, errors.KindTrap, err, "call "+name)
	}

	resultTypes := fn.Definition().ResultTypes()
	results := make([]resource.Handle, 0, len(raw))
	for i, bits := range raw {
		h, err := e.NewValue(Value{Type: resultTypes[i], Bits: bits})
		if err != nil {
			for _, r := range results {
				_ = e.registry.Destroy(r)
			}
			return nil, err
		}
		results = append(results, h)
	}
	return results, nil
}

// Signature returns the core parameter and result types of an exported
// function.
func (e *WazeroEngine) Signature(instance resource.Handle, name string) (params, results []api.ValueType, err error) {
	inst, err := resource.ExtractAs[*Instance](e.registry, instance, resource.KindInstance)
	if err != nil {
		return nil, nil, err
	}
	fn := inst.module.ExportedFunction(name)
	if fn == nil {
		return nil, nil, errors.NotFound(errors.PhaseEngine, "function", name)
	}
	def := fn.Definition()
	return def.ParamTypes(), def.ResultTypes(), nil
}

// Memory adopts an instance's linear memory as a borrowed array buffer.
// An empty name selects the instance's first memory. When the instance is
// destroyed the buffer is detached, so views over it fail instead of
// reading a closed instance's memory.
func (e *WazeroEngine) Memory(instance resource.Handle, name string) (*buffer.ArrayBuffer, error) {
	inst, err := resource.ExtractAs[*Instance](e.registry, instance, resource.KindInstance)
	if err != nil {
		return nil, err
	}

	var mem api.Memory
	if name == "" {
		mem = inst.module.Memory()
	} else {
		mem = inst.module.ExportedMemory(name)
	}
	if mem == nil {
		return nil, errors.NotFound(errors.PhaseEngine, "memory", name)
	}

	buf, err := buffer.AdoptMemory(mem)
	if err != nil {
		return nil, err
	}
	inst.track(buf)
	buf.OnDestroy(func() { inst.untrack(buf) })
	return buf, nil
}

// NewBuffer allocates a zero-filled host array buffer, subject to
// Config.MaxBufferBytes.
func (e *WazeroEngine) NewBuffer(length uint32) (*buffer.ArrayBuffer, error) {
	return buffer.NewWithAllocator(length, e.alloc)
}

// BufferBytes returns the bytes currently held by host array buffers.
func (e *WazeroEngine) BufferBytes() uint64 {
	return e.alloc.Outstanding()
}

// Sweep destroys every live handle, as at the end of a request, and keeps
// the engine usable.
func (e *WazeroEngine) Sweep() resource.SweepReport {
	return e.registry.SweepAll()
}

// Close sweeps every handle and closes the wazero runtime.
func (e *WazeroEngine) Close(ctx context.Context) error {
	err := e.registry.Close()
	if err != nil {
		e.logger.Warn("sweep reported teardown failures", zap.Error(err))
	}
	return multierr.Append(err, e.runtime.Close(ctx))
}
