package runtime

import (
	"context"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-bridge/buffer"
	"github.com/wippyai/wasm-bridge/engine"
	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/resource"
)

// Config holds runtime configuration. The zero value is usable.
type Config struct {
	Logger           *zap.Logger
	MaxBufferBytes   uint64
	MemoryLimitPages uint32
}

type Runtime struct {
	engine *engine.WazeroEngine
	logger *zap.Logger
}

func New(ctx context.Context, cfg *Config) (*Runtime, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = engine.Logger()
	}

	eng, err := engine.NewWazeroEngineWithConfig(ctx, &engine.Config{
		Logger:           logger,
		MaxBufferBytes:   cfg.MaxBufferBytes,
		MemoryLimitPages: cfg.MemoryLimitPages,
	})
	if err != nil {
		return nil, errors.Load("create engine", err)
	}

	return &Runtime{
		engine: eng,
		logger: logger,
	}, nil
}

// Close is the shutdown hook: it destroys every live handle, including
// those of modules and instances never closed, then closes the engine.
// Teardown failures are logged and returned together.
func (r *Runtime) Close(ctx context.Context) error {
	return r.engine.Close(ctx)
}

func (r *Runtime) Engine() *engine.WazeroEngine {
	return r.engine
}

func (r *Runtime) Registry() *resource.Registry {
	return r.engine.Registry()
}

// Sweep destroys every live handle and keeps the runtime usable. Modules and
// instances created before the sweep report stale handle errors afterwards.
func (r *Runtime) Sweep() resource.SweepReport {
	report := r.engine.Sweep()
	if err := report.Err(); err != nil {
		r.logger.Warn("sweep reported teardown failures", zap.Error(err))
	}
	return report
}

// NewBuffer allocates a zero-filled host array buffer.
func (r *Runtime) NewBuffer(length uint32) (*buffer.ArrayBuffer, error) {
	return r.engine.NewBuffer(length)
}

// Load compiles a core WebAssembly module. Calls on its instances are typed
// by the core signature of each export.
func (r *Runtime) Load(ctx context.Context, wasm []byte) (*Module, error) {
	return r.LoadWithWIT(ctx, wasm, "")
}

// LoadWithWIT compiles a core WebAssembly module. witText provides function
// signatures that give calls WIT types (u8, bool, ...) on top of the core
// i32/i64/f32/f64 ones.
func (r *Runtime) LoadWithWIT(ctx context.Context, wasm []byte, witText string) (*Module, error) {
	bytes, err := r.engine.NewBytes(wasm)
	if err != nil {
		return nil, err
	}
	// the compiled module does not reference the input bytes
	defer r.Registry().Destroy(bytes)

	handle, err := r.engine.Compile(ctx, bytes)
	if err != nil {
		return nil, err
	}

	return &Module{
		runtime: r,
		handle:  handle,
		witText: witText,
	}, nil
}
