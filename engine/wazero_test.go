package engine

import (
	"context"
	"errors"
	"slices"
	"testing"

	"go.uber.org/goleak"

	wbErrors "github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/resource"
	"github.com/wippyai/wasm-bridge/view"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// arithWASM exports a 1-page "memory", "add" (i32, i32) -> i32 and "boom",
// which traps with unreachable.
var arithWASM = []byte{
	0x00, 0x61, 0x73, 0x6d, // magic
	0x01, 0x00, 0x00, 0x00, // version
	0x01, 0x0a, 0x02, // type section: 2 types
	0x60, 0x02, 0x7f, 0x7f, 0x01, 0x7f, // (i32, i32) -> i32
	0x60, 0x00, 0x00, // () -> ()
	0x03, 0x03, 0x02, 0x00, 0x01, // function section: add, boom
	0x05, 0x03, 0x01, 0x00, 0x01, // memory section: 1 page, no max
	0x07, 0x17, 0x03, // export section: 3 exports
	0x06, 'm', 'e', 'm', 'o', 'r', 'y', 0x02, 0x00,
	0x03, 'a', 'd', 'd', 0x00, 0x00,
	0x04, 'b', 'o', 'o', 'm', 0x00, 0x01,
	0x0a, 0x0d, 0x02, // code section: 2 bodies
	0x07, 0x00, 0x20, 0x00, 0x20, 0x01, 0x6a, 0x0b, // local.get 0, local.get 1, i32.add
	0x03, 0x00, 0x00, 0x0b, // unreachable
}

func newTestEngine(t *testing.T, cfg *Config) *WazeroEngine {
	t.Helper()
	ctx := context.Background()
	e, err := NewWazeroEngineWithConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("NewWazeroEngineWithConfig: %v", err)
	}
	t.Cleanup(func() {
		if err := e.Close(ctx); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return e
}

func instantiate(t *testing.T, e *WazeroEngine) (module, instance resource.Handle) {
	t.Helper()
	ctx := context.Background()

	bytes, err := e.NewBytes(arithWASM)
	if err != nil {
		t.Fatalf("NewBytes: %v", err)
	}
	module, err = e.Compile(ctx, bytes)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	instance, err = e.Instantiate(ctx, module, nil)
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	return module, instance
}

func callAdd(t *testing.T, e *WazeroEngine, inst resource.Handle, a, b int32) int32 {
	t.Helper()
	ha, err := e.NewValue(I32(a))
	if err != nil {
		t.Fatal(err)
	}
	hb, err := e.NewValue(I32(b))
	if err != nil {
		t.Fatal(err)
	}
	results, err := e.Call(context.Background(), inst, "add", ha, hb)
	if err != nil {
		t.Fatalf("Call(add): %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	v, err := e.ValueOf(results[0])
	if err != nil {
		t.Fatalf("ValueOf: %v", err)
	}
	got, ok := v.Interface().(int32)
	if !ok {
		t.Fatalf("result type = %T, want int32", v.Interface())
	}
	return got
}

func TestEngine_CompileInstantiateCall(t *testing.T) {
	e := newTestEngine(t, nil)
	module, inst := instantiate(t, e)

	exports, err := e.Exports(module)
	if err != nil {
		t.Fatalf("Exports: %v", err)
	}
	if !slices.Equal(exports, []string{"add", "boom"}) {
		t.Errorf("Exports() = %v, want [add boom]", exports)
	}

	if got := callAdd(t, e, inst, 2, 40); got != 42 {
		t.Errorf("add(2, 40) = %d, want 42", got)
	}
	if got := callAdd(t, e, inst, -1, 1); got != 0 {
		t.Errorf("add(-1, 1) = %d, want 0", got)
	}

	for _, h := range []resource.Handle{module, inst} {
		if !e.Registry().Live(h) {
			t.Errorf("handle %v should be live", h)
		}
	}
}

func TestEngine_BytesAreCopied(t *testing.T) {
	e := newTestEngine(t, nil)

	src := []byte{1, 2, 3}
	h, err := e.NewBytes(src)
	if err != nil {
		t.Fatal(err)
	}
	src[0] = 9

	got, err := e.Bytes(h)
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	if !slices.Equal(got, []byte{1, 2, 3}) {
		t.Errorf("Bytes() = %v, want [1 2 3]", got)
	}
}

func TestEngine_CompileInvalid(t *testing.T) {
	e := newTestEngine(t, nil)

	h, err := e.NewBytes([]byte("not wasm"))
	if err != nil {
		t.Fatal(err)
	}
	_, err = e.Compile(context.Background(), h)
	var wbErr *wbErrors.Error
	if !errors.As(err, &wbErr) {
		t.Fatalf("expected *errors.Error, got %v", err)
	}
	if wbErr.Phase != wbErrors.PhaseLoad {
		t.Errorf("Phase = %s, want load", wbErr.Phase)
	}
}

func TestEngine_CallErrors(t *testing.T) {
	e := newTestEngine(t, nil)
	module, inst := instantiate(t, e)
	ctx := context.Background()

	one, _ := e.NewValue(I32(1))
	wide, _ := e.NewValue(I64(1))

	tests := []struct {
		target error
		name   string
		fn     string
		inst   resource.Handle
		args   []resource.Handle
	}{
		{name: "missing function", inst: inst, fn: "sub", target: wbErrors.ErrNotFound},
		{name: "arity", inst: inst, fn: "add", args: []resource.Handle{one}, target: &wbErrors.Error{Kind: wbErrors.KindInvalidInput}},
		{name: "argument type", inst: inst, fn: "add", args: []resource.Handle{one, wide}, target: &wbErrors.Error{Kind: wbErrors.KindInvalidInput}},
		{name: "trap", inst: inst, fn: "boom", target: wbErrors.ErrTrap},
		{name: "module as instance", inst: module, fn: "add", target: wbErrors.ErrKindMismatch},
		{name: "unknown instance", inst: resource.Handle(0), fn: "add", target: wbErrors.ErrStaleHandle},
		{name: "argument not a value", inst: inst, fn: "add", args: []resource.Handle{one, module}, target: wbErrors.ErrKindMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Call(ctx, tt.inst, tt.fn, tt.args...)
			if !errors.Is(err, tt.target) {
				t.Errorf("Call() error = %v, want %v", err, tt.target)
			}
		})
	}

	// a trap does not poison the instance for later calls in this test
	if got := callAdd(t, e, inst, 1, 1); got != 2 {
		t.Errorf("add(1, 1) = %d, want 2", got)
	}
}

func TestEngine_DestroyedInstanceIsStale(t *testing.T) {
	e := newTestEngine(t, nil)
	_, inst := instantiate(t, e)

	if err := e.Registry().Destroy(inst); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	if err := e.Registry().Destroy(inst); err != nil {
		t.Fatalf("second Destroy: %v", err)
	}

	_, err := e.Call(context.Background(), inst, "add")
	if !errors.Is(err, wbErrors.ErrStaleHandle) {
		t.Errorf("expected stale handle error, got %v", err)
	}
}

func TestEngine_ModuleDestroyIndependentOfInstance(t *testing.T) {
	e := newTestEngine(t, nil)
	module, inst := instantiate(t, e)

	if err := e.Registry().Destroy(module); err != nil {
		t.Fatalf("Destroy(module): %v", err)
	}
	if got := callAdd(t, e, inst, 20, 22); got != 42 {
		t.Errorf("add after module destroy = %d, want 42", got)
	}
	if _, err := e.Instantiate(context.Background(), module, nil); !errors.Is(err, wbErrors.ErrStaleHandle) {
		t.Errorf("Instantiate(destroyed module) = %v, want stale handle", err)
	}
}

func TestEngine_InstanceNames(t *testing.T) {
	e := newTestEngine(t, nil)
	module, _ := instantiate(t, e)
	ctx := context.Background()

	// generated names never collide
	if _, err := e.Instantiate(ctx, module, nil); err != nil {
		t.Fatalf("second unnamed Instantiate: %v", err)
	}

	if _, err := e.Instantiate(ctx, module, &InstanceConfig{Name: "dup"}); err != nil {
		t.Fatalf("Instantiate(dup): %v", err)
	}
	_, err := e.Instantiate(ctx, module, &InstanceConfig{Name: "dup"})
	if !errors.Is(err, &wbErrors.Error{Kind: wbErrors.KindInstantiation}) {
		t.Errorf("duplicate name error = %v, want instantiation error", err)
	}
}

func TestEngine_MemoryAliasesInstance(t *testing.T) {
	e := newTestEngine(t, nil)
	_, instH := instantiate(t, e)

	buf, err := e.Memory(instH, "memory")
	if err != nil {
		t.Fatalf("Memory: %v", err)
	}
	defer buf.Close()

	if buf.Owned() {
		t.Error("adopted memory must be borrowed")
	}
	if buf.ByteLength() != 65536 {
		t.Errorf("ByteLength() = %d, want 65536", buf.ByteLength())
	}

	v, err := view.NewUint32(buf, 4, 2) // bytes 16..24
	if err != nil {
		t.Fatalf("NewUint32: %v", err)
	}
	defer v.Close()
	if err := v.Set(1, 0xcafebabe); err != nil {
		t.Fatalf("Set: %v", err)
	}

	inst, err := resource.ExtractAs[*Instance](e.Registry(), instH, resource.KindInstance)
	if err != nil {
		t.Fatal(err)
	}
	got, ok := inst.Module().Memory().ReadUint32Le(20)
	if !ok || got != 0xcafebabe {
		t.Errorf("guest memory at 20 = %#x, %v; want 0xcafebabe", got, ok)
	}

	// default memory resolves to the same region
	def, err := e.Memory(instH, "")
	if err != nil {
		t.Fatalf("Memory(\"\"): %v", err)
	}
	defer def.Close()
	if b, _ := def.ReadU32(20); b != 0xcafebabe {
		t.Errorf("default memory read = %#x", b)
	}
}

func TestEngine_MemoryViewAfterGrow(t *testing.T) {
	e := newTestEngine(t, nil)
	_, instH := instantiate(t, e)

	buf, err := e.Memory(instH, "memory")
	if err != nil {
		t.Fatalf("Memory: %v", err)
	}
	defer buf.Close()

	v, err := view.NewUint32(buf, 4, 2) // bytes 16..24
	if err != nil {
		t.Fatalf("NewUint32: %v", err)
	}
	defer v.Close()

	inst, err := resource.ExtractAs[*Instance](e.Registry(), instH, resource.KindInstance)
	if err != nil {
		t.Fatal(err)
	}
	mem := inst.Module().Memory()
	if _, ok := mem.Grow(1); !ok {
		t.Fatal("memory.grow failed")
	}

	if err := v.Set(1, 0xcafebabe); err != nil {
		t.Fatalf("Set after grow: %v", err)
	}
	got, ok := mem.ReadUint32Le(20)
	if !ok || got != 0xcafebabe {
		t.Errorf("guest memory at 20 = %#x, %v after grow; want 0xcafebabe", got, ok)
	}

	if !mem.WriteUint32Le(16, 7) {
		t.Fatal("guest write failed")
	}
	if got, err := v.Get(0); err != nil || got != 7 {
		t.Errorf("Get(0) after grow = %d, %v; want 7", got, err)
	}

	// a buffer adopted after growth covers the new extent
	grown, err := e.Memory(instH, "")
	if err != nil {
		t.Fatalf("Memory after grow: %v", err)
	}
	defer grown.Close()
	if grown.ByteLength() != 2*65536 {
		t.Errorf("ByteLength() = %d after grow, want %d", grown.ByteLength(), 2*65536)
	}
}

func TestEngine_MemoryNotFound(t *testing.T) {
	e := newTestEngine(t, nil)
	_, inst := instantiate(t, e)

	if _, err := e.Memory(inst, "heap"); !errors.Is(err, wbErrors.ErrNotFound) {
		t.Errorf("Memory(heap) = %v, want not found", err)
	}
}

func TestEngine_InstanceDestroyDetachesMemory(t *testing.T) {
	e := newTestEngine(t, nil)
	_, inst := instantiate(t, e)

	buf, err := e.Memory(inst, "memory")
	if err != nil {
		t.Fatalf("Memory: %v", err)
	}
	v, err := view.NewUint8(buf, 0, 4)
	if err != nil {
		t.Fatalf("NewUint8: %v", err)
	}

	if err := e.Registry().Destroy(inst); err != nil {
		t.Fatalf("Destroy: %v", err)
	}

	if _, err := buf.Bytes(); !errors.Is(err, wbErrors.ErrDetached) {
		t.Errorf("Bytes() after instance destroy = %v, want detached", err)
	}
	if _, err := v.Get(0); !errors.Is(err, wbErrors.ErrDetached) {
		t.Errorf("Get() after instance destroy = %v, want detached", err)
	}

	v.Close()
	buf.Close()
	if buf.Alive() {
		t.Error("buffer should be finalized after last release")
	}
}

func TestEngine_ReleasedMemoryIsUntracked(t *testing.T) {
	e := newTestEngine(t, nil)
	_, instH := instantiate(t, e)

	buf, err := e.Memory(instH, "memory")
	if err != nil {
		t.Fatal(err)
	}
	buf.Close()

	inst, err := resource.ExtractAs[*Instance](e.Registry(), instH, resource.KindInstance)
	if err != nil {
		t.Fatal(err)
	}
	inst.mu.Lock()
	n := len(inst.adopted)
	inst.mu.Unlock()
	if n != 0 {
		t.Errorf("instance still tracks %d buffers after release", n)
	}
}

func TestEngine_Sweep(t *testing.T) {
	e := newTestEngine(t, nil)
	_, inst := instantiate(t, e)
	callAdd(t, e, inst, 1, 2)

	// bytes, module, instance, 2 args, 1 result
	if n := e.Registry().Len(); n != 6 {
		t.Fatalf("Len() = %d, want 6", n)
	}

	report := e.Sweep()
	if report.Destroyed != 6 {
		t.Errorf("Destroyed = %d, want 6", report.Destroyed)
	}
	if err := report.Err(); err != nil {
		t.Errorf("sweep failures: %v", err)
	}
	if n := e.Registry().Len(); n != 0 {
		t.Errorf("Len() after sweep = %d", n)
	}

	// the engine stays usable after a request-boundary sweep
	_, inst = instantiate(t, e)
	if got := callAdd(t, e, inst, 3, 4); got != 7 {
		t.Errorf("add(3, 4) = %d, want 7", got)
	}
}

func TestEngine_CloseRefusesRegistration(t *testing.T) {
	ctx := context.Background()
	e, err := NewWazeroEngine(ctx)
	if err != nil {
		t.Fatal(err)
	}
	instantiate(t, e)

	if err := e.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if n := e.Registry().Len(); n != 0 {
		t.Errorf("Len() after Close = %d", n)
	}
	if _, err := e.NewBytes(arithWASM); !errors.Is(err, wbErrors.ErrClosed) {
		t.Errorf("NewBytes after Close = %v, want closed", err)
	}
}

func TestEngine_BufferLimit(t *testing.T) {
	e := newTestEngine(t, &Config{MaxBufferBytes: 8})

	buf, err := e.NewBuffer(8)
	if err != nil {
		t.Fatalf("NewBuffer(8): %v", err)
	}
	if e.BufferBytes() != 8 {
		t.Errorf("BufferBytes() = %d, want 8", e.BufferBytes())
	}

	if _, err := e.NewBuffer(1); !errors.Is(err, wbErrors.ErrAllocation) {
		t.Errorf("NewBuffer over limit = %v, want allocation error", err)
	}

	buf.Close()
	if e.BufferBytes() != 0 {
		t.Errorf("BufferBytes() after close = %d", e.BufferBytes())
	}
}

func TestEngine_MemoryLimitPages(t *testing.T) {
	e := newTestEngine(t, &Config{MemoryLimitPages: 1})
	_, inst := instantiate(t, e)

	buf, err := e.Memory(inst, "")
	if err != nil {
		t.Fatal(err)
	}
	defer buf.Close()
	if buf.ByteLength() != 65536 {
		t.Errorf("ByteLength() = %d", buf.ByteLength())
	}
}
