// Package wasmbridge exposes WebAssembly linear memory and the lifecycle of
// WebAssembly runtime artifacts to Go host code.
//
// The hard part of a host binding is not calling the engine, it is bridging
// two memory models: engine-owned linear memory viewed through several typed
// windows at once, and host objects whose destruction order does not follow
// the dependencies between them. This module encodes that discipline.
//
// # Architecture Overview
//
//	wasmbridge/        Root package with the Memory interface
//	├── buffer/        Byte regions and reference-counted array buffers
//	├── view/          Typed views (int8..uint32) over array buffers
//	├── resource/      Generation-checked handle registry with shutdown sweep
//	├── engine/        wazero integration: bytes, modules, instances, values
//	├── runtime/       Host object layer over the engine
//	├── errors/        Structured error types
//	└── cmd/memview/   Memory inspector CLI
//
// # Quick Start
//
//	rt, err := runtime.New(ctx, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close(ctx)
//
//	mod, err := rt.Load(ctx, wasmBytes)
//	inst, err := mod.Instantiate(ctx)
//
//	mem, err := inst.Memory("memory")
//	u8, err := view.New(mem, view.Uint8, 0, 16)
//	mem.Close() // the view keeps the buffer alive
//	defer u8.Close()
//
//	_ = u8.Set(0, 255)
//	v, _ := u8.Get(0) // 255
//
// # Ownership
//
// An array buffer either owns its bytes (allocated by this module, zero
// filled, freed exactly once) or borrows them (engine linear memory, never
// freed here). Views retain their buffer, so a buffer stays alive as long as
// any view over it is open, regardless of the order in which the host closes
// them.
//
// Engine artifacts are registered in a resource.Registry. Each handle is
// destroyed at most once, either explicitly or by the sweep that runs when
// the runtime closes. A destroyed handle never resolves again, even after its
// slot is reused.
//
// # Thread Safety
//
// The registry serializes all mutations under one mutex. Buffers and views
// keep their reference counts atomically, but concurrent element writes
// through aliasing views are not synchronized, the same as linear memory
// seen by the guest.
package wasmbridge
