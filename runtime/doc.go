// Package runtime provides the host object layer over the handle-based
// engine: modules, instances and typed views as Go values.
//
// # Quick Start
//
//	ctx := context.Background()
//	rt, err := runtime.New(ctx, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close(ctx)
//
//	mod, err := rt.Load(ctx, wasmBytes)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	inst, err := mod.Instantiate(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer inst.Close()
//
//	result, err := inst.Call(ctx, "add", 2, 40)
//	fmt.Println(result) // [42]
//
//	v, err := inst.View(view.Uint8, 0, 16)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer v.Close()
//
// # Typed Calls
//
// Core modules only carry i32/i64/f32/f64 signatures. WIT text attaches
// narrower types:
//
//	mod, err := rt.LoadWithWIT(ctx, wasmBytes, "export add: func(a: u8, b: u8) -> u8;")
//
// Arguments are then range-checked against the WIT type and results come
// back as the matching Go type:
//
//	WIT Type     Core    Go result
//	──────────────────────────────
//	bool         i32     bool
//	s8/u8        i32     int8/uint8
//	s16/u16      i32     int16/uint16
//	s32/u32      i32     int32/uint32
//	s64/u64      i64     int64/uint64
//	f32          f32     float32
//	f64          f64     float64
//	char         i32     rune
//
// # Lifetimes
//
// Every Module and Instance is backed by a handle in the runtime's
// registry. Close destroys that handle; a second Close is a no-op. Handles
// nobody closed are destroyed by Sweep, which keeps the runtime usable, and
// by Runtime.Close, the shutdown hook. After a sweep the Go values stay
// valid but report stale handle errors.
//
// Buffers adopted from an instance's memory are detached when the instance
// is destroyed, so views over them fail instead of touching freed memory.
//
// # Thread Safety
//
// Runtime and Module are safe for concurrent use. Calls on one Instance
// should not overlap.
package runtime
