// Package buffer provides byte regions and reference-counted array buffers.
//
// An ArrayBuffer wraps one Region, which is either owned (allocated here,
// zero filled, returned to its Allocator exactly once) or borrowed (adopted
// from elsewhere, typically wazero linear memory, never freed here):
//
//	buf, err := buffer.New(64)            // owned
//	mem, err := buffer.AdoptMemory(m)     // borrowed from api.Memory
//
// # Reference Counting
//
// Construction holds one reference, dropped by Close. Holders such as typed
// views call Retain and Release. The buffer is finalized when the count
// reaches zero, so closing a buffer while views are open does not invalidate
// them:
//
//	v, _ := view.New(buf, view.Uint8, 0, 4) // Retain
//	buf.Close()                             // still alive
//	v.Set(0, 1)                             // ok
//	v.Close()                               // Release, finalized
//
// Finalization has two phases: OnDestroy hooks run first, then an owned
// region is freed. Each phase runs at most once.
//
// # Detaching
//
// When the owner of a borrowed region goes away (an instance is closed),
// Detach cuts the buffer off so that holders get an error instead of
// reading memory that no longer belongs to a live instance.
package buffer
