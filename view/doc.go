// Package view provides typed views over array buffers.
//
// A View reinterprets a range of a buffer.ArrayBuffer as int8, uint8, int16,
// uint16, int32 or uint32 elements without copying. All six kinds share one
// implementation parameterized by Kind:
//
//	buf, _ := buffer.New(4)
//	u8, _ := view.New(buf, view.Uint8, 0, 4)
//	u8.Set(0, 256)     // wraps to 0
//
//	_, err := view.New(buf, view.Int16, 0, 4) // 8 bytes > 4, range error
//
// Offsets and lengths are in elements, not bytes. The byte range is checked
// once at construction; it stays valid because buffer lengths never change.
// Multi-byte elements use the little-endian order of WebAssembly linear
// memory.
//
// # Aliasing
//
// Any number of views may cover the same bytes, with different kinds. Writes
// through one are visible through the others immediately.
//
// # Liveness
//
// A view retains its buffer. Closing the buffer while a view is open leaves
// the view usable; the buffer is finalized when the last view closes.
package view
