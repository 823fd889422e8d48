package buffer

import (
	"encoding/binary"
	"math"
	"sync"

	"github.com/tetratelabs/wazero/api"

	wasmbridge "github.com/wippyai/wasm-bridge"
	"github.com/wippyai/wasm-bridge/errors"
)

var (
	_ wasmbridge.Memory      = (*ArrayBuffer)(nil)
	_ wasmbridge.MemorySizer = (*ArrayBuffer)(nil)
)

// ArrayBuffer wraps exactly one Region. It is reference counted: the
// constructor's reference is dropped by Close, and every holder such as a
// typed view takes its own reference with Retain and drops it with Release.
// When the count reaches zero the buffer is finalized in two phases: the
// OnDestroy hooks run, then an owned region is freed.
type ArrayBuffer struct {
	alloc     Allocator
	mem       api.Memory
	onDestroy []func()
	region    Region
	mu        sync.Mutex
	refs      int32
	closed    bool
	detached  bool
	finalized bool
}

// New allocates a zero-filled buffer of length bytes from DefaultAllocator.
func New(length uint32) (*ArrayBuffer, error) {
	return NewWithAllocator(length, DefaultAllocator)
}

// NewWithAllocator allocates a zero-filled buffer of length bytes from alloc.
func NewWithAllocator(length uint32, alloc Allocator) (*ArrayBuffer, error) {
	if alloc == nil {
		alloc = DefaultAllocator
	}
	data, err := alloc.Alloc(length)
	if err != nil {
		return nil, err
	}
	return &ArrayBuffer{
		alloc:  alloc,
		region: Region{data: data, length: length, owned: true},
		refs:   1,
	}, nil
}

// Adopt wraps bytes owned elsewhere. Nothing is copied and the bytes are
// never freed by the buffer. The caller keeps data valid for the lifetime
// of the buffer or calls Detach before invalidating it.
func Adopt(data []byte) (*ArrayBuffer, error) {
	if uint64(len(data)) > math.MaxUint32 {
		return nil, errors.InvalidInput(errors.PhaseBuffer, "adopted region exceeds 4GiB")
	}
	return &ArrayBuffer{
		region: Region{data: data, length: uint32(len(data))},
		refs:   1,
	}, nil
}

// AdoptMemory wraps a wazero linear memory. The buffer covers the memory's
// size at adoption and keeps that length.
//
// Bytes are resolved through mem on every access, so guest writes are
// visible through the buffer and vice versa, including after a memory.grow
// moves the backing array. Adopt again to cover the grown extent.
func AdoptMemory(mem api.Memory) (*ArrayBuffer, error) {
	if mem == nil {
		return nil, errors.InvalidInput(errors.PhaseBuffer, "nil memory")
	}
	size := mem.Size()
	data, ok := mem.Read(0, size)
	if !ok {
		return nil, errors.New(errors.PhaseBuffer, errors.KindRange).
			Detail("memory read of %d bytes failed", size).
			Build()
	}
	b, err := Adopt(data)
	if err != nil {
		return nil, err
	}
	b.mem = mem
	return b, nil
}

// ByteLength returns the fixed region length.
func (b *ArrayBuffer) ByteLength() uint32 {
	return b.region.Len()
}

// Size implements wasmbridge.MemorySizer.
func (b *ArrayBuffer) Size() uint32 {
	return b.region.Len()
}

// Owned reports whether the buffer allocated its region.
func (b *ArrayBuffer) Owned() bool {
	return b.region.Owned()
}

// Bytes returns the live region. It is the accessor typed views read and
// write through; the slice must not be retained past the call that uses it.
func (b *ArrayBuffer) Bytes() ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bytesLocked()
}

func (b *ArrayBuffer) bytesLocked() ([]byte, error) {
	if b.finalized {
		return nil, errors.Closed(errors.PhaseBuffer, "array buffer")
	}
	if b.detached {
		return nil, errors.Detached(errors.PhaseBuffer, "array buffer")
	}
	if b.mem != nil {
		data, ok := b.mem.Read(0, b.region.length)
		if !ok {
			return nil, errors.Detached(errors.PhaseBuffer, "linear memory")
		}
		return data, nil
	}
	return b.region.data, nil
}

// Retain takes a reference. It fails once the buffer has been finalized.
func (b *ArrayBuffer) Retain() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.finalized {
		return errors.Closed(errors.PhaseBuffer, "array buffer")
	}
	b.refs++
	return nil
}

// Release drops a reference taken with Retain.
func (b *ArrayBuffer) Release() {
	b.mu.Lock()
	if b.finalized || b.refs == 0 {
		b.mu.Unlock()
		return
	}
	b.refs--
	if b.refs > 0 {
		b.mu.Unlock()
		return
	}
	b.finalize()
}

// Close drops the constructor's reference. Calling it again is a no-op.
func (b *ArrayBuffer) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()
	b.Release()
	return nil
}

// finalize runs with b.mu held and releases it.
func (b *ArrayBuffer) finalize() {
	b.finalized = true
	hooks := b.onDestroy
	b.onDestroy = nil
	data := b.region.data
	b.region.data = nil
	b.mem = nil
	owned := b.region.owned
	b.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
	if owned && b.alloc != nil {
		b.alloc.Free(data)
	}
}

// OnDestroy registers fn to run once, when the last reference is dropped
// and before the region is freed. It returns false if the buffer is already
// finalized.
func (b *ArrayBuffer) OnDestroy(fn func()) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.finalized {
		return false
	}
	b.onDestroy = append(b.onDestroy, fn)
	return true
}

// Detach cuts a borrowed buffer off from its region, for when the owner of
// the bytes goes away while holders still reference the buffer. Subsequent
// access fails with a detached error. Owned buffers cannot be detached.
func (b *ArrayBuffer) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.region.owned {
		return errors.InvalidInput(errors.PhaseBuffer, "cannot detach an owned buffer")
	}
	b.detached = true
	b.region.data = nil
	b.mem = nil
	return nil
}

// Refs returns the current reference count.
func (b *ArrayBuffer) Refs() int32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.refs
}

// Alive reports whether the buffer has not been finalized.
func (b *ArrayBuffer) Alive() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.finalized
}

// span returns the bytes [offset, offset+length) of the region.
func (b *ArrayBuffer) span(offset, length uint32) ([]byte, error) {
	data, err := b.Bytes()
	if err != nil {
		return nil, err
	}
	end := uint64(offset) + uint64(length)
	if end > uint64(len(data)) {
		return nil, errors.RangeExceeded(errors.PhaseBuffer, uint64(offset), uint64(length), uint64(len(data)))
	}
	return data[offset:end], nil
}

// Read returns length bytes at offset. The result aliases the region.
func (b *ArrayBuffer) Read(offset uint32, length uint32) ([]byte, error) {
	return b.span(offset, length)
}

// Write copies data into the region at offset.
func (b *ArrayBuffer) Write(offset uint32, data []byte) error {
	if uint64(len(data)) > math.MaxUint32 {
		return errors.InvalidInput(errors.PhaseBuffer, "write exceeds 4GiB")
	}
	dst, err := b.span(offset, uint32(len(data)))
	if err != nil {
		return err
	}
	copy(dst, data)
	return nil
}

// ReadU8 reads an unsigned 8-bit value.
func (b *ArrayBuffer) ReadU8(offset uint32) (uint8, error) {
	p, err := b.span(offset, 1)
	if err != nil {
		return 0, err
	}
	return p[0], nil
}

// ReadU16 reads an unsigned 16-bit little-endian value.
func (b *ArrayBuffer) ReadU16(offset uint32) (uint16, error) {
	p, err := b.span(offset, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(p), nil
}

// ReadU32 reads an unsigned 32-bit little-endian value.
func (b *ArrayBuffer) ReadU32(offset uint32) (uint32, error) {
	p, err := b.span(offset, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(p), nil
}

// ReadU64 reads an unsigned 64-bit little-endian value.
func (b *ArrayBuffer) ReadU64(offset uint32) (uint64, error) {
	p, err := b.span(offset, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(p), nil
}

// WriteU8 writes an unsigned 8-bit value.
func (b *ArrayBuffer) WriteU8(offset uint32, value uint8) error {
	p, err := b.span(offset, 1)
	if err != nil {
		return err
	}
	p[0] = value
	return nil
}

// WriteU16 writes an unsigned 16-bit little-endian value.
func (b *ArrayBuffer) WriteU16(offset uint32, value uint16) error {
	p, err := b.span(offset, 2)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(p, value)
	return nil
}

// WriteU32 writes an unsigned 32-bit little-endian value.
func (b *ArrayBuffer) WriteU32(offset uint32, value uint32) error {
	p, err := b.span(offset, 4)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(p, value)
	return nil
}

// WriteU64 writes an unsigned 64-bit little-endian value.
func (b *ArrayBuffer) WriteU64(offset uint32, value uint64) error {
	p, err := b.span(offset, 8)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(p, value)
	return nil
}
