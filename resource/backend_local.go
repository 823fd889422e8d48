package resource

// LocalBackend is an in-memory slot table with generation-checked handles.
// Freed slots are reused, and reuse bumps the slot generation so that old
// handles to the slot stay invalid.
//
// LocalBackend is not safe for concurrent use; Registry serializes access.
type LocalBackend struct {
	entries  []entry
	freeList []uint32
	live     int
}

type entry struct {
	native     any
	generation uint32
	kind       Kind
	valid      bool
}

// NewLocalBackend creates a new in-memory backend.
func NewLocalBackend() *LocalBackend {
	return &LocalBackend{
		entries:  make([]entry, 0, 64),
		freeList: make([]uint32, 0, 16),
	}
}

// Create stores a native object and returns its handle.
func (b *LocalBackend) Create(kind Kind, native any) Handle {
	b.live++

	if n := len(b.freeList); n > 0 {
		index := b.freeList[n-1]
		b.freeList = b.freeList[:n-1]
		e := &b.entries[index]
		e.native = native
		e.kind = kind
		e.valid = true
		return newHandle(index, e.generation)
	}

	b.entries = append(b.entries, entry{native: native, kind: kind, valid: true})
	return newHandle(uint32(len(b.entries)-1), 0)
}

func (b *LocalBackend) lookup(h Handle) (*entry, bool) {
	index, ok := h.slot()
	if !ok || int(index) >= len(b.entries) {
		return nil, false
	}
	e := &b.entries[index]
	if !e.valid || e.generation != h.generation() {
		return nil, false
	}
	return e, true
}

// Get returns the native object and kind for a live handle.
func (b *LocalBackend) Get(h Handle) (any, Kind, bool) {
	e, ok := b.lookup(h)
	if !ok {
		return nil, 0, false
	}
	return e.native, e.kind, true
}

// Drop invalidates a live handle and returns what it wrapped.
func (b *LocalBackend) Drop(h Handle) (any, Kind, bool) {
	e, ok := b.lookup(h)
	if !ok {
		return nil, 0, false
	}

	native, kind := e.native, e.kind
	e.native = nil
	e.valid = false
	e.generation++
	b.freeList = append(b.freeList, uint32(h)-1)
	b.live--

	return native, kind, true
}

// Len returns the number of live handles.
func (b *LocalBackend) Len() int {
	return b.live
}

// Handles returns the live handles in slot order.
func (b *LocalBackend) Handles() []Handle {
	out := make([]Handle, 0, b.live)
	for i := range b.entries {
		if b.entries[i].valid {
			out = append(out, newHandle(uint32(i), b.entries[i].generation))
		}
	}
	return out
}
