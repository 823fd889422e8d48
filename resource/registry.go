package resource

import (
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-bridge/errors"
)

// Registry maps handles to native engine objects and tears each object down
// exactly once, either on Destroy or during SweepAll.
//
// All mutations are serialized under one mutex, and destructors run while
// it is held so that no partial teardown is ever visible. A destructor must
// not call back into the registry that invoked it.
type Registry struct {
	backend      *LocalBackend
	destructors  map[Kind]Destructor
	logger       *zap.Logger
	observers    []observerEntry
	nextObserver uint64
	mu           sync.Mutex
	closed       bool
}

type observerEntry struct {
	o  Observer
	id uint64
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithDestructor installs the teardown function for kind.
func WithDestructor(kind Kind, d Destructor) Option {
	return func(r *Registry) {
		r.destructors[kind] = d
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		backend:     NewLocalBackend(),
		destructors: make(map[Kind]Destructor, len(Kinds)),
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetDestructor installs the teardown function for kind, replacing any
// previous one. A kind without a destructor is simply forgotten on destroy.
func (r *Registry) SetDestructor(kind Kind, d Destructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.destructors[kind] = d
}

// Register wraps a native object and returns its handle.
func (r *Registry) Register(native any, kind Kind) (Handle, error) {
	if !kind.Valid() {
		return 0, errors.InvalidKind(errors.PhaseHandle, kind)
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return 0, errors.Closed(errors.PhaseHandle, "registry")
	}
	h := r.backend.Create(kind, native)
	r.mu.Unlock()

	r.logger.Debug("resource registered", zap.Stringer("handle", h), zap.Stringer("kind", kind))
	r.notify(Event{Type: EventRegistered, Handle: h, Kind: kind, Native: native})
	return h, nil
}

// Extract returns the native object behind a live handle.
func (r *Registry) Extract(h Handle) (any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	native, _, ok := r.backend.Get(h)
	if !ok {
		return nil, errors.StaleHandle(uint64(h))
	}
	return native, nil
}

// ExtractAs returns the native object behind h as T, checking that the
// handle has the expected kind.
func ExtractAs[T any](r *Registry, h Handle, kind Kind) (T, error) {
	var zero T

	r.mu.Lock()
	native, got, ok := r.backend.Get(h)
	r.mu.Unlock()

	if !ok {
		return zero, errors.StaleHandle(uint64(h))
	}
	if got != kind {
		return zero, errors.KindMismatch(uint64(h), kind.String(), got.String())
	}
	v, ok := native.(T)
	if !ok {
		return zero, errors.KindMismatch(uint64(h), fmt.Sprintf("%T", zero), fmt.Sprintf("%T", native))
	}
	return v, nil
}

// Kind returns the kind of a live handle.
func (r *Registry) Kind(h Handle) (Kind, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, kind, ok := r.backend.Get(h)
	if !ok {
		return 0, errors.StaleHandle(uint64(h))
	}
	return kind, nil
}

// Live reports whether h resolves to a registered object.
func (r *Registry) Live(h Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, _, ok := r.backend.Get(h)
	return ok
}

// Destroy tears down the object behind h and removes it. Destroying a
// handle that is already destroyed is a no-op. If the destructor fails the
// handle is still destroyed and the failure is returned.
func (r *Registry) Destroy(h Handle) error {
	r.mu.Lock()
	ev, ok := r.destroyLocked(h, errors.PhaseHandle)
	r.mu.Unlock()

	if !ok {
		return nil
	}
	r.notify(ev)
	return ev.Err
}

// destroyLocked runs with r.mu held.
func (r *Registry) destroyLocked(h Handle, phase errors.Phase) (Event, bool) {
	native, kind, ok := r.backend.Drop(h)
	if !ok {
		return Event{}, false
	}

	ev := Event{Type: EventDestroyed, Handle: h, Kind: kind, Native: native}
	if d := r.destructors[kind]; d != nil {
		if err := runDestructor(d, native); err != nil {
			ev.Err = errors.Teardown(phase, uint64(h), kind.String(), err)
			r.logger.Warn("resource teardown failed",
				zap.Stringer("handle", h),
				zap.Stringer("kind", kind),
				zap.Error(err))
		}
	}

	r.logger.Debug("resource destroyed", zap.Stringer("handle", h), zap.Stringer("kind", kind))
	return ev, true
}

func runDestructor(d Destructor, native any) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("destructor panicked: %v", p)
		}
	}()
	return d(native)
}

// SweepReport summarizes a SweepAll pass.
type SweepReport struct {
	Failures  []error
	Destroyed int
}

// Err combines the teardown failures, or returns nil.
func (s SweepReport) Err() error {
	return multierr.Combine(s.Failures...)
}

// SweepAll destroys every live handle. It never stops early: a failing
// destructor is recorded in the report and the sweep moves on. Handles are
// visited newest slot first, but callers must not rely on any order.
func (r *Registry) SweepAll() SweepReport {
	r.mu.Lock()
	handles := r.backend.Handles()
	events := make([]Event, 0, len(handles))
	var report SweepReport
	for i := len(handles) - 1; i >= 0; i-- {
		ev, ok := r.destroyLocked(handles[i], errors.PhaseSweep)
		if !ok {
			continue
		}
		report.Destroyed++
		if ev.Err != nil {
			report.Failures = append(report.Failures, ev.Err)
		}
		events = append(events, ev)
	}
	r.mu.Unlock()

	for _, ev := range events {
		r.notify(ev)
	}

	if report.Destroyed > 0 {
		r.logger.Debug("resource sweep complete",
			zap.Int("destroyed", report.Destroyed),
			zap.Int("failed", len(report.Failures)))
	}
	return report
}

// Close sweeps every live handle and refuses further registration.
func (r *Registry) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	return r.SweepAll().Err()
}

// Len returns the number of live handles.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.backend.Len()
}

// Each calls fn for every live handle until fn returns false. fn runs on a
// snapshot and may call back into the registry.
func (r *Registry) Each(fn func(Handle, Kind, any) bool) {
	type item struct {
		native any
		h      Handle
		kind   Kind
	}

	r.mu.Lock()
	handles := r.backend.Handles()
	items := make([]item, 0, len(handles))
	for _, h := range handles {
		native, kind, _ := r.backend.Get(h)
		items = append(items, item{h: h, kind: kind, native: native})
	}
	r.mu.Unlock()

	for _, it := range items {
		if !fn(it.h, it.kind, it.native) {
			return
		}
	}
}

// Subscribe adds an observer for lifecycle events and returns a function
// that removes it.
func (r *Registry) Subscribe(o Observer) (cancel func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextObserver++
	id := r.nextObserver
	r.observers = append(r.observers, observerEntry{id: id, o: o})

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		for i, e := range r.observers {
			if e.id == id {
				r.observers = append(r.observers[:i], r.observers[i+1:]...)
				return
			}
		}
	}
}

func (r *Registry) notify(e Event) {
	r.mu.Lock()
	observers := make([]observerEntry, len(r.observers))
	copy(observers, r.observers)
	r.mu.Unlock()

	for _, obs := range observers {
		obs.o.OnResourceEvent(e)
	}
}
