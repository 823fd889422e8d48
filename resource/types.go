package resource

import "fmt"

// Handle is an opaque reference to a registered native object.
// The low 32 bits hold the slot index plus one, the high 32 bits the slot
// generation. Handle 0 is never issued.
type Handle uint64

func newHandle(index, generation uint32) Handle {
	return Handle(uint64(generation)<<32 | uint64(index+1))
}

func (h Handle) slot() (index uint32, ok bool) {
	low := uint32(h)
	if low == 0 {
		return 0, false
	}
	return low - 1, true
}

func (h Handle) generation() uint32 {
	return uint32(h >> 32)
}

func (h Handle) String() string {
	index, ok := h.slot()
	if !ok {
		return "invalid"
	}
	return fmt.Sprintf("%d@%d", index, h.generation())
}

// Kind tags the native object a handle wraps.
type Kind uint8

const (
	KindByteArray Kind = iota + 1
	KindModule
	KindInstance
	KindValue
)

// Kinds lists every resource kind.
var Kinds = []Kind{KindByteArray, KindModule, KindInstance, KindValue}

// Valid reports whether k is a known resource kind.
func (k Kind) Valid() bool {
	return k >= KindByteArray && k <= KindValue
}

func (k Kind) String() string {
	switch k {
	case KindByteArray:
		return "byte-array"
	case KindModule:
		return "module"
	case KindInstance:
		return "instance"
	case KindValue:
		return "value"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Destructor releases the engine-side resources of one native object.
// The registry calls it at most once per handle.
type Destructor func(native any) error

// EventType identifies a lifecycle notification.
type EventType uint8

const (
	EventRegistered EventType = iota
	EventDestroyed
)

// Event represents a resource lifecycle event.
type Event struct {
	Native any
	Err    error
	Handle Handle
	Kind   Kind
	Type   EventType
}

// Observer receives notifications about resource lifecycle events.
type Observer interface {
	OnResourceEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// OnResourceEvent calls f(e).
func (f ObserverFunc) OnResourceEvent(e Event) {
	f(e)
}
