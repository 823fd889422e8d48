package view

import (
	"encoding/binary"
	"sync/atomic"

	"github.com/wippyai/wasm-bridge/buffer"
	"github.com/wippyai/wasm-bridge/errors"
)

// View reads and writes a range of an ArrayBuffer as fixed-width integers.
//
// Only the kind, element offset and element count are stored; the byte
// position is computed from the buffer on every access. A view holds a
// reference on its buffer from construction until Close.
type View struct {
	buf    *buffer.ArrayBuffer
	offset uint32
	length uint32
	kind   Kind
	closed atomic.Bool
}

// New creates a view of length elements of kind, starting offset elements
// into buf. The byte range must fit inside the buffer.
func New(buf *buffer.ArrayBuffer, kind Kind, offset, length uint32) (*View, error) {
	if buf == nil {
		return nil, errors.InvalidInput(errors.PhaseView, "nil array buffer")
	}
	if !kind.Valid() {
		return nil, errors.InvalidKind(errors.PhaseView, uint8(kind))
	}

	size := uint64(kind.Size())
	byteOffset := uint64(offset) * size
	byteLength := uint64(length) * size
	if byteOffset+byteLength > uint64(buf.ByteLength()) {
		return nil, errors.RangeExceeded(errors.PhaseView, byteOffset, byteLength, uint64(buf.ByteLength()))
	}

	if err := buf.Retain(); err != nil {
		return nil, err
	}

	return &View{
		buf:    buf,
		kind:   kind,
		offset: offset,
		length: length,
	}, nil
}

// NewInt8 creates an int8 view.
func NewInt8(buf *buffer.ArrayBuffer, offset, length uint32) (*View, error) {
	return New(buf, Int8, offset, length)
}

// NewUint8 creates a uint8 view.
func NewUint8(buf *buffer.ArrayBuffer, offset, length uint32) (*View, error) {
	return New(buf, Uint8, offset, length)
}

// NewInt16 creates an int16 view.
func NewInt16(buf *buffer.ArrayBuffer, offset, length uint32) (*View, error) {
	return New(buf, Int16, offset, length)
}

// NewUint16 creates a uint16 view.
func NewUint16(buf *buffer.ArrayBuffer, offset, length uint32) (*View, error) {
	return New(buf, Uint16, offset, length)
}

// NewInt32 creates an int32 view.
func NewInt32(buf *buffer.ArrayBuffer, offset, length uint32) (*View, error) {
	return New(buf, Int32, offset, length)
}

// NewUint32 creates a uint32 view.
func NewUint32(buf *buffer.ArrayBuffer, offset, length uint32) (*View, error) {
	return New(buf, Uint32, offset, length)
}

// Fit creates the longest view of kind that starts at offset elements and
// fits the buffer.
func Fit(buf *buffer.ArrayBuffer, kind Kind, offset uint32) (*View, error) {
	if buf == nil {
		return nil, errors.InvalidInput(errors.PhaseView, "nil array buffer")
	}
	if !kind.Valid() {
		return nil, errors.InvalidKind(errors.PhaseView, uint8(kind))
	}
	total := buf.ByteLength() / kind.Size()
	if offset > total {
		return nil, errors.RangeExceeded(errors.PhaseView,
			uint64(offset)*uint64(kind.Size()), 0, uint64(buf.ByteLength()))
	}
	return New(buf, kind, offset, total-offset)
}

// Kind returns the element kind.
func (v *View) Kind() Kind {
	return v.kind
}

// Len returns the number of elements.
func (v *View) Len() uint32 {
	return v.length
}

// Offset returns the element offset into the buffer.
func (v *View) Offset() uint32 {
	return v.offset
}

// ByteOffset returns the byte offset into the buffer.
func (v *View) ByteOffset() uint64 {
	return uint64(v.offset) * uint64(v.kind.Size())
}

// ByteLength returns the number of bytes the view covers.
func (v *View) ByteLength() uint64 {
	return uint64(v.length) * uint64(v.kind.Size())
}

// Buffer returns the underlying buffer.
func (v *View) Buffer() *buffer.ArrayBuffer {
	return v.buf
}

// element returns the bytes of element index.
func (v *View) element(index uint32) ([]byte, error) {
	if v.closed.Load() {
		return nil, errors.Closed(errors.PhaseView, v.kind.String()+" view")
	}
	if index >= v.length {
		return nil, errors.IndexOutOfBounds(errors.PhaseView, []string{v.kind.String()}, uint64(index), uint64(v.length))
	}
	data, err := v.buf.Bytes()
	if err != nil {
		return nil, err
	}
	size := uint64(v.kind.Size())
	pos := (uint64(v.offset) + uint64(index)) * size
	return data[pos : pos+size], nil
}

// Get returns element index, sign- or zero-extended per the kind.
func (v *View) Get(index uint32) (int64, error) {
	p, err := v.element(index)
	if err != nil {
		return 0, err
	}
	return decode(v.kind, p), nil
}

// Set stores value at index, wrapping it to the element width.
func (v *View) Set(index uint32, value int64) error {
	p, err := v.element(index)
	if err != nil {
		return err
	}
	encode(v.kind, p, value)
	return nil
}

// Values returns a copy of every element.
func (v *View) Values() ([]int64, error) {
	raw, err := v.Bytes()
	if err != nil {
		return nil, err
	}
	size := int(v.kind.Size())
	out := make([]int64, v.length)
	for i := range out {
		out[i] = decode(v.kind, raw[i*size:(i+1)*size])
	}
	return out, nil
}

// Bytes returns the bytes the view covers. The result aliases the buffer.
func (v *View) Bytes() ([]byte, error) {
	if v.closed.Load() {
		return nil, errors.Closed(errors.PhaseView, v.kind.String()+" view")
	}
	data, err := v.buf.Bytes()
	if err != nil {
		return nil, err
	}
	start := v.ByteOffset()
	return data[start : start+v.ByteLength()], nil
}

// Close releases the view's reference on its buffer. Calling it again is a
// no-op.
func (v *View) Close() error {
	if v.closed.CompareAndSwap(false, true) {
		v.buf.Release()
	}
	return nil
}

func decode(k Kind, p []byte) int64 {
	switch k {
	case Int8:
		return int64(int8(p[0]))
	case Uint8:
		return int64(p[0])
	case Int16:
		return int64(int16(binary.LittleEndian.Uint16(p)))
	case Uint16:
		return int64(binary.LittleEndian.Uint16(p))
	case Int32:
		return int64(int32(binary.LittleEndian.Uint32(p)))
	case Uint32:
		return int64(binary.LittleEndian.Uint32(p))
	}
	return 0
}

func encode(k Kind, p []byte, value int64) {
	switch k {
	case Int8, Uint8:
		p[0] = byte(value)
	case Int16, Uint16:
		binary.LittleEndian.PutUint16(p, uint16(value))
	case Int32, Uint32:
		binary.LittleEndian.PutUint32(p, uint32(value))
	}
}
