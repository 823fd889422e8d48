package view

import (
	"strings"

	"github.com/wippyai/wasm-bridge/errors"
)

// Kind is the element type of a typed view.
type Kind uint8

const (
	Int8 Kind = iota
	Uint8
	Int16
	Uint16
	Int32
	Uint32
)

// Kinds lists every supported kind in declaration order.
var Kinds = []Kind{Int8, Uint8, Int16, Uint16, Int32, Uint32}

var kindNames = [...]string{
	Int8:   "int8",
	Uint8:  "uint8",
	Int16:  "int16",
	Uint16: "uint16",
	Int32:  "int32",
	Uint32: "uint32",
}

// Valid reports whether k is one of the six supported kinds.
func (k Kind) Valid() bool {
	return k <= Uint32
}

// Size returns the element width in bytes, or 0 for an invalid kind.
func (k Kind) Size() uint32 {
	switch k {
	case Int8, Uint8:
		return 1
	case Int16, Uint16:
		return 2
	case Int32, Uint32:
		return 4
	}
	return 0
}

// Signed reports whether elements are two's-complement signed.
func (k Kind) Signed() bool {
	return k == Int8 || k == Int16 || k == Int32
}

func (k Kind) String() string {
	if !k.Valid() {
		return "invalid"
	}
	return kindNames[k]
}

// Truncate wraps v to the width and signedness of k.
func (k Kind) Truncate(v int64) int64 {
	switch k {
	case Int8:
		return int64(int8(v))
	case Uint8:
		return int64(uint8(v))
	case Int16:
		return int64(int16(v))
	case Uint16:
		return int64(uint16(v))
	case Int32:
		return int64(int32(v))
	case Uint32:
		return int64(uint32(v))
	}
	return 0
}

// ParseKind resolves a kind name. Accepted spellings are the kind names
// ("int8"), short forms ("i8", "u8", "s8") and array class names
// ("Int8Array", "Uint8Array").
func ParseKind(s string) (Kind, error) {
	name := strings.ToLower(strings.TrimSuffix(strings.TrimSpace(s), "Array"))
	switch name {
	case "int8", "i8", "s8":
		return Int8, nil
	case "uint8", "u8":
		return Uint8, nil
	case "int16", "i16", "s16":
		return Int16, nil
	case "uint16", "u16":
		return Uint16, nil
	case "int32", "i32", "s32":
		return Int32, nil
	case "uint32", "u32":
		return Uint32, nil
	}
	return 0, errors.InvalidKind(errors.PhaseView, s)
}
