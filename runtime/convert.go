package runtime

import (
	"fmt"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/wasm-bridge/engine"
)

// lower converts a Go argument to a core value of WIT type t. A rune
// argument for a char parameter is taken as the character itself.
func lower(arg any, t wit.Type) (engine.Value, error) {
	if _, ok := t.(wit.Char); ok {
		if r, ok := arg.(rune); ok {
			return engine.Char(r)
		}
	}
	switch v := arg.(type) {
	case engine.Value:
		return v, nil
	case string:
		return engine.ParseValue(v, t)
	}
	return engine.ParseValue(fmt.Sprint(arg), t)
}

// lift converts a core value to the Go type matching WIT type t. A nil t
// yields the core representation.
func lift(v engine.Value, t wit.Type) any {
	switch t.(type) {
	case wit.Bool:
		return uint32(v.Bits) != 0
	case wit.U8:
		return uint8(v.Bits)
	case wit.S8:
		return int8(v.Bits)
	case wit.U16:
		return uint16(v.Bits)
	case wit.S16:
		return int16(v.Bits)
	case wit.U32:
		return uint32(v.Bits)
	case wit.U64:
		return v.Bits
	case wit.Char:
		return rune(uint32(v.Bits))
	}
	return v.Interface()
}
