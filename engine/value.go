package engine

import (
	"fmt"
	"strconv"
	"unicode/utf8"

	"github.com/tetratelabs/wazero/api"
	"go.bytecodealliance.org/wit"

	"github.com/wippyai/wasm-bridge/errors"
)

// Value is a WebAssembly core value: a value type plus its raw 64-bit
// encoding as wazero passes it on the stack.
type Value struct {
	Bits uint64
	Type api.ValueType
}

// I32 returns an i32 value.
func I32(v int32) Value {
	return Value{Type: api.ValueTypeI32, Bits: api.EncodeI32(v)}
}

// I64 returns an i64 value.
func I64(v int64) Value {
	return Value{Type: api.ValueTypeI64, Bits: api.EncodeI64(v)}
}

// F32 returns an f32 value.
func F32(v float32) Value {
	return Value{Type: api.ValueTypeF32, Bits: api.EncodeF32(v)}
}

// F64 returns an f64 value.
func F64(v float64) Value {
	return Value{Type: api.ValueTypeF64, Bits: api.EncodeF64(v)}
}

// Char returns the i32 value of a WIT char. Surrogates and code points
// past U+10FFFF are rejected.
func Char(r rune) (Value, error) {
	if !utf8.ValidRune(r) {
		return Value{}, errors.New(errors.PhaseEngine, errors.KindInvalidInput).
			Value(r).
			Detail("%#x is not a unicode scalar value", r).
			Build()
	}
	return Value{Type: api.ValueTypeI32, Bits: api.EncodeU32(uint32(r))}, nil
}

// ValueOf converts a Go scalar to a Value.
func ValueOf(x any) (Value, error) {
	switch v := x.(type) {
	case Value:
		return v, nil
	case int32:
		return I32(v), nil
	case uint32:
		return Value{Type: api.ValueTypeI32, Bits: api.EncodeU32(v)}, nil
	case int8:
		return I32(int32(v)), nil
	case uint8:
		return I32(int32(v)), nil
	case int16:
		return I32(int32(v)), nil
	case uint16:
		return I32(int32(v)), nil
	case bool:
		if v {
			return I32(1), nil
		}
		return I32(0), nil
	case int64:
		return I64(v), nil
	case uint64:
		return Value{Type: api.ValueTypeI64, Bits: v}, nil
	case int:
		return I64(int64(v)), nil
	case float32:
		return F32(v), nil
	case float64:
		return F64(v), nil
	}
	return Value{}, errors.InvalidInput(errors.PhaseEngine, fmt.Sprintf("cannot convert %T to a wasm value", x))
}

// Interface returns the value as int32, int64, float32 or float64.
// Reference types are returned as their raw bits.
func (v Value) Interface() any {
	switch v.Type {
	case api.ValueTypeI32:
		return api.DecodeI32(v.Bits)
	case api.ValueTypeI64:
		return int64(v.Bits)
	case api.ValueTypeF32:
		return api.DecodeF32(v.Bits)
	case api.ValueTypeF64:
		return api.DecodeF64(v.Bits)
	}
	return v.Bits
}

func (v Value) String() string {
	return fmt.Sprintf("%s:%v", api.ValueTypeName(v.Type), v.Interface())
}

// WitType maps the core value type to the WIT primitive with the same flat
// representation, or nil for reference types.
func (v Value) WitType() wit.Type {
	switch v.Type {
	case api.ValueTypeI32:
		return wit.S32{}
	case api.ValueTypeI64:
		return wit.S64{}
	case api.ValueTypeF32:
		return wit.F32{}
	case api.ValueTypeF64:
		return wit.F64{}
	}
	return nil
}

// WitTypeOf maps a core value type to a WIT primitive.
func WitTypeOf(t api.ValueType) wit.Type {
	return Value{Type: t}.WitType()
}

// ParseValue parses s as a value of WIT primitive type t, lowered to its
// core representation.
func ParseValue(s string, t wit.Type) (Value, error) {
	fail := func(err error) (Value, error) {
		return Value{}, errors.Wrap(errors.PhaseEngine, errors.KindInvalidInput, err,
			fmt.Sprintf("parse %q as %s", s, TypeName(t)))
	}

	switch t.(type) {
	case wit.S8, wit.S16, wit.S32:
		v, err := strconv.ParseInt(s, 0, bitSize(t))
		if err != nil {
			return fail(err)
		}
		return I32(int32(v)), nil
	case wit.U8, wit.U16, wit.U32:
		v, err := strconv.ParseUint(s, 0, bitSize(t))
		if err != nil {
			return fail(err)
		}
		return Value{Type: api.ValueTypeI32, Bits: api.EncodeU32(uint32(v))}, nil
	case wit.S64:
		v, err := strconv.ParseInt(s, 0, 64)
		if err != nil {
			return fail(err)
		}
		return I64(v), nil
	case wit.U64:
		v, err := strconv.ParseUint(s, 0, 64)
		if err != nil {
			return fail(err)
		}
		return Value{Type: api.ValueTypeI64, Bits: v}, nil
	case wit.F32:
		v, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return fail(err)
		}
		return F32(float32(v)), nil
	case wit.F64:
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fail(err)
		}
		return F64(v), nil
	case wit.Bool:
		v, err := strconv.ParseBool(s)
		if err != nil {
			return fail(err)
		}
		if v {
			return I32(1), nil
		}
		return I32(0), nil
	case wit.Char:
		r, n := utf8.DecodeRuneInString(s)
		if n == 0 || n != len(s) {
			return fail(fmt.Errorf("want exactly one character"))
		}
		if r == utf8.RuneError && n == 1 {
			return fail(fmt.Errorf("invalid UTF-8"))
		}
		return Char(r)
	}
	return Value{}, errors.InvalidInput(errors.PhaseEngine, "unsupported WIT type "+TypeName(t))
}

func bitSize(t wit.Type) int {
	switch t.(type) {
	case wit.S8, wit.U8:
		return 8
	case wit.S16, wit.U16:
		return 16
	}
	return 32
}

// TypeName returns the WIT spelling of a primitive type.
func TypeName(t wit.Type) string {
	switch t.(type) {
	case wit.Bool:
		return "bool"
	case wit.U8:
		return "u8"
	case wit.S8:
		return "s8"
	case wit.U16:
		return "u16"
	case wit.S16:
		return "s16"
	case wit.U32:
		return "u32"
	case wit.S32:
		return "s32"
	case wit.U64:
		return "u64"
	case wit.S64:
		return "s64"
	case wit.F32:
		return "f32"
	case wit.F64:
		return "f64"
	case wit.Char:
		return "char"
	case wit.String:
		return "string"
	case nil:
		return "none"
	}
	return fmt.Sprintf("%T", t)
}
