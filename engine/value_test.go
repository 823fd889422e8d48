package engine

import (
	"errors"
	"math"
	"testing"

	"github.com/tetratelabs/wazero/api"
	"go.bytecodealliance.org/wit"

	wbErrors "github.com/wippyai/wasm-bridge/errors"
)

func TestValueOf(t *testing.T) {
	tests := []struct {
		in   any
		want any
		typ  api.ValueType
	}{
		{in: int32(-5), typ: api.ValueTypeI32, want: int32(-5)},
		{in: uint32(math.MaxUint32), typ: api.ValueTypeI32, want: int32(-1)},
		{in: int8(-1), typ: api.ValueTypeI32, want: int32(-1)},
		{in: uint8(255), typ: api.ValueTypeI32, want: int32(255)},
		{in: uint16(65535), typ: api.ValueTypeI32, want: int32(65535)},
		{in: true, typ: api.ValueTypeI32, want: int32(1)},
		{in: false, typ: api.ValueTypeI32, want: int32(0)},
		{in: int64(-7), typ: api.ValueTypeI64, want: int64(-7)},
		{in: 7, typ: api.ValueTypeI64, want: int64(7)},
		{in: float32(1.5), typ: api.ValueTypeF32, want: float32(1.5)},
		{in: 2.25, typ: api.ValueTypeF64, want: 2.25},
		{in: I32(3), typ: api.ValueTypeI32, want: int32(3)},
	}

	for _, tt := range tests {
		v, err := ValueOf(tt.in)
		if err != nil {
			t.Errorf("ValueOf(%T %v): %v", tt.in, tt.in, err)
			continue
		}
		if v.Type != tt.typ {
			t.Errorf("ValueOf(%T %v).Type = %s, want %s", tt.in, tt.in,
				api.ValueTypeName(v.Type), api.ValueTypeName(tt.typ))
		}
		if got := v.Interface(); got != tt.want {
			t.Errorf("ValueOf(%T %v).Interface() = %T %v, want %T %v", tt.in, tt.in, got, got, tt.want, tt.want)
		}
	}

	if _, err := ValueOf("x"); !errors.Is(err, &wbErrors.Error{Kind: wbErrors.KindInvalidInput}) {
		t.Errorf("ValueOf(string) = %v, want invalid input", err)
	}
}

func TestValue_String(t *testing.T) {
	if got := I32(-2).String(); got != "i32:-2" {
		t.Errorf("String() = %q, want i32:-2", got)
	}
	if got := F64(0.5).String(); got != "f64:0.5" {
		t.Errorf("String() = %q, want f64:0.5", got)
	}
}

func TestValue_WitType(t *testing.T) {
	tests := []struct {
		want string
		v    Value
	}{
		{v: I32(0), want: "s32"},
		{v: I64(0), want: "s64"},
		{v: F32(0), want: "f32"},
		{v: F64(0), want: "f64"},
		{v: Value{Type: api.ValueTypeExternref}, want: "none"},
	}
	for _, tt := range tests {
		if got := TypeName(tt.v.WitType()); got != tt.want {
			t.Errorf("TypeName(%v.WitType()) = %q, want %q", tt.v, got, tt.want)
		}
	}
	if got := TypeName(WitTypeOf(api.ValueTypeI64)); got != "s64" {
		t.Errorf("WitTypeOf(i64) = %q", got)
	}
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		typ  wit.Type
		want any
		in   string
	}{
		{in: "42", typ: wit.S32{}, want: int32(42)},
		{in: "-128", typ: wit.S8{}, want: int32(-128)},
		{in: "0xff", typ: wit.U8{}, want: int32(255)},
		{in: "4294967295", typ: wit.U32{}, want: int32(-1)},
		{in: "-9", typ: wit.S64{}, want: int64(-9)},
		{in: "18446744073709551615", typ: wit.U64{}, want: int64(-1)},
		{in: "1.25", typ: wit.F32{}, want: float32(1.25)},
		{in: "-3.5", typ: wit.F64{}, want: -3.5},
		{in: "true", typ: wit.Bool{}, want: int32(1)},
		{in: "x", typ: wit.Char{}, want: int32('x')},
		{in: "€", typ: wit.Char{}, want: int32(0x20ac)},
		{in: "\U0001F600", typ: wit.Char{}, want: int32(0x1f600)},
	}
	for _, tt := range tests {
		v, err := ParseValue(tt.in, tt.typ)
		if err != nil {
			t.Errorf("ParseValue(%q, %s): %v", tt.in, TypeName(tt.typ), err)
			continue
		}
		if got := v.Interface(); got != tt.want {
			t.Errorf("ParseValue(%q, %s) = %T %v, want %T %v", tt.in, TypeName(tt.typ), got, got, tt.want, tt.want)
		}
	}
}

func TestParseValue_Errors(t *testing.T) {
	tests := []struct {
		typ wit.Type
		in  string
	}{
		{in: "abc", typ: wit.S32{}},
		{in: "-1", typ: wit.U32{}},
		{in: "4294967296", typ: wit.U32{}},
		{in: "256", typ: wit.U8{}},
		{in: "-129", typ: wit.S8{}},
		{in: "65536", typ: wit.U16{}},
		{in: "maybe", typ: wit.Bool{}},
		{in: "x", typ: wit.String{}},
		{in: "", typ: wit.Char{}},
		{in: "xy", typ: wit.Char{}},
		{in: "\xff", typ: wit.Char{}},
	}
	for _, tt := range tests {
		_, err := ParseValue(tt.in, tt.typ)
		if !errors.Is(err, &wbErrors.Error{Kind: wbErrors.KindInvalidInput}) {
			t.Errorf("ParseValue(%q, %s) = %v, want invalid input", tt.in, TypeName(tt.typ), err)
		}
	}
}

func TestChar(t *testing.T) {
	v, err := Char('λ')
	if err != nil {
		t.Fatalf("Char: %v", err)
	}
	if v.Type != api.ValueTypeI32 || v.Interface() != int32('λ') {
		t.Errorf("Char('λ') = %v, want i32:%d", v, 'λ')
	}

	for _, r := range []rune{0xd800, 0xdfff, 0x110000, -1} {
		if _, err := Char(r); !errors.Is(err, &wbErrors.Error{Kind: wbErrors.KindInvalidInput}) {
			t.Errorf("Char(%#x) = %v, want invalid input", r, err)
		}
	}
}
