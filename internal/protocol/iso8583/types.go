package iso8583

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// FieldType is the wire encoding of one field.
type FieldType uint8

const (
	TypeNumeric FieldType = iota + 1
	TypeAlpha
	TypeLLVar
	TypeLLLVar
	TypeLLNum
	TypeBinary
	TypeLLBin
	TypeLLLBin
	TypeAmount
	TypeDate10
	TypeTime
)

var typeNames = map[FieldType]string{
	TypeNumeric: "NUMERIC",
	TypeAlpha:   "ALPHA",
	TypeLLVar:   "LLVAR",
	TypeLLLVar:  "LLLVAR",
	TypeLLNum:   "LLNUM",
	TypeBinary:  "BINARY",
	TypeLLBin:   "LLBIN",
	TypeLLLBin:  "LLLBIN",
	TypeAmount:  "AMOUNT",
	TypeDate10:  "DATE10",
	TypeTime:    "TIME",
}

func (t FieldType) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("FieldType(%d)", uint8(t))
}

// ParseFieldType maps a schema type name to its FieldType.
func ParseFieldType(name string) (FieldType, error) {
	want := strings.ToUpper(strings.TrimSpace(name))
	for t, n := range typeNames {
		if n == want {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown field type %q", ErrInvalidSchema, name)
}

// Fixed reports whether the type carries a schema-declared length.
func (t FieldType) Fixed() bool {
	switch t {
	case TypeNumeric, TypeAlpha, TypeBinary, TypeAmount, TypeDate10, TypeTime:
		return true
	}
	return false
}

// impliedLength is the length of numeric types whose width is part of the
// type itself.
func (t FieldType) impliedLength() int {
	switch t {
	case TypeAmount:
		return 12
	case TypeDate10:
		return 10
	case TypeTime:
		return 6
	}
	return 0
}

// Kind is the value family carried by a field.
type Kind uint8

const (
	KindNumeric Kind = iota + 1
	KindAlpha
	KindBinary
)

func (t FieldType) Kind() Kind {
	switch t {
	case TypeNumeric, TypeLLNum, TypeAmount, TypeDate10, TypeTime:
		return KindNumeric
	case TypeBinary, TypeLLBin, TypeLLLBin:
		return KindBinary
	default:
		return KindAlpha
	}
}

// Value is one typed field value. Text kinds keep the string as given;
// fixed types are padded only when encoded.
type Value struct {
	Type   FieldType
	Length int
	text   string
	raw    []byte
}

func Numeric(v string, length int) Value {
	return Value{Type: TypeNumeric, Length: length, text: v}
}

func Alpha(v string, length int) Value {
	return Value{Type: TypeAlpha, Length: length, text: v}
}

func LLVar(v string) Value {
	return Value{Type: TypeLLVar, text: v}
}

func LLLVar(v string) Value {
	return Value{Type: TypeLLLVar, text: v}
}

func LLNum(v string) Value {
	return Value{Type: TypeLLNum, text: v}
}

func Binary(b []byte, length int) Value {
	return Value{Type: TypeBinary, Length: length, raw: cloneBytes(b)}
}

func LLBin(b []byte) Value {
	return Value{Type: TypeLLBin, raw: cloneBytes(b)}
}

func LLLBin(b []byte) Value {
	return Value{Type: TypeLLLBin, raw: cloneBytes(b)}
}

func (v Value) Kind() Kind {
	return v.Type.Kind()
}

// Text returns the textual value; empty for binary kinds.
func (v Value) Text() string {
	return v.text
}

// Bytes returns a copy of the binary value; text kinds return their bytes.
func (v Value) Bytes() []byte {
	if v.Kind() == KindBinary {
		return cloneBytes(v.raw)
	}
	return []byte(v.text)
}

// String renders binary values as upper-case hex.
func (v Value) String() string {
	if v.Kind() == KindBinary {
		return strings.ToUpper(hex.EncodeToString(v.raw))
	}
	return v.text
}

// Len is the logical length: characters for text kinds, bytes for binary.
func (v Value) Len() int {
	if v.Kind() == KindBinary {
		return len(v.raw)
	}
	return len(v.text)
}

// Int parses a numeric value, ignoring surrounding spaces.
func (v Value) Int() (int64, error) {
	s := strings.TrimSpace(v.text)
	if s == "" {
		return 0, fmt.Errorf("%w: empty numeric value", ErrInvalidValue)
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	return n, nil
}

func (v Value) clone() Value {
	out := v
	out.raw = cloneBytes(v.raw)
	return out
}

func cloneBytes(in []byte) []byte {
	if in == nil {
		return nil
	}
	out := make([]byte, len(in))
	copy(out, in)
	return out
}
