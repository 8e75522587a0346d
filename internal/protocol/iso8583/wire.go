package iso8583

import (
	"fmt"

	moov "github.com/moov-io/iso8583"
	"github.com/moov-io/iso8583/encoding"
	"github.com/moov-io/iso8583/field"
	"github.com/moov-io/iso8583/prefix"
)

const (
	maxLLLength  = 99
	maxLLLLength = 999
)

// buildWireSpec translates the schema and wire switches into a moov message
// spec. Field 0 is the MTI and field 1 the bitmap; secondary bitmaps are
// added by moov when a field above 64 is present.
func buildWireSpec(schema *Schema, opts Options) *moov.MessageSpec {
	fields := map[int]field.Field{
		0: field.NewString(mtiSpec(opts)),
		1: field.NewBitmap(bitmapSpec(opts)),
	}
	for n, fs := range schema.Fields {
		spec := fieldSpec(n, fs, opts)
		if fs.Type.Kind() == KindBinary {
			fields[n] = field.NewBinary(spec)
			continue
		}
		fields[n] = field.NewString(spec)
	}
	return &moov.MessageSpec{Name: "titpd", Fields: fields}
}

func mtiSpec(opts Options) *field.Spec {
	spec := &field.Spec{Length: 4, Description: "Message Type Indicator"}
	if opts.BinaryHeader {
		spec.Enc, spec.Pref = encoding.BCD, prefix.BCD.Fixed
	} else {
		spec.Enc, spec.Pref = encoding.ASCII, prefix.ASCII.Fixed
	}
	return spec
}

func bitmapSpec(opts Options) *field.Spec {
	spec := &field.Spec{Length: 8, Description: "Bitmap"}
	if opts.BinaryBitmap {
		spec.Enc, spec.Pref = encoding.Binary, prefix.Binary.Fixed
	} else {
		spec.Enc, spec.Pref = encoding.BytesToASCIIHex, prefix.Hex.Fixed
	}
	return spec
}

func fieldSpec(n int, fs FieldSpec, opts Options) *field.Spec {
	spec := &field.Spec{Description: fmt.Sprintf("Field %d %s", n, fs.Type)}
	switch fs.Type {
	case TypeNumeric, TypeAmount, TypeDate10, TypeTime:
		spec.Length = fs.Length
		if opts.BinaryFields {
			spec.Enc, spec.Pref = encoding.BCD, prefix.BCD.Fixed
		} else {
			spec.Enc, spec.Pref = encoding.ASCII, prefix.ASCII.Fixed
		}
	case TypeAlpha:
		spec.Length = fs.Length
		spec.Enc, spec.Pref = encoding.ASCII, prefix.ASCII.Fixed
	case TypeLLVar, TypeLLLVar:
		spec.Length = maxVarLength(fs.Type)
		spec.Enc, spec.Pref = encoding.ASCII, lengthPrefix(fs.Type, opts)
	case TypeLLNum:
		spec.Length = maxLLLength
		spec.Enc, spec.Pref = encoding.ASCII, lengthPrefix(fs.Type, opts)
		if opts.BinaryFields {
			spec.Enc = encoding.BCD
		}
	case TypeBinary:
		spec.Length = fs.Length
		if opts.BinaryFields {
			spec.Enc, spec.Pref = encoding.Binary, prefix.Binary.Fixed
		} else {
			spec.Enc, spec.Pref = encoding.BytesToASCIIHex, prefix.Hex.Fixed
		}
	case TypeLLBin, TypeLLLBin:
		spec.Length = maxVarLength(fs.Type)
		spec.Enc, spec.Pref = encoding.Binary, lengthPrefix(fs.Type, opts)
		if !opts.BinaryFields {
			spec.Enc = encoding.BytesToASCIIHex
		}
	}
	return spec
}

// lengthPrefix is BCD in binary mode and ASCII digits otherwise. Binary
// field lengths count bytes in both modes.
func lengthPrefix(t FieldType, opts Options) prefix.Prefixer {
	three := t == TypeLLLVar || t == TypeLLLBin
	switch {
	case opts.BinaryFields && three:
		return prefix.BCD.LLL
	case opts.BinaryFields:
		return prefix.BCD.LL
	case three:
		return prefix.ASCII.LLL
	default:
		return prefix.ASCII.LL
	}
}

func maxVarLength(t FieldType) int {
	if t == TypeLLLVar || t == TypeLLLBin {
		return maxLLLLength
	}
	return maxLLLength
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if !isDigit(s[i]) {
			return false
		}
	}
	return true
}
