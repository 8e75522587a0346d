package iso8583

import (
	"fmt"
	"strings"

	moov "github.com/moov-io/iso8583"
)

// Encode writes the header, MTI, bitmap(s) and fields of m in ascending
// field order. The result carries no frame prefix.
func (c *Codec) Encode(m *Message) ([]byte, error) {
	if m == nil {
		return nil, ErrNoRequest
	}
	mti := m.MTI()
	if c.opts.BinaryHeader && !allDigits(mti) {
		return nil, fmt.Errorf("%w: %s cannot be packed as BCD", ErrInvalidMTI, mti)
	}

	wire := moov.NewMessage(c.wire)
	wire.MTI(mti)
	for _, n := range m.Numbers() {
		spec, ok := c.schema.Spec(n)
		if !ok {
			return nil, FieldError{Field: n, Err: ErrUnknownField}
		}
		if err := c.setWireField(wire, n, spec, *m.fields[n]); err != nil {
			return nil, FieldError{Field: n, Err: err}
		}
	}
	packed, err := wire.Pack()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}

	header := m.Header
	if len(header) == 0 {
		header = c.headers[m.Type]
	}
	out := make([]byte, 0, len(header)+len(packed))
	out = append(out, header...)
	return append(out, packed...), nil
}

// setWireField pads fixed fields and checks lengths before handing the
// value to the wire message.
func (c *Codec) setWireField(wire *moov.Message, n int, spec FieldSpec, v Value) error {
	switch spec.Type {
	case TypeNumeric, TypeAmount, TypeDate10, TypeTime:
		s := v.text
		if len(s) > spec.Length {
			return fmt.Errorf("%w: %d > %d", ErrValueTooLong, len(s), spec.Length)
		}
		if !allDigits(s) {
			return fmt.Errorf("%w: numeric %q", ErrInvalidValue, s)
		}
		return wire.Field(n, strings.Repeat("0", spec.Length-len(s))+s)

	case TypeAlpha:
		s := v.text
		if len(s) > spec.Length {
			return fmt.Errorf("%w: %d > %d", ErrValueTooLong, len(s), spec.Length)
		}
		return wire.Field(n, s+strings.Repeat(" ", spec.Length-len(s)))

	case TypeLLVar, TypeLLLVar:
		if limit := maxVarLength(spec.Type); len(v.text) > limit {
			return fmt.Errorf("%w: length %d > %d", ErrValueTooLong, len(v.text), limit)
		}
		return wire.Field(n, v.text)

	case TypeLLNum:
		if !allDigits(v.text) {
			return fmt.Errorf("%w: numeric %q", ErrInvalidValue, v.text)
		}
		if len(v.text) > maxLLLength {
			return fmt.Errorf("%w: length %d > %d", ErrValueTooLong, len(v.text), maxLLLength)
		}
		return wire.Field(n, v.text)

	case TypeBinary:
		if len(v.raw) > spec.Length {
			return fmt.Errorf("%w: %d > %d bytes", ErrValueTooLong, len(v.raw), spec.Length)
		}
		padded := make([]byte, spec.Length)
		copy(padded, v.raw)
		return wire.BinaryField(n, padded)

	case TypeLLBin, TypeLLLBin:
		if limit := maxVarLength(spec.Type); len(v.raw) > limit {
			return fmt.Errorf("%w: length %d > %d", ErrValueTooLong, len(v.raw), limit)
		}
		return wire.BinaryField(n, v.raw)
	}
	return fmt.Errorf("%w: type %s", ErrInvalidSchema, spec.Type)
}
