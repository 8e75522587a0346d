package iso8583

import (
	"errors"
	"fmt"
	"strconv"

	moov "github.com/moov-io/iso8583"
	"github.com/moov-io/iso8583/field"
)

// Decode parses one message from a frame payload that has already had any
// legacy header removed.
func (c *Codec) Decode(data []byte) (*Message, error) {
	m := &Message{}
	if h := c.schema.ParseHeaderLen; h > 0 {
		if len(data) < h {
			return nil, fmt.Errorf("%w: header needs %d bytes, have %d", ErrTruncated, h, len(data))
		}
		m.Header = cloneBytes(data[:h])
		data = data[h:]
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %w: empty message", ErrInvalidMTI, ErrTruncated)
	}

	wire := moov.NewMessage(c.wire)
	if err := wire.Unpack(data); err != nil {
		return nil, c.unpackError(err)
	}
	mti, err := wire.GetMTI()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMTI, err)
	}
	if m.Type, err = ParseMTI(mti); err != nil {
		return nil, err
	}

	for n, f := range wire.GetFields() {
		if n < MinField {
			continue
		}
		spec, ok := c.schema.Spec(n)
		if !ok {
			return nil, FieldError{Field: n, Err: ErrUnknownField}
		}
		v, err := readWireField(spec, f)
		if err != nil {
			return nil, FieldError{Field: n, Err: err}
		}
		m.fields[n] = &v
	}
	return m, nil
}

func readWireField(spec FieldSpec, f field.Field) (Value, error) {
	if spec.Type.Kind() == KindBinary {
		raw, err := f.Bytes()
		if err != nil {
			return Value{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return Value{Type: spec.Type, Length: spec.Length, raw: cloneBytes(raw)}, nil
	}
	s, err := f.String()
	if err != nil {
		return Value{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if spec.Type.Kind() == KindNumeric && !allDigits(s) {
		return Value{}, fmt.Errorf("%w: numeric %q", ErrInvalidValue, s)
	}
	return Value{Type: spec.Type, Length: spec.Length, text: s}, nil
}

// unpackError maps a moov unpack failure onto the package's sentinels,
// keeping the failing field number when moov reports one.
func (c *Codec) unpackError(err error) error {
	var ue *moov.UnpackError
	if !errors.As(err, &ue) {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	n, convErr := strconv.Atoi(ue.FieldID)
	switch {
	case convErr != nil:
		return fmt.Errorf("%w: %v", ErrMalformed, ue.Err)
	case n == 0:
		return fmt.Errorf("%w: %w: %v", ErrInvalidMTI, ErrMalformed, ue.Err)
	case n == 1:
		return fmt.Errorf("%w: %w: %v", ErrInvalidBitmap, ErrMalformed, ue.Err)
	}
	if _, ok := c.schema.Spec(n); !ok {
		return FieldError{Field: n, Err: ErrUnknownField}
	}
	return FieldError{Field: n, Err: fmt.Errorf("%w: %v", ErrMalformed, ue.Err)}
}
