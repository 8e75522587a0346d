package iso8583

import (
	"encoding/hex"
	"fmt"
	"time"

	moov "github.com/moov-io/iso8583"
)

// Options select the wire variants. All true is the usual binary layout:
// 2-byte MTI, raw bitmap, BCD numerics.
type Options struct {
	BinaryHeader bool
	BinaryBitmap bool
	BinaryFields bool
	// AssignDate stamps field 7 (MMddHHmmss) on messages built with
	// NewMessage.
	AssignDate bool
}

func DefaultOptions() Options {
	return Options{
		BinaryHeader: true,
		BinaryBitmap: true,
		BinaryFields: true,
		AssignDate:   true,
	}
}

// Codec turns frame payloads into Messages and back. It holds no per-call
// state and is safe for concurrent use.
type Codec struct {
	schema  *Schema
	opts    Options
	headers map[uint16][]byte
	wire    *moov.MessageSpec
	now     func() time.Time
}

func NewCodec(schema *Schema, opts Options) (*Codec, error) {
	if schema == nil {
		schema = DefaultSchema()
	}
	schema.normalize()
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	headers := make(map[uint16][]byte, len(schema.Headers))
	for mti, h := range schema.Headers {
		if !opts.BinaryHeader {
			headers[mti] = []byte(h)
			continue
		}
		raw, err := hex.DecodeString(h)
		if err != nil {
			return nil, fmt.Errorf("%w: header for %04X: %v", ErrInvalidSchema, mti, err)
		}
		headers[mti] = raw
	}
	return &Codec{
		schema:  schema,
		opts:    opts,
		headers: headers,
		wire:    buildWireSpec(schema, opts),
		now:     time.Now,
	}, nil
}

func (c *Codec) Schema() *Schema {
	return c.schema
}

func (c *Codec) Options() Options {
	return c.opts
}

// NewMessage creates an empty message of the given type carrying the
// configured header and, with AssignDate, the transmission date.
func (c *Codec) NewMessage(mti uint16) *Message {
	m := NewMessage(mti)
	m.Header = cloneBytes(c.headers[mti])
	if c.opts.AssignDate {
		if spec, ok := c.schema.Spec(7); ok {
			stamp := c.now().Format("0102150405")
			_ = m.Set(7, Value{Type: spec.Type, Length: spec.Length, text: stamp})
		}
	}
	return m
}

// NewResponse builds the response skeleton for req: type req.Type+0x10 with
// every request field copied. A nil req yields a bare message of the
// schema's error response type, or ErrNoRequest when none is configured.
func (c *Codec) NewResponse(req *Message) (*Message, error) {
	if req == nil {
		if c.schema.ErrorResponseType == 0 {
			return nil, ErrNoRequest
		}
		return c.NewMessage(c.schema.ErrorResponseType), nil
	}
	resp := req.Clone()
	resp.Type = req.Type + 0x10
	resp.Header = cloneBytes(c.headers[resp.Type])
	return resp, nil
}

// Value builds a text value typed by the schema definition of field n.
func (c *Codec) Value(n int, text string) (Value, error) {
	spec, ok := c.schema.Spec(n)
	if !ok {
		return Value{}, FieldError{Field: n, Err: ErrUnknownField}
	}
	if spec.Type.Kind() == KindBinary {
		raw, err := hex.DecodeString(text)
		if err != nil {
			return Value{}, FieldError{Field: n, Err: fmt.Errorf("%w: %v", ErrInvalidValue, err)}
		}
		return c.BinaryValue(n, raw)
	}
	if spec.Type.Kind() == KindNumeric && !allDigits(text) {
		return Value{}, FieldError{Field: n, Err: fmt.Errorf("%w: numeric %q", ErrInvalidValue, text)}
	}
	if spec.Type.Fixed() && len(text) > spec.Length {
		return Value{}, FieldError{Field: n, Err: ErrValueTooLong}
	}
	return Value{Type: spec.Type, Length: spec.Length, text: text}, nil
}

// BinaryValue builds a binary value typed by the schema definition of
// field n.
func (c *Codec) BinaryValue(n int, raw []byte) (Value, error) {
	spec, ok := c.schema.Spec(n)
	if !ok {
		return Value{}, FieldError{Field: n, Err: ErrUnknownField}
	}
	if spec.Type.Kind() != KindBinary {
		return Value{}, FieldError{Field: n, Err: fmt.Errorf("%w: %s is not binary", ErrInvalidValue, spec.Type)}
	}
	if spec.Type.Fixed() && len(raw) > spec.Length {
		return Value{}, FieldError{Field: n, Err: ErrValueTooLong}
	}
	return Value{Type: spec.Type, Length: spec.Length, raw: cloneBytes(raw)}, nil
}
