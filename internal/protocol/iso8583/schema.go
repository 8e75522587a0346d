package iso8583

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// tertiaryBitmapField is the presence bit of a third bitmap and cannot carry
// data on the wire.
const tertiaryBitmapField = 65

// FieldSpec declares how one field number is laid out on the wire.
type FieldSpec struct {
	Type   FieldType
	Length int
}

// Schema is the field layout shared by every message type, plus optional
// per-type ISO headers.
type Schema struct {
	Fields map[int]FieldSpec
	// Headers maps an MTI to the ISO header written in front of it. With the
	// binary-header option the string is hex, otherwise it is sent as ASCII.
	Headers map[uint16]string
	// ParseHeaderLen is the number of header bytes skipped before the MTI.
	ParseHeaderLen int
	// ErrorResponseType, when non-zero, is the MTI used for a coded error
	// response to a request that could not be decoded.
	ErrorResponseType uint16
}

func (s *Schema) Spec(n int) (FieldSpec, bool) {
	spec, ok := s.Fields[n]
	return spec, ok
}

// normalize fills the implied length of AMOUNT, DATE10 and TIME fields.
func (s *Schema) normalize() {
	for n, spec := range s.Fields {
		if l := spec.Type.impliedLength(); l > 0 {
			spec.Length = l
			s.Fields[n] = spec
		}
	}
}

func (s *Schema) Validate() error {
	if s.ParseHeaderLen < 0 {
		return fmt.Errorf("%w: negative parse_header_length", ErrInvalidSchema)
	}
	for n, spec := range s.Fields {
		if n < MinField || n > MaxField {
			return fmt.Errorf("%w: field number %d", ErrInvalidSchema, n)
		}
		if n == tertiaryBitmapField {
			return fmt.Errorf("%w: field %d is the tertiary bitmap indicator", ErrInvalidSchema, n)
		}
		if _, ok := typeNames[spec.Type]; !ok {
			return fmt.Errorf("%w: field %d has unknown type", ErrInvalidSchema, n)
		}
		if spec.Type.Fixed() && spec.Length <= 0 {
			return fmt.Errorf("%w: field %d %s needs a length", ErrInvalidSchema, n, spec.Type)
		}
	}
	return nil
}

// Numbers lists defined field numbers in ascending order.
func (s *Schema) Numbers() []int {
	out := make([]int, 0, len(s.Fields))
	for n := range s.Fields {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

// DefaultSchema is the built-in field layout used when no schema file is
// configured.
func DefaultSchema() *Schema {
	return &Schema{
		Fields: map[int]FieldSpec{
			2:   {Type: TypeLLNum},
			3:   {Type: TypeNumeric, Length: 6},
			4:   {Type: TypeAmount, Length: 12},
			7:   {Type: TypeDate10, Length: 10},
			11:  {Type: TypeNumeric, Length: 6},
			12:  {Type: TypeTime, Length: 6},
			13:  {Type: TypeNumeric, Length: 4},
			14:  {Type: TypeNumeric, Length: 4},
			18:  {Type: TypeNumeric, Length: 4},
			22:  {Type: TypeNumeric, Length: 3},
			24:  {Type: TypeNumeric, Length: 3},
			25:  {Type: TypeNumeric, Length: 2},
			32:  {Type: TypeLLNum},
			35:  {Type: TypeLLVar},
			37:  {Type: TypeAlpha, Length: 12},
			38:  {Type: TypeAlpha, Length: 6},
			39:  {Type: TypeAlpha, Length: 2},
			41:  {Type: TypeAlpha, Length: 8},
			42:  {Type: TypeAlpha, Length: 15},
			43:  {Type: TypeAlpha, Length: 40},
			44:  {Type: TypeLLVar},
			48:  {Type: TypeLLLVar},
			49:  {Type: TypeAlpha, Length: 3},
			52:  {Type: TypeBinary, Length: 8},
			55:  {Type: TypeLLLBin},
			60:  {Type: TypeLLLVar},
			61:  {Type: TypeLLLVar},
			62:  {Type: TypeLLLBin},
			63:  {Type: TypeLLLVar},
			64:  {Type: TypeBinary, Length: 8},
			70:  {Type: TypeNumeric, Length: 3},
			90:  {Type: TypeNumeric, Length: 42},
			128: {Type: TypeBinary, Length: 8},
		},
		Headers: map[uint16]string{},
	}
}

type schemaFile struct {
	ParseHeaderLength int               `toml:"parse_header_length"`
	ErrorResponseType string            `toml:"error_response_type"`
	Headers           map[string]string `toml:"headers"`
	Fields            []schemaField     `toml:"fields"`
}

type schemaField struct {
	Number int    `toml:"number"`
	Type   string `toml:"type"`
	Length int    `toml:"length"`
}

// LoadSchema reads a TOML schema file. Fields declared in the file replace
// or extend the built-in layout.
func LoadSchema(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("schema load failed (%s): %w", path, err)
	}
	return ParseSchema(data)
}

func ParseSchema(data []byte) (*Schema, error) {
	var raw schemaFile
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("schema parse failed: %w", err)
	}

	s := DefaultSchema()
	s.ParseHeaderLen = raw.ParseHeaderLength
	if v := strings.TrimSpace(raw.ErrorResponseType); v != "" {
		mti, err := ParseMTI(v)
		if err != nil {
			return nil, fmt.Errorf("%w: error_response_type: %v", ErrInvalidSchema, err)
		}
		s.ErrorResponseType = mti
	}
	for k, header := range raw.Headers {
		mti, err := ParseMTI(k)
		if err != nil {
			return nil, fmt.Errorf("%w: headers.%s: %v", ErrInvalidSchema, k, err)
		}
		s.Headers[mti] = header
	}
	for i, f := range raw.Fields {
		t, err := ParseFieldType(f.Type)
		if err != nil {
			return nil, fmt.Errorf("fields[%d]: %w", i, err)
		}
		s.Fields[f.Number] = FieldSpec{Type: t, Length: f.Length}
	}
	s.normalize()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// ParseMTI reads a four hex digit message type such as "0200".
func ParseMTI(s string) (uint16, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if len(s) != 4 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidMTI, s)
	}
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidMTI, s)
	}
	return uint16(v), nil
}
