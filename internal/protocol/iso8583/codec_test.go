package iso8583

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
)

func fieldMap(m *Message) map[int]string {
	out := make(map[int]string)
	for _, n := range m.Numbers() {
		v, _ := m.Field(n)
		out[n] = v.String()
	}
	return out
}

func mustCodec(t *testing.T, schema *Schema, opts Options) *Codec {
	t.Helper()
	c, err := NewCodec(schema, opts)
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	return c
}

func mustValue(t *testing.T, c *Codec, n int, text string) Value {
	t.Helper()
	v, err := c.Value(n, text)
	if err != nil {
		t.Fatalf("value %d: %v", n, err)
	}
	return v
}

func sampleRequest(t *testing.T, c *Codec) *Message {
	t.Helper()
	m := NewMessage(0x0200)
	for n, text := range map[int]string{
		2:  "4111111111111111",
		3:  "000000",
		4:  "000000005000",
		11: "000123",
		32: "12345",
		41: "TERM0001",
		42: "MERCHANT0000001",
		44: "note",
		55: "9F0206000000005000",
	} {
		if err := m.Set(n, mustValue(t, c, n, text)); err != nil {
			t.Fatalf("set %d: %v", n, err)
		}
	}
	return m
}

func TestCodecRoundTripBinaryAndASCII(t *testing.T) {
	cases := map[string]Options{
		"binary": {BinaryHeader: true, BinaryBitmap: true, BinaryFields: true},
		"ascii":  {},
		"mixed":  {BinaryHeader: false, BinaryBitmap: true, BinaryFields: false},
	}
	for name, opts := range cases {
		t.Run(name, func(t *testing.T) {
			c := mustCodec(t, DefaultSchema(), opts)
			in := sampleRequest(t, c)

			wire, err := c.Encode(in)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			out, err := c.Decode(wire)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if out.Type != in.Type {
				t.Fatalf("type: got %s want %s", out.MTI(), in.MTI())
			}
			if diff := cmp.Diff(fieldMap(in), fieldMap(out)); diff != "" {
				t.Fatalf("fields mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEncodeBinaryLayout(t *testing.T) {
	c := mustCodec(t, DefaultSchema(), Options{BinaryHeader: true, BinaryBitmap: true, BinaryFields: true})
	m := NewMessage(0x0800)
	_ = m.Set(3, mustValue(t, c, 3, "920000"))
	_ = m.Set(11, mustValue(t, c, 11, "1"))

	got, err := c.Encode(m)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := []byte{
		0x08, 0x00,
		0x20, 0x20, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		0x92, 0x00, 0x00,
		0x00, 0x00, 0x01,
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("wire mismatch:\n got % X\nwant % X", got, want)
	}
}

func TestEncodeASCIILayout(t *testing.T) {
	c := mustCodec(t, DefaultSchema(), Options{})
	m := NewMessage(0x0800)
	_ = m.Set(3, mustValue(t, c, 3, "920000"))
	_ = m.Set(11, mustValue(t, c, 11, "1"))
	_ = m.Set(39, mustValue(t, c, 39, "0"))

	got, err := c.Encode(m)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := "0800" + "2020000002000000" + "920000" + "000001" + "0 "
	if string(got) != want {
		t.Fatalf("wire mismatch: got %q want %q", got, want)
	}
}

func TestLLNumOddLengthPacksWithLeadingNibble(t *testing.T) {
	c := mustCodec(t, DefaultSchema(), DefaultOptions())
	m := NewMessage(0x0200)
	_ = m.Set(32, mustValue(t, c, 32, "12345"))

	wire, err := c.Encode(m)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	tail := wire[len(wire)-4:]
	if !bytes.Equal(tail, []byte{0x05, 0x01, 0x23, 0x45}) {
		t.Fatalf("unexpected LLNUM bytes % X", tail)
	}
	out, err := c.Decode(wire)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := out.Text(32); got != "12345" {
		t.Fatalf("field 32: got %q", got)
	}
}

func TestSecondaryBitmap(t *testing.T) {
	c := mustCodec(t, DefaultSchema(), DefaultOptions())
	m := NewMessage(0x0800)
	_ = m.Set(11, mustValue(t, c, 11, "000007"))
	_ = m.Set(70, mustValue(t, c, 70, "301"))

	wire, err := c.Encode(m)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if wire[2]&0x80 == 0 {
		t.Fatalf("secondary bitmap indicator not set: % X", wire[:18])
	}
	out, err := c.Decode(wire)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if diff := cmp.Diff(fieldMap(m), fieldMap(out)); diff != "" {
		t.Fatalf("fields mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeTruncatedIsMalformed(t *testing.T) {
	c := mustCodec(t, DefaultSchema(), DefaultOptions())
	wire, err := c.Encode(sampleRequest(t, c))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	for _, cut := range []int{1, 5, len(wire) - 1} {
		if _, err := c.Decode(wire[:cut]); !errors.Is(err, ErrMalformed) {
			t.Fatalf("cut=%d: expected ErrMalformed, got %v", cut, err)
		}
	}
	if _, err := c.Decode(nil); !errors.Is(err, ErrTruncated) {
		t.Fatalf("empty payload: expected ErrTruncated, got %v", err)
	}

	schema := DefaultSchema()
	schema.ParseHeaderLen = 4
	c = mustCodec(t, schema, DefaultOptions())
	if _, err := c.Decode([]byte{0x01, 0x02}); !errors.Is(err, ErrTruncated) {
		t.Fatalf("short header: expected ErrTruncated, got %v", err)
	}
}

func TestDecodeReportsFailingField(t *testing.T) {
	c := mustCodec(t, DefaultSchema(), Options{})
	wire := []byte("0200" + "2000000000000000" + "12A456")
	_, err := c.Decode(wire)
	var fe FieldError
	if !errors.As(err, &fe) || fe.Field != 3 {
		t.Fatalf("expected FieldError for field 3, got %v", err)
	}
	if !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("expected ErrInvalidValue, got %v", err)
	}
}

func TestEncodeRejectsHexMTIInBCD(t *testing.T) {
	c := mustCodec(t, DefaultSchema(), DefaultOptions())
	if _, err := c.Encode(NewMessage(0x0A00)); !errors.Is(err, ErrInvalidMTI) {
		t.Fatalf("expected ErrInvalidMTI, got %v", err)
	}
}

func TestDecodeUnknownField(t *testing.T) {
	c := mustCodec(t, DefaultSchema(), DefaultOptions())
	wire := []byte{0x02, 0x00, 0x08, 0, 0, 0, 0, 0, 0, 0, 0x01}
	_, err := c.Decode(wire)
	var fe FieldError
	if !errors.As(err, &fe) || fe.Field != 5 {
		t.Fatalf("expected FieldError for field 5, got %v", err)
	}
	if !errors.Is(err, ErrUnknownField) {
		t.Fatalf("expected ErrUnknownField, got %v", err)
	}
}

func TestDecodeInvalidASCIIMTI(t *testing.T) {
	c := mustCodec(t, DefaultSchema(), Options{})
	if _, err := c.Decode([]byte("02G00000000000000000")); !errors.Is(err, ErrInvalidMTI) {
		t.Fatalf("expected ErrInvalidMTI, got %v", err)
	}
}

func TestEncodeRejectsOversizedValue(t *testing.T) {
	c := mustCodec(t, DefaultSchema(), DefaultOptions())
	m := NewMessage(0x0200)
	_ = m.Set(3, Numeric("1234567", 6))
	if _, err := c.Encode(m); !errors.Is(err, ErrValueTooLong) {
		t.Fatalf("expected ErrValueTooLong, got %v", err)
	}
}

func TestNewResponseCopiesRequest(t *testing.T) {
	c := mustCodec(t, DefaultSchema(), DefaultOptions())
	req := sampleRequest(t, c)

	resp, err := c.NewResponse(req)
	if err != nil {
		t.Fatalf("new response: %v", err)
	}
	if resp.Type != 0x0210 {
		t.Fatalf("expected 0210, got %s", resp.MTI())
	}
	if diff := cmp.Diff(fieldMap(req), fieldMap(resp)); diff != "" {
		t.Fatalf("fields mismatch (-want +got):\n%s", diff)
	}
	_ = resp.Set(39, mustValue(t, c, 39, "00"))
	if req.Has(39) {
		t.Fatalf("response mutation leaked into request")
	}
}

func TestNewResponseWithoutRequest(t *testing.T) {
	c := mustCodec(t, DefaultSchema(), DefaultOptions())
	if _, err := c.NewResponse(nil); !errors.Is(err, ErrNoRequest) {
		t.Fatalf("expected ErrNoRequest, got %v", err)
	}

	schema := DefaultSchema()
	schema.ErrorResponseType = 0x0810
	c = mustCodec(t, schema, Options{BinaryHeader: true, BinaryBitmap: true, BinaryFields: true})
	resp, err := c.NewResponse(nil)
	if err != nil {
		t.Fatalf("new response: %v", err)
	}
	if resp.Type != 0x0810 || len(resp.Numbers()) != 0 {
		t.Fatalf("unexpected error response %s %v", resp.MTI(), resp.Numbers())
	}
}

func TestNewMessageAssignsDate(t *testing.T) {
	c := mustCodec(t, DefaultSchema(), DefaultOptions())
	c.now = func() time.Time { return time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC) }

	m := c.NewMessage(0x0800)
	if got := m.Text(7); got != "0304050607" {
		t.Fatalf("field 7: got %q", got)
	}

	c.opts.AssignDate = false
	if c.NewMessage(0x0800).Has(7) {
		t.Fatalf("field 7 set with AssignDate off")
	}
}

func TestHeadersWrittenAndSkipped(t *testing.T) {
	schema := DefaultSchema()
	schema.Headers[0x0210] = "ISO"
	schema.ParseHeaderLen = 3
	c := mustCodec(t, schema, Options{BinaryBitmap: true, BinaryFields: true})

	req := NewMessage(0x0200)
	req.Header = []byte("ABC")
	_ = req.Set(11, mustValue(t, c, 11, "000001"))
	resp, err := c.NewResponse(req)
	if err != nil {
		t.Fatalf("new response: %v", err)
	}
	wire, err := c.Encode(resp)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !strings.HasPrefix(string(wire), "ISO0210") {
		t.Fatalf("expected ISO header and ASCII MTI, got %q", wire[:7])
	}
	out, err := c.Decode(wire)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(out.Header) != "ISO" || out.Text(11) != "000001" {
		t.Fatalf("unexpected decode header=%q field11=%q", out.Header, out.Text(11))
	}
}

func TestNewCodecRejectsBadBinaryHeader(t *testing.T) {
	schema := DefaultSchema()
	schema.Headers[0x0210] = "not-hex"
	if _, err := NewCodec(schema, DefaultOptions()); !errors.Is(err, ErrInvalidSchema) {
		t.Fatalf("expected ErrInvalidSchema, got %v", err)
	}
}

func TestValueTypedBySchema(t *testing.T) {
	c := mustCodec(t, DefaultSchema(), DefaultOptions())

	if _, err := c.Value(4, "12a"); !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("expected ErrInvalidValue, got %v", err)
	}
	if _, err := c.Value(5, "1"); !errors.Is(err, ErrUnknownField) {
		t.Fatalf("expected ErrUnknownField, got %v", err)
	}
	v, err := c.BinaryValue(62, []byte{0x00, 0x10})
	if err != nil {
		t.Fatalf("binary value: %v", err)
	}
	if v.Type != TypeLLLBin || v.String() != "0010" {
		t.Fatalf("unexpected value %s %s", v.Type, v)
	}
	if _, err := c.BinaryValue(39, []byte{1}); !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("expected ErrInvalidValue for non-binary field, got %v", err)
	}
}

func TestLoadSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.toml")
	doc := `
parse_header_length = 2
error_response_type = "0810"

[headers]
"0210" = "4953"

[[fields]]
number = 100
type = "llvar"

[[fields]]
number = 39
type = "alpha"
length = 3

[[fields]]
number = 5
type = "amount"
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write schema: %v", err)
	}
	s, err := LoadSchema(path)
	if err != nil {
		t.Fatalf("load schema: %v", err)
	}
	if s.ParseHeaderLen != 2 || s.ErrorResponseType != 0x0810 {
		t.Fatalf("unexpected schema header settings: %+v", s)
	}
	if got := s.Headers[0x0210]; got != "4953" {
		t.Fatalf("header 0210: got %q", got)
	}
	if spec, _ := s.Spec(100); spec.Type != TypeLLVar {
		t.Fatalf("field 100: got %+v", spec)
	}
	if spec, _ := s.Spec(39); spec.Length != 3 {
		t.Fatalf("field 39 override: got %+v", spec)
	}
	if spec, _ := s.Spec(5); spec.Type != TypeAmount || spec.Length != 12 {
		t.Fatalf("field 5 implied length: got %+v", spec)
	}
	if _, ok := s.Spec(2); !ok {
		t.Fatalf("built-in field 2 missing after load")
	}
}

func TestParseSchemaErrors(t *testing.T) {
	cases := []string{
		"[[fields]]\nnumber = 7\ntype = \"weird\"\n",
		"[[fields]]\nnumber = 200\ntype = \"alpha\"\nlength = 2\n",
		"[[fields]]\nnumber = 7\ntype = \"numeric\"\n",
		"error_response_type = \"08\"\n",
		"[[fields]]\nnumber = 65\ntype = \"binary\"\nlength = 8\n",
	}
	for _, doc := range cases {
		if _, err := ParseSchema([]byte(doc)); !errors.Is(err, ErrInvalidSchema) && !errors.Is(err, ErrInvalidMTI) {
			t.Fatalf("expected schema error for %q, got %v", doc, err)
		}
	}
}

func TestMarshalZerologObjectMasksPAN(t *testing.T) {
	c := mustCodec(t, DefaultSchema(), DefaultOptions())
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	logger.Info().Object("message", sampleRequest(t, c)).Msg("dump")

	out := buf.String()
	if strings.Contains(out, "4111111111111111") {
		t.Fatalf("PAN leaked into log: %s", out)
	}
	if !strings.Contains(out, "411111******1111") || !strings.Contains(out, `"mti":"0200"`) {
		t.Fatalf("unexpected dump: %s", out)
	}
}
