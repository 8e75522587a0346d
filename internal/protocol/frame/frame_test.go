package frame

import (
	"bytes"
	"errors"
	"math/rand"
	"testing"
)

func TestReadWriteFrameRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for _, n := range []int{1, 2, 5, 255, 256, 4096, MaxPayloadLen} {
		payload := make([]byte, n)
		rng.Read(payload)

		var buf bytes.Buffer
		if err := WriteFrame(&buf, payload); err != nil {
			t.Fatalf("write frame len=%d: %v", n, err)
		}
		if buf.Len() != n+PrefixLen {
			t.Fatalf("unexpected encoded size: got=%d want=%d", buf.Len(), n+PrefixLen)
		}
		out, err := ReadFrame(&buf, DefaultLimits())
		if err != nil {
			t.Fatalf("read frame len=%d: %v", n, err)
		}
		if !bytes.Equal(out, payload) {
			t.Fatalf("payload mismatch for len=%d", n)
		}
	}
}

func TestEncodeFramePrefixIsBigEndian(t *testing.T) {
	out, err := EncodeFrame(make([]byte, 0x0102))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if out[0] != 0x01 || out[1] != 0x02 {
		t.Fatalf("unexpected prefix: % x", out[:2])
	}
}

func TestEmptyPayloadEncodesButIsRejectedOnRead(t *testing.T) {
	out, err := EncodeFrame(nil)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !bytes.Equal(out, []byte{0, 0}) {
		t.Fatalf("unexpected empty frame: % x", out)
	}
	_, err = ReadFrame(bytes.NewReader(out), DefaultLimits())
	if !errors.Is(err, ErrEmptyFrame) {
		t.Fatalf("expected ErrEmptyFrame, got %v", err)
	}
}

func TestEncodeFrameTooLarge(t *testing.T) {
	_, err := EncodeFrame(make([]byte, MaxPayloadLen+1))
	if !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("expected ErrFrameTooLarge, got %v", err)
	}
}

func TestReadFrameCleanEOFIsClosed(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader(nil), DefaultLimits())
	if !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestReadFrameShortPrefix(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader([]byte{0x00}), DefaultLimits())
	if !errors.Is(err, ErrShortHeader) {
		t.Fatalf("expected ErrShortHeader, got %v", err)
	}
}

func TestReadFrameTruncatedPayload(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader([]byte{0x00, 0x05, 'a', 'b'}), DefaultLimits())
	if !errors.Is(err, ErrShortFrame) {
		t.Fatalf("expected ErrShortFrame, got %v", err)
	}
}

func TestReadFrameRespectsLimit(t *testing.T) {
	in := []byte{0x00, 0x10}
	in = append(in, make([]byte, 16)...)
	_, err := ReadFrame(bytes.NewReader(in), Limits{MaxPayloadBytes: 8})
	if !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("expected ErrFrameTooLarge, got %v", err)
	}
}

func TestStripLegacyHeader(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{name: "digits stripped", in: "02020ISO", want: "ISO"},
		{name: "letters untouched", in: "ABCDEISO", want: "ABCDEISO"},
		{name: "partial digits untouched", in: "0202XISO", want: "0202XISO"},
		{name: "short untouched", in: "0202", want: "0202"},
		{name: "header only", in: "12345", want: ""},
	}
	for _, tc := range cases {
		got := StripLegacyHeader([]byte(tc.in))
		if string(got) != tc.want {
			t.Fatalf("%s: got %q want %q", tc.name, got, tc.want)
		}
	}
}
