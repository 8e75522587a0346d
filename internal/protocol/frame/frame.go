package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// PrefixLen is the size of the big-endian length prefix.
const PrefixLen = 2

// MaxPayloadLen is the largest payload a 2-byte prefix can declare.
const MaxPayloadLen = 1<<16 - 1

var (
	ErrClosed        = errors.New("frame: peer closed connection")
	ErrShortHeader   = errors.New("frame: short length prefix")
	ErrEmptyFrame    = errors.New("frame: declared length is zero")
	ErrShortFrame    = errors.New("frame: payload shorter than declared length")
	ErrFrameTooLarge = errors.New("frame: payload too large")
)

// Limits constrains frame decode/encode memory use.
type Limits struct {
	MaxPayloadBytes int
}

func DefaultLimits() Limits {
	return Limits{MaxPayloadBytes: MaxPayloadLen}
}

func (l Limits) max() int {
	if l.MaxPayloadBytes <= 0 || l.MaxPayloadBytes > MaxPayloadLen {
		return MaxPayloadLen
	}
	return l.MaxPayloadBytes
}

// ReadFrame reads one length-prefixed payload. A clean EOF before any prefix
// byte is reported as ErrClosed; everything else that stops short of a full
// frame is a protocol violation.
func ReadFrame(r io.Reader, limits Limits) ([]byte, error) {
	var prefix [PrefixLen]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		switch {
		case errors.Is(err, io.EOF):
			return nil, ErrClosed
		case errors.Is(err, io.ErrUnexpectedEOF):
			return nil, ErrShortHeader
		}
		return nil, err
	}

	n := int(binary.BigEndian.Uint16(prefix[:]))
	if n == 0 {
		return nil, ErrEmptyFrame
	}
	if n > limits.max() {
		return nil, fmt.Errorf("%w: declared=%d max=%d", ErrFrameTooLarge, n, limits.max())
	}

	payload := make([]byte, n)
	read, err := io.ReadFull(r, payload)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: declared=%d read=%d", ErrShortFrame, n, read)
		}
		return nil, err
	}
	return payload, nil
}

// EncodeFrame returns payload prefixed with its 2-byte big-endian length.
func EncodeFrame(payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadLen {
		return nil, fmt.Errorf("%w: len=%d", ErrFrameTooLarge, len(payload))
	}
	buf := make([]byte, PrefixLen+len(payload))
	binary.BigEndian.PutUint16(buf[0:PrefixLen], uint16(len(payload)))
	copy(buf[PrefixLen:], payload)
	return buf, nil
}

// WriteFrame writes prefix and payload with a single Write call.
func WriteFrame(w io.Writer, payload []byte) error {
	buf, err := EncodeFrame(payload)
	if err != nil {
		return err
	}
	_, err = w.Write(buf)
	return err
}
