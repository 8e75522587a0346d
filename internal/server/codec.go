package server

import "github.com/danmuck/titpd/internal/protocol/iso8583"

// Codec is the message encoding the server depends on.
type Codec interface {
	Decode(b []byte) (*iso8583.Message, error)
	Encode(m *iso8583.Message) ([]byte, error)
	// NewResponse builds the response skeleton for req. A nil req asks for a
	// bare error response and may fail when the codec has none configured.
	NewResponse(req *iso8583.Message) (*iso8583.Message, error)
}

var _ Codec = (*iso8583.Codec)(nil)
