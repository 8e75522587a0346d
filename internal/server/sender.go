package server

import (
	"bufio"
	"net"
	"time"

	"github.com/danmuck/titpd/internal/observability"
	"github.com/danmuck/titpd/internal/protocol/frame"
	"github.com/danmuck/titpd/internal/protocol/iso8583"
	"github.com/rs/zerolog"
)

// Sender frames and writes responses on one connection.
type Sender struct {
	conn         net.Conn
	w            *bufio.Writer
	codec        Codec
	writeTimeout time.Duration
	logger       zerolog.Logger
}

func NewSender(conn net.Conn, codec Codec, writeTimeout time.Duration, logger zerolog.Logger) *Sender {
	return &Sender{
		conn:         conn,
		w:            bufio.NewWriterSize(conn, frame.PrefixLen+frame.MaxPayloadLen),
		codec:        codec,
		writeTimeout: writeTimeout,
		logger:       logger,
	}
}

// Send encodes msg, prefixes its length and writes the frame in one call.
// Any error leaves the connection unusable.
func (s *Sender) Send(msg *iso8583.Message) error {
	payload, err := s.codec.Encode(msg)
	if err != nil {
		observability.RecordFrame("out", false)
		return err
	}
	encoded, err := frame.EncodeFrame(payload)
	if err != nil {
		observability.RecordFrame("out", false)
		return err
	}
	if s.writeTimeout > 0 {
		_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	}
	if _, err := s.w.Write(encoded); err != nil {
		observability.RecordFrame("out", false)
		return err
	}
	if err := s.w.Flush(); err != nil {
		observability.RecordFrame("out", false)
		return err
	}
	observability.RecordFrame("out", true)
	s.logger.Debug().Object("message", msg).Int("bytes", len(encoded)).Msg("message_sent")
	return nil
}

// SendError makes a best-effort attempt to send msg, then always closes the
// write side of the connection.
func (s *Sender) SendError(msg *iso8583.Message) {
	if msg != nil {
		if err := s.Send(msg); err != nil {
			s.logger.Warn().Err(err).Msg("error_response_send_failed")
		}
	}
	s.closeWrite()
}

func (s *Sender) closeWrite() {
	var err error
	if cw, ok := s.conn.(interface{ CloseWrite() error }); ok {
		err = cw.CloseWrite()
	} else {
		err = s.conn.Close()
	}
	if err != nil {
		s.logger.Debug().Err(err).Msg("close_write_failed")
	}
}
