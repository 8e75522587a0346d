package server

import (
	"bufio"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/danmuck/titpd/internal/observability"
	"github.com/danmuck/titpd/internal/protocol/frame"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// conn is one client session: frames are read, handled and answered
// strictly in order.
type conn struct {
	srv       *Server
	nc        net.Conn
	reader    *bufio.Reader
	sender    *Sender
	logger    zerolog.Logger
	closeOnce sync.Once
}

func newConn(srv *Server, nc net.Conn) *conn {
	logger := log.With().
		Str("session", uuid.NewString()).
		Str("remote", nc.RemoteAddr().String()).
		Logger()
	return &conn{
		srv:    srv,
		nc:     nc,
		reader: bufio.NewReader(nc),
		sender: NewSender(nc, srv.codec, srv.cfg.WriteTimeout, logger),
		logger: logger,
	}
}

func (c *conn) serve() {
	active := c.srv.active.Add(1)
	observability.SessionOpened()
	c.logger.Info().Int64("active_sessions", active).Msg("session_opened")
	defer func() {
		remaining := c.srv.active.Add(-1)
		observability.SessionClosed()
		c.close()
		c.logger.Info().Int64("active_sessions", remaining).Msg("session_closed")
	}()

	limits := frame.Limits{MaxPayloadBytes: c.srv.cfg.MaxFrame}
	for {
		if c.srv.cfg.SessionTimeout > 0 {
			_ = c.nc.SetReadDeadline(time.Now().Add(c.srv.cfg.SessionTimeout))
		}
		payload, err := frame.ReadFrame(c.reader, limits)
		if err != nil {
			c.logReadError(err)
			return
		}
		observability.RecordFrame("in", true)

		id := c.srv.counter.Add(1)
		out := c.srv.handler.Handle(payload, id)
		if out.OK {
			if err := c.sender.Send(out.Response); err != nil {
				c.logger.Warn().Uint64("message_id", id).Err(err).Msg("response_send_failed")
				return
			}
			continue
		}

		c.logger.Warn().
			Uint64("message_id", id).
			Str("code", out.Result.Code.String()).
			Str("result", out.Result.Message).
			Bool("responding", out.Response != nil).
			Err(out.Err).
			Msg("message_failed")
		c.sender.SendError(out.Response)
		return
	}
}

func (c *conn) logReadError(err error) {
	var netErr net.Error
	switch {
	case errors.Is(err, frame.ErrClosed):
		c.logger.Info().Msg("client_disconnected")
	case errors.As(err, &netErr) && netErr.Timeout():
		c.logger.Info().Dur("timeout", c.srv.cfg.SessionTimeout).Msg("session_timeout")
	case errors.Is(err, net.ErrClosed):
		c.logger.Debug().Msg("connection_closed_locally")
	default:
		observability.RecordFrame("in", false)
		c.logger.Warn().Err(err).Msg("frame_error")
	}
}

// close shuts the read side, then the socket. Safe to call more than once.
func (c *conn) close() {
	c.closeOnce.Do(func() {
		if cr, ok := c.nc.(interface{ CloseRead() error }); ok {
			if err := cr.CloseRead(); err != nil {
				c.logger.Debug().Err(err).Msg("close_read_failed")
			}
		}
		if err := c.nc.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("close_failed")
		}
	})
}
