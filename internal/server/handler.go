package server

import (
	"errors"
	"fmt"
	"time"

	"github.com/danmuck/titpd/internal/observability"
	"github.com/danmuck/titpd/internal/processor"
	"github.com/danmuck/titpd/internal/protocol/frame"
	"github.com/danmuck/titpd/internal/protocol/iso8583"
	"github.com/rs/zerolog/log"
)

var (
	ErrDecode   = errors.New("server: message decode failed")
	ErrRejected = errors.New("server: message not approved")
	ErrResponse = errors.New("server: response build failed")
)

// Outcome is what the worker needs to act on one frame. When OK is false
// the worker sends Response (if any) and closes the connection.
type Outcome struct {
	OK       bool
	Request  *iso8583.Message
	Response *iso8583.Message
	Result   processor.Result
	Err      error
}

// Handler runs one frame payload through decode, routing and response
// assembly. It is shared by every connection and holds no per-call state.
type Handler struct {
	codec    Codec
	registry *processor.Registry
}

func NewHandler(codec Codec, registry *processor.Registry) *Handler {
	return &Handler{codec: codec, registry: registry}
}

func (h *Handler) Handle(payload []byte, id uint64) Outcome {
	start := time.Now()
	req, err := h.codec.Decode(frame.StripLegacyHeader(payload))
	if err != nil {
		res := processor.Failure("Message decode failed")
		out := Outcome{Result: res, Err: fmt.Errorf("%w: %w", ErrDecode, err)}
		if skeleton, err := h.codec.NewResponse(nil); err == nil {
			out.Response = skeleton
			stampCode(skeleton, res.Code)
		}
		observability.RecordMessage("unknown", res.Code.String(), time.Since(start))
		return out
	}
	log.Debug().Uint64("message_id", id).Object("message", req).Msg("message_received")

	res := h.Route(req)
	out := Outcome{OK: res.Success, Request: req, Result: res}
	resp, err := h.BuildResponse(req, res)
	if err != nil {
		out.OK = false
		out.Err = fmt.Errorf("%w: %w", ErrResponse, err)
		observability.RecordMessage(req.MTI(), processor.CodeError.String(), time.Since(start))
		return out
	}
	out.Response = resp
	if !res.Success {
		out.Err = fmt.Errorf("%w: %s", ErrRejected, res.Message)
	}
	observability.RecordMessage(req.MTI(), res.Code.String(), time.Since(start))
	return out
}

// Route runs the processor registered for msg's type. Unregistered types
// succeed without any business logic.
func (h *Handler) Route(msg *iso8583.Message) processor.Result {
	p, ok := h.registry.Lookup(msg.Type)
	if !ok {
		log.Debug().Str("mti", msg.MTI()).Msg("default_processing")
		return processor.Success("Default processing")
	}
	return processor.Run(p, msg)
}

// BuildResponse returns the processor's override response unchanged, or the
// codec skeleton for msg with field 39 set to the result code.
func (h *Handler) BuildResponse(msg *iso8583.Message, res processor.Result) (*iso8583.Message, error) {
	if res.Response != nil {
		return res.Response, nil
	}
	resp, err := h.codec.NewResponse(msg)
	if err != nil {
		return nil, err
	}
	stampCode(resp, res.Code)
	return resp, nil
}

func stampCode(m *iso8583.Message, code processor.Code) {
	_ = m.Set(39, iso8583.Alpha(code.String(), 2))
}
