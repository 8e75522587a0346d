package processor

import (
	"fmt"
	"time"

	"github.com/danmuck/titpd/internal/protocol/iso8583"
	"github.com/rs/zerolog/log"
)

// Processor handles one message type.
type Processor interface {
	MessageType() uint16
	Validate(req *iso8583.Message) error
	Process(req *iso8583.Message) Result
}

// ResponseBuilder is the slice of the codec processors need to assemble
// responses.
type ResponseBuilder interface {
	NewResponse(req *iso8583.Message) (*iso8583.Message, error)
	Value(n int, text string) (iso8583.Value, error)
	BinaryValue(n int, raw []byte) (iso8583.Value, error)
}

// Base carries the message type and name and supplies the default
// validation. Concrete processors embed it.
type Base struct {
	Type  uint16
	Label string
}

func (b Base) MessageType() uint16 {
	return b.Type
}

func (b Base) Name() string {
	return b.Label
}

// Validate accepts any message with a positive type.
func (b Base) Validate(req *iso8583.Message) error {
	if req == nil || req.Type == 0 {
		return ValidationError{MTI: b.Type, Reason: "missing message type"}
	}
	return nil
}

// Stage is a step of the processing template.
type Stage string

const (
	StageReceived   Stage = "received"
	StageValidating Stage = "validating"
	StageProcessing Stage = "processing"
	StageDone       Stage = "done"
	StageFailed     Stage = "failed"
)

// Run drives p through validate and process. Validation failure skips
// business logic. Panics in either stage are converted to an ERROR result.
func Run(p Processor, req *iso8583.Message) (res Result) {
	start := time.Now()
	stage := StageReceived
	defer func() {
		if r := recover(); r != nil {
			res = Failure(fmt.Sprintf("Processing error: %v", r))
			log.Error().
				Str("stage", string(stage)).
				Interface("panic", r).
				Msg("processor_panic")
			stage = StageFailed
		}
		evt := log.Debug()
		if !res.Success {
			evt = log.Warn()
		}
		evt.Str("mti", fmt.Sprintf("%04X", p.MessageType())).
			Str("stage", string(stage)).
			Bool("success", res.Success).
			Str("code", res.Code.String()).
			Str("result", res.Message).
			Dur("elapsed", time.Since(start)).
			Msg("processor_result")
	}()

	stage = StageValidating
	if err := p.Validate(req); err != nil {
		stage = StageFailed
		log.Warn().Err(err).Msg("processor_validation_failed")
		return Failure("Request validation failed")
	}

	stage = StageProcessing
	res = p.Process(req)
	if res.Success {
		stage = StageDone
	} else {
		stage = StageFailed
	}
	return res
}

// respond builds the default response skeleton for req and stamps the
// given fields onto it.
func respond(b ResponseBuilder, req *iso8583.Message, fields map[int]string) (*iso8583.Message, error) {
	resp, err := b.NewResponse(req)
	if err != nil {
		return nil, err
	}
	for n, text := range fields {
		v, err := b.Value(n, text)
		if err != nil {
			return nil, err
		}
		if err := resp.Set(n, v); err != nil {
			return nil, err
		}
	}
	return resp, nil
}

func requireFields(mti uint16, req *iso8583.Message, fields ...int) error {
	for _, n := range fields {
		if !req.Has(n) {
			return ValidationError{MTI: mti, Field: n, Reason: "required field missing"}
		}
	}
	return nil
}

func checkPAN(mti uint16, req *iso8583.Message) error {
	pan := req.Text(2)
	if len(pan) < 13 || len(pan) > 19 {
		return ValidationError{MTI: mti, Field: 2, Reason: fmt.Sprintf("PAN length %d outside 13-19", len(pan))}
	}
	return nil
}
