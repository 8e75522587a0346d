package processor

import (
	"github.com/danmuck/titpd/internal/protocol/iso8583"
	"github.com/rs/zerolog/log"
)

const (
	TypeAuthorization  uint16 = 0x0100
	AuthorizationLimit int64  = 10000
)

// Authorization approves 0100 requests whose amount is within the limit.
type Authorization struct {
	Base
	codec ResponseBuilder
	limit int64
}

func NewAuthorization(codec ResponseBuilder) *Authorization {
	return &Authorization{
		Base:  Base{Type: TypeAuthorization, Label: "authorization"},
		codec: codec,
		limit: AuthorizationLimit,
	}
}

func (a *Authorization) Validate(req *iso8583.Message) error {
	if err := a.Base.Validate(req); err != nil {
		return err
	}
	if err := requireFields(a.Type, req, 2, 3, 4); err != nil {
		return err
	}
	if err := checkPAN(a.Type, req); err != nil {
		return err
	}
	if n := len(req.Text(3)); n != 6 {
		return ValidationError{MTI: a.Type, Field: 3, Reason: "processing code must be 6 digits"}
	}
	return nil
}

func (a *Authorization) Process(req *iso8583.Message) Result {
	amount, _ := req.Field(4)
	value, err := amount.Int()
	if err != nil || value > a.limit {
		log.Info().
			Str("pan", iso8583.MaskPAN(req.Text(2))).
			Str("amount", amount.Text()).
			Msg("authorization_declined")
		return Failure("Authorization declined")
	}

	// The skeleton already carries 2, 3, 4, 11, 41 and 42 from the request.
	resp, err := respond(a.codec, req, map[int]string{
		38: "AUTH",
		39: CodeSuccess.String(),
		44: "APPROVED",
	})
	if err != nil {
		return Failure("Processing error: " + err.Error())
	}
	log.Info().
		Str("pan", iso8583.MaskPAN(req.Text(2))).
		Int64("amount", value).
		Msg("authorization_approved")
	return Success("Authorization approved").WithResponse(resp)
}
