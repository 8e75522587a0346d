package processor

import (
	"github.com/danmuck/titpd/internal/protocol/iso8583"
	"github.com/rs/zerolog/log"
)

const TypeNetworkManagement uint16 = 0x0800

// Network management sub-functions, the first two digits of field 3.
const (
	NetSignOn      = "01"
	NetSignOff     = "02"
	NetCutover     = "20"
	NetCutoverDone = "21"
	NetEcho        = "30"
	NetKeyExchange = "92"
)

// workingKeyBlock is the simulated key download returned in field 62.
func workingKeyBlock() []byte {
	return append([]byte{0x00, 0x10}, make([]byte, 16)...)
}

// NetworkManagement answers 0800 sign-on, sign-off, echo, cutover and key
// exchange. It never declines a valid request.
type NetworkManagement struct {
	Base
	codec ResponseBuilder
}

func NewNetworkManagement(codec ResponseBuilder) *NetworkManagement {
	return &NetworkManagement{
		Base:  Base{Type: TypeNetworkManagement, Label: "network_management"},
		codec: codec,
	}
}

func (n *NetworkManagement) Validate(req *iso8583.Message) error {
	if err := n.Base.Validate(req); err != nil {
		return err
	}
	if err := requireFields(n.Type, req, 3); err != nil {
		return err
	}
	if len(req.Text(3)) < 2 {
		return ValidationError{MTI: n.Type, Field: 3, Reason: "network function code too short"}
	}
	return nil
}

func (n *NetworkManagement) Process(req *iso8583.Message) Result {
	function := req.Text(3)[:2]
	evt := log.Info().Str("function", function)
	if req.Has(11) {
		evt = evt.Str("stan", req.Text(11))
	}

	resp, err := respond(n.codec, req, map[int]string{39: CodeSuccess.String()})
	if err != nil {
		return Failure("Processing error: " + err.Error())
	}

	switch function {
	case NetKeyExchange:
		v, err := n.codec.BinaryValue(62, workingKeyBlock())
		if err != nil {
			return Failure("Processing error: " + err.Error())
		}
		if err := resp.Set(62, v); err != nil {
			return Failure("Processing error: " + err.Error())
		}
		evt.Msg("network_key_exchange")
	case NetSignOn:
		evt.Msg("network_sign_on")
	case NetSignOff:
		evt.Msg("network_sign_off")
	case NetEcho:
		evt.Msg("network_echo")
	case NetCutover, NetCutoverDone:
		evt.Msg("network_cutover")
	default:
		evt.Msg("network_unknown_function")
	}
	return Success("Network management processed").WithResponse(resp)
}
