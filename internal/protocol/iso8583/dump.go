package iso8583

import (
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// MaskPAN keeps the first six and last four digits of a card number.
func MaskPAN(pan string) string {
	if len(pan) <= 10 {
		return strings.Repeat("*", len(pan))
	}
	return pan[:6] + strings.Repeat("*", len(pan)-10) + pan[len(pan)-4:]
}

// MarshalZerologObject logs the type and every present field. Field 2 and
// track data are masked.
func (m *Message) MarshalZerologObject(e *zerolog.Event) {
	e.Str("mti", m.MTI())
	fields := zerolog.Dict()
	for _, n := range m.Numbers() {
		v := m.fields[n]
		text := v.String()
		switch n {
		case 2:
			text = MaskPAN(text)
		case 35:
			text = strings.Repeat("*", len(text))
		}
		fields.Str(strconv.Itoa(n), text)
	}
	e.Dict("fields", fields)
}
