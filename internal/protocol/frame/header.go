package frame

// LegacyHeaderLen is the size of the optional ASCII routing header some
// terminals put in front of the ISO message (for example "02020").
const LegacyHeaderLen = 5

// StripLegacyHeader drops a leading 5-digit ASCII header. The payload is
// returned untouched unless all five leading bytes are decimal digits.
func StripLegacyHeader(payload []byte) []byte {
	if !HasLegacyHeader(payload) {
		return payload
	}
	return payload[LegacyHeaderLen:]
}

func HasLegacyHeader(payload []byte) bool {
	if len(payload) < LegacyHeaderLen {
		return false
	}
	for _, c := range payload[:LegacyHeaderLen] {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
