package processor

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateType = errors.New("processor: duplicate message type")
	ErrNilProcessor  = errors.New("processor: processor is nil")
)

// ValidationError names the field that failed a processor's request checks.
// Field is 0 when the failure is not tied to a single field.
type ValidationError struct {
	MTI    uint16
	Field  int
	Reason string
}

func (e ValidationError) Error() string {
	if e.Field == 0 {
		return fmt.Sprintf("validation failed for %04X: %s", e.MTI, e.Reason)
	}
	return fmt.Sprintf("validation failed for %04X field %d: %s", e.MTI, e.Field, e.Reason)
}
