package iso8583

import (
	"errors"
	"fmt"
)

var (
	ErrTruncated     = errors.New("iso8583: truncated data")
	ErrMalformed     = errors.New("iso8583: malformed message data")
	ErrInvalidMTI    = errors.New("iso8583: invalid message type")
	ErrInvalidBitmap = errors.New("iso8583: invalid bitmap")
	ErrUnknownField  = errors.New("iso8583: field has no definition")
	ErrFieldRange    = errors.New("iso8583: field number out of range")
	ErrInvalidValue  = errors.New("iso8583: invalid field value")
	ErrValueTooLong  = errors.New("iso8583: value exceeds field length")
	ErrNoRequest     = errors.New("iso8583: cannot build response without request")
	ErrInvalidSchema = errors.New("iso8583: invalid schema")
)

// FieldError attaches the field number to a codec failure.
type FieldError struct {
	Field int
	Err   error
}

func (e FieldError) Error() string {
	return fmt.Sprintf("iso8583: field %d: %v", e.Field, e.Err)
}

func (e FieldError) Unwrap() error {
	return e.Err
}
