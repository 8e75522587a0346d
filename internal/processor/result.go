package processor

import "github.com/danmuck/titpd/internal/protocol/iso8583"

// Code is the two-character response code written to field 39.
type Code string

const (
	CodeSuccess Code = "00"
	CodeError   Code = "06"
)

func (c Code) String() string {
	return string(c)
}

// Result is the outcome of one processor run. Response, when set, is sent
// as-is instead of the default coded skeleton.
type Result struct {
	Success  bool
	Code     Code
	Message  string
	Response *iso8583.Message
}

func Success(msg string) Result {
	return Result{Success: true, Code: CodeSuccess, Message: msg}
}

func Failure(msg string) Result {
	return Result{Success: false, Code: CodeError, Message: msg}
}

// WithResponse returns a copy of r carrying the override response.
func (r Result) WithResponse(resp *iso8583.Message) Result {
	r.Response = resp
	return r
}
