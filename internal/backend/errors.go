package backend

import (
	"errors"
	"fmt"
)

var (
	// Sentinel errors for errors.Is checks at the boundary.
	ErrTimeout     = errors.New("backend: request timed out")
	ErrUnavailable = errors.New("backend: host unreachable or transport failure")
	ErrStatus      = errors.New("backend: error status")
	ErrBadResponse = errors.New("backend: invalid response format")
)

// Transport codes carried in APIError.Code.
const (
	CodeTimeout      = "timeout"
	CodeConnAborted  = "ECONNABORTED"
	CodeCanceled     = "canceled"
	CodeNetwork      = "network"
	CodeDecodeFailed = "decode_failed"
)

// APIError wraps a sentinel with the details the response classifier needs:
// the HTTP status, a transport code and the raw body.
type APIError struct {
	Sentinel  error
	Operation string
	Status    int
	Code      string
	Body      []byte
	Err       error
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Operation, e.Sentinel)
	if e.Status > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if len(e.Body) > 0 {
		body := e.Body
		if len(body) > 256 {
			body = body[:256]
		}
		msg = fmt.Sprintf("%s: %s", msg, body)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *APIError) Unwrap() []error {
	errs := []error{e.Sentinel}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}
