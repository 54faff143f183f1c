package msr

import (
	"errors"
	"fmt"
)

// Sentinel kinds for API errors.
var (
	ErrAuthExpired  = errors.New("authentication expired")
	ErrRateLimited  = errors.New("rate limited")
	ErrTransient    = errors.New("transient failure")
	ErrClientError  = errors.New("client error")
	ErrServerError  = errors.New("server error")
	ErrMissingInput = errors.New("missing input")
)

// Kind classifies an API failure.
type Kind string

// API failure kinds.
const (
	KindAuthExpired Kind = "AuthExpired"
	KindRateLimited Kind = "RateLimited"
	KindTransient   Kind = "Transient"
	KindClientError Kind = "ClientError"
	KindServerError Kind = "ServerError"
)

var kindSentinels = map[Kind]error{ //nolint:gochecknoglobals // static lookup
	KindAuthExpired: ErrAuthExpired,
	KindRateLimited: ErrRateLimited,
	KindTransient:   ErrTransient,
	KindClientError: ErrClientError,
	KindServerError: ErrServerError,
}

// Error is a failed API call.
type Error struct {
	Kind     Kind
	Status   int // HTTP status, 0 when no response was received
	Resource string
	Message  string
	Err      error // underlying cause, if any
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("msr %s: %v", e.Resource, kindSentinels[e.Kind])
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	errs := []error{kindSentinels[e.Kind]}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// metricKind is the label used for api_errors_total.
func (e *Error) metricKind() string {
	switch e.Kind {
	case KindAuthExpired:
		return "auth_expired"
	case KindRateLimited:
		return "rate_limit"
	case KindTransient:
		return "transient"
	case KindServerError:
		return "server_error"
	default:
		return "client_error"
	}
}
