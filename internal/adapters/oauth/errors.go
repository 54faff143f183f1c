package oauth

import (
	"errors"
	"fmt"
)

// Sentinel kinds for handshake failures.
var (
	ErrAuthorizationTimeout = errors.New("authorization timed out")
	ErrAuthorizationDenied  = errors.New("authorization denied")
	ErrSigningFailure       = errors.New("request signing failed")
	ErrStorage              = errors.New("token storage failed")
	ErrRequestToken         = errors.New("request token not obtained")
	ErrAccessToken          = errors.New("access token not obtained")
	ErrInterrupted          = errors.New("authorization interrupted")
	ErrCallbackUnavailable  = errors.New("callback port unavailable")
)

// Kind classifies a handshake failure.
type Kind string

// Failure kinds reported by the handshake.
const (
	KindAuthorizationTimeout Kind = "AuthorizationTimeout"
	KindAuthorizationDenied  Kind = "AuthorizationDenied"
	KindSigningFailure       Kind = "SigningFailure"
	KindStorageError         Kind = "StorageError"
	KindRequestTokenFailed   Kind = "RequestTokenFailed"
	KindAccessTokenFailed    Kind = "AccessTokenFailed"
	KindInterrupted          Kind = "Interrupted"
	KindCallbackUnavailable  Kind = "CallbackUnavailable"
)

var kindSentinels = map[Kind]error{ //nolint:gochecknoglobals // static lookup
	KindAuthorizationTimeout: ErrAuthorizationTimeout,
	KindAuthorizationDenied:  ErrAuthorizationDenied,
	KindSigningFailure:       ErrSigningFailure,
	KindStorageError:         ErrStorage,
	KindRequestTokenFailed:   ErrRequestToken,
	KindAccessTokenFailed:    ErrAccessToken,
	KindInterrupted:          ErrInterrupted,
	KindCallbackUnavailable:  ErrCallbackUnavailable,
}

// Error is a failed handshake. It matches both its kind sentinel and the
// underlying cause with errors.Is.
type Error struct {
	Kind  Kind
	State State // state in which the failure happened
	Err   error
}

func newError(kind Kind, state State, err error) *Error {
	return &Error{Kind: kind, State: state, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("oauth %s: %v", e.State, kindSentinels[e.Kind])
	}
	return fmt.Sprintf("oauth %s: %v: %v", e.State, kindSentinels[e.Kind], e.Err)
}

func (e *Error) Unwrap() []error {
	errs := []error{kindSentinels[e.Kind]}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}
