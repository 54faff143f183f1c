package tokenstore

import "errors"

// Sentinel kinds for token store errors.
var (
	ErrNotFound       = errors.New("no stored value")
	ErrUnknownBackend = errors.New("unknown token backend")
	ErrBackend        = errors.New("token backend failure")
)
