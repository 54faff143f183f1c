// Package tokenstore persists the OAuth access token and the consumer
// credentials in the OS keystore or in a private JSON file.
package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/hpde-analytics/internal/domain/model"
	"github.com/okian/hpde-analytics/pkg/logger"
	"github.com/okian/hpde-analytics/pkg/metrics"
)

// Backend names accepted by Open.
const (
	BackendAuto    = "auto"
	BackendKeyring = "keyring"
	BackendFile    = "file"
)

// Store provides access to the persisted token and credentials.
type Store interface {
	// Load returns the stored token. Returns ErrNotFound if none is stored.
	Load(ctx context.Context) (model.TokenPair, error)
	// Save replaces the stored token.
	Save(ctx context.Context, tok model.TokenPair) error
	// Clear removes the stored token. Clearing an empty store is not an error.
	Clear(ctx context.Context) error

	// LoadCredentials returns the stored consumer key and secret.
	// Returns ErrNotFound if none are stored.
	LoadCredentials(ctx context.Context) (model.Credentials, error)
	// SaveCredentials stores the consumer key and secret.
	SaveCredentials(ctx context.Context, creds model.Credentials) error

	// Backend names the implementation.
	Backend() string
}

// Status summarizes what is stored without exposing secrets.
type Status struct {
	HasCredentials bool
	HasToken       bool
	TokenAge       time.Duration
	ObtainedAt     time.Time
	Backend        string
	Downgraded     bool
	Reason         string
}

// Selection is the store chosen by Open together with how it was chosen.
// When Downgraded is true the keystore was requested implicitly but was not
// usable and Reason says why.
type Selection struct {
	Store
	Downgraded bool
	Reason     string

	now    func() time.Time
	logger logger.Logger
	check  func(service string) error
}

// Open picks the store implementation for backend.
//
// keyring and file select that implementation unconditionally. auto checks
// the keystore and falls back to the file at path when the check fails.
func Open(ctx context.Context, backend, path, service string, opts ...Option) (*Selection, error) {
	sel := &Selection{
		now:    time.Now,
		logger: logger.Get().Named("tokenstore"),
		check:  checkKeyring,
	}
	for _, opt := range opts {
		opt(sel)
	}

	switch backend {
	case BackendKeyring:
		sel.Store = NewKeyringStore(service)
	case BackendFile:
		sel.Store = NewFileStore(path)
	case BackendAuto, "":
		if err := sel.check(service); err != nil {
			sel.Store = NewFileStore(path)
			sel.Downgraded = true
			sel.Reason = fmt.Sprintf("keystore unavailable: %v", err)
			sel.logger.Warn(ctx, "falling back to file token store",
				logger.String("path", path),
				logger.Error(err))
		} else {
			sel.Store = NewKeyringStore(service)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}

	sel.logger.Debug(ctx, "token store selected",
		logger.String("backend", sel.Backend()),
		logger.Bool("downgraded", sel.Downgraded))
	return sel, nil
}

// Status reports presence of credentials and token plus the token age.
// Backend errors other than ErrNotFound are folded into Reason.
func (s *Selection) Status(ctx context.Context) Status {
	st := Status{
		Backend:    s.Backend(),
		Downgraded: s.Downgraded,
		Reason:     s.Reason,
	}

	if _, err := s.LoadCredentials(ctx); err == nil {
		st.HasCredentials = true
	} else if !errors.Is(err, ErrNotFound) {
		st.Reason = joinReason(st.Reason, err.Error())
	}

	tok, err := s.Load(ctx)
	switch {
	case err == nil:
		st.HasToken = true
		st.ObtainedAt = tok.ObtainedAt
		st.TokenAge = tok.Age(s.now())
	case !errors.Is(err, ErrNotFound):
		st.Reason = joinReason(st.Reason, err.Error())
	}
	return st
}

func joinReason(a, b string) string {
	if a == "" {
		return b
	}
	return a + "; " + b
}

// observe records the outcome of a backend operation.
func observe(backend, op string, err error) {
	result := "ok"
	switch {
	case errors.Is(err, ErrNotFound):
		result = "not_found"
	case err != nil:
		result = "error"
	}
	metrics.RecordTokenStoreOp(backend, op, result)
}
