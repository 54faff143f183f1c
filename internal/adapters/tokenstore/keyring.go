package tokenstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/okian/hpde-analytics/internal/domain/model"
	"github.com/pkg/errors"
	"github.com/zalando/go-keyring"
)

// Keystore entry names under the configured service.
const (
	keyToken       = "access_token"
	keyCredentials = "consumer_credentials"
	keyCheck       = "availability_check"
)

// KeyringStore keeps token and credentials in the OS keystore as JSON
// values under one service name.
type KeyringStore struct {
	service string
}

// NewKeyringStore returns a keystore-backed store for service.
func NewKeyringStore(service string) *KeyringStore {
	return &KeyringStore{service: service}
}

// Backend implements Store.
func (s *KeyringStore) Backend() string { return BackendKeyring }

// Load implements Store.
func (s *KeyringStore) Load(_ context.Context) (tok model.TokenPair, err error) {
	defer func() { observe(BackendKeyring, "load", err) }()

	if err := s.get(keyToken, &tok); err != nil {
		return model.TokenPair{}, err
	}
	if tok.Empty() {
		return model.TokenPair{}, ErrNotFound
	}
	return tok, nil
}

// Save implements Store.
func (s *KeyringStore) Save(_ context.Context, tok model.TokenPair) (err error) {
	defer func() { observe(BackendKeyring, "save", err) }()
	return s.set(keyToken, tok)
}

// Clear implements Store.
func (s *KeyringStore) Clear(_ context.Context) (err error) {
	defer func() { observe(BackendKeyring, "clear", err) }()

	if err := keyring.Delete(s.service, keyToken); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return errors.Wrapf(ErrBackend, "keyring delete %s: %v", keyToken, err)
	}
	return nil
}

// LoadCredentials implements Store.
func (s *KeyringStore) LoadCredentials(_ context.Context) (creds model.Credentials, err error) {
	defer func() { observe(BackendKeyring, "load_credentials", err) }()

	var stored fileCredentials
	if err := s.get(keyCredentials, &stored); err != nil {
		return model.Credentials{}, err
	}
	if stored.ConsumerKey == "" {
		return model.Credentials{}, ErrNotFound
	}
	return model.Credentials{ConsumerKey: stored.ConsumerKey, ConsumerSecret: stored.ConsumerSecret}, nil
}

// SaveCredentials implements Store.
func (s *KeyringStore) SaveCredentials(_ context.Context, creds model.Credentials) (err error) {
	defer func() { observe(BackendKeyring, "save_credentials", err) }()

	return s.set(keyCredentials, fileCredentials{
		ConsumerKey:    creds.ConsumerKey,
		ConsumerSecret: creds.ConsumerSecret,
	})
}

func (s *KeyringStore) get(key string, v any) error {
	raw, err := keyring.Get(s.service, key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return ErrNotFound
		}
		return errors.Wrapf(ErrBackend, "keyring get %s: %v", key, err)
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return errors.Wrapf(ErrBackend, "keyring decode %s: %v", key, err)
	}
	return nil
}

func (s *KeyringStore) set(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(ErrBackend, err.Error())
	}
	if err := keyring.Set(s.service, key, string(raw)); err != nil {
		return errors.Wrapf(ErrBackend, "keyring set %s: %v", key, err)
	}
	return nil
}

// checkKeyring reports whether the keystore answers at all. A missing entry
// is a healthy answer.
func checkKeyring(service string) error {
	_, err := keyring.Get(service, keyCheck)
	if err == nil || errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return fmt.Errorf("check %s: %w", service, err)
}
