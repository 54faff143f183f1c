package tokenstore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/okian/hpde-analytics/internal/domain/model"
	"github.com/pkg/errors"
)

const fileMode = 0o600

type fileCredentials struct {
	ConsumerKey    string `json:"consumer_key"`
	ConsumerSecret string `json:"consumer_secret"`
}

type fileDocument struct {
	Token       *model.TokenPair `json:"token,omitempty"`
	Credentials *fileCredentials `json:"credentials,omitempty"`
}

// FileStore keeps token and credentials in one JSON file readable only by
// the owner. Every write goes to a sibling temp file that is renamed over
// the target, so a crash never leaves a half-written file.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore returns a store backed by the file at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Backend implements Store.
func (s *FileStore) Backend() string { return BackendFile }

// Path returns the backing file path.
func (s *FileStore) Path() string { return s.path }

// Load implements Store.
func (s *FileStore) Load(_ context.Context) (tok model.TokenPair, err error) {
	defer func() { observe(BackendFile, "load", err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return model.TokenPair{}, err
	}
	if doc.Token == nil || doc.Token.Empty() {
		return model.TokenPair{}, ErrNotFound
	}
	return *doc.Token, nil
}

// Save implements Store.
func (s *FileStore) Save(_ context.Context, tok model.TokenPair) (err error) {
	defer func() { observe(BackendFile, "save", err) }()

	return s.update(func(doc *fileDocument) {
		doc.Token = &tok
	})
}

// Clear implements Store.
func (s *FileStore) Clear(_ context.Context) (err error) {
	defer func() { observe(BackendFile, "clear", err) }()

	return s.update(func(doc *fileDocument) {
		doc.Token = nil
	})
}

// LoadCredentials implements Store.
func (s *FileStore) LoadCredentials(_ context.Context) (creds model.Credentials, err error) {
	defer func() { observe(BackendFile, "load_credentials", err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return model.Credentials{}, err
	}
	if doc.Credentials == nil || doc.Credentials.ConsumerKey == "" {
		return model.Credentials{}, ErrNotFound
	}
	return model.Credentials{
		ConsumerKey:    doc.Credentials.ConsumerKey,
		ConsumerSecret: doc.Credentials.ConsumerSecret,
	}, nil
}

// SaveCredentials implements Store.
func (s *FileStore) SaveCredentials(_ context.Context, creds model.Credentials) (err error) {
	defer func() { observe(BackendFile, "save_credentials", err) }()

	return s.update(func(doc *fileDocument) {
		doc.Credentials = &fileCredentials{
			ConsumerKey:    creds.ConsumerKey,
			ConsumerSecret: creds.ConsumerSecret,
		}
	})
}

// read loads the document. A missing file reads as ErrNotFound.
func (s *FileStore) read() (fileDocument, error) {
	var doc fileDocument
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return doc, ErrNotFound
		}
		return doc, errors.Wrapf(ErrBackend, "read %s: %v", s.path, err)
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, errors.Wrapf(ErrBackend, "decode %s: %v", s.path, err)
	}
	return doc, nil
}

func (s *FileStore) update(mutate func(*fileDocument)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	mutate(&doc)

	if doc.Token == nil && doc.Credentials == nil {
		if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(ErrBackend, "remove %s: %v", s.path, err)
		}
		return nil
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.Wrap(ErrBackend, err.Error())
	}
	return writeAtomic(s.path, data)
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return errors.Wrapf(ErrBackend, "create %s: %v", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return errors.Wrapf(ErrBackend, "create temp in %s: %v", dir, err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := tmp.Chmod(fileMode); err != nil {
		_ = tmp.Close()
		return errors.Wrapf(ErrBackend, "chmod %s: %v", tmpName, err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errors.Wrapf(ErrBackend, "write %s: %v", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return errors.Wrapf(ErrBackend, "sync %s: %v", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(ErrBackend, "close %s: %v", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return errors.Wrapf(ErrBackend, "rename %s: %v", path, err)
	}
	return nil
}
