// Package service implements the CLI commands on top of the token store,
// the OAuth handshake, the MSR client and the export and report writers.
package service

import (
	"bufio"
	"context"
	"io"
	"os"
	"time"

	"github.com/okian/hpde-analytics/internal/adapters/export"
	"github.com/okian/hpde-analytics/internal/adapters/msr"
	"github.com/okian/hpde-analytics/internal/adapters/oauth"
	"github.com/okian/hpde-analytics/internal/adapters/report"
	"github.com/okian/hpde-analytics/internal/adapters/tokenstore"
	"github.com/okian/hpde-analytics/internal/config"
	"github.com/okian/hpde-analytics/internal/domain/model"
	"github.com/okian/hpde-analytics/pkg/logger"
)

// API is the part of the MSR client the commands use.
type API interface {
	GetProfile(ctx context.Context) (model.RawSet, error)
	GetCalendar(ctx context.Context, orgID string) (model.RawSet, error)
	GetEntryList(ctx context.Context, eventID string) (model.RawSet, error)
	GetAttendees(ctx context.Context, eventID string) (model.RawSet, error)
	GetAssignments(ctx context.Context, eventID string) (model.RawSet, error)
	GetTimingFeed(ctx context.Context, eventID string) (model.RawSet, error)
}

// APIFactory returns a client bound to an organization.
type APIFactory func(orgID string) API

// Authenticator runs the OAuth handshake and stores the resulting token.
type Authenticator interface {
	Run(ctx context.Context) (model.TokenPair, error)
}

// Exporter writes one export run.
type Exporter interface {
	Write(ctx context.Context, name string, b export.Bundle) (export.Result, error)
}

// ExporterFactory returns an Exporter rooted at baseDir.
type ExporterFactory func(baseDir string) Exporter

// Reporter builds the Time Trials report from an export directory.
type Reporter interface {
	Generate(ctx context.Context, exportDir, name, reportFile string) (report.Result, error)
}

// Vault is the token store together with its selection status.
type Vault interface {
	tokenstore.Store
	Status(ctx context.Context) tokenstore.Status
}

// Service runs CLI commands. Commands are sequential; a Service is not
// meant to be shared between goroutines.
type Service struct {
	cfg        *config.Config
	vault      Vault
	source     CredentialSource
	auth       Authenticator
	api        APIFactory
	exporter   ExporterFactory
	reporter   Reporter
	in         *bufio.Reader
	stdin      io.Reader
	out        io.Writer
	readSecret func(prompt string) (string, error)
	now        func() time.Time
	logger     logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithAuthenticator sets the handshake used when no token is stored.
func WithAuthenticator(a Authenticator) Option {
	return func(s *Service) {
		if a != nil {
			s.auth = a
		}
	}
}

// WithAPI sets the MSR client factory.
func WithAPI(f APIFactory) Option {
	return func(s *Service) {
		if f != nil {
			s.api = f
		}
	}
}

// WithExporter sets the export writer factory.
func WithExporter(f ExporterFactory) Option {
	return func(s *Service) {
		if f != nil {
			s.exporter = f
		}
	}
}

// WithReporter sets the report generator.
func WithReporter(r Reporter) Option {
	return func(s *Service) {
		if r != nil {
			s.reporter = r
		}
	}
}

// WithCredentialSource records where the consumer credentials came from.
func WithCredentialSource(src CredentialSource) Option {
	return func(s *Service) {
		s.source = src
	}
}

// WithInput sets the reader used by interactive prompts.
func WithInput(r io.Reader) Option {
	return func(s *Service) {
		if r != nil {
			s.stdin = r
		}
	}
}

// WithOutput sets where command output is printed.
func WithOutput(w io.Writer) Option {
	return func(s *Service) {
		if w != nil {
			s.out = w
		}
	}
}

// WithSecretReader sets how the consumer secret is prompted for.
func WithSecretReader(fn func(prompt string) (string, error)) Option {
	return func(s *Service) {
		if fn != nil {
			s.readSecret = fn
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock sets the clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a Service for cfg backed by vault. Without WithAuthenticator
// or WithAPI it builds the handshake and client from cfg with their defaults.
func New(cfg *config.Config, vault Vault, opts ...Option) *Service {
	s := &Service{
		cfg:      cfg,
		vault:    vault,
		source:   SourceMissing,
		exporter: func(dir string) Exporter { return export.NewWriter(dir) },
		reporter: report.NewGenerator(),
		stdin:    os.Stdin,
		out:      os.Stdout,
		now:      time.Now,
		logger:   logger.Get().Named("service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.auth == nil {
		s.auth = oauth.New(s.Credentials(), s.vault, oauth.WithAuthorizeURL(cfg.AuthorizeURL))
	}
	if s.api == nil {
		s.api = func(orgID string) API {
			return msr.New(s.Credentials(), s.vault, msr.WithOrganization(orgID))
		}
	}
	s.in = bufio.NewReader(s.stdin)
	if s.readSecret == nil {
		s.readSecret = s.terminalSecret
	}
	return s
}
