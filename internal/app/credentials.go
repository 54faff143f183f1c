package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/okian/hpde-analytics/internal/adapters/tokenstore"
	"github.com/okian/hpde-analytics/internal/config"
	"github.com/okian/hpde-analytics/internal/domain/model"
	"github.com/okian/hpde-analytics/pkg/logger"
	"golang.org/x/term"
)

// CredentialSource says where the consumer key and secret came from.
type CredentialSource string

// Credential sources.
const (
	SourceEnvironment CredentialSource = "environment"
	SourceStored      CredentialSource = "stored"
	SourceMissing     CredentialSource = "missing"
)

// ResolveCredentials fills blank consumer values in cfg from the store and
// reports where the final values came from. Values from the environment
// or config file always win.
func ResolveCredentials(ctx context.Context, cfg *config.Config, store tokenstore.Store) CredentialSource {
	if cfg.HasConsumer() {
		return SourceEnvironment
	}
	creds, err := store.LoadCredentials(ctx)
	if err != nil {
		if !errors.Is(err, tokenstore.ErrNotFound) {
			logger.Get().Named("service").Warn(ctx, "could not read stored credentials", logger.Error(err))
		}
		return SourceMissing
	}
	cfg.FillConsumer(creds.ConsumerKey, creds.ConsumerSecret)
	if !cfg.HasConsumer() {
		return SourceMissing
	}
	return SourceStored
}

// Credentials returns the consumer credentials the service runs with.
func (s *Service) Credentials() model.Credentials {
	return credentialsFrom(s.cfg)
}

func credentialsFrom(cfg *config.Config) model.Credentials {
	return model.Credentials{
		ConsumerKey:    cfg.ConsumerKey,
		ConsumerSecret: cfg.ConsumerSecret,
		BaseURL:        cfg.BaseURL,
		CallbackPort:   cfg.CallbackPort,
	}
}

func (s *Service) requireCredentials() error {
	if !s.Credentials().Valid() {
		return ErrMissingCredentials
	}
	return nil
}

// Configure prompts for the consumer key and secret and saves them in the
// token store.
func (s *Service) Configure(ctx context.Context) error {
	fmt.Fprintln(s.out, "Configure MotorsportReg API credentials")
	fmt.Fprintln(s.out, "Values are stored in the token store, never printed.")

	key, err := s.prompt("Consumer key: ")
	if err != nil {
		return err
	}
	secret, err := s.readSecret("Consumer secret: ")
	if err != nil {
		return err
	}
	key, secret = strings.TrimSpace(key), strings.TrimSpace(secret)
	if key == "" || secret == "" {
		return ErrMissingCredentials
	}

	if err := s.vault.SaveCredentials(ctx, model.Credentials{ConsumerKey: key, ConsumerSecret: secret}); err != nil {
		return fmt.Errorf("save credentials: %w", err)
	}

	st := s.vault.Status(ctx)
	fmt.Fprintf(s.out, "Credentials saved (%s backend).\n", st.Backend)
	if st.Downgraded {
		fmt.Fprintf(s.out, "Warning: the OS keystore is unavailable, using the token file instead: %s\n", st.Reason)
	}
	s.logger.Info(ctx, "consumer credentials saved", logger.String("backend", st.Backend))
	return nil
}

// CredentialStatus prints where credentials come from and whether a token
// is stored. Secrets are never printed.
func (s *Service) CredentialStatus(ctx context.Context) tokenstore.Status {
	st := s.vault.Status(ctx)

	fmt.Fprintln(s.out, "Credential status")
	tw := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "  Consumer credentials:\t%s\n", s.source)
	fmt.Fprintf(tw, "  Stored credentials:\t%s\n", yesNo(st.HasCredentials))
	fmt.Fprintf(tw, "  Token backend:\t%s\n", st.Backend)
	if st.Downgraded {
		fmt.Fprintf(tw, "  Backend downgraded:\tyes\n")
	}
	if st.HasToken {
		fmt.Fprintf(tw, "  Access token:\tpresent (obtained %s, age %s)\n",
			st.ObtainedAt.Format(time.RFC3339), st.TokenAge.Round(time.Second))
	} else {
		fmt.Fprintf(tw, "  Access token:\tmissing\n")
	}
	if st.Reason != "" {
		fmt.Fprintf(tw, "  Note:\t%s\n", st.Reason)
	}
	_ = tw.Flush()
	return st
}

func (s *Service) prompt(label string) (string, error) {
	fmt.Fprint(s.out, label)
	line, err := s.in.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read %s: %w", strings.TrimSuffix(label, ": "), err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// terminalSecret reads without echo when stdin is a terminal and falls back
// to a plain line read otherwise.
func (s *Service) terminalSecret(label string) (string, error) {
	f, ok := s.stdin.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return s.prompt(label)
	}
	fmt.Fprint(s.out, label)
	b, err := term.ReadPassword(int(f.Fd()))
	fmt.Fprintln(s.out)
	if err != nil {
		return "", fmt.Errorf("read secret: %w", err)
	}
	return string(b), nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
