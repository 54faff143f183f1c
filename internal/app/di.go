package service

import (
	"context"
	"net/http"
	"os"

	"github.com/okian/hpde-analytics/internal/adapters/export"
	"github.com/okian/hpde-analytics/internal/adapters/msr"
	"github.com/okian/hpde-analytics/internal/adapters/oauth"
	"github.com/okian/hpde-analytics/internal/adapters/report"
	"github.com/okian/hpde-analytics/internal/adapters/tokenstore"
	"github.com/okian/hpde-analytics/internal/config"
	"github.com/samber/do/v2"
)

// RegisterDI registers the token store and the Service. The injector must
// already hold a *config.Config value. opts are applied after the defaults.
func RegisterDI(injector do.Injector, opts ...Option) {
	do.Provide(injector, func(i do.Injector) (Vault, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return tokenstore.Open(context.Background(), cfg.TokenBackend, cfg.TokenFile, cfg.KeyringService)
	})

	do.Provide(injector, func(i do.Injector) (*Service, error) {
		cfg := do.MustInvoke[*config.Config](i)
		vault := do.MustInvoke[Vault](i)

		source := ResolveCredentials(context.Background(), cfg, vault)
		creds := credentialsFrom(cfg)

		newClient := func(orgID string) *msr.Client {
			return msr.New(creds, vault,
				msr.WithOrganization(orgID),
				msr.WithRequestTimeout(cfg.RequestTimeout()),
				msr.WithRetry(cfg.MaxAttempts, cfg.RetryBaseDelay()))
		}

		handshake := oauth.New(creds, vault,
			oauth.WithAuthorizeURL(cfg.AuthorizeURL),
			oauth.WithTimeout(cfg.AuthTimeout()),
			oauth.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout()}),
			oauth.WithOpener(oauth.SystemOpener{W: os.Stdout}),
			oauth.WithProfileEnricher(newClient(cfg.OrganizationID).EnrichToken))

		base := []Option{
			WithCredentialSource(source),
			WithAuthenticator(handshake),
			WithAPI(func(orgID string) API { return newClient(orgID) }),
			WithExporter(func(dir string) Exporter { return export.NewWriter(dir) }),
			WithReporter(report.NewGenerator()),
		}
		return New(cfg, vault, append(base, opts...)...), nil
	})
}
