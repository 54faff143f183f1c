package oauth

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/dghubble/oauth1"
	"github.com/okian/hpde-analytics/internal/domain/model"
)

// CallbackURL is the redirect target registered with each request token.
func CallbackURL(port int) string {
	return "http://localhost:" + strconv.Itoa(port) + callbackPath
}

// Consumer returns the oauth1 configuration for creds against the MSR
// token endpoints. Requests are signed with HMAC-SHA1.
func Consumer(creds model.Credentials, authorizeURL string) *oauth1.Config {
	base := strings.TrimRight(creds.BaseURL, "/")
	if authorizeURL == "" {
		authorizeURL = DefaultAuthorizeURL
	}
	return &oauth1.Config{
		ConsumerKey:    creds.ConsumerKey,
		ConsumerSecret: creds.ConsumerSecret,
		CallbackURL:    CallbackURL(creds.CallbackPort),
		Endpoint: oauth1.Endpoint{
			RequestTokenURL: base + RequestTokenPath,
			AuthorizeURL:    authorizeURL,
			AccessTokenURL:  base + AccessTokenPath,
		},
		Signer: &oauth1.HMACSigner{ConsumerSecret: creds.ConsumerSecret},
	}
}

// SignedClient returns a client that signs every request with tok. Requests
// leave through base's transport; base's Timeout is not carried over, so
// callers bound requests with their context.
func SignedClient(ctx context.Context, creds model.Credentials, base *http.Client, tok model.TokenPair) (*http.Client, error) {
	if !creds.Valid() {
		return nil, newError(KindSigningFailure, StateStart, fmt.Errorf("consumer key and secret are required"))
	}
	if base != nil {
		ctx = context.WithValue(ctx, oauth1.HTTPClient, base)
	}
	return Consumer(creds, "").Client(ctx, oauth1.NewToken(tok.AccessToken, tok.AccessTokenSecret)), nil
}

// boundTransport attaches ctx to requests made by the oauth1 token calls,
// which do not take a context themselves.
type boundTransport struct {
	ctx  context.Context //nolint:containedctx // scoped to one handshake step
	base http.RoundTripper
}

func (t boundTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.base.RoundTrip(req.WithContext(t.ctx))
}

// tokenClient returns an oauth1 configuration whose token requests run
// under ctx with the handshake's HTTP client.
func (h *Handshake) tokenClient(ctx context.Context) *oauth1.Config {
	cfg := Consumer(h.creds, h.authorizeURL)
	rt := h.client.Transport
	if rt == nil {
		rt = http.DefaultTransport
	}
	cfg.HTTPClient = &http.Client{Timeout: h.client.Timeout, Transport: boundTransport{ctx: ctx, base: rt}}
	return cfg
}
