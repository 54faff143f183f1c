package oauth

import (
	"net/http"
	"time"

	"github.com/okian/hpde-analytics/pkg/logger"
)

// Option configures a Handshake.
type Option func(*Handshake)

// WithHTTPClient sets the client used for token requests.
func WithHTTPClient(c *http.Client) Option {
	return func(h *Handshake) {
		if c != nil {
			h.client = c
		}
	}
}

// WithAuthorizeURL sets the page the user is sent to.
func WithAuthorizeURL(u string) Option {
	return func(h *Handshake) {
		if u != "" {
			h.authorizeURL = u
		}
	}
}

// WithTimeout bounds the wait for the user's authorization.
func WithTimeout(d time.Duration) Option {
	return func(h *Handshake) {
		if d > 0 {
			h.timeout = d
		}
	}
}

// WithOpener sets how the authorization URL is presented.
func WithOpener(o BrowserOpener) Option {
	return func(h *Handshake) {
		if o != nil {
			h.opener = o
		}
	}
}

// WithListenHosts sets the interfaces the callback listener binds to. The
// first must bind; the others are best effort on the same port.
func WithListenHosts(hosts ...string) Option {
	return func(h *Handshake) {
		if len(hosts) > 0 {
			h.listenHosts = hosts
		}
	}
}

// WithProfileEnricher sets a lookup run on the new token before it is saved.
func WithProfileEnricher(e ProfileEnricher) Option {
	return func(h *Handshake) {
		h.enrich = e
	}
}

// WithTransitionHook registers a function called on every state change.
func WithTransitionHook(fn func(from, to State)) Option {
	return func(h *Handshake) {
		h.onTransition = fn
	}
}

// WithLogger sets the handshake logger.
func WithLogger(l logger.Logger) Option {
	return func(h *Handshake) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithClock sets the clock used for ObtainedAt.
func WithClock(now func() time.Time) Option {
	return func(h *Handshake) {
		if now != nil {
			h.now = now
		}
	}
}
