package msr

import (
	"context"
	"net/http"
	"time"

	"github.com/okian/hpde-analytics/pkg/logger"
)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

// WithRequestTimeout bounds every single HTTP exchange.
func WithRequestTimeout(d time.Duration) Option {
	return func(cl *Client) {
		if d > 0 {
			cl.requestTimeout = d
		}
	}
}

// WithOrganization sets the X-Organization-Id sent with event requests.
func WithOrganization(id string) Option {
	return func(cl *Client) {
		cl.orgID = id
	}
}

// WithRetry sets the attempt bound and the base backoff delay.
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(cl *Client) {
		if maxAttempts > 0 {
			cl.maxAttempts = maxAttempts
		}
		if baseDelay >= 0 {
			cl.baseDelay = baseDelay
		}
	}
}

// WithSleeper replaces the backoff wait.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(cl *Client) {
		if sleep != nil {
			cl.sleep = sleep
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(l logger.Logger) Option {
	return func(cl *Client) {
		if l != nil {
			cl.logger = l
		}
	}
}

// WithClock sets the clock used for FetchedAt.
func WithClock(now func() time.Time) Option {
	return func(cl *Client) {
		if now != nil {
			cl.now = now
		}
	}
}
