package tokenstore

import (
	"time"

	"github.com/okian/hpde-analytics/pkg/logger"
)

// Option configures a Selection returned by Open.
type Option func(*Selection)

// WithClock replaces the clock used for token age reporting.
func WithClock(now func() time.Time) Option {
	return func(s *Selection) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger used for backend selection warnings.
func WithLogger(l logger.Logger) Option {
	return func(s *Selection) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithKeyringCheck overrides the availability check run in auto mode.
func WithKeyringCheck(check func(service string) error) Option {
	return func(s *Selection) {
		if check != nil {
			s.check = check
		}
	}
}
