package report

import (
	"time"

	"github.com/okian/hpde-analytics/pkg/logger"
)

// Option configures a Generator.
type Option func(*Generator)

// WithClock sets the clock used for default report file names.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		if now != nil {
			g.now = now
		}
	}
}

// WithLogger sets the generator logger.
func WithLogger(l logger.Logger) Option {
	return func(g *Generator) {
		if l != nil {
			g.logger = l
		}
	}
}
