package export

import (
	"time"

	"github.com/okian/hpde-analytics/pkg/logger"
)

// Option configures a Writer.
type Option func(*Writer)

// WithClock sets the clock used for directory names and the summary.
func WithClock(now func() time.Time) Option {
	return func(w *Writer) {
		if now != nil {
			w.now = now
		}
	}
}

// WithRunID sets the generator for run ids.
func WithRunID(newID func() string) Option {
	return func(w *Writer) {
		if newID != nil {
			w.newID = newID
		}
	}
}

// WithLogger sets the writer logger.
func WithLogger(l logger.Logger) Option {
	return func(w *Writer) {
		if l != nil {
			w.logger = l
		}
	}
}
