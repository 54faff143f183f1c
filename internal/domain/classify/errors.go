package classify

import (
	"errors"
	"fmt"
)

// Sentinel kinds for classification errors. Both specific kinds wrap
// ErrClassification so callers can test for either level.
var (
	ErrClassification    = errors.New("classification failed")
	ErrUnmatchedIdentity = fmt.Errorf("%w: unmatched identity", ErrClassification)
	ErrInvalidDayCount   = fmt.Errorf("%w: invalid day count", ErrClassification)
)

// Error is a data-integrity failure that aborts report generation.
type Error struct {
	Err      error  // one of the sentinels above
	DriverID string // empty when no identity could be resolved
	Message  string
}

func (e *Error) Error() string {
	if e.DriverID == "" {
		return fmt.Sprintf("%v: %s", e.Err, e.Message)
	}
	return fmt.Sprintf("%v: driver %s: %s", e.Err, e.DriverID, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func unmatchedIdentity(message string) *Error {
	return &Error{Err: ErrUnmatchedIdentity, Message: message}
}

func invalidDayCount(driverID string, count int) *Error {
	return &Error{
		Err:      ErrInvalidDayCount,
		DriverID: driverID,
		Message:  fmt.Sprintf("day count %d outside 1..3", count),
	}
}
