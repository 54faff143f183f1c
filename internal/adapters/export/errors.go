package export

import "errors"

// Sentinel kinds for export errors.
var (
	ErrExists   = errors.New("export directory already exists")
	ErrNoEvents = errors.New("no exportable input")
)
