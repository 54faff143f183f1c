package report

import "errors"

// Sentinel kinds for report errors.
var (
	ErrMissingEntryList = errors.New("export directory has no entry list")
	ErrInvalidExport    = errors.New("export file is not valid JSON")
)
