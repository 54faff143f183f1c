package metrics

import "errors"

// ErrWriteTextfile wraps failures to dump the registry at exit.
var ErrWriteTextfile = errors.New("metrics textfile write failed")
