package store

import "errors"

// ErrNotFound is returned by Get/GetScalar when the requested key is
// absent. Callers at the HTTP layer map this to a 404.
var ErrNotFound = errors.New("store: key not found")
