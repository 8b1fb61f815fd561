package store

import "errors"

// ErrNotFound is returned when a record or snapshot does not exist.
var ErrNotFound = errors.New("store: not found")
