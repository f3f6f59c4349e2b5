package store

import "errors"

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a uniqueness constraint is violated,
// e.g. a duplicate username or a duplicate remote file URL.
var ErrConflict = errors.New("conflict")
