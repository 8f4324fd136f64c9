package store

import "errors"

// ErrNotFound indicates a repository lookup found no matching row.
var ErrNotFound = errors.New("store: entity not found")
