package repository

import "errors"

// ErrNotFound indicates an entity was not located.
var ErrNotFound = errors.New("repository: not found")

// ErrConflict indicates an entity with the same key already exists.
var ErrConflict = errors.New("repository: already exists")
