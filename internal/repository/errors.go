// Package repository implements the data access layer. Sentinel errors
// defined here let handlers distinguish failure classes without string
// matching: ErrNotFound maps to 404, ErrForbidden to 403, ErrConflict and
// ErrDuplicate to 409. Anything else is an opaque store error.
package repository

import (
	"errors"
	"strings"
)

// ErrNotFound is returned when a referenced row does not exist.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own or are not a participant of.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when an operation cannot proceed because of the
// current state of the row, such as an illegal meeting status transition.
var ErrConflict = errors.New("conflict")

// ErrDuplicate is returned when a uniqueness constraint rejects an insert,
// such as registering an email twice or joining a room twice.
var ErrDuplicate = errors.New("duplicate")

// isDupKey reports whether err is a MySQL duplicate-key violation (1062).
func isDupKey(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "1062")
}
