// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates a concurrent modification conflict (optimistic locking).
// Surfaced verbatim to the caller; never retried or merged automatically.
var ErrConflict = errors.New("conflict: resource was modified by another user")

// ErrInvalidTransition indicates a lifecycle command that is not permitted
// in the execution's current state.
var ErrInvalidTransition = errors.New("command not permitted in current state")

// ErrMalformedSnapshot indicates an execution snapshot the backend returned
// in an impossible shape. Distinct from validation errors so the caller can
// decide between a retry and an operator alert.
var ErrMalformedSnapshot = errors.New("malformed execution snapshot")
