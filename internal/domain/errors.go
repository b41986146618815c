// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates a concurrent modification conflict, such as a
// double-submit or activation of an already-completed task.
var ErrConflict = errors.New("conflict: resource was modified by another request")

// ErrInvalid indicates malformed input: a bad field, an out-of-range value,
// or a reference to something that was never valid.
var ErrInvalid = errors.New("invalid input")

// ErrPolicyRejected indicates a request was denied by access control or
// rate limiting before it had any side effect.
var ErrPolicyRejected = errors.New("rejected by policy")
