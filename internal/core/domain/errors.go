package domain

import "errors"

var (
	// ErrUnauthenticated means the handshake credential was missing or invalid.
	// The connection attempt is refused before any state is created.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrUnauthorized means a membership check failed for an otherwise
	// well-formed event. The event is dropped; the connection stays open.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound means the target room or user has no live subscription.
	ErrNotFound = errors.New("not found")

	// ErrTransient means an external lookup failed for infrastructure
	// reasons. The event is dropped without retry.
	ErrTransient = errors.New("transient failure")
)
