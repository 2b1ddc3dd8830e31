package chat

import "errors"

// Sentinel errors for the messaging core. Callers classify failures with
// errors.Is; the HTTP layer maps them to status codes.
var (
	// ErrValidation marks malformed input (empty body, missing peer,
	// self-addressed message, oversized body).
	ErrValidation = errors.New("invalid message")

	// ErrPermission marks an operation attempted by a non-owner.
	ErrPermission = errors.New("not permitted")

	// ErrEditWindow marks an edit attempted after the window elapsed.
	ErrEditWindow = errors.New("edit window elapsed")

	// ErrNotFound marks a read of a missing message.
	ErrNotFound = errors.New("message not found")

	// ErrUnavailable marks a storage layer failure.
	ErrUnavailable = errors.New("store unavailable")
)
