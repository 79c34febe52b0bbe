package kernel

import "errors"

var (
	// ErrInvalidSessionID is returned when a session id cannot name a
	// directory directly under the session root.
	ErrInvalidSessionID = errors.New("invalid session id")
	// ErrNoSessionRoot is returned by session operations when no root
	// directory is configured.
	ErrNoSessionRoot = errors.New("session root not configured")
	// ErrEmptyBranch is returned by Switch for a branch whose record was
	// already taken with IntoState.
	ErrEmptyBranch = errors.New("branch has no state")
)
