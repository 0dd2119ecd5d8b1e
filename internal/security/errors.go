package security

import "errors"

var (
	// ErrSandboxViolation is returned for paths that escape the sandbox root.
	ErrSandboxViolation = errors.New("security: path escapes sandbox")

	// ErrRateLimited is returned when an actor exceeds its tool-call budget.
	ErrRateLimited = errors.New("security: rate limited")

	// ErrCapabilityDenied is returned when policy forbids a tool or operation.
	ErrCapabilityDenied = errors.New("security: capability denied")

	// ErrChallengeNotFound is returned for unknown confirmation challenge IDs.
	ErrChallengeNotFound = errors.New("security: challenge not found")

	// ErrChallengeExpired is returned when a challenge outlived its TTL.
	ErrChallengeExpired = errors.New("security: challenge expired")
)
