package origin

import "errors"

var (
	ErrInvalidDomain = errors.New("invalid domain")

	ErrInvalidOwner = errors.New("invalid owner address")

	ErrOriginNotFound = errors.New("origin not found")

	// ErrUnknownToken deliberately carries no detail about which part of the
	// credential failed to match.
	ErrUnknownToken = errors.New("unknown token")

	// ErrNoActiveKey signals a broken setup invariant: every origin must hold
	// exactly one active key from creation onward.
	ErrNoActiveKey = errors.New("origin has no active encryption key")
)
