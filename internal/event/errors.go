package event

import "errors"

var (
	ErrInvalidEventType = errors.New("invalid event type")

	ErrInvalidOrigin = errors.New("invalid origin id")

	ErrInvalidPage = errors.New("invalid page")

	ErrInvalidTimestamp = errors.New("invalid timestamp")

	ErrOriginNotFound = errors.New("origin not found")
)
