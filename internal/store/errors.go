package store

import "errors"

var (
	// ErrInvalidRange is returned for a range query whose bounds are not finite
	// or whose start is after its end.
	ErrInvalidRange = errors.New("invalid range")
	// ErrUnknownField is returned when a projection names a field that readings
	// do not have.
	ErrUnknownField = errors.New("unknown reading field")
)
