package rand

import "errors"

var (
	// ErrInvalidLength is returned when requested length is invalid
	ErrInvalidLength = errors.New("invalid length: must be positive")

	// ErrInvalidRange is returned when range parameters are invalid
	ErrInvalidRange = errors.New("invalid range: min must be less than max")

	// ErrEmptySeed is returned when a deterministic reader gets no seed
	ErrEmptySeed = errors.New("seed cannot be empty")
)
