package hash

import "errors"

var (
	// ErrInvalidLength is returned when an invalid length is specified
	ErrInvalidLength = errors.New("length must be positive")

	// ErrEmptySecret is returned when key derivation gets no input keying material
	ErrEmptySecret = errors.New("secret cannot be empty")
)
