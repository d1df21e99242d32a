package commitment

import "errors"

var (
	// ErrNilGroup is returned when a nil group is provided
	ErrNilGroup = errors.New("group cannot be nil")

	// ErrNilValue is returned when a nil value is provided
	ErrNilValue = errors.New("value cannot be nil")

	// ErrEmptyValues is returned when an empty values slice is provided
	ErrEmptyValues = errors.New("values cannot be empty")

	// ErrNilCommitment is returned when a nil commitment is provided
	ErrNilCommitment = errors.New("commitment cannot be nil")

	// ErrInvalidLength is returned when a commitment vector has the wrong length
	ErrInvalidLength = errors.New("commitment vector has wrong length")

	// ErrIdentityCommitment is returned when a commitment is the identity element
	ErrIdentityCommitment = errors.New("commitment is the identity element")

	// ErrNonZeroConstant is returned when a refresh commitment hides a nonzero constant
	ErrNonZeroConstant = errors.New("refresh commitment must have an identity constant term")
)
