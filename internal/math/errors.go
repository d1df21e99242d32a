package math

import "errors"

var (
	// ErrNilGroup is returned when no group is supplied
	ErrNilGroup = errors.New("group cannot be nil")

	// ErrInvalidDegree is returned when degree is negative
	ErrInvalidDegree = errors.New("degree must be non-negative")

	// ErrDuplicatePoints is returned when interpolation points are not unique
	ErrDuplicatePoints = errors.New("interpolation points must be unique")

	// ErrZeroPoint is returned when zero is used as an interpolation point
	ErrZeroPoint = errors.New("interpolation point cannot be zero")

	// ErrPointNotInSet is returned when a Lagrange basis is requested for a
	// point outside the interpolation set
	ErrPointNotInSet = errors.New("point is not in the interpolation set")

	// ErrNilSecret is returned when a nil secret is provided
	ErrNilSecret = errors.New("secret cannot be nil")

	// ErrInsufficientShares is returned when not enough shares for reconstruction
	ErrInsufficientShares = errors.New("insufficient shares for reconstruction")

	// ErrNilShare is returned when a nil share is provided
	ErrNilShare = errors.New("share cannot be nil")
)
