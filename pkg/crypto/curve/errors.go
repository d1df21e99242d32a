package curve

import "errors"

var (
	// ErrUnsupportedCurve is returned when an unsupported curve is requested
	ErrUnsupportedCurve = errors.New("unsupported curve type")

	// ErrInvalidPoint is returned when a point is not on the curve or not in
	// the prime-order subgroup
	ErrInvalidPoint = errors.New("invalid point: not on curve")

	// ErrInvalidScalar is returned when a scalar encoding is not canonical
	ErrInvalidScalar = errors.New("invalid scalar value")

	// ErrInvalidEncoding is returned when an encoding has the wrong length
	ErrInvalidEncoding = errors.New("invalid point encoding")

	// ErrScalarZero is returned when a scalar is zero but shouldn't be
	ErrScalarZero = errors.New("scalar is zero")

	// ErrHashToPoint is returned when no candidate encoding decodes to a point
	ErrHashToPoint = errors.New("hash to point: no valid candidate")
)
