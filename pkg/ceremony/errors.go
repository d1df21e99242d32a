package ceremony

import "errors"

var (
	// ErrInvalidConfig is returned when a runner or simulation is misconfigured
	ErrInvalidConfig = errors.New("invalid ceremony configuration")

	// ErrTransportFailed is returned when the transport stops delivering
	ErrTransportFailed = errors.New("transport failed")

	// ErrNoOutputs is returned when no participant finished the session
	ErrNoOutputs = errors.New("no participant produced an output")

	// ErrDivergentKeys is returned when finished participants disagree on the key
	ErrDivergentKeys = errors.New("participants derived different public keys")
)
