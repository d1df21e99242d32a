package keygen

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidParameters is returned when the threshold, roster or own id is invalid
	ErrInvalidParameters = errors.New("invalid protocol parameters")

	// ErrMissingCipher is returned when no pairwise cipher was configured
	ErrMissingCipher = errors.New("pairwise cipher is required")

	// ErrRoundOrder is returned when a method is called in the wrong state
	ErrRoundOrder = errors.New("round called out of order")

	// ErrEntropy is returned when the random source fails
	ErrEntropy = errors.New("random source failure")

	// ErrEncryption is returned when a share cannot be sealed for a peer
	ErrEncryption = errors.New("share encryption failed")

	// ErrInsufficientParticipants is returned when fewer than t participants survive
	ErrInsufficientParticipants = errors.New("insufficient qualified participants")

	// ErrEquivocation is returned when peers finalized a different key or transcript
	ErrEquivocation = errors.New("inconsistent final key across participants")

	// ErrAborted is the cause recorded by an explicit Abort
	ErrAborted = errors.New("protocol aborted")

	// ErrIncompatibleShares is returned when a refresh delta does not match the share it updates
	ErrIncompatibleShares = errors.New("refresh delta does not match key share")
)

// Fault classifies an error so that callers can decide whether to retry,
// reconfigure or give up on a session
type Fault int

const (
	// FaultNone means the error is not one of ours
	FaultNone Fault = iota

	// FaultConfig covers setup failures, including a failing random source
	FaultConfig

	// FaultOrder covers API misuse: a round called in the wrong state
	FaultOrder

	// FaultProtocol covers local failures while running a round
	FaultProtocol

	// FaultInsufficient means too many participants were excluded
	FaultInsufficient

	// FaultEquivocation means participants disagree on the final key
	FaultEquivocation
)

// String returns the fault name
func (f Fault) String() string {
	switch f {
	case FaultConfig:
		return "config"
	case FaultOrder:
		return "order"
	case FaultProtocol:
		return "protocol"
	case FaultInsufficient:
		return "insufficient"
	case FaultEquivocation:
		return "equivocation"
	default:
		return "none"
	}
}

// FaultOf classifies err
func FaultOf(err error) Fault {
	switch {
	case err == nil:
		return FaultNone
	case errors.Is(err, ErrInvalidParameters), errors.Is(err, ErrMissingCipher), errors.Is(err, ErrEntropy),
		errors.Is(err, ErrIncompatibleShares):
		return FaultConfig
	case errors.Is(err, ErrRoundOrder):
		return FaultOrder
	case errors.Is(err, ErrInsufficientParticipants):
		return FaultInsufficient
	case errors.Is(err, ErrEquivocation):
		return FaultEquivocation
	case errors.Is(err, ErrEncryption), errors.Is(err, ErrAborted):
		return FaultProtocol
	default:
		return FaultNone
	}
}

// IsFatal reports whether err ended the session. Round order errors leave
// the participant untouched and are the only recoverable kind.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return FaultOf(err) != FaultOrder
}

// AbortError is returned by the call that moved a participant into Aborted
type AbortError struct {
	Participant uint32
	Round       Round
	Err         error
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("participant %d aborted in %s: %v", e.Participant, e.Round, e.Err)
}

func (e *AbortError) Unwrap() error { return e.Err }

func roundOrderError(current, required Round) error {
	return fmt.Errorf("%w: in %s, requires %s", ErrRoundOrder, current, required)
}
