package security

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidThreshold is returned when threshold parameters are invalid
	ErrInvalidThreshold = errors.New("invalid threshold: must satisfy 1 <= t <= n")

	// ErrInvalidPartyCount is returned when there are no participants
	ErrInvalidPartyCount = errors.New("invalid party count: must be >= 1")

	// ErrZeroPartyID is returned when a participant identifier is zero
	ErrZeroPartyID = errors.New("invalid party ID: zero is reserved")

	// ErrDuplicatePartyID is returned when identifiers are not distinct
	ErrDuplicatePartyID = errors.New("invalid party ID: duplicate")

	// ErrUnknownPartyID is returned when an identifier is not in the roster
	ErrUnknownPartyID = errors.New("invalid party ID: not in roster")
)

// ValidateThreshold checks if threshold parameters are valid
// Returns error if:
// - parties < 1
// - threshold < 1
// - threshold > parties
func ValidateThreshold(threshold, parties int) error {
	if parties < 1 {
		return ErrInvalidPartyCount
	}

	if threshold < 1 || threshold > parties {
		return ErrInvalidThreshold
	}

	return nil
}

// ValidatePartyIDs checks that every identifier is nonzero and distinct
func ValidatePartyIDs(ids []uint32) error {
	seen := make(map[uint32]struct{}, len(ids))
	for _, id := range ids {
		if id == 0 {
			return ErrZeroPartyID
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: %d", ErrDuplicatePartyID, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// ValidateMember checks that id is one of ids
func ValidateMember(id uint32, ids []uint32) error {
	for _, candidate := range ids {
		if candidate == id {
			return nil
		}
	}
	return fmt.Errorf("%w: %d", ErrUnknownPartyID, id)
}
