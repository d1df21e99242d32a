package keygen

import (
	"fmt"
	"slices"
	"strings"

	"github.com/Caqil/gennaro-dkg/internal/security"
	"github.com/Caqil/gennaro-dkg/pkg/crypto/curve"
)

// Scheme selects the commitment scheme used in the first round
type Scheme int

const (
	// SchemeFeldman publishes coefficient*G commitments in round 1
	SchemeFeldman Scheme = iota

	// SchemePedersen publishes hiding commitments in round 1 and the
	// Feldman commitments in round 2
	SchemePedersen
)

// String returns the scheme name
func (s Scheme) String() string {
	switch s {
	case SchemeFeldman:
		return "feldman"
	case SchemePedersen:
		return "pedersen"
	default:
		return fmt.Sprintf("scheme(%d)", int(s))
	}
}

// ParseScheme parses a scheme name
func ParseScheme(name string) (Scheme, error) {
	switch strings.ToLower(name) {
	case "", "feldman":
		return SchemeFeldman, nil
	case "pedersen":
		return SchemePedersen, nil
	default:
		return 0, fmt.Errorf("%w: unknown scheme %q", ErrInvalidParameters, name)
	}
}

// DismissalPolicy decides when a complaint against a sharer is dismissed
type DismissalPolicy int

const (
	// DismissOnVerification dismisses a complaint as soon as the disclosed
	// share verifies against the public commitments
	DismissOnVerification DismissalPolicy = iota

	// DismissBelowQuorum additionally excludes a sharer accused by at least
	// ComplaintQuorum distinct participants, even if every disclosure verifies
	DismissBelowQuorum
)

// String returns the policy name
func (d DismissalPolicy) String() string {
	switch d {
	case DismissOnVerification:
		return "verify"
	case DismissBelowQuorum:
		return "quorum"
	default:
		return fmt.Sprintf("policy(%d)", int(d))
	}
}

// ParseDismissalPolicy parses a policy name
func ParseDismissalPolicy(name string) (DismissalPolicy, error) {
	switch strings.ToLower(name) {
	case "", "verify":
		return DismissOnVerification, nil
	case "quorum":
		return DismissBelowQuorum, nil
	default:
		return 0, fmt.Errorf("%w: unknown dismissal policy %q", ErrInvalidParameters, name)
	}
}

// Parameters are shared by every participant of a session
type Parameters struct {
	// Group is the prime-order group the key lives in
	Group curve.Group

	// Threshold is the number of shares needed to reconstruct the key
	Threshold int

	// Participants is the roster of nonzero, distinct identifiers
	Participants []uint32

	// Scheme selects Feldman or Pedersen commitments
	Scheme Scheme

	// Dismissal selects the complaint dismissal policy
	Dismissal DismissalPolicy

	// ComplaintQuorum is the number of distinct accusers that excludes a
	// sharer under DismissBelowQuorum; zero means Threshold
	ComplaintQuorum int

	// SessionID binds proofs, ciphertexts and the transcript to one run
	SessionID []byte
}

// Validate checks the parameters
func (p *Parameters) Validate() error {
	if p.Group == nil {
		return fmt.Errorf("%w: group is required", ErrInvalidParameters)
	}
	if err := security.ValidatePartyIDs(p.Participants); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParameters, err)
	}
	if err := security.ValidateThreshold(p.Threshold, len(p.Participants)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParameters, err)
	}
	if p.Scheme != SchemeFeldman && p.Scheme != SchemePedersen {
		return fmt.Errorf("%w: unknown scheme %d", ErrInvalidParameters, int(p.Scheme))
	}
	if p.Dismissal != DismissOnVerification && p.Dismissal != DismissBelowQuorum {
		return fmt.Errorf("%w: unknown dismissal policy %d", ErrInvalidParameters, int(p.Dismissal))
	}
	if p.ComplaintQuorum < 0 || p.ComplaintQuorum > len(p.Participants) {
		return fmt.Errorf("%w: complaint quorum %d out of range", ErrInvalidParameters, p.ComplaintQuorum)
	}
	return nil
}

// N returns the roster size
func (p *Parameters) N() int { return len(p.Participants) }

// Quorum returns the effective complaint quorum
func (p *Parameters) Quorum() int {
	if p.ComplaintQuorum == 0 {
		return p.Threshold
	}
	return p.ComplaintQuorum
}

// clone returns a copy with a sorted roster so that every iteration over
// peers happens in the same order on every participant
func (p *Parameters) clone() Parameters {
	out := *p
	out.Participants = slices.Clone(p.Participants)
	slices.Sort(out.Participants)
	out.SessionID = slices.Clone(p.SessionID)
	return out
}
