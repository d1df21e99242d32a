package keygen

import (
	"github.com/Caqil/gennaro-dkg/internal/math"
	"github.com/Caqil/gennaro-dkg/pkg/crypto/commitment"
	"github.com/Caqil/gennaro-dkg/pkg/zk"
)

// Round names the stage a participant is in
type Round int

const (
	RoundInit Round = iota
	RoundBroadcast
	RoundShareDistribution
	RoundShareVerification
	RoundComplaintResolution
	RoundFinalize
	RoundDone
	RoundAborted
)

// String returns the round name
func (r Round) String() string {
	switch r {
	case RoundInit:
		return "init"
	case RoundBroadcast:
		return "round1_broadcast"
	case RoundShareDistribution:
		return "round2_share_distribution"
	case RoundShareVerification:
		return "round3_share_verification"
	case RoundComplaintResolution:
		return "round4_complaint_resolution"
	case RoundFinalize:
		return "finalize"
	case RoundDone:
		return "done"
	case RoundAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible
func (r Round) Terminal() bool {
	return r == RoundDone || r == RoundAborted
}

// state is one variant of the participant state machine. Each variant
// carries only what the next transition needs.
type state interface {
	round() Round
}

// dealing is the participant's own secret contribution. It travels through
// the variants until Finalize or Abort wipes it.
type dealing struct {
	poly  *math.Polynomial
	blind *math.Polynomial // Pedersen only

	// published is broadcast in round 1: Feldman or Pedersen commitments
	published commitment.Vector

	// feldman is coefficient*G; equal to published in Feldman mode
	feldman commitment.Vector

	// proof of knowledge of poly's constant term, nil in refresh mode
	proof *zk.SchnorrProof
}

func (d *dealing) Zeroize() {
	if d == nil {
		return
	}
	if d.poly != nil {
		d.poly.Zeroize()
	}
	if d.blind != nil {
		d.blind.Zeroize()
	}
}

type initState struct {
	dealing *dealing
}

// round1State: commitments broadcast, waiting for the peers' commitments
type round1State struct {
	dealing *dealing
}

// round2State: shares sent, waiting for shares and decommitments
type round2State struct {
	dealing *dealing
}

// round3State: shares verified, waiting for complaints
type round3State struct {
	dealing    *dealing
	complaints []Complaint
}

// round4State: complaints known, waiting for disclosures
type round4State struct {
	dealing     *dealing
	complaints  []Complaint
	disclosures []Disclosure
}

// finalizeState: key computed, waiting for confirmations
type finalizeState struct {
	output *Output
	digest []byte
}

type doneState struct {
	output *Output
}

type abortedState struct {
	from Round
	err  error
}

func (*initState) round() Round     { return RoundInit }
func (*round1State) round() Round   { return RoundBroadcast }
func (*round2State) round() Round   { return RoundShareDistribution }
func (*round3State) round() Round   { return RoundShareVerification }
func (*round4State) round() Round   { return RoundComplaintResolution }
func (*finalizeState) round() Round { return RoundFinalize }
func (*doneState) round() Round     { return RoundDone }
func (*abortedState) round() Round  { return RoundAborted }

// peerStatus tracks how a peer's dealing has fared so far
type peerStatus int

const (
	peerActive peerStatus = iota
	peerAccused
	peerExcluded
)

// peerRecord accumulates what a participant learned about one dealer.
// The participant keeps a record for itself as well.
type peerRecord struct {
	id     uint32
	status peerStatus
	reason string

	published commitment.Vector
	feldman   commitment.Vector

	// share and blind are the evaluations of this dealer's polynomials at
	// our own identifier
	share *math.Share
	blind *math.Share
}

func (r *peerRecord) Zeroize() {
	if r.share != nil {
		r.share.Zeroize()
	}
	if r.blind != nil {
		r.blind.Zeroize()
	}
}

func (r *peerRecord) excluded() bool { return r.status == peerExcluded }
