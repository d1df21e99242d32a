package keygen

import (
	"github.com/Caqil/gennaro-dkg/pkg/crypto/commitment"
	"github.com/Caqil/gennaro-dkg/pkg/crypto/curve"
	"github.com/Caqil/gennaro-dkg/pkg/zk"
)

// Round1Broadcast carries a dealer's round-1 commitments. In Feldman mode
// it also carries the proof of knowledge of the constant term.
type Round1Broadcast struct {
	Sender      uint32
	Commitments commitment.Vector
	Proof       *zk.SchnorrProof
}

// Round2Broadcast is the Pedersen decommitment: the Feldman commitments of
// the dealer's polynomial and the proof of knowledge. It is nil in Feldman mode.
type Round2Broadcast struct {
	Sender      uint32
	Commitments commitment.Vector
	Proof       *zk.SchnorrProof
}

// Round2P2P carries one share, encrypted for its recipient
type Round2P2P struct {
	Sender     uint32
	Recipient  uint32
	Ciphertext []byte
}

// Round3Broadcast lists the complaints filed by Sender. An empty list is
// still broadcast.
type Round3Broadcast struct {
	Sender     uint32
	Complaints []Complaint
}

// Round4Broadcast lists Sender's answers to complaints filed against it
type Round4Broadcast struct {
	Sender      uint32
	Disclosures []Disclosure
}

// Round5Broadcast echoes the finalized key so that participants can detect
// divergent views of the session
type Round5Broadcast struct {
	Sender    uint32
	PublicKey curve.Point
	Digest    []byte
}

// ComplaintReason says why a share was rejected
type ComplaintReason string

const (
	ReasonMissingShare   ComplaintReason = "missing_share"
	ReasonDecryption     ComplaintReason = "decryption_failed"
	ReasonMalformedShare ComplaintReason = "malformed_share"
	ReasonShareMismatch  ComplaintReason = "share_mismatch"
)

// Complaint accuses a dealer of not delivering a valid share. Round is the
// round the complaint was filed in, always RoundShareVerification.
type Complaint struct {
	Accuser uint32
	Accused uint32
	Round   Round
	Reason  ComplaintReason
}

// Disclosure publicly reveals the share the accused dealt to Accuser.
// Blind is set in Pedersen mode only.
type Disclosure struct {
	Accuser uint32
	Share   curve.Scalar
	Blind   curve.Scalar
}

type complaintKey struct {
	accuser, accused uint32
}

func (c Complaint) key() complaintKey {
	return complaintKey{accuser: c.Accuser, accused: c.Accused}
}
