package keygen

import (
	"fmt"

	"github.com/Caqil/gennaro-dkg/internal/math"
	"github.com/Caqil/gennaro-dkg/internal/security"
	"github.com/Caqil/gennaro-dkg/pkg/crypto/commitment"
	"github.com/Caqil/gennaro-dkg/pkg/crypto/curve"
)

// Round3 checks the Pedersen decommitments, decrypts and verifies every
// share addressed to this participant and broadcasts a complaint against
// each dealer whose share is missing or wrong. The broadcast is sent even
// when it lists no complaints.
// Round2_ShareDistribution -> Round3_ShareVerification.
func (p *Participant) Round3(decommits map[uint32]*Round2Broadcast, shares map[uint32]*Round2P2P) (*Round3Broadcast, error) {
	s, err := expect[*round2State](p, RoundShareDistribution)
	if err != nil {
		return nil, err
	}
	const round = RoundShareDistribution

	if p.params.Scheme == SchemePedersen {
		auditUnknown(p, round, decommits)
		for _, id := range p.active() {
			p.checkDecommitment(id, decommits[id])
		}
	}

	auditUnknown(p, round, shares)

	var complaints []Complaint
	for _, id := range p.active() {
		reason, detail := p.acceptShare(id, shares[id])
		if reason == "" {
			continue
		}
		complaints = append(complaints, Complaint{Accuser: p.id, Accused: id, Round: RoundShareVerification, Reason: reason})
		p.peers[id].status = peerAccused

		event := EventShareInvalid
		if reason == ReasonMissingShare {
			event = EventShareMissing
		}
		p.audit.record(round, event, id, p.id, detail)
		p.log.WarnEvent().
			Uint32("dealer", id).
			Str("reason", string(reason)).
			Msg("complaint filed")
	}

	p.state = &round3State{dealing: s.dealing, complaints: complaints}
	p.log.DebugEvent().Int("complaints", len(complaints)).Msg("round 3 complete")

	return &Round3Broadcast{Sender: p.id, Complaints: cloneComplaints(complaints)}, nil
}

// checkDecommitment verifies that a Pedersen dealer opened its Feldman
// commitments and proved knowledge of the constant term. Failures exclude
// the dealer outright.
func (p *Participant) checkDecommitment(id uint32, msg *Round2Broadcast) {
	const round = RoundShareDistribution
	switch {
	case msg == nil:
		p.exclude(round, id, EventDecommitMissing, "no decommitment")
		return
	case msg.Sender != id:
		p.exclude(round, id, EventSenderMismatch, fmt.Sprintf("decommitment claims sender %d", msg.Sender))
		return
	}
	if err := msg.Commitments.Validate(p.params.Threshold, p.refresh); err != nil {
		p.exclude(round, id, EventDecommitInvalid, err.Error())
		return
	}
	if !p.refresh && !msg.Proof.Verify(p.group, msg.Commitments.Constant(), p.proofContext(id)) {
		p.exclude(round, id, EventProofInvalid, "proof of knowledge rejected")
		return
	}
	p.peers[id].feldman = msg.Commitments.Clone(p.group)
}

// acceptShare opens and verifies the share dealt by id. It returns an empty
// reason when the share was stored.
func (p *Participant) acceptShare(id uint32, msg *Round2P2P) (ComplaintReason, string) {
	switch {
	case msg == nil:
		return ReasonMissingShare, "no share received"
	case msg.Sender != id || msg.Recipient != p.id:
		return ReasonMissingShare, fmt.Sprintf("share addressed from %d to %d", msg.Sender, msg.Recipient)
	}

	plaintext, err := p.cipher.Open(id, p.id, msg.Ciphertext)
	if err != nil {
		return ReasonDecryption, err.Error()
	}
	defer security.SecureZero(plaintext)

	share, blind, err := p.decodeShare(plaintext)
	if err != nil {
		return ReasonMalformedShare, err.Error()
	}

	if !p.verifyShare(id, p.id, share, blind) {
		security.ZeroScalars(share, blind)
		return ReasonShareMismatch, "share does not match commitments"
	}

	rec := p.peers[id]
	rec.share = &math.Share{ID: p.id, Value: share}
	if blind != nil {
		rec.blind = &math.Share{ID: p.id, Value: blind}
	}
	return "", ""
}

func (p *Participant) decodeShare(plaintext []byte) (curve.Scalar, curve.Scalar, error) {
	n := p.group.ScalarLen()
	want := n
	if p.params.Scheme == SchemePedersen {
		want = 2 * n
	}
	if len(plaintext) != want {
		return nil, nil, fmt.Errorf("share length %d, want %d", len(plaintext), want)
	}

	share, err := p.group.NewScalar().SetBytes(plaintext[:n])
	if err != nil {
		return nil, nil, err
	}
	if p.params.Scheme == SchemeFeldman {
		return share, nil, nil
	}
	blind, err := p.group.NewScalar().SetBytes(plaintext[n:])
	if err != nil {
		share.Zero()
		return nil, nil, err
	}
	return share, blind, nil
}

// verifyShare checks a share dealt by dealer to holder against the
// dealer's public commitments. In Pedersen mode both the hiding commitment
// and the decommitted Feldman vector must agree.
func (p *Participant) verifyShare(dealer, holder uint32, share, blind curve.Scalar) bool {
	rec := p.peers[dealer]
	if rec.feldman == nil || !commitment.VerifyFeldman(p.group, rec.feldman, holder, share) {
		return false
	}
	if p.params.Scheme == SchemePedersen {
		return p.pedersen.VerifyPedersen(rec.published, holder, share, blind)
	}
	return true
}

func cloneComplaints(in []Complaint) []Complaint {
	if len(in) == 0 {
		return []Complaint{}
	}
	out := make([]Complaint, len(in))
	copy(out, in)
	return out
}
