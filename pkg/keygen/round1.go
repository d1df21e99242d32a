package keygen

import (
	"fmt"

	"github.com/Caqil/gennaro-dkg/internal/math"
	"github.com/Caqil/gennaro-dkg/internal/security"
)

// Round1 broadcasts the participant's commitments.
// Init -> Round1_Broadcast.
func (p *Participant) Round1() (*Round1Broadcast, error) {
	s, err := expect[*initState](p, RoundInit)
	if err != nil {
		return nil, err
	}
	d := s.dealing

	self := p.peers[p.id]
	self.published = d.published.Clone(p.group)
	self.feldman = d.feldman.Clone(p.group)

	msg := &Round1Broadcast{
		Sender:      p.id,
		Commitments: d.published.Clone(p.group),
	}
	if p.params.Scheme == SchemeFeldman {
		msg.Proof = d.proof
	}

	p.state = &round1State{dealing: d}
	p.log.DebugEvent().Int("commitments", len(msg.Commitments)).Msg("round 1 complete")

	return msg, nil
}

// Round2 validates the peers' commitments and deals one encrypted share to
// every peer still in the set. In Pedersen mode it also returns the
// decommitment broadcast; in Feldman mode that value is nil.
// Round1_Broadcast -> Round2_ShareDistribution.
func (p *Participant) Round2(commitments map[uint32]*Round1Broadcast) (*Round2Broadcast, map[uint32]*Round2P2P, error) {
	s, err := expect[*round1State](p, RoundBroadcast)
	if err != nil {
		return nil, nil, err
	}
	d := s.dealing
	const round = RoundBroadcast

	auditUnknown(p, round, commitments)

	for _, id := range p.others() {
		msg, ok := commitments[id]
		switch {
		case !ok || msg == nil:
			p.exclude(round, id, EventCommitmentMissing, "no round 1 broadcast")
			continue
		case msg.Sender != id:
			p.exclude(round, id, EventSenderMismatch, fmt.Sprintf("broadcast claims sender %d", msg.Sender))
			continue
		}

		// Pedersen commitments hide the constant term, so only Feldman
		// commitments can be checked for the refresh shape here
		zeroConstant := p.refresh && p.params.Scheme == SchemeFeldman
		if err := msg.Commitments.Validate(p.params.Threshold, zeroConstant); err != nil {
			p.exclude(round, id, EventCommitmentInvalid, err.Error())
			continue
		}
		if p.params.Scheme == SchemeFeldman && !p.refresh {
			if !msg.Proof.Verify(p.group, msg.Commitments.Constant(), p.proofContext(id)) {
				p.exclude(round, id, EventProofInvalid, "proof of knowledge rejected")
				continue
			}
		}

		rec := p.peers[id]
		rec.published = msg.Commitments.Clone(p.group)
		if p.params.Scheme == SchemeFeldman {
			rec.feldman = rec.published
		}
	}

	// our own share is kept locally and never travels
	self := p.peers[p.id]
	self.share = &math.Share{ID: p.id, Value: d.poly.EvaluateAt(p.id)}
	if d.blind != nil {
		self.blind = &math.Share{ID: p.id, Value: d.blind.EvaluateAt(p.id)}
	}

	shares := make(map[uint32]*Round2P2P, p.params.N()-1)
	for _, id := range p.active() {
		ct, err := p.sealShare(d, id)
		if err != nil {
			return nil, nil, p.abort(fmt.Errorf("%w: to %d: %v", ErrEncryption, id, err))
		}
		shares[id] = &Round2P2P{Sender: p.id, Recipient: id, Ciphertext: ct}
	}

	var decommit *Round2Broadcast
	if p.params.Scheme == SchemePedersen {
		decommit = &Round2Broadcast{
			Sender:      p.id,
			Commitments: d.feldman.Clone(p.group),
			Proof:       d.proof,
		}
	}

	p.state = &round2State{dealing: d}
	p.log.DebugEvent().
		Int("shares", len(shares)).
		Int("excluded", len(p.Excluded())).
		Msg("round 2 complete")

	return decommit, shares, nil
}

func (p *Participant) sealShare(d *dealing, to uint32) ([]byte, error) {
	share := d.poly.EvaluateAt(to)
	defer share.Zero()
	shareBytes := share.Bytes()

	var blindBytes []byte
	if d.blind != nil {
		blind := d.blind.EvaluateAt(to)
		defer blind.Zero()
		blindBytes = blind.Bytes()
	}
	plaintext := encodeShare(shareBytes, blindBytes)
	defer security.Wipe(security.Bytes(shareBytes), security.Bytes(blindBytes), security.Bytes(plaintext))

	return p.cipher.Seal(p.id, to, plaintext)
}
