package keygen

import (
	"errors"
	"fmt"

	"github.com/Caqil/gennaro-dkg/internal/security"
	"github.com/Caqil/gennaro-dkg/pkg/crypto/commitment"
	"github.com/Caqil/gennaro-dkg/pkg/crypto/curve"
	"github.com/Caqil/gennaro-dkg/pkg/crypto/hash"
)

var errMissingContribution = errors.New("qualified dealer has no verified share")

// Finalize resolves the complaints using the disclosures, fixes the
// qualified set and derives the group key and this participant's secret
// share. The returned broadcast echoes the key and a transcript digest for
// the confirmation round.
// Round4_ComplaintResolution -> Finalize.
func (p *Participant) Finalize(disclosures map[uint32]*Round4Broadcast) (*Round5Broadcast, error) {
	s, err := expect[*round4State](p, RoundComplaintResolution)
	if err != nil {
		return nil, err
	}
	const round = RoundComplaintResolution

	// polynomials and received shares are not needed past this point
	defer p.wipeShares()
	defer s.dealing.Zeroize()

	auditUnknown(p, round, disclosures)

	index := p.indexDisclosures(s.complaints, s.disclosures, disclosures)
	p.applyResolutions(p.resolveComplaints(s.complaints, index))
	p.applyQuorum(s.complaints)

	qualified := p.qualified()
	if len(qualified) < p.params.Threshold {
		return nil, p.abort(fmt.Errorf("%w: %d qualified, threshold %d",
			ErrInsufficientParticipants, len(qualified), p.params.Threshold))
	}

	out, digest, err := p.aggregate(qualified)
	if err != nil {
		return nil, p.abort(err)
	}

	p.state = &finalizeState{output: out, digest: digest}
	p.audit.record(RoundFinalize, EventKeyFinalized, p.id, 0, fmt.Sprintf("%d qualified", len(qualified)))
	p.log.InfoEvent().
		Int("qualified", len(qualified)).
		Int("excluded", len(out.Excluded)).
		Hex("public_key", out.PublicKey.Bytes()).
		Msg("key finalized")

	return &Round5Broadcast{
		Sender:    p.id,
		PublicKey: p.group.NewPoint().Set(out.PublicKey),
		Digest:    append([]byte(nil), digest...),
	}, nil
}

// aggregate sums the qualified dealers' contributions
func (p *Participant) aggregate(qualified []uint32) (*Output, []byte, error) {
	g := p.group

	vectors := make([]commitment.Vector, 0, len(qualified))
	secret := g.NewScalar()
	for _, id := range qualified {
		rec := p.peers[id]
		if rec.share == nil || rec.feldman == nil {
			secret.Zero()
			return nil, nil, fmt.Errorf("%w: dealer %d", errMissingContribution, id)
		}
		vectors = append(vectors, rec.feldman)
		secret.Add(secret, rec.share.Value)
	}

	joint, err := commitment.Sum(g, vectors...)
	if err != nil {
		secret.Zero()
		return nil, nil, err
	}

	// the summed commitments must agree with the summed shares
	if !g.NewPoint().ScalarBaseMult(secret).Equal(joint.EvaluateAt(g, p.id)) {
		secret.Zero()
		return nil, nil, fmt.Errorf("%w: secret share does not match joint commitments", ErrEquivocation)
	}

	verification := make(map[uint32]curve.Point, p.params.N())
	for _, id := range p.params.Participants {
		verification[id] = joint.EvaluateAt(g, id)
	}

	out := &Output{
		ID:                 p.id,
		Group:              g,
		Threshold:          p.params.Threshold,
		SessionID:          append([]byte(nil), p.params.SessionID...),
		PublicKey:          g.NewPoint().Set(joint.Constant()),
		SecretShare:        secret,
		VerificationShares: verification,
		Qualified:          qualified,
		Excluded:           p.Excluded(),
		Refresh:            p.refresh,
	}

	return out, p.transcriptDigest(qualified), nil
}

// transcriptDigest binds the session, the qualified set and every
// qualified dealer's Feldman commitments
func (p *Participant) transcriptDigest(qualified []uint32) []byte {
	t := hash.NewTranscript(transcriptLabel).
		AppendMessage("session", p.params.SessionID).
		AppendMessage("curve", []byte(p.group.Name())).
		AppendUint32("threshold", uint32(p.params.Threshold)).
		AppendMessage("scheme", []byte(p.params.Scheme.String()))
	for _, id := range qualified {
		t.AppendUint32("dealer", id)
		t.AppendPoints("commitments", p.peers[id].feldman...)
	}
	return t.Digest()
}

// Confirm compares the keys echoed by the qualified peers with our own.
// Any disagreement is fatal; a missing echo is only recorded.
// Finalize -> Done.
func (p *Participant) Confirm(confirmations map[uint32]*Round5Broadcast) (*Output, error) {
	s, err := expect[*finalizeState](p, RoundFinalize)
	if err != nil {
		return nil, err
	}
	const round = RoundFinalize

	auditUnknown(p, round, confirmations)

	var mismatched []uint32
	for _, id := range s.output.Qualified {
		if id == p.id {
			continue
		}
		msg := confirmations[id]
		switch {
		case msg == nil:
			p.audit.record(round, EventConfirmationMissing, id, 0, "no key confirmation")
			p.log.WarnEvent().Uint32("peer", id).Msg("key confirmation missing")
		case msg.Sender != id:
			p.audit.record(round, EventSenderMismatch, id, 0, fmt.Sprintf("confirmation claims sender %d", msg.Sender))
			p.audit.record(round, EventConfirmationMissing, id, 0, "no attributable confirmation")
		case !p.sameKey(msg, s):
			mismatched = append(mismatched, id)
			p.audit.record(round, EventKeyMismatch, id, 0, "public key or transcript differs")
		default:
			p.audit.record(round, EventKeyConfirmed, id, 0, "")
		}
	}

	if len(mismatched) > 0 {
		return nil, p.abort(fmt.Errorf("%w: participants %v disagree", ErrEquivocation, mismatched))
	}

	out := s.output
	p.state = &doneState{output: out}
	out.Audit = p.audit.snapshot()
	p.log.InfoEvent().Int("qualified", len(out.Qualified)).Msg("key generation complete")

	return out, nil
}

func (p *Participant) sameKey(msg *Round5Broadcast, s *finalizeState) bool {
	if msg.PublicKey == nil {
		return false
	}
	sameDigest := security.ConstantTimeCompare(msg.Digest, s.digest)
	return msg.PublicKey.Equal(s.output.PublicKey) && sameDigest
}
