package keygen

import (
	"bytes"
	crand "crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"testing"

	"github.com/Caqil/gennaro-dkg/pkg/crypto/commitment"
	"github.com/Caqil/gennaro-dkg/pkg/crypto/curve"
	"github.com/Caqil/gennaro-dkg/pkg/crypto/rand"
)

var errOpen = errors.New("ciphertext not addressed to this pair")

// testCipher frames plaintexts with the sender and recipient. It is not
// confidential; the network package provides the real channel.
type testCipher struct{}

func (testCipher) Seal(from, to uint32, plaintext []byte) ([]byte, error) {
	out := make([]byte, 8, 8+len(plaintext))
	binary.BigEndian.PutUint32(out[:4], from)
	binary.BigEndian.PutUint32(out[4:], to)
	return append(out, plaintext...), nil
}

func (testCipher) Open(from, to uint32, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < 8 ||
		binary.BigEndian.Uint32(ciphertext[:4]) != from ||
		binary.BigEndian.Uint32(ciphertext[4:8]) != to {
		return nil, errOpen
	}
	return bytes.Clone(ciphertext[8:]), nil
}

// tamper rewrites or drops a message on its way from one participant to
// another. A nil hook delivers unchanged.
type tamper struct {
	round1      func(from, to uint32, m *Round1Broadcast) *Round1Broadcast
	decommit    func(from, to uint32, m *Round2Broadcast) *Round2Broadcast
	share       func(from, to uint32, m *Round2P2P) *Round2P2P
	complaints  func(from, to uint32, m *Round3Broadcast) *Round3Broadcast
	disclosures func(from, to uint32, m *Round4Broadcast) *Round4Broadcast
	confirm     func(from, to uint32, m *Round5Broadcast) *Round5Broadcast
}

type scenario struct {
	curve   curve.CurveType
	n, t    int
	scheme  Scheme
	policy  DismissalPolicy
	quorum  int
	seed    []byte
	refresh bool

	// offline participants are constructed but never send anything
	offline map[uint32]bool
}

type session struct {
	params  Parameters
	ids     []uint32
	parts   map[uint32]*Participant
	offline map[uint32]bool

	round1  map[uint32]*Round1Broadcast
	outputs map[uint32]*Output
	errs    map[uint32]error
}

func rosterOf(n int) []uint32 {
	ids := make([]uint32, n)
	for i := range ids {
		ids[i] = uint32(i + 1)
	}
	return ids
}

func (sc scenario) setup(t *testing.T) *session {
	t.Helper()

	ids := rosterOf(sc.n)
	params := Parameters{
		Group:           curve.MustGroup(sc.curve),
		Threshold:       sc.t,
		Participants:    ids,
		Scheme:          sc.scheme,
		Dismissal:       sc.policy,
		ComplaintQuorum: sc.quorum,
		SessionID:       []byte("test-session"),
	}

	s := &session{
		params:  params,
		ids:     ids,
		parts:   make(map[uint32]*Participant, sc.n),
		offline: sc.offline,
		outputs: make(map[uint32]*Output),
		errs:    make(map[uint32]error),
	}
	for _, id := range ids {
		opts := []Option{WithCipher(testCipher{})}
		if sc.seed != nil {
			r, err := rand.DeriveReader(sc.seed, fmt.Sprintf("participant-%d", id))
			if err != nil {
				t.Fatalf("DeriveReader failed: %v", err)
			}
			opts = append(opts, WithRand(r))
		}
		if sc.refresh {
			opts = append(opts, WithRefresh())
		}
		p, err := NewParticipant(params, id, opts...)
		if err != nil {
			t.Fatalf("NewParticipant(%d) failed: %v", id, err)
		}
		s.parts[id] = p
	}
	return s
}

func (s *session) alive(id uint32) bool {
	return !s.offline[id] && s.errs[id] == nil
}

// deliver builds the inbound map of one recipient from every sender's
// outbound message
func deliver[T any](sent map[uint32]*T, to uint32, hook func(from, to uint32, m *T) *T) map[uint32]*T {
	in := make(map[uint32]*T, len(sent))
	for from, m := range sent {
		if hook != nil && from != to {
			m = hook(from, to, m)
		}
		if m == nil {
			continue
		}
		in[from] = m
	}
	return in
}

// run drives every online participant through the whole protocol
func (s *session) run(t *testing.T, tp tamper) {
	t.Helper()

	out1 := make(map[uint32]*Round1Broadcast)
	for _, id := range s.ids {
		if !s.alive(id) {
			continue
		}
		m, err := s.parts[id].Round1()
		if err != nil {
			s.errs[id] = err
			continue
		}
		out1[id] = m
	}
	s.round1 = out1

	out2b := make(map[uint32]*Round2Broadcast)
	out2p := make(map[uint32]map[uint32]*Round2P2P)
	for _, id := range s.ids {
		if !s.alive(id) {
			continue
		}
		b, shares, err := s.parts[id].Round2(deliver(out1, id, tp.round1))
		if err != nil {
			s.errs[id] = err
			continue
		}
		if b != nil {
			out2b[id] = b
		}
		out2p[id] = shares
	}

	out3 := make(map[uint32]*Round3Broadcast)
	for _, id := range s.ids {
		if !s.alive(id) {
			continue
		}
		inbound := make(map[uint32]*Round2P2P)
		for from, shares := range out2p {
			m, ok := shares[id]
			if !ok {
				continue
			}
			if tp.share != nil {
				m = tp.share(from, id, m)
			}
			if m != nil {
				inbound[from] = m
			}
		}
		m, err := s.parts[id].Round3(deliver(out2b, id, tp.decommit), inbound)
		if err != nil {
			s.errs[id] = err
			continue
		}
		out3[id] = m
	}

	out4 := make(map[uint32]*Round4Broadcast)
	for _, id := range s.ids {
		if !s.alive(id) {
			continue
		}
		m, err := s.parts[id].Round4(deliver(out3, id, tp.complaints))
		if err != nil {
			s.errs[id] = err
			continue
		}
		out4[id] = m
	}

	out5 := make(map[uint32]*Round5Broadcast)
	for _, id := range s.ids {
		if !s.alive(id) {
			continue
		}
		m, err := s.parts[id].Finalize(deliver(out4, id, tp.disclosures))
		if err != nil {
			s.errs[id] = err
			continue
		}
		out5[id] = m
	}

	for _, id := range s.ids {
		if !s.alive(id) {
			continue
		}
		out, err := s.parts[id].Confirm(deliver(out5, id, tp.confirm))
		if err != nil {
			s.errs[id] = err
			continue
		}
		s.outputs[id] = out
	}
}

// expectedKey sums the constant commitments of the given dealers as
// broadcast in round 1 (Feldman mode only)
func (s *session) expectedKey(dealers []uint32) curve.Point {
	g := s.params.Group
	pk := g.NewPoint()
	for _, id := range dealers {
		pk.Add(pk, s.round1[id].Commitments.Constant())
	}
	return pk
}

func (s *session) requireConsistent(t *testing.T, ids []uint32) curve.Point {
	t.Helper()
	var pk curve.Point
	for _, id := range ids {
		out, ok := s.outputs[id]
		if !ok {
			t.Fatalf("participant %d has no output: %v", id, s.errs[id])
		}
		if !out.VerifyShare() {
			t.Errorf("participant %d secret share does not match its verification share", id)
		}
		if pk == nil {
			pk = out.PublicKey
			continue
		}
		if !out.PublicKey.Equal(pk) {
			t.Errorf("participant %d has a different public key", id)
		}
	}
	return pk
}

func randomScalar(t *testing.T, g curve.Group) curve.Scalar {
	t.Helper()
	s, err := g.NewScalar().SetRandom(crand.Reader)
	if err != nil {
		t.Fatalf("SetRandom failed: %v", err)
	}
	return s
}

// corruptShare replaces the share inside a testCipher frame with a random
// scalar, keeping any blind share
func corruptShare(t *testing.T, g curve.Group, m *Round2P2P) *Round2P2P {
	t.Helper()
	ct := bytes.Clone(m.Ciphertext)
	copy(ct[8:8+g.ScalarLen()], randomScalar(t, g).Bytes())
	return &Round2P2P{Sender: m.Sender, Recipient: m.Recipient, Ciphertext: ct}
}

func forgedCommitments(t *testing.T, g curve.Group, n int) commitment.Vector {
	t.Helper()
	v := make(commitment.Vector, n)
	for i := range v {
		v[i] = g.NewPoint().ScalarBaseMult(randomScalar(t, g))
	}
	return v
}

func without(ids []uint32, drop ...uint32) []uint32 {
	var out []uint32
	for _, id := range ids {
		keep := true
		for _, d := range drop {
			if id == d {
				keep = false
			}
		}
		if keep {
			out = append(out, id)
		}
	}
	return out
}

func hasEvent(entries []AuditEntry, event AuditEvent, subject uint32) bool {
	for _, e := range entries {
		if e.Event == event && e.Subject == subject {
			return true
		}
	}
	return false
}
