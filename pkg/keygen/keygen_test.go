package keygen

import (
	"bytes"
	"errors"
	"slices"
	"testing"

	"github.com/Caqil/gennaro-dkg/pkg/crypto/curve"
)

var testCurves = []curve.CurveType{curve.Secp256k1, curve.Ed25519, curve.BabyJubjub}

// TestHonestRun tests a 3-of-5 run with no faults on every curve
func TestHonestRun(t *testing.T) {
	for _, ct := range testCurves {
		t.Run(ct.String(), func(t *testing.T) {
			s := scenario{curve: ct, n: 5, t: 3}.setup(t)
			s.run(t, tamper{})

			pk := s.requireConsistent(t, s.ids)
			if pk.IsIdentity() {
				t.Fatal("group key is the identity")
			}
			if !pk.Equal(s.expectedKey(s.ids)) {
				t.Error("group key is not the sum of the constant commitments")
			}

			for _, out := range s.outputs {
				if len(out.Qualified) != 5 || len(out.Excluded) != 0 {
					t.Errorf("participant %d: qualified %v excluded %v", out.ID, out.Qualified, out.Excluded)
				}
			}

			g := s.params.Group
			subsets := [][]uint32{{1, 2, 3}, {3, 4, 5}, {1, 3, 5}, {5, 2, 4}}
			for _, subset := range subsets {
				outs := make([]*Output, len(subset))
				for i, id := range subset {
					outs[i] = s.outputs[id]
				}
				secret, err := ReconstructSecret(outs)
				if err != nil {
					t.Fatalf("ReconstructSecret(%v) failed: %v", subset, err)
				}
				if !g.NewPoint().ScalarBaseMult(secret).Equal(pk) {
					t.Errorf("subset %v reconstructs a secret that does not match the group key", subset)
				}

				fromShares, err := s.outputs[1].PublicKeyFromShares(subset)
				if err != nil {
					t.Fatalf("PublicKeyFromShares failed: %v", err)
				}
				if !fromShares.Equal(pk) {
					t.Errorf("verification shares of %v do not interpolate to the group key", subset)
				}
			}

			if _, err := ReconstructSecret([]*Output{s.outputs[1], s.outputs[2]}); err == nil {
				t.Error("reconstruction from fewer than t shares should fail")
			}
		})
	}
}

// TestPedersenRun tests the hiding commitment variant
func TestPedersenRun(t *testing.T) {
	for _, ct := range testCurves {
		t.Run(ct.String(), func(t *testing.T) {
			s := scenario{curve: ct, n: 4, t: 2, scheme: SchemePedersen}.setup(t)
			s.run(t, tamper{})

			pk := s.requireConsistent(t, s.ids)
			secret, err := ReconstructSecret([]*Output{s.outputs[2], s.outputs[4]})
			if err != nil {
				t.Fatalf("ReconstructSecret failed: %v", err)
			}
			if !s.params.Group.NewPoint().ScalarBaseMult(secret).Equal(pk) {
				t.Error("reconstructed secret does not match the group key")
			}
		})
	}
}

// TestThresholdOne tests the degenerate t=1 case where every share is the key
func TestThresholdOne(t *testing.T) {
	s := scenario{curve: curve.Ed25519, n: 3, t: 1}.setup(t)
	s.run(t, tamper{})

	pk := s.requireConsistent(t, s.ids)
	g := s.params.Group
	for id, out := range s.outputs {
		if !g.NewPoint().ScalarBaseMult(out.SecretShare).Equal(pk) {
			t.Errorf("participant %d: with t=1 the share is the secret", id)
		}
	}
}

// TestBadShareExcluded tests that a dealer who sends a wrong share and
// cannot justify it is excluded by everyone else
func TestBadShareExcluded(t *testing.T) {
	s := scenario{curve: curve.Secp256k1, n: 5, t: 3}.setup(t)
	g := s.params.Group

	s.run(t, tamper{
		share: func(from, to uint32, m *Round2P2P) *Round2P2P {
			if from == 2 && to == 1 {
				return corruptShare(t, g, m)
			}
			return m
		},
		disclosures: func(from, to uint32, m *Round4Broadcast) *Round4Broadcast {
			if from != 2 {
				return m
			}
			forged := &Round4Broadcast{Sender: m.Sender}
			for _, d := range m.Disclosures {
				forged.Disclosures = append(forged.Disclosures, Disclosure{Accuser: d.Accuser, Share: randomScalar(t, g)})
			}
			return forged
		},
	})

	honest := without(s.ids, 2)
	pk := s.requireConsistent(t, honest)
	if !pk.Equal(s.expectedKey(honest)) {
		t.Error("group key should be the sum over the remaining dealers")
	}
	for _, id := range honest {
		out := s.outputs[id]
		if !slices.Equal(out.Excluded, []uint32{2}) {
			t.Errorf("participant %d excluded %v, want [2]", id, out.Excluded)
		}
		if !hasEvent(out.Audit, EventComplaintUpheld, 2) {
			t.Errorf("participant %d has no complaint_upheld entry for 2", id)
		}
	}

	// the cheater's own view keeps itself in the set and fails to confirm
	if !errors.Is(s.errs[2], ErrEquivocation) {
		t.Errorf("dealer 2: expected ErrEquivocation, got %v", s.errs[2])
	}

	secret, err := ReconstructSecret([]*Output{s.outputs[1], s.outputs[4], s.outputs[5]})
	if err != nil {
		t.Fatalf("ReconstructSecret failed: %v", err)
	}
	if !g.NewPoint().ScalarBaseMult(secret).Equal(pk) {
		t.Error("reconstructed secret does not match the group key")
	}
}

// TestUnansweredComplaint tests that a dealer who stays silent in the
// complaint round is excluded
func TestUnansweredComplaint(t *testing.T) {
	s := scenario{curve: curve.Ed25519, n: 4, t: 2, scheme: SchemePedersen}.setup(t)

	s.run(t, tamper{
		share: func(from, to uint32, m *Round2P2P) *Round2P2P {
			if from == 3 && to == 4 {
				return nil
			}
			return m
		},
		disclosures: func(from, to uint32, m *Round4Broadcast) *Round4Broadcast {
			if from == 3 {
				return nil
			}
			return m
		},
	})

	honest := without(s.ids, 3)
	s.requireConsistent(t, honest)
	for _, id := range honest {
		out := s.outputs[id]
		if !hasEvent(out.Audit, EventComplaintUnanswered, 3) {
			t.Errorf("participant %d has no complaint_unanswered entry for 3", id)
		}
		if slices.Contains(out.Qualified, 3) {
			t.Errorf("participant %d kept dealer 3", id)
		}
	}
	if !hasEvent(s.outputs[4].Audit, EventShareMissing, 3) {
		t.Error("participant 4 should have recorded the missing share")
	}
}

// TestComplaintWrongRound tests that a complaint labelled with another round
// is ignored and forces no disclosure
func TestComplaintWrongRound(t *testing.T) {
	s := scenario{curve: curve.Ed25519, n: 4, t: 3}.setup(t)

	s.run(t, tamper{
		complaints: func(from, to uint32, m *Round3Broadcast) *Round3Broadcast {
			if from != 4 {
				return m
			}
			forged := *m
			forged.Complaints = append(forged.Complaints, Complaint{
				Accuser: 4,
				Accused: 1,
				Round:   RoundFinalize,
				Reason:  ReasonShareMismatch,
			})
			return &forged
		},
	})

	s.requireConsistent(t, s.ids)
	for _, id := range without(s.ids, 4) {
		out := s.outputs[id]
		if len(out.Excluded) != 0 {
			t.Errorf("participant %d excluded %v", id, out.Excluded)
		}
		if !hasEvent(out.Audit, EventComplaintIgnored, 1) {
			t.Errorf("participant %d has no complaint_ignored entry", id)
		}
		if hasEvent(out.Audit, EventComplaintFiled, 1) {
			t.Errorf("participant %d accepted the complaint", id)
		}
	}
}

// TestUnsolicitedDisclosure tests that a disclosure answering no complaint
// is dropped and does not replace the recipient's share
func TestUnsolicitedDisclosure(t *testing.T) {
	s := scenario{curve: curve.Secp256k1, n: 3, t: 2}.setup(t)
	g := s.params.Group

	s.run(t, tamper{
		disclosures: func(from, to uint32, m *Round4Broadcast) *Round4Broadcast {
			if from != 2 {
				return m
			}
			forged := *m
			forged.Disclosures = append(forged.Disclosures, Disclosure{Accuser: 1, Share: randomScalar(t, g)})
			return &forged
		},
	})

	s.requireConsistent(t, s.ids)
	for _, id := range []uint32{1, 3} {
		out := s.outputs[id]
		if !hasEvent(out.Audit, EventDisclosureUnsolicited, 2) {
			t.Errorf("participant %d has no disclosure_unsolicited entry", id)
		}
		if hasEvent(out.Audit, EventShareReplaced, 2) {
			t.Errorf("participant %d adopted an unsolicited share", id)
		}
	}
}

// TestDismissedComplaint tests that a valid disclosure clears the dealer and
// replaces the accuser's share
func TestDismissedComplaint(t *testing.T) {
	s := scenario{curve: curve.BabyJubjub, n: 4, t: 3}.setup(t)
	g := s.params.Group

	s.run(t, tamper{
		share: func(from, to uint32, m *Round2P2P) *Round2P2P {
			if from == 2 && to == 1 {
				return corruptShare(t, g, m)
			}
			return m
		},
	})

	pk := s.requireConsistent(t, s.ids)
	for _, out := range s.outputs {
		if len(out.Excluded) != 0 {
			t.Errorf("participant %d excluded %v", out.ID, out.Excluded)
		}
		if !hasEvent(out.Audit, EventComplaintDismissed, 2) {
			t.Errorf("participant %d has no complaint_dismissed entry", out.ID)
		}
	}
	if !hasEvent(s.outputs[1].Audit, EventShareReplaced, 2) {
		t.Error("accuser should adopt the disclosed share")
	}

	secret, err := ReconstructSecret([]*Output{s.outputs[1], s.outputs[2], s.outputs[3]})
	if err != nil {
		t.Fatalf("ReconstructSecret failed: %v", err)
	}
	if !g.NewPoint().ScalarBaseMult(secret).Equal(pk) {
		t.Error("accuser's adopted share is not consistent with the key")
	}
}

// TestDismissalPolicy tests both policies against a dealer whose shares
// were damaged for two recipients but whose disclosures verify
func TestDismissalPolicy(t *testing.T) {
	damage := func(t *testing.T, g curve.Group) tamper {
		return tamper{
			share: func(from, to uint32, m *Round2P2P) *Round2P2P {
				if from == 2 && (to == 1 || to == 3) {
					return corruptShare(t, g, m)
				}
				return m
			},
		}
	}

	t.Run("verify", func(t *testing.T) {
		s := scenario{curve: curve.Secp256k1, n: 5, t: 3}.setup(t)
		s.run(t, damage(t, s.params.Group))

		s.requireConsistent(t, s.ids)
		for _, out := range s.outputs {
			if !slices.Contains(out.Qualified, 2) {
				t.Errorf("participant %d excluded a dealer whose disclosures verify", out.ID)
			}
		}
	})

	t.Run("quorum", func(t *testing.T) {
		s := scenario{curve: curve.Secp256k1, n: 5, t: 3, policy: DismissBelowQuorum, quorum: 2}.setup(t)
		s.run(t, damage(t, s.params.Group))

		pk := s.requireConsistent(t, s.ids)
		if !pk.Equal(s.expectedKey([]uint32{1, 3, 4, 5})) {
			t.Error("group key should exclude the dealer accused by a quorum")
		}
		for _, out := range s.outputs {
			if slices.Contains(out.Qualified, 2) {
				t.Errorf("participant %d kept a dealer accused by a quorum", out.ID)
			}
			if !hasEvent(out.Audit, EventComplaintQuorum, 2) {
				t.Errorf("participant %d has no complaint_quorum entry", out.ID)
			}
		}
	})

	t.Run("below quorum", func(t *testing.T) {
		s := scenario{curve: curve.Secp256k1, n: 5, t: 3, policy: DismissBelowQuorum, quorum: 3}.setup(t)
		s.run(t, damage(t, s.params.Group))

		s.requireConsistent(t, s.ids)
		for _, out := range s.outputs {
			if !slices.Contains(out.Qualified, 2) {
				t.Errorf("participant %d excluded a dealer below the quorum", out.ID)
			}
		}
	})
}

// TestExclusionLimit tests that n-t exclusions still succeed and one more
// aborts everyone
func TestExclusionLimit(t *testing.T) {
	t.Run("n-t offline", func(t *testing.T) {
		s := scenario{curve: curve.Ed25519, n: 5, t: 3, offline: map[uint32]bool{4: true, 5: true}}.setup(t)
		s.run(t, tamper{})

		pk := s.requireConsistent(t, []uint32{1, 2, 3})
		if !pk.Equal(s.expectedKey([]uint32{1, 2, 3})) {
			t.Error("group key should only include the online dealers")
		}
		for _, id := range []uint32{1, 2, 3} {
			if !hasEvent(s.outputs[id].Audit, EventCommitmentMissing, 4) {
				t.Errorf("participant %d did not record the missing commitments", id)
			}
		}
	})

	t.Run("n-t+1 offline", func(t *testing.T) {
		s := scenario{curve: curve.Ed25519, n: 5, t: 3, offline: map[uint32]bool{3: true, 4: true, 5: true}}.setup(t)
		s.run(t, tamper{})

		for _, id := range []uint32{1, 2} {
			err := s.errs[id]
			if !errors.Is(err, ErrInsufficientParticipants) {
				t.Fatalf("participant %d: expected ErrInsufficientParticipants, got %v", id, err)
			}
			var abortErr *AbortError
			if !errors.As(err, &abortErr) || abortErr.Participant != id {
				t.Errorf("participant %d: expected an AbortError, got %T", id, err)
			}
			if FaultOf(err) != FaultInsufficient || !IsFatal(err) {
				t.Errorf("participant %d: wrong classification %s", id, FaultOf(err))
			}
			if s.parts[id].Round() != RoundAborted {
				t.Errorf("participant %d in %s, want aborted", id, s.parts[id].Round())
			}
		}
	})
}

// TestInvalidCommitments tests immediate exclusion for malformed round 1
// broadcasts
func TestInvalidCommitments(t *testing.T) {
	cases := []struct {
		name   string
		event  AuditEvent
		mutate func(t *testing.T, g curve.Group, m *Round1Broadcast) *Round1Broadcast
	}{
		{
			name:  "identity coefficient",
			event: EventCommitmentInvalid,
			mutate: func(t *testing.T, g curve.Group, m *Round1Broadcast) *Round1Broadcast {
				c := m.Commitments.Clone(g)
				c[1] = g.NewPoint()
				return &Round1Broadcast{Sender: m.Sender, Commitments: c, Proof: m.Proof}
			},
		},
		{
			name:  "short vector",
			event: EventCommitmentInvalid,
			mutate: func(t *testing.T, g curve.Group, m *Round1Broadcast) *Round1Broadcast {
				return &Round1Broadcast{Sender: m.Sender, Commitments: m.Commitments[:1], Proof: m.Proof}
			},
		},
		{
			name:  "bad proof",
			event: EventProofInvalid,
			mutate: func(t *testing.T, g curve.Group, m *Round1Broadcast) *Round1Broadcast {
				return &Round1Broadcast{Sender: m.Sender, Commitments: forgedCommitments(t, g, len(m.Commitments)), Proof: m.Proof}
			},
		},
		{
			name:  "wrong sender",
			event: EventSenderMismatch,
			mutate: func(t *testing.T, g curve.Group, m *Round1Broadcast) *Round1Broadcast {
				return &Round1Broadcast{Sender: 1, Commitments: m.Commitments, Proof: m.Proof}
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := scenario{curve: curve.Secp256k1, n: 4, t: 2}.setup(t)
			g := s.params.Group
			s.run(t, tamper{
				round1: func(from, to uint32, m *Round1Broadcast) *Round1Broadcast {
					if from == 3 {
						return tc.mutate(t, g, m)
					}
					return m
				},
			})

			honest := without(s.ids, 3)
			pk := s.requireConsistent(t, honest)
			if !pk.Equal(s.expectedKey(honest)) {
				t.Error("group key should exclude the faulty dealer")
			}
			for _, id := range honest {
				out := s.outputs[id]
				if !hasEvent(out.Audit, tc.event, 3) {
					t.Errorf("participant %d has no %s entry", id, tc.event)
				}
				// exclusion in round 1 is immediate, never through a complaint
				if hasEvent(out.Audit, EventComplaintFiled, 3) {
					t.Errorf("participant %d filed a complaint against an excluded dealer", id)
				}
			}
			if _, ok := s.outputs[3]; ok {
				t.Error("the excluded dealer should not finish with a key")
			}
		})
	}
}

// TestEquivocatingCommitment tests that a participant shown different
// commitments than everybody else never outputs a key
func TestEquivocatingCommitment(t *testing.T) {
	s := scenario{curve: curve.Secp256k1, n: 5, t: 3}.setup(t)
	g := s.params.Group

	s.run(t, tamper{
		round1: func(from, to uint32, m *Round1Broadcast) *Round1Broadcast {
			if from == 3 && to == 1 {
				return &Round1Broadcast{Sender: m.Sender, Commitments: forgedCommitments(t, g, len(m.Commitments)), Proof: m.Proof}
			}
			return m
		},
	})

	err := s.errs[1]
	if !errors.Is(err, ErrEquivocation) {
		t.Fatalf("victim: expected ErrEquivocation, got %v", err)
	}
	if FaultOf(err) != FaultEquivocation {
		t.Errorf("victim: fault %s, want equivocation", FaultOf(err))
	}
	if _, ok := s.outputs[1]; ok {
		t.Error("victim must not output a key")
	}
	if !hasEvent(s.parts[1].Audit(), EventKeyMismatch, 2) {
		t.Error("victim should record the mismatching confirmations")
	}

	// the rest agree with each other and drop the victim, which never
	// answered the complaint of the dealer it refused to serve
	rest := []uint32{2, 3, 4, 5}
	s.requireConsistent(t, rest)
	for _, id := range rest {
		if slices.Contains(s.outputs[id].Qualified, 1) {
			t.Errorf("participant %d kept the victim", id)
		}
	}
}

// TestMissingConfirmation tests that a silent peer in the last round is only
// recorded
func TestMissingConfirmation(t *testing.T) {
	s := scenario{curve: curve.Ed25519, n: 3, t: 2}.setup(t)
	s.run(t, tamper{
		confirm: func(from, to uint32, m *Round5Broadcast) *Round5Broadcast {
			if from == 3 {
				return nil
			}
			return m
		},
	})

	s.requireConsistent(t, s.ids)
	for _, id := range []uint32{1, 2} {
		if !hasEvent(s.outputs[id].Audit, EventConfirmationMissing, 3) {
			t.Errorf("participant %d has no confirmation_missing entry", id)
		}
		if !hasEvent(s.outputs[id].Audit, EventKeyConfirmed, 3-id) {
			t.Errorf("participant %d has no key_confirmed entry", id)
		}
	}
}

// TestDeterministicReordering tests that delivery order does not affect the
// result: two runs from the same seeds produce identical outputs and audits
func TestDeterministicReordering(t *testing.T) {
	sc := scenario{curve: curve.Secp256k1, n: 5, t: 3, seed: []byte("reorder-seed")}

	// a damaged share keeps the complaint path in play
	faulty := func(t *testing.T) tamper {
		return tamper{
			share: func(from, to uint32, m *Round2P2P) *Round2P2P {
				if from == 4 && to == 2 {
					ct := bytes.Clone(m.Ciphertext)
					ct[len(ct)-1] ^= 0x01
					return &Round2P2P{Sender: m.Sender, Recipient: m.Recipient, Ciphertext: ct}
				}
				return m
			},
		}
	}

	a := sc.setup(t)
	a.run(t, faulty(t))
	b := sc.setup(t)
	b.run(t, faulty(t))

	for _, id := range a.ids {
		oa, ob := a.outputs[id], b.outputs[id]
		if oa == nil || ob == nil {
			t.Fatalf("participant %d failed: %v / %v", id, a.errs[id], b.errs[id])
		}
		if !oa.PublicKey.Equal(ob.PublicKey) {
			t.Errorf("participant %d: public keys differ", id)
		}
		if !oa.SecretShare.Equal(ob.SecretShare) {
			t.Errorf("participant %d: secret shares differ", id)
		}
		if !slices.Equal(oa.Qualified, ob.Qualified) {
			t.Errorf("participant %d: qualified sets differ", id)
		}
		if !slices.Equal(oa.Audit, ob.Audit) {
			t.Errorf("participant %d: audit logs differ", id)
		}
	}
	if !hasEvent(a.outputs[2].Audit, EventComplaintDismissed, 4) {
		t.Error("the damaged share should have gone through a complaint")
	}
}

// TestRefresh tests that a refresh run re-randomizes shares without moving
// the group key
func TestRefresh(t *testing.T) {
	for _, scheme := range []Scheme{SchemeFeldman, SchemePedersen} {
		t.Run(scheme.String(), func(t *testing.T) {
			base := scenario{curve: curve.Ed25519, n: 4, t: 3, scheme: scheme}.setup(t)
			base.run(t, tamper{})
			pk := base.requireConsistent(t, base.ids)

			delta := scenario{curve: curve.Ed25519, n: 4, t: 3, scheme: scheme, refresh: true}.setup(t)
			delta.run(t, tamper{})
			zero := delta.requireConsistent(t, delta.ids)
			if !zero.IsIdentity() {
				t.Fatal("refresh delta must not change the group key")
			}

			refreshed := make([]*Output, 0, 4)
			for _, id := range base.ids {
				out, err := ApplyRefresh(base.outputs[id], delta.outputs[id])
				if err != nil {
					t.Fatalf("ApplyRefresh(%d) failed: %v", id, err)
				}
				if !out.PublicKey.Equal(pk) {
					t.Errorf("participant %d: group key moved", id)
				}
				if out.SecretShare.Equal(base.outputs[id].SecretShare) {
					t.Errorf("participant %d: share did not change", id)
				}
				refreshed = append(refreshed, out)
			}

			secret, err := ReconstructSecret(refreshed[1:])
			if err != nil {
				t.Fatalf("ReconstructSecret failed: %v", err)
			}
			if !base.params.Group.NewPoint().ScalarBaseMult(secret).Equal(pk) {
				t.Error("refreshed shares reconstruct a different secret")
			}

			if _, err := ApplyRefresh(base.outputs[1], base.outputs[1]); !errors.Is(err, ErrIncompatibleShares) {
				t.Errorf("expected ErrIncompatibleShares for a non-refresh delta, got %v", err)
			}
			if _, err := ApplyRefresh(base.outputs[1], delta.outputs[2]); !errors.Is(err, ErrIncompatibleShares) {
				t.Errorf("expected ErrIncompatibleShares for another holder's delta, got %v", err)
			}
		})
	}
}
