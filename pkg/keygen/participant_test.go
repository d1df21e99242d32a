package keygen

import (
	"errors"
	"io"
	"testing"

	"github.com/Caqil/gennaro-dkg/pkg/crypto/curve"
)

func testParams() Parameters {
	return Parameters{
		Group:        curve.MustGroup(curve.Secp256k1),
		Threshold:    2,
		Participants: []uint32{1, 2, 3},
		SessionID:    []byte("params"),
	}
}

// TestNewParticipantValidation tests that invalid configurations are rejected
func TestNewParticipantValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *Parameters)
		id     uint32
		opts   []Option
		want   error
	}{
		{"zero threshold", func(p *Parameters) { p.Threshold = 0 }, 1, nil, ErrInvalidParameters},
		{"threshold above n", func(p *Parameters) { p.Threshold = 4 }, 1, nil, ErrInvalidParameters},
		{"duplicate ids", func(p *Parameters) { p.Participants = []uint32{1, 2, 2} }, 1, nil, ErrInvalidParameters},
		{"zero id", func(p *Parameters) { p.Participants = []uint32{0, 1, 2} }, 1, nil, ErrInvalidParameters},
		{"empty roster", func(p *Parameters) { p.Participants = nil }, 1, nil, ErrInvalidParameters},
		{"own id missing", func(p *Parameters) {}, 7, nil, ErrInvalidParameters},
		{"nil group", func(p *Parameters) { p.Group = nil }, 1, nil, ErrInvalidParameters},
		{"bad quorum", func(p *Parameters) { p.ComplaintQuorum = 9 }, 1, nil, ErrInvalidParameters},
		{"no cipher", func(p *Parameters) {}, 1, []Option{}, ErrMissingCipher},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := testParams()
			tt.mutate(&params)
			opts := tt.opts
			if opts == nil {
				opts = []Option{WithCipher(testCipher{})}
			}
			_, err := NewParticipant(params, tt.id, opts...)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if FaultOf(err) != FaultConfig {
				t.Errorf("fault %s, want config", FaultOf(err))
			}
		})
	}
}

// TestEntropyFailure tests that a failing random source is fatal
func TestEntropyFailure(t *testing.T) {
	_, err := NewParticipant(testParams(), 1, WithCipher(testCipher{}), WithRand(failingReader{}))
	if !errors.Is(err, ErrEntropy) {
		t.Fatalf("expected ErrEntropy, got %v", err)
	}
	if !IsFatal(err) {
		t.Error("entropy failure should be fatal")
	}
	if FaultOf(err) != FaultConfig {
		t.Errorf("fault %s, want config", FaultOf(err))
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, io.ErrUnexpectedEOF }

// TestRoundOrder tests that out-of-order calls are rejected without
// changing state
func TestRoundOrder(t *testing.T) {
	p, err := NewParticipant(testParams(), 1, WithCipher(testCipher{}))
	if err != nil {
		t.Fatalf("NewParticipant failed: %v", err)
	}

	if _, _, err := p.Round2(nil); !errors.Is(err, ErrRoundOrder) {
		t.Fatalf("Round2 before Round1: expected ErrRoundOrder, got %v", err)
	}
	if _, err := p.Finalize(nil); !errors.Is(err, ErrRoundOrder) {
		t.Fatalf("Finalize before Round4: expected ErrRoundOrder, got %v", err)
	}
	if p.Round() != RoundInit {
		t.Fatalf("state moved to %s", p.Round())
	}
	if IsFatal(roundOrderError(RoundInit, RoundBroadcast)) {
		t.Error("round order errors should not be fatal")
	}

	if _, err := p.Round1(); err != nil {
		t.Fatalf("Round1 failed: %v", err)
	}
	if _, err := p.Round1(); !errors.Is(err, ErrRoundOrder) {
		t.Fatalf("second Round1: expected ErrRoundOrder, got %v", err)
	}
	if p.Round() != RoundBroadcast {
		t.Fatalf("state is %s, want %s", p.Round(), RoundBroadcast)
	}
}

// TestAbort tests explicit aborts and the terminal state
func TestAbort(t *testing.T) {
	p, err := NewParticipant(testParams(), 2, WithCipher(testCipher{}))
	if err != nil {
		t.Fatalf("NewParticipant failed: %v", err)
	}
	if _, err := p.Round1(); err != nil {
		t.Fatalf("Round1 failed: %v", err)
	}

	err = p.Abort(errors.New("operator cancelled"))
	var abortErr *AbortError
	if !errors.As(err, &abortErr) {
		t.Fatalf("expected AbortError, got %T", err)
	}
	if abortErr.Round != RoundBroadcast || abortErr.Participant != 2 {
		t.Errorf("unexpected abort details: %+v", abortErr)
	}
	if !errors.Is(p.Err(), ErrAborted) {
		t.Errorf("Err() = %v, want ErrAborted", p.Err())
	}
	if p.Round() != RoundAborted {
		t.Fatalf("state is %s, want aborted", p.Round())
	}

	if _, _, err := p.Round2(nil); !errors.Is(err, ErrRoundOrder) {
		t.Errorf("Round2 after abort: expected ErrRoundOrder, got %v", err)
	}
	if err := p.Abort(nil); !errors.Is(err, ErrRoundOrder) {
		t.Errorf("second Abort: expected ErrRoundOrder, got %v", err)
	}
	if !hasEvent(p.Audit(), EventAborted, 2) {
		t.Error("abort was not audited")
	}
}

// TestDoneIsTerminal tests that a finished participant rejects every call
func TestDoneIsTerminal(t *testing.T) {
	s := scenario{curve: curve.Secp256k1, n: 3, t: 2}.setup(t)
	s.run(t, tamper{})
	s.requireConsistent(t, s.ids)

	p := s.parts[1]
	if p.Round() != RoundDone {
		t.Fatalf("state is %s, want done", p.Round())
	}
	if _, err := p.Round1(); !errors.Is(err, ErrRoundOrder) {
		t.Errorf("Round1 after done: expected ErrRoundOrder, got %v", err)
	}
	if _, err := p.Confirm(nil); !errors.Is(err, ErrRoundOrder) {
		t.Errorf("Confirm after done: expected ErrRoundOrder, got %v", err)
	}
	if err := p.Abort(nil); !errors.Is(err, ErrRoundOrder) {
		t.Errorf("Abort after done: expected ErrRoundOrder, got %v", err)
	}
}

// TestAuditHook tests that entries are streamed in sequence
func TestAuditHook(t *testing.T) {
	var seen []AuditEntry
	params := testParams()
	p, err := NewParticipant(params, 1, WithCipher(testCipher{}), WithAuditHook(func(e AuditEntry) {
		seen = append(seen, e)
	}))
	if err != nil {
		t.Fatalf("NewParticipant failed: %v", err)
	}
	if _, err := p.Round1(); err != nil {
		t.Fatalf("Round1 failed: %v", err)
	}
	// nobody answers and one stranger writes in
	if _, _, err := p.Round2(map[uint32]*Round1Broadcast{9: {Sender: 9}}); err != nil {
		t.Fatalf("Round2 failed: %v", err)
	}

	if len(seen) == 0 {
		t.Fatal("hook received nothing")
	}
	for i, e := range seen {
		if e.Seq != i+1 {
			t.Errorf("entry %d has seq %d", i, e.Seq)
		}
	}
	if seen[0].Event != EventUnknownSender || seen[0].Subject != 9 {
		t.Errorf("first entry %v, want unknown sender 9", seen[0])
	}
	if len(p.Excluded()) != 2 {
		t.Errorf("excluded %v, want both silent peers", p.Excluded())
	}
}

// TestParseNames tests the scheme and policy names used in configuration
func TestParseNames(t *testing.T) {
	for _, s := range []Scheme{SchemeFeldman, SchemePedersen} {
		got, err := ParseScheme(s.String())
		if err != nil || got != s {
			t.Errorf("ParseScheme(%q) = %v, %v", s.String(), got, err)
		}
	}
	for _, d := range []DismissalPolicy{DismissOnVerification, DismissBelowQuorum} {
		got, err := ParseDismissalPolicy(d.String())
		if err != nil || got != d {
			t.Errorf("ParseDismissalPolicy(%q) = %v, %v", d.String(), got, err)
		}
	}
	if _, err := ParseScheme("shamir"); !errors.Is(err, ErrInvalidParameters) {
		t.Errorf("expected ErrInvalidParameters, got %v", err)
	}
}
