package hash

import (
	"bytes"
	"testing"

	"github.com/Caqil/gennaro-dkg/pkg/crypto/curve"
)

// TestTranscriptFraming tests that message boundaries are bound into the digest
func TestTranscriptFraming(t *testing.T) {
	a := NewTranscript("test").AppendMessage("x", []byte("ab")).AppendMessage("y", []byte("c"))
	b := NewTranscript("test").AppendMessage("x", []byte("a")).AppendMessage("y", []byte("bc"))

	if bytes.Equal(a.Digest(), b.Digest()) {
		t.Error("different framings produced the same digest")
	}

	c := NewTranscript("test").AppendMessage("x", []byte("ab")).AppendMessage("y", []byte("c"))
	if !bytes.Equal(a.Digest(), c.Digest()) {
		t.Error("identical transcripts produced different digests")
	}
}

// TestTranscriptChallenge tests that challenges depend on the appended points
func TestTranscriptChallenge(t *testing.T) {
	g := curve.MustGroup(curve.Secp256k1)
	dst := []byte("TEST-CHALLENGE")

	two := g.NewScalar().SetUint64(2)
	p1 := g.Generator()
	p2 := g.NewPoint().ScalarBaseMult(two)

	c1 := NewTranscript("test").AppendPoints("p", p1).Challenge(g, dst)
	c2 := NewTranscript("test").AppendPoints("p", p2).Challenge(g, dst)
	c3 := NewTranscript("test").AppendPoints("p", p1).Challenge(g, dst)

	if c1.Equal(c2) {
		t.Error("different points produced the same challenge")
	}
	if !c1.Equal(c3) {
		t.Error("challenge is not deterministic")
	}
}

// TestHKDF tests key derivation
func TestHKDF(t *testing.T) {
	secret := bytes.Repeat([]byte{0x42}, 32)

	k1, err := DeriveKey(secret, []byte("salt"), "pair|1|2", 32)
	if err != nil {
		t.Fatalf("DeriveKey failed: %v", err)
	}
	k2, err := DeriveKey(secret, []byte("salt"), "pair|2|1", 32)
	if err != nil {
		t.Fatalf("DeriveKey failed: %v", err)
	}
	if len(k1) != 32 {
		t.Errorf("key length %d, want 32", len(k1))
	}
	if bytes.Equal(k1, k2) {
		t.Error("different contexts produced the same key")
	}

	if _, err := HKDF(secret, nil, nil, 0); err != ErrInvalidLength {
		t.Errorf("expected ErrInvalidLength, got %v", err)
	}
	if _, err := HKDF(nil, nil, nil, 32); err != ErrEmptySecret {
		t.Errorf("expected ErrEmptySecret, got %v", err)
	}
}
