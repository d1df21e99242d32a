package curve

import (
	"bytes"
	"crypto/rand"
	"testing"

	"filippo.io/edwards25519"
	"github.com/consensys/gnark-crypto/ecc/bn254/twistededwards"
)

var allCurves = []CurveType{Secp256k1, Ed25519, BabyJubjub}

func randomScalar(t *testing.T, g Group) Scalar {
	t.Helper()
	s, err := g.NewScalar().SetRandom(rand.Reader)
	if err != nil {
		t.Fatalf("SetRandom failed: %v", err)
	}
	return s
}

// TestParseCurveType tests curve name parsing
func TestParseCurveType(t *testing.T) {
	for _, ct := range allCurves {
		parsed, err := ParseCurveType(ct.String())
		if err != nil {
			t.Fatalf("ParseCurveType(%q) failed: %v", ct.String(), err)
		}
		if parsed != ct {
			t.Errorf("got %v, want %v", parsed, ct)
		}
	}

	if _, err := ParseCurveType("p521"); err != ErrUnsupportedCurve {
		t.Errorf("expected ErrUnsupportedCurve, got %v", err)
	}
}

// TestScalarArithmetic tests field identities on every curve
func TestScalarArithmetic(t *testing.T) {
	for _, ct := range allCurves {
		t.Run(ct.String(), func(t *testing.T) {
			g := MustGroup(ct)
			a, b, c := randomScalar(t, g), randomScalar(t, g), randomScalar(t, g)

			// a*(b+c) == a*b + a*c
			left := g.NewScalar().Mul(a, g.NewScalar().Add(b, c))
			right := g.NewScalar().Add(g.NewScalar().Mul(a, b), g.NewScalar().Mul(a, c))
			if !left.Equal(right) {
				t.Error("distributivity failed")
			}

			// a - a == 0
			if !g.NewScalar().Sub(a, a).IsZero() {
				t.Error("a - a should be zero")
			}

			// a + (-a) == 0
			if !g.NewScalar().Add(a, g.NewScalar().Negate(a)).IsZero() {
				t.Error("a + (-a) should be zero")
			}

			// a * a^-1 == 1
			inv, err := g.NewScalar().Invert(a)
			if err != nil {
				t.Fatalf("Invert failed: %v", err)
			}
			one := g.NewScalar().SetUint64(1)
			if !g.NewScalar().Mul(a, inv).Equal(one) {
				t.Error("a * a^-1 should be one")
			}

			if _, err := g.NewScalar().Invert(g.NewScalar()); err != ErrScalarZero {
				t.Errorf("expected ErrScalarZero, got %v", err)
			}
		})
	}
}

// TestScalarEncoding tests scalar round trips and canonical checks
func TestScalarEncoding(t *testing.T) {
	for _, ct := range allCurves {
		t.Run(ct.String(), func(t *testing.T) {
			g := MustGroup(ct)
			a := randomScalar(t, g)

			enc := a.Bytes()
			if len(enc) != g.ScalarLen() {
				t.Fatalf("encoding length %d, want %d", len(enc), g.ScalarLen())
			}

			decoded, err := g.NewScalar().SetBytes(enc)
			if err != nil {
				t.Fatalf("SetBytes failed: %v", err)
			}
			if !decoded.Equal(a) {
				t.Error("decoded scalar mismatch")
			}

			if _, err := g.NewScalar().SetBytes(enc[1:]); err == nil {
				t.Error("short encoding should be rejected")
			}

			allOnes := bytes.Repeat([]byte{0xff}, g.ScalarLen())
			if _, err := g.NewScalar().SetBytes(allOnes); err == nil {
				t.Error("non-canonical encoding should be rejected")
			}
		})
	}
}

// TestPointArithmetic tests group law identities on every curve
func TestPointArithmetic(t *testing.T) {
	for _, ct := range allCurves {
		t.Run(ct.String(), func(t *testing.T) {
			g := MustGroup(ct)
			a, b := randomScalar(t, g), randomScalar(t, g)

			if g.Generator().IsIdentity() {
				t.Fatal("generator is the identity")
			}
			if !g.NewPoint().IsIdentity() {
				t.Fatal("NewPoint should return the identity")
			}

			// (a+b)G == aG + bG
			sum := g.NewScalar().Add(a, b)
			left := g.NewPoint().ScalarBaseMult(sum)
			right := g.NewPoint().Add(g.NewPoint().ScalarBaseMult(a), g.NewPoint().ScalarBaseMult(b))
			if !left.Equal(right) {
				t.Error("scalar base mult is not additive")
			}

			// a(bG) == (ab)G
			bG := g.NewPoint().ScalarBaseMult(b)
			left = g.NewPoint().ScalarMult(a, bG)
			right = g.NewPoint().ScalarBaseMult(g.NewScalar().Mul(a, b))
			if !left.Equal(right) {
				t.Error("scalar mult is not associative")
			}

			// P - P == O
			if !g.NewPoint().Sub(bG, bG).IsIdentity() {
				t.Error("P - P should be the identity")
			}

			// P + (-P) == O
			if !g.NewPoint().Add(bG, g.NewPoint().Negate(bG)).IsIdentity() {
				t.Error("P + (-P) should be the identity")
			}

			// 0*G == O
			if !g.NewPoint().ScalarBaseMult(g.NewScalar()).IsIdentity() {
				t.Error("0*G should be the identity")
			}

			// O + P == P
			if !g.NewPoint().Add(g.NewPoint(), bG).Equal(bG) {
				t.Error("O + P should be P")
			}
		})
	}
}

// TestPointEncoding tests point round trips including the identity
func TestPointEncoding(t *testing.T) {
	for _, ct := range allCurves {
		t.Run(ct.String(), func(t *testing.T) {
			g := MustGroup(ct)
			p := g.NewPoint().ScalarBaseMult(randomScalar(t, g))

			enc := p.Bytes()
			if len(enc) != g.PointLen() {
				t.Fatalf("encoding length %d, want %d", len(enc), g.PointLen())
			}

			decoded, err := g.NewPoint().SetBytes(enc)
			if err != nil {
				t.Fatalf("SetBytes failed: %v", err)
			}
			if !decoded.Equal(p) {
				t.Error("decoded point mismatch")
			}

			identity, err := g.NewPoint().SetBytes(g.NewPoint().Bytes())
			if err != nil {
				t.Fatalf("identity SetBytes failed: %v", err)
			}
			if !identity.IsIdentity() {
				t.Error("identity did not round trip")
			}

			if _, err := g.NewPoint().SetBytes(enc[:len(enc)-1]); err == nil {
				t.Error("short encoding should be rejected")
			}
		})
	}
}

// TestHashToScalar tests determinism and domain separation
func TestHashToScalar(t *testing.T) {
	for _, ct := range allCurves {
		t.Run(ct.String(), func(t *testing.T) {
			g := MustGroup(ct)
			msg := []byte("message")

			a := g.HashToScalar(msg, []byte("DST-A"))
			b := g.HashToScalar(msg, []byte("DST-A"))
			c := g.HashToScalar(msg, []byte("DST-B"))

			if !a.Equal(b) {
				t.Error("HashToScalar is not deterministic")
			}
			if a.Equal(c) {
				t.Error("different tags produced the same scalar")
			}
		})
	}
}

// TestHashToPoint tests that derived generators are valid and independent of G
func TestHashToPoint(t *testing.T) {
	for _, ct := range allCurves {
		t.Run(ct.String(), func(t *testing.T) {
			g := MustGroup(ct)

			h, err := g.HashToPoint([]byte("H"), []byte("TEST-DST"))
			if err != nil {
				t.Fatalf("HashToPoint failed: %v", err)
			}
			if h.IsIdentity() {
				t.Fatal("derived point is the identity")
			}
			if h.Equal(g.Generator()) {
				t.Fatal("derived point equals the generator")
			}

			again, err := g.HashToPoint([]byte("H"), []byte("TEST-DST"))
			if err != nil {
				t.Fatalf("HashToPoint failed: %v", err)
			}
			if !again.Equal(h) {
				t.Error("HashToPoint is not deterministic")
			}

			// the derived point must survive a decode with subgroup checks
			if _, err := g.NewPoint().SetBytes(h.Bytes()); err != nil {
				t.Errorf("derived point rejected on decode: %v", err)
			}
		})
	}
}

// TestExpandMessageXMD tests output lengths and prefix independence
func TestExpandMessageXMD(t *testing.T) {
	dst := []byte("QUUX-V01-CS02-with-expander-SHA256-128")

	short := expandMessageXMD([]byte("abc"), dst, 32)
	long := expandMessageXMD([]byte("abc"), dst, 128)

	if len(short) != 32 || len(long) != 128 {
		t.Fatalf("unexpected lengths %d, %d", len(short), len(long))
	}

	// the length is bound into b_0, so a shorter output is not a prefix
	if bytes.Equal(short, long[:32]) {
		t.Error("outputs of different lengths should differ")
	}
}

// TestScalarZeroWipesStorage tests that Zero overwrites the memory that held
// the secret, not just the value seen through the wrapper
func TestScalarZeroWipesStorage(t *testing.T) {
	t.Run("secp256k1", func(t *testing.T) {
		s := asSecpScalar(randomScalar(t, MustGroup(Secp256k1)))
		inner := &s.s
		s.Zero()
		if !inner.IsZero() {
			t.Error("backing scalar still holds the secret")
		}
	})

	t.Run("ed25519", func(t *testing.T) {
		s := asEdScalar(randomScalar(t, MustGroup(Ed25519)))
		inner := s.s
		s.Zero()
		if !s.IsZero() {
			t.Error("scalar is not zero")
		}
		if inner.Equal(edwards25519.NewScalar()) != 1 {
			t.Error("backing scalar still holds the secret")
		}
	})

	t.Run("babyjubjub", func(t *testing.T) {
		s := asBJJScalar(randomScalar(t, MustGroup(BabyJubjub)))
		words := s.v.Bits()
		words = words[:cap(words)]
		s.Zero()
		if !s.IsZero() {
			t.Error("scalar is not zero")
		}
		for i, w := range words {
			if w != 0 {
				t.Fatalf("backing word %d still holds the secret", i)
			}
		}
	})
}

// TestHashToPointGroupLaw tests that derived points behave as group
// elements: 2H == H+H and (order)H is the identity
func TestHashToPointGroupLaw(t *testing.T) {
	for _, ct := range allCurves {
		t.Run(ct.String(), func(t *testing.T) {
			g := MustGroup(ct)
			for _, label := range []string{"H", "PEDERSEN_GENERATOR_H_" + g.Name(), "other"} {
				h, err := g.HashToPoint([]byte(label), []byte("GENNARO-DKG-PEDERSEN-H-V1"))
				if err != nil {
					t.Fatalf("HashToPoint failed: %v", err)
				}
				doubled := g.NewPoint().Add(h, h)
				scaled := g.NewPoint().ScalarMult(g.NewScalar().SetUint64(2), h)
				if !doubled.Equal(scaled) {
					t.Errorf("%s: 2H != H+H", label)
				}
			}
		})
	}
}

// TestBabyJubjubRejectsOffCurve tests that no encoding that decodes to an
// off-curve point is accepted
func TestBabyJubjubRejectsOffCurve(t *testing.T) {
	g := MustGroup(BabyJubjub)
	for counter := 0; counter < 256; counter++ {
		candidate := hashCandidate([]byte("off-curve"), []byte("TEST-DST"), byte(counter), babyJubjubPointLen)
		var raw twistededwards.PointAffine
		if err := raw.Unmarshal(candidate); err != nil || raw.IsOnCurve() {
			continue
		}
		if _, err := g.NewPoint().SetBytes(candidate); err == nil {
			t.Fatalf("candidate %d: off-curve point accepted", counter)
		}
	}
}
