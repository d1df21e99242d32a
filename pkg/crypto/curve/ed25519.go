package curve

import (
	"encoding/binary"
	"io"
	"math/big"

	"filippo.io/edwards25519"
)

const (
	ed25519ScalarLen = 32
	ed25519PointLen  = 32
)

var ed25519Group Group = newEd25519()

// ed25519 implements Group over the prime-order subgroup of edwards25519.
// Scalars use the little-endian encoding of RFC 8032.
type ed25519 struct {
	order *big.Int

	// orderMinusOne is L-1, used for the subgroup membership check
	orderMinusOne *edwards25519.Scalar
}

func newEd25519() *ed25519 {
	// L = 2^252 + 27742317777372353535851937790883648493
	order, _ := new(big.Int).SetString("7237005577332262213973186563042994240857116359379907606001950938285454250989", 10)

	lm1 := new(big.Int).Sub(order, big.NewInt(1))
	buf := make([]byte, ed25519ScalarLen)
	lm1.FillBytes(buf)
	reverse(buf)
	s, err := edwards25519.NewScalar().SetCanonicalBytes(buf)
	if err != nil {
		panic("curve: invalid ed25519 order constant")
	}
	return &ed25519{order: order, orderMinusOne: s}
}

func (g *ed25519) Type() CurveType { return Ed25519 }
func (g *ed25519) Name() string    { return Ed25519.String() }
func (g *ed25519) ScalarLen() int  { return ed25519ScalarLen }
func (g *ed25519) PointLen() int   { return ed25519PointLen }

func (g *ed25519) Order() *big.Int { return new(big.Int).Set(g.order) }

func (g *ed25519) NewScalar() Scalar { return &edScalar{s: edwards25519.NewScalar()} }

func (g *ed25519) NewPoint() Point {
	return &edPoint{p: edwards25519.NewIdentityPoint(), group: g}
}

func (g *ed25519) Generator() Point {
	return &edPoint{p: edwards25519.NewGeneratorPoint(), group: g}
}

func (g *ed25519) HashToScalar(msg, dst []byte) Scalar {
	wide := expandMessageXMD(msg, dst, 64)
	s, err := edwards25519.NewScalar().SetUniformBytes(wide)
	if err != nil {
		panic("curve: SetUniformBytes rejected a 64-byte input")
	}
	return &edScalar{s: s}
}

// HashToPoint decodes candidates as compressed Edwards points and clears the
// cofactor, which lands in the prime-order subgroup
func (g *ed25519) HashToPoint(msg, dst []byte) (Point, error) {
	for counter := 0; counter < 256; counter++ {
		candidate := hashCandidate(msg, dst, byte(counter), ed25519PointLen)
		p, err := edwards25519.NewIdentityPoint().SetBytes(candidate)
		if err != nil {
			continue
		}
		p.MultByCofactor(p)
		out := &edPoint{p: p, group: g}
		if !out.IsIdentity() {
			return out, nil
		}
	}
	return nil, ErrHashToPoint
}

type edScalar struct {
	s *edwards25519.Scalar
}

func asEdScalar(a Scalar) *edScalar {
	return a.(*edScalar)
}

func (s *edScalar) Zero() Scalar {
	s.s.Set(edwards25519.NewScalar())
	return s
}

func (s *edScalar) Set(a Scalar) Scalar {
	s.s.Set(asEdScalar(a).s)
	return s
}

func (s *edScalar) SetUint64(v uint64) Scalar {
	buf := make([]byte, ed25519ScalarLen)
	binary.LittleEndian.PutUint64(buf, v)
	if _, err := s.s.SetCanonicalBytes(buf); err != nil {
		// 2^64 is far below L, so every uint64 is canonical
		panic("curve: non-canonical small scalar")
	}
	return s
}

func (s *edScalar) SetBytes(data []byte) (Scalar, error) {
	if len(data) != ed25519ScalarLen {
		return nil, ErrInvalidScalar
	}
	if _, err := s.s.SetCanonicalBytes(data); err != nil {
		return nil, ErrInvalidScalar
	}
	return s, nil
}

func (s *edScalar) SetRandom(r io.Reader) (Scalar, error) {
	var buf [64]byte
	defer func() {
		for i := range buf {
			buf[i] = 0
		}
	}()
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return nil, err
	}
	if _, err := s.s.SetUniformBytes(buf[:]); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *edScalar) Add(a, b Scalar) Scalar {
	s.s.Add(asEdScalar(a).s, asEdScalar(b).s)
	return s
}

func (s *edScalar) Sub(a, b Scalar) Scalar {
	s.s.Subtract(asEdScalar(a).s, asEdScalar(b).s)
	return s
}

func (s *edScalar) Mul(a, b Scalar) Scalar {
	s.s.Multiply(asEdScalar(a).s, asEdScalar(b).s)
	return s
}

func (s *edScalar) Negate(a Scalar) Scalar {
	s.s.Negate(asEdScalar(a).s)
	return s
}

func (s *edScalar) Invert(a Scalar) (Scalar, error) {
	as := asEdScalar(a)
	if as.IsZero() {
		return nil, ErrScalarZero
	}
	s.s.Invert(as.s)
	return s, nil
}

func (s *edScalar) Equal(b Scalar) bool {
	return s.s.Equal(asEdScalar(b).s) == 1
}

func (s *edScalar) IsZero() bool {
	return s.s.Equal(edwards25519.NewScalar()) == 1
}

func (s *edScalar) Bytes() []byte { return s.s.Bytes() }

type edPoint struct {
	p     *edwards25519.Point
	group *ed25519
}

func asEdPoint(a Point) *edPoint {
	return a.(*edPoint)
}

func (p *edPoint) Identity() Point {
	p.p = edwards25519.NewIdentityPoint()
	return p
}

func (p *edPoint) Set(a Point) Point {
	p.p.Set(asEdPoint(a).p)
	return p
}

func (p *edPoint) Add(a, b Point) Point {
	p.p.Add(asEdPoint(a).p, asEdPoint(b).p)
	return p
}

func (p *edPoint) Sub(a, b Point) Point {
	p.p.Subtract(asEdPoint(a).p, asEdPoint(b).p)
	return p
}

func (p *edPoint) Negate(a Point) Point {
	p.p.Negate(asEdPoint(a).p)
	return p
}

func (p *edPoint) ScalarMult(s Scalar, q Point) Point {
	p.p.ScalarMult(asEdScalar(s).s, asEdPoint(q).p)
	return p
}

func (p *edPoint) ScalarBaseMult(s Scalar) Point {
	p.p.ScalarBaseMult(asEdScalar(s).s)
	return p
}

// SetBytes rejects encodings of points with a small-order component:
// [L-1]P + P must be the identity
func (p *edPoint) SetBytes(data []byte) (Point, error) {
	if len(data) != ed25519PointLen {
		return nil, ErrInvalidEncoding
	}
	decoded, err := edwards25519.NewIdentityPoint().SetBytes(data)
	if err != nil {
		return nil, ErrInvalidPoint
	}
	check := edwards25519.NewIdentityPoint().ScalarMult(p.group.orderMinusOne, decoded)
	check.Add(check, decoded)
	if check.Equal(edwards25519.NewIdentityPoint()) != 1 {
		return nil, ErrInvalidPoint
	}
	p.p = decoded
	return p, nil
}

func (p *edPoint) Bytes() []byte { return p.p.Bytes() }

func (p *edPoint) Equal(b Point) bool {
	return p.p.Equal(asEdPoint(b).p) == 1
}

func (p *edPoint) IsIdentity() bool {
	return p.p.Equal(edwards25519.NewIdentityPoint()) == 1
}

func reverse(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}
