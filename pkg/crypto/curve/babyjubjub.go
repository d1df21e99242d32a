package curve

import (
	"io"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/twistededwards"
)

const (
	babyJubjubScalarLen = 32
	babyJubjubPointLen  = 32
)

var babyJubjubGroup Group = newBabyJubjub()

// babyJubjub implements Group for the Baby Jubjub curve using gnark-crypto.
// The scalar field is the prime subgroup order, not the BN254 scalar field.
// Scalar arithmetic runs on math/big and is not constant-time.
type babyJubjub struct {
	order    *big.Int
	cofactor *big.Int
	base     twistededwards.PointAffine
}

func newBabyJubjub() *babyJubjub {
	params := twistededwards.GetEdwardsCurve()
	return &babyJubjub{
		order:    new(big.Int).Set(&params.Order),
		cofactor: big.NewInt(8),
		base:     params.Base,
	}
}

func (g *babyJubjub) Type() CurveType { return BabyJubjub }
func (g *babyJubjub) Name() string    { return BabyJubjub.String() }
func (g *babyJubjub) ScalarLen() int  { return babyJubjubScalarLen }
func (g *babyJubjub) PointLen() int   { return babyJubjubPointLen }

func (g *babyJubjub) Order() *big.Int { return new(big.Int).Set(g.order) }

func (g *babyJubjub) NewScalar() Scalar {
	return &bjjScalar{v: new(big.Int), group: g}
}

func (g *babyJubjub) NewPoint() Point {
	p := &bjjPoint{group: g}
	return p.Identity()
}

func (g *babyJubjub) Generator() Point {
	p := &bjjPoint{group: g}
	p.p.Set(&g.base)
	return p
}

func (g *babyJubjub) HashToScalar(msg, dst []byte) Scalar {
	wide := expandMessageXMD(msg, dst, 48)
	s := &bjjScalar{v: new(big.Int).SetBytes(wide), group: g}
	s.v.Mod(s.v, g.order)
	return s
}

func (g *babyJubjub) HashToPoint(msg, dst []byte) (Point, error) {
	for counter := 0; counter < 256; counter++ {
		candidate := hashCandidate(msg, dst, byte(counter), babyJubjubPointLen)
		var raw twistededwards.PointAffine
		if err := raw.Unmarshal(candidate); err != nil || !raw.IsOnCurve() {
			continue
		}
		p := &bjjPoint{group: g}
		p.p.ScalarMultiplication(&raw, g.cofactor)
		if !p.IsIdentity() {
			return p, nil
		}
	}
	return nil, ErrHashToPoint
}

type bjjScalar struct {
	v     *big.Int
	group *babyJubjub
}

func asBJJScalar(a Scalar) *bjjScalar {
	return a.(*bjjScalar)
}

func (s *bjjScalar) reduce() Scalar {
	s.v.Mod(s.v, s.group.order)
	return s
}

// Zero overwrites the backing words before resetting the value
func (s *bjjScalar) Zero() Scalar {
	w := s.v.Bits()
	clear(w[:cap(w)])
	s.v.SetInt64(0)
	return s
}

func (s *bjjScalar) Set(a Scalar) Scalar {
	s.v.Set(asBJJScalar(a).v)
	return s
}

func (s *bjjScalar) SetUint64(v uint64) Scalar {
	s.v.SetUint64(v)
	return s.reduce()
}

func (s *bjjScalar) SetBytes(data []byte) (Scalar, error) {
	if len(data) != babyJubjubScalarLen {
		return nil, ErrInvalidScalar
	}
	v := new(big.Int).SetBytes(data)
	if v.Cmp(s.group.order) >= 0 {
		return nil, ErrInvalidScalar
	}
	s.v.Set(v)
	return s, nil
}

func (s *bjjScalar) SetRandom(r io.Reader) (Scalar, error) {
	var buf [48]byte
	defer func() {
		for i := range buf {
			buf[i] = 0
		}
	}()
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return nil, err
	}
	s.v.SetBytes(buf[:])
	return s.reduce(), nil
}

func (s *bjjScalar) Add(a, b Scalar) Scalar {
	s.v.Add(asBJJScalar(a).v, asBJJScalar(b).v)
	return s.reduce()
}

func (s *bjjScalar) Sub(a, b Scalar) Scalar {
	s.v.Sub(asBJJScalar(a).v, asBJJScalar(b).v)
	return s.reduce()
}

func (s *bjjScalar) Mul(a, b Scalar) Scalar {
	s.v.Mul(asBJJScalar(a).v, asBJJScalar(b).v)
	return s.reduce()
}

func (s *bjjScalar) Negate(a Scalar) Scalar {
	s.v.Neg(asBJJScalar(a).v)
	return s.reduce()
}

func (s *bjjScalar) Invert(a Scalar) (Scalar, error) {
	as := asBJJScalar(a)
	if as.v.Sign() == 0 {
		return nil, ErrScalarZero
	}
	s.v.ModInverse(as.v, s.group.order)
	return s, nil
}

func (s *bjjScalar) Equal(b Scalar) bool {
	return s.v.Cmp(asBJJScalar(b).v) == 0
}

func (s *bjjScalar) IsZero() bool { return s.v.Sign() == 0 }

func (s *bjjScalar) Bytes() []byte {
	out := make([]byte, babyJubjubScalarLen)
	s.v.FillBytes(out)
	return out
}

type bjjPoint struct {
	p     twistededwards.PointAffine
	group *babyJubjub
}

func asBJJPoint(a Point) *bjjPoint {
	return a.(*bjjPoint)
}

func (p *bjjPoint) Identity() Point {
	p.p.X.SetZero()
	p.p.Y.SetOne()
	return p
}

func (p *bjjPoint) Set(a Point) Point {
	p.p.Set(&asBJJPoint(a).p)
	return p
}

func (p *bjjPoint) Add(a, b Point) Point {
	p.p.Add(&asBJJPoint(a).p, &asBJJPoint(b).p)
	return p
}

func (p *bjjPoint) Sub(a, b Point) Point {
	var neg twistededwards.PointAffine
	neg.Neg(&asBJJPoint(b).p)
	p.p.Add(&asBJJPoint(a).p, &neg)
	return p
}

func (p *bjjPoint) Negate(a Point) Point {
	p.p.Neg(&asBJJPoint(a).p)
	return p
}

func (p *bjjPoint) ScalarMult(s Scalar, q Point) Point {
	p.p.ScalarMultiplication(&asBJJPoint(q).p, asBJJScalar(s).v)
	return p
}

func (p *bjjPoint) ScalarBaseMult(s Scalar) Point {
	p.p.ScalarMultiplication(&p.group.base, asBJJScalar(s).v)
	return p
}

// SetBytes decodes the compressed encoding and checks that the point is on
// the curve and that [order]P is the identity
func (p *bjjPoint) SetBytes(data []byte) (Point, error) {
	if len(data) != babyJubjubPointLen {
		return nil, ErrInvalidEncoding
	}
	var decoded twistededwards.PointAffine
	if err := decoded.Unmarshal(data); err != nil || !decoded.IsOnCurve() {
		return nil, ErrInvalidPoint
	}
	var check twistededwards.PointAffine
	check.ScalarMultiplication(&decoded, p.group.order)
	if !check.IsZero() {
		return nil, ErrInvalidPoint
	}
	p.p.Set(&decoded)
	return p, nil
}

func (p *bjjPoint) Bytes() []byte {
	b := p.p.Bytes()
	return b[:]
}

func (p *bjjPoint) Equal(b Point) bool {
	return p.p.Equal(&asBJJPoint(b).p)
}

func (p *bjjPoint) IsIdentity() bool { return p.p.IsZero() }
