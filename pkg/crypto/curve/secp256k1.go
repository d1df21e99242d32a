package curve

import (
	"encoding/binary"
	"io"
	"math/big"

	"github.com/btcsuite/btcd/btcec/v2"
)

const (
	secp256k1ScalarLen = 32
	secp256k1PointLen  = 33
)

var secp256k1Group Group = &secp256k1{order: new(big.Int).Set(btcec.S256().Params().N)}

// secp256k1 implements Group on top of btcec's ModNScalar and JacobianPoint.
// Scalar field arithmetic is constant-time. btcec only exports variable-time
// scalar multiplication (ScalarMultNonConst, ScalarBaseMultNonConst), so
// point multiplication by a secret leaks timing; use Ed25519 where that
// matters.
type secp256k1 struct {
	order *big.Int
}

func (g *secp256k1) Type() CurveType { return Secp256k1 }
func (g *secp256k1) Name() string    { return Secp256k1.String() }
func (g *secp256k1) ScalarLen() int  { return secp256k1ScalarLen }
func (g *secp256k1) PointLen() int   { return secp256k1PointLen }

func (g *secp256k1) Order() *big.Int { return new(big.Int).Set(g.order) }

func (g *secp256k1) NewScalar() Scalar { return &secpScalar{} }

func (g *secp256k1) NewPoint() Point { return &secpPoint{} }

func (g *secp256k1) Generator() Point {
	var one btcec.ModNScalar
	one.SetInt(1)
	p := &secpPoint{}
	btcec.ScalarBaseMultNonConst(&one, &p.p)
	return p
}

func (g *secp256k1) HashToScalar(msg, dst []byte) Scalar {
	wide := expandMessageXMD(msg, dst, 48)
	s := &secpScalar{}
	s.s.SetByteSlice(reduceWide(wide, g.order, secp256k1ScalarLen))
	return s
}

// HashToPoint interprets candidates as compressed x-coordinates with an even y
func (g *secp256k1) HashToPoint(msg, dst []byte) (Point, error) {
	for counter := 0; counter < 256; counter++ {
		x := hashCandidate(msg, dst, byte(counter), secp256k1ScalarLen)
		enc := append([]byte{0x02}, x...)
		p := &secpPoint{}
		if _, err := p.SetBytes(enc); err == nil && !p.IsIdentity() {
			return p, nil
		}
	}
	return nil, ErrHashToPoint
}

type secpScalar struct {
	s btcec.ModNScalar
}

func asSecpScalar(a Scalar) *secpScalar {
	return a.(*secpScalar)
}

func (s *secpScalar) Zero() Scalar {
	s.s.Zero()
	return s
}

func (s *secpScalar) Set(a Scalar) Scalar {
	s.s.Set(&asSecpScalar(a).s)
	return s
}

func (s *secpScalar) SetUint64(v uint64) Scalar {
	var buf [secp256k1ScalarLen]byte
	binary.BigEndian.PutUint64(buf[secp256k1ScalarLen-8:], v)
	s.s.SetBytes(&buf)
	return s
}

func (s *secpScalar) SetBytes(data []byte) (Scalar, error) {
	if len(data) != secp256k1ScalarLen {
		return nil, ErrInvalidScalar
	}
	var v btcec.ModNScalar
	if overflow := v.SetByteSlice(data); overflow {
		return nil, ErrInvalidScalar
	}
	s.s.Set(&v)
	return s, nil
}

// SetRandom uses rejection sampling; the order is close enough to 2^256 that
// a retry is practically never needed
func (s *secpScalar) SetRandom(r io.Reader) (Scalar, error) {
	var buf [secp256k1ScalarLen]byte
	defer func() {
		for i := range buf {
			buf[i] = 0
		}
	}()
	for {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return nil, err
		}
		if overflow := s.s.SetBytes(&buf); overflow == 0 {
			return s, nil
		}
	}
}

func (s *secpScalar) Add(a, b Scalar) Scalar {
	s.s.Add2(&asSecpScalar(a).s, &asSecpScalar(b).s)
	return s
}

func (s *secpScalar) Sub(a, b Scalar) Scalar {
	var negB btcec.ModNScalar
	negB.NegateVal(&asSecpScalar(b).s)
	s.s.Add2(&asSecpScalar(a).s, &negB)
	return s
}

func (s *secpScalar) Mul(a, b Scalar) Scalar {
	s.s.Mul2(&asSecpScalar(a).s, &asSecpScalar(b).s)
	return s
}

func (s *secpScalar) Negate(a Scalar) Scalar {
	s.s.NegateVal(&asSecpScalar(a).s)
	return s
}

func (s *secpScalar) Invert(a Scalar) (Scalar, error) {
	as := asSecpScalar(a)
	if as.s.IsZero() {
		return nil, ErrScalarZero
	}
	s.s.InverseValNonConst(&as.s)
	return s, nil
}

func (s *secpScalar) Equal(b Scalar) bool {
	return s.s.Equals(&asSecpScalar(b).s)
}

func (s *secpScalar) IsZero() bool { return s.s.IsZero() }

func (s *secpScalar) Bytes() []byte {
	b := s.s.Bytes()
	return b[:]
}

type secpPoint struct {
	p btcec.JacobianPoint
}

func asSecpPoint(a Point) *secpPoint {
	return a.(*secpPoint)
}

func (p *secpPoint) Identity() Point {
	p.p = btcec.JacobianPoint{}
	return p
}

func (p *secpPoint) Set(a Point) Point {
	p.p.Set(&asSecpPoint(a).p)
	return p
}

func (p *secpPoint) Add(a, b Point) Point {
	var r btcec.JacobianPoint
	btcec.AddNonConst(&asSecpPoint(a).p, &asSecpPoint(b).p, &r)
	p.p.Set(&r)
	return p
}

func (p *secpPoint) Sub(a, b Point) Point {
	var neg secpPoint
	neg.Negate(b)
	return p.Add(a, &neg)
}

func (p *secpPoint) Negate(a Point) Point {
	ap := asSecpPoint(a)
	p.p.Set(&ap.p)
	if p.IsIdentity() {
		return p.Identity()
	}
	p.p.Y.Normalize()
	p.p.Y.Negate(1)
	p.p.Y.Normalize()
	return p
}

func (p *secpPoint) ScalarMult(s Scalar, q Point) Point {
	k := asSecpScalar(s)
	qp := asSecpPoint(q)
	if k.s.IsZero() || qp.IsIdentity() {
		return p.Identity()
	}
	var r btcec.JacobianPoint
	btcec.ScalarMultNonConst(&k.s, &qp.p, &r)
	p.p.Set(&r)
	return p
}

func (p *secpPoint) ScalarBaseMult(s Scalar) Point {
	k := asSecpScalar(s)
	if k.s.IsZero() {
		return p.Identity()
	}
	var r btcec.JacobianPoint
	btcec.ScalarBaseMultNonConst(&k.s, &r)
	p.p.Set(&r)
	return p
}

// SetBytes accepts 33-byte compressed encodings; 33 zero bytes encode the identity
func (p *secpPoint) SetBytes(data []byte) (Point, error) {
	if len(data) != secp256k1PointLen {
		return nil, ErrInvalidEncoding
	}
	if isAllZero(data) {
		return p.Identity(), nil
	}
	pub, err := btcec.ParsePubKey(data)
	if err != nil {
		return nil, ErrInvalidPoint
	}
	pub.AsJacobian(&p.p)
	return p, nil
}

func (p *secpPoint) Bytes() []byte {
	if p.IsIdentity() {
		return make([]byte, secp256k1PointLen)
	}
	affine := p.affine()
	return btcec.NewPublicKey(&affine.X, &affine.Y).SerializeCompressed()
}

func (p *secpPoint) Equal(b Point) bool {
	bp := asSecpPoint(b)
	aInf, bInf := p.IsIdentity(), bp.IsIdentity()
	if aInf || bInf {
		return aInf == bInf
	}
	x, y := p.affine(), bp.affine()
	return x.X.Equals(&y.X) && x.Y.Equals(&y.Y)
}

func (p *secpPoint) IsIdentity() bool {
	var x, y, z btcec.FieldVal
	x.Set(&p.p.X).Normalize()
	y.Set(&p.p.Y).Normalize()
	z.Set(&p.p.Z).Normalize()
	return (x.IsZero() && y.IsZero()) || z.IsZero()
}

// affine returns a normalized affine copy; the receiver is left untouched
func (p *secpPoint) affine() btcec.JacobianPoint {
	var c btcec.JacobianPoint
	c.Set(&p.p)
	c.ToAffine()
	return c
}

func isAllZero(data []byte) bool {
	var acc byte
	for _, b := range data {
		acc |= b
	}
	return acc == 0
}
