// Package curve provides the prime-order group capability the DKG is generic over.
// Each implementation wraps an established curve library; callers only ever see
// the Scalar, Point and Group interfaces.
package curve

import (
	"io"
	"math/big"
	"strings"
)

// CurveType represents the type of elliptic curve
type CurveType int

const (
	// Secp256k1 is the Bitcoin/Ethereum curve
	Secp256k1 CurveType = iota
	// Ed25519 is the prime-order subgroup of edwards25519
	Ed25519
	// BabyJubjub is the twisted Edwards curve embedded in BN254
	BabyJubjub
)

// String returns the canonical lower-case curve name
func (c CurveType) String() string {
	switch c {
	case Secp256k1:
		return "secp256k1"
	case Ed25519:
		return "ed25519"
	case BabyJubjub:
		return "babyjubjub"
	default:
		return "unknown"
	}
}

// ParseCurveType maps a curve name to its CurveType
func ParseCurveType(name string) (CurveType, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "secp256k1", "k256":
		return Secp256k1, nil
	case "ed25519", "edwards25519":
		return Ed25519, nil
	case "babyjubjub", "bjj":
		return BabyJubjub, nil
	default:
		return 0, ErrUnsupportedCurve
	}
}

// Scalar is an element of the group's scalar field.
//
// Arithmetic methods set the receiver to the result and return it, so
// s.Add(a, b) computes s = a + b. Mixing scalars from different groups panics.
type Scalar interface {
	// Zero sets the receiver to 0 and returns it
	Zero() Scalar
	// Set copies a into the receiver
	Set(a Scalar) Scalar
	// SetUint64 sets the receiver to v mod order
	SetUint64(v uint64) Scalar
	// SetBytes decodes a canonical encoding; non-canonical input is rejected
	SetBytes(data []byte) (Scalar, error)
	// SetRandom samples a uniform scalar from r
	SetRandom(r io.Reader) (Scalar, error)
	Add(a, b Scalar) Scalar
	Sub(a, b Scalar) Scalar
	Mul(a, b Scalar) Scalar
	Negate(a Scalar) Scalar
	// Invert sets the receiver to a^-1; it fails for zero
	Invert(a Scalar) (Scalar, error)
	Equal(b Scalar) bool
	IsZero() bool
	// Bytes returns the fixed-length canonical encoding
	Bytes() []byte
}

// Point is an element of the prime-order group.
//
// Like Scalar, arithmetic uses the mutable receiver pattern.
type Point interface {
	// Identity sets the receiver to the neutral element
	Identity() Point
	Set(a Point) Point
	Add(a, b Point) Point
	Sub(a, b Point) Point
	Negate(a Point) Point
	// ScalarMult sets the receiver to s*p
	ScalarMult(s Scalar, p Point) Point
	// ScalarBaseMult sets the receiver to s*G
	ScalarBaseMult(s Scalar) Point
	// SetBytes decodes a fixed-length encoding and rejects points outside
	// the prime-order subgroup
	SetBytes(data []byte) (Point, error)
	Bytes() []byte
	Equal(b Point) bool
	IsIdentity() bool
}

// Group is the capability the protocol code is parameterized over.
type Group interface {
	// Type returns the curve identifier
	Type() CurveType

	// Name returns the curve name
	Name() string

	// NewScalar returns a zero scalar
	NewScalar() Scalar

	// NewPoint returns the identity point
	NewPoint() Point

	// Generator returns a fresh copy of the base point
	Generator() Point

	// Order returns the prime order of the group
	Order() *big.Int

	// ScalarLen is the encoded scalar length in bytes
	ScalarLen() int

	// PointLen is the encoded point length in bytes
	PointLen() int

	// HashToScalar maps msg to a uniformly distributed scalar under the
	// domain separation tag dst
	HashToScalar(msg, dst []byte) Scalar

	// HashToPoint maps msg to a group element with unknown discrete log
	// relative to the generator
	HashToPoint(msg, dst []byte) (Point, error)
}

// NewGroup creates a group instance based on the curve type
func NewGroup(curveType CurveType) (Group, error) {
	switch curveType {
	case Secp256k1:
		return secp256k1Group, nil
	case Ed25519:
		return ed25519Group, nil
	case BabyJubjub:
		return babyJubjubGroup, nil
	default:
		return nil, ErrUnsupportedCurve
	}
}

// MustGroup is like NewGroup but panics on unsupported curves.
// It is intended for tests and package-level initialization.
func MustGroup(curveType CurveType) Group {
	g, err := NewGroup(curveType)
	if err != nil {
		panic(err)
	}
	return g
}

// ScalarFromID maps a participant identifier to its evaluation point
func ScalarFromID(g Group, id uint32) Scalar {
	return g.NewScalar().SetUint64(uint64(id))
}

// reduceWide reduces a big-endian integer modulo order into a fixed-size
// big-endian buffer of size bytes
func reduceWide(data []byte, order *big.Int, size int) []byte {
	v := new(big.Int).SetBytes(data)
	v.Mod(v, order)
	out := make([]byte, size)
	v.FillBytes(out)
	v.SetInt64(0)
	return out
}
