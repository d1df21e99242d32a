// Package commitment provides Feldman and Pedersen commitments to the
// coefficients of a sharing polynomial
package commitment

import (
	"fmt"

	"github.com/Caqil/gennaro-dkg/internal/math"
	"github.com/Caqil/gennaro-dkg/pkg/crypto/curve"
)

// Vector is an ordered commitment to polynomial coefficients, one group
// element per coefficient. Index 0 commits to the constant term.
type Vector []curve.Point

// Feldman commits to every coefficient as coefficient*G
func Feldman(poly *math.Polynomial) Vector {
	g := poly.Group()
	v := make(Vector, len(poly.Coefficients))
	for i, coef := range poly.Coefficients {
		v[i] = g.NewPoint().ScalarBaseMult(coef)
	}
	return v
}

// Len returns the number of commitments
func (v Vector) Len() int { return len(v) }

// Constant returns the commitment to the constant term
func (v Vector) Constant() curve.Point {
	if len(v) == 0 {
		return nil
	}
	return v[0]
}

// Evaluate computes Σ v[k] * x^k. The powers of x are built by repeated
// multiplication and every term is accumulated regardless of its value.
func (v Vector) Evaluate(g curve.Group, x curve.Scalar) curve.Point {
	result := g.NewPoint()
	term := g.NewPoint()
	power := g.NewScalar().SetUint64(1)

	for _, c := range v {
		result.Add(result, term.ScalarMult(power, c))
		power.Mul(power, x)
	}

	return result
}

// EvaluateAt evaluates the committed polynomial in the exponent at a
// participant identifier
func (v Vector) EvaluateAt(g curve.Group, id uint32) curve.Point {
	return v.Evaluate(g, curve.ScalarFromID(g, id))
}

// Validate checks the length and the position of identity elements.
// With zeroConstant the constant commitment must be the identity (a refresh
// polynomial), otherwise no element may be the identity.
func (v Vector) Validate(expectedLen int, zeroConstant bool) error {
	if len(v) != expectedLen {
		return fmt.Errorf("%w: got %d, want %d", ErrInvalidLength, len(v), expectedLen)
	}
	for i, c := range v {
		if c == nil {
			return fmt.Errorf("%w: index %d", ErrNilCommitment, i)
		}
		identity := c.IsIdentity()
		switch {
		case i == 0 && zeroConstant && !identity:
			return ErrNonZeroConstant
		case i == 0 && zeroConstant:
			continue
		case identity:
			return fmt.Errorf("%w: index %d", ErrIdentityCommitment, i)
		}
	}
	return nil
}

// Equal reports whether both vectors commit to the same elements
func (v Vector) Equal(other Vector) bool {
	if len(v) != len(other) {
		return false
	}
	equal := true
	for i := range v {
		if !v[i].Equal(other[i]) {
			equal = false
		}
	}
	return equal
}

// Clone deep-copies the vector
func (v Vector) Clone(g curve.Group) Vector {
	out := make(Vector, len(v))
	for i, c := range v {
		out[i] = g.NewPoint().Set(c)
	}
	return out
}

// Sum adds vectors coefficient-wise; all vectors must have equal length
func Sum(g curve.Group, vectors ...Vector) (Vector, error) {
	if len(vectors) == 0 {
		return nil, ErrEmptyValues
	}
	n := len(vectors[0])
	out := make(Vector, n)
	for i := range out {
		out[i] = g.NewPoint()
	}
	for _, v := range vectors {
		if len(v) != n {
			return nil, ErrInvalidLength
		}
		for i, c := range v {
			out[i].Add(out[i], c)
		}
	}
	return out, nil
}

// VerifyFeldman checks share*G == Σ v[k] * id^k
func VerifyFeldman(g curve.Group, v Vector, id uint32, share curve.Scalar) bool {
	if share == nil || len(v) == 0 {
		return false
	}
	lhs := g.NewPoint().ScalarBaseMult(share)
	rhs := v.EvaluateAt(g, id)
	return lhs.Equal(rhs)
}
