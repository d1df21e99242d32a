package commitment

import (
	"github.com/Caqil/gennaro-dkg/internal/math"
	"github.com/Caqil/gennaro-dkg/pkg/crypto/curve"
)

// pedersenDST separates the second generator from every other hash use
const pedersenDST = "GENNARO-DKG-PEDERSEN-H-V1"

// GeneratorPair represents a pair of generators for Pedersen commitments
type GeneratorPair struct {
	Group curve.Group
	G     curve.Point // Primary generator (base point)
	H     curve.Point // Secondary generator
}

// NewGeneratorPair creates a new generator pair for Pedersen commitments.
// H is derived deterministically by hashing to the curve, so nobody knows
// log_G(H).
func NewGeneratorPair(g curve.Group) (*GeneratorPair, error) {
	if g == nil {
		return nil, ErrNilGroup
	}

	msg := []byte("PEDERSEN_GENERATOR_H_" + g.Name())
	h, err := g.HashToPoint(msg, []byte(pedersenDST))
	if err != nil {
		return nil, err
	}

	return &GeneratorPair{Group: g, G: g.Generator(), H: h}, nil
}

// Commit creates a Pedersen commitment: C = value*G + blinding*H
func (gp *GeneratorPair) Commit(value, blinding curve.Scalar) curve.Point {
	c := gp.Group.NewPoint().ScalarBaseMult(value)
	return c.Add(c, gp.Group.NewPoint().ScalarMult(blinding, gp.H))
}

// Pedersen commits to poly with blinding polynomial blind:
// C_k = a_k*G + b_k*H
func (gp *GeneratorPair) Pedersen(poly, blind *math.Polynomial) (Vector, error) {
	if poly == nil || blind == nil {
		return nil, ErrNilValue
	}
	if len(poly.Coefficients) != len(blind.Coefficients) {
		return nil, ErrInvalidLength
	}

	v := make(Vector, len(poly.Coefficients))
	for i := range poly.Coefficients {
		v[i] = gp.Commit(poly.Coefficients[i], blind.Coefficients[i])
	}
	return v, nil
}

// VerifyPedersen checks share*G + blindShare*H == Σ v[k] * id^k
func (gp *GeneratorPair) VerifyPedersen(v Vector, id uint32, share, blindShare curve.Scalar) bool {
	if share == nil || blindShare == nil || len(v) == 0 {
		return false
	}
	lhs := gp.Commit(share, blindShare)
	rhs := v.EvaluateAt(gp.Group, id)
	return lhs.Equal(rhs)
}
