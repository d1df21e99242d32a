// Package math provides polynomial arithmetic and Shamir secret sharing over
// the scalar field of a curve.Group
package math

import (
	"io"

	"github.com/Caqil/gennaro-dkg/pkg/crypto/curve"
)

// Polynomial represents a polynomial over the group's scalar field
// f(x) = coefficients[0] + coefficients[1]*x + coefficients[2]*x^2 + ...
type Polynomial struct {
	// Coefficients in ascending order (index 0 is constant term)
	Coefficients []curve.Scalar

	group curve.Group
}

// NewRandomPolynomial generates a random polynomial of given degree.
// If constantTerm is non-nil it becomes a₀, otherwise a₀ is random too.
// It fails only if rng fails.
func NewRandomPolynomial(g curve.Group, degree int, constantTerm curve.Scalar, rng io.Reader) (*Polynomial, error) {
	if g == nil {
		return nil, ErrNilGroup
	}
	if degree < 0 {
		return nil, ErrInvalidDegree
	}

	p := &Polynomial{Coefficients: make([]curve.Scalar, degree+1), group: g}

	for i := 0; i <= degree; i++ {
		if i == 0 && constantTerm != nil {
			p.Coefficients[0] = g.NewScalar().Set(constantTerm)
			continue
		}
		coef, err := g.NewScalar().SetRandom(rng)
		if err != nil {
			p.Zeroize()
			return nil, err
		}
		p.Coefficients[i] = coef
	}

	return p, nil
}

// Degree returns the nominal degree, len(Coefficients)-1
func (p *Polynomial) Degree() int {
	return len(p.Coefficients) - 1
}

// Group returns the group the coefficients belong to
func (p *Polynomial) Group() curve.Group {
	return p.group
}

// Constant returns a copy of the constant term
func (p *Polynomial) Constant() curve.Scalar {
	return p.group.NewScalar().Set(p.Coefficients[0])
}

// Evaluate evaluates the polynomial at x using Horner's method
func (p *Polynomial) Evaluate(x curve.Scalar) curve.Scalar {
	n := len(p.Coefficients)
	result := p.group.NewScalar().Set(p.Coefficients[n-1])

	// f(x) = a₀ + x(a₁ + x(a₂ + x(a₃ + ...)))
	for i := n - 2; i >= 0; i-- {
		result.Mul(result, x)
		result.Add(result, p.Coefficients[i])
	}

	return result
}

// EvaluateAt evaluates the polynomial at a participant identifier
func (p *Polynomial) EvaluateAt(id uint32) curve.Scalar {
	return p.Evaluate(curve.ScalarFromID(p.group, id))
}

// Zeroize overwrites every coefficient with zero
func (p *Polynomial) Zeroize() {
	if p == nil {
		return
	}
	for _, coef := range p.Coefficients {
		if coef != nil {
			coef.Zero()
		}
	}
}

// IsZero checks if all coefficients are zero
func (p *Polynomial) IsZero() bool {
	for _, coef := range p.Coefficients {
		if !coef.IsZero() {
			return false
		}
	}
	return true
}
