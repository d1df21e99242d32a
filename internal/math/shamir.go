package math

import (
	"io"

	"github.com/Caqil/gennaro-dkg/internal/security"
	"github.com/Caqil/gennaro-dkg/pkg/crypto/curve"
)

// Share represents a single share in Shamir Secret Sharing
type Share struct {
	// ID is the x-coordinate (participant identifier, never zero)
	ID uint32

	// Value is the y-coordinate f(ID)
	Value curve.Scalar
}

// Zeroize wipes the share value
func (s *Share) Zeroize() {
	if s != nil && s.Value != nil {
		s.Value.Zero()
	}
}

// ShamirSecretSharing implements (t, n) threshold secret sharing
type ShamirSecretSharing struct {
	// Threshold is the minimum number of shares needed to reconstruct
	Threshold int

	// Group supplies the scalar field
	Group curve.Group
}

// NewShamirSecretSharing creates a new Shamir Secret Sharing instance
func NewShamirSecretSharing(g curve.Group, threshold, numShares int) (*ShamirSecretSharing, error) {
	if g == nil {
		return nil, ErrNilGroup
	}
	if err := security.ValidateThreshold(threshold, numShares); err != nil {
		return nil, err
	}

	return &ShamirSecretSharing{Threshold: threshold, Group: g}, nil
}

// Split splits a secret into one share per identifier
func (sss *ShamirSecretSharing) Split(secret curve.Scalar, ids []uint32, rng io.Reader) ([]*Share, error) {
	if secret == nil {
		return nil, ErrNilSecret
	}
	if len(ids) < sss.Threshold {
		return nil, ErrInsufficientShares
	}
	if err := security.ValidatePartyIDs(ids); err != nil {
		return nil, err
	}

	// f(x) = secret + a₁x + a₂x² + ... + a_{t-1}x^{t-1}
	poly, err := NewRandomPolynomial(sss.Group, sss.Threshold-1, secret, rng)
	if err != nil {
		return nil, err
	}
	defer poly.Zeroize()

	shares := make([]*Share, len(ids))
	for i, id := range ids {
		shares[i] = &Share{ID: id, Value: poly.EvaluateAt(id)}
	}

	return shares, nil
}

// Combine reconstructs the secret from t or more shares
// Uses Lagrange interpolation to recover f(0) = secret
func (sss *ShamirSecretSharing) Combine(shares []*Share) (curve.Scalar, error) {
	if len(shares) < sss.Threshold {
		return nil, ErrInsufficientShares
	}

	// Take exactly t shares (if more provided, use first t)
	selected := shares[:sss.Threshold]

	ids := make([]uint32, len(selected))
	for i, share := range selected {
		if share == nil || share.Value == nil {
			return nil, ErrNilShare
		}
		ids[i] = share.ID
	}
	if err := security.ValidatePartyIDs(ids); err != nil {
		return nil, err
	}

	secret := sss.Group.NewScalar()
	term := sss.Group.NewScalar()
	for _, share := range selected {
		lambda, err := LagrangeCoefficient(sss.Group, share.ID, ids)
		if err != nil {
			return nil, err
		}
		secret.Add(secret, term.Mul(lambda, share.Value))
	}
	term.Zero()

	return secret, nil
}

// LagrangeCoefficient returns λ_id = ∏_{j≠id} x_j / (x_j - x_id) for
// interpolation at zero over the identifiers ids
func LagrangeCoefficient(g curve.Group, id uint32, ids []uint32) (curve.Scalar, error) {
	if id == 0 {
		return nil, ErrZeroPoint
	}

	xi := curve.ScalarFromID(g, id)
	num := g.NewScalar().SetUint64(1)
	den := g.NewScalar().SetUint64(1)
	diff := g.NewScalar()
	found := false

	for _, other := range ids {
		if other == id {
			found = true
			continue
		}
		xj := curve.ScalarFromID(g, other)
		num.Mul(num, xj)
		den.Mul(den, diff.Sub(xj, xi))
	}
	if !found {
		return nil, ErrPointNotInSet
	}

	inv, err := g.NewScalar().Invert(den)
	if err != nil {
		return nil, ErrDuplicatePoints
	}

	return num.Mul(num, inv), nil
}
