package keygen

import (
	"fmt"
	"slices"

	"github.com/Caqil/gennaro-dkg/internal/math"
	"github.com/Caqil/gennaro-dkg/pkg/crypto/curve"
)

// Output is a participant's result of a successful run
type Output struct {
	// ID is the holder of SecretShare
	ID uint32

	Group     curve.Group
	Threshold int
	SessionID []byte

	// PublicKey is the group key, the sum of the qualified constant terms.
	// For a refresh run it is the identity.
	PublicKey curve.Point

	// SecretShare is the evaluation of the joint polynomial at ID
	SecretShare curve.Scalar

	// VerificationShares holds the joint commitments evaluated at every
	// roster identifier, i.e. share*G for each holder
	VerificationShares map[uint32]curve.Point

	Qualified []uint32
	Excluded  []uint32

	// Audit is the participant's audit log at completion
	Audit []AuditEntry

	// Refresh marks a share delta produced by a refresh run
	Refresh bool
}

// Zeroize wipes the secret share
func (o *Output) Zeroize() {
	if o != nil && o.SecretShare != nil {
		o.SecretShare.Zero()
	}
}

// VerifyShare checks that the secret share matches the published
// verification share for ID
func (o *Output) VerifyShare() bool {
	expected, ok := o.VerificationShares[o.ID]
	if !ok || o.SecretShare == nil {
		return false
	}
	return o.Group.NewPoint().ScalarBaseMult(o.SecretShare).Equal(expected)
}

// ReconstructSecret interpolates the group secret from the first Threshold
// outputs. It exists for tests and simulations; a deployment never brings
// shares together.
func ReconstructSecret(outputs []*Output) (curve.Scalar, error) {
	if len(outputs) == 0 {
		return nil, fmt.Errorf("%w: no outputs", math.ErrInsufficientShares)
	}
	first := outputs[0]
	sss, err := math.NewShamirSecretSharing(first.Group, first.Threshold, max(len(outputs), first.Threshold))
	if err != nil {
		return nil, err
	}

	shares := make([]*math.Share, 0, len(outputs))
	for _, o := range outputs {
		if o.Group.Type() != first.Group.Type() || o.Threshold != first.Threshold {
			return nil, ErrIncompatibleShares
		}
		shares = append(shares, &math.Share{ID: o.ID, Value: o.SecretShare})
	}
	return sss.Combine(shares)
}

// PublicKeyFromShares interpolates the group key in the exponent from the
// verification shares of any Threshold qualified participants
func (o *Output) PublicKeyFromShares(ids []uint32) (curve.Point, error) {
	if len(ids) < o.Threshold {
		return nil, math.ErrInsufficientShares
	}
	ids = slices.Clone(ids[:o.Threshold])

	g := o.Group
	result := g.NewPoint()
	for _, id := range ids {
		share, ok := o.VerificationShares[id]
		if !ok {
			return nil, fmt.Errorf("%w: %d", ErrIncompatibleShares, id)
		}
		lambda, err := math.LagrangeCoefficient(g, id, ids)
		if err != nil {
			return nil, err
		}
		result.Add(result, g.NewPoint().ScalarMult(lambda, share))
	}
	return result, nil
}
