// Package zk implements the zero-knowledge proofs used by the DKG
package zk

import (
	"io"

	"github.com/Caqil/gennaro-dkg/internal/security"
	"github.com/Caqil/gennaro-dkg/pkg/crypto/curve"
	"github.com/Caqil/gennaro-dkg/pkg/crypto/hash"
)

const schnorrDST = "GENNARO-DKG-SCHNORR-POK-V1"

// SchnorrProof represents a Schnorr proof of knowledge of discrete logarithm
// Proves knowledge of x such that Y = x*G without revealing x
type SchnorrProof struct {
	// Commitment is the prover's commitment R = k*G
	Commitment curve.Point

	// Response is z = k + e*x mod n
	Response curve.Scalar
}

// ProveSchnorr creates a Schnorr proof of knowledge of discrete log
// Proves knowledge of secret such that publicPoint = secret * G
// Uses Fiat-Shamir heuristic for non-interactive proof
func ProveSchnorr(g curve.Group, secret curve.Scalar, publicPoint curve.Point, context []byte, rng io.Reader) (*SchnorrProof, error) {
	if g == nil {
		return nil, ErrNilGroup
	}
	if secret == nil {
		return nil, ErrNilSecret
	}
	if publicPoint == nil {
		return nil, ErrNilPublicPoint
	}

	if !g.NewPoint().ScalarBaseMult(secret).Equal(publicPoint) {
		return nil, ErrInvalidWitness
	}

	k, err := g.NewScalar().SetRandom(rng)
	if err != nil {
		return nil, err
	}
	defer security.ZeroScalars(k)

	commitment := g.NewPoint().ScalarBaseMult(k)

	// e = H(G || Y || R || context)
	challenge := computeSchnorrChallenge(g, publicPoint, commitment, context)

	// z = k + e*secret
	response := g.NewScalar().Mul(challenge, secret)
	response.Add(response, k)

	return &SchnorrProof{Commitment: commitment, Response: response}, nil
}

// Verify checks that z*G = R + e*Y
func (sp *SchnorrProof) Verify(g curve.Group, publicPoint curve.Point, context []byte) bool {
	if sp == nil || sp.Commitment == nil || sp.Response == nil || publicPoint == nil {
		return false
	}

	challenge := computeSchnorrChallenge(g, publicPoint, sp.Commitment, context)

	zG := g.NewPoint().ScalarBaseMult(sp.Response)
	rightSide := g.NewPoint().ScalarMult(challenge, publicPoint)
	rightSide.Add(rightSide, sp.Commitment)

	return zG.Equal(rightSide)
}

// computeSchnorrChallenge computes Fiat-Shamir challenge
// e = H(G || Y || R || context) mod n
func computeSchnorrChallenge(g curve.Group, publicPoint, commitment curve.Point, context []byte) curve.Scalar {
	return hash.NewTranscript(schnorrDST).
		AppendPoints("generator", g.Generator()).
		AppendPoints("public", publicPoint).
		AppendPoints("commitment", commitment).
		AppendMessage("context", context).
		Challenge(g, []byte(schnorrDST))
}
