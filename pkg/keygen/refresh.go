package keygen

import (
	"bytes"
	"fmt"
	"slices"

	"github.com/Caqil/gennaro-dkg/pkg/crypto/curve"
	"github.com/samber/lo"
)

// ApplyRefresh adds a refresh delta to an existing key share. The group key
// is unchanged; the secret share and every verification share move to the
// refreshed sharing. Participants missing from the delta's qualified set
// are moved to Excluded.
func ApplyRefresh(current, delta *Output) (*Output, error) {
	switch {
	case current == nil || delta == nil:
		return nil, fmt.Errorf("%w: nil output", ErrIncompatibleShares)
	case !delta.Refresh:
		return nil, fmt.Errorf("%w: delta is not a refresh output", ErrIncompatibleShares)
	case current.Group.Type() != delta.Group.Type():
		return nil, fmt.Errorf("%w: curve %s vs %s", ErrIncompatibleShares, current.Group.Name(), delta.Group.Name())
	case current.ID != delta.ID:
		return nil, fmt.Errorf("%w: holder %d vs %d", ErrIncompatibleShares, current.ID, delta.ID)
	case current.Threshold != delta.Threshold:
		return nil, fmt.Errorf("%w: threshold %d vs %d", ErrIncompatibleShares, current.Threshold, delta.Threshold)
	case !delta.PublicKey.IsIdentity():
		return nil, fmt.Errorf("%w: delta changes the group key", ErrIncompatibleShares)
	}

	g := current.Group
	verification := make(map[uint32]curve.Point, len(delta.VerificationShares))
	for id, d := range delta.VerificationShares {
		if old, ok := current.VerificationShares[id]; ok {
			verification[id] = g.NewPoint().Add(old, d)
		}
	}

	qualified := lo.Filter(current.Qualified, func(id uint32, _ int) bool {
		return slices.Contains(delta.Qualified, id)
	})
	excluded := lo.Union(current.Excluded, lo.Without(current.Qualified, qualified...))
	slices.Sort(excluded)

	out := &Output{
		ID:                 current.ID,
		Group:              g,
		Threshold:          current.Threshold,
		SessionID:          bytes.Clone(delta.SessionID),
		PublicKey:          g.NewPoint().Set(current.PublicKey),
		SecretShare:        g.NewScalar().Add(current.SecretShare, delta.SecretShare),
		VerificationShares: verification,
		Qualified:          qualified,
		Excluded:           excluded,
		Audit:              delta.Audit,
	}
	if !out.VerifyShare() {
		out.Zeroize()
		return nil, fmt.Errorf("%w: refreshed share does not verify", ErrIncompatibleShares)
	}
	return out, nil
}
