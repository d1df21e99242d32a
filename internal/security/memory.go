// Package security provides security utilities for protecting sensitive data
package security

import (
	"crypto/subtle"
	"runtime"

	"github.com/Caqil/gennaro-dkg/pkg/crypto/curve"
)

// Zeroizer is implemented by values that hold secret material
type Zeroizer interface {
	Zeroize()
}

// SecureZero securely zeros out a byte slice to prevent secrets from remaining in memory
// This uses a method that prevents the compiler from optimizing away the zeroing
func SecureZero(data []byte) {
	if len(data) == 0 {
		return
	}

	zeros := make([]byte, len(data))
	subtle.ConstantTimeCopy(1, data, zeros)

	// Force a memory barrier
	runtime.KeepAlive(data)
}

// ZeroScalars overwrites every non-nil scalar with zero
func ZeroScalars(scalars ...curve.Scalar) {
	for _, s := range scalars {
		if s != nil {
			s.Zero()
		}
	}
	runtime.KeepAlive(scalars)
}

// Bytes is a byte slice holding secret material
type Bytes []byte

// Zeroize implements Zeroizer
func (b Bytes) Zeroize() { SecureZero(b) }

// Wipe zeroizes every non-nil item. It is meant to be deferred.
func Wipe(items ...Zeroizer) {
	for _, item := range items {
		if item != nil {
			item.Zeroize()
		}
	}
}

// ConstantTimeCompare compares two byte slices in constant time
// Returns true if they are equal, false otherwise
func ConstantTimeCompare(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}
