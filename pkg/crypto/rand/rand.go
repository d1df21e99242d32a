// Package rand provides cryptographically secure random number generation
package rand

import (
	"crypto/rand"
	"crypto/sha256"
	"io"
	"math/big"

	"golang.org/x/crypto/chacha20"
)

// Reader is the default cryptographically secure random number generator
var Reader io.Reader = rand.Reader

// GenerateRandomBytes generates n cryptographically secure random bytes
func GenerateRandomBytes(n int) ([]byte, error) {
	if n <= 0 {
		return nil, ErrInvalidLength
	}

	bytes := make([]byte, n)
	if _, err := io.ReadFull(Reader, bytes); err != nil {
		return nil, err
	}

	return bytes, nil
}

// GenerateRandomInt generates a random integer in range [min, max) from r
func GenerateRandomInt(r io.Reader, min, max int) (int, error) {
	if min >= max {
		return 0, ErrInvalidRange
	}

	diff := max - min
	n, err := rand.Int(r, big.NewInt(int64(diff)))
	if err != nil {
		return 0, err
	}

	return int(n.Int64()) + min, nil
}

// Shuffle performs a Fisher-Yates shuffle driven by r
func Shuffle(r io.Reader, n int, swap func(i, j int)) error {
	if n < 0 {
		return ErrInvalidLength
	}

	for i := n - 1; i > 0; i-- {
		j, err := GenerateRandomInt(r, 0, i+1)
		if err != nil {
			return err
		}
		swap(i, j)
	}

	return nil
}

// deterministicReader is a ChaCha20 keystream
type deterministicReader struct {
	cipher *chacha20.Cipher
}

// NewDeterministicReader returns a reproducible stream keyed by seed.
// It must only be used for simulations and tests, never for real key material.
func NewDeterministicReader(seed []byte) (io.Reader, error) {
	if len(seed) == 0 {
		return nil, ErrEmptySeed
	}
	key := sha256.Sum256(seed)
	nonce := make([]byte, chacha20.NonceSize)
	c, err := chacha20.NewUnauthenticatedCipher(key[:], nonce)
	if err != nil {
		return nil, err
	}
	return &deterministicReader{cipher: c}, nil
}

// DeriveReader returns an independent deterministic stream for label
func DeriveReader(seed []byte, label string) (io.Reader, error) {
	if len(seed) == 0 {
		return nil, ErrEmptySeed
	}
	material := make([]byte, 0, len(seed)+len(label)+1)
	material = append(material, seed...)
	material = append(material, 0)
	material = append(material, label...)
	return NewDeterministicReader(material)
}

func (d *deterministicReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	d.cipher.XORKeyStream(p, p)
	return len(p), nil
}
