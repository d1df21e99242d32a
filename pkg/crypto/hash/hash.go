// Package hash provides transcript hashing and key derivation helpers
package hash

import (
	"crypto/sha256"
	"encoding/binary"
	"io"

	"github.com/Caqil/gennaro-dkg/pkg/crypto/curve"
	"golang.org/x/crypto/hkdf"
)

// Transcript accumulates labelled, length-prefixed values so that distinct
// sequences of inputs can never serialize to the same byte string
type Transcript struct {
	buf []byte
}

// NewTranscript starts a transcript bound to a protocol label
func NewTranscript(label string) *Transcript {
	t := &Transcript{buf: make([]byte, 0, 256)}
	t.AppendMessage("protocol", []byte(label))
	return t
}

// AppendMessage appends a labelled byte string
func (t *Transcript) AppendMessage(label string, data []byte) *Transcript {
	t.appendLengthPrefixed([]byte(label))
	t.appendLengthPrefixed(data)
	return t
}

// AppendUint32 appends a labelled integer in big-endian form
func (t *Transcript) AppendUint32(label string, v uint32) *Transcript {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return t.AppendMessage(label, b[:])
}

// AppendPoints appends the encodings of points under one label
func (t *Transcript) AppendPoints(label string, points ...curve.Point) *Transcript {
	t.appendLengthPrefixed([]byte(label))
	var count [4]byte
	binary.BigEndian.PutUint32(count[:], uint32(len(points)))
	t.buf = append(t.buf, count[:]...)
	for _, p := range points {
		t.appendLengthPrefixed(p.Bytes())
	}
	return t
}

// Bytes returns the raw transcript
func (t *Transcript) Bytes() []byte {
	out := make([]byte, len(t.buf))
	copy(out, t.buf)
	return out
}

// Digest returns SHA-256 of the transcript
func (t *Transcript) Digest() []byte {
	sum := sha256.Sum256(t.buf)
	return sum[:]
}

// Challenge maps the transcript to a scalar of g under dst
func (t *Transcript) Challenge(g curve.Group, dst []byte) curve.Scalar {
	return g.HashToScalar(t.buf, dst)
}

func (t *Transcript) appendLengthPrefixed(data []byte) {
	var l [4]byte
	binary.BigEndian.PutUint32(l[:], uint32(len(data)))
	t.buf = append(t.buf, l[:]...)
	t.buf = append(t.buf, data...)
}

// HKDF derives key material using HKDF (HMAC-based Key Derivation Function)
// This is useful for deriving multiple keys from a single master key
func HKDF(secret, salt, info []byte, length int) ([]byte, error) {
	if length <= 0 {
		return nil, ErrInvalidLength
	}
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}

	hkdfReader := hkdf.New(sha256.New, secret, salt, info)

	key := make([]byte, length)
	if _, err := io.ReadFull(hkdfReader, key); err != nil {
		return nil, err
	}

	return key, nil
}

// DeriveKey derives a key from a master key and context information
// Uses HKDF with domain separation
func DeriveKey(masterKey, salt []byte, context string, length int) ([]byte, error) {
	info := []byte("gennaro-dkg-v1|" + context)
	return HKDF(masterKey, salt, info, length)
}
