// Package network - Pairwise authenticated encryption for share delivery
package network

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"slices"
	"sync"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"

	"github.com/Caqil/gennaro-dkg/internal/security"
	"github.com/Caqil/gennaro-dkg/pkg/crypto/hash"
)

const (
	// channelVersion is prefixed to every ciphertext and authenticated
	channelVersion uint32 = 1

	// IdentityKeySize is the size of X25519 identity keys
	IdentityKeySize = curve25519.ScalarSize

	// TagSize is the size of a frame authentication tag
	TagSize = blake2b.Size256
)

// PairwiseCipher encrypts shares between the local participant and each
// peer with XChaCha20-Poly1305. The key of a directed pair (from, to) is
// derived with HKDF from the X25519 agreement of the two identity keys and
// the session identifier, so ciphertexts do not carry over to another pair
// or session.
//
// The same agreement keys a BLAKE2b MAC per directed pair that tags whole
// frames, so a transport can check the sender of broadcasts too.
//
// PairwiseCipher implements keygen.PairCipher and FrameAuthenticator.
type PairwiseCipher struct {
	self    uint32
	private []byte
	peers   map[uint32][]byte
	session []byte

	mu    sync.Mutex
	aeads map[pairKey]cipher.AEAD
	macs  map[pairKey][]byte

	// Nonce tracker to reject replayed ciphertexts
	nonceTracker *nonceTracker
}

type pairKey struct {
	from, to uint32
}

// nonceTracker prevents nonce reuse attacks
type nonceTracker struct {
	used map[string]bool
	mu   sync.Mutex
	// Maximum size before cleanup (prevent memory exhaustion)
	maxSize int
}

func newNonceTracker(maxSize int) *nonceTracker {
	return &nonceTracker{
		used:    make(map[string]bool),
		maxSize: maxSize,
	}
}

// checkAndMarkUsed checks if nonce was used and marks it as used
func (nt *nonceTracker) checkAndMarkUsed(nonce []byte) bool {
	nt.mu.Lock()
	defer nt.mu.Unlock()

	key := string(nonce)
	if nt.used[key] {
		return false
	}

	if len(nt.used) >= nt.maxSize {
		for k := range nt.used {
			delete(nt.used, k)
			if len(nt.used) < nt.maxSize/2 {
				break
			}
		}
	}

	nt.used[key] = true
	return true
}

// GenerateIdentityKey returns a fresh X25519 private key and its public key
func GenerateIdentityKey(r io.Reader) (private, public []byte, err error) {
	if r == nil {
		r = rand.Reader
	}
	private = make([]byte, IdentityKeySize)
	if _, err := io.ReadFull(r, private); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}
	public, err = IdentityPublicKey(private)
	if err != nil {
		security.SecureZero(private)
		return nil, nil, err
	}
	return private, public, nil
}

// IdentityPublicKey derives the X25519 public key of private
func IdentityPublicKey(private []byte) ([]byte, error) {
	if len(private) != IdentityKeySize {
		return nil, ErrInvalidKey
	}
	public, err := curve25519.X25519(private, curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return public, nil
}

// NewPairwiseCipher creates the channel of participant self. peers maps
// every other participant to its X25519 public key.
func NewPairwiseCipher(self uint32, private []byte, peers map[uint32][]byte, sessionID []byte) (*PairwiseCipher, error) {
	if len(private) != IdentityKeySize {
		return nil, ErrInvalidKey
	}
	if len(sessionID) == 0 {
		return nil, fmt.Errorf("%w: empty session id", ErrInvalidConfig)
	}

	keys := make(map[uint32][]byte, len(peers))
	for id, pub := range peers {
		if id == self {
			continue
		}
		if len(pub) != IdentityKeySize {
			return nil, fmt.Errorf("%w: peer %d", ErrInvalidKey, id)
		}
		keys[id] = append([]byte(nil), pub...)
	}

	return &PairwiseCipher{
		self:         self,
		private:      append([]byte(nil), private...),
		peers:        keys,
		session:      append([]byte(nil), sessionID...),
		aeads:        make(map[pairKey]cipher.AEAD),
		macs:         make(map[pairKey][]byte),
		nonceTracker: newNonceTracker(10000),
	}, nil
}

// Seal encrypts plaintext from the local participant to peer to.
// Format: version(4) || nonce(24) || ciphertext || tag(16)
func (c *PairwiseCipher) Seal(from, to uint32, plaintext []byte) ([]byte, error) {
	if from != c.self {
		return nil, fmt.Errorf("%w: cannot seal as %d", ErrEncryptionFailed, from)
	}
	aead, err := c.aead(from, to, to)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, ErrEncryptionFailed
	}

	header := make([]byte, 4, 4+len(nonce)+len(plaintext)+aead.Overhead())
	binary.BigEndian.PutUint32(header, channelVersion)
	out := append(header, nonce...)
	return aead.Seal(out, nonce, plaintext, c.additionalData(from, to)), nil
}

// Open decrypts a ciphertext sent by peer from to the local participant
func (c *PairwiseCipher) Open(from, to uint32, ciphertext []byte) ([]byte, error) {
	if to != c.self {
		return nil, fmt.Errorf("%w: cannot open for %d", ErrDecryptionFailed, to)
	}
	aead, err := c.aead(from, to, from)
	if err != nil {
		return nil, err
	}

	nonceSize := aead.NonceSize()
	if len(ciphertext) < 4+nonceSize+aead.Overhead() {
		return nil, ErrDecryptionFailed
	}
	if binary.BigEndian.Uint32(ciphertext[:4]) != channelVersion {
		return nil, ErrDecryptionFailed
	}
	nonce := ciphertext[4 : 4+nonceSize]

	plaintext, err := aead.Open(nil, nonce, ciphertext[4+nonceSize:], c.additionalData(from, to))
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	// only authentic ciphertexts consume a nonce
	if !c.nonceTracker.checkAndMarkUsed(nonce) {
		security.SecureZero(plaintext)
		return nil, ErrInvalidNonce
	}
	return plaintext, nil
}

// Close erases the identity key and the derived pair keys
func (c *PairwiseCipher) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	security.SecureZero(c.private)
	for _, key := range c.macs {
		security.SecureZero(key)
	}
	c.private = nil
	c.aeads = nil
	c.macs = nil
}

// Peers returns the participants the local one shares a channel with
func (c *PairwiseCipher) Peers() []uint32 {
	ids := make([]uint32, 0, len(c.peers))
	for id := range c.peers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Tag authenticates frame from the local participant to peer to
func (c *PairwiseCipher) Tag(to uint32, frame []byte) ([]byte, error) {
	return c.mac(c.self, to, to, frame)
}

// CheckTag reports whether tag authenticates frame as sent by peer from to
// the local participant
func (c *PairwiseCipher) CheckTag(from uint32, frame, tag []byte) bool {
	want, err := c.mac(from, c.self, from, frame)
	if err != nil {
		return false
	}
	return security.ConstantTimeCompare(want, tag)
}

func (c *PairwiseCipher) mac(from, to, peer uint32, frame []byte) ([]byte, error) {
	key, err := c.macKey(from, to, peer)
	if err != nil {
		return nil, err
	}
	h, err := blake2b.New256(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}
	h.Write(c.additionalData(from, to))
	h.Write(frame)
	return h.Sum(nil), nil
}

// macKey returns the MAC key of the directed pair, deriving it on first use
// from the agreement with peer
func (c *PairwiseCipher) macKey(from, to, peer uint32) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.private == nil {
		return nil, ErrTransportClosed
	}
	k := pairKey{from: from, to: to}
	if key, ok := c.macs[k]; ok {
		return key, nil
	}
	key, err := c.derive(peer, fmt.Sprintf("frame|%d|%d", from, to), TagSize)
	if err != nil {
		return nil, err
	}
	c.macs[k] = key
	return key, nil
}

// derive expands the X25519 agreement with peer into a key for context.
// The caller holds c.mu.
func (c *PairwiseCipher) derive(peer uint32, context string, size int) ([]byte, error) {
	pub, ok := c.peers[peer]
	if !ok {
		return nil, fmt.Errorf("%w: no identity key for %d", ErrInvalidKey, peer)
	}
	shared, err := curve25519.X25519(c.private, pub)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	defer security.SecureZero(shared)

	key, err := hash.DeriveKey(shared, c.session, context, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}
	return key, nil
}

func (c *PairwiseCipher) additionalData(from, to uint32) []byte {
	ad := make([]byte, 0, len(c.session)+8)
	ad = append(ad, c.session...)
	ad = binary.BigEndian.AppendUint32(ad, from)
	return binary.BigEndian.AppendUint32(ad, to)
}

// aead returns the cipher of the directed pair, deriving it on first use
// from the agreement with peer
func (c *PairwiseCipher) aead(from, to, peer uint32) (cipher.AEAD, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.private == nil {
		return nil, ErrTransportClosed
	}
	k := pairKey{from: from, to: to}
	if aead, ok := c.aeads[k]; ok {
		return aead, nil
	}

	key, err := c.derive(peer, fmt.Sprintf("share|%d|%d", from, to), chacha20poly1305.KeySize)
	if err != nil {
		return nil, err
	}
	defer security.SecureZero(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, ErrEncryptionFailed
	}
	c.aeads[k] = aead
	return aead, nil
}
