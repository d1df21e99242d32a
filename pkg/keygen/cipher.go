package keygen

// PairCipher provides the confidential, authenticated channel between two
// participants. Shares are sealed by the dealer and opened by the recipient;
// implementations must bind both identifiers so a ciphertext cannot be
// replayed to another recipient.
type PairCipher interface {
	Seal(from, to uint32, plaintext []byte) ([]byte, error)
	Open(from, to uint32, ciphertext []byte) ([]byte, error)
}

// encodeShare serializes a share and, in Pedersen mode, its blind share
func encodeShare(share, blind []byte) []byte {
	out := make([]byte, 0, len(share)+len(blind))
	out = append(out, share...)
	return append(out, blind...)
}
