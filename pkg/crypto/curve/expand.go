package curve

import (
	"crypto/sha256"
)

const maxDSTLength = 255

// expandMessageXMD implements expand_message_xmd from RFC 9380 with SHA-256.
// lenInBytes must not exceed 255*32.
func expandMessageXMD(msg, dst []byte, lenInBytes int) []byte {
	// b_in_bytes = 32 for SHA-256
	// ell = ceil(len_in_bytes / b_in_bytes)
	bInBytes := sha256.Size
	ell := (lenInBytes + bInBytes - 1) / bInBytes

	// Oversized tags are replaced by H("H2C-OVERSIZE-DST-" || DST)
	if len(dst) > maxDSTLength {
		h := sha256.New()
		h.Write([]byte("H2C-OVERSIZE-DST-"))
		h.Write(dst)
		dst = h.Sum(nil)
	}

	// DST_prime = DST || I2OSP(len(DST), 1)
	dstPrime := make([]byte, 0, len(dst)+1)
	dstPrime = append(dstPrime, dst...)
	dstPrime = append(dstPrime, byte(len(dst)))

	// Z_pad = I2OSP(0, r_in_bytes) where r_in_bytes = 64 for SHA-256
	zPad := make([]byte, sha256.BlockSize)

	h := sha256.New()
	h.Write(zPad)
	h.Write(msg)
	h.Write([]byte{byte(lenInBytes >> 8), byte(lenInBytes), 0})
	h.Write(dstPrime)
	b0 := h.Sum(nil)

	// b_1 = H(b_0 || I2OSP(1, 1) || DST_prime)
	h.Reset()
	h.Write(b0)
	h.Write([]byte{1})
	h.Write(dstPrime)
	bi := h.Sum(nil)

	uniformBytes := make([]byte, 0, ell*bInBytes)
	uniformBytes = append(uniformBytes, bi...)

	strxor := make([]byte, bInBytes)
	for i := 2; i <= ell; i++ {
		// b_i = H(strxor(b_0, b_(i-1)) || I2OSP(i, 1) || DST_prime)
		for j := 0; j < bInBytes; j++ {
			strxor[j] = b0[j] ^ bi[j]
		}
		h.Reset()
		h.Write(strxor)
		h.Write([]byte{byte(i)})
		h.Write(dstPrime)
		bi = h.Sum(nil)
		uniformBytes = append(uniformBytes, bi...)
	}

	return uniformBytes[:lenInBytes]
}

// hashCandidate returns the try-and-increment candidate for counter.
// The counter is appended to the message so candidates are independent.
func hashCandidate(msg, dst []byte, counter byte, length int) []byte {
	buf := make([]byte, 0, len(msg)+1)
	buf = append(buf, msg...)
	buf = append(buf, counter)
	return expandMessageXMD(buf, dst, length)
}
