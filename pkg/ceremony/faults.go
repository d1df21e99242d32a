package ceremony

import (
	"github.com/samber/lo"

	"github.com/Caqil/gennaro-dkg/pkg/network"
)

// Misbehave makes the given dealers send shares that fail authentication
// and never answer the resulting complaints, so that every honest
// participant excludes them
func Misbehave(dealers ...uint32) Tamper {
	bad := make(map[uint32]bool, len(dealers))
	for _, id := range dealers {
		bad[id] = true
	}
	return func(from, to uint32, e *network.Envelope) *network.Envelope {
		if !bad[from] {
			return e
		}
		switch e.Type {
		case network.MessageTypeRound2Share:
			e.Payload = corruptCiphertext(e.Payload)
		case network.MessageTypeRound4:
			return nil
		}
		return e
	}
}

// Garble replaces the payloads of the given type sent by ids with bytes
// that do not decode
func Garble(t network.MessageType, ids ...uint32) Tamper {
	return func(from, to uint32, e *network.Envelope) *network.Envelope {
		if e.Type == t && lo.Contains(ids, from) {
			e.Payload = []byte{0xff, 0xff, 0xff}
		}
		return e
	}
}

// Drop discards every message of type t sent by ids
func Drop(t network.MessageType, ids ...uint32) Tamper {
	return func(from, to uint32, e *network.Envelope) *network.Envelope {
		if e.Type == t && lo.Contains(ids, from) {
			return nil
		}
		return e
	}
}

// Chain applies tampers in order
func Chain(tampers ...Tamper) Tamper {
	return func(from, to uint32, e *network.Envelope) *network.Envelope {
		for _, t := range tampers {
			if e = t(from, to, e); e == nil {
				return nil
			}
		}
		return e
	}
}

// corruptCiphertext flips the last byte of the CBOR-encoded share message,
// which falls inside the ciphertext's authentication tag
func corruptCiphertext(payload []byte) []byte {
	out := append([]byte(nil), payload...)
	if len(out) > 0 {
		out[len(out)-1] ^= 0x01
	}
	return out
}
