// Package network carries keygen messages between participants: the
// envelope and its framing, the CBOR payload codec, the pairwise share
// cipher and the in-memory and NATS transports.
package network

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// MessageType identifies the protocol message inside an envelope
type MessageType uint8

const (
	MessageTypeRound1 MessageType = iota + 1
	MessageTypeRound2Decommit
	MessageTypeRound2Share
	MessageTypeRound3
	MessageTypeRound4
	MessageTypeRound5
)

// String returns the message type name
func (t MessageType) String() string {
	switch t {
	case MessageTypeRound1:
		return "round1_commitments"
	case MessageTypeRound2Decommit:
		return "round2_decommitment"
	case MessageTypeRound2Share:
		return "round2_share"
	case MessageTypeRound3:
		return "round3_complaints"
	case MessageTypeRound4:
		return "round4_disclosures"
	case MessageTypeRound5:
		return "round5_confirmation"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// Valid reports whether t is a protocol message type
func (t MessageType) Valid() bool {
	return t >= MessageTypeRound1 && t <= MessageTypeRound5
}

// IsBroadcast reports whether messages of type t go to every participant
func (t MessageType) IsBroadcast() bool {
	return t.Valid() && t != MessageTypeRound2Share
}

// Broadcast is the To value of broadcast envelopes
const Broadcast uint32 = 0

// Envelope is the unit handed to a Transport. Payload holds the CBOR
// encoding of one keygen message.
type Envelope struct {
	SessionID []byte
	Type      MessageType
	From      uint32
	To        uint32
	Payload   []byte
}

const (
	// CurrentProtocolVersion is the current framing version
	CurrentProtocolVersion uint16 = 1

	// HeaderSize is the fixed size of the envelope header
	HeaderSize = 2 + 1 + 4 + 4 + 2 + 4 // 17 bytes

	// MaxSessionIDSize bounds the session identifier
	MaxSessionIDSize = 256

	// MaxPayloadSize bounds a single payload
	MaxPayloadSize = 4 << 20
)

// Validate checks the envelope fields
func (e *Envelope) Validate() error {
	if e == nil {
		return ErrInvalidMessage
	}
	if !e.Type.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownMessageType, uint8(e.Type))
	}
	if e.From == 0 {
		return fmt.Errorf("%w: sender 0", ErrInvalidPartyID)
	}
	if e.Type.IsBroadcast() != (e.To == Broadcast) {
		return fmt.Errorf("%w: %s addressed to %d", ErrInvalidMessage, e.Type, e.To)
	}
	if len(e.SessionID) == 0 || len(e.SessionID) > MaxSessionIDSize {
		return fmt.Errorf("%w: session id length %d", ErrInvalidMessage, len(e.SessionID))
	}
	if len(e.Payload) > MaxPayloadSize {
		return ErrMessageTooLarge
	}
	return nil
}

// Serialize serializes an envelope to bytes
func (e *Envelope) Serialize() ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}

	buf := make([]byte, HeaderSize, HeaderSize+len(e.SessionID)+len(e.Payload))
	offset := 0

	binary.BigEndian.PutUint16(buf[offset:], CurrentProtocolVersion)
	offset += 2

	buf[offset] = byte(e.Type)
	offset++

	binary.BigEndian.PutUint32(buf[offset:], e.From)
	offset += 4

	binary.BigEndian.PutUint32(buf[offset:], e.To)
	offset += 4

	binary.BigEndian.PutUint16(buf[offset:], uint16(len(e.SessionID)))
	offset += 2

	binary.BigEndian.PutUint32(buf[offset:], uint32(len(e.Payload)))

	buf = append(buf, e.SessionID...)
	return append(buf, e.Payload...), nil
}

// DeserializeEnvelope deserializes an envelope from bytes
func DeserializeEnvelope(data []byte) (*Envelope, error) {
	if len(data) < HeaderSize {
		return nil, ErrInvalidMessage
	}

	offset := 0

	if binary.BigEndian.Uint16(data[offset:]) != CurrentProtocolVersion {
		return nil, ErrInvalidMessage
	}
	offset += 2

	msgType := MessageType(data[offset])
	offset++

	from := binary.BigEndian.Uint32(data[offset:])
	offset += 4

	to := binary.BigEndian.Uint32(data[offset:])
	offset += 4

	sessionSize := int(binary.BigEndian.Uint16(data[offset:]))
	offset += 2

	payloadSize := int(binary.BigEndian.Uint32(data[offset:]))
	offset += 4

	if sessionSize > MaxSessionIDSize || payloadSize > MaxPayloadSize {
		return nil, ErrMessageTooLarge
	}
	if len(data) != offset+sessionSize+payloadSize {
		return nil, ErrInvalidMessage
	}

	e := &Envelope{
		SessionID: bytes.Clone(data[offset : offset+sessionSize]),
		Type:      msgType,
		From:      from,
		To:        to,
		Payload:   bytes.Clone(data[offset+sessionSize:]),
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return e, nil
}

// Clone returns a deep copy of the envelope
func (e *Envelope) Clone() *Envelope {
	return &Envelope{
		SessionID: bytes.Clone(e.SessionID),
		Type:      e.Type,
		From:      e.From,
		To:        e.To,
		Payload:   bytes.Clone(e.Payload),
	}
}
