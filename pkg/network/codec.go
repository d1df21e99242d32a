package network

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/Caqil/gennaro-dkg/pkg/crypto/commitment"
	"github.com/Caqil/gennaro-dkg/pkg/crypto/curve"
	"github.com/Caqil/gennaro-dkg/pkg/keygen"
	"github.com/Caqil/gennaro-dkg/pkg/zk"
)

// The wire structs hold group elements as their fixed-length encodings.
// Integer keys keep the encoding compact and stable.

type proofMarshal struct {
	Commitment []byte `cbor:"1,keyasint"`
	Response   []byte `cbor:"2,keyasint"`
}

type commitmentsMarshal struct {
	Sender      uint32        `cbor:"1,keyasint"`
	Commitments [][]byte      `cbor:"2,keyasint"`
	Proof       *proofMarshal `cbor:"3,keyasint,omitempty"`
}

type shareMarshal struct {
	Sender     uint32 `cbor:"1,keyasint"`
	Recipient  uint32 `cbor:"2,keyasint"`
	Ciphertext []byte `cbor:"3,keyasint"`
}

type complaintMarshal struct {
	Accuser uint32 `cbor:"1,keyasint"`
	Accused uint32 `cbor:"2,keyasint"`
	Reason  string `cbor:"3,keyasint"`
	Round   uint8  `cbor:"4,keyasint"`
}

type complaintsMarshal struct {
	Sender     uint32             `cbor:"1,keyasint"`
	Complaints []complaintMarshal `cbor:"2,keyasint"`
}

type disclosureMarshal struct {
	Accuser uint32 `cbor:"1,keyasint"`
	Share   []byte `cbor:"2,keyasint"`
	Blind   []byte `cbor:"3,keyasint,omitempty"`
}

type disclosuresMarshal struct {
	Sender      uint32              `cbor:"1,keyasint"`
	Disclosures []disclosureMarshal `cbor:"2,keyasint"`
}

type confirmationMarshal struct {
	Sender    uint32 `cbor:"1,keyasint"`
	PublicKey []byte `cbor:"2,keyasint"`
	Digest    []byte `cbor:"3,keyasint"`
}

// maxElements bounds decoded arrays; no honest message carries more
// entries than participants or coefficients
const maxElements = 4096

// Codec converts keygen messages to and from CBOR payloads for one group.
// Encoding is deterministic so that equal messages produce equal bytes.
type Codec struct {
	group curve.Group
	enc   cbor.EncMode
	dec   cbor.DecMode
}

// NewCodec creates a codec for group g
func NewCodec(g curve.Group) (*Codec, error) {
	if g == nil {
		return nil, fmt.Errorf("%w: nil group", ErrInvalidConfig)
	}
	enc, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return nil, err
	}
	dec, err := cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyEnforcedAPF,
		MaxArrayElements:  maxElements,
		MaxMapPairs:       maxElements,
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
	}.DecMode()
	if err != nil {
		return nil, err
	}
	return &Codec{group: g, enc: enc, dec: dec}, nil
}

// Encode serializes any keygen round message and reports its type
func (c *Codec) Encode(msg any) (MessageType, []byte, error) {
	var (
		t MessageType
		v any
	)
	switch m := msg.(type) {
	case *keygen.Round1Broadcast:
		t, v = MessageTypeRound1, marshalCommitments(m.Sender, m.Commitments, m.Proof)
	case *keygen.Round2Broadcast:
		t, v = MessageTypeRound2Decommit, marshalCommitments(m.Sender, m.Commitments, m.Proof)
	case *keygen.Round2P2P:
		t, v = MessageTypeRound2Share, &shareMarshal{Sender: m.Sender, Recipient: m.Recipient, Ciphertext: m.Ciphertext}
	case *keygen.Round3Broadcast:
		t, v = MessageTypeRound3, marshalComplaints(m)
	case *keygen.Round4Broadcast:
		t, v = MessageTypeRound4, marshalDisclosures(m)
	case *keygen.Round5Broadcast:
		cm := &confirmationMarshal{Sender: m.Sender, Digest: m.Digest}
		if m.PublicKey != nil {
			cm.PublicKey = m.PublicKey.Bytes()
		}
		t, v = MessageTypeRound5, cm
	default:
		return 0, nil, fmt.Errorf("%w: %T", ErrUnknownMessageType, msg)
	}

	data, err := c.enc.Marshal(v)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to marshal %s: %w", t, err)
	}
	return t, data, nil
}

// Decode parses a payload of type t into the matching keygen message
func (c *Codec) Decode(t MessageType, data []byte) (any, error) {
	switch t {
	case MessageTypeRound1:
		sender, v, proof, err := c.decodeCommitments(data)
		if err != nil {
			return nil, err
		}
		return &keygen.Round1Broadcast{Sender: sender, Commitments: v, Proof: proof}, nil
	case MessageTypeRound2Decommit:
		sender, v, proof, err := c.decodeCommitments(data)
		if err != nil {
			return nil, err
		}
		return &keygen.Round2Broadcast{Sender: sender, Commitments: v, Proof: proof}, nil
	case MessageTypeRound2Share:
		var sm shareMarshal
		if err := c.unmarshal(data, &sm); err != nil {
			return nil, err
		}
		return &keygen.Round2P2P{Sender: sm.Sender, Recipient: sm.Recipient, Ciphertext: sm.Ciphertext}, nil
	case MessageTypeRound3:
		return c.decodeComplaints(data)
	case MessageTypeRound4:
		return c.decodeDisclosures(data)
	case MessageTypeRound5:
		var cm confirmationMarshal
		if err := c.unmarshal(data, &cm); err != nil {
			return nil, err
		}
		pk, err := c.point(cm.PublicKey)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal public key: %w", err)
		}
		return &keygen.Round5Broadcast{Sender: cm.Sender, PublicKey: pk, Digest: cm.Digest}, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownMessageType, uint8(t))
	}
}

// EncodeEnvelope encodes msg into an envelope of the given session
func (c *Codec) EncodeEnvelope(sessionID []byte, from uint32, msg any) (*Envelope, error) {
	t, data, err := c.Encode(msg)
	if err != nil {
		return nil, err
	}
	e := &Envelope{SessionID: sessionID, Type: t, From: from, To: Broadcast, Payload: data}
	if p2p, ok := msg.(*keygen.Round2P2P); ok {
		e.To = p2p.Recipient
	}
	return e, nil
}

func (c *Codec) unmarshal(data []byte, v any) error {
	if err := c.dec.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	return nil
}

func (c *Codec) point(data []byte) (curve.Point, error) {
	p, err := c.group.NewPoint().SetBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	return p, nil
}

func (c *Codec) scalar(data []byte) (curve.Scalar, error) {
	s, err := c.group.NewScalar().SetBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	return s, nil
}

func marshalCommitments(sender uint32, v commitment.Vector, proof *zk.SchnorrProof) *commitmentsMarshal {
	cm := &commitmentsMarshal{Sender: sender, Commitments: make([][]byte, len(v))}
	for i, p := range v {
		if p != nil {
			cm.Commitments[i] = p.Bytes()
		}
	}
	if proof != nil && proof.Commitment != nil && proof.Response != nil {
		cm.Proof = &proofMarshal{Commitment: proof.Commitment.Bytes(), Response: proof.Response.Bytes()}
	}
	return cm
}

func (c *Codec) decodeCommitments(data []byte) (uint32, commitment.Vector, *zk.SchnorrProof, error) {
	var cm commitmentsMarshal
	if err := c.unmarshal(data, &cm); err != nil {
		return 0, nil, nil, err
	}

	v := make(commitment.Vector, len(cm.Commitments))
	for i, b := range cm.Commitments {
		p, err := c.point(b)
		if err != nil {
			return 0, nil, nil, fmt.Errorf("failed to unmarshal commitment %d: %w", i, err)
		}
		v[i] = p
	}

	if cm.Proof == nil {
		return cm.Sender, v, nil, nil
	}
	r, err := c.point(cm.Proof.Commitment)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("failed to unmarshal proof commitment: %w", err)
	}
	z, err := c.scalar(cm.Proof.Response)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("failed to unmarshal proof response: %w", err)
	}
	return cm.Sender, v, &zk.SchnorrProof{Commitment: r, Response: z}, nil
}

func marshalComplaints(m *keygen.Round3Broadcast) *complaintsMarshal {
	cm := &complaintsMarshal{Sender: m.Sender, Complaints: make([]complaintMarshal, len(m.Complaints))}
	for i, c := range m.Complaints {
		cm.Complaints[i] = complaintMarshal{Accuser: c.Accuser, Accused: c.Accused, Reason: string(c.Reason), Round: uint8(c.Round)}
	}
	return cm
}

func (c *Codec) decodeComplaints(data []byte) (*keygen.Round3Broadcast, error) {
	var cm complaintsMarshal
	if err := c.unmarshal(data, &cm); err != nil {
		return nil, err
	}
	out := &keygen.Round3Broadcast{Sender: cm.Sender, Complaints: make([]keygen.Complaint, len(cm.Complaints))}
	for i, cc := range cm.Complaints {
		out.Complaints[i] = keygen.Complaint{
			Accuser: cc.Accuser,
			Accused: cc.Accused,
			Round:   keygen.Round(cc.Round),
			Reason:  keygen.ComplaintReason(cc.Reason),
		}
	}
	return out, nil
}

func marshalDisclosures(m *keygen.Round4Broadcast) *disclosuresMarshal {
	dm := &disclosuresMarshal{Sender: m.Sender, Disclosures: make([]disclosureMarshal, len(m.Disclosures))}
	for i, d := range m.Disclosures {
		entry := disclosureMarshal{Accuser: d.Accuser}
		if d.Share != nil {
			entry.Share = d.Share.Bytes()
		}
		if d.Blind != nil {
			entry.Blind = d.Blind.Bytes()
		}
		dm.Disclosures[i] = entry
	}
	return dm
}

func (c *Codec) decodeDisclosures(data []byte) (*keygen.Round4Broadcast, error) {
	var dm disclosuresMarshal
	if err := c.unmarshal(data, &dm); err != nil {
		return nil, err
	}
	out := &keygen.Round4Broadcast{Sender: dm.Sender, Disclosures: make([]keygen.Disclosure, len(dm.Disclosures))}
	for i, d := range dm.Disclosures {
		share, err := c.scalar(d.Share)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal disclosed share for %d: %w", d.Accuser, err)
		}
		entry := keygen.Disclosure{Accuser: d.Accuser, Share: share}
		if len(d.Blind) > 0 {
			if entry.Blind, err = c.scalar(d.Blind); err != nil {
				return nil, fmt.Errorf("failed to unmarshal disclosed blind for %d: %w", d.Accuser, err)
			}
		}
		out.Disclosures[i] = entry
	}
	return out, nil
}
