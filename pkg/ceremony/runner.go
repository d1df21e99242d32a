// Package ceremony drives keygen participants over a network transport:
// it sends each round's messages, collects the peers' messages until they
// all arrived or the round deadline passed, and feeds them to the state
// machine. Anything that does not arrive in time, or does not decode, is
// treated as absent.
package ceremony

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"

	"github.com/Caqil/gennaro-dkg/pkg/keygen"
	"github.com/Caqil/gennaro-dkg/pkg/logger"
	"github.com/Caqil/gennaro-dkg/pkg/network"
)

// DefaultRoundTimeout is used when Runner.RoundTimeout is zero
const DefaultRoundTimeout = 10 * time.Second

// Runner runs one participant to completion
type Runner struct {
	Participant *keygen.Participant
	Transport   network.Transport
	Codec       *network.Codec
	SessionID   []byte

	// RoundTimeout bounds the wait for each round's messages
	RoundTimeout time.Duration

	Logger *logger.Logger

	// Audit, when set, receives transport-level rejections
	Audit *network.AuditSink

	// pending holds envelopes of rounds not yet collected
	pending map[network.MessageType]map[uint32]*network.Envelope
	log     *logger.Logger
}

// inbound maps message type to decoded messages keyed by sender
type inbound map[network.MessageType]map[uint32]any

// Run executes every round. On success it returns the participant's
// output; on a transport or context failure the participant is aborted.
func (r *Runner) Run(ctx context.Context) (*keygen.Output, error) {
	if err := r.init(); err != nil {
		if r.Participant != nil && !r.Participant.Round().Terminal() {
			return nil, r.Participant.Abort(err)
		}
		return nil, err
	}
	p := r.Participant
	pedersen := p.Parameters().Scheme == keygen.SchemePedersen

	m1, err := p.Round1()
	if err != nil {
		return nil, err
	}
	if err := r.broadcast(ctx, m1); err != nil {
		return nil, r.fail(err)
	}
	in, err := r.collect(ctx, network.MessageTypeRound1)
	if err != nil {
		return nil, r.fail(err)
	}

	decommit, shares, err := p.Round2(typed[keygen.Round1Broadcast](in[network.MessageTypeRound1]))
	if err != nil {
		return nil, err
	}
	if decommit != nil {
		if err := r.broadcast(ctx, decommit); err != nil {
			return nil, r.fail(err)
		}
	}
	for _, to := range lo.Keys(shares) {
		if err := r.send(ctx, to, shares[to]); err != nil {
			return nil, r.fail(err)
		}
	}
	types := []network.MessageType{network.MessageTypeRound2Share}
	if pedersen {
		types = append(types, network.MessageTypeRound2Decommit)
	}
	if in, err = r.collect(ctx, types...); err != nil {
		return nil, r.fail(err)
	}

	m3, err := p.Round3(
		typed[keygen.Round2Broadcast](in[network.MessageTypeRound2Decommit]),
		typed[keygen.Round2P2P](in[network.MessageTypeRound2Share]),
	)
	if err != nil {
		return nil, err
	}
	if err := r.broadcast(ctx, m3); err != nil {
		return nil, r.fail(err)
	}
	if in, err = r.collect(ctx, network.MessageTypeRound3); err != nil {
		return nil, r.fail(err)
	}

	m4, err := p.Round4(typed[keygen.Round3Broadcast](in[network.MessageTypeRound3]))
	if err != nil {
		return nil, err
	}
	if err := r.broadcast(ctx, m4); err != nil {
		return nil, r.fail(err)
	}
	if in, err = r.collect(ctx, network.MessageTypeRound4); err != nil {
		return nil, r.fail(err)
	}

	m5, err := p.Finalize(typed[keygen.Round4Broadcast](in[network.MessageTypeRound4]))
	if err != nil {
		return nil, err
	}
	if err := r.broadcast(ctx, m5); err != nil {
		return nil, r.fail(err)
	}
	if in, err = r.collect(ctx, network.MessageTypeRound5); err != nil {
		return nil, r.fail(err)
	}

	return p.Confirm(typed[keygen.Round5Broadcast](in[network.MessageTypeRound5]))
}

func (r *Runner) init() error {
	if r.Participant == nil || r.Transport == nil || r.Codec == nil {
		return fmt.Errorf("%w: participant, transport and codec are required", ErrInvalidConfig)
	}
	if len(r.SessionID) == 0 {
		return fmt.Errorf("%w: empty session id", ErrInvalidConfig)
	}
	if r.RoundTimeout <= 0 {
		r.RoundTimeout = DefaultRoundTimeout
	}
	log := r.Logger
	if log == nil {
		log = logger.Nop()
	}
	r.log = log.With().Uint32("participant", r.Participant.ID()).Logger()
	r.pending = make(map[network.MessageType]map[uint32]*network.Envelope)
	return nil
}

// discard aborts a runner that will never run and closes its transport
func (r *Runner) discard() {
	if r.Participant != nil && !r.Participant.Round().Terminal() {
		_ = r.Participant.Abort(ErrInvalidConfig)
	}
	if r.Transport != nil {
		_ = r.Transport.Close()
	}
}

// fail aborts the participant after a transport or context failure
func (r *Runner) fail(cause error) error {
	if r.Participant.Round().Terminal() {
		return cause
	}
	return r.Participant.Abort(fmt.Errorf("%w: %w", ErrTransportFailed, cause))
}

func (r *Runner) broadcast(ctx context.Context, msg any) error {
	e, err := r.Codec.EncodeEnvelope(r.SessionID, r.Participant.ID(), msg)
	if err != nil {
		return err
	}
	return r.Transport.Broadcast(ctx, e)
}

// send delivers a direct message. A peer that cannot be reached simply
// misses its share.
func (r *Runner) send(ctx context.Context, to uint32, msg any) error {
	e, err := r.Codec.EncodeEnvelope(r.SessionID, r.Participant.ID(), msg)
	if err != nil {
		return err
	}
	err = r.Transport.Send(ctx, to, e)
	if err != nil && ctx.Err() == nil && !errors.Is(err, network.ErrTransportClosed) {
		r.log.WarnEvent().Uint32("peer", to).Err(err).Msg("share not delivered")
		return nil
	}
	return err
}

// collect gathers the messages of the given types from the peers that are
// still expected, until all of them arrived or the round deadline passed
func (r *Runner) collect(ctx context.Context, types ...network.MessageType) (inbound, error) {
	p := r.Participant
	expected := lo.Without(p.Parameters().Participants, append(p.Excluded(), p.ID())...)

	got := make(map[network.MessageType]map[uint32]*network.Envelope, len(types))
	for _, t := range types {
		got[t] = r.pending[t]
		if got[t] == nil {
			got[t] = make(map[uint32]*network.Envelope)
		}
		delete(r.pending, t)
	}
	complete := func() bool {
		for _, t := range types {
			for _, id := range expected {
				if _, ok := got[t][id]; !ok {
					return false
				}
			}
		}
		return true
	}

	roundCtx, cancel := context.WithTimeout(ctx, r.RoundTimeout)
	defer cancel()

	for !complete() {
		e, err := r.Transport.Receive(roundCtx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if errors.Is(err, context.DeadlineExceeded) {
				r.log.WarnEvent().
					Str("round", p.Round().String()).
					Dur("timeout", r.RoundTimeout).
					Strs("missing", missing(expected, types, got)).
					Msg("round deadline passed, missing messages are absent")
				break
			}
			return nil, err
		}
		r.accept(e, types, got)
	}

	out := make(inbound, len(types))
	for _, t := range types {
		out[t] = r.decode(t, got[t])
	}
	return out, nil
}

// missing lists the expected messages that did not arrive as type/sender
func missing(expected []uint32, types []network.MessageType, got map[network.MessageType]map[uint32]*network.Envelope) []string {
	var out []string
	for _, t := range types {
		for _, id := range expected {
			if _, ok := got[t][id]; !ok {
				out = append(out, fmt.Sprintf("%s/%d", t, id))
			}
		}
	}
	return out
}

// accept files an envelope under its round, keeping the first message per
// sender and type
func (r *Runner) accept(e *network.Envelope, current []network.MessageType, got map[network.MessageType]map[uint32]*network.Envelope) {
	id := r.Participant.ID()
	switch {
	case e.Validate() != nil, !bytes.Equal(e.SessionID, r.SessionID):
		r.reject(e, "envelope_rejected", network.ErrInvalidMessage)
		return
	case e.To != network.Broadcast && e.To != id:
		r.reject(e, "envelope_misrouted", network.ErrInvalidMessage)
		return
	case e.From == id:
		return
	}

	target := got
	if !lo.Contains(current, e.Type) {
		if e.Type < lo.Min(current) {
			r.log.DebugEvent().Uint32("peer", e.From).Str("type", e.Type.String()).Msg("dropping late message")
			return
		}
		target = r.pending
	}
	if target[e.Type] == nil {
		target[e.Type] = make(map[uint32]*network.Envelope)
	}
	if _, dup := target[e.Type][e.From]; dup {
		r.reject(e, "envelope_duplicate", nil)
		return
	}
	target[e.Type][e.From] = e
}

func (r *Runner) decode(t network.MessageType, envelopes map[uint32]*network.Envelope) map[uint32]any {
	out := make(map[uint32]any, len(envelopes))
	for from, e := range envelopes {
		msg, err := r.Codec.Decode(t, e.Payload)
		if err != nil {
			r.reject(e, "payload_rejected", err)
			continue
		}
		out[from] = msg
	}
	return out
}

func (r *Runner) reject(e *network.Envelope, event string, err error) {
	r.log.WarnEvent().Uint32("peer", e.From).Str("type", e.Type.String()).Err(err).Msg(event)
	if r.Audit != nil {
		r.Audit.LogTransportEvent(event, r.Participant.ID(), e.From, e.Type, err)
	}
}

// typed narrows decoded messages to the round's message type
func typed[T any](msgs map[uint32]any) map[uint32]*T {
	out := make(map[uint32]*T, len(msgs))
	for from, m := range msgs {
		if v, ok := m.(*T); ok {
			out[from] = v
		}
	}
	return out
}
