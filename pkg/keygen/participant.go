// Package keygen implements Gennaro-style distributed key generation as an
// explicit per-participant state machine.
//
// A participant moves through Init, Round1 (commitments), Round2 (share
// distribution), Round3 (share verification and complaints), Round4
// (complaint resolution), Finalize and Confirm. Every round method consumes
// the messages collected by the caller, keyed by sender, and returns the
// messages the participant must send. Transport, retries and timeouts are
// the caller's concern: an absent message is simply a missing map entry.
//
// A Participant is not safe for concurrent use.
package keygen

import (
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/Caqil/gennaro-dkg/internal/math"
	"github.com/Caqil/gennaro-dkg/internal/security"
	"github.com/Caqil/gennaro-dkg/pkg/crypto/commitment"
	"github.com/Caqil/gennaro-dkg/pkg/crypto/curve"
	"github.com/Caqil/gennaro-dkg/pkg/crypto/hash"
	"github.com/Caqil/gennaro-dkg/pkg/crypto/rand"
	"github.com/Caqil/gennaro-dkg/pkg/logger"
	"github.com/Caqil/gennaro-dkg/pkg/zk"
	"github.com/samber/lo"
)

const (
	proofLabel      = "gennaro-dkg/pok"
	transcriptLabel = "gennaro-dkg/transcript"
)

// Participant runs one party's side of a DKG session
type Participant struct {
	id       uint32
	params   Parameters
	group    curve.Group
	pedersen *commitment.GeneratorPair

	rng     io.Reader
	cipher  PairCipher
	log     *logger.Logger
	refresh bool

	state state
	peers map[uint32]*peerRecord
	audit auditLog
}

// Option configures a Participant
type Option func(*Participant)

// WithRand sets the randomness source; the default is crypto/rand
func WithRand(r io.Reader) Option {
	return func(p *Participant) { p.rng = r }
}

// WithCipher sets the pairwise channel used for shares. Required.
func WithCipher(c PairCipher) Option {
	return func(p *Participant) { p.cipher = c }
}

// WithLogger sets the logger; the default discards everything
func WithLogger(l *logger.Logger) Option {
	return func(p *Participant) { p.log = l }
}

// WithAuditHook registers a callback invoked for every audit entry
func WithAuditHook(h AuditHook) Option {
	return func(p *Participant) { p.audit.hook = h }
}

// WithRefresh makes the participant deal a zero secret, producing a share
// delta for proactive refresh instead of a new key
func WithRefresh() Option {
	return func(p *Participant) { p.refresh = true }
}

// NewParticipant validates the parameters and prepares the participant's
// secret polynomial and commitments. Errors are fatal.
func NewParticipant(params Parameters, id uint32, opts ...Option) (*Participant, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if err := security.ValidateMember(id, params.Participants); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParameters, err)
	}

	p := &Participant{
		id:     id,
		params: params.clone(),
		group:  params.Group,
		rng:    rand.Reader,
		log:    logger.Nop(),
		peers:  make(map[uint32]*peerRecord, len(params.Participants)),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.cipher == nil {
		return nil, ErrMissingCipher
	}
	p.log = p.log.With().Uint32("participant", id).Str("curve", p.group.Name()).Logger()

	for _, peer := range p.params.Participants {
		p.peers[peer] = &peerRecord{id: peer}
	}

	if p.params.Scheme == SchemePedersen {
		gens, err := commitment.NewGeneratorPair(p.group)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidParameters, err)
		}
		p.pedersen = gens
	}

	d, err := p.deal()
	if err != nil {
		return nil, err
	}
	p.state = &initState{dealing: d}

	p.log.DebugEvent().
		Int("threshold", p.params.Threshold).
		Int("participants", p.params.N()).
		Str("scheme", p.params.Scheme.String()).
		Bool("refresh", p.refresh).
		Msg("participant initialized")

	return p, nil
}

// deal samples the secret polynomial of degree t-1 and commits to it
func (p *Participant) deal() (*dealing, error) {
	g := p.group
	degree := p.params.Threshold - 1

	constant := g.NewScalar()
	if !p.refresh {
		if _, err := constant.SetRandom(p.rng); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEntropy, err)
		}
	}
	poly, err := math.NewRandomPolynomial(g, degree, constant, p.rng)
	constant.Zero()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEntropy, err)
	}

	d := &dealing{poly: poly, feldman: commitment.Feldman(poly)}
	d.published = d.feldman

	if p.params.Scheme == SchemePedersen {
		blind, err := math.NewRandomPolynomial(g, degree, nil, p.rng)
		if err != nil {
			d.Zeroize()
			return nil, fmt.Errorf("%w: %v", ErrEntropy, err)
		}
		d.blind = blind
		if d.published, err = p.pedersen.Pedersen(poly, blind); err != nil {
			d.Zeroize()
			return nil, err
		}
	}

	if !p.refresh {
		d.proof, err = zk.ProveSchnorr(g, poly.Constant(), d.feldman.Constant(), p.proofContext(p.id), p.rng)
		if err != nil {
			d.Zeroize()
			return nil, fmt.Errorf("%w: %v", ErrEntropy, err)
		}
	}

	return d, nil
}

// ID returns the participant's identifier
func (p *Participant) ID() uint32 { return p.id }

// Round returns the current state
func (p *Participant) Round() Round { return p.state.round() }

// Parameters returns a copy of the session parameters
func (p *Participant) Parameters() Parameters { return p.params.clone() }

// Audit returns the audit entries recorded so far
func (p *Participant) Audit() []AuditEntry { return p.audit.snapshot() }

// Excluded returns the peers excluded so far, sorted
func (p *Participant) Excluded() []uint32 {
	var out []uint32
	for _, id := range p.params.Participants {
		if p.peers[id].excluded() {
			out = append(out, id)
		}
	}
	return out
}

// Err returns the cause of an abort, or nil
func (p *Participant) Err() error {
	if s, ok := p.state.(*abortedState); ok {
		return s.err
	}
	return nil
}

// Abort moves the participant to Aborted and wipes its secrets. Calling
// Abort in Done or Aborted returns ErrRoundOrder.
func (p *Participant) Abort(reason error) error {
	if p.state.round().Terminal() {
		return roundOrderError(p.state.round(), RoundAborted)
	}
	if reason == nil {
		reason = ErrAborted
	} else if !errors.Is(reason, ErrAborted) {
		reason = fmt.Errorf("%w: %w", ErrAborted, reason)
	}
	return p.abort(reason)
}

// abort wipes every secret the current state holds and records the cause
func (p *Participant) abort(cause error) error {
	from := p.state.round()
	switch s := p.state.(type) {
	case *initState:
		s.dealing.Zeroize()
	case *round1State:
		s.dealing.Zeroize()
	case *round2State:
		s.dealing.Zeroize()
	case *round3State:
		s.dealing.Zeroize()
	case *round4State:
		s.dealing.Zeroize()
	case *finalizeState:
		s.output.Zeroize()
	}
	p.wipeShares()

	p.state = &abortedState{from: from, err: cause}
	p.audit.record(from, EventAborted, p.id, 0, cause.Error())
	p.log.ErrorEvent().Str("round", from.String()).Err(cause).Msg("participant aborted")

	return &AbortError{Participant: p.id, Round: from, Err: cause}
}

func (p *Participant) wipeShares() {
	for _, rec := range p.peers {
		rec.Zeroize()
	}
}

// expect returns the current state as S or a round order error
func expect[S state](p *Participant, required Round) (S, error) {
	s, ok := p.state.(S)
	if !ok {
		var zero S
		return zero, roundOrderError(p.state.round(), required)
	}
	return s, nil
}

// exclude marks a peer as disqualified. Exclusion is permanent.
func (p *Participant) exclude(round Round, id uint32, event AuditEvent, detail string) {
	rec := p.peers[id]
	if rec.excluded() {
		return
	}
	rec.status = peerExcluded
	rec.reason = string(event)
	rec.Zeroize()
	p.audit.record(round, event, id, 0, detail)
	p.audit.record(round, EventExcluded, id, 0, string(event))
	p.log.WarnEvent().
		Str("round", round.String()).
		Uint32("peer", id).
		Str("reason", string(event)).
		Str("detail", detail).
		Msg("peer excluded")
}

// others returns the roster without self, sorted
func (p *Participant) others() []uint32 {
	out := make([]uint32, 0, len(p.params.Participants)-1)
	for _, id := range p.params.Participants {
		if id != p.id {
			out = append(out, id)
		}
	}
	return out
}

// active returns the peers, self excluded, that have not been disqualified
func (p *Participant) active() []uint32 {
	out := make([]uint32, 0, len(p.params.Participants))
	for _, id := range p.others() {
		if !p.peers[id].excluded() {
			out = append(out, id)
		}
	}
	return out
}

// qualified returns every participant, self included, still in the set
func (p *Participant) qualified() []uint32 {
	out := make([]uint32, 0, len(p.params.Participants))
	for _, id := range p.params.Participants {
		if !p.peers[id].excluded() {
			out = append(out, id)
		}
	}
	return out
}

func (p *Participant) isMember(id uint32) bool {
	_, ok := slices.BinarySearch(p.params.Participants, id)
	return ok
}

// auditUnknown records messages keyed by identifiers outside the roster.
// They are otherwise ignored.
func auditUnknown[M any](p *Participant, round Round, msgs map[uint32]M) {
	strangers := lo.Filter(lo.Keys(msgs), func(id uint32, _ int) bool {
		return !p.isMember(id)
	})
	slices.Sort(strangers)
	for _, id := range strangers {
		p.audit.record(round, EventUnknownSender, id, 0, "not in roster")
	}
}

// proofContext binds a proof of knowledge to the session and the dealer
func (p *Participant) proofContext(dealer uint32) []byte {
	return hash.NewTranscript(proofLabel).
		AppendMessage("session", p.params.SessionID).
		AppendUint32("dealer", dealer).
		AppendUint32("threshold", uint32(p.params.Threshold)).
		Bytes()
}
