package ceremony

import (
	"context"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/Caqil/gennaro-dkg/internal/security"
	"github.com/Caqil/gennaro-dkg/pkg/crypto/curve"
	"github.com/Caqil/gennaro-dkg/pkg/crypto/rand"
	"github.com/Caqil/gennaro-dkg/pkg/keygen"
	"github.com/Caqil/gennaro-dkg/pkg/logger"
	"github.com/Caqil/gennaro-dkg/pkg/network"
)

// Tamper rewrites an envelope on its way from one participant to another.
// Returning nil drops it.
type Tamper func(from, to uint32, e *network.Envelope) *network.Envelope

// SimulationConfig describes an in-process session
type SimulationConfig struct {
	Parameters keygen.Parameters

	// Seed makes every participant's randomness and the delivery order
	// reproducible. Nil uses crypto/rand.
	Seed []byte

	// Shuffle delivers each participant's pending messages in random order
	Shuffle bool

	// Refresh runs a share refresh instead of a key generation
	Refresh bool

	// Offline participants never start
	Offline []uint32

	RoundTimeout time.Duration
	Tamper       Tamper
	Logger       *logger.Logger
	Audit        *network.AuditSink
}

// SimulationResult holds what every participant ended with
type SimulationResult struct {
	SessionID []byte
	Outputs   map[uint32]*keygen.Output
	Errors    map[uint32]error
}

// Simulate runs one session with every participant on its own goroutine,
// connected through a MemoryHub
func Simulate(ctx context.Context, cfg SimulationConfig) (*SimulationResult, error) {
	params := cfg.Parameters
	if len(params.SessionID) == 0 {
		id := uuid.New()
		params.SessionID = id[:]
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	codec, err := network.NewCodec(params.Group)
	if err != nil {
		return nil, err
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}
	log = log.With().
		Str("session", uuidString(params.SessionID)).
		Int("threshold", params.Threshold).
		Bool("refresh", cfg.Refresh).
		Logger()

	var hubOpts []network.HubOption
	if cfg.Shuffle {
		r, err := source(cfg.Seed, "shuffle")
		if err != nil {
			return nil, err
		}
		hubOpts = append(hubOpts, network.WithShuffle(r))
	}
	hub := network.NewMemoryHub(hubOpts...)

	identities, err := generateIdentities(cfg.Seed, params.Participants)
	if err != nil {
		return nil, err
	}
	defer func() {
		for _, k := range identities {
			security.SecureZero(k.private)
		}
	}()
	publics := lo.MapValues(identities, func(k identityKey, _ uint32) []byte { return k.public })

	online := lo.Without(params.Participants, cfg.Offline...)
	runners := make(map[uint32]*Runner, len(online))
	for _, id := range online {
		r, err := newRunner(cfg, params, id, hub, codec, identities[id].private, publics, log)
		if err != nil {
			for _, built := range runners {
				built.discard()
			}
			return nil, fmt.Errorf("participant %d: %w", id, err)
		}
		runners[id] = r
	}

	res := &SimulationResult{
		SessionID: params.SessionID,
		Outputs:   make(map[uint32]*keygen.Output),
		Errors:    make(map[uint32]error),
	}
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for id, r := range runners {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer r.Transport.Close()
			out, err := r.Run(ctx)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Errors[id] = err
				return
			}
			res.Outputs[id] = out
		}()
	}
	wg.Wait()

	log.InfoEvent().
		Int("finished", len(res.Outputs)).
		Int("failed", len(res.Errors)).
		Msg("simulation complete")
	return res, nil
}

func newRunner(cfg SimulationConfig, params keygen.Parameters, id uint32, hub *network.MemoryHub,
	codec *network.Codec, private []byte, publics map[uint32][]byte, log *logger.Logger) (*Runner, error) {
	cipher, err := network.NewPairwiseCipher(id, private, publics, params.SessionID)
	if err != nil {
		return nil, err
	}
	opts := []keygen.Option{
		keygen.WithCipher(cipher),
		keygen.WithLogger(log),
	}
	if cfg.Seed != nil {
		r, err := source(cfg.Seed, fmt.Sprintf("participant-%d", id))
		if err != nil {
			return nil, err
		}
		opts = append(opts, keygen.WithRand(r))
	}
	if cfg.Refresh {
		opts = append(opts, keygen.WithRefresh())
	}
	if cfg.Audit != nil {
		opts = append(opts, keygen.WithAuditHook(cfg.Audit.Hook(id, params.SessionID)))
	}
	p, err := keygen.NewParticipant(params, id, opts...)
	if err != nil {
		return nil, err
	}

	mt, err := hub.Join(id)
	if err != nil {
		_ = p.Abort(err)
		return nil, err
	}
	var tr network.Transport = mt
	if cfg.Tamper != nil {
		tr = &tamperTransport{Transport: mt, from: id, roster: params.Participants, tamper: cfg.Tamper}
	}

	return &Runner{
		Participant:  p,
		Transport:    tr,
		Codec:        codec,
		SessionID:    params.SessionID,
		RoundTimeout: cfg.RoundTimeout,
		Logger:       log,
		Audit:        cfg.Audit,
	}, nil
}

// PublicKey returns the group key the finished participants agree on
func (r *SimulationResult) PublicKey() (curve.Point, error) {
	if len(r.Outputs) == 0 {
		return nil, ErrNoOutputs
	}
	var pk curve.Point
	for _, id := range r.Finished() {
		out := r.Outputs[id]
		if pk == nil {
			pk = out.PublicKey
			continue
		}
		if !out.PublicKey.Equal(pk) {
			return nil, fmt.Errorf("%w: participant %d", ErrDivergentKeys, id)
		}
	}
	return pk, nil
}

// Finished returns the participants that produced an output, sorted
func (r *SimulationResult) Finished() []uint32 {
	ids := lo.Keys(r.Outputs)
	slices.Sort(ids)
	return ids
}

// Reconstruct interpolates the group secret from the finished
// participants' shares. Only meaningful in a simulation.
func (r *SimulationResult) Reconstruct() (curve.Scalar, error) {
	outputs := lo.Map(r.Finished(), func(id uint32, _ int) *keygen.Output { return r.Outputs[id] })
	if len(outputs) == 0 {
		return nil, ErrNoOutputs
	}
	return keygen.ReconstructSecret(outputs)
}

type identityKey struct {
	private, public []byte
}

func generateIdentities(seed []byte, ids []uint32) (map[uint32]identityKey, error) {
	out := make(map[uint32]identityKey, len(ids))
	for _, id := range ids {
		r, err := source(seed, fmt.Sprintf("identity-%d", id))
		if err != nil {
			return nil, err
		}
		priv, pub, err := network.GenerateIdentityKey(r)
		if err != nil {
			return nil, err
		}
		out[id] = identityKey{private: priv, public: pub}
	}
	return out, nil
}

// source returns a labelled deterministic stream for a seed, or
// crypto/rand without one
func source(seed []byte, label string) (io.Reader, error) {
	if seed == nil {
		return rand.Reader, nil
	}
	return rand.DeriveReader(seed, label)
}

func uuidString(id []byte) string {
	if u, err := uuid.FromBytes(id); err == nil {
		return u.String()
	}
	return fmt.Sprintf("%x", id)
}

// tamperTransport applies a Tamper hook to everything a participant sends.
// Broadcasts are expanded into per-recipient sends so the hook can treat
// recipients differently.
type tamperTransport struct {
	network.Transport
	from   uint32
	roster []uint32
	tamper Tamper
}

func (t *tamperTransport) Broadcast(ctx context.Context, e *network.Envelope) error {
	for _, to := range t.roster {
		if to == t.from {
			continue
		}
		if err := t.Send(ctx, to, e); err != nil {
			return err
		}
	}
	return nil
}

func (t *tamperTransport) Send(ctx context.Context, to uint32, e *network.Envelope) error {
	out := t.tamper(t.from, to, e.Clone())
	if out == nil {
		return nil
	}
	err := t.Transport.Send(ctx, to, out)
	if err != nil && ctx.Err() == nil && e.Type.IsBroadcast() {
		// offline or departed peers are skipped like on the plain hub
		return nil
	}
	return err
}
