package network

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/avast/retry-go"
	"github.com/nats-io/nats.go"

	"github.com/Caqil/gennaro-dkg/pkg/logger"
)

// NATSConfig configures a NATSTransport
type NATSConfig struct {
	URL       string
	SessionID []byte
	PartyID   uint32

	// Auth tags outgoing frames and checks incoming ones. NATS subjects
	// are open to every client of the server, so it is required.
	Auth FrameAuthenticator

	// ConnectAttempts bounds the connection retries
	ConnectAttempts uint
	ConnectDelay    time.Duration

	Logger *logger.Logger
}

// NATSTransport exchanges envelopes through a NATS server. Broadcasts go to
// dkg.<session>.broadcast and direct messages to dkg.<session>.p2p.<id>,
// where <session> is the hex session identifier. Every frame carries one
// tag header per recipient and frames without a valid tag for the local
// participant are dropped.
type NATSTransport struct {
	conn    *nats.Conn
	cfg     NATSConfig
	log     *logger.Logger
	inbox   chan *nats.Msg
	subs    []*nats.Subscription
	session string

	closeOnce sync.Once
	done      chan struct{}
}

// BroadcastSubject returns the broadcast subject of a session
func BroadcastSubject(sessionID []byte) string {
	return fmt.Sprintf("dkg.%s.broadcast", hex.EncodeToString(sessionID))
}

// tagHeader names the header holding the tag for one recipient
func tagHeader(to uint32) string {
	return fmt.Sprintf("Dkg-Tag-%d", to)
}

// sealFrame serializes e into a message for subject with a tag for every
// recipient
func sealFrame(auth FrameAuthenticator, subject string, e *Envelope, recipients []uint32) (*nats.Msg, error) {
	data, err := e.Serialize()
	if err != nil {
		return nil, err
	}
	m := nats.NewMsg(subject)
	m.Data = data
	for _, to := range recipients {
		tag, err := auth.Tag(to, data)
		if err != nil {
			return nil, err
		}
		m.Header.Set(tagHeader(to), hex.EncodeToString(tag))
	}
	return m, nil
}

// openFrame parses m and checks the tag that its sender made for self
func openFrame(auth FrameAuthenticator, self uint32, m *nats.Msg) (*Envelope, error) {
	e, err := DeserializeEnvelope(m.Data)
	if err != nil {
		return nil, err
	}
	if e.From == self {
		return e, nil
	}
	tag, err := hex.DecodeString(m.Header.Get(tagHeader(self)))
	if err != nil || len(tag) == 0 || !auth.CheckTag(e.From, m.Data, tag) {
		return nil, fmt.Errorf("%w: claimed sender %d", ErrUnauthenticated, e.From)
	}
	return e, nil
}

// DirectSubject returns the subject of participant id's direct messages
func DirectSubject(sessionID []byte, id uint32) string {
	return fmt.Sprintf("dkg.%s.p2p.%d", hex.EncodeToString(sessionID), id)
}

// DialNATS connects to the server, retrying with backoff, and subscribes to
// the session subjects
func DialNATS(ctx context.Context, cfg NATSConfig) (*NATSTransport, error) {
	if cfg.PartyID == 0 {
		return nil, ErrInvalidPartyID
	}
	if len(cfg.SessionID) == 0 || len(cfg.SessionID) > MaxSessionIDSize {
		return nil, fmt.Errorf("%w: session id", ErrInvalidConfig)
	}
	if cfg.Auth == nil {
		return nil, fmt.Errorf("%w: frame authenticator is required", ErrInvalidConfig)
	}
	if cfg.URL == "" {
		cfg.URL = nats.DefaultURL
	}
	if cfg.ConnectAttempts == 0 {
		cfg.ConnectAttempts = 5
	}
	if cfg.ConnectDelay == 0 {
		cfg.ConnectDelay = 200 * time.Millisecond
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}
	log = log.With().Str("transport", "nats").Uint32("participant", cfg.PartyID).Logger()

	var conn *nats.Conn
	err := retry.Do(
		func() error {
			c, err := nats.Connect(cfg.URL,
				nats.Name(fmt.Sprintf("gennaro-dkg-%d", cfg.PartyID)),
				nats.MaxReconnects(-1),
			)
			if err != nil {
				return err
			}
			conn = c
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(cfg.ConnectAttempts),
		retry.Delay(cfg.ConnectDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.WarnEvent().Int("attempt", int(n)+1).Err(err).Msg("nats connect failed, retrying")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	t := &NATSTransport{
		conn:    conn,
		cfg:     cfg,
		log:     log,
		inbox:   make(chan *nats.Msg, inboxSize),
		session: hex.EncodeToString(cfg.SessionID),
		done:    make(chan struct{}),
	}
	for _, subject := range []string{BroadcastSubject(cfg.SessionID), DirectSubject(cfg.SessionID, cfg.PartyID)} {
		sub, err := conn.ChanSubscribe(subject, t.inbox)
		if err != nil {
			t.Close()
			return nil, fmt.Errorf("%w: subscribe %s: %v", ErrConnectionFailed, subject, err)
		}
		t.subs = append(t.subs, sub)
	}
	if err := conn.Flush(); err != nil {
		t.Close()
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	log.InfoEvent().
		Str("broadcast", BroadcastSubject(cfg.SessionID)).
		Str("direct", DirectSubject(cfg.SessionID, cfg.PartyID)).
		Msg("listening to incoming messages")
	return t, nil
}

// Broadcast implements Transport
func (t *NATSTransport) Broadcast(ctx context.Context, e *Envelope) error {
	return t.publish(ctx, BroadcastSubject(t.cfg.SessionID), e, t.cfg.Auth.Peers())
}

// Send implements Transport
func (t *NATSTransport) Send(ctx context.Context, to uint32, e *Envelope) error {
	if to == 0 || to == t.cfg.PartyID {
		return fmt.Errorf("%w: recipient %d", ErrInvalidPartyID, to)
	}
	return t.publish(ctx, DirectSubject(t.cfg.SessionID, to), e, []uint32{to})
}

func (t *NATSTransport) publish(ctx context.Context, subject string, e *Envelope, recipients []uint32) error {
	m, err := sealFrame(t.cfg.Auth, subject, e, recipients)
	if err != nil {
		return err
	}
	return retry.Do(
		func() error { return t.conn.PublishMsg(m) },
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(50*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool { return !errors.Is(err, nats.ErrConnectionClosed) }),
	)
}

// Receive implements Transport. Frames that fail to parse or to
// authenticate, belong to another session or echo our own broadcasts are
// skipped.
func (t *NATSTransport) Receive(ctx context.Context) (*Envelope, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.done:
			return nil, ErrTransportClosed
		case m := <-t.inbox:
			e, err := openFrame(t.cfg.Auth, t.cfg.PartyID, m)
			if err != nil {
				t.log.WarnEvent().Str("subject", m.Subject).Err(err).Msg("dropping malformed frame")
				continue
			}
			if hex.EncodeToString(e.SessionID) != t.session {
				t.log.WarnEvent().Str("subject", m.Subject).Err(ErrSessionMismatch).Msg("dropping frame")
				continue
			}
			if e.From == t.cfg.PartyID {
				continue
			}
			return e, nil
		}
	}
}

// Close implements Transport
func (t *NATSTransport) Close() error {
	t.closeOnce.Do(func() {
		close(t.done)
		for _, sub := range t.subs {
			if err := sub.Unsubscribe(); err != nil {
				t.log.ErrorEvent().Err(err).Msg("failed to unsubscribe")
			}
		}
		t.conn.Close()
	})
	return nil
}
