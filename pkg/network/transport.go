package network

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/Caqil/gennaro-dkg/pkg/crypto/rand"
)

// Transport delivers envelopes between the participants of one session.
// Delivery is best effort: the protocol treats anything that does not
// arrive before a round deadline as absent.
//
// Envelope.From must be authentic: complaints and disclosures are
// attributed to it. MemoryHub gets this from running in one process and
// NATSTransport from the frame tags of a FrameAuthenticator.
type Transport interface {
	// Broadcast sends e to every other participant
	Broadcast(ctx context.Context, e *Envelope) error

	// Send sends e to participant to only
	Send(ctx context.Context, to uint32, e *Envelope) error

	// Receive blocks until an envelope arrives, ctx is done or the
	// transport is closed
	Receive(ctx context.Context) (*Envelope, error)

	// Close releases the transport
	Close() error
}

// FrameAuthenticator tags serialized envelopes per directed pair of
// participants. PairwiseCipher implements it.
type FrameAuthenticator interface {
	// Peers returns the participants a tag can be made for
	Peers() []uint32

	// Tag authenticates frame from the local participant to to
	Tag(to uint32, frame []byte) ([]byte, error)

	// CheckTag reports whether tag authenticates frame from from to the
	// local participant
	CheckTag(from uint32, frame, tag []byte) bool
}

var errPeerGone = errors.New("peer left the hub")

// inboxSize bounds the queue of each in-memory participant
const inboxSize = 1024

// MemoryHub connects in-process transports. It is used by tests and the
// simulator.
type MemoryHub struct {
	mu     sync.Mutex
	queues map[uint32]*memoryQueue

	// shuffle reorders each recipient's pending envelopes on delivery
	shuffle io.Reader
}

// HubOption configures a MemoryHub
type HubOption func(*MemoryHub)

// WithShuffle delivers pending envelopes in a random order drawn from r
func WithShuffle(r io.Reader) HubOption {
	return func(h *MemoryHub) { h.shuffle = &lockedReader{r: r} }
}

// lockedReader serializes reads from a source shared by all endpoints
type lockedReader struct {
	mu sync.Mutex
	r  io.Reader
}

func (l *lockedReader) Read(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Read(p)
}

// NewMemoryHub creates an empty hub
func NewMemoryHub(opts ...HubOption) *MemoryHub {
	h := &MemoryHub{queues: make(map[uint32]*memoryQueue)}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Join registers participant id and returns its transport
func (h *MemoryHub) Join(id uint32) (*MemoryTransport, error) {
	if id == 0 {
		return nil, ErrInvalidPartyID
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.queues[id]; ok {
		return nil, fmt.Errorf("%w: %d already joined", ErrInvalidPartyID, id)
	}
	q := newMemoryQueue()
	h.queues[id] = q
	return &MemoryTransport{hub: h, id: id, queue: q}, nil
}

func (h *MemoryHub) deliver(to uint32, e *Envelope) error {
	h.mu.Lock()
	q, ok := h.queues[to]
	h.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: recipient %d: %w", ErrSendFailed, to, errPeerGone)
	}
	return q.push(e.Clone())
}

func (h *MemoryHub) recipients(except uint32) []uint32 {
	h.mu.Lock()
	defer h.mu.Unlock()
	ids := make([]uint32, 0, len(h.queues))
	for id := range h.queues {
		if id != except {
			ids = append(ids, id)
		}
	}
	return ids
}

func (h *MemoryHub) leave(id uint32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.queues, id)
}

// memoryQueue is a bounded FIFO with a wakeup channel
type memoryQueue struct {
	mu      sync.Mutex
	pending []*Envelope
	notify  chan struct{}
	closed  bool
}

func newMemoryQueue() *memoryQueue {
	return &memoryQueue{notify: make(chan struct{}, 1)}
}

func (q *memoryQueue) push(e *Envelope) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrTransportClosed
	}
	if len(q.pending) >= inboxSize {
		return fmt.Errorf("%w: inbox full", ErrSendFailed)
	}
	q.pending = append(q.pending, e)
	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}

func (q *memoryQueue) pop(shuffle io.Reader) (*Envelope, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil, false, ErrTransportClosed
	}
	if len(q.pending) == 0 {
		return nil, false, nil
	}
	if shuffle != nil && len(q.pending) > 1 {
		if err := rand.Shuffle(shuffle, len(q.pending), func(i, j int) {
			q.pending[i], q.pending[j] = q.pending[j], q.pending[i]
		}); err != nil {
			return nil, false, err
		}
	}
	e := q.pending[0]
	q.pending[0] = nil
	q.pending = q.pending[1:]
	return e, true, nil
}

func (q *memoryQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.pending = nil
	close(q.notify)
}

// MemoryTransport is one participant's endpoint on a MemoryHub
type MemoryTransport struct {
	hub   *MemoryHub
	id    uint32
	queue *memoryQueue

	closeOnce sync.Once
}

// Broadcast implements Transport
func (t *MemoryTransport) Broadcast(ctx context.Context, e *Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	// peers that left are skipped
	for _, id := range t.hub.recipients(t.id) {
		err := t.hub.deliver(id, e)
		if err != nil && !errors.Is(err, errPeerGone) && !errors.Is(err, ErrTransportClosed) {
			return err
		}
	}
	return nil
}

// Send implements Transport
func (t *MemoryTransport) Send(ctx context.Context, to uint32, e *Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if to == t.id {
		return fmt.Errorf("%w: send to self", ErrInvalidPartyID)
	}
	return t.hub.deliver(to, e)
}

// Receive implements Transport
func (t *MemoryTransport) Receive(ctx context.Context) (*Envelope, error) {
	for {
		e, ok, err := t.queue.pop(t.hub.shuffle)
		if err != nil {
			return nil, err
		}
		if ok {
			return e, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case _, open := <-t.queue.notify:
			if !open {
				return nil, ErrTransportClosed
			}
		}
	}
}

// Close implements Transport
func (t *MemoryTransport) Close() error {
	t.closeOnce.Do(func() {
		t.hub.leave(t.id)
		t.queue.close()
	})
	return nil
}
