// Package eventbus is the bounded single-producer/single-consumer queue
// that carries protocol events from RPC handlers into the Session Worker
// (spec §4.7). Capacity is fixed at 10: producers that outrun the worker
// simply suspend on Send until it drains.
package eventbus

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/skde-project/dkg-node/pkg/dkgerr"
	"github.com/skde-project/dkg-node/pkg/primitives"
)

// Capacity is the bus's fixed channel depth.
const Capacity = 10

// Kind discriminates the two event shapes the Session Worker reacts to.
type Kind int

const (
	FinalizeKey Kind = iota
	EndSession
)

// Event is the single wire type carried on the bus. Commitments is set
// only for FinalizeKey; SessionID is set for both.
type Event struct {
	Kind        Kind
	SessionID   primitives.SessionID
	Commitments []primitives.SignedCommitment
}

// Bus is the SPSC queue: any number of RPC handlers may call Send
// concurrently (they only hold the sender end), but exactly one consumer —
// the Session Worker — calls Receive (it owns the only receiver end), per
// spec §5's shared-resource policy.
type Bus struct {
	ch     chan Event
	closed atomic.Bool
	once   sync.Once
}

// New creates an empty bus with the fixed capacity.
func New() *Bus {
	return &Bus{ch: make(chan Event, Capacity)}
}

// Send enqueues ev, suspending until space is available, ctx is cancelled,
// or the bus is closed. A closed bus is a node-shutdown condition (spec
// §4.7): callers should treat ErrStoreClosed here as fatal, not retry.
func (b *Bus) Send(ctx context.Context, ev Event) error {
	if b.closed.Load() {
		return dkgerr.Wrap(dkgerr.CategoryTransport, "Send", dkgerr.ErrStoreClosed)
	}
	select {
	case b.ch <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive dequeues the next event, or returns ctx.Err() when the per-session
// timeout (derived from SessionInfo.ends_at) elapses first — the Session
// Worker's only source of suspension while waiting for EndSession.
func (b *Bus) Receive(ctx context.Context) (Event, error) {
	select {
	case ev, ok := <-b.ch:
		if !ok {
			return Event{}, dkgerr.Wrap(dkgerr.CategoryTransport, "Receive", dkgerr.ErrStoreClosed)
		}
		return ev, nil
	case <-ctx.Done():
		return Event{}, ctx.Err()
	}
}

// Close shuts the bus down; subsequent Send calls fail immediately and a
// pending Receive observes the closed channel.
func (b *Bus) Close() {
	b.once.Do(func() {
		b.closed.Store(true)
		close(b.ch)
	})
}
