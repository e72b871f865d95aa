package node

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/skde-project/dkg-node/pkg/eventbus"
	"github.com/skde-project/dkg-node/pkg/primitives"
)

type fakeHooks struct {
	entries []primitives.SessionID
	ended   []primitives.SessionID
}

func (f *fakeHooks) OnSessionEntry(ctx context.Context, info SessionInfo) error {
	f.entries = append(f.entries, info.SessionID)
	return nil
}

func (f *fakeHooks) OnSessionEnd(ctx context.Context, session primitives.SessionID) {
	f.ended = append(f.ended, session)
}

func TestWorkerReachesEndOnMatchingEvents(t *testing.T) {
	bus := eventbus.New()
	hooks := &fakeHooks{}
	w := NewWorker(bus, hooks, testLogger())

	ctx := context.Background()
	require.NoError(t, bus.Send(ctx, eventbus.Event{Kind: eventbus.FinalizeKey, SessionID: 5}))
	require.NoError(t, bus.Send(ctx, eventbus.Event{Kind: eventbus.EndSession, SessionID: 5}))

	reached, err := w.RunSession(ctx, SessionInfo{SessionID: 5})
	require.NoError(t, err)
	require.True(t, reached)
	require.Equal(t, []primitives.SessionID{5}, hooks.entries)
	require.Equal(t, []primitives.SessionID{5}, hooks.ended)
}

func TestWorkerTimesOutWithoutEndSession(t *testing.T) {
	bus := eventbus.New()
	hooks := &fakeHooks{}
	w := NewWorker(bus, hooks, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.NoError(t, bus.Send(context.Background(), eventbus.Event{Kind: eventbus.FinalizeKey, SessionID: 9}))

	reached, err := w.RunSession(ctx, SessionInfo{SessionID: 9})
	require.NoError(t, err)
	require.False(t, reached)
	require.Empty(t, hooks.ended)
}

func TestWorkerDropsMismatchedEndSession(t *testing.T) {
	bus := eventbus.New()
	hooks := &fakeHooks{}
	w := NewWorker(bus, hooks, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	require.NoError(t, bus.Send(context.Background(), eventbus.Event{Kind: eventbus.FinalizeKey, SessionID: 2}))
	require.NoError(t, bus.Send(context.Background(), eventbus.Event{Kind: eventbus.EndSession, SessionID: 3}))

	reached, err := w.RunSession(ctx, SessionInfo{SessionID: 2})
	require.NoError(t, err)
	require.False(t, reached, "EndSession for a different session must be dropped, not satisfy the wait")
}

func TestWorkerReentersStartAfterEnd(t *testing.T) {
	bus := eventbus.New()
	hooks := &fakeHooks{}
	w := NewWorker(bus, hooks, testLogger())
	ctx := context.Background()

	require.NoError(t, bus.Send(ctx, eventbus.Event{Kind: eventbus.FinalizeKey, SessionID: 1}))
	require.NoError(t, bus.Send(ctx, eventbus.Event{Kind: eventbus.EndSession, SessionID: 1}))
	reached, err := w.RunSession(ctx, SessionInfo{SessionID: 1})
	require.NoError(t, err)
	require.True(t, reached)

	require.NoError(t, bus.Send(ctx, eventbus.Event{Kind: eventbus.FinalizeKey, SessionID: 2}))
	require.NoError(t, bus.Send(ctx, eventbus.Event{Kind: eventbus.EndSession, SessionID: 2}))
	reached, err = w.RunSession(ctx, SessionInfo{SessionID: 2})
	require.NoError(t, err)
	require.True(t, reached)
}
