package node

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/skde-project/dkg-node/pkg/commitmentstore"
)

func openTestStore(t *testing.T) *commitmentstore.Store {
	t.Helper()
	s, err := commitmentstore.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestNextBoundaryAligns(t *testing.T) {
	c := NewClock(nil, 500*time.Millisecond)
	now := time.UnixMilli(1234)
	boundary := c.nextBoundary(now)
	require.Zero(t, boundary.UnixMilli()%500)
	require.True(t, boundary.After(now) || boundary.Equal(now))
}

func TestNextSessionReturnsPersistedID(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.PutSessionID(4))

	c := NewClock(store, 10*time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	info, err := c.NextSession(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(4), uint64(info.SessionID))
	require.True(t, info.EndsAt.After(time.Now()))
}

func TestNextSessionDefaultsToZeroWhenUnset(t *testing.T) {
	store := openTestStore(t)

	c := NewClock(store, 10*time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	info, err := c.NextSession(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(0), uint64(info.SessionID))
}

func TestNextSessionRespectsCancellation(t *testing.T) {
	c := NewClock(openTestStore(t), time.Hour)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := c.NextSession(ctx)
	require.Error(t, err)
}
