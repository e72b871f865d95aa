// Package node wires together the Session Clock, Session Worker, Key
// Service, Commitment Store, Membership View, Event Bus, and Task Executor
// into the running protocol (spec §4.1, §4.2).
package node

import (
	"context"
	"time"

	"github.com/skde-project/dkg-node/pkg/commitmentstore"
	"github.com/skde-project/dkg-node/pkg/dkgerr"
	"github.com/skde-project/dkg-node/pkg/primitives"
)

// SessionInfo describes one upcoming or active session boundary.
type SessionInfo struct {
	SessionID primitives.SessionID
	Duration  time.Duration
	EndsAt    time.Time
}

// Clock emits wall-clock-aligned session boundaries so every peer starts
// and ends sessions simultaneously without a consensus exchange, modulo
// clock skew (spec §4.1).
type Clock struct {
	store    *commitmentstore.Store
	duration time.Duration
}

// NewClock builds a Clock that persists/reads the session id through
// store and hands out boundaries every duration.
func NewClock(store *commitmentstore.Store, duration time.Duration) *Clock {
	return &Clock{store: store, duration: duration}
}

// NextSession blocks until the next wall-clock boundary, then returns the
// SessionInfo for whatever session id is currently persisted. If the
// persisted id cannot be read, the tick is skipped and the next boundary is
// awaited instead (spec §4.1: "If the persisted session id cannot be read
// on a tick, the tick is skipped").
func (c *Clock) NextSession(ctx context.Context) (SessionInfo, error) {
	for {
		boundary := c.nextBoundary(time.Now())
		if err := c.sleepUntil(ctx, boundary); err != nil {
			return SessionInfo{}, err
		}

		id, found, err := c.store.GetSessionID()
		if err != nil {
			continue
		}
		if !found {
			id = 0
		}
		return SessionInfo{
			SessionID: id,
			Duration:  c.duration,
			EndsAt:    boundary.Add(c.duration),
		}, nil
	}
}

// nextBoundary computes ⌈now / D⌉ · D in absolute wall-clock time.
func (c *Clock) nextBoundary(now time.Time) time.Time {
	d := c.duration
	if d <= 0 {
		return now
	}
	nowMs := now.UnixMilli()
	dMs := d.Milliseconds()
	boundaryMs := ((nowMs + dMs - 1) / dMs) * dMs
	return time.UnixMilli(boundaryMs)
}

func (c *Clock) sleepUntil(ctx context.Context, t time.Time) error {
	wait := time.Until(t)
	if wait <= 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return dkgerr.Wrap(dkgerr.CategoryProtocol, "Clock.NextSession", ctx.Err())
	}
}
