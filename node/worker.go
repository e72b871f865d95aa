package node

import (
	"context"
	"time"

	"github.com/skde-project/dkg-node/internal/logger"
	"github.com/skde-project/dkg-node/internal/metrics"
	"github.com/skde-project/dkg-node/pkg/eventbus"
	"github.com/skde-project/dkg-node/pkg/primitives"
)

// workerStateKind is one of the three FSM states from spec §4.2.
type workerStateKind int

const (
	stateInit workerStateKind = iota
	stateStart
	stateEnd
)

// SessionHooks is the subset of Protocol the Worker drives directly: the
// leader's on-entry multicast and the round-advancement check run after a
// session ends. Protocol satisfies this; tests may supply a fake.
type SessionHooks interface {
	OnSessionEntry(ctx context.Context, info SessionInfo) error
	OnSessionEnd(ctx context.Context, session primitives.SessionID)
}

// Worker is the per-role state machine driving one session's protocol
// phases to completion or timeout (spec §4.2). It owns the event bus
// receiver exclusively; RPC handlers only ever hold the sender end.
type Worker struct {
	bus   *eventbus.Bus
	proto SessionHooks
	log   logger.Logger

	kind    workerStateKind
	session primitives.SessionID
}

// NewWorker builds a Worker consuming events from bus and delegating
// role-specific protocol actions to proto.
func NewWorker(bus *eventbus.Bus, proto SessionHooks, log logger.Logger) *Worker {
	return &Worker{bus: bus, proto: proto, log: log, kind: stateInit}
}

// RunSession drives the FSM through exactly one session: performing the
// role's on-entry action, entering Start on the leading FinalizeKey, and
// waiting for matching bus events until EndSession arrives or ctx (the
// session deadline) expires. It returns (true, nil) if the session reached
// End, or (false, nil) if the deadline elapsed first — "the worker returns
// None" in spec terms (spec §4.2: "Timeout before EndSession arrives ⇒ the
// worker returns None").
func (w *Worker) RunSession(ctx context.Context, info SessionInfo) (bool, error) {
	start := time.Now()
	metrics.SessionsStarted.Inc()

	if err := w.proto.OnSessionEntry(ctx, info); err != nil {
		w.log.Warn("session entry action failed", logger.Err(err), logger.Uint64("session_id", uint64(info.SessionID)))
	}

	for {
		ev, err := w.bus.Receive(ctx)
		if err != nil {
			// Deadline or shutdown: abandon the session, no rollback needed
			// (append-only on-disk state makes this safe per spec §5).
			metrics.SessionsEnded.WithLabelValues("timeout").Inc()
			metrics.SessionDuration.Observe(time.Since(start).Seconds())
			return false, nil
		}
		if w.handle(ev, info.SessionID) {
			w.proto.OnSessionEnd(ctx, info.SessionID)
			metrics.SessionsEnded.WithLabelValues("end_session").Inc()
			metrics.SessionDuration.Observe(time.Since(start).Seconds())
			return true, nil
		}
	}
}

// handle applies one bus event to the FSM per the common transition rules
// in spec §4.2, returning true once the session has reached End.
func (w *Worker) handle(ev eventbus.Event, expected primitives.SessionID) bool {
	switch ev.Kind {
	case eventbus.FinalizeKey:
		switch w.kind {
		case stateInit:
			w.kind = stateStart
			w.session = ev.SessionID
		case stateEnd:
			if ev.SessionID >= w.session {
				w.kind = stateStart
				w.session = ev.SessionID
			}
		default:
			// Start(s) ignores FinalizeKey for a different session; wrong
			// shape for current state, dropped per spec §4.2.
		}
	case eventbus.EndSession:
		if w.kind == stateStart && ev.SessionID == expected && ev.SessionID == w.session {
			w.kind = stateEnd
			return true
		}
		// Any other shape is dropped.
	}
	return false
}
