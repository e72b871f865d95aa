// Package primitives holds the wire and storage data model shared by every
// other package in this module: session identifiers, rounds, key generator
// rosters, and the signed commitment envelope used across all RPC planes.
package primitives

import (
	"fmt"

	"github.com/skde-project/dkg-node/pkg/dkgerr"
)

// SessionID is a monotonically non-decreasing counter. Session 0 is the
// initial session: it has no predecessor and uses a constant randomness
// seed rather than the previous session's decryption key.
type SessionID uint64

// InitialRandomnessSeed is the literal seed used to derive session 0's
// encryption key, since there is no prior decryption key to chain from.
const InitialRandomnessSeed = "initial-randomness"

// Next returns session+1, failing on overflow.
func (s SessionID) Next() (SessionID, error) {
	if s == ^SessionID(0) {
		return 0, dkgerr.Wrap(dkgerr.CategoryArithmetic, "SessionID.Next", dkgerr.ErrSessionIDOverflow)
	}
	return s + 1, nil
}

// Prev returns session-1. Undefined (returns an error) for session 0.
func (s SessionID) Prev() (SessionID, error) {
	if s == 0 {
		return 0, dkgerr.Wrap(dkgerr.CategoryArithmetic, "SessionID.Prev", dkgerr.ErrSessionIDUnderflow)
	}
	return s - 1, nil
}

// IsInitial reports whether this is session 0.
func (s SessionID) IsInitial() bool { return s == 0 }

func (s SessionID) String() string { return fmt.Sprintf("%d", uint64(s)) }

// Round is a coarse epoch of roster membership, spanning RoundDuration
// sessions.
type Round uint64

// RoundOf returns the round a given session belongs to.
func RoundOf(session SessionID, roundDuration uint64) Round {
	if roundDuration == 0 {
		return 0
	}
	return Round(uint64(session) / roundDuration)
}

// ShouldEndRound reports whether session s falls on a round boundary, i.e.
// is the first session of a new round (RoundOf(s) is one past the round
// that just ended): true iff s > 0 and s mod roundDuration == 0.
func ShouldEndRound(s SessionID, roundDuration uint64) bool {
	if roundDuration == 0 {
		return false
	}
	return s > 0 && uint64(s)%roundDuration == 0
}
