// Package membership tracks the current-round roster of registered key
// generators and computes leader selection by round-robin on the session id.
package membership

import (
	"context"
	"fmt"
	"sync"

	"github.com/skde-project/dkg-node/pkg/primitives"
	"golang.org/x/sync/singleflight"
)

// AuthorityService is the pluggable view of the on-chain (or otherwise
// externally governed) membership registry. Implementations may back this
// with a contract read, a static config file, or an in-memory fixture for
// tests.
type AuthorityService interface {
	// CurrentRoster returns the roster for the given round.
	CurrentRoster(ctx context.Context, round primitives.Round) (primitives.Roster, error)
	// NextRoster returns the roster for round+1, used for lookahead prefetch.
	NextRoster(ctx context.Context, round primitives.Round) (primitives.Roster, error)
	// IsReady reports whether the registry has published a roster for round.
	IsReady(ctx context.Context, round primitives.Round) (bool, error)
}

// View is the Session Worker / RPC handlers' read path onto roster state: a
// per-round cache populated from AuthorityService, with collapsed
// concurrent prefetches for the same round via singleflight.
type View struct {
	mu       sync.RWMutex
	rosters  map[primitives.Round]primitives.Roster
	authority AuthorityService
	sf       singleflight.Group
	self     primitives.Address
}

// NewView creates a membership view backed by authority, for the local
// participant identified by self.
func NewView(authority AuthorityService, self primitives.Address) *View {
	return &View{
		rosters:   make(map[primitives.Round]primitives.Roster),
		authority: authority,
		self:      self,
	}
}

// Roster returns the cached roster for round, fetching it from the
// AuthorityService (with singleflight collapsing) if not yet cached.
func (v *View) Roster(ctx context.Context, round primitives.Round) (primitives.Roster, error) {
	v.mu.RLock()
	r, ok := v.rosters[round]
	v.mu.RUnlock()
	if ok {
		return r, nil
	}

	key := fmt.Sprintf("roster:%d", round)
	result, err, _ := v.sf.Do(key, func() (interface{}, error) {
		fetched, err := v.authority.CurrentRoster(ctx, round)
		if err != nil {
			return primitives.Roster{}, err
		}
		v.mu.Lock()
		v.rosters[round] = fetched
		v.mu.Unlock()
		return fetched, nil
	})
	if err != nil {
		return primitives.Roster{}, err
	}
	return result.(primitives.Roster), nil
}

// Prefetch fetches and caches the roster for round (callers pass the
// upcoming round) ahead of its boundary, per round_look_ahead. It does not change which roster is active for the
// current round; sessions keep using the current round's roster until its
// own boundary (Open Question 3 in DESIGN.md).
func (v *View) Prefetch(ctx context.Context, round primitives.Round) error {
	v.mu.RLock()
	_, ok := v.rosters[round]
	v.mu.RUnlock()
	if ok {
		return nil
	}
	fetched, err := v.authority.NextRoster(ctx, round-1)
	if err != nil {
		return err
	}
	v.mu.Lock()
	v.rosters[round] = fetched
	v.mu.Unlock()
	return nil
}

// CurrentLeader computes the session's leader deterministically: index 0
// for session 0, otherwise session_id mod |roster|. It returns the whole
// KeyGenerator; isSync does not affect the result, and callers pick the
// cluster or external URL with KeyGenerator.URL.
func CurrentLeader(session primitives.SessionID, roster primitives.Roster, isSync bool) (primitives.KeyGenerator, error) {
	if roster.Len() == 0 {
		return primitives.KeyGenerator{}, fmt.Errorf("membership: empty roster")
	}
	var idx int
	if session == 0 {
		idx = 0
	} else {
		idx = int(uint64(session) % uint64(roster.Len()))
	}
	return roster.Members[idx], nil
}

// IsLeader reports whether self is the leader for session under roster.
func (v *View) IsLeader(ctx context.Context, session primitives.SessionID, round primitives.Round) (bool, error) {
	roster, err := v.Roster(ctx, round)
	if err != nil {
		return false, err
	}
	leader, err := CurrentLeader(session, roster, true)
	if err != nil {
		return false, err
	}
	return leader.Equal(primitives.KeyGenerator{Address: v.self}), nil
}

// AddMember inserts member into the roster for round if not already
// present, returning the updated roster. Idempotent.
func (v *View) AddMember(round primitives.Round, member primitives.KeyGenerator) primitives.Roster {
	v.mu.Lock()
	defer v.mu.Unlock()
	r, ok := v.rosters[round]
	if !ok {
		if fetched, err := v.authority.CurrentRoster(context.Background(), round); err == nil {
			r = fetched
		}
	}
	r.Round = round
	r = r.WithMember(member)
	v.rosters[round] = r
	return r
}
