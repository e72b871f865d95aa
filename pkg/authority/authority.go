// Package authority provides the concrete AuthorityService adapter every
// role's node is built with (spec §1: on-chain registry queries
// are out of scope for this repository; only the AuthorityService
// interface is required). LocalRegistry is the pluggable view this node
// ships with: round 0 is bootstrapped at startup with the node's own
// KeyGenerator, and rosters are kept in the
// Commitment Store's `round:N` records. add_key_generator RPCs update the
// membership View's in-memory cache only; they do not change these records. A production deployment can swap this for a registry-contract
// reader without touching membership.View or the Session Worker.
package authority

import (
	"context"

	"github.com/skde-project/dkg-node/pkg/commitmentstore"
	"github.com/skde-project/dkg-node/pkg/dkgerr"
	"github.com/skde-project/dkg-node/pkg/primitives"
)

// LocalRegistry implements membership.AuthorityService over the
// Commitment Store's roster records. node.NewApp seeds round 0 at startup
// with a roster holding only the node's own KeyGenerator.
type LocalRegistry struct {
	store *commitmentstore.Store
}

// NewLocalRegistry wraps store. Callers should seed round 0 with
// SeedRound before the node starts serving traffic.
func NewLocalRegistry(store *commitmentstore.Store) *LocalRegistry {
	return &LocalRegistry{store: store}
}

// SeedRound writes the roster for round if none is yet published,
// idempotently. Used at startup to bootstrap round 0 from config.
func (r *LocalRegistry) SeedRound(round primitives.Round, roster primitives.Roster) error {
	_, found, err := r.store.GetRoster(round)
	if err != nil {
		return err
	}
	if found {
		return nil
	}
	roster.Round = round
	return r.store.PutRoster(round, roster)
}

// CurrentRoster returns the roster published for round.
func (r *LocalRegistry) CurrentRoster(ctx context.Context, round primitives.Round) (primitives.Roster, error) {
	roster, found, err := r.store.GetRoster(round)
	if err != nil {
		return primitives.Roster{}, err
	}
	if !found {
		return primitives.Roster{}, dkgerr.Wrap(dkgerr.CategoryStorage, "CurrentRoster", dkgerr.ErrNotFound)
	}
	return roster, nil
}

// NextRoster returns the roster for round+1. In this local adapter that is
// simply whatever has been published for round+1 so far (in practice, a
// copy of round's roster carried forward until AddKeyGenerator changes it);
// callers needing guaranteed-fresh membership for round+1 should call
// AddMember/SeedRound ahead of the round boundary.
func (r *LocalRegistry) NextRoster(ctx context.Context, round primitives.Round) (primitives.Roster, error) {
	next := round + 1
	roster, found, err := r.store.GetRoster(next)
	if err != nil {
		return primitives.Roster{}, err
	}
	if found {
		return roster, nil
	}
	// Nothing published yet for round+1: carry the current roster forward
	// and publish it, so prefetch always succeeds once round has a roster.
	current, err := r.CurrentRoster(ctx, round)
	if err != nil {
		return primitives.Roster{}, err
	}
	current.Round = next
	if err := r.store.PutRoster(next, current); err != nil {
		return primitives.Roster{}, err
	}
	return current, nil
}

// IsReady reports whether round has a published roster.
func (r *LocalRegistry) IsReady(ctx context.Context, round primitives.Round) (bool, error) {
	_, found, err := r.store.GetRoster(round)
	return found, err
}

// AddMember inserts member into round's roster, republishing it
// (idempotent: a repeat add of the same address is a no-op), and returns
// the updated roster. The add_key_generator RPC path does not call it.
func (r *LocalRegistry) AddMember(round primitives.Round, member primitives.KeyGenerator) (primitives.Roster, error) {
	roster, found, err := r.store.GetRoster(round)
	if err != nil {
		return primitives.Roster{}, err
	}
	if !found {
		roster = primitives.Roster{Round: round}
	}
	roster = roster.WithMember(member)
	if err := r.store.PutRoster(round, roster); err != nil {
		return primitives.Roster{}, err
	}
	return roster, nil
}
