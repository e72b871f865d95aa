// Package commitmentstore is the typed key-value façade described in spec
// §4.4: an append-only per-session store of signed partial-key commitments
// and the derived decryption-key commitment, backed by an embedded ordered
// KV engine. Apply serializes read-modify-write callers per key behind a
// 5-second acquisition timeout; of the typed helpers, only InsertSubmitter
// goes through it. The Put* helpers overwrite their key directly, without
// taking the per-key lock. Readers see the last committed write.
package commitmentstore

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"

	"github.com/skde-project/dkg-node/internal/metrics"
	"github.com/skde-project/dkg-node/pkg/dkgerr"
	"github.com/skde-project/dkg-node/pkg/primitives"
)

// LockTimeout is the default acquisition timeout for Apply, per spec §4.4.
const LockTimeout = 5 * time.Second

// Store is the commitment store, opened over a single pebble database
// directory (the node's `database/` data-directory entry).
type Store struct {
	db    *pebble.DB
	locks sync.Map // string -> *keyLock
}

// Open opens (creating if absent) the pebble database at dir.
func Open(dir string) (*Store, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, dkgerr.Wrap(dkgerr.CategoryStorage, "Open", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return dkgerr.Wrap(dkgerr.CategoryStorage, "Close", err)
	}
	return nil
}

type keyLock struct{ sem chan struct{} }

func newKeyLock() *keyLock { return &keyLock{sem: make(chan struct{}, 1)} }

func (l *keyLock) acquire(timeout time.Duration) bool {
	select {
	case l.sem <- struct{}{}:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (l *keyLock) release() { <-l.sem }

func (s *Store) lockFor(key string) *keyLock {
	v, _ := s.locks.LoadOrStore(key, newKeyLock())
	return v.(*keyLock)
}

func (s *Store) getRaw(key string) ([]byte, bool, error) {
	v, closer, err := s.db.Get([]byte(key))
	if err != nil {
		if err == pebble.ErrNotFound {
			metrics.StoreOperations.WithLabelValues("get", "not_found").Inc()
			return nil, false, nil
		}
		metrics.StoreOperations.WithLabelValues("get", "error").Inc()
		return nil, false, dkgerr.Wrap(dkgerr.CategoryStorage, "get:"+key, err)
	}
	out := append([]byte{}, v...)
	_ = closer.Close()
	metrics.StoreOperations.WithLabelValues("get", "ok").Inc()
	return out, true, nil
}

func (s *Store) putRaw(key string, value []byte) error {
	if err := s.db.Set([]byte(key), value, pebble.Sync); err != nil {
		metrics.StoreOperations.WithLabelValues("put", "error").Inc()
		return dkgerr.Wrap(dkgerr.CategoryStorage, "put:"+key, err)
	}
	metrics.StoreOperations.WithLabelValues("put", "ok").Inc()
	return nil
}

// Apply performs a read-modify-write of key under its per-key lock,
// acquired with a 5-second timeout (spec §4.4: "apply ... guarantees serial
// access per key"). fn receives the existing raw value (nil, false if
// absent) and returns the new raw value to persist.
func (s *Store) Apply(key string, fn func(existing []byte, found bool) ([]byte, error)) error {
	lock := s.lockFor(key)
	waitStart := time.Now()
	if !lock.acquire(LockTimeout) {
		metrics.ApplyLockTimeouts.Inc()
		metrics.StoreOperations.WithLabelValues("apply", "error").Inc()
		return dkgerr.Wrap(dkgerr.CategoryStorage, "apply:"+key, dkgerr.ErrLockTimeout)
	}
	metrics.ApplyLockWait.Observe(time.Since(waitStart).Seconds())
	defer lock.release()

	existing, found, err := s.getRaw(key)
	if err != nil {
		metrics.StoreOperations.WithLabelValues("apply", "error").Inc()
		return err
	}
	next, err := fn(existing, found)
	if err != nil {
		metrics.StoreOperations.WithLabelValues("apply", "error").Inc()
		return err
	}
	if err := s.putRaw(key, next); err != nil {
		metrics.StoreOperations.WithLabelValues("apply", "error").Inc()
		return err
	}
	metrics.StoreOperations.WithLabelValues("apply", "ok").Inc()
	return nil
}

// --- key schema --------------------------------------------------------

func sessionIDKey() string { return "session_id" }
func rosterKey(round primitives.Round) string {
	return fmt.Sprintf("round:%d", uint64(round))
}
func submitterListKey(session primitives.SessionID) string {
	return fmt.Sprintf("session:%d:submitters", uint64(session))
}
func encKeyCommitmentKey(session primitives.SessionID, addr primitives.Address) string {
	return fmt.Sprintf("session:%d:enc_commitment:%s", uint64(session), addr)
}
func encKeyCommitmentPrefix(session primitives.SessionID) string {
	return fmt.Sprintf("session:%d:enc_commitment:", uint64(session))
}
func encKeyKey(session primitives.SessionID) string {
	return fmt.Sprintf("session:%d:enc_key", uint64(session))
}
func decKeyKey(session primitives.SessionID) string {
	return fmt.Sprintf("session:%d:dec_key", uint64(session))
}

// --- SessionID -----------------------------------------------------------

// GetSessionID returns the persisted session id, or 0 (found=false) if
// never written (node just started).
func (s *Store) GetSessionID() (primitives.SessionID, bool, error) {
	raw, found, err := s.getRaw(sessionIDKey())
	if err != nil || !found {
		return 0, found, err
	}
	var id uint64
	if err := json.Unmarshal(raw, &id); err != nil {
		return 0, false, dkgerr.Wrap(dkgerr.CategoryStorage, "GetSessionID", err)
	}
	return primitives.SessionID(id), true, nil
}

// PutSessionID overwrites the persisted session id unconditionally; callers
// are responsible for the monotonic-non-decreasing invariant (spec §3).
func (s *Store) PutSessionID(id primitives.SessionID) error {
	raw, _ := json.Marshal(uint64(id))
	return s.putRaw(sessionIDKey(), raw)
}

// --- Roster ---------------------------------------------------------------

// GetRoster returns the roster published for round, if any.
func (s *Store) GetRoster(round primitives.Round) (primitives.Roster, bool, error) {
	raw, found, err := s.getRaw(rosterKey(round))
	if err != nil || !found {
		return primitives.Roster{}, found, err
	}
	var roster primitives.Roster
	if err := json.Unmarshal(raw, &roster); err != nil {
		return primitives.Roster{}, false, dkgerr.Wrap(dkgerr.CategoryStorage, "GetRoster", err)
	}
	return roster, true, nil
}

// PutRoster writes the roster for round, replacing any roster already
// stored there (authority.LocalRegistry.AddMember republishes a round's
// roster this way when a member is added).
func (s *Store) PutRoster(round primitives.Round, roster primitives.Roster) error {
	raw, err := json.Marshal(roster)
	if err != nil {
		return dkgerr.Wrap(dkgerr.CategoryStorage, "PutRoster", err)
	}
	return s.putRaw(rosterKey(round), raw)
}

// --- SubmitterList ---------------------------------------------------------

// GetSubmitterList returns the set of addresses that have submitted for
// session, or an empty list if none yet.
func (s *Store) GetSubmitterList(session primitives.SessionID) (*primitives.SubmitterList, error) {
	raw, found, err := s.getRaw(submitterListKey(session))
	if err != nil {
		return nil, err
	}
	if !found {
		return primitives.NewSubmitterList(), nil
	}
	var addrs []primitives.Address
	if err := json.Unmarshal(raw, &addrs); err != nil {
		return nil, dkgerr.Wrap(dkgerr.CategoryStorage, "GetSubmitterList", err)
	}
	list := primitives.NewSubmitterList()
	for _, a := range addrs {
		list.Insert(a)
	}
	return list, nil
}

// InsertSubmitter idempotently adds addr to session's SubmitterList under
// Apply's per-key lock, returning the resulting list size.
func (s *Store) InsertSubmitter(session primitives.SessionID, addr primitives.Address) (int, error) {
	var size int
	err := s.Apply(submitterListKey(session), func(existing []byte, found bool) ([]byte, error) {
		list := primitives.NewSubmitterList()
		if found {
			var addrs []primitives.Address
			if err := json.Unmarshal(existing, &addrs); err != nil {
				return nil, dkgerr.Wrap(dkgerr.CategoryStorage, "InsertSubmitter", err)
			}
			for _, a := range addrs {
				list.Insert(a)
			}
		}
		list.Insert(addr)
		size = list.Len()
		return json.Marshal(list.Addresses())
	})
	return size, err
}

// --- EncKeyCommitment -------------------------------------------------------

// PutEncKeyCommitment stores one committee member's signed encryption-key
// contribution for (session, addr). A later put overwrites the prior value
// for the same key (spec scenario D: duplicate submission overwrites but
// SubmitterList membership is unaffected).
func (s *Store) PutEncKeyCommitment(c primitives.EncKeyCommitment) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return dkgerr.Wrap(dkgerr.CategoryStorage, "PutEncKeyCommitment", err)
	}
	return s.putRaw(encKeyCommitmentKey(c.SessionID, c.Address), raw)
}

// GetEncKeyCommitment returns the stored commitment for (session, addr).
func (s *Store) GetEncKeyCommitment(session primitives.SessionID, addr primitives.Address) (primitives.EncKeyCommitment, bool, error) {
	raw, found, err := s.getRaw(encKeyCommitmentKey(session, addr))
	if err != nil || !found {
		return primitives.EncKeyCommitment{}, found, err
	}
	var c primitives.EncKeyCommitment
	if err := json.Unmarshal(raw, &c); err != nil {
		return primitives.EncKeyCommitment{}, false, dkgerr.Wrap(dkgerr.CategoryStorage, "GetEncKeyCommitment", err)
	}
	return c, true, nil
}

// ListEncKeyCommitments returns every EncKeyCommitment stored for session,
// used by the leader to snapshot a FinalizedEncKeyPayload.
func (s *Store) ListEncKeyCommitments(session primitives.SessionID) ([]primitives.EncKeyCommitment, error) {
	prefix := []byte(encKeyCommitmentPrefix(session))
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixUpperBound(prefix),
	})
	if err != nil {
		return nil, dkgerr.Wrap(dkgerr.CategoryStorage, "ListEncKeyCommitments", err)
	}
	defer iter.Close()

	var out []primitives.EncKeyCommitment
	for iter.First(); iter.Valid(); iter.Next() {
		var c primitives.EncKeyCommitment
		if err := json.Unmarshal(iter.Value(), &c); err != nil {
			return nil, dkgerr.Wrap(dkgerr.CategoryStorage, "ListEncKeyCommitments", err)
		}
		out = append(out, c)
	}
	return out, nil
}

func prefixUpperBound(prefix []byte) []byte {
	upper := append([]byte{}, prefix...)
	for i := len(upper) - 1; i >= 0; i-- {
		if upper[i] == 0xff {
			upper = upper[:i]
			continue
		}
		upper[i]++
		return upper
	}
	return nil
}

// --- EncKey / DecKey ---------------------------------------------------------

// GetEncKey returns the aggregated encryption key persisted for session.
func (s *Store) GetEncKey(session primitives.SessionID) ([]byte, bool, error) {
	return s.getRaw(encKeyKey(session))
}

// PutEncKey persists the aggregated encryption key for session. Written
// once per session, never mutated afterward (spec §3 lifecycle).
func (s *Store) PutEncKey(session primitives.SessionID, key []byte) error {
	return s.putRaw(encKeyKey(session), key)
}

// GetDecKey returns the decryption key persisted for session, if the
// session ever completed (spec invariant: DecKey exists only if EncKey
// exists).
func (s *Store) GetDecKey(session primitives.SessionID) ([]byte, bool, error) {
	return s.getRaw(decKeyKey(session))
}

// PutDecKey persists the decryption key for session.
func (s *Store) PutDecKey(session primitives.SessionID, key []byte) error {
	return s.putRaw(decKeyKey(session), key)
}
