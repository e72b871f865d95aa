package primitives

import "time"

// Commitment is the payload every signed protocol message wraps: an opaque
// byte sequence (decoded by type hint at the consumer) plus the session it
// belongs to, an optional claimed sender, and a wall-clock timestamp.
type Commitment struct {
	Payload   []byte    `json:"payload"`
	Sender    *Address  `json:"sender,omitempty"`
	SessionID SessionID `json:"session_id"`
	Timestamp int64     `json:"timestamp_ms"`
}

// NewCommitment builds a Commitment stamped with the current wall clock.
func NewCommitment(sessionID SessionID, payload []byte, sender *Address) Commitment {
	return Commitment{
		Payload:   payload,
		Sender:    sender,
		SessionID: sessionID,
		Timestamp: time.Now().UnixMilli(),
	}
}

// SignedCommitment is a Commitment plus the 65-byte Ethereum-style signature
// over its canonical encoding. Verifying the signature recovers an address
// which must equal Commitment.Sender when present.
type SignedCommitment struct {
	Commitment Commitment `json:"commitment"`
	Signature  []byte     `json:"signature"`
}

// EncKeyCommitment is one committee member's signed encryption-key
// contribution for a given session, keyed by (session, address).
type EncKeyCommitment struct {
	SessionID SessionID
	Address   Address
	Signed    SignedCommitment
	KeyBytes  []byte
}

// DecKeyPayload is the Solver's decryption-key contribution, embedded inside
// a SignedCommitment.
type DecKeyPayload struct {
	DecKeyBytes []byte `json:"dec_key_bytes"`
	SolveAtMs   uint64 `json:"solve_at_ms"`
}

// FinalizedEncKeyPayload is the leader's snapshot of every EncKeyCommitment
// collected for a session, broadcast as SyncFinalizedEncKeys.
type FinalizedEncKeyPayload struct {
	SessionID   SessionID          `json:"session_id"`
	Commitments []SignedCommitment `json:"commitments"`
}

// SubmitterList is the set of addresses that have posted a commitment for a
// session. Insertion is idempotent (set semantics).
type SubmitterList struct {
	members map[Address]struct{}
	order   []Address
}

// NewSubmitterList returns an empty SubmitterList.
func NewSubmitterList() *SubmitterList {
	return &SubmitterList{members: make(map[Address]struct{})}
}

// Insert adds addr if absent. Returns true if it was newly inserted.
func (s *SubmitterList) Insert(addr Address) bool {
	if _, ok := s.members[addr]; ok {
		return false
	}
	s.members[addr] = struct{}{}
	s.order = append(s.order, addr)
	return true
}

// Contains reports whether addr has already submitted.
func (s *SubmitterList) Contains(addr Address) bool {
	_, ok := s.members[addr]
	return ok
}

// Len returns the number of distinct submitters.
func (s *SubmitterList) Len() int { return len(s.order) }

// Addresses returns the submitters in insertion order.
func (s *SubmitterList) Addresses() []Address {
	out := make([]Address, len(s.order))
	copy(out, s.order)
	return out
}
