package primitives

import "strings"

// Address is the 20-byte Ethereum-style address derived from a participant's
// public key, hex-encoded with a leading "0x".
type Address string

// KeyGenerator is one registered participant: an address plus the two URLs
// used to reach it (cluster-internal RPC, and the client-facing external
// RPC). Equality and hashing are defined on Address alone.
type KeyGenerator struct {
	Address     Address `json:"address"`
	ClusterURL  string  `json:"cluster_url"`
	ExternalURL string  `json:"external_url"`
}

// Equal compares two KeyGenerators by address only, case-insensitively.
func (k KeyGenerator) Equal(other KeyGenerator) bool {
	return strings.EqualFold(string(k.Address), string(other.Address))
}

// URL returns the cluster URL for intra-cluster calls, or the external URL
// for client-facing calls, selected by isSync (true = cluster/internal).
func (k KeyGenerator) URL(isSync bool) string {
	if isSync {
		return k.ClusterURL
	}
	return k.ExternalURL
}

// Roster is the ordered roster of KeyGenerators active during one round.
// Members are only ever added to a round's roster, never removed or
// reordered; WithMember returns an extended copy.
type Roster struct {
	Round   Round
	Members []KeyGenerator
}

// IndexOf returns the index of the member with the given address, or -1.
func (r Roster) IndexOf(addr Address) int {
	for i, m := range r.Members {
		if strings.EqualFold(string(m.Address), string(addr)) {
			return i
		}
	}
	return -1
}

// Contains reports whether addr is a member of this roster.
func (r Roster) Contains(addr Address) bool {
	return r.IndexOf(addr) >= 0
}

// Len returns the number of members in the roster.
func (r Roster) Len() int { return len(r.Members) }

// WithMember returns a copy of the roster with member appended, unless an
// entry with the same address already exists (idempotent insert).
func (r Roster) WithMember(member KeyGenerator) Roster {
	if r.Contains(member.Address) {
		return r
	}
	members := make([]KeyGenerator, len(r.Members), len(r.Members)+1)
	copy(members, r.Members)
	members = append(members, member)
	return Roster{Round: r.Round, Members: members}
}
