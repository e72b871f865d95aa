package primitives

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyGenerator_EqualIgnoresURLs(t *testing.T) {
	a := KeyGenerator{Address: "0xabc", ClusterURL: "http://a:1", ExternalURL: "http://a:2"}
	b := KeyGenerator{Address: "0xABC", ClusterURL: "http://b:1", ExternalURL: "http://b:2"}
	assert.True(t, a.Equal(b))
}

func TestKeyGenerator_URLSelectsPlane(t *testing.T) {
	k := KeyGenerator{Address: "0x1", ClusterURL: "cluster", ExternalURL: "external"}
	assert.Equal(t, "cluster", k.URL(true))
	assert.Equal(t, "external", k.URL(false))
}

func TestRoster_WithMemberIsIdempotent(t *testing.T) {
	r := Roster{Round: 0}
	r = r.WithMember(KeyGenerator{Address: "0x1"})
	r = r.WithMember(KeyGenerator{Address: "0x1"})
	assert.Equal(t, 1, r.Len())
}

func TestRoster_IndexOf(t *testing.T) {
	r := Roster{Members: []KeyGenerator{{Address: "0x1"}, {Address: "0x2"}}}
	assert.Equal(t, 1, r.IndexOf("0x2"))
	assert.Equal(t, -1, r.IndexOf("0x3"))
}

func TestSubmitterList_InsertIsSetSemantics(t *testing.T) {
	sl := NewSubmitterList()
	assert.True(t, sl.Insert("0x1"))
	assert.False(t, sl.Insert("0x1"))
	assert.Equal(t, 1, sl.Len())
	assert.True(t, sl.Contains("0x1"))
}
