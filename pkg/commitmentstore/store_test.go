package commitmentstore

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/skde-project/dkg-node/pkg/primitives"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSessionIDRoundTrip(t *testing.T) {
	s := openTestStore(t)

	_, found, err := s.GetSessionID()
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, s.PutSessionID(7))
	id, found, err := s.GetSessionID()
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, primitives.SessionID(7), id)
}

func TestInsertSubmitterIdempotent(t *testing.T) {
	s := openTestStore(t)

	n1, err := s.InsertSubmitter(1, "0xabc")
	require.NoError(t, err)
	require.Equal(t, 1, n1)

	n2, err := s.InsertSubmitter(1, "0xabc")
	require.NoError(t, err)
	require.Equal(t, 1, n2, "re-insert of the same address is a no-op")

	n3, err := s.InsertSubmitter(1, "0xdef")
	require.NoError(t, err)
	require.Equal(t, 2, n3)

	list, err := s.GetSubmitterList(1)
	require.NoError(t, err)
	require.Equal(t, 2, list.Len())
}

func TestEncKeyCommitmentOverwriteAndList(t *testing.T) {
	s := openTestStore(t)

	c1 := primitives.EncKeyCommitment{SessionID: 3, Address: "0xaaa", KeyBytes: []byte("first")}
	require.NoError(t, s.PutEncKeyCommitment(c1))

	c2 := primitives.EncKeyCommitment{SessionID: 3, Address: "0xbbb", KeyBytes: []byte("second")}
	require.NoError(t, s.PutEncKeyCommitment(c2))

	// Duplicate submission from 0xaaa overwrites, scenario D.
	c1dup := primitives.EncKeyCommitment{SessionID: 3, Address: "0xaaa", KeyBytes: []byte("updated")}
	require.NoError(t, s.PutEncKeyCommitment(c1dup))

	got, found, err := s.GetEncKeyCommitment(3, "0xaaa")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("updated"), got.KeyBytes)

	all, err := s.ListEncKeyCommitments(3)
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestEncKeyDecKeyLifecycle(t *testing.T) {
	s := openTestStore(t)

	_, found, err := s.GetEncKey(5)
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, s.PutEncKey(5, []byte("enc")))
	enc, found, err := s.GetEncKey(5)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("enc"), enc)

	_, found, err = s.GetDecKey(5)
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, s.PutDecKey(5, []byte("dec")))
	dec, found, err := s.GetDecKey(5)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("dec"), dec)
}

func TestRosterRoundTrip(t *testing.T) {
	s := openTestStore(t)
	roster := primitives.Roster{Round: 2, Members: []primitives.KeyGenerator{
		{Address: "0x1", ClusterURL: "http://a", ExternalURL: "http://a-ext"},
	}}
	require.NoError(t, s.PutRoster(2, roster))

	got, found, err := s.GetRoster(2)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, roster, got)
}
