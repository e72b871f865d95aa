package skde

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func testParams(t *testing.T) Params {
	t.Helper()
	p, err := GenerateParams(256, 4, 10)
	require.NoError(t, err)
	return p
}

func TestGenEncKeyStandalone(t *testing.T) {
	svc := NewKeyService(testParams(t), nil)
	raw, err := svc.GenEncKey(nil, nil)
	require.NoError(t, err)

	var pk PartialKey
	require.NoError(t, json.Unmarshal(raw, &pk))
	require.NotNil(t, pk.U)
	require.NotNil(t, pk.V)
}

func TestGenEncKeyDeterministic(t *testing.T) {
	params := testParams(t)
	svc := NewKeyService(params, nil)

	var peerKeys [][]byte
	for i := 0; i < 4; i++ {
		raw, err := svc.GenEncKey(nil, nil)
		require.NoError(t, err)
		peerKeys = append(peerKeys, raw)
	}

	randomness := []byte{0x42, 0x01, 0x02, 0x03}
	out1, err := svc.GenEncKey(randomness, peerKeys)
	require.NoError(t, err)
	out2, err := svc.GenEncKey(randomness, peerKeys)
	require.NoError(t, err)
	require.Equal(t, out1, out2, "identical (randomness, sorted peer keys) must aggregate byte-identically")
}

func TestGenEncKeySingleKeyMode(t *testing.T) {
	svc := NewKeyService(testParams(t), nil)
	raw, err := svc.GenEncKey(nil, nil)
	require.NoError(t, err)

	agg, err := svc.GenEncKey([]byte{0x01}, [][]byte{raw})
	require.NoError(t, err)
	require.NotEmpty(t, agg)
}

func TestGenDecKeyAndVerifyRoundTrip(t *testing.T) {
	params := testParams(t)
	svc := NewKeyService(params, nil)

	var peerKeys [][]byte
	for i := 0; i < 3; i++ {
		raw, err := svc.GenEncKey(nil, nil)
		require.NoError(t, err)
		peerKeys = append(peerKeys, raw)
	}

	encKey, err := svc.GenEncKey([]byte{0x07, 0x00}, peerKeys)
	require.NoError(t, err)

	decKey, solveAt, err := svc.GenDecKey(encKey)
	require.NoError(t, err)
	require.NotZero(t, solveAt)

	require.NoError(t, svc.VerifyDecKey(encKey, decKey))
}

func TestVerifyDecKeyRejectsWrongPair(t *testing.T) {
	params := testParams(t)
	svc := NewKeyService(params, nil)

	raw1, err := svc.GenEncKey(nil, nil)
	require.NoError(t, err)
	encKey, err := svc.GenEncKey([]byte{0x01, 0x02}, [][]byte{raw1})
	require.NoError(t, err)

	raw2, err := svc.GenEncKey(nil, nil)
	require.NoError(t, err)
	otherEncKey, err := svc.GenEncKey([]byte{0x03, 0x04}, [][]byte{raw2})
	require.NoError(t, err)
	wrongDecKey, _, err := svc.GenDecKey(otherEncKey)
	require.NoError(t, err)

	require.Error(t, svc.VerifyDecKey(encKey, wrongDecKey))
}

func TestSelectOrderedIndicesSingleKey(t *testing.T) {
	svc := NewKeyService(testParams(t), nil)
	indices, err := svc.selectOrderedIndices(1, []byte{0xAB})
	require.NoError(t, err)
	require.Equal(t, []int{0}, indices)
}

func TestSelectOrderedIndicesDeterministic(t *testing.T) {
	svc := NewKeyService(testParams(t), nil)
	a, err := svc.selectOrderedIndices(5, []byte{0x10, 0x20, 0x30})
	require.NoError(t, err)
	b, err := svc.selectOrderedIndices(5, []byte{0x10, 0x20, 0x30})
	require.NoError(t, err)
	// Same randomness must reproduce the exact same shuffle-produced order,
	// not merely the same set: deriveVirtualKey's hash input is order
	// sensitive, so the indices are intentionally left unsorted.
	require.Equal(t, a, b)

	seen := make(map[int]bool, len(a))
	for _, idx := range a {
		require.False(t, seen[idx], "duplicate index %d", idx)
		require.True(t, idx >= 0 && idx < 5)
		seen[idx] = true
	}
}
