package primitives

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionID_NextAndPrev(t *testing.T) {
	s := SessionID(5)
	next, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, SessionID(6), next)

	prev, err := s.Prev()
	require.NoError(t, err)
	assert.Equal(t, SessionID(4), prev)
}

func TestSessionID_PrevUndefinedAtZero(t *testing.T) {
	_, err := SessionID(0).Prev()
	assert.Error(t, err)
}

func TestSessionID_NextOverflowIsFatal(t *testing.T) {
	max := SessionID(^uint64(0))
	_, err := max.Next()
	assert.Error(t, err)
}

func TestSessionID_IsInitial(t *testing.T) {
	assert.True(t, SessionID(0).IsInitial())
	assert.False(t, SessionID(1).IsInitial())
}

func TestShouldEndRound(t *testing.T) {
	const roundDuration = 10
	tests := []struct {
		session  SessionID
		expected bool
	}{
		{0, false},
		{5, false},
		{10, true},
		{20, true},
		{21, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, ShouldEndRound(tt.session, roundDuration), "session=%d", tt.session)
	}
}

func TestRoundOf(t *testing.T) {
	assert.Equal(t, Round(0), RoundOf(0, 10))
	assert.Equal(t, Round(0), RoundOf(9, 10))
	assert.Equal(t, Round(1), RoundOf(10, 10))
	assert.Equal(t, Round(1), RoundOf(19, 10))
}
