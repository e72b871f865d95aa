package dkgerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrap_NilErrReturnsNil(t *testing.T) {
	assert.NoError(t, Wrap(CategoryStorage, "op", nil))
}

func TestWrap_PreservesCategoryAndMessage(t *testing.T) {
	err := Wrap(CategoryStorage, "Open", ErrNotFound)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage")
	assert.Contains(t, err.Error(), "Open")
	assert.Contains(t, err.Error(), ErrNotFound.Error())
}

func TestWrap_UnwrapsToSentinel(t *testing.T) {
	err := Wrap(CategorySignature, "Verify", ErrSenderMismatch)
	assert.True(t, errors.Is(err, ErrSenderMismatch))
}

func TestIs_MatchesCategory(t *testing.T) {
	err := Wrap(CategoryProtocol, "handle", ErrWrongState)
	assert.True(t, Is(err, CategoryProtocol))
	assert.False(t, Is(err, CategoryCrypto))
}

func TestIs_FalseForPlainError(t *testing.T) {
	assert.False(t, Is(errors.New("plain"), CategoryStorage))
}

func TestError_OmitsOpWhenEmpty(t *testing.T) {
	err := Wrap(CategoryArithmetic, "", ErrSessionIDOverflow)
	assert.Equal(t, "arithmetic: "+ErrSessionIDOverflow.Error(), err.Error())
}
