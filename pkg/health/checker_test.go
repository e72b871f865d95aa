package health

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/skde-project/dkg-node/pkg/commitmentstore"
)

func openTestStore(t *testing.T) *commitmentstore.Store {
	t.Helper()
	store, err := commitmentstore.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestCheckAllHealthyWithoutTrustedSetupRequirement(t *testing.T) {
	checker := NewChecker(openTestStore(t), false, nil)
	status := checker.CheckAll()
	require.Equal(t, StatusHealthy, status.Status)
	require.True(t, status.Store.Reachable)
	require.NotEmpty(t, status.CheckID)
}

func TestCheckAllDegradedWhenTrustedSetupMissing(t *testing.T) {
	checker := NewChecker(openTestStore(t), true, func() bool { return false })
	status := checker.CheckAll()
	require.Equal(t, StatusDegraded, status.Status)
	require.False(t, status.Store.TrustedSetupReady)
}

func TestCheckAllHealthyWhenTrustedSetupLoaded(t *testing.T) {
	checker := NewChecker(openTestStore(t), true, func() bool { return true })
	status := checker.CheckAll()
	require.Equal(t, StatusHealthy, status.Status)
	require.True(t, status.Store.TrustedSetupReady)
}

func TestCheckAllUnhealthyWithNilStore(t *testing.T) {
	checker := NewChecker(nil, false, nil)
	status := checker.CheckAll()
	require.Equal(t, StatusUnhealthy, status.Status)
}

func TestWorsePicksHigherSeverity(t *testing.T) {
	require.Equal(t, StatusDegraded, worse(StatusHealthy, StatusDegraded))
	require.Equal(t, StatusUnhealthy, worse(StatusDegraded, StatusUnhealthy))
	require.Equal(t, StatusHealthy, worse(StatusHealthy, StatusHealthy))
}
