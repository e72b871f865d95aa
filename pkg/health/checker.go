package health

import (
	"time"

	"github.com/google/uuid"

	"github.com/skde-project/dkg-node/pkg/commitmentstore"
)

// Checker runs the node's health checks against its live collaborators.
type Checker struct {
	store               *commitmentstore.Store
	requireTrustedSetup bool
	trustedSetupReady   func() bool
}

// NewChecker builds a Checker. requireTrustedSetup should be true for every
// role except Authority (spec §6 exit codes: missing trusted setup is a
// startup error for non-authority roles); trustedSetupReady reports whether
// one has been loaded.
func NewChecker(store *commitmentstore.Store, requireTrustedSetup bool, trustedSetupReady func() bool) *Checker {
	return &Checker{store: store, requireTrustedSetup: requireTrustedSetup, trustedSetupReady: trustedSetupReady}
}

// CheckAll runs every check and aggregates the worst status observed.
func (c *Checker) CheckAll() *HealthStatus {
	status := &HealthStatus{
		CheckID:   uuid.NewString(),
		Timestamp: time.Now(),
		Status:    StatusHealthy,
		Errors:    make([]string, 0),
	}

	status.Store = c.checkStore()
	if status.Store.Status != StatusHealthy {
		status.Status = worse(status.Status, status.Store.Status)
		if status.Store.Error != "" {
			status.Errors = append(status.Errors, "store: "+status.Store.Error)
		}
	}

	status.System = CheckSystem()
	status.Status = worse(status.Status, status.System.Status)

	return status
}

func (c *Checker) checkStore() *StoreHealth {
	h := &StoreHealth{Status: StatusHealthy}
	if c.store == nil {
		h.Status = StatusUnhealthy
		h.Error = "store not initialized"
		return h
	}
	if _, _, err := c.store.GetSessionID(); err != nil {
		h.Status = StatusUnhealthy
		h.Error = err.Error()
		return h
	}
	h.Reachable = true

	h.TrustedSetupReady = c.trustedSetupReady != nil && c.trustedSetupReady()
	if c.requireTrustedSetup && !h.TrustedSetupReady {
		h.Status = StatusDegraded
		h.Error = "trusted setup not loaded"
	}
	return h
}

func worse(a, b Status) Status {
	rank := map[Status]int{StatusHealthy: 0, StatusDegraded: 1, StatusUnhealthy: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}
