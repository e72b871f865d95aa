package rpc

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/skde-project/dkg-node/crypto/skde"
	"github.com/skde-project/dkg-node/internal/logger"
	"github.com/skde-project/dkg-node/node"
	"github.com/skde-project/dkg-node/pkg/authority"
	"github.com/skde-project/dkg-node/pkg/commitmentstore"
	"github.com/skde-project/dkg-node/pkg/eventbus"
	"github.com/skde-project/dkg-node/pkg/membership"
	"github.com/skde-project/dkg-node/pkg/primitives"
	"github.com/skde-project/dkg-node/pkg/signing"
	"github.com/skde-project/dkg-node/pkg/taskexecutor"
)

// delegatingHandler lets a test stand up an httptest.Server before the real
// handler (which needs the server's own URL baked into a roster) exists.
type delegatingHandler struct {
	h atomic.Value
}

func newDelegatingHandler() *delegatingHandler {
	d := &delegatingHandler{}
	d.h.Store(http.NotFoundHandler())
	return d
}

func (d *delegatingHandler) set(h http.Handler) { d.h.Store(h) }

func (d *delegatingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	d.h.Load().(http.Handler).ServeHTTP(w, r)
}

// testNode bundles one participant's collaborators for the end-to-end
// scenario below, mirroring spec scenario A's per-node shape. Cluster and
// external methods are co-served on one httptest.Server via AllHandler, a
// simplification of the three-listener production topology.
type testNode struct {
	keys     *signing.KeyPair
	store    *commitmentstore.Store
	proto    *node.Protocol
	server   *Server
	srv      *httptest.Server
	delegate *delegatingHandler
}

func newTestNode(t *testing.T, role node.Role, skdeKeys *skde.KeyService) *testNode {
	t.Helper()
	kp, err := signing.GenerateKeyPair()
	require.NoError(t, err)

	store, err := commitmentstore.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	reg := authority.NewLocalRegistry(store)
	view := membership.NewView(reg, kp.Address())
	bus := eventbus.New()
	exec := taskexecutor.New(2 * time.Second)
	log := logger.NewLogger(io.Discard, logger.ErrorLevel)

	cfg := node.Config{Role: role, Self: kp.Address(), Threshold: 2, RoundDuration: 0, RoundLookAhead: 1}
	proto := node.NewProtocol(cfg, store, view, skdeKeys, kp, exec, bus, log)
	server := NewServer(proto, store, view, skdeKeys, nil)

	delegate := newDelegatingHandler()
	srv := httptest.NewServer(delegate)
	t.Cleanup(srv.Close)

	return &testNode{keys: kp, store: store, proto: proto, server: server, srv: srv, delegate: delegate}
}

func TestFullSessionRoundTrip(t *testing.T) {
	params, err := skde.GenerateParams(64, 3, 10)
	require.NoError(t, err)
	keys := skde.NewKeyService(params, nil)

	leader := newTestNode(t, node.RoleLeader, keys)
	committee := newTestNode(t, node.RoleCommittee, keys)
	solver := newTestNode(t, node.RoleSolver, keys)

	roster := primitives.Roster{Round: 0, Members: []primitives.KeyGenerator{
		{Address: leader.keys.Address(), ClusterURL: leader.srv.URL, ExternalURL: leader.srv.URL},
		{Address: committee.keys.Address(), ClusterURL: committee.srv.URL, ExternalURL: committee.srv.URL},
		{Address: solver.keys.Address(), ClusterURL: solver.srv.URL, ExternalURL: solver.srv.URL},
	}}

	// Every node's own AuthorityService-backed store must agree on the
	// roster, since each one reads it independently through its own View.
	for _, n := range []*testNode{leader, committee, solver} {
		require.NoError(t, n.store.PutRoster(0, roster))
	}

	leader.delegate.set(leader.server.AllHandler())
	committee.delegate.set(committee.server.AllHandler())
	solver.delegate.set(solver.server.AllHandler())

	info := node.SessionInfo{SessionID: 0, Duration: 2 * time.Second, EndsAt: time.Now().Add(2 * time.Second)}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	require.NoError(t, leader.proto.OnSessionEntry(ctx, info))

	require.Eventually(t, func() bool {
		_, found, err := committee.store.GetEncKey(0)
		return err == nil && found
	}, 5*time.Second, 20*time.Millisecond, "committee should derive EncKey once finalized")

	require.Eventually(t, func() bool {
		_, found, err := solver.store.GetDecKey(0)
		return err == nil && found
	}, 5*time.Second, 20*time.Millisecond, "solver should compute and persist DecKey")

	require.Eventually(t, func() bool {
		_, found, err := committee.store.GetDecKey(0)
		return err == nil && found
	}, 5*time.Second, 20*time.Millisecond, "committee should receive and verify DecKey via sync_dec_key")

	// The leader is a roster member too and is excluded from its own
	// multicast target lists, so it must apply sync_finalized_enc_keys /
	// sync_dec_key locally rather than over the wire (spec.md Scenario A:
	// every peer, leader included, ends up with EncKey/DecKey).
	require.Eventually(t, func() bool {
		_, found, err := leader.store.GetEncKey(0)
		return err == nil && found
	}, 5*time.Second, 20*time.Millisecond, "leader should also derive its own EncKey")

	require.Eventually(t, func() bool {
		_, found, err := leader.store.GetDecKey(0)
		return err == nil && found
	}, 5*time.Second, 20*time.Millisecond, "leader should also persist its own DecKey")

	leaderSession, _, err := leader.store.GetSessionID()
	require.NoError(t, err)
	require.Equal(t, primitives.SessionID(1), leaderSession, "SessionId must advance by exactly one at EndSession")
}
