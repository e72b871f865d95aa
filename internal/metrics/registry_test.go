package metrics

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHandlerServesRegisteredMetrics(t *testing.T) {
	SessionsStarted.Inc()
	RPCRequests.WithLabelValues("cluster", "submit_enc_key", "ok").Inc()

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	require.Contains(t, rec.Body.String(), "dkg_node_worker_sessions_started_total")
	require.Contains(t, rec.Body.String(), "dkg_node_rpc_requests_total")
}
