package taskexecutor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/skde-project/dkg-node/pkg/jsonrpc"
)

func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var env jsonrpc.Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&env))
		resp := jsonrpc.Response{JSONRPC: "2.0", Result: env.Params, ID: nil}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func TestRequestRoundTrip(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	e := New(2 * time.Second)
	var out map[string]int
	err := e.Request(context.Background(), srv.URL, "ping", map[string]int{"session_id": 7}, &out)
	require.NoError(t, err)
	require.Equal(t, 7, out["session_id"])
}

func TestRequestSurfacesRPCError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := jsonrpc.Response{JSONRPC: "2.0", Error: &jsonrpc.Error{Code: -32000, Message: "not a committee member"}, ID: nil}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	e := New(2 * time.Second)
	err := e.Request(context.Background(), srv.URL, "submit_enc_key", nil, nil)
	require.Error(t, err)
}

func TestMulticastDispatchesToAllTargets(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		_ = json.NewEncoder(w).Encode(jsonrpc.Response{JSONRPC: "2.0", ID: nil})
	}))
	defer srv.Close()

	e := New(2 * time.Second)
	errs := e.Multicast([]string{srv.URL, srv.URL, srv.URL}, "sync_finalized_enc_keys", nil)
	require.Len(t, errs, 3)
	for _, err := range errs {
		require.NoError(t, err)
	}
	require.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestMulticastContinuesPastUnreachableTarget(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(jsonrpc.Response{JSONRPC: "2.0", ID: nil})
	}))
	defer srv.Close()

	e := New(2 * time.Second)
	errs := e.Multicast([]string{"http://127.0.0.1:1", srv.URL}, "sync_dec_key", nil)
	require.Len(t, errs, 2)
	require.Error(t, errs[0])
	require.NoError(t, errs[1])
}

func TestSpawnBlockingRespectsPoolBound(t *testing.T) {
	e := New(time.Second)
	e.blocking = make(chan struct{}, 1) // force serialization for the test

	var running int32
	var sawOverlap bool
	done := make(chan struct{}, 2)

	for i := 0; i < 2; i++ {
		go func() {
			_ = e.SpawnBlocking(context.Background(), func() error {
				if atomic.AddInt32(&running, 1) > 1 {
					sawOverlap = true
				}
				time.Sleep(20 * time.Millisecond)
				atomic.AddInt32(&running, -1)
				return nil
			})
			done <- struct{}{}
		}()
	}
	<-done
	<-done
	require.False(t, sawOverlap, "blocking pool of size 1 must serialize callers")
}

func TestSpawnTaskReportsError(t *testing.T) {
	e := New(time.Second)
	boom := assertError
	result := <-e.SpawnTask(func() error { return boom })
	require.ErrorIs(t, result, boom)
}

var assertError = context.Canceled
