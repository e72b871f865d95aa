// Package taskexecutor abstracts spawning onto a cooperative scheduler with
// two knobs (spec §4.8): SpawnTask for I/O-bound work (goroutines, unbounded)
// and SpawnBlocking for CPU-bound work (the puzzle solve), which runs on a
// fixed-size worker pool sized to GOMAXPROCS so the time-lock computation
// never starves the RPC server's I/O goroutines. Outbound RPC is JSON-RPC
// 2.0 over HTTP POST (spec §6 wire envelope), grounded on the teacher's
// pkg/agent/transport/http/server.go client-side counterpart.
package taskexecutor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/skde-project/dkg-node/internal/metrics"
	"github.com/skde-project/dkg-node/pkg/dkgerr"
	"github.com/skde-project/dkg-node/pkg/jsonrpc"
)

// Executor runs outbound RPC and schedules blocking puzzle-solve work on a
// bounded pool so it cannot monopolize every OS thread at once.
type Executor struct {
	client   *http.Client
	blocking chan struct{}
}

// New builds an Executor with an HTTP client of the given per-call timeout
// and a blocking-task pool sized to GOMAXPROCS.
func New(httpTimeout time.Duration) *Executor {
	poolSize := runtime.GOMAXPROCS(0)
	if poolSize < 1 {
		poolSize = 1
	}
	return &Executor{
		client:   &http.Client{Timeout: httpTimeout},
		blocking: make(chan struct{}, poolSize),
	}
}

// SpawnTask runs fn on its own goroutine, unbounded, for I/O-bound work
// (outbound RPC, store reads). Errors are reported back on the returned
// channel rather than swallowed.
func (e *Executor) SpawnTask(fn func() error) <-chan error {
	done := make(chan error, 1)
	go func() {
		done <- fn()
	}()
	return done
}

// SpawnBlocking runs fn on the bounded blocking pool, suspending the caller
// until a slot is free or ctx is cancelled. Used exclusively by the Solver
// role to run SolveTimeLockPuzzle (spec §4.2.3, §9) without starving the
// RPC server's goroutines.
func (e *Executor) SpawnBlocking(ctx context.Context, fn func() error) error {
	select {
	case e.blocking <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-e.blocking }()
	return fn()
}

// Request performs a single-shot unary RPC call to url, framing method and
// params as JSON-RPC 2.0 with Id null, and decodes the result into out. It
// inherits ctx's cancellation (spec §4.8: "outbound request calls inherit
// caller's cancellation").
func (e *Executor) Request(ctx context.Context, url, method string, params interface{}, out interface{}) error {
	paramsRaw, err := json.Marshal(params)
	if err != nil {
		return dkgerr.Wrap(dkgerr.CategoryTransport, "Request:marshal", err)
	}
	body, err := json.Marshal(jsonrpc.Request{JSONRPC: "2.0", Method: method, Params: paramsRaw, ID: nil})
	if err != nil {
		return dkgerr.Wrap(dkgerr.CategoryTransport, "Request:marshal", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return dkgerr.Wrap(dkgerr.CategoryTransport, "Request:new", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		metrics.OutboundCalls.WithLabelValues(method, "error").Inc()
		return dkgerr.Wrap(dkgerr.CategoryTransport, "Request:"+method, err)
	}
	defer resp.Body.Close()

	var env jsonrpc.Response
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		metrics.OutboundCalls.WithLabelValues(method, "error").Inc()
		return dkgerr.Wrap(dkgerr.CategoryTransport, "Request:decode", err)
	}
	if env.Error != nil {
		metrics.OutboundCalls.WithLabelValues(method, "error").Inc()
		return dkgerr.Wrap(dkgerr.CategoryTransport, "Request:"+method,
			fmt.Errorf("rpc error %d: %s", env.Error.Code, env.Error.Message))
	}
	if out != nil && len(env.Result) > 0 {
		if err := json.Unmarshal(env.Result, out); err != nil {
			metrics.OutboundCalls.WithLabelValues(method, "error").Inc()
			return dkgerr.Wrap(dkgerr.CategoryTransport, "Request:unmarshal", err)
		}
	}
	metrics.OutboundCalls.WithLabelValues(method, "ok").Inc()
	return nil
}

// Multicast fans out method/params to every url concurrently, each call on
// a fresh background context bounded by the client timeout, so no caller
// context can cancel it. It waits for every call to finish before
// returning, so the caller blocks for up to one client timeout. Per-target
// failures are neither logged nor combined into one error; they are
// returned in the slice, one entry per url (nil on success).
func (e *Executor) Multicast(urls []string, method string, params interface{}) []error {
	metrics.MulticastFanout.WithLabelValues(method).Observe(float64(len(urls)))
	var g errgroup.Group
	errs := make([]error, len(urls))
	for i, url := range urls {
		i, url := i, url
		g.Go(func() error {
			ctx, cancel := context.WithTimeout(context.Background(), e.client.Timeout)
			defer cancel()
			errs[i] = e.Request(ctx, url, method, params, nil)
			return nil
		})
	}
	_ = g.Wait()
	return errs
}
