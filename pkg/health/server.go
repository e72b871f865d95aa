package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/skde-project/dkg-node/internal/logger"
	"github.com/skde-project/dkg-node/internal/metrics"
)

// Server is the liveness/readiness HTTP server bound to the node's
// configured health listen address (config.HealthConfig), separate from
// the JSON-RPC planes.
type Server struct {
	checker *Checker
	log     logger.Logger
	addr    string
	path    string
	server  *http.Server
}

// NewServer builds a Server. addr is the bind address (e.g. "127.0.0.1:9400").
func NewServer(checker *Checker, log logger.Logger, addr, path string) *Server {
	if path == "" {
		path = "/healthz"
	}
	return &Server{checker: checker, log: log, addr: addr, path: path}
}

// Start begins serving in the background. It returns once the listener has
// been configured; bind failures surface asynchronously via the logger
// (spec §7: the only startup-fatal conditions are KV open, RPC bind, and
// arithmetic overflow — the health listener is not on that list).
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc(s.path, s.handleHealth)
	mux.HandleFunc(s.path+"/live", s.handleLiveness)
	mux.HandleFunc(s.path+"/ready", s.handleReadiness)
	mux.Handle("/metrics", metrics.Handler())

	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error("health server stopped", logger.Err(err))
		}
	}()
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.checker.CheckAll()
	switch status.Status {
	case StatusUnhealthy:
		w.WriteHeader(http.StatusServiceUnavailable)
	default:
		w.WriteHeader(http.StatusOK)
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(status)
}

func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":    "alive",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	status := s.checker.CheckAll()
	ready := status.Store != nil && status.Store.Reachable && (!s.checker.requireTrustedSetup || status.Store.TrustedSetupReady)

	response := map[string]interface{}{
		"ready":     ready,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if !ready {
		response["errors"] = status.Errors
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(response)
}

// StartHealthServer is a convenience wiring function bundling server
// construction and start around a caller-built Checker, mirroring the
// teacher's StartHealthServer.
func StartHealthServer(addr, path string, checker *Checker, log logger.Logger) (*Server, error) {
	server := NewServer(checker, log, addr, path)
	if err := server.Start(); err != nil {
		return nil, fmt.Errorf("start health server: %w", err)
	}
	return server, nil
}
