// Package rpc is the JSON-RPC 2.0 surface across the three planes spec
// §4.6 defines: cluster (peer↔peer), external (client-facing), and
// authority (trusted-setup serving). Every state-changing method decodes
// a SignedCommitment (or equivalent) and defers to node.Protocol; this
// package owns only wire decoding, dispatch, and error translation,
// grounded on the teacher's pkg/agent/transport/http/server.go handler-func
// pattern, generalized to jsonrpc.Mux's per-method registry.
package rpc

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/skde-project/dkg-node/crypto/skde"
	"github.com/skde-project/dkg-node/node"
	"github.com/skde-project/dkg-node/pkg/commitmentstore"
	"github.com/skde-project/dkg-node/pkg/dkgerr"
	"github.com/skde-project/dkg-node/pkg/jsonrpc"
	"github.com/skde-project/dkg-node/pkg/membership"
	"github.com/skde-project/dkg-node/pkg/primitives"
)

// okResponse is the trivial {ok:true} ack several external methods return.
type okResponse struct {
	OK bool `json:"ok"`
}

// Server wires node.Protocol and the read-only collaborators into three
// independent jsonrpc.Mux instances, one per plane, each served on its own
// listen address per spec §6 config keys.
type Server struct {
	proto       *node.Protocol
	store       *commitmentstore.Store
	view        *membership.View
	keys        *skde.KeyService
	trustedSetup *primitives.SignedTrustedSetup
}

// NewServer builds a Server over its collaborators. trustedSetup may be nil
// until the Authority publishes one.
func NewServer(proto *node.Protocol, store *commitmentstore.Store, view *membership.View, keys *skde.KeyService, trustedSetup *primitives.SignedTrustedSetup) *Server {
	return &Server{proto: proto, store: store, view: view, keys: keys, trustedSetup: trustedSetup}
}

// ClusterHandler serves the peer↔peer plane: request_submit_enc_key,
// submit_enc_key, sync_enc_key, sync_finalized_enc_keys, sync_dec_key,
// sync_key_generator.
func (s *Server) ClusterHandler() http.Handler {
	return s.clusterMux()
}

func (s *Server) clusterMux() *jsonrpc.Mux {
	mux := jsonrpc.NewPlaneMux("cluster")

	mux.Handle("request_submit_enc_key", func(params json.RawMessage) (interface{}, error) {
		var req struct {
			SessionID primitives.SessionID `json:"session_id"`
		}
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, dkgerr.Wrap(dkgerr.CategoryTransport, "request_submit_enc_key", err)
		}
		if err := s.proto.HandleRequestSubmitEncKey(context.Background(), req.SessionID); err != nil {
			return nil, err
		}
		return okResponse{OK: true}, nil
	})

	mux.Handle("submit_enc_key", func(params json.RawMessage) (interface{}, error) {
		signed, err := decodeSignedCommitment(params)
		if err != nil {
			return nil, err
		}
		if err := s.proto.HandleSubmitEncKey(context.Background(), signed); err != nil {
			return nil, err
		}
		return okResponse{OK: true}, nil
	})

	mux.Handle("sync_enc_key", func(params json.RawMessage) (interface{}, error) {
		signed, err := decodeSignedCommitment(params)
		if err != nil {
			return nil, err
		}
		if err := s.proto.HandleSyncEncKey(context.Background(), signed); err != nil {
			return nil, err
		}
		return okResponse{OK: true}, nil
	})

	mux.Handle("sync_finalized_enc_keys", func(params json.RawMessage) (interface{}, error) {
		outer, err := decodeSignedCommitment(params)
		if err != nil {
			return nil, err
		}
		if err := s.proto.HandleSyncFinalizedEncKeys(context.Background(), outer); err != nil {
			return nil, err
		}
		return okResponse{OK: true}, nil
	})

	mux.Handle("sync_dec_key", func(params json.RawMessage) (interface{}, error) {
		signed, err := decodeSignedCommitment(params)
		if err != nil {
			return nil, err
		}
		if err := s.proto.HandleSyncDecKey(context.Background(), signed); err != nil {
			return nil, err
		}
		return okResponse{OK: true}, nil
	})

	mux.Handle("sync_key_generator", func(params json.RawMessage) (interface{}, error) {
		var req keyGeneratorRequest
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, dkgerr.Wrap(dkgerr.CategoryTransport, "sync_key_generator", err)
		}
		roster := s.proto.HandleSyncKeyGenerator(req.round(), req.member())
		return roster, nil
	})

	return mux
}

// keyGeneratorRequest is the shared wire shape for add_key_generator and
// sync_key_generator.
type keyGeneratorRequest struct {
	Address     primitives.Address `json:"address"`
	ClusterURL  string             `json:"cluster_url"`
	ExternalURL string             `json:"external_url"`
	Round       uint64             `json:"round"`
}

func (r keyGeneratorRequest) round() primitives.Round { return primitives.Round(r.Round) }
func (r keyGeneratorRequest) member() primitives.KeyGenerator {
	return primitives.KeyGenerator{Address: r.Address, ClusterURL: r.ClusterURL, ExternalURL: r.ExternalURL}
}

// ExternalHandler serves the client-facing plane: submit_dec_key,
// add_key_generator, and the read-only get_* / health queries.
func (s *Server) ExternalHandler() http.Handler {
	return s.externalMux()
}

func (s *Server) externalMux() *jsonrpc.Mux {
	mux := jsonrpc.NewPlaneMux("external")

	mux.Handle("submit_dec_key", func(params json.RawMessage) (interface{}, error) {
		signed, err := decodeSignedCommitment(params)
		if err != nil {
			return nil, err
		}
		if err := s.proto.HandleSubmitDecKey(context.Background(), signed); err != nil {
			return nil, err
		}
		return okResponse{OK: true}, nil
	})

	mux.Handle("add_key_generator", func(params json.RawMessage) (interface{}, error) {
		var req keyGeneratorRequest
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, dkgerr.Wrap(dkgerr.CategoryTransport, "add_key_generator", err)
		}
		roster, err := s.proto.HandleAddKeyGenerator(context.Background(), req.round(), req.member())
		if err != nil {
			return nil, err
		}
		return roster, nil
	})

	mux.Handle("get_enc_key", func(params json.RawMessage) (interface{}, error) {
		var req sessionRequest
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, dkgerr.Wrap(dkgerr.CategoryTransport, "get_enc_key", err)
		}
		key, found, err := s.store.GetEncKey(req.SessionID)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, dkgerr.Wrap(dkgerr.CategoryStorage, "get_enc_key", dkgerr.ErrNotFound)
		}
		return map[string][]byte{"enc_key": key}, nil
	})

	mux.Handle("get_dec_key", func(params json.RawMessage) (interface{}, error) {
		var req sessionRequest
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, dkgerr.Wrap(dkgerr.CategoryTransport, "get_dec_key", err)
		}
		key, found, err := s.store.GetDecKey(req.SessionID)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, dkgerr.Wrap(dkgerr.CategoryStorage, "get_dec_key", dkgerr.ErrNotFound)
		}
		return map[string][]byte{"dec_key": key}, nil
	})

	mux.Handle("get_session_id", func(params json.RawMessage) (interface{}, error) {
		id, _, err := s.store.GetSessionID()
		if err != nil {
			return nil, err
		}
		return map[string]uint64{"session_id": uint64(id)}, nil
	})

	mux.Handle("get_key_generator_list", func(params json.RawMessage) (interface{}, error) {
		var req roundRequest
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, dkgerr.Wrap(dkgerr.CategoryTransport, "get_key_generator_list", err)
		}
		return s.view.Roster(context.Background(), primitives.Round(req.Round))
	})

	mux.Handle("get_trusted_setup", func(params json.RawMessage) (interface{}, error) {
		if s.trustedSetup == nil {
			return nil, dkgerr.Wrap(dkgerr.CategoryConfig, "get_trusted_setup", dkgerr.ErrConfigNotFound)
		}
		return s.trustedSetup, nil
	})

	mux.Handle("health", func(params json.RawMessage) (interface{}, error) {
		return map[string]string{"status": "ok"}, nil
	})

	return mux
}

// AuthorityHandler serves the trusted-setup plane: the Authority's one-shot
// get_trusted_setup serving, kept on a separate listen address so it can be
// firewalled off from ordinary cluster/external traffic.
func (s *Server) AuthorityHandler() http.Handler {
	mux := jsonrpc.NewPlaneMux("authority")
	mux.Handle("get_trusted_setup", func(params json.RawMessage) (interface{}, error) {
		if s.trustedSetup == nil {
			return nil, dkgerr.Wrap(dkgerr.CategoryConfig, "get_trusted_setup", dkgerr.ErrConfigNotFound)
		}
		return s.trustedSetup, nil
	})
	return mux
}

// AllHandler co-serves every method across all three planes on a single
// listener. Production deployments bind ClusterHandler/ExternalHandler/
// AuthorityHandler to their own configured addresses (spec §6); this is for
// single-port dev/test wiring.
func (s *Server) AllHandler() http.Handler {
	mux := jsonrpc.NewMux()
	mux.Merge(s.clusterMux())
	mux.Merge(s.externalMux())
	mux.Handle("get_trusted_setup", func(params json.RawMessage) (interface{}, error) {
		if s.trustedSetup == nil {
			return nil, dkgerr.Wrap(dkgerr.CategoryConfig, "get_trusted_setup", dkgerr.ErrConfigNotFound)
		}
		return s.trustedSetup, nil
	})
	return mux
}

type sessionRequest struct {
	SessionID primitives.SessionID `json:"session_id"`
}

type roundRequest struct {
	Round uint64 `json:"round"`
}

func decodeSignedCommitment(params json.RawMessage) (primitives.SignedCommitment, error) {
	var signed primitives.SignedCommitment
	if err := json.Unmarshal(params, &signed); err != nil {
		return primitives.SignedCommitment{}, dkgerr.Wrap(dkgerr.CategoryTransport, "decodeSignedCommitment", err)
	}
	return signed, nil
}
