package node

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/skde-project/dkg-node/crypto/skde"
	"github.com/skde-project/dkg-node/internal/logger"
	"github.com/skde-project/dkg-node/pkg/authority"
	"github.com/skde-project/dkg-node/pkg/commitmentstore"
	"github.com/skde-project/dkg-node/pkg/dkgerr"
	"github.com/skde-project/dkg-node/pkg/eventbus"
	"github.com/skde-project/dkg-node/pkg/membership"
	"github.com/skde-project/dkg-node/pkg/primitives"
	"github.com/skde-project/dkg-node/pkg/signing"
	"github.com/skde-project/dkg-node/pkg/taskexecutor"
)

// AppConfig is the subset of the node's resolved configuration App needs,
// independent of the config package's TOML shape so this package has no
// import-cycle back to config.
type AppConfig struct {
	Role                    Role
	ChainType               string
	ExternalRPCURL          string
	ClusterRPCURL           string
	InternalRPCURL          string
	LeaderClusterRPCURL     string
	SolverRPCURL            string
	AuthorityRPCURL         string
	SessionDuration         time.Duration
	Threshold               int
	RoundLookAhead          uint64
	RadiusFoundationAddress string
	DataDir                 string
}

// App wires every in-process component in spec §4 into one running node:
// the Commitment Store, Membership View, Key Service, Event Bus, Task
// Executor, Protocol, and the Session Worker/Clock loop. RPC listeners are
// layered on top by the cmd package (which also imports pkg/rpc, avoiding
// an import cycle back into this package). It is the production
// counterpart of pkg/rpc's newTestNode test helper.
type App struct {
	cfg AppConfig
	log logger.Logger

	store *commitmentstore.Store
	keys  *signing.KeyPair
	view  *membership.View
	ks    *skde.KeyService
	exec  *taskexecutor.Executor
	bus   *eventbus.Bus
	proto *Protocol
	clock *Clock

	trustedSetup *primitives.SignedTrustedSetup
}

// NewApp opens the data directory's persisted state and assembles every
// in-process collaborator. It does not bind any listener (the cmd package
// does that) or start the session loop; call RunSessionLoop for that.
func NewApp(cfg AppConfig, log logger.Logger) (*App, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, dkgerr.Wrap(dkgerr.CategoryConfig, "NewApp:mkdir", err)
	}

	kp, err := loadOrCreateSigningKey(filepath.Join(cfg.DataDir, "signing_key"))
	if err != nil {
		return nil, err
	}

	store, err := commitmentstore.Open(filepath.Join(cfg.DataDir, "database"))
	if err != nil {
		return nil, dkgerr.Wrap(dkgerr.CategoryStorage, "NewApp:open", err)
	}

	exec := taskexecutor.New(10 * time.Second)

	trustedSetup, err := loadTrustedSetup(context.Background(), cfg, exec)
	if err != nil {
		store.Close()
		return nil, err
	}

	params, err := skde.FromTrustedSetup(trustedSetup.Setup.T, trustedSetup.Setup.N, trustedSetup.Setup.G, trustedSetup.Setup.H, trustedSetup.Setup.MaxSequencerNumber)
	if err != nil {
		store.Close()
		return nil, err
	}
	ks := skde.NewKeyService(params, nil)

	reg := authority.NewLocalRegistry(store)
	self := primitives.KeyGenerator{Address: kp.Address(), ClusterURL: cfg.ClusterRPCURL, ExternalURL: cfg.ExternalRPCURL}
	if err := reg.SeedRound(primitives.Round(0), primitives.Roster{Members: []primitives.KeyGenerator{self}}); err != nil {
		store.Close()
		return nil, dkgerr.Wrap(dkgerr.CategoryStorage, "NewApp:seed", err)
	}
	view := membership.NewView(reg, kp.Address())

	bus := eventbus.New()

	protoCfg := Config{
		Role:           cfg.Role,
		Self:           kp.Address(),
		Threshold:      cfg.Threshold,
		RoundDuration:  roundDurationSessions,
		RoundLookAhead: cfg.RoundLookAhead,
		SolverURL:      cfg.SolverRPCURL,
	}
	proto := NewProtocol(protoCfg, store, view, ks, kp, exec, bus, log)
	clock := NewClock(store, cfg.SessionDuration)

	return &App{
		cfg: cfg, log: log,
		store: store, keys: kp, view: view, ks: ks, exec: exec, bus: bus,
		proto: proto, clock: clock, trustedSetup: trustedSetup,
	}, nil
}

// roundDurationSessions is the number of sessions a round spans before the
// roster is re-fetched (spec §3 glossary: "1 week at 2s sessions is about
// 302400 sessions/round"). Kept as a package constant rather than a config
// key: spec.md §6 does not expose it as a TOML key, only round_look_ahead.
const roundDurationSessions = 302400

// Store exposes the opened Commitment Store, e.g. for rpc.NewServer.
func (a *App) Store() *commitmentstore.Store { return a.store }

// View exposes the Membership View, e.g. for rpc.NewServer.
func (a *App) View() *membership.View { return a.view }

// KeyService exposes the Key Service, e.g. for rpc.NewServer.
func (a *App) KeyService() *skde.KeyService { return a.ks }

// Protocol exposes the assembled Protocol, e.g. for rpc.NewServer.
func (a *App) Protocol() *Protocol { return a.proto }

// TrustedSetup exposes the loaded/verified trusted setup for rpc.NewServer's
// get_trusted_setup plane.
func (a *App) TrustedSetup() *primitives.SignedTrustedSetup { return a.trustedSetup }

// Close releases the Commitment Store's file handle. Call after
// RunSessionLoop's context is cancelled and the listeners have been shut
// down.
func (a *App) Close() error {
	return a.store.Close()
}

// RunSessionLoop drives the Session Clock / Session Worker loop until ctx
// is cancelled: each tick blocks for the next wall-clock boundary, then
// runs exactly one session to completion or timeout before looping.
func (a *App) RunSessionLoop(ctx context.Context) error {
	worker := NewWorker(a.bus, a.proto, a.log)
	for {
		info, err := a.clock.NextSession(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		sessionCtx, cancel := context.WithDeadline(ctx, info.EndsAt)
		_, err = worker.RunSession(sessionCtx, info)
		cancel()
		if err != nil && ctx.Err() == nil {
			a.log.Error("session failed", logger.Err(err), logger.Uint64("session_id", uint64(info.SessionID)))
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func loadOrCreateSigningKey(path string) (*signing.KeyPair, error) {
	raw, err := os.ReadFile(path)
	if err == nil {
		kp, err := signing.KeyPairFromHex(strings.TrimSpace(string(raw)))
		if err != nil {
			return nil, dkgerr.Wrap(dkgerr.CategoryConfig, "loadOrCreateSigningKey", err)
		}
		return kp, nil
	}
	if !os.IsNotExist(err) {
		return nil, dkgerr.Wrap(dkgerr.CategoryConfig, "loadOrCreateSigningKey", err)
	}

	kp, err := signing.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, []byte(kp.ExportHex()+"\n"), 0o600); err != nil {
		return nil, dkgerr.Wrap(dkgerr.CategoryConfig, "loadOrCreateSigningKey", err)
	}
	return kp, nil
}

// loadTrustedSetup resolves the SKDE trusted setup a non-authority node
// needs before it can run: first the data directory's cached
// skde_params.json, then a live get_trusted_setup fetch from the
// configured authority, verified against RadiusFoundationAddress. The
// authority role instead reads its own signed trusted_setup.json, written
// ahead of time by `dkg-node trusted-setup skde`.
func loadTrustedSetup(ctx context.Context, cfg AppConfig, exec *taskexecutor.Executor) (*primitives.SignedTrustedSetup, error) {
	cachePath := filepath.Join(cfg.DataDir, "skde_params.json")
	if cfg.Role == RoleAuthority {
		cachePath = filepath.Join(cfg.DataDir, "trusted_setup.json")
	}

	if raw, err := os.ReadFile(cachePath); err == nil {
		var signed primitives.SignedTrustedSetup
		if err := json.Unmarshal(raw, &signed); err != nil {
			return nil, dkgerr.Wrap(dkgerr.CategoryConfig, "loadTrustedSetup:cache", err)
		}
		return &signed, nil
	} else if !os.IsNotExist(err) {
		return nil, dkgerr.Wrap(dkgerr.CategoryConfig, "loadTrustedSetup:cache", err)
	}

	if cfg.Role == RoleAuthority {
		return nil, dkgerr.Wrap(dkgerr.CategoryConfig, "loadTrustedSetup",
			fmt.Errorf("authority role requires trusted_setup.json in data dir; run `trusted-setup skde` first"))
	}
	if cfg.AuthorityRPCURL == "" {
		return nil, dkgerr.Wrap(dkgerr.CategoryConfig, "loadTrustedSetup", fmt.Errorf("authority_rpc_url is required to fetch the trusted setup"))
	}

	var signed primitives.SignedTrustedSetup
	if err := exec.Request(ctx, cfg.AuthorityRPCURL, "get_trusted_setup", struct{}{}, &signed); err != nil {
		return nil, dkgerr.Wrap(dkgerr.CategoryTransport, "loadTrustedSetup:fetch", err)
	}

	if err := verifyTrustedSetup(signed, cfg.RadiusFoundationAddress); err != nil {
		return nil, err
	}

	raw, err := json.MarshalIndent(signed, "", "  ")
	if err == nil {
		_ = os.WriteFile(cachePath, raw, 0o644)
	}
	return &signed, nil
}

func verifyTrustedSetup(signed primitives.SignedTrustedSetup, expectedSigner string) error {
	if expectedSigner == "" {
		return nil
	}
	signer, err := signing.Verify(signed.Setup, signed.Signature, nil)
	if err != nil {
		return dkgerr.Wrap(dkgerr.CategorySignature, "verifyTrustedSetup", err)
	}
	if !strings.EqualFold(string(signer), expectedSigner) {
		return dkgerr.Wrap(dkgerr.CategorySignature, "verifyTrustedSetup", dkgerr.ErrSenderMismatch)
	}
	return nil
}

// GenerateAndSignTrustedSetup is the `trusted-setup skde` CLI operation: a
// fresh trusted setup signed by kp, ready to be written to
// trusted_setup.json.
func GenerateAndSignTrustedSetup(kp *signing.KeyPair, bits int, t uint32, maxSequencerNumber uint64) (*primitives.SignedTrustedSetup, error) {
	params, err := skde.GenerateParams(bits, t, maxSequencerNumber)
	if err != nil {
		return nil, err
	}
	tVal, n, g, h, maxSeq := params.ToWire()
	setup := primitives.TrustedSetup{T: tVal, N: n, G: g, H: h, MaxSequencerNumber: maxSeq}
	sig, err := kp.Sign(setup)
	if err != nil {
		return nil, err
	}
	return &primitives.SignedTrustedSetup{Setup: setup, Signature: sig}, nil
}

