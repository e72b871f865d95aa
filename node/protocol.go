package node

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/skde-project/dkg-node/crypto/skde"
	"github.com/skde-project/dkg-node/internal/logger"
	"github.com/skde-project/dkg-node/internal/metrics"
	"github.com/skde-project/dkg-node/pkg/commitmentstore"
	"github.com/skde-project/dkg-node/pkg/dkgerr"
	"github.com/skde-project/dkg-node/pkg/eventbus"
	"github.com/skde-project/dkg-node/pkg/membership"
	"github.com/skde-project/dkg-node/pkg/primitives"
	"github.com/skde-project/dkg-node/pkg/signing"
	"github.com/skde-project/dkg-node/pkg/taskexecutor"
)

// Role selects which Session Worker behavior a node participates in (spec
// §6 config key `role`). Leadership itself is always computed dynamically
// by round-robin (spec §4.5). Role gates two behaviors: an Authority node
// skips the leader's on-entry action, and a Solver additionally solves the
// time-lock puzzle when the finalized key arrives. HandleRequestSubmitEncKey
// does not check Role, so any node asked for a partial key generates one.
type Role string

const (
	RoleAuthority Role = "authority"
	RoleLeader    Role = "leader"
	RoleCommittee Role = "committee"
	RoleSolver    Role = "solver"
	RoleVerifier  Role = "verifier"
)

// Config is the Session Worker / Protocol's resolved runtime configuration,
// sourced from the node's TOML config (spec §6).
type Config struct {
	Role           Role
	Self           primitives.Address
	Threshold      int
	RoundDuration  uint64
	RoundLookAhead uint64
	SolverURL      string
}

// Protocol implements the role-specific RPC handler logic of spec
// §4.2.1-4.2.4 / §4.6. It is shared by the RPC surface (which calls it on
// inbound requests) and the Worker (which calls OnSessionEntry/OnSessionEnd
// around the FSM).
type Protocol struct {
	cfg    Config
	store  *commitmentstore.Store
	view   *membership.View
	keys   *skde.KeyService
	signer *signing.KeyPair
	exec   *taskexecutor.Executor
	bus    *eventbus.Bus
	log    logger.Logger
}

// NewProtocol builds a Protocol over its collaborators.
func NewProtocol(cfg Config, store *commitmentstore.Store, view *membership.View, keys *skde.KeyService, signer *signing.KeyPair, exec *taskexecutor.Executor, bus *eventbus.Bus, log logger.Logger) *Protocol {
	return &Protocol{cfg: cfg, store: store, view: view, keys: keys, signer: signer, exec: exec, bus: bus, log: log}
}

func (p *Protocol) round(session primitives.SessionID) primitives.Round {
	return primitives.RoundOf(session, p.cfg.RoundDuration)
}

// OnSessionEntry runs the leader's on-entry action (spec §4.2.1): if this
// node is the computed leader for info.SessionID, multicast
// request_submit_enc_key to every other roster member's cluster URL.
// Committee, Solver, and Verifier nodes do nothing here and simply wait for
// inbound RPC.
func (p *Protocol) OnSessionEntry(ctx context.Context, info SessionInfo) error {
	if p.cfg.Role == RoleAuthority {
		return nil
	}
	round := p.round(info.SessionID)
	isLeader, err := p.view.IsLeader(ctx, info.SessionID, round)
	if err != nil {
		return err
	}
	if !isLeader {
		return nil
	}
	roster, err := p.view.Roster(ctx, round)
	if err != nil {
		return err
	}
	urls := committeeURLs(roster, p.cfg.Self)
	p.exec.Multicast(urls, "request_submit_enc_key", map[string]uint64{"session_id": uint64(info.SessionID)})
	return nil
}

// OnSessionEnd implements round advancement (spec §4.2.4): after EndSession
// is recorded, if session+lookahead falls on a round boundary (the first
// session of a new round), prefetch round+1 from the AuthorityService adapter so it is cached ahead
// of the boundary (Open Question 3 in DESIGN.md: prefetch-only, the
// current round stays active until its own boundary).
func (p *Protocol) OnSessionEnd(ctx context.Context, session primitives.SessionID) {
	lookAhead := p.cfg.RoundLookAhead
	if lookAhead == 0 {
		lookAhead = 1
	}
	if !primitives.ShouldEndRound(session+primitives.SessionID(lookAhead), p.cfg.RoundDuration) {
		return
	}
	round := p.round(session)
	if err := p.view.Prefetch(ctx, round+1); err != nil {
		p.log.Warn("round prefetch failed", logger.Err(err), logger.Uint64("round", uint64(round)+1))
		return
	}
	metrics.RoundsAdvanced.Inc()
}

func committeeURLs(roster primitives.Roster, self primitives.Address) []string {
	urls := make([]string, 0, roster.Len())
	for _, m := range roster.Members {
		if !m.Equal(primitives.KeyGenerator{Address: self}) {
			urls = append(urls, m.URL(true))
		}
	}
	return urls
}

// HandleRequestSubmitEncKey is the Committee behavior on inbound
// request_submit_enc_key (spec §4.2.2): generate a fresh partial key, sign
// a commitment over it, and unicast submit_enc_key back to the leader.
func (p *Protocol) HandleRequestSubmitEncKey(ctx context.Context, session primitives.SessionID) error {
	keyBytes, err := p.keys.GenEncKey(nil, nil)
	if err != nil {
		return err
	}
	signed, err := p.signer.SignCommitment(session, keyBytes)
	if err != nil {
		return err
	}

	round := p.round(session)
	roster, err := p.view.Roster(ctx, round)
	if err != nil {
		return err
	}
	leader, err := membership.CurrentLeader(session, roster, true)
	if err != nil {
		return err
	}
	return p.exec.Request(ctx, leader.URL(true), "submit_enc_key", signed, nil)
}

// HandleSubmitEncKey is the Leader behavior on inbound submit_enc_key (spec
// §4.2.1/§4.6): verify the sender is in the current roster, persist the
// commitment, track distinct submitters, and once threshold is reached,
// snapshot and multicast sync_finalized_enc_keys.
func (p *Protocol) HandleSubmitEncKey(ctx context.Context, signed primitives.SignedCommitment) error {
	sender, err := signing.VerifyCommitment(signed)
	if err != nil {
		return err
	}
	session := signed.Commitment.SessionID
	round := p.round(session)
	roster, err := p.view.Roster(ctx, round)
	if err != nil {
		return err
	}
	if !roster.Contains(sender) {
		return dkgerr.Wrap(dkgerr.CategoryProtocol, "HandleSubmitEncKey", dkgerr.ErrNotRegisteredSubmitter)
	}

	if err := p.store.PutEncKeyCommitment(primitives.EncKeyCommitment{
		SessionID: session,
		Address:   sender,
		Signed:    signed,
		KeyBytes:  signed.Commitment.Payload,
	}); err != nil {
		return err
	}
	count, err := p.store.InsertSubmitter(session, sender)
	if err != nil {
		return err
	}

	ackURLs := committeeURLs(roster, p.cfg.Self)
	ackURLs = without(ackURLs, sender, roster)
	p.exec.Multicast(ackURLs, "sync_enc_key", signed)

	if count < p.cfg.Threshold {
		return nil
	}
	metrics.ThresholdReached.Observe(float64(count))
	return p.finalize(ctx, session, round, roster)
}

// without drops the URL belonging to addr from urls, used so the leader
// doesn't echo sync_enc_key back to the original submitter.
func without(urls []string, addr primitives.Address, roster primitives.Roster) []string {
	idx := roster.IndexOf(addr)
	if idx < 0 {
		return urls
	}
	excluded := roster.Members[idx].URL(true)
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if u != excluded {
			out = append(out, u)
		}
	}
	return out
}

func (p *Protocol) finalize(ctx context.Context, session primitives.SessionID, round primitives.Round, roster primitives.Roster) error {
	commitments, err := p.store.ListEncKeyCommitments(session)
	if err != nil {
		return err
	}
	inner := make([]primitives.SignedCommitment, len(commitments))
	for i, c := range commitments {
		inner[i] = c.Signed
	}
	payload := primitives.FinalizedEncKeyPayload{SessionID: session, Commitments: inner}

	if err := p.bus.Send(ctx, eventbus.Event{Kind: eventbus.FinalizeKey, SessionID: session, Commitments: inner}); err != nil {
		return err
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return dkgerr.Wrap(dkgerr.CategoryProtocol, "finalize", err)
	}
	outer, err := p.signer.SignCommitment(session, payloadBytes)
	if err != nil {
		return err
	}

	// The leader is itself a roster member and must derive/store its own
	// EncKey exactly as every other recipient of sync_finalized_enc_keys
	// does (spec.md Scenario A: every peer, leader included, ends up with
	// EncKey(session)/DecKey(session)) — committeeURLs below excludes the
	// leader from the multicast target list, so this has to happen
	// locally rather than arrive over the wire.
	if err := p.HandleSyncFinalizedEncKeys(ctx, outer); err != nil {
		return err
	}

	targets := committeeURLs(roster, p.cfg.Self)
	if p.cfg.SolverURL != "" {
		targets = append(targets, p.cfg.SolverURL)
	}
	p.exec.Multicast(targets, "sync_finalized_enc_keys", outer)
	return nil
}

// HandleSyncEncKey is the non-leader peer's reaction to the leader's
// sync_enc_key ack (spec §4.6): ignore self-originated echoes, verify the
// signature, and persist the commitment and submitter entry.
func (p *Protocol) HandleSyncEncKey(ctx context.Context, signed primitives.SignedCommitment) error {
	sender, err := signing.VerifyCommitment(signed)
	if err != nil {
		return err
	}
	if sender == p.cfg.Self {
		return nil
	}
	session := signed.Commitment.SessionID
	if _, err := p.store.InsertSubmitter(session, sender); err != nil {
		return err
	}
	return p.store.PutEncKeyCommitment(primitives.EncKeyCommitment{
		SessionID: session,
		Address:   sender,
		Signed:    signed,
		KeyBytes:  signed.Commitment.Payload,
	})
}

// HandleSyncFinalizedEncKeys is the Committee/Solver reaction to
// sync_finalized_enc_keys (spec §4.2.2/§4.2.3): verify the outer signature
// against the round's leader, persist every inner commitment, derive the
// shared EncKey deterministically, and — for the Solver — additionally
// solve the time-lock puzzle, verify the pair, and submit the resulting
// DecKey commitment to the leader.
func (p *Protocol) HandleSyncFinalizedEncKeys(ctx context.Context, outer primitives.SignedCommitment) error {
	session := outer.Commitment.SessionID
	round := p.round(session)
	roster, err := p.view.Roster(ctx, round)
	if err != nil {
		return err
	}
	leader, err := membership.CurrentLeader(session, roster, true)
	if err != nil {
		return err
	}
	sender, err := signing.VerifyCommitment(outer)
	if err != nil {
		return err
	}
	if sender != leader.Address {
		return dkgerr.Wrap(dkgerr.CategoryProtocol, "HandleSyncFinalizedEncKeys", dkgerr.ErrNotRegisteredSubmitter)
	}

	var payload primitives.FinalizedEncKeyPayload
	if err := json.Unmarshal(outer.Commitment.Payload, &payload); err != nil {
		return dkgerr.Wrap(dkgerr.CategoryProtocol, "HandleSyncFinalizedEncKeys", err)
	}

	keyBytes := make([][]byte, 0, len(payload.Commitments))
	for _, inner := range payload.Commitments {
		innerSender, err := signing.VerifyCommitment(inner)
		if err != nil {
			return err
		}
		if _, err := p.store.InsertSubmitter(session, innerSender); err != nil {
			return err
		}
		if err := p.store.PutEncKeyCommitment(primitives.EncKeyCommitment{
			SessionID: session,
			Address:   innerSender,
			Signed:    inner,
			KeyBytes:  inner.Commitment.Payload,
		}); err != nil {
			return err
		}
		keyBytes = append(keyBytes, inner.Commitment.Payload)
	}
	sort.Slice(keyBytes, func(i, j int) bool { return string(keyBytes[i]) < string(keyBytes[j]) })

	randomness, err := p.randomnessFor(session)
	if err != nil {
		return err
	}
	encKey, err := p.keys.GenEncKey(randomness, keyBytes)
	if err != nil {
		return err
	}
	if err := p.store.PutEncKey(session, encKey); err != nil {
		return err
	}

	if p.cfg.Role != RoleSolver {
		return nil
	}
	return p.solveAndSubmit(ctx, session, leader, encKey)
}

// randomnessFor derives the session's randomness beacon from the prior
// session's decryption key, or the constant seed for session 0 (spec §3:
// "Session 0 is the initial session ... uses a constant randomness seed").
func (p *Protocol) randomnessFor(session primitives.SessionID) ([]byte, error) {
	if session.IsInitial() {
		return []byte(primitives.InitialRandomnessSeed), nil
	}
	prev, err := session.Prev()
	if err != nil {
		return nil, err
	}
	decKey, found, err := p.store.GetDecKey(prev)
	if err != nil {
		return nil, err
	}
	if !found {
		// Predecessor never finalized (Solver offline) — fall back to the
		// constant seed rather than block session progress indefinitely.
		return []byte(primitives.InitialRandomnessSeed), nil
	}
	return decKey, nil
}

// solveAndSubmit runs the Solver's tail of §4.2.3: solve the puzzle on the
// blocking pool so the worker can still observe timeouts, verify the pair
// (a mandatory, session-aborting check for the Solver per DESIGN.md Open
// Question 4), persist DecKey, and submit the result to the leader.
func (p *Protocol) solveAndSubmit(ctx context.Context, session primitives.SessionID, leader primitives.KeyGenerator, encKey []byte) error {
	var decKey []byte
	var solveAtMs uint64
	err := p.exec.SpawnBlocking(ctx, func() error {
		var solveErr error
		decKey, solveAtMs, solveErr = p.keys.GenDecKey(encKey)
		return solveErr
	})
	if err != nil {
		return err
	}

	if err := p.keys.VerifyDecKey(encKey, decKey); err != nil {
		return err
	}
	if err := p.store.PutDecKey(session, decKey); err != nil {
		return err
	}

	payload := primitives.DecKeyPayload{DecKeyBytes: decKey, SolveAtMs: solveAtMs}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return dkgerr.Wrap(dkgerr.CategoryProtocol, "solveAndSubmit", err)
	}
	signed, err := p.signer.SignCommitment(session, payloadBytes)
	if err != nil {
		return err
	}
	// submit_dec_key is an external-plane method (spec §4.6): reach the
	// leader through its external URL, not the intra-cluster one.
	return p.exec.Request(ctx, leader.URL(false), "submit_dec_key", signed, nil)
}

// HandleSubmitDecKey is the Leader behavior on inbound submit_dec_key (spec
// §4.6): verify the signature, advance the persisted session id, multicast
// sync_dec_key to every peer, and emit EndSession.
func (p *Protocol) HandleSubmitDecKey(ctx context.Context, signed primitives.SignedCommitment) error {
	if _, err := signing.VerifyCommitment(signed); err != nil {
		return err
	}
	session := signed.Commitment.SessionID
	round := p.round(session)
	roster, err := p.view.Roster(ctx, round)
	if err != nil {
		return err
	}

	// As with sync_finalized_enc_keys above, the leader never receives its
	// own sync_dec_key multicast (committeeURLs excludes it), so it must
	// verify/persist its own DecKey(session) locally — otherwise the
	// leader would be the one node in the roster that never has it.
	if err := p.applyDecKey(session, signed); err != nil {
		return err
	}
	if err := p.advanceSessionID(session); err != nil {
		return err
	}
	p.exec.Multicast(committeeURLs(roster, p.cfg.Self), "sync_dec_key", signed)
	return p.bus.Send(ctx, eventbus.Event{Kind: eventbus.EndSession, SessionID: session})
}

// applyDecKey verifies the dec key pair against the session's stored EncKey
// and persists DecKey on success, shared by the leader's local application
// (HandleSubmitDecKey) and every peer's reaction to the wire message
// (HandleSyncDecKey).
func (p *Protocol) applyDecKey(session primitives.SessionID, signed primitives.SignedCommitment) error {
	var payload primitives.DecKeyPayload
	if err := json.Unmarshal(signed.Commitment.Payload, &payload); err != nil {
		return dkgerr.Wrap(dkgerr.CategoryProtocol, "applyDecKey", err)
	}

	encKey, found, err := p.store.GetEncKey(session)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	if verr := p.keys.VerifyDecKey(encKey, payload.DecKeyBytes); verr != nil {
		p.log.Warn("dec key verification failed, skipping persist", logger.Err(verr), logger.Uint64("session_id", uint64(session)))
		return nil
	}
	return p.store.PutDecKey(session, payload.DecKeyBytes)
}

// HandleSyncDecKey is every peer's reaction to sync_dec_key (spec §4.2.2):
// verify the signature, confirm the pair against the stored EncKey, and
// persist DecKey only on success (advisory for peers per DESIGN.md Open
// Question 4 — they did not compute the puzzle themselves), then emit
// EndSession regardless so the round always advances.
func (p *Protocol) HandleSyncDecKey(ctx context.Context, signed primitives.SignedCommitment) error {
	if _, err := signing.VerifyCommitment(signed); err != nil {
		return err
	}
	session := signed.Commitment.SessionID

	if err := p.applyDecKey(session, signed); err != nil {
		return err
	}

	if err := p.advanceSessionID(session); err != nil {
		return err
	}
	return p.bus.Send(ctx, eventbus.Event{Kind: eventbus.EndSession, SessionID: session})
}

// advanceSessionID persists session+1 as the new SessionId, the point at
// which consumers are defined to advance it (spec §4.1/§3).
func (p *Protocol) advanceSessionID(session primitives.SessionID) error {
	next, err := session.Next()
	if err != nil {
		return err
	}
	return p.store.PutSessionID(next)
}

// HandleAddKeyGenerator is the External behavior for add_key_generator
// (spec §4.6): idempotently insert member into the roster for round and
// multicast sync_key_generator to the resulting roster.
func (p *Protocol) HandleAddKeyGenerator(ctx context.Context, round primitives.Round, member primitives.KeyGenerator) (primitives.Roster, error) {
	roster := p.view.AddMember(round, member)
	p.exec.Multicast(committeeURLs(roster, p.cfg.Self), "sync_key_generator", member)
	return roster, nil
}

// HandleSyncKeyGenerator is the cluster behavior for sync_key_generator: an
// idempotent roster insert mirroring HandleAddKeyGenerator's effect on
// every other peer.
func (p *Protocol) HandleSyncKeyGenerator(round primitives.Round, member primitives.KeyGenerator) primitives.Roster {
	return p.view.AddMember(round, member)
}
