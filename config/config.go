// Package config loads and resolves the node's TOML configuration, grounded
// on drand's manifest-decoding shape (the closest in-corpus system to a
// round-driven, roster-backed service) and on the teacher's env/flag
// overlay, adapted to merge CLI flags instead of environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
	ethcommon "github.com/ethereum/go-ethereum/common"
)

// Role selects the Session Worker behavior a node runs (spec §6).
type Role string

const (
	RoleAuthority Role = "authority"
	RoleLeader    Role = "leader"
	RoleCommittee Role = "committee"
	RoleSolver    Role = "solver"
	RoleVerifier  Role = "verifier"
)

func (r Role) valid() bool {
	switch r {
	case RoleAuthority, RoleLeader, RoleCommittee, RoleSolver, RoleVerifier:
		return true
	default:
		return false
	}
}

// ChainType selects the signature scheme backing KeyGenerator addresses.
type ChainType string

const ChainEthereum ChainType = "ethereum"

// Config is the resolved, fully-defaulted node configuration.
type Config struct {
	Role      Role      `toml:"role"`
	ChainType ChainType `toml:"chain_type"`

	ExternalRPCURL string `toml:"external_rpc_url"`
	ClusterRPCURL  string `toml:"cluster_rpc_url"`
	InternalRPCURL string `toml:"internal_rpc_url"`

	LeaderClusterRPCURL string `toml:"leader_cluster_rpc_url"`
	SolverRPCURL        string `toml:"solver_rpc_url"`
	AuthorityRPCURL     string `toml:"authority_rpc_url"`

	SessionDurationMs int    `toml:"session_duration_ms"`
	Threshold         int    `toml:"threshold"`
	RoundLookAhead    uint64 `toml:"round_look_ahead"`

	RadiusFoundationAddress string `toml:"radius_foundation_address"`

	DataDir string `toml:"data_dir"`

	Logging LoggingConfig `toml:"logging"`
	Metrics MetricsConfig `toml:"metrics"`
	Health  HealthConfig  `toml:"health"`
}

// LoggingConfig controls the structured logger (internal/logger).
type LoggingConfig struct {
	Level  string `toml:"level"`  // debug, info, warn, error
	Format string `toml:"format"` // json, text
	Output string `toml:"output"` // stdout, stderr, file path
}

// MetricsConfig controls the Prometheus exporter (internal/metrics).
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Listen  string `toml:"listen"`
	Path    string `toml:"path"`
}

// HealthConfig controls the liveness/readiness HTTP server (pkg/health).
type HealthConfig struct {
	Enabled bool   `toml:"enabled"`
	Listen  string `toml:"listen"`
	Path    string `toml:"path"`
}

// SessionDuration returns the configured session length as a time.Duration.
func (c *Config) SessionDuration() time.Duration {
	return time.Duration(c.SessionDurationMs) * time.Millisecond
}

// defaultThresholdFor mirrors spec §6's "default role-dependent" note:
// non-participating roles never aggregate commitments, so the threshold
// is meaningless for them and left at 0.
func defaultThresholdFor(role Role) int {
	switch role {
	case RoleLeader, RoleCommittee:
		return 1
	default:
		return 0
	}
}

func setDefaults(cfg *Config) {
	if cfg.ChainType == "" {
		cfg.ChainType = ChainEthereum
	}
	if cfg.SessionDurationMs == 0 {
		cfg.SessionDurationMs = 500
	}
	if cfg.Threshold == 0 {
		cfg.Threshold = defaultThresholdFor(cfg.Role)
	}
	if cfg.RoundLookAhead == 0 {
		cfg.RoundLookAhead = 1
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "./data"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
	if cfg.Health.Path == "" {
		cfg.Health.Path = "/healthz"
	}
}

// Load decodes path as TOML, applies defaults, merges overlay (CLI flags,
// highest priority), and validates the result. Validation failure is a
// Config-category error per spec §7, fatal at startup.
func Load(path string, overlay ConfigOverlay) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	overlay.ApplyTo(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validate(cfg *Config) error {
	if !cfg.Role.valid() {
		return fmt.Errorf("config: invalid role %q", cfg.Role)
	}
	if cfg.ChainType != ChainEthereum {
		return fmt.Errorf("config: unsupported chain_type %q", cfg.ChainType)
	}
	if cfg.ExternalRPCURL == "" {
		return fmt.Errorf("config: external_rpc_url is required")
	}
	if cfg.ClusterRPCURL == "" {
		return fmt.Errorf("config: cluster_rpc_url is required")
	}
	if cfg.Role != RoleAuthority && cfg.AuthorityRPCURL == "" {
		return fmt.Errorf("config: authority_rpc_url is required for non-authority roles")
	}
	if cfg.Role != RoleAuthority && cfg.RadiusFoundationAddress == "" {
		return fmt.Errorf("config: radius_foundation_address is required for non-authority roles")
	}
	if cfg.RadiusFoundationAddress != "" && !ethcommon.IsHexAddress(cfg.RadiusFoundationAddress) {
		return fmt.Errorf("config: bad radius_foundation_address %q", cfg.RadiusFoundationAddress)
	}
	return nil
}
