package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "Config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const minimalCommitteeConfig = `
role = "committee"
chain_type = "ethereum"
external_rpc_url = "127.0.0.1:9001"
cluster_rpc_url = "127.0.0.1:9002"
internal_rpc_url = "127.0.0.1:9003"
authority_rpc_url = "127.0.0.1:9100"
radius_foundation_address = "0x1111111111111111111111111111111111111111"
`

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, minimalCommitteeConfig)

	cfg, err := Load(path, ConfigOverlay{})
	require.NoError(t, err)
	require.Equal(t, RoleCommittee, cfg.Role)
	require.Equal(t, 500, cfg.SessionDurationMs)
	require.Equal(t, 1, cfg.Threshold)
	require.EqualValues(t, 1, cfg.RoundLookAhead)
	require.Equal(t, "info", cfg.Logging.Level)
	require.Equal(t, "/metrics", cfg.Metrics.Path)
	require.Equal(t, "/healthz", cfg.Health.Path)
}

func TestLoadRejectsInvalidRole(t *testing.T) {
	path := writeConfig(t, `
role = "spectator"
external_rpc_url = "127.0.0.1:9001"
cluster_rpc_url = "127.0.0.1:9002"
`)
	_, err := Load(path, ConfigOverlay{})
	require.Error(t, err)
}

func TestLoadRequiresAuthorityAddressForNonAuthority(t *testing.T) {
	path := writeConfig(t, `
role = "leader"
external_rpc_url = "127.0.0.1:9001"
cluster_rpc_url = "127.0.0.1:9002"
authority_rpc_url = "127.0.0.1:9100"
`)
	_, err := Load(path, ConfigOverlay{})
	require.ErrorContains(t, err, "radius_foundation_address")
}

func TestLoadAllowsAuthorityRoleWithoutRadiusAddress(t *testing.T) {
	path := writeConfig(t, `
role = "authority"
external_rpc_url = "127.0.0.1:9001"
cluster_rpc_url = "127.0.0.1:9002"
`)
	cfg, err := Load(path, ConfigOverlay{})
	require.NoError(t, err)
	require.Equal(t, RoleAuthority, cfg.Role)
}

func TestOverlayOverridesFileValues(t *testing.T) {
	path := writeConfig(t, minimalCommitteeConfig)

	threshold := 3
	level := "debug"
	cfg, err := Load(path, ConfigOverlay{Threshold: &threshold, LogLevel: &level})
	require.NoError(t, err)
	require.Equal(t, 3, cfg.Threshold)
	require.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadRejectsMalformedAddress(t *testing.T) {
	path := writeConfig(t, `
role = "leader"
external_rpc_url = "127.0.0.1:9001"
cluster_rpc_url = "127.0.0.1:9002"
authority_rpc_url = "127.0.0.1:9100"
radius_foundation_address = "not-an-address"
`)
	_, err := Load(path, ConfigOverlay{})
	require.ErrorContains(t, err, "radius_foundation_address")
}

func TestSessionDurationConversion(t *testing.T) {
	cfg := &Config{SessionDurationMs: 750}
	require.Equal(t, 750_000_000, int(cfg.SessionDuration()))
}
