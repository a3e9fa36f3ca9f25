package sconfig_test

import (
	"log/slog"
	"net/netip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stagehand-audio/stagehand"
	"github.com/stagehand-audio/stagehand/saddr"
	"github.com/stagehand-audio/stagehand/sconfig"
	"github.com/stretchr/testify/require"
)

func TestLoad_missingFileGivesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := sconfig.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	require.Equal(t, sconfig.Default(), cfg)
	require.Equal(t, stagehand.DefaultLivenessTimeout, cfg.LivenessTimeout)
}

func TestLoad_partialFileKeepsDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
identifier: FOH
host: 10.0.0.5:5000
liveness_timeout: 3s
log_level: debug
`), 0o600))

	cfg, err := sconfig.Load(path)
	require.NoError(t, err)
	require.Equal(t, "FOH", cfg.Identifier)
	require.Equal(t, "10.0.0.5:5000", cfg.Host)
	require.Equal(t, 3*time.Second, cfg.LivenessTimeout)
	require.Equal(t, stagehand.DefaultPingInterval, cfg.PingInterval)

	lvl, err := cfg.SlogLevel()
	require.NoError(t, err)
	require.Equal(t, slog.LevelDebug, lvl)
}

func TestLoad_invalid(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("host: [unterminated"), 0o600))
	_, err := sconfig.Load(path)
	require.Error(t, err)

	path = filepath.Join(dir, "invalid.yaml")
	require.NoError(t, os.WriteFile(path, []byte("host: stage-left\nbacklog_limit: -1\n"), 0o600))
	_, err = sconfig.Load(path)
	require.ErrorContains(t, err, "host")
	require.ErrorContains(t, err, "backlog_limit")
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	cfg := sconfig.Default()
	require.NoError(t, cfg.Validate())

	cfg.BindIP = "::1"
	cfg.PollInterval = time.Minute
	cfg.LogLevel = "chatty"

	err := cfg.Validate()
	require.ErrorContains(t, err, "bind_ip")
	require.ErrorContains(t, err, "poll_interval")
	require.ErrorContains(t, err, "log_level")
}

func TestConfig_SaveLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := sconfig.Default()
	cfg.Host = "192.168.1.20:40000"
	cfg.HostIdentifier = "stage"
	cfg.MetricsAddr = "127.0.0.1:9464"
	require.NoError(t, cfg.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	got, err := sconfig.Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg, got)
}

func TestConfig_TransportConfig(t *testing.T) {
	t.Parallel()

	cfg := sconfig.Default()
	cfg.Identifier = "a-very-long-identifier-that-exceeds-the-limit"
	cfg.BindIP = "127.0.0.1"

	tc := cfg.TransportConfig()
	require.Len(t, tc.Identifier, saddr.MaxIdentifierLen)
	require.Equal(t, netip.MustParseAddr("127.0.0.1"), tc.BindIP)
	require.Equal(t, stagehand.DefaultPollInterval, tc.PollInterval)

	require.Equal(t, cfg.BacklogLimit, cfg.ReducerConfig().BacklogLimit)
}
