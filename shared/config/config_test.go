package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.Client.PollInterval)
	assert.Equal(t, 10*time.Second, cfg.Client.QuietThreshold)
	assert.Equal(t, "8086", cfg.Server.PortOr("8086"))
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	path := filepath.Join(dir, "mentorlounge.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[client]
api_url = "http://api.internal:9000"
poll_interval = "2s"
quiet_threshold = "4s"

[server]
port = "9001"
kafka_brokers = "k1:9092, k2:9092,"

[log]
level = "debug"
`), 0o644))

	t.Setenv("QUIET_THRESHOLD", "7s")
	t.Setenv("MENTOR_TOKEN", "tok")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://api.internal:9000", cfg.Client.APIURL)
	assert.Equal(t, 2*time.Second, cfg.Client.PollInterval)
	assert.Equal(t, 7*time.Second, cfg.Client.QuietThreshold)
	assert.Equal(t, "tok", cfg.Client.Token)
	assert.Equal(t, "9001", cfg.Server.PortOr("8086"))
	assert.Equal(t, "k1:9092,k2:9092", cfg.Server.Brokers())
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("MENTOR_FEED_URL=ws://dotenv:1/ws\n"), 0o644))

	prev, had := os.LookupEnv("MENTOR_FEED_URL")
	require.NoError(t, os.Unsetenv("MENTOR_FEED_URL"))
	t.Cleanup(func() {
		if had {
			os.Setenv("MENTOR_FEED_URL", prev)
		} else {
			os.Unsetenv("MENTOR_FEED_URL")
		}
	})

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "ws://dotenv:1/ws", cfg.Client.FeedURL)
}

func TestLoadErrors(t *testing.T) {
	chdir(t, t.TempDir())

	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)

	t.Setenv("POLL_INTERVAL", "soon")
	_, err = Load("")
	require.ErrorContains(t, err, "POLL_INTERVAL")

	t.Setenv("POLL_INTERVAL", "0s")
	_, err = Load("")
	require.ErrorContains(t, err, "poll interval must be positive")
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains: it changes
// the working directory and restores the previous one when the test ends.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
