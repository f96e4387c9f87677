package config_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dkeye/Prompter/internal/config"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))

	cfg, err := config.Load(nil, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "release", cfg.Mode)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 54*time.Second, cfg.PingPeriod)
	assert.Equal(t, 60*time.Second, cfg.PongWait())
	assert.True(t, cfg.EnforceRoles)
	assert.True(t, cfg.SeedDemo)
	assert.Equal(t, 60, cfg.RateLimit.Messages)
	assert.Equal(t, time.Second, cfg.RateLimit.Interval)
	assert.Equal(t, int64(2<<20), cfg.ReadLimit)
	assert.Equal(t, 1<<20, cfg.MaxMessage)
	assert.Equal(t, "drop", cfg.Backpressure)
	assert.Equal(t, config.DefaultSecret, cfg.Secret)
}

func TestLoad_FileEnvAndFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode: debug
port: 9000
enforce_roles: false
rate_limit:
  messages: 5
  interval: 2s
`), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PROMPTER_MAX_DROPS", "3")
	t.Setenv("PROMPTER_RATE_LIMIT_MESSAGES", "7")

	cfg, err := config.Load(nil, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Mode)
	assert.Equal(t, 9000, cfg.Port)
	assert.False(t, cfg.EnforceRoles)
	assert.Equal(t, 3, cfg.MaxDrops)
	assert.Equal(t, 7, cfg.RateLimit.Messages)
	assert.Equal(t, 2*time.Second, cfg.RateLimit.Interval)

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("port", 8080, "")
	flags.String("mode", "release", "")
	require.NoError(t, flags.Parse([]string{"--port", "7070"}))

	cfg, err = config.Load(flags, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Port)
	assert.Equal(t, "debug", cfg.Mode, "unset flags do not shadow the file")
}

func TestLoad_RejectsBadDurations(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))
	t.Setenv("PROMPTER_PING_PERIOD", "0s")

	_, err := config.Load(nil, zerolog.Nop())
	require.Error(t, err)
}

func TestLoad_WarnsOnDevelopmentSecret(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))
	var buf bytes.Buffer

	_, err := config.Load(nil, zerolog.New(&buf))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "development secret")

	buf.Reset()
	t.Setenv("PROMPTER_SECRET", "real-secret")
	cfg, err := config.Load(nil, zerolog.New(&buf))
	require.NoError(t, err)
	assert.Equal(t, "real-secret", cfg.Secret)
	assert.NotContains(t, buf.String(), "development secret")
}

func TestLoad_RejectsBadLimits(t *testing.T) {
	dir := t.TempDir()
	write := func(body string) {
		path := filepath.Join(dir, "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
		t.Setenv("CONFIG_FILE", path)
	}

	write("read_limit: 1024\nmax_message: 4096\n")
	_, err := config.Load(nil, zerolog.Nop())
	require.Error(t, err)

	write("secret: \"\"\n")
	_, err = config.Load(nil, zerolog.Nop())
	require.Error(t, err)
}
