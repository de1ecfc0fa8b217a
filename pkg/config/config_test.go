package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cuemby/forkful/pkg/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, filepath.Join("./forkful-data", "media"), cfg.MediaPath())
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "forkful.yaml")
	data := `
listen_addr: ":9000"
data_dir: /srv/forkful
media_dir: /srv/media
session_ttl: 2h
log:
  level: debug
  json: true
scale:
  step: 0.25
  floor: 0.25
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.ListenAddr)
	assert.Equal(t, "/srv/media", cfg.MediaPath())
	assert.Equal(t, 2*time.Hour, cfg.SessionTTL)
	assert.Equal(t, log.DebugLevel, cfg.Log.Level)
	assert.True(t, cfg.Log.JSON)
	assert.Equal(t, 0.25, cfg.Scale.Step)
	// untouched keys keep their defaults
	assert.Equal(t, 10.0, cfg.Scale.Max)
	assert.Equal(t, 1024, cfg.Cache.Size)
	require.NoError(t, cfg.Validate())
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen_addr: [oops"), 0600))
	_, err = Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{name: "empty data dir", mutate: func(c *Config) { c.DataDir = "" }, errMsg: "data_dir"},
		{name: "zero step", mutate: func(c *Config) { c.Scale.Step = 0 }, errMsg: "scale.step"},
		{name: "zero floor", mutate: func(c *Config) { c.Scale.Floor = 0 }, errMsg: "scale.floor"},
		{name: "max below floor", mutate: func(c *Config) { c.Scale.Max = 0.25 }, errMsg: "scale.max"},
		{name: "negative rate", mutate: func(c *Config) { c.RateLimit.Burst = -1 }, errMsg: "rate_limit"},
		{name: "no session ttl", mutate: func(c *Config) { c.SessionTTL = 0 }, errMsg: "session_ttl"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestResolveSecret(t *testing.T) {
	cfg := Default()
	cfg.SecretKey = "configured"
	key, err := cfg.ResolveSecret()
	require.NoError(t, err)
	assert.Equal(t, "configured", key)

	cfg = Default()
	cfg.DataDir = t.TempDir()
	first, err := cfg.ResolveSecret()
	require.NoError(t, err)
	assert.Len(t, first, 64)

	info, err := os.Stat(filepath.Join(cfg.DataDir, "secret.key"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	again := Default()
	again.DataDir = cfg.DataDir
	second, err := again.ResolveSecret()
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
