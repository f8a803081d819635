// File: internal/config/config_test.go (complete file)

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoad_DefaultsWhenMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, 15*time.Second, cfg.Agent.PollInterval.Std())
	assert.Equal(t, 10, cfg.History.MaxNonFavorites)
	assert.Len(t, cfg.Discovery.Servers, 5)
}

func TestLoad_TOML(t *testing.T) {
	p := writeFile(t, "c.toml", `
[agent]
origin = "https://example.test"
poll_interval = "30s"

[discovery]
gatherer = "stun"
servers = ["stun.example.test:3478"]

[history]
max_non_favorites = 4
`)
	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "https://example.test", cfg.Agent.Origin)
	assert.Equal(t, 30*time.Second, cfg.Agent.PollInterval.Std())
	assert.Equal(t, GathererSTUN, cfg.Discovery.Gatherer)
	assert.Equal(t, []string{"stun.example.test:3478"}, cfg.Discovery.Servers)
	assert.Equal(t, 4, cfg.History.MaxNonFavorites)
	assert.Equal(t, "/ip-info", cfg.Agent.MetadataPath, "unset keys keep defaults")
}

func TestLoad_YAML(t *testing.T) {
	p := writeFile(t, "c.yaml", `
cache:
  listen: "127.0.0.1:9999"
  lru_size: 16
log:
  level: debug
  format: json
`)
	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9999", cfg.Cache.Listen)
	assert.Equal(t, 16, cfg.Cache.LRUSize)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_JSON(t *testing.T) {
	p := writeFile(t, "c.json", `{"discovery":{"timeout":"3s"},"storage":{"data_dir":"/tmp/x"}}`)
	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, cfg.Discovery.Timeout.Std())
	assert.Equal(t, "/tmp/x", cfg.Storage.DataDir)
}

func TestLoad_Invalid(t *testing.T) {
	p := writeFile(t, "c.toml", `
[discovery]
gatherer = "carrier-pigeon"
`)
	_, err := Load(p)
	assert.ErrorIs(t, err, ErrInvalid)

	p = writeFile(t, "c.toml", `
[agent]
poll_interval = "soon"
`)
	_, err = Load(p)
	assert.Error(t, err)

	p = writeFile(t, "c.ini", "x=1")
	_, err = Load(p)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("CONNSCOPE_ORIGIN", "https://override.test")
	t.Setenv("CONNSCOPE_POLL_INTERVAL", "5s")
	t.Setenv("CONNSCOPE_STUN_SERVERS", "a:1, b:2,,")
	t.Setenv("CONNSCOPE_MAX_NON_FAVORITES", "3")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "https://override.test", cfg.Agent.Origin)
	assert.Equal(t, 5*time.Second, cfg.Agent.PollInterval.Std())
	assert.Equal(t, []string{"a:1", "b:2"}, cfg.Discovery.Servers)
	assert.Equal(t, 3, cfg.History.MaxNonFavorites)
}

func TestValidate_Rejects(t *testing.T) {
	cases := map[string]func(*Config){
		"origin":   func(c *Config) { c.Agent.Origin = "ftp://x" },
		"path":     func(c *Config) { c.Agent.MetadataPath = "ip-info" },
		"family":   func(c *Config) { c.Agent.Family = "ipx" },
		"servers":  func(c *Config) { c.Discovery.Servers = nil },
		"cap":      func(c *Config) { c.History.MaxNonFavorites = 0 },
		"lru":      func(c *Config) { c.Cache.LRUSize = 0 },
		"format":   func(c *Config) { c.Log.Format = "xml" },
		"data dir": func(c *Config) { c.Storage.DataDir = " " },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := DefaultConfig()
			mutate(c)
			assert.ErrorIs(t, c.Validate(), ErrInvalid)
		})
	}
}

func TestURL(t *testing.T) {
	c := DefaultConfig()
	c.Agent.Origin = "https://example.test/"
	assert.Equal(t, "https://example.test/ip-info", c.URL(c.Agent.MetadataPath))
}
