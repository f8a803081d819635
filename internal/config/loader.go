// File: internal/config/loader.go (complete file)

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

var ErrInvalid = errors.New("config: invalid")

// Load reads path (by extension), applies CONNSCOPE_* overrides and validates.
// An empty path or a missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg, err := loadFile(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("decode TOML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decode JSON: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decode YAML: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: unsupported config extension %q", ErrInvalid, filepath.Ext(path))
	}
	return cfg, nil
}

func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("CONNSCOPE_ORIGIN"); v != "" {
		c.Agent.Origin = v
	}
	if v := os.Getenv("CONNSCOPE_POLL_INTERVAL"); v != "" {
		var d Duration
		if d.UnmarshalText([]byte(v)) == nil {
			c.Agent.PollInterval = d
		}
	}
	if v := os.Getenv("CONNSCOPE_FAMILY"); v != "" {
		c.Agent.Family = v
	}
	if v := os.Getenv("CONNSCOPE_GATHERER"); v != "" {
		c.Discovery.Gatherer = v
	}
	if v := os.Getenv("CONNSCOPE_STUN_SERVERS"); v != "" {
		c.Discovery.Servers = SplitCSV(v)
	}
	if v := os.Getenv("CONNSCOPE_MAX_NON_FAVORITES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.History.MaxNonFavorites = n
		}
	}
	if v := os.Getenv("CONNSCOPE_CACHE_LISTEN"); v != "" {
		c.Cache.Listen = v
	}
	if v := os.Getenv("CONNSCOPE_DATA_DIR"); v != "" {
		c.Storage.DataDir = v
	}
	if v := os.Getenv("CONNSCOPE_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("CONNSCOPE_LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
}

func (c *Config) Validate() error {
	u, err := url.Parse(c.Agent.Origin)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: agent.origin %q must be an http(s) URL", ErrInvalid, c.Agent.Origin)
	}
	for name, p := range map[string]string{
		"agent.metadata_path": c.Agent.MetadataPath,
		"agent.version_path":  c.Agent.VersionPath,
		"agent.airport_path":  c.Agent.AirportPath,
	} {
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("%w: %s %q must start with /", ErrInvalid, name, p)
		}
	}
	if c.Agent.PollInterval.Std() <= 0 {
		return fmt.Errorf("%w: agent.poll_interval must be positive", ErrInvalid)
	}
	if c.Agent.NetPoll.Std() <= 0 {
		return fmt.Errorf("%w: agent.net_poll must be positive", ErrInvalid)
	}
	switch strings.ToLower(c.Agent.Family) {
	case "", "ipv4", "ipv6":
	default:
		return fmt.Errorf("%w: agent.family %q (want ipv4|ipv6)", ErrInvalid, c.Agent.Family)
	}
	switch c.Discovery.Gatherer {
	case GathererWebRTC, GathererSTUN:
	default:
		return fmt.Errorf("%w: discovery.gatherer %q (want webrtc|stun)", ErrInvalid, c.Discovery.Gatherer)
	}
	if len(c.Discovery.Servers) == 0 {
		return fmt.Errorf("%w: discovery.servers is empty", ErrInvalid)
	}
	if c.Discovery.Timeout.Std() <= 0 {
		return fmt.Errorf("%w: discovery.timeout must be positive", ErrInvalid)
	}
	if c.History.MaxNonFavorites < 1 {
		return fmt.Errorf("%w: history.max_non_favorites must be at least 1", ErrInvalid)
	}
	if c.Cache.LRUSize < 1 {
		return fmt.Errorf("%w: cache.lru_size must be at least 1", ErrInvalid)
	}
	if strings.TrimSpace(c.Cache.VersionHeader) == "" {
		return fmt.Errorf("%w: cache.version_header is empty", ErrInvalid)
	}
	if strings.TrimSpace(c.Storage.DataDir) == "" {
		return fmt.Errorf("%w: storage.data_dir is empty", ErrInvalid)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log.format %q (want text|json)", ErrInvalid, c.Log.Format)
	}
	return nil
}

// URL joins the origin with an endpoint path.
func (c *Config) URL(path string) string {
	return strings.TrimRight(c.Agent.Origin, "/") + path
}

func SplitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
