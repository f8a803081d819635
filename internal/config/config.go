// File: internal/config/config.go (complete file)

package config

import (
	"fmt"
	"time"
)

type Config struct {
	Agent     AgentConfig     `toml:"agent" yaml:"agent" json:"agent"`
	Discovery DiscoveryConfig `toml:"discovery" yaml:"discovery" json:"discovery"`
	History   HistoryConfig   `toml:"history" yaml:"history" json:"history"`
	Cache     CacheConfig     `toml:"cache" yaml:"cache" json:"cache"`
	Storage   StorageConfig   `toml:"storage" yaml:"storage" json:"storage"`
	Log       LogConfig       `toml:"log" yaml:"log" json:"log"`
}

type AgentConfig struct {
	// Origin is the base URL of the metadata, version and airport endpoints.
	Origin       string   `toml:"origin" yaml:"origin" json:"origin"`
	MetadataPath string   `toml:"metadata_path" yaml:"metadata_path" json:"metadata_path"`
	VersionPath  string   `toml:"version_path" yaml:"version_path" json:"version_path"`
	AirportPath  string   `toml:"airport_path" yaml:"airport_path" json:"airport_path"`
	PollInterval Duration `toml:"poll_interval" yaml:"poll_interval" json:"poll_interval"`
	// Family pins outbound HTTP to "ipv4" or "ipv6"; empty lets the dialer pick.
	Family string `toml:"family" yaml:"family" json:"family"`
	// NetPoll is how often local interfaces are fingerprinted for changes.
	NetPoll Duration `toml:"net_poll" yaml:"net_poll" json:"net_poll"`
}

type DiscoveryConfig struct {
	Gatherer string   `toml:"gatherer" yaml:"gatherer" json:"gatherer"`
	Servers  []string `toml:"servers" yaml:"servers" json:"servers"`
	Timeout  Duration `toml:"timeout" yaml:"timeout" json:"timeout"`
}

type HistoryConfig struct {
	MaxNonFavorites int `toml:"max_non_favorites" yaml:"max_non_favorites" json:"max_non_favorites"`
}

type CacheConfig struct {
	Listen        string   `toml:"listen" yaml:"listen" json:"listen"`
	LRUSize       int      `toml:"lru_size" yaml:"lru_size" json:"lru_size"`
	VersionHeader string   `toml:"version_header" yaml:"version_header" json:"version_header"`
	KeepHeaders   []string `toml:"keep_headers" yaml:"keep_headers" json:"keep_headers"`
}

type StorageConfig struct {
	DataDir string `toml:"data_dir" yaml:"data_dir" json:"data_dir"`
}

type LogConfig struct {
	Level  string `toml:"level" yaml:"level" json:"level"`
	Format string `toml:"format" yaml:"format" json:"format"`
}

const (
	GathererWebRTC = "webrtc"
	GathererSTUN   = "stun"
)

var DefaultReflectionServers = []string{
	"stun:stun.l.google.com:19302",
	"stun:stun1.l.google.com:19302",
	"stun:stun2.l.google.com:19302",
	"stun:stun3.l.google.com:19302",
	"stun:stun4.l.google.com:19302",
}

func DefaultConfig() *Config {
	return &Config{
		Agent: AgentConfig{
			Origin:       "http://127.0.0.1:8787",
			MetadataPath: "/ip-info",
			VersionPath:  "/meta/version",
			AirportPath:  "/airport",
			PollInterval: Duration(15 * time.Second),
			NetPoll:      Duration(2 * time.Second),
		},
		Discovery: DiscoveryConfig{
			Gatherer: GathererWebRTC,
			Servers:  append([]string(nil), DefaultReflectionServers...),
			Timeout:  Duration(10 * time.Second),
		},
		History: HistoryConfig{MaxNonFavorites: 10},
		Cache: CacheConfig{
			Listen:        "127.0.0.1:8788",
			LRUSize:       256,
			VersionHeader: "X-Mlv",
			KeepHeaders:   []string{"X-Mlv", "Content-Type", "Content-Length"},
		},
		Storage: StorageConfig{DataDir: "connscope-data"},
		Log:     LogConfig{Level: "info", Format: "text"},
	}
}

// Duration is a time.Duration that reads and writes "15s" style text in every
// supported file format.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return fmt.Errorf("config: duration %q: %w", string(b), err)
	}
	*d = Duration(v)
	return nil
}
