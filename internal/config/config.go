// Package config defines the core's YAML-backed configuration, trimmed
// from the teacher's pkg/config/config.go per-concern sub-struct shape
// (ServerConfig, WebSocketConfig, ...) down to what this core actually
// configures.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// ServerConfig controls the listen address and operator HTTP surface.
type ServerConfig struct {
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
}

// WebSocketConfig controls the transport layer.
type WebSocketConfig struct {
	CompressionLevel int `yaml:"compression_level"`
	QueueDepth       int `yaml:"queue_depth"`
}

// IngestConfig controls the batcher and snapshot cadence.
type IngestConfig struct {
	BatcherCapacity     int           `yaml:"batcher_capacity"`
	SnapshotInterval    time.Duration `yaml:"snapshot_interval"`
	SnapshotFetchTimeout time.Duration `yaml:"snapshot_fetch_timeout"`
	InactivityExitSecs  int           `yaml:"inactivity_exit_secs"`
}

// FanoutConfig controls per-client limits.
type FanoutConfig struct {
	WorkerPoolSize   int     `yaml:"worker_pool_size"`
	SubscribeRPS     float64 `yaml:"subscribe_rps"`
}

// Config is the root configuration object, loaded from YAML and
// overridable by CLI flags bound in cmd/marketfeed.
type Config struct {
	Server  ServerConfig    `yaml:"server"`
	WS      WebSocketConfig `yaml:"websocket"`
	Ingest  IngestConfig    `yaml:"ingest"`
	Fanout  FanoutConfig    `yaml:"fanout"`
}

// Default returns the configuration with every spec-documented default
// applied: snapshot cadence (T_snap=10s), fetch timeout (5s) and
// inactivity exit (T_idle=5s) follow spec §4.5/§6; the listen address
// defaults to 0.0.0.0:8080, compression level to 1 and queue depth to
// 1024.
func Default() Config {
	return Config{
		Server: ServerConfig{Address: "0.0.0.0", Port: 8080},
		WS:     WebSocketConfig{CompressionLevel: 1, QueueDepth: 1024},
		Ingest: IngestConfig{
			BatcherCapacity:      64,
			SnapshotInterval:     10 * time.Second,
			SnapshotFetchTimeout: 5 * time.Second,
			InactivityExitSecs:   5,
		},
		Fanout: FanoutConfig{WorkerPoolSize: 32, SubscribeRPS: 20},
	}
}

// Load reads and merges a YAML config file over the defaults. A missing
// file is not an error; the defaults are used as-is, matching a
// first-run/no-config-file deployment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
