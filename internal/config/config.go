// Package config loads daemon configuration from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all syncd configuration.
type Config struct {
	DataDir              string `envconfig:"SYNCD_DATA_DIR" default:"./data"`
	APIAddr              string `envconfig:"SYNCD_API_ADDR" default:"localhost:8090"`
	RemoteBaseURL        string `envconfig:"SYNCD_REMOTE_BASE_URL" default:"http://localhost:8080"`
	LogLevel             string `envconfig:"SYNCD_LOG_LEVEL" default:"info"`
	AutoSyncIntervalSec  int    `envconfig:"SYNCD_AUTO_SYNC_INTERVAL_SEC" default:"60"`
	ProbeIntervalSec     int    `envconfig:"SYNCD_PROBE_INTERVAL_SEC" default:"15"`
	MaxRetries           int    `envconfig:"SYNCD_MAX_RETRIES" default:"3"`
	ConflictThresholdSec int    `envconfig:"SYNCD_CONFLICT_THRESHOLD_SEC" default:"120"`
	DefaultStrategy      string `envconfig:"SYNCD_DEFAULT_STRATEGY" default:"server"`
	CacheMaxAgeSec       int    `envconfig:"SYNCD_CACHE_MAX_AGE_SEC" default:"300"`
	TypePriority         string `envconfig:"SYNCD_TYPE_PRIORITY" default:"campaign,filter"`
	RequestTimeoutSec    int    `envconfig:"SYNCD_REQUEST_TIMEOUT_SEC" default:"30"`
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if cfg.MaxRetries < 1 {
		return nil, fmt.Errorf("SYNCD_MAX_RETRIES must be >= 1, got %d", cfg.MaxRetries)
	}
	switch cfg.DefaultStrategy {
	case "local", "server", "merge":
	default:
		return nil, fmt.Errorf("SYNCD_DEFAULT_STRATEGY must be local, server or merge, got %q", cfg.DefaultStrategy)
	}

	return &cfg, nil
}

// AutoSyncInterval returns the auto-sync interval as a duration.
func (c *Config) AutoSyncInterval() time.Duration {
	return time.Duration(c.AutoSyncIntervalSec) * time.Second
}

// ProbeInterval returns the connectivity probe interval as a duration.
func (c *Config) ProbeInterval() time.Duration {
	return time.Duration(c.ProbeIntervalSec) * time.Second
}

// ConflictThreshold returns the auto-resolve time distance threshold.
func (c *Config) ConflictThreshold() time.Duration {
	return time.Duration(c.ConflictThresholdSec) * time.Second
}

// CacheMaxAge returns the network-first cache max age.
func (c *Config) CacheMaxAge() time.Duration {
	return time.Duration(c.CacheMaxAgeSec) * time.Second
}

// RequestTimeout returns the per-request transport timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSec) * time.Second
}

// TypePriorityList returns the entity type priority list, highest first.
func (c *Config) TypePriorityList() []string {
	var out []string
	for _, part := range strings.Split(c.TypePriority, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
