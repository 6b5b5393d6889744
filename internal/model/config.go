package model

import (
	"os"
	"path/filepath"
	"time"

	"github.com/ppiankov/factordb"
)

// Config holds the complete factordb CLI configuration
type Config struct {
	Endpoint     string             `yaml:"endpoint" mapstructure:"endpoint"`
	HTTP         HTTPConfig         `yaml:"http" mapstructure:"http"`
	Cache        CacheConfig        `yaml:"cache" mapstructure:"cache"`
	Concurrency  ConcurrencyConfig  `yaml:"concurrency" mapstructure:"concurrency"`
	RateLimiting RateLimitingConfig `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	Robots       RobotsConfig       `yaml:"robots" mapstructure:"robots"`
	Output       OutputConfig       `yaml:"output" mapstructure:"output"`
}

// HTTPConfig controls the transport used to reach FactorDB
type HTTPConfig struct {
	Timeout      time.Duration `yaml:"timeout" mapstructure:"timeout"`           // 0 means no client-side timeout
	UserAgent    string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	HTTPProxy    string        `yaml:"http_proxy" mapstructure:"http_proxy"`
	HTTPSProxy   string        `yaml:"https_proxy" mapstructure:"https_proxy"`
	NoProxy      string        `yaml:"no_proxy" mapstructure:"no_proxy"`
}

// CacheConfig controls the local result cache
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// ConcurrencyConfig controls batch parallelism
type ConcurrencyConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// RateLimitingConfig bounds the request rate against one host
type RateLimitingConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size"`
}

// RobotsConfig controls robots.txt handling in batch mode
type RobotsConfig struct {
	Respect bool          `yaml:"respect" mapstructure:"respect"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// OutputConfig controls rendering
type OutputConfig struct {
	Verbose bool `yaml:"verbose" mapstructure:"verbose"`
}

// DefaultUserAgent identifies the CLI to FactorDB
const DefaultUserAgent = "factordb-go/0.1 (+https://github.com/ppiankov/factordb)"

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Endpoint: factordb.DefaultEndpoint,
		HTTP: HTTPConfig{
			Timeout:      30 * time.Second,
			UserAgent:    DefaultUserAgent,
			MaxBodyBytes: factordb.DefaultMaxBodyBytes,
		},
		Cache: CacheConfig{
			Enabled:   false,
			Dir:       DefaultCacheDir(),
			MemoryTTL: 10 * time.Minute,
			DiskTTL:   7 * 24 * time.Hour,
		},
		Concurrency: ConcurrencyConfig{
			Workers: 4,
		},
		RateLimiting: RateLimitingConfig{
			RequestsPerSecond: 2,
			BurstSize:         2,
		},
		Robots: RobotsConfig{
			Respect: false,
			Timeout: 10 * time.Second,
		},
	}
}

// DefaultCacheDir returns the per-user cache directory, or a temp dir fallback
func DefaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "factordb")
	}
	return filepath.Join(os.TempDir(), "factordb-cache")
}
