// Package config holds the gateway's static configuration: server
// binding, the route store backend, telemetry bus, and default values
// for the resilience policies. Of the RateLimit, Retry and Breaker
// sections only RateLimit.RedisAddress is read by the gateway wiring;
// the route compiler uses its own built-in defaults and does not read
// the other fields.
package config

import (
	"os"
	"time"

	yaml "github.com/goccy/go-yaml"
)

// Config is the complete process configuration, unmarshaled from YAML.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Proxy     ProxyConfig     `yaml:"proxy"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Retry     RetryConfig     `yaml:"retry"`
	Breaker   BreakerConfig   `yaml:"breaker"`
	Shutdown  ShutdownConfig  `yaml:"shutdown"`
	Logging   LoggingConfig   `yaml:"logging"`
	Cluster   ClusterConfig   `yaml:"cluster"`
}

// ClusterConfig configures the optional cross-instance route-change
// broadcaster. Leaving EtcdEndpoints empty runs the gateway as a
// single instance with no loss of correctness, since each process
// still serves its own store's notification channel.
type ClusterConfig struct {
	EtcdEndpoints []string `yaml:"etcd_endpoints"`
}

// ServerConfig defines the HTTP listener.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// StoreConfig points at the backing route store.
type StoreConfig struct {
	Address      string `yaml:"address"`       // redis address for routes.hash
	RouteKey     string `yaml:"route_key"`     // hash key, default "routes.hash"
	FallbackPath string `yaml:"fallback_path"` // local JSON file of critical routes loaded at startup
}

// TelemetryConfig configures the event publisher.
type TelemetryConfig struct {
	BusURL        string        `yaml:"bus_url"` // e.g. "mem://" in tests, amqp URL in production
	QueueCapacity int           `yaml:"queue_capacity"`
	BatchSize     int           `yaml:"batch_size"`
	BatchInterval time.Duration `yaml:"batch_interval"`
}

// ProxyConfig configures the proxy's default timeouts and transport pool.
type ProxyConfig struct {
	ConnectTimeout      time.Duration `yaml:"connect_timeout"`
	ReadTimeout         time.Duration `yaml:"read_timeout"`
	MaxIdleConns        int           `yaml:"max_idle_conns"`
	MaxIdleConnsPerHost int           `yaml:"max_idle_conns_per_host"`
	IdleConnTimeout     time.Duration `yaml:"idle_conn_timeout"`
}

// RateLimitConfig holds default token-bucket parameters.
type RateLimitConfig struct {
	DefaultReplenish int           `yaml:"default_replenish"`
	DefaultBurst     int           `yaml:"default_burst"`
	DefaultKey       string        `yaml:"default_key"` // "client-ip" | "user" | "path"
	RedisAddress     string        `yaml:"redis_address"`
	BucketTTL        time.Duration `yaml:"bucket_ttl"`
}

// RetryConfig holds default retry parameters.
type RetryConfig struct {
	DefaultRetries  int           `yaml:"default_retries"`
	BaseBackoff     time.Duration `yaml:"base_backoff"`
	Multiplier      float64       `yaml:"multiplier"`
	DefaultStatuses []int         `yaml:"default_statuses"`
	DefaultMethods  []string      `yaml:"default_methods"`
}

// BreakerConfig holds default circuit breaker parameters.
type BreakerConfig struct {
	DefaultName            string        `yaml:"default_name"`
	DefaultThreshold       float64       `yaml:"default_threshold"`
	DefaultWaitDuration    time.Duration `yaml:"default_wait_duration"`
	DefaultWindowSize      int           `yaml:"default_window_size"`
	DefaultMinimumCalls    int           `yaml:"default_minimum_calls"`
	DefaultHalfOpenPermits int           `yaml:"default_half_open_permits"`
}

// ShutdownConfig controls graceful drain.
type ShutdownConfig struct {
	DrainTimeout time.Duration `yaml:"drain_timeout"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Output string `yaml:"output"` // "stdout", "stderr", or a file path
}

// Default returns a Config populated with the gateway's recommended defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         ":8080",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Store: StoreConfig{
			Address:  "localhost:6379",
			RouteKey: "routes.hash",
		},
		Telemetry: TelemetryConfig{
			BusURL:        "mem://gateway-telemetry",
			QueueCapacity: 8192,
			BatchSize:     64,
			BatchInterval: 250 * time.Millisecond,
		},
		Proxy: ProxyConfig{
			ConnectTimeout:      2 * time.Second,
			ReadTimeout:         10 * time.Second,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
		RateLimit: RateLimitConfig{
			DefaultReplenish: 10,
			DefaultBurst:     20,
			DefaultKey:       "client-ip",
			BucketTTL:        10 * time.Minute,
		},
		Retry: RetryConfig{
			DefaultRetries:  3,
			BaseBackoff:     500 * time.Millisecond,
			Multiplier:      2,
			DefaultStatuses: []int{502, 503},
			DefaultMethods:  []string{"GET", "POST", "PUT", "DELETE"},
		},
		Breaker: BreakerConfig{
			DefaultName:            "dynamicRoute",
			DefaultThreshold:       0.6,
			DefaultWaitDuration:    15 * time.Second,
			DefaultWindowSize:      15,
			DefaultMinimumCalls:    5,
			DefaultHalfOpenPermits: 3,
		},
		Shutdown: ShutdownConfig{
			DrainTimeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: "stdout",
		},
	}
}

// Load reads and unmarshals a YAML config file over the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
