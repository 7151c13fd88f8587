package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"

	"github.com/GriffinCanCode/AgentOS/ipc/internal/domain/ipc/message"
	"github.com/GriffinCanCode/AgentOS/ipc/internal/infrastructure/logging"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server" json:"server"`
	IPC       IPCConfig       `yaml:"ipc" toml:"ipc" json:"ipc"`
	Analyzer  AnalyzerConfig  `yaml:"analyzer" toml:"analyzer" json:"analyzer"`
	Logging   LogConfig       `yaml:"logging" toml:"logging" json:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit" toml:"rate_limit" json:"rate_limit"`
	Bench     BenchConfig     `yaml:"bench" toml:"bench" json:"bench"`
}

// ServerConfig holds introspection HTTP server configuration.
type ServerConfig struct {
	Port            string `envconfig:"PORT" yaml:"port" toml:"port" json:"port"`
	Host            string `envconfig:"HOST" yaml:"host" toml:"host" json:"host"`
	ShutdownSeconds int    `envconfig:"SHUTDOWN_SECONDS" yaml:"shutdown_seconds" toml:"shutdown_seconds" json:"shutdown_seconds"`
}

// IPCConfig holds IPC service configuration.
type IPCConfig struct {
	DefaultCapacity       int    `envconfig:"IPC_DEFAULT_CAPACITY" yaml:"default_capacity" toml:"default_capacity" json:"default_capacity"`
	DefaultTransport      string `envconfig:"IPC_DEFAULT_TRANSPORT" yaml:"default_transport" toml:"default_transport" json:"default_transport"`
	BatchThreshold        int    `envconfig:"IPC_BATCH_THRESHOLD" yaml:"batch_threshold" toml:"batch_threshold" json:"batch_threshold"`
	RegionBytesPerMessage int    `envconfig:"IPC_REGION_BYTES_PER_MESSAGE" yaml:"region_bytes_per_message" toml:"region_bytes_per_message" json:"region_bytes_per_message"`
	PoolBlockSize         int    `envconfig:"IPC_POOL_BLOCK_SIZE" yaml:"pool_block_size" toml:"pool_block_size" json:"pool_block_size"`
	MemoryLimitBytes      int64  `envconfig:"IPC_MEMORY_LIMIT_BYTES" yaml:"memory_limit_bytes" toml:"memory_limit_bytes" json:"memory_limit_bytes"`
	ZeroCopyEnabled       bool   `envconfig:"IPC_ZERO_COPY" yaml:"zero_copy" toml:"zero_copy" json:"zero_copy"`
	BatchOptimization     bool   `envconfig:"IPC_BATCH_OPTIMIZATION" yaml:"batch_optimization" toml:"batch_optimization" json:"batch_optimization"`
}

// Transport returns the parsed default transport.
func (c IPCConfig) Transport() (message.Transport, error) {
	return message.ParseTransport(c.DefaultTransport)
}

// AnalyzerConfig holds performance analyzer configuration.
type AnalyzerConfig struct {
	MaxSamples int `envconfig:"ANALYZER_MAX_SAMPLES" yaml:"max_samples" toml:"max_samples" json:"max_samples"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" yaml:"level" toml:"level" json:"level"`
	Development bool   `envconfig:"LOG_DEV" yaml:"development" toml:"development" json:"development"`
}

// Logger converts the section to a logging configuration.
func (c LogConfig) Logger() logging.Config {
	cfg := logging.DefaultConfig()
	if c.Development {
		cfg = logging.DevelopmentConfig()
	}
	if c.Level != "" {
		cfg.Level = c.Level
	}
	return cfg
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" yaml:"requests_per_second" toml:"requests_per_second" json:"requests_per_second"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" yaml:"burst" toml:"burst" json:"burst"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" yaml:"enabled" toml:"enabled" json:"enabled"`
}

// BenchConfig holds workload driver configuration.
type BenchConfig struct {
	Messages       int      `envconfig:"BENCH_MESSAGES" yaml:"messages" toml:"messages" json:"messages"`
	PayloadSize    int      `envconfig:"BENCH_PAYLOAD_SIZE" yaml:"payload_size" toml:"payload_size" json:"payload_size"`
	BatchSize      int      `envconfig:"BENCH_BATCH_SIZE" yaml:"batch_size" toml:"batch_size" json:"batch_size"`
	RatePerSecond  int      `envconfig:"BENCH_RATE" yaml:"rate_per_second" toml:"rate_per_second" json:"rate_per_second"`
	Transports     []string `envconfig:"BENCH_TRANSPORTS" yaml:"transports" toml:"transports" json:"transports"`
	ChannelTimeout int      `envconfig:"BENCH_RECEIVE_TIMEOUT_MS" yaml:"receive_timeout_ms" toml:"receive_timeout_ms" json:"receive_timeout_ms"`
}

// Load loads configuration from environment variables on top of Default.
// Only variables that are set override a value.
func Load() (*Config, error) {
	cfg := Default()
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// LoadFile reads a YAML or TOML file on top of Default, then applies
// environment overrides. The format is chosen by extension.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse yaml config %s: %w", path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse toml config %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q", ext)
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// Validate checks that every section holds usable values.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port == "" {
		errs = append(errs, errors.New("server.port is required"))
	}
	if err := c.IPC.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Analyzer.MaxSamples <= 0 {
		errs = append(errs, fmt.Errorf("analyzer.max_samples must be positive, got %d", c.Analyzer.MaxSamples))
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging.level: %w", err))
	}
	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0) {
		errs = append(errs, errors.New("rate_limit requires positive requests_per_second and burst"))
	}
	if c.Bench.Messages < 0 || c.Bench.PayloadSize < 0 || c.Bench.BatchSize < 0 || c.Bench.RatePerSecond < 0 {
		errs = append(errs, errors.New("bench values must not be negative"))
	}
	for _, name := range c.Bench.Transports {
		if _, err := message.ParseTransport(name); err != nil {
			errs = append(errs, fmt.Errorf("bench.transports: %w", err))
		}
	}

	return errors.Join(errs...)
}

// Validate checks the IPC section.
func (c IPCConfig) Validate() error {
	var errs []error

	if c.DefaultCapacity <= 0 {
		errs = append(errs, fmt.Errorf("ipc.default_capacity must be positive, got %d", c.DefaultCapacity))
	}
	if c.BatchThreshold <= 0 {
		errs = append(errs, fmt.Errorf("ipc.batch_threshold must be positive, got %d", c.BatchThreshold))
	}
	if c.RegionBytesPerMessage <= 0 {
		errs = append(errs, fmt.Errorf("ipc.region_bytes_per_message must be positive, got %d", c.RegionBytesPerMessage))
	}
	if c.PoolBlockSize <= 0 {
		errs = append(errs, fmt.Errorf("ipc.pool_block_size must be positive, got %d", c.PoolBlockSize))
	}
	if c.MemoryLimitBytes < 0 {
		errs = append(errs, fmt.Errorf("ipc.memory_limit_bytes must not be negative, got %d", c.MemoryLimitBytes))
	}
	if t, err := c.Transport(); err != nil {
		errs = append(errs, fmt.Errorf("ipc.default_transport: %w", err))
	} else if !t.Implemented() {
		errs = append(errs, fmt.Errorf("ipc.default_transport %s has no implementation", t))
	}

	return errors.Join(errs...)
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8090",
			Host:            "127.0.0.1",
			ShutdownSeconds: 10,
		},
		IPC: DefaultIPC(),
		Analyzer: AnalyzerConfig{
			MaxSamples: 1000,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
		Bench: BenchConfig{
			Messages:       10000,
			PayloadSize:    128,
			BatchSize:      16,
			RatePerSecond:  0,
			Transports:     []string{"ordered_queue", "lock_free_queue", "shared_memory", "memory_pool"},
			ChannelTimeout: 100,
		},
	}
}

// DefaultIPC returns the default IPC section.
func DefaultIPC() IPCConfig {
	return IPCConfig{
		DefaultCapacity:       1024,
		DefaultTransport:      message.TransportLockFreeQueue.String(),
		BatchThreshold:        4,
		RegionBytesPerMessage: 1024,
		PoolBlockSize:         256,
		MemoryLimitBytes:      0,
		ZeroCopyEnabled:       true,
		BatchOptimization:     true,
	}
}
