package config

import (
	"time"

	"github.com/vietddude/perfguard/internal/classify"
	"github.com/vietddude/perfguard/internal/degradation"
	"github.com/vietddude/perfguard/internal/detection"
	redisclient "github.com/vietddude/perfguard/internal/infra/redis"
	"github.com/vietddude/perfguard/internal/infra/platform"
	"github.com/vietddude/perfguard/internal/infra/storage/postgres"
	"github.com/vietddude/perfguard/internal/recovery"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server         ServerConfig         `yaml:"server"`
	Logging        LoggingConfig        `yaml:"logging"`
	Detection      detection.Config     `yaml:"detection"`
	Classification classify.Config      `yaml:"classification"`
	Recovery       recovery.Config      `yaml:"recovery"`
	Degradation    degradation.Config   `yaml:"degradation"`
	Pipeline       PipelineConfig       `yaml:"pipeline"`
	Platform       PlatformConfig       `yaml:"platform"`
	Probes         platform.ProbeConfig `yaml:"probes"`
	Redis          redisclient.Config   `yaml:"redis"`
	Database       postgres.Config      `yaml:"database"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// PipelineConfig bounds how many detected errors are handled.
type PipelineConfig struct {
	RateLimit float64 `yaml:"rate_limit"` // Errors handled per second (default: 20)
	Burst     int     `yaml:"burst"`      // default: 50
	// EventLimit caps the in-memory and postgres event logs (default: 1000)
	EventLimit int `yaml:"event_limit"`
	// PruneInterval is how often the postgres event log is trimmed (default: 1m)
	PruneInterval time.Duration `yaml:"prune_interval"`
}

// PlatformConfig holds settings for the runtime adapters.
type PlatformConfig struct {
	FrameTarget time.Duration `yaml:"frame_target"` // Frame loop period (default: 16ms)
	MemoryLimit uint64        `yaml:"memory_limit"` // Heap budget in bytes, 0 = GOMEMLIMIT
}

// Default returns a configuration with every section at its defaults.
func Default() AppConfig {
	return AppConfig{
		Server:         ServerConfig{Port: 8080},
		Logging:        LoggingConfig{Level: "info", Format: "text"},
		Detection:      detection.DefaultConfig(),
		Classification: classify.DefaultConfig(),
		Recovery:       recovery.DefaultConfig(),
		Degradation:    degradation.DefaultConfig(),
		Pipeline:       DefaultPipeline(),
		Platform:       PlatformConfig{FrameTarget: 16 * time.Millisecond},
		Probes:         platform.DefaultProbeConfig(),
	}
}

// DefaultPipeline returns the standard pipeline limits.
func DefaultPipeline() PipelineConfig {
	return PipelineConfig{
		RateLimit:     20,
		Burst:         50,
		EventLimit:    1000,
		PruneInterval: time.Minute,
	}
}
