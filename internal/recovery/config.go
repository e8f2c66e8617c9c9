package recovery

import "time"

// Config holds settings for the recovery engine.
type Config struct {
	// HistorySize caps the execution history (default: 50)
	HistorySize int `yaml:"history_size"`

	// SkipUnrecoverable sends errors whose rule is not recoverable straight
	// to degradation without trying a strategy
	SkipUnrecoverable bool `yaml:"skip_unrecoverable"`

	Breaker BreakerConfig `yaml:"breaker"`
	Retry   RetryConfig   `yaml:"retry"`
}

// BreakerConfig controls the per-strategy circuit breaker.
type BreakerConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxFailures uint32        `yaml:"max_failures"` // Consecutive failures before opening (default: 5)
	OpenTimeout time.Duration `yaml:"open_timeout"` // Time before a half-open probe (default: 30s)
}

// RetryConfig controls the network re-probe used by retry_request.
type RetryConfig struct {
	Attempts  uint          `yaml:"attempts"`   // default: 3
	BaseDelay time.Duration `yaml:"base_delay"` // doubled per attempt (default: 200ms)
	MaxDelay  time.Duration `yaml:"max_delay"`  // default: 2s
}

// DefaultConfig returns the standard recovery settings.
func DefaultConfig() Config {
	return Config{
		HistorySize: 50,
		Breaker: BreakerConfig{
			Enabled:     true,
			MaxFailures: 5,
			OpenTimeout: 30 * time.Second,
		},
		Retry: RetryConfig{
			Attempts:  3,
			BaseDelay: 200 * time.Millisecond,
			MaxDelay:  2 * time.Second,
		},
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.HistorySize <= 0 {
		c.HistorySize = def.HistorySize
	}
	if c.Breaker.MaxFailures == 0 {
		c.Breaker.MaxFailures = def.Breaker.MaxFailures
	}
	if c.Breaker.OpenTimeout <= 0 {
		c.Breaker.OpenTimeout = def.Breaker.OpenTimeout
	}
	if c.Retry.Attempts == 0 {
		c.Retry.Attempts = def.Retry.Attempts
	}
	if c.Retry.BaseDelay <= 0 {
		c.Retry.BaseDelay = def.Retry.BaseDelay
	}
	if c.Retry.MaxDelay <= 0 {
		c.Retry.MaxDelay = def.Retry.MaxDelay
	}
	return c
}
