package detection

import (
	"time"

	"github.com/vietddude/perfguard/internal/core/domain"
)

// Config holds settings for the detector registry.
type Config struct {
	// Interval is the polling cadence (default: 1s)
	Interval time.Duration `yaml:"interval"`

	// Baseline measurement
	BaselineSamples    int           `yaml:"baseline_samples"`    // Synthetic task timings (default: 10)
	BaselineSpacing    time.Duration `yaml:"baseline_spacing"`    // Pause between timings (default: 100ms)
	BaselineIterations int           `yaml:"baseline_iterations"` // Work units per timing (default: 1000)

	// Thresholds overrides the starting thresholds per domain
	Thresholds domain.Thresholds `yaml:"thresholds"`

	// FrameWindow is how many fps samples the frame detector keeps (default: 60)
	FrameWindow int `yaml:"frame_window"`
}

// DefaultConfig returns the standard detection settings.
func DefaultConfig() Config {
	return Config{
		Interval:           time.Second,
		BaselineSamples:    10,
		BaselineSpacing:    100 * time.Millisecond,
		BaselineIterations: 1000,
		Thresholds:         domain.DefaultThresholds(),
		FrameWindow:        60,
	}
}

// withDefaults fills zero fields from DefaultConfig and merges threshold
// overrides on top of the default table.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Interval <= 0 {
		c.Interval = def.Interval
	}
	if c.BaselineSamples <= 0 {
		c.BaselineSamples = def.BaselineSamples
	}
	if c.BaselineSpacing < 0 {
		c.BaselineSpacing = def.BaselineSpacing
	}
	if c.BaselineIterations <= 0 {
		c.BaselineIterations = def.BaselineIterations
	}
	if c.FrameWindow <= 0 {
		c.FrameWindow = def.FrameWindow
	}

	merged := def.Thresholds
	for d, th := range c.Thresholds {
		merged[d] = th
	}
	c.Thresholds = merged
	return c
}
