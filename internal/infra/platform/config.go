package platform

import "time"

// ProbeConfig configures background latency probes.
type ProbeConfig struct {
	Interval time.Duration `yaml:"interval"` // Time between probe rounds (default: 5s)
	Timeout  time.Duration `yaml:"timeout"`  // Per-probe timeout (default: 3s)
	HTTP     []string      `yaml:"http"`     // URLs probed with GET
	GRPC     []string      `yaml:"grpc"`     // host:port targets probed with grpc.health.v1
}

// DefaultProbeConfig returns probe defaults with no targets.
func DefaultProbeConfig() ProbeConfig {
	return ProbeConfig{
		Interval: 5 * time.Second,
		Timeout:  3 * time.Second,
	}
}

// Enabled reports whether any target is configured.
func (c ProbeConfig) Enabled() bool {
	return len(c.HTTP) > 0 || len(c.GRPC) > 0
}

func (c ProbeConfig) withDefaults() ProbeConfig {
	def := DefaultProbeConfig()
	if c.Interval <= 0 {
		c.Interval = def.Interval
	}
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	return c
}
