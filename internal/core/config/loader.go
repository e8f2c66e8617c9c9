package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file. Sections missing from the file
// keep their defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Set defaults if necessary
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}

	def := DefaultPipeline()
	if cfg.Pipeline.RateLimit <= 0 {
		cfg.Pipeline.RateLimit = def.RateLimit
	}
	if cfg.Pipeline.Burst <= 0 {
		cfg.Pipeline.Burst = def.Burst
	}
	if cfg.Pipeline.EventLimit <= 0 {
		cfg.Pipeline.EventLimit = def.EventLimit
	}
	if cfg.Pipeline.PruneInterval <= 0 {
		cfg.Pipeline.PruneInterval = def.PruneInterval
	}

	return &cfg, nil
}
