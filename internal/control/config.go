package control

import (
	"github.com/vietddude/perfguard/internal/classify"
	"github.com/vietddude/perfguard/internal/core/config"
	"github.com/vietddude/perfguard/internal/degradation"
	"github.com/vietddude/perfguard/internal/detection"
	"github.com/vietddude/perfguard/internal/infra/platform"
	redisclient "github.com/vietddude/perfguard/internal/infra/redis"
	"github.com/vietddude/perfguard/internal/infra/storage/postgres"
	"github.com/vietddude/perfguard/internal/recovery"
)

// Config holds the application configuration.
type Config struct {
	Port        int
	Detection   detection.Config
	Classify    classify.Config
	Recovery    recovery.Config
	Degradation degradation.Config
	Pipeline    config.PipelineConfig
	Platform    config.PlatformConfig
	Probes      platform.ProbeConfig
	Redis       redisclient.Config
	Database    postgres.Config
}

// FromAppConfig maps the loaded file configuration onto Config.
func FromAppConfig(cfg *config.AppConfig) Config {
	return Config{
		Port:        cfg.Server.Port,
		Detection:   cfg.Detection,
		Classify:    cfg.Classification,
		Recovery:    cfg.Recovery,
		Degradation: cfg.Degradation,
		Pipeline:    cfg.Pipeline,
		Platform:    cfg.Platform,
		Probes:      cfg.Probes,
		Redis:       cfg.Redis,
		Database:    cfg.Database,
	}
}
