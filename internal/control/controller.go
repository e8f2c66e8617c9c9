package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/vietddude/perfguard/internal/core/worker"
	"github.com/vietddude/perfguard/internal/detection"
	"github.com/vietddude/perfguard/internal/health"
	"github.com/vietddude/perfguard/internal/infra/platform"
	redisclient "github.com/vietddude/perfguard/internal/infra/redis"
	"github.com/vietddude/perfguard/internal/infra/storage"
	"github.com/vietddude/perfguard/internal/infra/storage/memory"
	"github.com/vietddude/perfguard/internal/infra/storage/postgres"
	"github.com/vietddude/perfguard/internal/metrics"
	"github.com/vietddude/perfguard/internal/recovery"
)

const defaultFrameTarget = 16 * time.Millisecond

// Recorders are the timing sinks a host feeds for the sampled detectors.
type Recorders struct {
	Render   *platform.Recorder
	Network  *platform.Recorder
	Script   *platform.Recorder
	Resource *platform.Recorder
}

// Controller is the main application struct that owns storage, runtime
// adapters, the pipeline and the health server.
type Controller struct {
	cfg          Config
	system       *System
	healthServer *health.Server
	prober       *platform.Prober
	frames       *platform.FrameTimer
	recorders    Recorders
	pruner       *worker.Pruner
	events       storage.EventLog
	registry     *prometheus.Registry
	log          *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewController creates a new Controller with all dependencies initialized.
func NewController(ctx context.Context, cfg Config) (*Controller, error) {
	log := slog.Default()

	// 1. Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics(reg)

	// 2. Storage
	events, levels, pruner, err := openStorage(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	// 3. Runtime adapters
	recorders := Recorders{
		Render:   platform.NewRecorder(),
		Network:  platform.NewRecorder(),
		Script:   platform.NewRecorder(),
		Resource: platform.NewRecorder(),
	}
	frames := platform.NewFrameTimer()
	prober := platform.NewProber(cfg.Probes, recorders.Network, m, log)

	hooks := recovery.Hooks{CollectGarbage: platform.CollectGarbage}
	if cfg.Probes.Enabled() {
		hooks.ProbeNetwork = prober.ProbeOnce
	}

	// 4. Pipeline
	system := NewSystem(cfg, Deps{
		Sources: detection.Sources{
			Frame:     frames,
			Heap:      platform.RuntimeHeap{Limit: cfg.Platform.MemoryLimit},
			Rendering: recorders.Render,
			Network:   recorders.Network,
			Script:    recorders.Script,
			Resource:  recorders.Resource,
		},
		Hooks:   hooks,
		Events:  events,
		Levels:  levels,
		Metrics: m,
		Log:     log,
	})

	return &Controller{
		cfg:          cfg,
		system:       system,
		healthServer: health.NewServer(system, cfg.Port, reg, log),
		prober:       prober,
		frames:       frames,
		recorders:    recorders,
		pruner:       pruner,
		events:       events,
		registry:     reg,
		log:          log,
	}, nil
}

// openStorage selects the event log: postgres when a database URL is set,
// then redis, then memory.
func openStorage(ctx context.Context, cfg Config, log *slog.Logger) (storage.EventLog, storage.LevelStore, *worker.Pruner, error) {
	if cfg.Database.URL != "" {
		db, err := postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to init db: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, nil, nil, err
		}
		repo := postgres.NewEventRepo(db)
		pruner := worker.NewPruner(repo, cfg.Pipeline.EventLimit, cfg.Pipeline.PruneInterval, log)
		log.Info("Using PostgreSQL storage")
		return repo, repo, pruner, nil
	}

	if cfg.Redis.URL != "" {
		redisCfg := cfg.Redis
		if redisCfg.Limit == 0 {
			redisCfg.Limit = cfg.Pipeline.EventLimit
		}
		client, err := redisclient.NewClient(redisCfg)
		if err == nil {
			log.Info("Using Redis storage", "prefix", redisCfg.Prefix)
			return client, client, nil, nil
		}
		log.Warn("Failed to connect to Redis, falling back to memory", "error", err)
	}

	store := memory.NewEventLog(cfg.Pipeline.EventLimit)
	log.Info("Using Memory storage")
	return store, store, nil, nil
}

// Start starts the controller and all its components.
func (c *Controller) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()

	// Start Health Server
	go func() {
		if err := c.healthServer.Start(); err != nil {
			c.log.Error("Health server failed", "error", err)
		}
	}()

	target := c.cfg.Platform.FrameTarget
	if target <= 0 {
		target = defaultFrameTarget
	}
	c.spawn(func() { c.frames.Run(runCtx, target, nil) })
	c.spawn(func() { c.prober.Run(runCtx) })
	if c.pruner != nil {
		c.spawn(func() { c.pruner.Start(runCtx) })
	}

	if err := c.system.Start(runCtx); err != nil {
		cancel()
		c.wg.Wait()
		return err
	}
	return nil
}

func (c *Controller) spawn(fn func()) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		fn()
	}()
}

// Stop stops the controller.
func (c *Controller) Stop(ctx context.Context) error {
	c.log.Info("Stopping controller...")

	var errs []error
	if err := c.system.Stop(ctx); err != nil {
		errs = append(errs, err)
	}

	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	c.wg.Wait()

	if err := c.prober.Close(); err != nil {
		c.log.Warn("Failed to close prober", "error", err)
	}
	if err := c.events.Close(); err != nil {
		c.log.Warn("Failed to close event log", "error", err)
	}

	// Stop Health Server
	if err := c.healthServer.Stop(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// System returns the pipeline.
func (c *Controller) System() *System { return c.system }

// Recorders returns the timing sinks for the sampled detectors.
func (c *Controller) Recorders() Recorders { return c.recorders }

// Frames returns the frame timer. Hosts with their own loop call Tick.
func (c *Controller) Frames() *platform.FrameTimer { return c.frames }

// Gatherer returns the metrics registry.
func (c *Controller) Gatherer() prometheus.Gatherer { return c.registry }
