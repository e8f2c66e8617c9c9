package detection

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vietddude/perfguard/internal/core/domain"
	"github.com/vietddude/perfguard/internal/metrics"
)

// Consumer receives every enriched event, in registration order.
type Consumer func(ctx context.Context, e domain.EnrichedError) error

// CycleHook runs on the monitoring goroutine after every detection cycle.
type CycleHook func(ctx context.Context)

// Status is the registry's diagnostic snapshot.
type Status struct {
	Monitoring bool                                    `json:"monitoring"`
	Baseline   *domain.Baseline                        `json:"baseline,omitempty"`
	Detectors  map[domain.Domain]domain.DetectorStatus `json:"detectors"`
	Thresholds domain.Thresholds                       `json:"thresholds"`
	Cycles     uint64                                  `json:"cycles"`
	Failures   uint64                                  `json:"failures"`
}

// Registry owns the domain detectors, runs the polling loop and fans
// detected events out to consumers.
type Registry struct {
	cfg     Config
	sources Sources
	task    BaselineTask
	metrics *metrics.Metrics
	log     *slog.Logger

	mu          sync.RWMutex
	detectors   map[domain.Domain]Detector
	order       []domain.Domain
	thresholds  domain.Thresholds
	baseline    *domain.Baseline
	consumers   []Consumer
	hooks       []CycleHook
	lastSeen    map[domain.Domain]time.Time
	relayed     map[domain.Domain]bool
	initialized bool

	monitoring atomic.Bool
	cycles     atomic.Uint64
	failures   atomic.Uint64
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewRegistry creates a registry. Detectors for domains not added with
// Register are built from sources during Initialize.
func NewRegistry(cfg Config, sources Sources, m *metrics.Metrics, log *slog.Logger) *Registry {
	cfg = cfg.withDefaults()
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		cfg:        cfg,
		sources:    sources,
		task:       syntheticTask(cfg.BaselineIterations),
		metrics:    m,
		log:        log.With("component", "detection"),
		detectors:  make(map[domain.Domain]Detector),
		thresholds: cfg.Thresholds,
		lastSeen:   make(map[domain.Domain]time.Time),
		relayed:    make(map[domain.Domain]bool),
	}
}

// SetBaselineTask replaces the synthetic task timed for the baseline.
func (r *Registry) SetBaselineTask(task BaselineTask) {
	if task == nil {
		return
	}
	r.mu.Lock()
	r.task = task
	r.mu.Unlock()
}

// Register adds a detector before Initialize, replacing the default for its
// domain. Detectors for unknown domains run after the standard six.
func (r *Registry) Register(d Detector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.detectors[d.Name()]; !exists {
		r.order = append(r.order, d.Name())
	}
	r.detectors[d.Name()] = d
}

// OnErrorDetected adds a consumer for enriched events.
func (r *Registry) OnErrorDetected(c Consumer) {
	if c == nil {
		return
	}
	r.mu.Lock()
	r.consumers = append(r.consumers, c)
	r.mu.Unlock()
}

// OnCycle adds a hook that runs after every detection cycle.
func (r *Registry) OnCycle(h CycleHook) {
	if h == nil {
		return
	}
	r.mu.Lock()
	r.hooks = append(r.hooks, h)
	r.mu.Unlock()
}

// Initialize builds and initializes all detectors, measures the baseline
// and starts monitoring. Detector initialization failures are returned.
func (r *Registry) Initialize(ctx context.Context) error {
	r.mu.Lock()
	if r.initialized {
		r.mu.Unlock()
		return nil
	}
	for d, th := range r.thresholds {
		if err := th.Validate(domain.DirectionOf(d)); err != nil {
			r.mu.Unlock()
			return fmt.Errorf("invalid %s thresholds: %w", d, err)
		}
	}
	r.buildDefaults()
	order := r.orderedLocked()
	r.mu.Unlock()

	for _, d := range order {
		if err := d.Initialize(ctx); err != nil {
			return fmt.Errorf("failed to initialize %s detector: %w", d.Name(), err)
		}
		// A retried Initialize must not relay the same detector twice.
		r.mu.Lock()
		fresh := !r.relayed[d.Name()]
		r.relayed[d.Name()] = true
		r.mu.Unlock()
		if fresh {
			d.OnError(r.relay(d.Name()))
		}
	}

	if _, err := r.EstablishBaseline(ctx); err != nil {
		return fmt.Errorf("failed to establish baseline: %w", err)
	}

	r.mu.Lock()
	r.initialized = true
	r.mu.Unlock()

	r.log.Info("Detectors initialized", "count", len(order))
	r.StartMonitoring(ctx)
	return nil
}

// buildDefaults creates the standard detectors for missing domains.
// Caller holds r.mu.
func (r *Registry) buildDefaults() {
	standard := make([]domain.Domain, 0, len(domain.Domains))
	for _, name := range domain.Domains {
		standard = append(standard, name)
		if d, ok := r.detectors[name]; ok {
			// Injected detectors still get the configured thresholds
			_ = d.UpdateThresholds(r.thresholds[name])
			continue
		}
		r.detectors[name] = r.newDetector(name)
	}

	// Standard domains first, then any extra registered ones
	extra := make([]domain.Domain, 0)
	for _, name := range r.order {
		if !slices.Contains(domain.Domains, name) {
			extra = append(extra, name)
		}
	}
	r.order = append(standard, extra...)
}

func (r *Registry) newDetector(name domain.Domain) Detector {
	th := r.thresholds[name]
	switch name {
	case domain.DomainFrameRate:
		return NewFrameRateDetector(r.sources.Frame, th, r.cfg.FrameWindow, r.log)
	case domain.DomainMemory:
		return NewMemoryDetector(r.sources.Heap, th, r.log)
	case domain.DomainRendering:
		return NewRenderingDetector(r.sources.Rendering, th, r.log)
	case domain.DomainNetwork:
		return NewNetworkDetector(r.sources.Network, th, r.log)
	case domain.DomainJavaScript:
		return NewScriptDetector(r.sources.Script, th, r.log)
	default:
		return NewResourceDetector(r.sources.Resource, th, r.log)
	}
}

func (r *Registry) orderedLocked() []Detector {
	out := make([]Detector, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.detectors[name])
	}
	return out
}

func (r *Registry) relay(name domain.Domain) ErrorCallback {
	return func(ctx context.Context, e domain.DetectedError) {
		r.metrics.ObserveDetection(string(name), string(e.Level))
		r.handleDetectedError(ctx, name, e)
	}
}

// EstablishBaseline times the synthetic task and stores the result.
func (r *Registry) EstablishBaseline(ctx context.Context) (*domain.Baseline, error) {
	r.mu.RLock()
	task := r.task
	r.mu.RUnlock()

	b, err := MeasureBaseline(ctx, task, r.cfg.BaselineSamples, r.cfg.BaselineSpacing)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.baseline = b
	r.mu.Unlock()

	r.log.Info("Performance baseline established",
		"avg_ms", b.AverageTaskTime,
		"min_ms", b.MinTaskTime,
		"max_ms", b.MaxTaskTime,
		"stddev_ms", b.StandardDeviation,
	)
	return b, nil
}

// StartMonitoring starts the polling loop. It is a no-op when already running.
func (r *Registry) StartMonitoring(ctx context.Context) {
	if !r.monitoring.CompareAndSwap(false, true) {
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	r.mu.Lock()
	r.cancel = cancel
	r.done = done
	r.mu.Unlock()

	go r.run(loopCtx, done)
	r.log.Info("Monitoring started", "interval", r.cfg.Interval)
}

func (r *Registry) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Cancellation stops the loop, never a cycle in flight
			r.RunCycle(context.WithoutCancel(ctx))
		}
	}
}

// StopMonitoring stops the polling loop and waits for the current cycle.
func (r *Registry) StopMonitoring() {
	if !r.monitoring.CompareAndSwap(true, false) {
		return
	}
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.mu.Unlock()

	cancel()
	<-done
	r.log.Info("Monitoring stopped")
}

// RunCycle runs Detect on every detector in order. A failing detector is
// logged and skipped; the rest still run.
func (r *Registry) RunCycle(ctx context.Context) {
	start := time.Now()
	r.mu.RLock()
	detectors := r.orderedLocked()
	hooks := make([]CycleHook, len(r.hooks))
	copy(hooks, r.hooks)
	r.mu.RUnlock()

	for _, d := range detectors {
		if err := r.detectOne(ctx, d); err != nil {
			r.failures.Add(1)
			r.metrics.DetectorFailed(string(d.Name()))
			r.log.Error("Detection failed", "detector", d.Name(), "error", err)
		}
	}
	r.cycles.Add(1)
	r.metrics.ObserveCycle(time.Since(start))

	for _, h := range hooks {
		r.runHook(ctx, h)
	}
}

func (r *Registry) detectOne(ctx context.Context, d Detector) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("detector panicked: %v", rec)
		}
	}()
	return d.Detect(ctx)
}

func (r *Registry) runHook(ctx context.Context, h CycleHook) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("Cycle hook panicked", "panic", rec)
		}
	}()
	h(ctx)
}

// Dispatch injects an event as if detector name had emitted it.
func (r *Registry) Dispatch(ctx context.Context, name domain.Domain, e domain.DetectedError) {
	r.handleDetectedError(ctx, name, e)
}

func (r *Registry) handleDetectedError(ctx context.Context, name domain.Domain, e domain.DetectedError) {
	now := time.Now()

	r.mu.Lock()
	last := r.lastSeen[name]
	r.lastSeen[name] = now
	baseline := r.baseline
	consumers := make([]Consumer, len(r.consumers))
	copy(consumers, r.consumers)
	r.mu.Unlock()

	e.Timestamp = now
	enriched := domain.EnrichedError{
		DetectedError:  e,
		Detector:       name,
		Baseline:       baseline,
		LastOccurrence: last,
	}

	r.log.Warn("Performance error detected",
		"detector", name,
		"level", e.Level,
		"metrics", e.Metrics,
	)

	for i, c := range consumers {
		if err := r.deliver(ctx, c, enriched); err != nil {
			r.log.Error("Error consumer failed", "consumer", i, "detector", name, "error", err)
		}
	}
}

func (r *Registry) deliver(ctx context.Context, c Consumer, e domain.EnrichedError) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("consumer panicked: %v", rec)
		}
	}()
	return c(ctx, e)
}

// UpdateThresholds validates and merges partial into the threshold table and
// pushes each changed slice to its detector. Nothing is applied if any entry
// is invalid.
func (r *Registry) UpdateThresholds(partial domain.Thresholds) error {
	for d, th := range partial {
		if err := th.Validate(domain.DirectionOf(d)); err != nil {
			return fmt.Errorf("invalid %s thresholds: %w", d, err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for d, th := range partial {
		r.thresholds[d] = th
		if det, ok := r.detectors[d]; ok {
			if err := det.UpdateThresholds(th); err != nil {
				return err
			}
		}
	}
	r.log.Info("Thresholds updated", "domains", len(partial))
	return nil
}

// Thresholds returns a copy of the current threshold table.
func (r *Registry) Thresholds() domain.Thresholds {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(domain.Thresholds, len(r.thresholds))
	for d, th := range r.thresholds {
		out[d] = th
	}
	return out
}

// Baseline returns the measured baseline, nil before Initialize.
func (r *Registry) Baseline() *domain.Baseline {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.baseline
}

// Detector returns the detector for a domain.
func (r *Registry) Detector(name domain.Domain) (Detector, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.detectors[name]
	return d, ok
}

// DetectionStatus returns a snapshot for diagnostics.
func (r *Registry) DetectionStatus() Status {
	r.mu.RLock()
	detectors := r.orderedLocked()
	baseline := r.baseline
	r.mu.RUnlock()

	statuses := make(map[domain.Domain]domain.DetectorStatus, len(detectors))
	for _, d := range detectors {
		statuses[d.Name()] = d.Status()
	}
	return Status{
		Monitoring: r.monitoring.Load(),
		Baseline:   baseline,
		Detectors:  statuses,
		Thresholds: r.Thresholds(),
		Cycles:     r.cycles.Load(),
		Failures:   r.failures.Load(),
	}
}
