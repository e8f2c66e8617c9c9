package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/vietddude/perfguard/internal/classify"
	"github.com/vietddude/perfguard/internal/core/domain"
	"github.com/vietddude/perfguard/internal/degradation"
	"github.com/vietddude/perfguard/internal/detection"
	"github.com/vietddude/perfguard/internal/health"
	"github.com/vietddude/perfguard/internal/infra/storage"
	"github.com/vietddude/perfguard/internal/infra/storage/memory"
	"github.com/vietddude/perfguard/internal/metrics"
	"github.com/vietddude/perfguard/internal/recovery"
)

// recentEvents is how many log entries the detailed report carries.
const recentEvents = 20

// Deps are the host-provided collaborators of a System. Zero fields fall
// back to in-process defaults.
type Deps struct {
	Sources detection.Sources
	Hooks   recovery.Hooks
	Applier degradation.Applier
	Events  storage.EventLog
	Levels  storage.LevelStore
	Metrics *metrics.Metrics
	Log     *slog.Logger
}

// System wires detection, classification, recovery and degradation into one
// pipeline. Every detected error is classified, handed to the recovery
// engine and escalated to degradation when recovery is not possible.
type System struct {
	cfg        Config
	registry   *detection.Registry
	classifier *classify.Classifier
	engine     *recovery.Engine
	manager    *degradation.Manager
	events     storage.EventLog
	levels     storage.LevelStore
	limiter    *rate.Limiter
	metrics    *metrics.Metrics
	log        *slog.Logger
	now        func() time.Time

	// pipeline keeps one detection chain or restore in flight. Simulated
	// events queue behind the monitoring loop.
	pipeline sync.Mutex

	mu           sync.Mutex
	lastActivity time.Time
}

// NewSystem constructs every component and connects the pipeline. Nothing
// runs until Start.
func NewSystem(cfg Config, deps Deps) *System {
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}
	events := deps.Events
	if events == nil {
		events = memory.NewEventLog(cfg.Pipeline.EventLimit)
	}

	limit := rate.Inf
	if cfg.Pipeline.RateLimit > 0 {
		limit = rate.Limit(cfg.Pipeline.RateLimit)
	}
	burst := max(cfg.Pipeline.Burst, 1)

	s := &System{
		cfg:        cfg,
		registry:   detection.NewRegistry(cfg.Detection, deps.Sources, deps.Metrics, log),
		classifier: classify.NewClassifier(cfg.Classify, deps.Metrics, log),
		engine:     recovery.NewEngine(cfg.Recovery, deps.Hooks, deps.Metrics, log),
		manager:    degradation.NewManager(cfg.Degradation, deps.Applier, deps.Metrics, log),
		events:     events,
		levels:     deps.Levels,
		limiter:    rate.NewLimiter(limit, burst),
		metrics:    deps.Metrics,
		log:        log.With("component", "system"),
		now:        time.Now,
	}

	s.registry.OnErrorDetected(s.handleDetectedError)
	s.registry.OnCycle(s.onCycle)
	s.engine.OnRecoveryFailed(s.handleRecoveryFailure)
	return s
}

// Start initializes the components, restores a persisted degradation level
// and begins monitoring.
func (s *System) Start(ctx context.Context) error {
	if err := s.classifier.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize classifier: %w", err)
	}
	if err := s.manager.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize degradation manager: %w", err)
	}

	s.restorePersistedLevel(ctx)
	s.touch()

	if err := s.registry.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize detection: %w", err)
	}
	s.log.Info("Performance guard started",
		"interval", s.cfg.Detection.Interval,
		"level", s.manager.CurrentLevel(),
	)
	return nil
}

// Stop halts monitoring and persists the current level.
func (s *System) Stop(ctx context.Context) error {
	s.registry.StopMonitoring()
	s.persistLevel(ctx)
	s.log.Info("Performance guard stopped", "level", s.manager.CurrentLevel())
	return nil
}

func (s *System) restorePersistedLevel(ctx context.Context) {
	if s.levels == nil {
		return
	}
	level, err := s.levels.LoadLevel(ctx)
	if err != nil {
		if !errors.Is(err, storage.ErrLevelNotFound) {
			s.log.Warn("Failed to load persisted degradation level", "error", err)
		}
		return
	}
	if level <= domain.LevelNormal {
		return
	}
	res, err := s.manager.DegradeToLevel(ctx, level)
	if err != nil {
		s.log.Warn("Failed to restore persisted degradation level", "level", level, "error", err)
		return
	}
	s.log.Info("Restored persisted degradation level", "level", res.CurrentLevel)
}

// handleDetectedError is the registry consumer at the head of the pipeline.
func (s *System) handleDetectedError(ctx context.Context, e domain.EnrichedError) error {
	s.pipeline.Lock()
	defer s.pipeline.Unlock()

	if !s.limiter.Allow() {
		s.metrics.EventDropped()
		s.log.Debug("Detected error dropped by rate limiter", "detector", e.Detector, "level", e.Level)
		return nil
	}
	s.touch()

	ce, err := s.classifier.Classify(e)
	if err != nil {
		s.handleCriticalSystemError(ctx, e, err)
		return err
	}

	sev := ce.Classification.Severity
	s.appendEvent(ctx, domain.Event{
		EventType: domain.EventTypeErrorDetected,
		Detector:  ce.Detector,
		Level:     string(sev.Level),
		Message:   fmt.Sprintf("%s %s detected", ce.Detector, ce.Level),
		Data: map[string]any{
			"detectionLevel": ce.Level,
			"metrics":        ce.Metrics,
			"score":          sev.Score,
			"category":       ce.Classification.Category,
			"subcategory":    ce.Classification.Subcategory,
			"confidence":     ce.Classification.Confidence,
		},
	})

	decision := s.engine.DetermineStrategy(ce)
	if decision.Strategy == nil {
		s.log.Warn("No recovery strategy, escalating",
			"detector", ce.Detector,
			"severity", sev.Level,
			"reason", decision.Reason,
		)
		s.escalate(ctx, ce, nil)
		return nil
	}

	// Failures reach handleRecoveryFailure through the engine listener.
	res := s.engine.ExecuteRecovery(ctx, decision)
	if res.Success {
		details := map[string]any{"strategy": res.Strategy, "duration": res.ExecutionTime.String()}
		if res.Result != nil {
			details["action"] = res.Result.Action
		}
		s.appendEvent(ctx, domain.Event{
			EventType: domain.EventTypeRecoverySucceeded,
			Detector:  ce.Detector,
			Level:     string(sev.Level),
			Message:   fmt.Sprintf("recovered with %s", res.Strategy),
			Data:      details,
		})
	}
	return nil
}

func (s *System) handleRecoveryFailure(ctx context.Context, ce domain.ClassifiedError, res domain.ExecutionResult) {
	s.appendEvent(ctx, domain.Event{
		EventType: domain.EventTypeRecoveryFailed,
		Detector:  ce.Detector,
		Level:     string(ce.Classification.Severity.Level),
		Message:   fmt.Sprintf("%s failed: %s", res.Strategy, res.Error),
		Data: map[string]any{
			"strategy": res.Strategy,
			"attempts": res.Attempts,
			"reason":   res.Reason,
		},
	})
	s.escalate(ctx, ce, &res)
}

func (s *System) escalate(ctx context.Context, ce domain.ClassifiedError, failed *domain.ExecutionResult) {
	res, err := s.manager.InitiateDegradation(ctx, ce, failed)
	if err != nil {
		s.log.Error("Failed to initiate degradation", "detector", ce.Detector, "error", err)
		return
	}
	if res.Action == "no_change" {
		return
	}
	if !res.Success {
		s.log.Error("Degradation incomplete", "detector", ce.Detector, "level", res.CurrentLevel, "error", res.Error)
		return
	}
	s.recordLevelChange(ctx, domain.EventTypeDegraded, ce.Detector, string(ce.Classification.Severity.Level), res)
}

// handleCriticalSystemError runs when the pipeline itself fails. The system
// falls back to the emergency level.
func (s *System) handleCriticalSystemError(ctx context.Context, e domain.EnrichedError, cause error) {
	s.log.Error("Critical system error", "detector", e.Detector, "error", cause)
	s.appendEvent(ctx, domain.Event{
		EventType: domain.EventTypeCriticalSystemError,
		Detector:  e.Detector,
		Level:     string(domain.SeverityCritical),
		Message:   cause.Error(),
	})

	res, err := s.manager.EnterEmergencyMode(ctx)
	if err != nil {
		s.log.Error("Failed to enter emergency mode", "error", err)
		return
	}
	if res.Success && res.Action != "no_change" {
		s.recordLevelChange(ctx, domain.EventTypeDegraded, e.Detector, string(domain.SeverityCritical), res)
	}
}

// onCycle runs after every detection cycle.
func (s *System) onCycle(ctx context.Context) {
	s.restoreIfQuiet(ctx)
	s.metrics.SetHealthScore(s.HealthScore(ctx))
}

// restoreIfQuiet steps down one level once no error was handled for
// RestoreAfter.
func (s *System) restoreIfQuiet(ctx context.Context) {
	s.pipeline.Lock()
	defer s.pipeline.Unlock()

	quiet := s.cfg.Degradation.RestoreAfter
	current := s.manager.CurrentLevel()
	if quiet <= 0 || current == domain.LevelNormal {
		return
	}

	s.mu.Lock()
	idle := s.now().Sub(s.lastActivity)
	s.mu.Unlock()
	if idle < quiet {
		return
	}

	res, err := s.manager.RestoreToLevel(ctx, current-1)
	if err != nil {
		s.log.Error("Failed to restore degradation level", "target", current-1, "error", err)
		return
	}
	s.touch()
	if res.Action == "no_change" {
		return
	}
	s.recordLevelChange(ctx, domain.EventTypeRestored, "", "", res)
}

func (s *System) recordLevelChange(ctx context.Context, t domain.EventType, d domain.Domain, level string, res domain.DegradationResult) {
	levels := s.manager.Levels()
	s.appendEvent(ctx, domain.Event{
		EventType: t,
		Detector:  d,
		Level:     level,
		Message:   fmt.Sprintf("level %d (%s) -> %d (%s)", res.PreviousLevel, levels[res.PreviousLevel].Name, res.CurrentLevel, levels[res.CurrentLevel].Name),
		Data: map[string]any{
			"from":    res.PreviousLevel,
			"to":      res.CurrentLevel,
			"actions": len(res.ActionsExecuted),
		},
	})
	s.persistLevel(ctx)
}

func (s *System) appendEvent(ctx context.Context, e domain.Event) {
	e.ID = uuid.NewString()
	e.CreatedAt = s.now()
	if err := s.events.Append(ctx, e); err != nil {
		s.log.Warn("Failed to append event", "type", e.EventType, "error", err)
	}
}

func (s *System) persistLevel(ctx context.Context) {
	if s.levels == nil {
		return
	}
	if err := s.levels.SaveLevel(ctx, s.manager.CurrentLevel()); err != nil {
		s.log.Warn("Failed to persist degradation level", "error", err)
	}
}

func (s *System) touch() {
	s.mu.Lock()
	s.lastActivity = s.now()
	s.mu.Unlock()
}

// HealthScore scores the most recent detections.
func (s *System) HealthScore(ctx context.Context) int {
	detections, err := s.events.Recent(ctx, storage.EventQuery{
		Type:  domain.EventTypeErrorDetected,
		Limit: health.ScoreWindow,
	})
	if err != nil {
		s.log.Warn("Failed to read recent detections", "error", err)
	}
	return health.Score(detections)
}

// Report assembles the detailed health report.
func (s *System) Report(ctx context.Context) health.Report {
	score := s.HealthScore(ctx)

	recent, err := s.events.Recent(ctx, storage.EventQuery{Limit: recentEvents})
	if err != nil {
		s.log.Warn("Failed to read recent events", "error", err)
	}
	counts, err := s.events.Counts(ctx)
	if err != nil {
		s.log.Warn("Failed to count events", "error", err)
	}

	level := s.manager.CurrentLevel()
	det := s.registry.DetectionStatus()
	return health.Report{
		Status:       health.StatusFor(score),
		Score:        score,
		Monitoring:   det.Monitoring,
		Level:        level,
		LevelName:    s.manager.Levels()[level].Name,
		Detection:    det,
		Recovery:     s.engine.Statistics(),
		Degradation:  s.manager.Statistics(),
		Tuning:       s.engine.Tuning(),
		Transitions:  s.manager.Transitions(),
		RecentEvents: recent,
		EventCounts:  counts,
		GeneratedAt:  s.now(),
	}
}

// Registry returns the detector registry.
func (s *System) Registry() *detection.Registry { return s.registry }

// Classifier returns the classifier.
func (s *System) Classifier() *classify.Classifier { return s.classifier }

// Engine returns the recovery engine.
func (s *System) Engine() *recovery.Engine { return s.engine }

// Manager returns the degradation manager.
func (s *System) Manager() *degradation.Manager { return s.manager }

// Events returns the event log.
func (s *System) Events() storage.EventLog { return s.events }
