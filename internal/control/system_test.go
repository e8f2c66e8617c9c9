package control

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/vietddude/perfguard/internal/core/config"
	"github.com/vietddude/perfguard/internal/core/domain"
	"github.com/vietddude/perfguard/internal/degradation"
	"github.com/vietddude/perfguard/internal/detection"
	"github.com/vietddude/perfguard/internal/health"
	"github.com/vietddude/perfguard/internal/infra/storage"
	"github.com/vietddude/perfguard/internal/infra/storage/memory"
	"github.com/vietddude/perfguard/internal/recovery"
)

// =============================================================================
// Helpers
// =============================================================================

func testConfig() Config {
	return Config{
		Detection: detection.Config{
			Interval:           time.Hour, // cycles are driven manually
			BaselineSamples:    2,
			BaselineIterations: 10,
		},
		Recovery: recovery.Config{
			Retry: recovery.RetryConfig{Attempts: 1, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond},
		},
		Degradation: degradation.DefaultConfig(),
		Pipeline:    config.PipelineConfig{EventLimit: 100},
	}
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func startSystem(t *testing.T, cfg Config, store *memory.EventLog) *System {
	t.Helper()
	s := NewSystem(cfg, Deps{Events: store, Levels: store})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Stop(context.Background()) })
	return s
}

func eventsOf(t *testing.T, log storage.EventLog, typ domain.EventType) []domain.Event {
	t.Helper()
	events, err := log.Recent(context.Background(), storage.EventQuery{Type: typ})
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	return events
}

// =============================================================================
// Pipeline
// =============================================================================

func TestSystem_RecoverableErrorIsRecovered(t *testing.T) {
	store := memory.NewEventLog(100)
	s := startSystem(t, testConfig(), store)

	// fps between the thresholds scores medium on first occurrence
	if err := s.Simulate(context.Background(), domain.DomainFrameRate, domain.LevelWarning); err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}

	detected := eventsOf(t, store, domain.EventTypeErrorDetected)
	if len(detected) != 1 {
		t.Fatalf("expected 1 detection event, got %d", len(detected))
	}
	if detected[0].Level != string(domain.SeverityMedium) {
		t.Errorf("expected medium severity, got %s", detected[0].Level)
	}
	if n := len(eventsOf(t, store, domain.EventTypeRecoverySucceeded)); n != 1 {
		t.Errorf("expected 1 recovery_succeeded event, got %d", n)
	}
	if q := s.Engine().Tuning().Quality; q != 0.8 {
		t.Errorf("expected quality 0.8, got %v", q)
	}
	if lvl := s.Manager().CurrentLevel(); lvl != domain.LevelNormal {
		t.Errorf("expected level to stay normal, got %d", lvl)
	}
}

func TestSystem_CriticalFrameRateHasFullImpact(t *testing.T) {
	store := memory.NewEventLog(100)
	s := startSystem(t, testConfig(), store)

	if err := s.Simulate(context.Background(), domain.DomainFrameRate, domain.LevelCritical); err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}

	detected := eventsOf(t, store, domain.EventTypeErrorDetected)
	if len(detected) != 1 {
		t.Fatalf("expected 1 detection event, got %d", len(detected))
	}
	// impact 1.0 lifts a first frame drop to high
	if detected[0].Level != string(domain.SeverityHigh) {
		t.Errorf("expected high severity, got %s", detected[0].Level)
	}
	metrics, ok := detected[0].Data["metrics"].(map[string]float64)
	if !ok || metrics["fps"] >= 15 {
		t.Errorf("expected fps below the critical threshold, got %v", detected[0].Data["metrics"])
	}
	if n := len(eventsOf(t, store, domain.EventTypeRecoverySucceeded)); n != 1 {
		t.Errorf("expected 1 recovery_succeeded event, got %d", n)
	}
}

func TestSystem_NoStrategyEscalates(t *testing.T) {
	store := memory.NewEventLog(100)
	s := startSystem(t, testConfig(), store)

	// Resource errors score low and no resource strategy handles low
	if err := s.Simulate(context.Background(), domain.DomainResource, domain.LevelCritical); err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}

	if lvl := s.Manager().CurrentLevel(); lvl != 1 {
		t.Fatalf("expected level 1, got %d", lvl)
	}
	degraded := eventsOf(t, store, domain.EventTypeDegraded)
	if len(degraded) != 1 {
		t.Fatalf("expected 1 degraded event, got %d", len(degraded))
	}
	if degraded[0].Data["to"] != 1 {
		t.Errorf("expected degraded to level 1, got %v", degraded[0].Data["to"])
	}
	if len(s.Engine().History()) != 0 {
		t.Errorf("expected no recovery executions, got %d", len(s.Engine().History()))
	}

	level, err := store.LoadLevel(context.Background())
	if err != nil || level != 1 {
		t.Errorf("expected persisted level 1, got %d (%v)", level, err)
	}
}

func TestSystem_FailedRecoveryEscalates(t *testing.T) {
	store := memory.NewEventLog(100)
	s := startSystem(t, testConfig(), store)

	failing := recovery.Strategy{
		Priority:   1,
		Severities: []domain.SeverityLevel{domain.SeverityMedium, domain.SeverityHigh, domain.SeverityCritical},
		Execute: func(context.Context, domain.ClassifiedError) (domain.RecoveryResult, error) {
			return domain.RecoveryResult{}, errors.New("gpu lost")
		},
	}
	if err := s.Engine().ReplaceStrategy(domain.DomainFrameRate, "reduce_quality", failing); err != nil {
		t.Fatalf("ReplaceStrategy failed: %v", err)
	}

	if err := s.Simulate(context.Background(), domain.DomainFrameRate, domain.LevelWarning); err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}

	failed := eventsOf(t, store, domain.EventTypeRecoveryFailed)
	if len(failed) != 1 {
		t.Fatalf("expected 1 recovery_failed event, got %d", len(failed))
	}
	if failed[0].Data["strategy"] != "reduce_quality" {
		t.Errorf("expected reduce_quality, got %v", failed[0].Data["strategy"])
	}
	if lvl := s.Manager().CurrentLevel(); lvl != 1 {
		t.Errorf("expected level 1 after failed recovery, got %d", lvl)
	}
}

func TestSystem_CriticalSystemErrorEntersEmergency(t *testing.T) {
	store := memory.NewEventLog(100)
	s := NewSystem(testConfig(), Deps{Events: store})

	// Classifier left uninitialized so classification fails
	if err := s.Manager().Initialize(); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	s.Registry().Dispatch(context.Background(), domain.DomainMemory, domain.DetectedError{
		Type:    domain.DomainMemory,
		Level:   domain.LevelCritical,
		Metrics: map[string]float64{"usage": 0.95},
	})

	if n := len(eventsOf(t, store, domain.EventTypeCriticalSystemError)); n != 1 {
		t.Errorf("expected 1 critical_system_error event, got %d", n)
	}
	if lvl := s.Manager().CurrentLevel(); lvl != domain.LevelEmergency {
		t.Errorf("expected emergency level, got %d", lvl)
	}
}

func TestSystem_RateLimitDropsStorm(t *testing.T) {
	cfg := testConfig()
	cfg.Pipeline.RateLimit = 0.001
	cfg.Pipeline.Burst = 2

	store := memory.NewEventLog(100)
	s := startSystem(t, cfg, store)

	for range 5 {
		if err := s.Simulate(context.Background(), domain.DomainNetwork, domain.LevelWarning); err != nil {
			t.Fatalf("Simulate failed: %v", err)
		}
	}

	if n := len(eventsOf(t, store, domain.EventTypeErrorDetected)); n != 2 {
		t.Errorf("expected 2 handled detections, got %d", n)
	}
}

func TestSystem_SimulateQueuesBehindRunningChain(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	applier := func(context.Context, int, domain.DegradationAction) error {
		once.Do(func() {
			close(entered)
			<-release
		})
		return nil
	}

	store := memory.NewEventLog(100)
	s := NewSystem(testConfig(), Deps{Events: store, Levels: store, Applier: applier})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Stop(context.Background()) })

	// resource errors escalate, so the first chain parks in the applier
	first := make(chan error, 1)
	go func() {
		first <- s.Simulate(context.Background(), domain.DomainResource, domain.LevelCritical)
	}()
	<-entered

	second := make(chan error, 1)
	go func() {
		second <- s.Simulate(context.Background(), domain.DomainNetwork, domain.LevelWarning)
	}()

	select {
	case <-second:
		t.Fatal("second chain ran while the first was in flight")
	case <-time.After(50 * time.Millisecond):
	}
	if n := len(eventsOf(t, store, domain.EventTypeErrorDetected)); n != 1 {
		t.Errorf("expected 1 detection while blocked, got %d", n)
	}

	close(release)
	if err := <-first; err != nil {
		t.Fatalf("first Simulate failed: %v", err)
	}
	if err := <-second; err != nil {
		t.Fatalf("second Simulate failed: %v", err)
	}

	if n := len(eventsOf(t, store, domain.EventTypeErrorDetected)); n != 2 {
		t.Errorf("expected 2 detections, got %d", n)
	}
	if lvl := s.Manager().CurrentLevel(); lvl != 1 {
		t.Errorf("expected level 1, got %d", lvl)
	}
}

// =============================================================================
// Restoration
// =============================================================================

func TestSystem_QuietPeriodRestoresOneLevel(t *testing.T) {
	store := memory.NewEventLog(100)
	s := startSystem(t, testConfig(), store)
	clock := &fakeClock{t: time.Now()}
	s.now = clock.now
	s.touch()

	if _, err := s.Manager().DegradeToLevel(context.Background(), 3); err != nil {
		t.Fatalf("DegradeToLevel failed: %v", err)
	}

	s.onCycle(context.Background())
	if lvl := s.Manager().CurrentLevel(); lvl != 3 {
		t.Fatalf("expected level 3 before quiet period, got %d", lvl)
	}

	clock.advance(31 * time.Second)
	s.onCycle(context.Background())
	if lvl := s.Manager().CurrentLevel(); lvl != 2 {
		t.Fatalf("expected level 2 after quiet period, got %d", lvl)
	}

	// The restore itself resets the quiet timer
	s.onCycle(context.Background())
	if lvl := s.Manager().CurrentLevel(); lvl != 2 {
		t.Errorf("expected level to stay 2, got %d", lvl)
	}

	if n := len(eventsOf(t, store, domain.EventTypeRestored)); n != 1 {
		t.Errorf("expected 1 restored event, got %d", n)
	}
}

func TestSystem_RestoresPersistedLevel(t *testing.T) {
	store := memory.NewEventLog(100)
	if err := store.SaveLevel(context.Background(), 3); err != nil {
		t.Fatalf("SaveLevel failed: %v", err)
	}

	s := startSystem(t, testConfig(), store)

	if lvl := s.Manager().CurrentLevel(); lvl != 3 {
		t.Errorf("expected persisted level 3, got %d", lvl)
	}
}

// =============================================================================
// Simulation and reporting
// =============================================================================

func TestSystem_SimulateUnknownDomain(t *testing.T) {
	s := NewSystem(testConfig(), Deps{})
	err := s.Simulate(context.Background(), domain.Domain("gpu"), domain.LevelCritical)
	if !errors.Is(err, domain.ErrUnknownDomain) {
		t.Errorf("expected ErrUnknownDomain, got %v", err)
	}
}

func TestSimulatedValue(t *testing.T) {
	rising := domain.Threshold{Critical: 100, Warning: 50, Target: 10}
	falling := domain.Threshold{Critical: 15, Warning: 30, Target: 60}
	tests := []struct {
		name  string
		th    domain.Threshold
		dir   domain.Direction
		level domain.DetectionLevel
		want  float64
	}{
		{"rising critical", rising, domain.HigherIsWorse, domain.LevelCritical, 105},
		{"rising warning", rising, domain.HigherIsWorse, domain.LevelWarning, 75},
		{"rising info", rising, domain.HigherIsWorse, domain.LevelInfo, 50},
		{"falling critical", falling, domain.LowerIsWorse, domain.LevelCritical, 13.5},
		{"falling warning", falling, domain.LowerIsWorse, domain.LevelWarning, 22.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := simulatedValue(tt.th, tt.dir, tt.level)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
			level, ok := tt.th.Evaluate(got, tt.dir)
			if tt.level != domain.LevelInfo && (!ok || level != tt.level) {
				t.Errorf("value does not evaluate to %s", tt.level)
			}
		})
	}
}

func TestSystem_Report(t *testing.T) {
	store := memory.NewEventLog(100)
	s := startSystem(t, testConfig(), store)

	ctx := context.Background()
	_ = s.Simulate(ctx, domain.DomainFrameRate, domain.LevelWarning)
	_ = s.Simulate(ctx, domain.DomainResource, domain.LevelCritical)

	r := s.Report(ctx)
	if !r.Monitoring {
		t.Error("expected monitoring to be active")
	}
	// medium (-2) and low (-2)
	if r.Score != 96 || r.Status != health.StatusExcellent {
		t.Errorf("expected 96/excellent, got %d/%s", r.Score, r.Status)
	}
	if r.Level != 1 || r.LevelName != s.Manager().Levels()[1].Name {
		t.Errorf("unexpected level %d %q", r.Level, r.LevelName)
	}
	if r.EventCounts[domain.EventTypeErrorDetected] != 2 {
		t.Errorf("expected 2 detections counted, got %d", r.EventCounts[domain.EventTypeErrorDetected])
	}
	if len(r.RecentEvents) == 0 || r.RecentEvents[0].EventType != domain.EventTypeDegraded {
		t.Errorf("expected newest event to be degraded, got %+v", r.RecentEvents)
	}
	if r.Recovery.Total != 1 || r.Recovery.Successful != 1 {
		t.Errorf("unexpected recovery stats: %+v", r.Recovery)
	}
	if len(r.Transitions) != 1 {
		t.Errorf("expected 1 transition, got %d", len(r.Transitions))
	}
}
