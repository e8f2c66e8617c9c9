package degradation

import (
	"context"
	"errors"
	"math"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vietddude/perfguard/internal/core/domain"
)

func newTestManager(t *testing.T, applier Applier) *Manager {
	t.Helper()
	m := NewManager(DefaultConfig(), applier, nil, nil)
	if err := m.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return m
}

func classified(d domain.Domain, level domain.SeverityLevel) domain.ClassifiedError {
	return domain.ClassifiedError{
		EnrichedError:  domain.EnrichedError{Detector: d},
		Classification: domain.Classification{Severity: domain.Severity{Level: level}},
	}
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

// =============================================================================
// Initialization Tests
// =============================================================================

func TestNotInitialized(t *testing.T) {
	m := NewManager(DefaultConfig(), nil, nil, nil)
	ctx := context.Background()

	if _, err := m.InitiateDegradation(ctx, classified(domain.DomainMemory, domain.SeverityHigh), nil); !errors.Is(err, domain.ErrNotInitialized) {
		t.Errorf("InitiateDegradation: got %v", err)
	}
	if _, err := m.DegradeToLevel(ctx, 2); !errors.Is(err, domain.ErrNotInitialized) {
		t.Errorf("DegradeToLevel: got %v", err)
	}
	if _, err := m.RestoreToLevel(ctx, 0); !errors.Is(err, domain.ErrNotInitialized) {
		t.Errorf("RestoreToLevel: got %v", err)
	}
	if _, err := m.EnterEmergencyMode(ctx); !errors.Is(err, domain.ErrNotInitialized) {
		t.Errorf("EnterEmergencyMode: got %v", err)
	}
}

func TestInitialFeatureStates(t *testing.T) {
	m := newTestManager(t, nil)
	states := m.FeatureStates()
	if len(states) != len(Features) {
		t.Fatalf("features = %d, want %d", len(states), len(Features))
	}
	for name, s := range states {
		if !s.Enabled || s.Quality != 1.0 {
			t.Errorf("%s = %+v, want enabled at full quality", name, s)
		}
	}
	if m.CurrentLevel() != 0 {
		t.Errorf("level = %d, want 0", m.CurrentLevel())
	}
}

func TestInvalidLevel(t *testing.T) {
	m := newTestManager(t, nil)
	for _, level := range []int{-1, 6} {
		if _, err := m.DegradeToLevel(context.Background(), level); !errors.Is(err, domain.ErrInvalidLevel) {
			t.Errorf("DegradeToLevel(%d): got %v", level, err)
		}
		if _, err := m.RestoreToLevel(context.Background(), level); !errors.Is(err, domain.ErrInvalidLevel) {
			t.Errorf("RestoreToLevel(%d): got %v", level, err)
		}
	}
}

// =============================================================================
// Target Level Tests
// =============================================================================

func TestTargetLevel(t *testing.T) {
	tests := []struct {
		name     string
		current  int
		detector domain.Domain
		level    domain.SeverityLevel
		attempts int
		want     int
	}{
		{"medium rendering", 0, domain.DomainRendering, domain.SeverityMedium, 0, 1},
		{"high rendering", 0, domain.DomainRendering, domain.SeverityHigh, 0, 2},
		{"critical rendering", 0, domain.DomainRendering, domain.SeverityCritical, 0, 3},
		{"low rendering floors at one", 0, domain.DomainRendering, domain.SeverityLow, 0, 1},
		{"memory bonus", 0, domain.DomainMemory, domain.SeverityMedium, 0, 2},
		{"javascript bonus", 1, domain.DomainJavaScript, domain.SeverityHigh, 0, 4},
		{"repeated failure", 0, domain.DomainNetwork, domain.SeverityMedium, 2, 2},
		{"single failure no bonus", 0, domain.DomainNetwork, domain.SeverityMedium, 1, 1},
		{"clamped to emergency", 3, domain.DomainMemory, domain.SeverityCritical, 3, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestManager(t, nil)
			if tt.current > 0 {
				if _, err := m.DegradeToLevel(context.Background(), tt.current); err != nil {
					t.Fatalf("DegradeToLevel: %v", err)
				}
			}
			var failed *domain.ExecutionResult
			if tt.attempts > 0 {
				failed = &domain.ExecutionResult{Attempts: tt.attempts}
			}
			if got := m.TargetLevel(classified(tt.detector, tt.level), failed); got != tt.want {
				t.Errorf("TargetLevel = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestTargetLevel_CustomEscalation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Escalation = EscalationConfig{Critical: 1, DomainBonus: map[domain.Domain]int{}}
	m := NewManager(cfg, nil, nil, nil)
	_ = m.Initialize()

	if got := m.TargetLevel(classified(domain.DomainMemory, domain.SeverityCritical), nil); got != 2 {
		t.Errorf("TargetLevel = %d, want 2", got)
	}
}

func TestTargetLevel_ZeroConfigUsesDefaults(t *testing.T) {
	m := NewManager(Config{}, nil, nil, nil)
	if err := m.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	ce := classified(domain.DomainMemory, domain.SeverityCritical)
	failed := &domain.ExecutionResult{Attempts: 2}
	if got := m.TargetLevel(ce, failed); got != 5 {
		t.Fatalf("TargetLevel = %d, want 5", got)
	}
	res, err := m.InitiateDegradation(context.Background(), ce, failed)
	if err != nil {
		t.Fatalf("InitiateDegradation: %v", err)
	}
	if res.CurrentLevel != 5 || m.CurrentLevel() != 5 {
		t.Errorf("level = %d, want 5", m.CurrentLevel())
	}
}

func TestInitiateDegradation_ConcurrentCallsStack(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	m := newTestManager(t, func(context.Context, int, domain.DegradationAction) error {
		once.Do(func() {
			close(entered)
			<-release
		})
		return nil
	})

	// high rendering climbs two levels from wherever the ladder stands
	ce := classified(domain.DomainRendering, domain.SeverityHigh)
	ctx := context.Background()

	first := make(chan domain.DegradationResult, 1)
	go func() {
		res, _ := m.InitiateDegradation(ctx, ce, nil)
		first <- res
	}()
	<-entered

	second := make(chan domain.DegradationResult, 1)
	go func() {
		res, _ := m.InitiateDegradation(ctx, ce, nil)
		second <- res
	}()
	time.Sleep(20 * time.Millisecond)
	close(release)

	r1, r2 := <-first, <-second
	if r1.PreviousLevel != 0 || r1.CurrentLevel != 2 {
		t.Errorf("first = %d -> %d, want 0 -> 2", r1.PreviousLevel, r1.CurrentLevel)
	}
	if r2.Action != "degrade" || r2.PreviousLevel != 2 || r2.CurrentLevel != 4 {
		t.Errorf("second = %s %d -> %d, want degrade 2 -> 4", r2.Action, r2.PreviousLevel, r2.CurrentLevel)
	}
	if m.CurrentLevel() != 4 {
		t.Errorf("level = %d, want 4", m.CurrentLevel())
	}
}

// =============================================================================
// Ladder Tests
// =============================================================================

func TestDegradeToEmergency_ActionOrder(t *testing.T) {
	var applied []domain.ExecutedAction
	m := newTestManager(t, func(_ context.Context, level int, a domain.DegradationAction) error {
		applied = append(applied, domain.ExecutedAction{Level: level, Action: a})
		return nil
	})

	res, err := m.DegradeToLevel(context.Background(), 5)
	if err != nil {
		t.Fatalf("DegradeToLevel: %v", err)
	}
	if !res.Success || res.PreviousLevel != 0 || res.CurrentLevel != 5 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(res.ActionsExecuted) != 17 || len(applied) != 17 {
		t.Fatalf("actions = %d (applied %d), want 17", len(res.ActionsExecuted), len(applied))
	}

	levels := DefaultLevels()
	i := 0
	for level := 1; level <= 5; level++ {
		for _, want := range levels[level].Actions {
			got := res.ActionsExecuted[i]
			if got.Level != level || got.Action != want {
				t.Errorf("action[%d] = L%d %s %s, want L%d %s %s",
					i, got.Level, got.Action.Type, got.Action.Target, level, want.Type, want.Target)
			}
			i++
		}
	}
}

func TestDegradeToEmergency_FeatureStates(t *testing.T) {
	m := newTestManager(t, nil)
	if _, err := m.DegradeToLevel(context.Background(), 5); err != nil {
		t.Fatalf("DegradeToLevel: %v", err)
	}

	states := m.FeatureStates()
	enabled := []string{FeatureGraphicsQuality, FeatureNetwork, FeatureAutoSave}
	for name, s := range states {
		if want := slices.Contains(enabled, name); s.Enabled != want {
			t.Errorf("%s enabled = %v, want %v", name, s.Enabled, want)
		}
		if !approx(s.Quality, minQuality) {
			t.Errorf("%s quality = %v, want floor %v", name, s.Quality, minQuality)
		}
	}

	stats := m.Statistics()
	if len(stats.DisabledFeatures) != 9 {
		t.Errorf("disabled = %v", stats.DisabledFeatures)
	}
	wantModes := []string{"aggressive_cleanup", "aggressive_culling", "emergency_mode", "safe_mode"}
	if !slices.Equal(m.ActiveModes(), wantModes) {
		t.Errorf("modes = %v, want %v", m.ActiveModes(), wantModes)
	}

	params := m.Parameters()
	if !approx(params["update_frequency"].Scale, 0.3) || params["animations"].Level != "basic" {
		t.Errorf("params = %+v", params)
	}
}

func TestDegradeStepwiseMatchesDirect(t *testing.T) {
	direct := newTestManager(t, nil)
	stepped := newTestManager(t, nil)
	ctx := context.Background()

	_, _ = direct.DegradeToLevel(ctx, 4)
	for level := 1; level <= 4; level++ {
		_, _ = stepped.DegradeToLevel(ctx, level)
	}
	assertSameFeatures(t, direct.FeatureStates(), stepped.FeatureStates())
}

func TestNoChange(t *testing.T) {
	m := newTestManager(t, nil)
	ctx := context.Background()
	_, _ = m.DegradeToLevel(ctx, 3)

	for _, target := range []int{1, 3} {
		res, err := m.DegradeToLevel(ctx, target)
		if err != nil {
			t.Fatalf("DegradeToLevel: %v", err)
		}
		if !res.Success || res.Action != "no_change" || res.CurrentLevel != 3 {
			t.Errorf("target %d: %+v", target, res)
		}
	}

	res, _ := m.InitiateDegradation(ctx, domain.ClassifiedError{}, nil)
	if res.CurrentLevel != 4 {
		t.Errorf("escalation from 3 should reach 4, got %d", res.CurrentLevel)
	}
	if len(m.History()) != 2 {
		t.Errorf("no_change must not be recorded, history = %d", len(m.History()))
	}
}

func TestLevelMonotonicUntilRestore(t *testing.T) {
	m := newTestManager(t, nil)
	ctx := context.Background()
	severities := []domain.SeverityLevel{
		domain.SeverityHigh, domain.SeverityLow, domain.SeverityMedium,
		domain.SeverityCritical, domain.SeverityLow, domain.SeverityMedium,
	}

	prev := m.CurrentLevel()
	for _, s := range severities {
		if _, err := m.InitiateDegradation(ctx, classified(domain.DomainRendering, s), nil); err != nil {
			t.Fatalf("InitiateDegradation: %v", err)
		}
		if cur := m.CurrentLevel(); cur < prev {
			t.Fatalf("level decreased from %d to %d", prev, cur)
		}
		prev = m.CurrentLevel()
	}
	if prev != domain.LevelEmergency {
		t.Errorf("final level = %d, want 5", prev)
	}
}

func TestEnterEmergencyMode(t *testing.T) {
	m := newTestManager(t, nil)
	_, _ = m.DegradeToLevel(context.Background(), 2)

	res, err := m.EnterEmergencyMode(context.Background())
	if err != nil {
		t.Fatalf("EnterEmergencyMode: %v", err)
	}
	if res.PreviousLevel != 2 || res.CurrentLevel != 5 {
		t.Errorf("unexpected result: %+v", res)
	}
	trs := m.Transitions()
	if last := trs[len(trs)-1]; last.Reason != ReasonEmergency || last.From != 2 || last.To != 5 {
		t.Errorf("last transition = %+v", last)
	}
}

// =============================================================================
// Failure Tests
// =============================================================================

func TestApplierErrorAborts(t *testing.T) {
	m := newTestManager(t, func(_ context.Context, level int, a domain.DegradationAction) error {
		if level == 3 && a.Target == "advanced_effects" {
			return errors.New("renderer busy")
		}
		return nil
	})

	res, err := m.DegradeToLevel(context.Background(), 4)
	if err != nil {
		t.Fatalf("DegradeToLevel returned error: %v", err)
	}
	if res.Success {
		t.Fatal("expected failure")
	}
	if !strings.Contains(res.Error, "renderer busy") {
		t.Errorf("error = %q", res.Error)
	}
	// Levels 1 and 2 plus the first action of level 3.
	if len(res.ActionsExecuted) != 6 {
		t.Errorf("partial actions = %d, want 6", len(res.ActionsExecuted))
	}
	if m.CurrentLevel() != 0 || res.CurrentLevel != 0 {
		t.Errorf("level advanced on failure: %d", m.CurrentLevel())
	}
	if len(m.History()) != 0 {
		t.Error("failed degradation must not be recorded")
	}
}

func TestApplierPanicAborts(t *testing.T) {
	m := newTestManager(t, func(context.Context, int, domain.DegradationAction) error {
		panic("driver crash")
	})

	res, err := m.DegradeToLevel(context.Background(), 1)
	if err != nil {
		t.Fatalf("DegradeToLevel returned error: %v", err)
	}
	if res.Success || !strings.Contains(res.Error, "panicked") {
		t.Errorf("unexpected result: %+v", res)
	}
	if m.CurrentLevel() != 0 {
		t.Errorf("level = %d, want 0", m.CurrentLevel())
	}
}

func TestUnknownFeatureIsReported(t *testing.T) {
	m := newTestManager(t, nil)
	m.levels[1].Actions = []domain.DegradationAction{
		disable("hologram"),
		reduceQuality("effects", 0.2),
	}

	res, _ := m.DegradeToLevel(context.Background(), 1)
	if !res.Success || res.CurrentLevel != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	first := res.ActionsExecuted[0].Result
	if first.Success || first.Reason != "feature_not_found" {
		t.Errorf("unknown feature outcome = %+v", first)
	}
	if !res.ActionsExecuted[1].Result.Success {
		t.Error("later actions should still run")
	}
}

// =============================================================================
// Restore Tests
// =============================================================================

func TestRestoreRoundTrip(t *testing.T) {
	m := newTestManager(t, nil)
	ctx := context.Background()

	_, _ = m.DegradeToLevel(ctx, 3)
	atThree := m.FeatureStates()
	modesAtThree := m.ActiveModes()

	_, _ = m.DegradeToLevel(ctx, 5)
	res, err := m.RestoreToLevel(ctx, 3)
	if err != nil {
		t.Fatalf("RestoreToLevel: %v", err)
	}
	if !res.Success || res.Action != "restore" || res.PreviousLevel != 5 || res.CurrentLevel != 3 {
		t.Fatalf("unexpected result: %+v", res)
	}
	assertSameFeatures(t, atThree, m.FeatureStates())
	if !slices.Equal(modesAtThree, m.ActiveModes()) {
		t.Errorf("modes = %v, want %v", m.ActiveModes(), modesAtThree)
	}
}

func TestRestoreToNormal(t *testing.T) {
	m := newTestManager(t, nil)
	ctx := context.Background()
	_, _ = m.DegradeToLevel(ctx, 4)

	res, _ := m.RestoreToLevel(ctx, 0)
	if res.CurrentLevel != 0 || len(res.ActionsExecuted) != 0 {
		t.Errorf("unexpected result: %+v", res)
	}
	for name, s := range m.FeatureStates() {
		if !s.Enabled || s.Quality != 1.0 {
			t.Errorf("%s not reset: %+v", name, s)
		}
	}
	if len(m.ActiveModes()) != 0 || len(m.Parameters()) != 0 {
		t.Error("modes and parameters should be cleared")
	}
}

func TestRestoreNoChange(t *testing.T) {
	m := newTestManager(t, nil)
	_, _ = m.DegradeToLevel(context.Background(), 2)

	res, _ := m.RestoreToLevel(context.Background(), 2)
	if res.Action != "no_change" || m.CurrentLevel() != 2 {
		t.Errorf("unexpected result: %+v", res)
	}
}

func assertSameFeatures(t *testing.T, want, got map[string]domain.FeatureState) {
	t.Helper()
	for name, w := range want {
		g := got[name]
		if g.Enabled != w.Enabled || !approx(g.Quality, w.Quality) {
			t.Errorf("%s = {%v %v}, want {%v %v}", name, g.Enabled, g.Quality, w.Enabled, w.Quality)
		}
	}
}

// =============================================================================
// History & Statistics Tests
// =============================================================================

func TestHistoryBounded(t *testing.T) {
	m := newTestManager(t, nil)
	ctx := context.Background()
	for range 15 {
		_, _ = m.DegradeToLevel(ctx, 1)
		_, _ = m.RestoreToLevel(ctx, 0)
	}
	if n := len(m.History()); n != 20 {
		t.Errorf("history = %d, want 20", n)
	}
	if n := len(m.Transitions()); n != transitionLimit {
		t.Errorf("transitions = %d, want %d", n, transitionLimit)
	}
}

func TestStatistics(t *testing.T) {
	m := newTestManager(t, nil)
	ctx := context.Background()

	_, _ = m.DegradeToLevel(ctx, 2)
	_, _ = m.DegradeToLevel(ctx, 4)

	s := m.Statistics()
	if s.CurrentLevel != 4 || s.MaxLevel != 5 || s.TotalEvents != 2 {
		t.Errorf("stats = %+v", s)
	}
	if s.AverageLevel != 3 {
		t.Errorf("average = %v, want 3", s.AverageLevel)
	}
	if s.FeatureCount != len(Features) {
		t.Errorf("feature count = %d", s.FeatureCount)
	}
}

func TestTransitions(t *testing.T) {
	m := newTestManager(t, nil)
	ctx := context.Background()
	_, _ = m.DegradeToLevel(ctx, 2)
	_, _ = m.RestoreToLevel(ctx, 1)

	trs := m.Transitions()
	if len(trs) != 2 {
		t.Fatalf("transitions = %+v", trs)
	}
	if trs[0].From != 0 || trs[0].To != 2 || trs[0].Reason != ReasonEscalate {
		t.Errorf("first = %+v", trs[0])
	}
	if trs[1].From != 2 || trs[1].To != 1 || trs[1].Reason != ReasonRestore {
		t.Errorf("second = %+v", trs[1])
	}
}

func TestLevelDescription(t *testing.T) {
	if got := LevelDescription(5); !strings.HasPrefix(got, "emergency_mode") {
		t.Errorf("LevelDescription(5) = %q", got)
	}
	if got := LevelDescription(9); got != "Unknown level" {
		t.Errorf("LevelDescription(9) = %q", got)
	}
}
