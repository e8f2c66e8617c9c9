package degradation

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/vietddude/perfguard/internal/core/domain"
	"github.com/vietddude/perfguard/internal/core/history"
	"github.com/vietddude/perfguard/internal/metrics"
)

const (
	minQuality      = 0.1
	transitionLimit = 10
)

// Applier lets the host apply an action to the real system before the
// manager records it. Returning an error aborts the degradation.
type Applier func(ctx context.Context, level int, action domain.DegradationAction) error

// Parameter is a recorded adjustment from a reduce or optimize action.
type Parameter struct {
	Scale float64 `json:"scale,omitempty"`
	Level string  `json:"level,omitempty"`
}

// Manager walks the degradation ladder.
type Manager struct {
	cfg     Config
	levels  [domain.LevelEmergency + 1]domain.DegradationLevel
	applier Applier
	metrics *metrics.Metrics
	log     *slog.Logger

	// op serializes ladder walks; mu guards state for readers.
	op sync.Mutex
	mu sync.RWMutex

	current     int
	features    map[string]domain.FeatureState
	modes       map[string]bool
	params      map[string]Parameter
	history     *history.Ring[domain.DegradationResult]
	transitions *history.Ring[Transition]
	initialized bool
}

// NewManager creates a manager at level 0. Call Initialize before use.
func NewManager(cfg Config, applier Applier, m *metrics.Metrics, log *slog.Logger) *Manager {
	cfg = cfg.withDefaults()
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		cfg:         cfg,
		levels:      DefaultLevels(),
		applier:     applier,
		metrics:     m,
		log:         log.With("component", "degradation"),
		history:     history.NewRing[domain.DegradationResult](cfg.HistorySize),
		transitions: history.NewRing[Transition](transitionLimit),
	}
}

// Initialize sets every feature to enabled at full quality.
func (m *Manager) Initialize() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked()
	m.current = domain.LevelNormal
	m.initialized = true
	m.log.Info("Degradation manager initialized", "features", len(m.features))
	return nil
}

func (m *Manager) resetLocked() {
	now := time.Now()
	m.features = make(map[string]domain.FeatureState, len(Features))
	for _, f := range Features {
		m.features[f] = domain.FeatureState{Enabled: true, Quality: 1.0, LastModified: now}
	}
	m.modes = make(map[string]bool)
	m.params = make(map[string]Parameter)
}

// TargetLevel computes where an error should push the ladder from the
// current level.
func (m *Manager) TargetLevel(ce domain.ClassifiedError, failed *domain.ExecutionResult) int {
	return m.targetFrom(m.CurrentLevel(), ce, failed)
}

func (m *Manager) targetFrom(current int, ce domain.ClassifiedError, failed *domain.ExecutionResult) int {
	esc := m.cfg.Escalation
	target := current + 1

	switch ce.Classification.Severity.Level {
	case domain.SeverityCritical:
		target += esc.Critical
	case domain.SeverityHigh:
		target += esc.High
	case domain.SeverityMedium:
		target += esc.Medium
	default:
		target = max(1, target)
	}

	target += esc.DomainBonus[ce.Detector]

	if failed != nil && failed.Attempts > 1 {
		target += esc.RepeatedFailure
	}
	return min(max(target, domain.LevelNormal), domain.LevelEmergency)
}

// InitiateDegradation escalates in response to an error and, optionally, the
// recovery attempt that failed for it. The target is computed from the level
// left by any walk already in progress.
func (m *Manager) InitiateDegradation(ctx context.Context, ce domain.ClassifiedError, failed *domain.ExecutionResult) (domain.DegradationResult, error) {
	if !m.isInitialized() {
		return domain.DegradationResult{}, fmt.Errorf("failed to degrade for %s: %w", ce.Detector, domain.ErrNotInitialized)
	}

	m.op.Lock()
	defer m.op.Unlock()

	current := m.CurrentLevel()
	target := m.targetFrom(current, ce, failed)
	m.log.Debug("Degradation requested",
		"detector", ce.Detector,
		"severity", ce.Classification.Severity.Level,
		"current", current,
		"target", target,
	)
	return m.degrade(ctx, target, ReasonEscalate, true), nil
}

// DegradeToLevel executes every level in (current, target] in order.
func (m *Manager) DegradeToLevel(ctx context.Context, target int) (domain.DegradationResult, error) {
	if !m.isInitialized() {
		return domain.DegradationResult{}, fmt.Errorf("failed to degrade to level %d: %w", target, domain.ErrNotInitialized)
	}
	if !validLevel(target) {
		return domain.DegradationResult{}, fmt.Errorf("failed to degrade to level %d: %w", target, domain.ErrInvalidLevel)
	}

	m.op.Lock()
	defer m.op.Unlock()
	return m.degrade(ctx, target, ReasonEscalate, true), nil
}

// EnterEmergencyMode degrades straight to the top of the ladder.
func (m *Manager) EnterEmergencyMode(ctx context.Context) (domain.DegradationResult, error) {
	if !m.isInitialized() {
		return domain.DegradationResult{}, fmt.Errorf("failed to enter emergency mode: %w", domain.ErrNotInitialized)
	}
	m.op.Lock()
	defer m.op.Unlock()
	m.log.Error("Entering emergency mode", "current", m.CurrentLevel())
	return m.degrade(ctx, domain.LevelEmergency, ReasonEmergency, true), nil
}

// degrade must be called with op held. Replays pass record=false so only
// the enclosing restore is recorded.
func (m *Manager) degrade(ctx context.Context, target int, reason string, record bool) domain.DegradationResult {
	start := time.Now()
	from := m.CurrentLevel()

	if target <= from {
		return domain.DegradationResult{
			Success:         true,
			Action:          "no_change",
			PreviousLevel:   from,
			CurrentLevel:    from,
			ActionsExecuted: []domain.ExecutedAction{},
			Timestamp:       start,
		}
	}

	executed := make([]domain.ExecutedAction, 0)
	for level := from + 1; level <= target; level++ {
		for _, action := range m.levels[level].Actions {
			outcome, err := m.execute(ctx, level, action)
			if err != nil {
				m.log.Error("Degradation aborted",
					"level", level,
					"action", action.Type,
					"target", action.Target,
					"error", err,
				)
				return domain.DegradationResult{
					Success:         false,
					Action:          "degrade",
					PreviousLevel:   from,
					CurrentLevel:    from,
					ActionsExecuted: executed,
					ExecutionTime:   time.Since(start),
					Timestamp:       start,
					Error:           err.Error(),
				}
			}
			executed = append(executed, domain.ExecutedAction{Level: level, Action: action, Result: outcome})
		}
	}

	res := domain.DegradationResult{
		Success:         true,
		Action:          "degrade",
		PreviousLevel:   from,
		CurrentLevel:    target,
		ActionsExecuted: executed,
		ExecutionTime:   time.Since(start),
		Timestamp:       start,
	}

	m.mu.Lock()
	m.current = target
	if record {
		m.history.Push(res)
		m.transitions.Push(NewTransition(from, target, reason))
	}
	disabled := m.disabledLocked()
	m.mu.Unlock()

	if record {
		m.metrics.ObserveLevelChange(from, target)
	}
	m.metrics.SetDisabledFeatures(len(disabled))
	m.log.Warn("Degradation level raised",
		"from", from,
		"to", target,
		"name", m.levels[target].Name,
		"actions", len(executed),
		"reason", reason,
	)
	return res
}

// execute applies one action. Hook errors and panics become errors; an
// action that names an unknown feature is reported, not failed.
func (m *Manager) execute(ctx context.Context, level int, action domain.DegradationAction) (outcome domain.ActionOutcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("action %s on %s panicked: %v", action.Type, action.Target, r)
		}
	}()

	if m.applier != nil {
		if err := m.applier(ctx, level, action); err != nil {
			return domain.ActionOutcome{}, fmt.Errorf("failed to apply %s on %s: %w", action.Type, action.Target, err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()

	switch action.Type {
	case domain.ActionReduceQuality:
		return m.updateFeatures(action.Target, func(s *domain.FeatureState) {
			s.Quality = max(minQuality, s.Quality-action.Amount)
			s.LastModified = now
		}), nil
	case domain.ActionDisable:
		return m.updateFeatures(action.Target, func(s *domain.FeatureState) {
			s.Enabled = false
			s.LastModified = now
		}), nil
	case domain.ActionEnable:
		if members := resolve(action.Target); members != nil {
			return m.updateFeatures(action.Target, func(s *domain.FeatureState) {
				s.Enabled = true
				s.LastModified = now
			}), nil
		}
		m.modes[action.Target] = true
		return domain.ActionOutcome{Success: true, Affected: []string{action.Target}}, nil
	case domain.ActionReduce:
		m.params[action.Target] = Parameter{Scale: 1 - action.Amount}
		return domain.ActionOutcome{Success: true, Affected: []string{action.Target}}, nil
	case domain.ActionOptimize:
		m.params[action.Target] = Parameter{Level: action.Level}
		return domain.ActionOutcome{Success: true, Affected: []string{action.Target}}, nil
	default:
		m.log.Warn("Unknown degradation action", "type", action.Type, "target", action.Target)
		return domain.ActionOutcome{Success: false, Reason: "unknown_action"}, nil
	}
}

func (m *Manager) updateFeatures(target string, fn func(*domain.FeatureState)) domain.ActionOutcome {
	members := resolve(target)
	if len(members) == 0 {
		return domain.ActionOutcome{Success: false, Reason: "feature_not_found"}
	}
	for _, f := range members {
		s := m.features[f]
		fn(&s)
		m.features[f] = s
	}
	return domain.ActionOutcome{Success: true, Affected: slices.Clone(members)}
}

// RestoreToLevel resets every feature and replays the ladder up to target.
func (m *Manager) RestoreToLevel(ctx context.Context, target int) (domain.DegradationResult, error) {
	if !m.isInitialized() {
		return domain.DegradationResult{}, fmt.Errorf("failed to restore to level %d: %w", target, domain.ErrNotInitialized)
	}
	if !validLevel(target) {
		return domain.DegradationResult{}, fmt.Errorf("failed to restore to level %d: %w", target, domain.ErrInvalidLevel)
	}

	m.op.Lock()
	defer m.op.Unlock()

	start := time.Now()
	from := m.CurrentLevel()
	if target >= from {
		return domain.DegradationResult{
			Success:         true,
			Action:          "no_change",
			PreviousLevel:   from,
			CurrentLevel:    from,
			ActionsExecuted: []domain.ExecutedAction{},
			Timestamp:       start,
		}, nil
	}

	m.mu.Lock()
	m.resetLocked()
	m.current = domain.LevelNormal
	m.mu.Unlock()

	res := domain.DegradationResult{
		Success:         true,
		Action:          "restore",
		PreviousLevel:   from,
		CurrentLevel:    domain.LevelNormal,
		ActionsExecuted: []domain.ExecutedAction{},
		Timestamp:       start,
	}
	if target > domain.LevelNormal {
		replay := m.degrade(ctx, target, ReasonRestore, false)
		res.Success = replay.Success
		res.CurrentLevel = replay.CurrentLevel
		res.ActionsExecuted = replay.ActionsExecuted
		res.Error = replay.Error
	}
	res.ExecutionTime = time.Since(start)

	m.mu.Lock()
	m.history.Push(res)
	m.transitions.Push(NewTransition(from, res.CurrentLevel, ReasonRestore))
	disabled := m.disabledLocked()
	m.mu.Unlock()

	m.metrics.ObserveLevelChange(from, res.CurrentLevel)
	m.metrics.SetDisabledFeatures(len(disabled))
	m.log.Info("Degradation level restored", "from", from, "to", res.CurrentLevel, "success", res.Success)
	return res, nil
}

func (m *Manager) isInitialized() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.initialized
}

// CurrentLevel returns the current ladder position.
func (m *Manager) CurrentLevel() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Levels returns the ladder definition.
func (m *Manager) Levels() []domain.DegradationLevel {
	return slices.Clone(m.levels[:])
}

// FeatureStates returns a copy of every feature's state.
func (m *Manager) FeatureStates() map[string]domain.FeatureState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return maps.Clone(m.features)
}

// ActiveModes returns the enabled special modes, sorted.
func (m *Manager) ActiveModes() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeModesLocked()
}

func (m *Manager) activeModesLocked() []string {
	out := make([]string, 0, len(m.modes))
	for name, on := range m.modes {
		if on {
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return out
}

// Parameters returns recorded parameter adjustments.
func (m *Manager) Parameters() map[string]Parameter {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return maps.Clone(m.params)
}

// History returns recorded degradation results, oldest first.
func (m *Manager) History() []domain.DegradationResult {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.history.Items()
}

// Transitions returns the most recent level changes, oldest first.
func (m *Manager) Transitions() []Transition {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.transitions.Items()
}

// Statistics summarizes the manager's state and history.
func (m *Manager) Statistics() domain.DegradationStatistics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	items := m.history.Items()
	stats := domain.DegradationStatistics{
		CurrentLevel:     m.current,
		MaxLevel:         domain.LevelEmergency,
		TotalEvents:      len(items),
		FeatureCount:     len(m.features),
		DisabledFeatures: m.disabledLocked(),
		ActiveModes:      m.activeModesLocked(),
	}
	if len(items) > 0 {
		sum := 0
		for _, r := range items {
			sum += r.CurrentLevel
		}
		stats.AverageLevel = float64(sum) / float64(len(items))
	}
	return stats
}

func (m *Manager) disabledLocked() []string {
	out := make([]string, 0)
	for _, f := range Features {
		if s, ok := m.features[f]; ok && !s.Enabled {
			out = append(out, f)
		}
	}
	return out
}
