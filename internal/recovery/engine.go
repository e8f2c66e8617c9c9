package recovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/vietddude/perfguard/internal/core/domain"
	"github.com/vietddude/perfguard/internal/core/history"
	"github.com/vietddude/perfguard/internal/metrics"
)

// FailureListener is notified when a recovery attempt fails.
type FailureListener func(ctx context.Context, ce domain.ClassifiedError, res domain.ExecutionResult)

// Engine selects and runs recovery strategies for classified errors.
type Engine struct {
	cfg     Config
	hooks   Hooks
	tuning  *tuner
	metrics *metrics.Metrics
	log     *slog.Logger

	mu         sync.RWMutex
	strategies map[domain.Domain][]Strategy
	breakers   map[string]*gobreaker.CircuitBreaker
	streaks    map[domain.Domain]int
	history    *history.Ring[domain.ExecutionResult]
	listeners  []FailureListener
}

// NewEngine creates an engine with the default strategy table.
func NewEngine(cfg Config, hooks Hooks, m *metrics.Metrics, log *slog.Logger) *Engine {
	cfg = cfg.withDefaults()
	if log == nil {
		log = slog.Default()
	}
	e := &Engine{
		cfg:      cfg,
		hooks:    hooks,
		tuning:   &tuner{t: defaultTuning()},
		metrics:  m,
		log:      log.With("component", "recovery"),
		breakers: make(map[string]*gobreaker.CircuitBreaker),
		streaks:  make(map[domain.Domain]int),
		history:  history.NewRing[domain.ExecutionResult](cfg.HistorySize),
	}
	e.strategies = e.defaultStrategies()
	return e
}

// OnRecoveryFailed registers a listener for failed recoveries.
func (e *Engine) OnRecoveryFailed(l FailureListener) {
	e.mu.Lock()
	e.listeners = append(e.listeners, l)
	e.mu.Unlock()
}

// DetermineStrategy picks the highest-priority strategy applicable to the
// error's severity. The rest of the applicable strategies are returned as
// alternatives.
func (e *Engine) DetermineStrategy(ce domain.ClassifiedError) Decision {
	d := Decision{Error: ce}

	if e.cfg.SkipUnrecoverable && !ce.Classification.Recoverable {
		d.Reason = domain.ReasonUnrecoverable
		return d
	}

	e.mu.RLock()
	candidates := selectStrategies(e.strategies[ce.Detector], ce.Classification.Severity.Level)
	e.mu.RUnlock()

	if len(candidates) == 0 {
		d.Reason = domain.ReasonNoApplicableStrategy
		return d
	}
	d.Strategy = &candidates[0]
	d.Alternatives = candidates[1:]
	return d
}

// ExecuteRecovery runs the decision's strategy. Faults inside the strategy
// are reported through the result and never returned or propagated.
func (e *Engine) ExecuteRecovery(ctx context.Context, d Decision) domain.ExecutionResult {
	if d.Strategy == nil {
		reason := d.Reason
		if reason == "" || reason == domain.ReasonNoApplicableStrategy {
			reason = domain.ReasonNoStrategy
		}
		return domain.ExecutionResult{
			Success:    false,
			Detector:   d.Error.Detector,
			Reason:     reason,
			ExecutedAt: time.Now(),
		}
	}

	s := *d.Strategy
	ce := d.Error
	start := time.Now()

	out, err := e.run(ctx, s, ce)

	// An open breaker hands the error to the next applicable strategy.
	for _, alt := range d.Alternatives {
		if !breakerOpen(err) {
			break
		}
		e.log.Warn("Strategy breaker open, trying alternative",
			"detector", ce.Detector,
			"strategy", s.Name,
			"alternative", alt.Name,
		)
		s = alt
		out, err = e.run(ctx, s, ce)
	}

	res := domain.ExecutionResult{
		Success:       err == nil,
		Strategy:      s.Name,
		Detector:      ce.Detector,
		ExecutionTime: time.Since(start),
		ExecutedAt:    start,
	}
	if err == nil {
		res.Result = &out
	} else {
		res.Error = err.Error()
		if breakerOpen(err) {
			res.Reason = domain.ReasonCircuitOpen
		}
	}

	e.mu.Lock()
	if res.Success {
		e.streaks[ce.Detector] = 0
		res.Attempts = 1
	} else {
		e.streaks[ce.Detector]++
		res.Attempts = e.streaks[ce.Detector]
	}
	e.history.Push(res)
	listeners := append([]FailureListener(nil), e.listeners...)
	e.mu.Unlock()

	e.metrics.ObserveRecovery(s.Name, res.Success, res.ExecutionTime)

	if res.Success {
		e.log.Info("Recovery succeeded",
			"detector", ce.Detector,
			"strategy", s.Name,
			"action", out.Action,
			"duration", res.ExecutionTime,
		)
		return res
	}

	e.log.Error("Recovery failed",
		"detector", ce.Detector,
		"strategy", s.Name,
		"attempts", res.Attempts,
		"reason", res.Reason,
		"error", res.Error,
	)
	for _, l := range listeners {
		e.notify(ctx, l, ce, res)
	}
	return res
}

// Recover is DetermineStrategy followed by ExecuteRecovery.
func (e *Engine) Recover(ctx context.Context, ce domain.ClassifiedError) (Decision, domain.ExecutionResult) {
	d := e.DetermineStrategy(ce)
	return d, e.ExecuteRecovery(ctx, d)
}

func (e *Engine) run(ctx context.Context, s Strategy, ce domain.ClassifiedError) (domain.RecoveryResult, error) {
	if s.Execute == nil {
		return domain.RecoveryResult{}, fmt.Errorf("strategy %s has no executor", s.Name)
	}
	call := func() (res domain.RecoveryResult, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("strategy %s panicked: %v", s.Name, r)
			}
		}()
		return s.Execute(ctx, ce)
	}

	cb := e.breaker(ce.Detector, s.Name)
	if cb == nil {
		return call()
	}
	v, err := cb.Execute(func() (interface{}, error) {
		return call()
	})
	if err != nil {
		return domain.RecoveryResult{}, err
	}
	return v.(domain.RecoveryResult), nil
}

func breakerOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func (e *Engine) breaker(d domain.Domain, name string) *gobreaker.CircuitBreaker {
	if !e.cfg.Breaker.Enabled {
		return nil
	}
	key := string(d) + "/" + name

	e.mu.Lock()
	defer e.mu.Unlock()
	if cb, ok := e.breakers[key]; ok {
		return cb
	}
	maxFailures := e.cfg.Breaker.MaxFailures
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        key,
		MaxRequests: 1,
		Timeout:     e.cfg.Breaker.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			e.metrics.SetBreakerState(name, int(to))
			e.log.Warn("Strategy breaker state changed", "strategy", name, "from", from.String(), "to", to.String())
		},
	})
	e.breakers[key] = cb
	return cb
}

func (e *Engine) notify(ctx context.Context, l FailureListener, ce domain.ClassifiedError, res domain.ExecutionResult) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("Recovery failure listener panicked", "detector", ce.Detector, "panic", r)
		}
	}()
	l(ctx, ce, res)
}

// ReplaceStrategy swaps the named strategy in a domain's table.
func (e *Engine) ReplaceStrategy(d domain.Domain, name string, s Strategy) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	list, ok := e.strategies[d]
	if !ok {
		return fmt.Errorf("failed to replace strategy %s: %w", name, domain.ErrUnknownDomain)
	}
	for i := range list {
		if list[i].Name != name {
			continue
		}
		if s.Name == "" {
			s.Name = name
		}
		list[i] = s
		delete(e.breakers, string(d)+"/"+name)
		e.log.Info("Recovery strategy replaced", "detector", d, "strategy", name)
		return nil
	}
	return fmt.Errorf("failed to replace strategy %s for %s: %w", name, d, domain.ErrUnknownStrategy)
}

// Strategies returns a copy of the strategy table.
func (e *Engine) Strategies() map[domain.Domain][]Strategy {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[domain.Domain][]Strategy, len(e.strategies))
	for d, list := range e.strategies {
		out[d] = append([]Strategy(nil), list...)
	}
	return out
}

// History returns recorded executions, oldest first.
func (e *Engine) History() []domain.ExecutionResult {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.history.Items()
}

// Statistics summarizes the execution history.
func (e *Engine) Statistics() domain.RecoveryStatistics {
	items := e.History()
	stats := domain.RecoveryStatistics{
		Total:      len(items),
		ByStrategy: make(map[string]domain.StrategyStats),
	}
	for _, r := range items {
		s := stats.ByStrategy[r.Strategy]
		s.Total++
		if r.Success {
			s.Successful++
			stats.Successful++
		}
		stats.ByStrategy[r.Strategy] = s
	}
	if stats.Total > 0 {
		stats.SuccessRate = float64(stats.Successful) / float64(stats.Total)
	}
	return stats
}

// Tuning returns the knob state adjusted by the built-in strategies.
func (e *Engine) Tuning() Tuning {
	return e.tuning.snapshot()
}
