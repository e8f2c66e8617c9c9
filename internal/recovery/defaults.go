package recovery

import (
	"context"
	"sync"
	"time"

	"github.com/avast/retry-go/v5"

	"github.com/vietddude/perfguard/internal/core/domain"
)

const minQuality = 0.1

// Hooks are optional host capabilities strategies call into. A nil hook is
// skipped and the strategy still succeeds.
type Hooks struct {
	// CollectGarbage forces a collection and returns bytes released.
	CollectGarbage func() uint64
	// ClearCaches drops host-side caches.
	ClearCaches func(ctx context.Context) error
	// ProbeNetwork checks that the network path is healthy again.
	ProbeNetwork func(ctx context.Context) error
	// ReloadResources re-fetches failed resources.
	ReloadResources func(ctx context.Context) error
}

// Tuning is the runtime knob state recovery strategies adjust.
type Tuning struct {
	Quality           float64  `json:"quality"`
	EffectsEnabled    bool     `json:"effectsEnabled"`
	Renderer          string   `json:"renderer"`
	Offline           bool     `json:"offline"`
	SafeMode          bool     `json:"safeMode"`
	FallbackResources bool     `json:"fallbackResources"`
	DisabledFeatures  []string `json:"disabledFeatures"`
}

func defaultTuning() Tuning {
	return Tuning{
		Quality:        1.0,
		EffectsEnabled: true,
		Renderer:       "standard",
	}
}

// tuner guards Tuning for the built-in strategies.
type tuner struct {
	mu sync.Mutex
	t  Tuning
}

func (t *tuner) update(fn func(*Tuning)) Tuning {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(&t.t)
	snap := t.t
	snap.DisabledFeatures = append([]string(nil), t.t.DisabledFeatures...)
	return snap
}

func (t *tuner) snapshot() Tuning {
	return t.update(func(*Tuning) {})
}

func (t *tuner) reduceQuality(factor float64) float64 {
	return t.update(func(s *Tuning) {
		s.Quality *= factor
		if s.Quality < minQuality {
			s.Quality = minQuality
		}
	}).Quality
}

func (t *tuner) disableFeature(name string) {
	t.update(func(s *Tuning) {
		for _, f := range s.DisabledFeatures {
			if f == name {
				return
			}
		}
		s.DisabledFeatures = append(s.DisabledFeatures, name)
	})
}

func result(action string, details map[string]any) domain.RecoveryResult {
	return domain.RecoveryResult{Action: action, Details: details}
}

// defaultStrategies builds the per-domain strategy table.
func (e *Engine) defaultStrategies() map[domain.Domain][]Strategy {
	t := e.tuning
	h := e.hooks

	return map[domain.Domain][]Strategy{
		domain.DomainFrameRate: {
			{Name: "reduce_quality", Priority: 1, Severities: medHighCrit,
				Execute: func(context.Context, domain.ClassifiedError) (domain.RecoveryResult, error) {
					q := t.reduceQuality(0.8)
					return result("quality_reduced", map[string]any{"quality": q}), nil
				}},
			{Name: "disable_effects", Priority: 2, Severities: highCrit,
				Execute: func(context.Context, domain.ClassifiedError) (domain.RecoveryResult, error) {
					t.update(func(s *Tuning) { s.EffectsEnabled = false })
					return result("effects_disabled", nil), nil
				}},
			{Name: "emergency_optimization", Priority: 3, Severities: critOnly,
				Execute: func(context.Context, domain.ClassifiedError) (domain.RecoveryResult, error) {
					q := t.reduceQuality(0.5)
					t.update(func(s *Tuning) { s.EffectsEnabled = false })
					t.disableFeature("non_essential")
					return result("emergency_optimization", map[string]any{"quality": q}), nil
				}},
		},
		domain.DomainMemory: {
			{Name: "garbage_collection", Priority: 1, Severities: medHighCrit,
				Execute: func(context.Context, domain.ClassifiedError) (domain.RecoveryResult, error) {
					if h.CollectGarbage == nil {
						return result("gc_unavailable", map[string]any{"triggered": false}), nil
					}
					freed := h.CollectGarbage()
					return result("gc_triggered", map[string]any{"triggered": true, "freedBytes": freed}), nil
				}},
			{Name: "cache_cleanup", Priority: 2, Severities: highCrit,
				Execute: func(ctx context.Context, _ domain.ClassifiedError) (domain.RecoveryResult, error) {
					if h.ClearCaches != nil {
						if err := h.ClearCaches(ctx); err != nil {
							return domain.RecoveryResult{}, err
						}
					}
					return result("caches_cleared", nil), nil
				}},
			{Name: "memory_pressure_relief", Priority: 3, Severities: critOnly,
				Execute: func(ctx context.Context, _ domain.ClassifiedError) (domain.RecoveryResult, error) {
					details := map[string]any{}
					if h.ClearCaches != nil {
						if err := h.ClearCaches(ctx); err != nil {
							return domain.RecoveryResult{}, err
						}
					}
					if h.CollectGarbage != nil {
						details["freedBytes"] = h.CollectGarbage()
					}
					details["quality"] = t.reduceQuality(0.7)
					return result("memory_pressure_relieved", details), nil
				}},
		},
		domain.DomainRendering: {
			{Name: "optimize_rendering", Priority: 1, Severities: medHighCrit,
				Execute: func(context.Context, domain.ClassifiedError) (domain.RecoveryResult, error) {
					q := t.reduceQuality(0.9)
					return result("rendering_optimized", map[string]any{"quality": q}), nil
				}},
			{Name: "fallback_renderer", Priority: 2, Severities: highCrit,
				Execute: func(context.Context, domain.ClassifiedError) (domain.RecoveryResult, error) {
					t.update(func(s *Tuning) { s.Renderer = "fallback" })
					return result("renderer_switched", map[string]any{"renderer": "fallback"}), nil
				}},
		},
		domain.DomainNetwork: {
			{Name: "retry_request", Priority: 1, Severities: medHigh,
				Execute: func(ctx context.Context, _ domain.ClassifiedError) (domain.RecoveryResult, error) {
					if h.ProbeNetwork == nil {
						return result("request_retried", map[string]any{"probed": false}), nil
					}
					attempts, err := e.retryProbe(ctx, h.ProbeNetwork)
					if err != nil {
						return domain.RecoveryResult{}, err
					}
					return result("request_retried", map[string]any{"probed": true, "attempts": attempts}), nil
				}},
			{Name: "offline_mode", Priority: 2, Severities: highCrit,
				Execute: func(context.Context, domain.ClassifiedError) (domain.RecoveryResult, error) {
					t.update(func(s *Tuning) { s.Offline = true })
					return result("offline_mode_enabled", nil), nil
				}},
		},
		domain.DomainJavaScript: {
			{Name: "safe_mode", Priority: 1, Severities: medHighCrit,
				Execute: func(context.Context, domain.ClassifiedError) (domain.RecoveryResult, error) {
					t.update(func(s *Tuning) { s.SafeMode = true })
					return result("safe_mode_enabled", nil), nil
				}},
			{Name: "feature_disable", Priority: 2, Severities: highCrit,
				Execute: func(_ context.Context, ce domain.ClassifiedError) (domain.RecoveryResult, error) {
					name := "scripting"
					if ce.Classification.Subcategory != "" {
						name = ce.Classification.Subcategory
					}
					t.disableFeature(name)
					return result("feature_disabled", map[string]any{"feature": name}), nil
				}},
		},
		domain.DomainResource: {
			{Name: "reload_resource", Priority: 1, Severities: medHigh,
				Execute: func(ctx context.Context, _ domain.ClassifiedError) (domain.RecoveryResult, error) {
					if h.ReloadResources != nil {
						if err := h.ReloadResources(ctx); err != nil {
							return domain.RecoveryResult{}, err
						}
					}
					return result("resource_reloaded", nil), nil
				}},
			{Name: "fallback_resource", Priority: 2, Severities: highCrit,
				Execute: func(context.Context, domain.ClassifiedError) (domain.RecoveryResult, error) {
					t.update(func(s *Tuning) { s.FallbackResources = true })
					return result("fallback_resources_enabled", nil), nil
				}},
		},
	}
}

// retryProbe re-runs probe with exponential backoff and reports the number
// of attempts it took.
func (e *Engine) retryProbe(ctx context.Context, probe func(context.Context) error) (uint, error) {
	var attempts uint
	base, limit := e.cfg.Retry.BaseDelay, e.cfg.Retry.MaxDelay

	err := retry.New(
		retry.Context(ctx),
		retry.Attempts(e.cfg.Retry.Attempts),
		retry.DelayType(func(n uint, _ error, _ retry.DelayContext) time.Duration {
			d := base << n
			if d <= 0 || d > limit {
				d = limit
			}
			return d
		}),
	).Do(func() error {
		attempts++
		if err := ctx.Err(); err != nil {
			return err
		}
		return probe(ctx)
	})
	return attempts, err
}
