package control

import (
	"context"
	"fmt"
	"math"

	"github.com/vietddude/perfguard/internal/core/domain"
)

// metricKeys is the primary metric each detector reports.
var metricKeys = map[domain.Domain]string{
	domain.DomainFrameRate:  "fps",
	domain.DomainMemory:     "usage",
	domain.DomainRendering:  "renderTime",
	domain.DomainNetwork:    "latency",
	domain.DomainJavaScript: "duration",
	domain.DomainResource:   "loadTime",
}

// Simulate injects a synthetic detection as if detector d had fired at
// level. The value is taken from the live thresholds so the event is
// classified like a real one.
func (s *System) Simulate(ctx context.Context, d domain.Domain, level domain.DetectionLevel) error {
	key, ok := metricKeys[d]
	if !ok {
		return fmt.Errorf("failed to simulate %q: %w", d, domain.ErrUnknownDomain)
	}
	th, ok := s.registry.Thresholds()[d]
	if !ok {
		return fmt.Errorf("failed to simulate %q: %w", d, domain.ErrUnknownDomain)
	}

	s.registry.Dispatch(ctx, d, domain.DetectedError{
		Type:  d,
		Level: level,
		Metrics: map[string]float64{
			key:         simulatedValue(th, domain.DirectionOf(d), level),
			"simulated": 1,
		},
	})
	return nil
}

// simulatedValue picks a value that evaluates to level. Critical values sit
// a tenth of the warning band past the critical threshold so strict
// comparisons downstream also see them as critical.
func simulatedValue(th domain.Threshold, dir domain.Direction, level domain.DetectionLevel) float64 {
	band := th.Critical - th.Warning
	switch level {
	case domain.LevelCritical:
		if dir == domain.LowerIsWorse {
			return th.Critical - math.Abs(band)*0.1
		}
		return th.Critical + math.Abs(band)*0.1
	case domain.LevelWarning:
		return (th.Warning + th.Critical) / 2
	default:
		return th.Warning
	}
}
