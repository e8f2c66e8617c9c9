package classify

import (
	"time"

	"github.com/vietddude/perfguard/internal/core/domain"
)

// Severity component weights.
const (
	weightImpact         = 0.4
	weightFrequency      = 0.3
	weightUserExperience = 0.2
	weightRecoverability = 0.1
)

var userExperienceWeights = map[domain.Domain]float64{
	domain.DomainFrameRate:  0.9,
	domain.DomainRendering:  0.8,
	domain.DomainMemory:     0.6,
	domain.DomainNetwork:    0.7,
	domain.DomainJavaScript: 0.5,
	domain.DomainResource:   0.4,
}

// recoveryDifficulty is how hard each domain is to recover from.
var recoveryDifficulty = map[domain.Domain]float64{
	domain.DomainJavaScript: 0.9,
	domain.DomainMemory:     0.7,
	domain.DomainNetwork:    0.6,
	domain.DomainFrameRate:  0.4,
	domain.DomainRendering:  0.3,
	domain.DomainResource:   0.2,
}

// SeverityCalculator scores an event. It holds no state, so the same input
// always yields the same score.
type SeverityCalculator struct{}

// Calculate returns the weighted severity of e.
func (SeverityCalculator) Calculate(e domain.EnrichedError) domain.Severity {
	c := domain.SeverityComponents{
		Impact:         impact(e),
		Frequency:      frequency(e),
		UserExperience: lookup(userExperienceWeights, e.Detector, 0.3),
		Recoverability: lookup(recoveryDifficulty, e.Detector, 0.5),
	}
	score := weightImpact*c.Impact +
		weightFrequency*c.Frequency +
		weightUserExperience*c.UserExperience +
		weightRecoverability*c.Recoverability

	return domain.Severity{
		Score:      score,
		Level:      LevelFor(score),
		Components: c,
	}
}

// LevelFor buckets a severity score.
func LevelFor(score float64) domain.SeverityLevel {
	switch {
	case score >= 0.8:
		return domain.SeverityCritical
	case score >= 0.6:
		return domain.SeverityHigh
	case score >= 0.4:
		return domain.SeverityMedium
	default:
		return domain.SeverityLow
	}
}

func impact(e domain.EnrichedError) float64 {
	switch e.Detector {
	case domain.DomainMemory:
		if v, ok := e.Metrics["usage"]; ok && v > 0.9 {
			return 1.0
		}
	case domain.DomainFrameRate:
		if v, ok := e.Metrics["fps"]; ok && v < 15 {
			return 1.0
		}
	case domain.DomainJavaScript:
		return 0.8
	case domain.DomainRendering:
		if v, ok := e.Metrics["renderTime"]; ok && v > 50 {
			return 0.7
		}
	}
	return 0.5
}

// frequency scores how recently the same detector last fired.
func frequency(e domain.EnrichedError) float64 {
	if e.LastOccurrence.IsZero() {
		return 0.2
	}
	since := e.Timestamp.Sub(e.LastOccurrence)
	switch {
	case since < time.Second:
		return 1.0
	case since < 5*time.Second:
		return 0.7
	case since < 30*time.Second:
		return 0.4
	default:
		return 0.2
	}
}

func lookup(table map[domain.Domain]float64, d domain.Domain, fallback float64) float64 {
	if v, ok := table[d]; ok {
		return v
	}
	return fallback
}
