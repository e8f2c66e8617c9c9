package recovery

import (
	"context"
	"slices"

	"github.com/vietddude/perfguard/internal/core/domain"
)

// ExecuteFunc runs a strategy against a classified error.
type ExecuteFunc func(ctx context.Context, ce domain.ClassifiedError) (domain.RecoveryResult, error)

// Strategy is a named, severity-gated remediation for one domain.
type Strategy struct {
	Name       string
	Priority   int // lower runs first
	Severities []domain.SeverityLevel
	Execute    ExecuteFunc
}

// Applies reports whether the strategy accepts the given severity.
func (s Strategy) Applies(level domain.SeverityLevel) bool {
	return slices.Contains(s.Severities, level)
}

// Decision is the outcome of strategy selection. A nil Strategy is a valid
// answer meaning nothing applies and the error should escalate.
type Decision struct {
	Error        domain.ClassifiedError
	Strategy     *Strategy
	Alternatives []Strategy
	Reason       string
}

// select filters strategies by severity and orders survivors by priority.
func selectStrategies(all []Strategy, level domain.SeverityLevel) []Strategy {
	out := make([]Strategy, 0, len(all))
	for _, s := range all {
		if s.Applies(level) {
			out = append(out, s)
		}
	}
	slices.SortStableFunc(out, func(a, b Strategy) int {
		return a.Priority - b.Priority
	})
	return out
}

func severities(levels ...domain.SeverityLevel) []domain.SeverityLevel {
	return levels
}

var (
	medHighCrit = severities(domain.SeverityMedium, domain.SeverityHigh, domain.SeverityCritical)
	highCrit    = severities(domain.SeverityHigh, domain.SeverityCritical)
	critOnly    = severities(domain.SeverityCritical)
	medHigh     = severities(domain.SeverityMedium, domain.SeverityHigh)
)
