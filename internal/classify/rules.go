package classify

import "github.com/vietddude/perfguard/internal/core/domain"

// DefaultRules returns the static classification table, one rule per domain.
func DefaultRules() map[domain.Domain]domain.Rule {
	return map[domain.Domain]domain.Rule{
		domain.DomainFrameRate: {
			Category:           "performance",
			Subcategory:        "rendering",
			Priority:           domain.SeverityHigh,
			Recoverable:        true,
			DegradationOptions: []string{"quality", "effects", "resolution"},
		},
		domain.DomainMemory: {
			Category:           "resource",
			Subcategory:        "memory",
			Priority:           domain.SeverityCritical,
			Recoverable:        true,
			DegradationOptions: []string{"cleanup", "cache", "objects"},
		},
		domain.DomainRendering: {
			Category:           "performance",
			Subcategory:        "graphics",
			Priority:           domain.SeverityHigh,
			Recoverable:        true,
			DegradationOptions: []string{"quality", "effects", "particles"},
		},
		domain.DomainNetwork: {
			Category:           "connectivity",
			Subcategory:        "network",
			Priority:           domain.SeverityMedium,
			Recoverable:        false,
			DegradationOptions: []string{"offline", "retry", "cache"},
		},
		domain.DomainJavaScript: {
			Category:           "code",
			Subcategory:        "execution",
			Priority:           domain.SeverityCritical,
			Recoverable:        false,
			DegradationOptions: []string{"fallback", "disable"},
		},
		domain.DomainResource: {
			Category:           "resource",
			Subcategory:        "loading",
			Priority:           domain.SeverityMedium,
			Recoverable:        true,
			DegradationOptions: []string{"retry", "fallback", "cache"},
		},
	}
}

// UnknownRule is applied to detectors with no table entry.
func UnknownRule() domain.Rule {
	return domain.Rule{
		Category:           "unknown",
		Subcategory:        "unclassified",
		Priority:           domain.SeverityLow,
		Recoverable:        false,
		DegradationOptions: []string{},
	}
}

func cloneRule(r domain.Rule) domain.Rule {
	r.DegradationOptions = append([]string{}, r.DegradationOptions...)
	return r
}
