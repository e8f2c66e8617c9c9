package classify

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vietddude/perfguard/internal/core/domain"
	"github.com/vietddude/perfguard/internal/metrics"
)

// Config holds classifier settings.
type Config struct {
	HistorySize       int           `yaml:"history_size"`       // Pattern history capacity (default: 100)
	CorrelationWindow time.Duration `yaml:"correlation_window"` // Cross-detector window (default: 10s)
}

// DefaultConfig returns the standard classifier settings.
func DefaultConfig() Config {
	return Config{
		HistorySize:       100,
		CorrelationWindow: 10 * time.Second,
	}
}

// Classifier turns enriched events into classified ones.
type Classifier struct {
	severity SeverityCalculator
	patterns *PatternAnalyzer
	metrics  *metrics.Metrics
	log      *slog.Logger

	mu          sync.RWMutex
	rules       map[domain.Domain]domain.Rule
	initialized bool
}

// NewClassifier creates a classifier. Call Initialize before Classify.
func NewClassifier(cfg Config, m *metrics.Metrics, log *slog.Logger) *Classifier {
	def := DefaultConfig()
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = def.HistorySize
	}
	if cfg.CorrelationWindow <= 0 {
		cfg.CorrelationWindow = def.CorrelationWindow
	}
	if log == nil {
		log = slog.Default()
	}
	return &Classifier{
		patterns: NewPatternAnalyzer(cfg.HistorySize, cfg.CorrelationWindow),
		metrics:  m,
		log:      log.With("component", "classifier"),
		rules:    make(map[domain.Domain]domain.Rule),
	}
}

// Initialize loads the classification rules.
func (c *Classifier) Initialize() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.initialized {
		return nil
	}
	for d, r := range DefaultRules() {
		if _, overridden := c.rules[d]; !overridden {
			c.rules[d] = r
		}
	}
	c.initialized = true
	return nil
}

// Classify computes the rule, severity, patterns and confidence for e.
// Severity and rule fields depend only on e. Patterns also depend on the
// events classified before, and e is added to that history.
func (c *Classifier) Classify(e domain.EnrichedError) (domain.ClassifiedError, error) {
	c.mu.RLock()
	if !c.initialized {
		c.mu.RUnlock()
		return domain.ClassifiedError{}, fmt.Errorf("failed to classify %s error: %w", e.Detector, domain.ErrNotInitialized)
	}
	rule, ok := c.rules[e.Detector]
	c.mu.RUnlock()
	if !ok {
		rule = UnknownRule()
	}

	sev := c.severity.Calculate(e)
	patterns := c.patterns.Analyze(e, sev.Level)

	ce := domain.ClassifiedError{
		EnrichedError: e,
		Classification: domain.Classification{
			Rule:         cloneRule(rule),
			Severity:     sev,
			Patterns:     patterns,
			ClassifiedAt: time.Now(),
			Confidence:   confidence(e, patterns),
		},
	}

	c.metrics.ObserveClassification(string(e.Detector), string(sev.Level), sev.Score)
	c.log.Debug("Error classified",
		"detector", e.Detector,
		"category", rule.Category,
		"severity", sev.Level,
		"score", sev.Score,
		"trend", patterns.Trend,
		"confidence", ce.Classification.Confidence,
	)
	return ce, nil
}

func confidence(e domain.EnrichedError, p domain.Patterns) float64 {
	conf := 0.5
	if len(e.Metrics) > 0 {
		conf += 0.2
	}
	if p.Recognized {
		conf += 0.2
	}
	if e.Baseline != nil {
		conf += 0.1
	}
	if conf > 1 {
		conf = 1
	}
	return conf
}

// Rules returns a copy of the rule table.
func (c *Classifier) Rules() map[domain.Domain]domain.Rule {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[domain.Domain]domain.Rule, len(c.rules))
	for d, r := range c.rules {
		out[d] = cloneRule(r)
	}
	return out
}

// UpdateRule replaces the rule for one detector.
func (c *Classifier) UpdateRule(d domain.Domain, r domain.Rule) {
	c.mu.Lock()
	c.rules[d] = cloneRule(r)
	c.mu.Unlock()
	c.log.Info("Classification rule updated", "detector", d, "category", r.Category)
}

// History returns the pattern analyzer's entries, oldest first.
func (c *Classifier) History() []domain.HistoryEntry {
	return c.patterns.History()
}
