package classify

import (
	"sync"
	"time"

	"github.com/vietddude/perfguard/internal/core/domain"
	"github.com/vietddude/perfguard/internal/core/history"
)

const (
	trendWindow         = 5
	recurringWindow     = 3
	clusterMinEntries   = 5
	clusterShare        = 0.6
	recurringConfidence = 0.8
)

// PatternAnalyzer keeps a bounded history of recent events and derives
// trend, clustering and correlation signals from it.
type PatternAnalyzer struct {
	mu                sync.RWMutex
	history           *history.Ring[domain.HistoryEntry]
	correlationWindow time.Duration
}

// NewPatternAnalyzer creates an analyzer holding up to capacity entries.
func NewPatternAnalyzer(capacity int, correlationWindow time.Duration) *PatternAnalyzer {
	if correlationWindow <= 0 {
		correlationWindow = 10 * time.Second
	}
	return &PatternAnalyzer{
		history:           history.NewRing[domain.HistoryEntry](capacity),
		correlationWindow: correlationWindow,
	}
}

// Analyze records the event and returns the patterns seen so far,
// including the event itself.
func (p *PatternAnalyzer) Analyze(e domain.EnrichedError, level domain.SeverityLevel) domain.Patterns {
	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	p.mu.Lock()
	p.history.Push(domain.HistoryEntry{
		Detector:  e.Detector,
		Timestamp: ts,
		Severity:  level,
	})
	entries := p.history.Items()
	p.mu.Unlock()

	patterns := domain.Patterns{
		Trend:       trend(entries),
		Clustering:  clustering(entries),
		Correlation: p.correlation(entries, e.Detector, ts),
	}
	if recurring(entries, e.Detector) {
		patterns.Recognized = true
		patterns.Type = "recurring"
		patterns.Confidence = recurringConfidence
	}
	return patterns
}

// History returns a copy of the recorded entries, oldest first.
func (p *PatternAnalyzer) History() []domain.HistoryEntry {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.history.Items()
}

func trend(entries []domain.HistoryEntry) domain.Trend {
	if len(entries) < trendWindow {
		return domain.TrendInsufficientData
	}
	recent := entries[len(entries)-trendWindow:]
	span := recent[len(recent)-1].Timestamp.Sub(recent[0].Timestamp)
	avg := span / time.Duration(len(recent)-1)

	switch {
	case avg < 5*time.Second:
		return domain.TrendIncreasing
	case avg > 30*time.Second:
		return domain.TrendDecreasing
	default:
		return domain.TrendStable
	}
}

func clustering(entries []domain.HistoryEntry) domain.Clustering {
	if len(entries) < clusterMinEntries {
		return domain.Clustering{}
	}
	counts := make(map[domain.Domain]int)
	var dominant domain.Domain
	for _, e := range entries {
		counts[e.Detector]++
		if counts[e.Detector] > counts[dominant] {
			dominant = e.Detector
		}
	}
	if float64(counts[dominant])/float64(len(entries)) > clusterShare {
		return domain.Clustering{Clustered: true, DominantDetector: dominant}
	}
	return domain.Clustering{}
}

func (p *PatternAnalyzer) correlation(entries []domain.HistoryEntry, detector domain.Domain, ts time.Time) domain.Correlation {
	seen := make(map[domain.Domain]bool)
	with := make([]domain.Domain, 0)
	for _, e := range entries {
		if e.Detector == detector || seen[e.Detector] {
			continue
		}
		d := ts.Sub(e.Timestamp)
		if d < 0 {
			d = -d
		}
		if d < p.correlationWindow {
			seen[e.Detector] = true
			with = append(with, e.Detector)
		}
	}
	return domain.Correlation{
		HasCorrelation: len(with) > 0,
		CorrelatedWith: with,
	}
}

func recurring(entries []domain.HistoryEntry, detector domain.Domain) bool {
	if len(entries) < recurringWindow {
		return false
	}
	for _, e := range entries[len(entries)-recurringWindow:] {
		if e.Detector != detector {
			return false
		}
	}
	return true
}
