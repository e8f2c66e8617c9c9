// Package health provides system health scoring and the HTTP status surface.
package health

import (
	"time"

	"github.com/vietddude/perfguard/internal/core/domain"
	"github.com/vietddude/perfguard/internal/degradation"
	"github.com/vietddude/perfguard/internal/detection"
	"github.com/vietddude/perfguard/internal/recovery"
)

// SystemStatus is the banded health score.
type SystemStatus string

const (
	StatusExcellent SystemStatus = "excellent"
	StatusGood      SystemStatus = "good"
	StatusFair      SystemStatus = "fair"
	StatusPoor      SystemStatus = "poor"
	StatusCritical  SystemStatus = "critical"
)

// ScoreWindow is how many recent detections feed the score.
const ScoreWindow = 10

// Score computes the health score from recent detection events. Each event's
// Level carries its classified severity.
func Score(events []domain.Event) int {
	if len(events) > ScoreWindow {
		events = events[:ScoreWindow]
	}
	score := 100
	for _, e := range events {
		switch domain.SeverityLevel(e.Level) {
		case domain.SeverityCritical:
			score -= 20
		case domain.SeverityHigh:
			score -= 10
		default:
			score -= 2
		}
	}
	return max(score, 0)
}

// StatusFor bands a score.
func StatusFor(score int) SystemStatus {
	switch {
	case score >= 90:
		return StatusExcellent
	case score >= 75:
		return StatusGood
	case score >= 60:
		return StatusFair
	case score >= 40:
		return StatusPoor
	default:
		return StatusCritical
	}
}

// Report contains the full system health report.
type Report struct {
	Status       SystemStatus                 `json:"status"`
	Score        int                          `json:"score"`
	Monitoring   bool                         `json:"monitoring"`
	Level        int                          `json:"level"`
	LevelName    string                       `json:"levelName"`
	Detection    detection.Status             `json:"detection"`
	Recovery     domain.RecoveryStatistics    `json:"recovery"`
	Degradation  domain.DegradationStatistics `json:"degradation"`
	Tuning       recovery.Tuning              `json:"tuning"`
	Transitions  []degradation.Transition     `json:"transitions"`
	RecentEvents []domain.Event               `json:"recentEvents"`
	EventCounts  map[domain.EventType]int     `json:"eventCounts"`
	GeneratedAt  time.Time                    `json:"generatedAt"`
}
