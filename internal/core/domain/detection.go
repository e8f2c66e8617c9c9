package domain

import (
	"fmt"
	"time"
)

// Domain names one monitored performance dimension.
type Domain string

const (
	DomainFrameRate  Domain = "frameRate"
	DomainMemory     Domain = "memory"
	DomainRendering  Domain = "rendering"
	DomainNetwork    Domain = "network"
	DomainJavaScript Domain = "javascript"
	DomainResource   Domain = "resource"
)

// Domains lists every domain in detection order.
var Domains = []Domain{
	DomainFrameRate,
	DomainMemory,
	DomainRendering,
	DomainNetwork,
	DomainJavaScript,
	DomainResource,
}

// DetectionLevel is the raw level a detector attaches to an event.
type DetectionLevel string

const (
	LevelCritical DetectionLevel = "critical"
	LevelWarning  DetectionLevel = "warning"
	LevelInfo     DetectionLevel = "info"
)

// Direction tells which way a metric gets worse.
type Direction int

const (
	HigherIsWorse Direction = iota
	LowerIsWorse
)

// DirectionOf returns the comparison direction for a domain.
func DirectionOf(d Domain) Direction {
	if d == DomainFrameRate {
		return LowerIsWorse
	}
	return HigherIsWorse
}

// Threshold is the per-domain {critical, warning, target} triple.
type Threshold struct {
	Critical float64 `json:"critical" yaml:"critical"`
	Warning  float64 `json:"warning"  yaml:"warning"`
	Target   float64 `json:"target"   yaml:"target"`
}

// Thresholds maps each domain to its threshold triple.
type Thresholds map[Domain]Threshold

// DefaultThresholds returns the starting threshold table. Frame rate is in
// fps, memory is a heap usage ratio, everything else is milliseconds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		DomainFrameRate:  {Critical: 15, Warning: 30, Target: 60},
		DomainMemory:     {Critical: 0.9, Warning: 0.8, Target: 0.5},
		DomainRendering:  {Critical: 50, Warning: 30, Target: 16.67},
		DomainNetwork:    {Critical: 10000, Warning: 5000, Target: 1000},
		DomainJavaScript: {Critical: 100, Warning: 50, Target: 10},
		DomainResource:   {Critical: 20000, Warning: 10000, Target: 2000},
	}
}

// Validate checks that critical is strictly worse than warning, and warning
// strictly worse than target, in the given direction.
func (t Threshold) Validate(dir Direction) error {
	ok := false
	switch dir {
	case LowerIsWorse:
		ok = t.Critical < t.Warning && t.Warning < t.Target
	default:
		ok = t.Critical > t.Warning && t.Warning > t.Target
	}
	if !ok {
		return fmt.Errorf("%w: critical=%v warning=%v target=%v", ErrInvalidThreshold, t.Critical, t.Warning, t.Target)
	}
	return nil
}

// Evaluate applies the emission rule to one sample: critical when the value
// is at least as bad as Critical, warning when strictly worse than Warning.
func (t Threshold) Evaluate(value float64, dir Direction) (DetectionLevel, bool) {
	switch dir {
	case LowerIsWorse:
		if value <= t.Critical {
			return LevelCritical, true
		}
		if value < t.Warning {
			return LevelWarning, true
		}
	default:
		if value >= t.Critical {
			return LevelCritical, true
		}
		if value > t.Warning {
			return LevelWarning, true
		}
	}
	return "", false
}

// Baseline is the reference distribution of synthetic task timings,
// measured once at startup. Times are in milliseconds.
type Baseline struct {
	AverageTaskTime   float64   `json:"averageTaskTime"`
	MinTaskTime       float64   `json:"minTaskTime"`
	MaxTaskTime       float64   `json:"maxTaskTime"`
	StandardDeviation float64   `json:"standardDeviation"`
	Samples           int       `json:"samples"`
	Timestamp         time.Time `json:"timestamp"`
}

// DetectedError is the raw event a detector emits.
type DetectedError struct {
	Type      Domain             `json:"type"`
	Level     DetectionLevel     `json:"level"`
	Metrics   map[string]float64 `json:"metrics"`
	Timestamp time.Time          `json:"timestamp"`
}

// EnrichedError is a DetectedError stamped by the registry.
type EnrichedError struct {
	DetectedError
	Detector Domain    `json:"detector"`
	Baseline *Baseline `json:"baseline,omitempty"`
	// LastOccurrence is when the same detector last fired, zero if never.
	LastOccurrence time.Time `json:"lastOccurrence,omitzero"`
}

// DetectorStatus is a read-only diagnostic snapshot of one detector.
type DetectorStatus struct {
	Name        Domain             `json:"name"`
	Initialized bool               `json:"initialized"`
	Available   bool               `json:"available"`
	Thresholds  Threshold          `json:"thresholds"`
	LastValue   float64            `json:"lastValue"`
	Detections  int                `json:"detections"`
	Extra       map[string]float64 `json:"extra,omitempty"`
}
