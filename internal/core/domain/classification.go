package domain

import "time"

// SeverityLevel is the bucketed severity score.
type SeverityLevel string

const (
	SeverityLow      SeverityLevel = "low"
	SeverityMedium   SeverityLevel = "medium"
	SeverityHigh     SeverityLevel = "high"
	SeverityCritical SeverityLevel = "critical"
)

// Trend describes how fast errors are arriving.
type Trend string

const (
	TrendIncreasing       Trend = "increasing"
	TrendDecreasing       Trend = "decreasing"
	TrendStable           Trend = "stable"
	TrendInsufficientData Trend = "insufficient_data"
)

// SeverityComponents are the four weighted inputs to the severity score.
type SeverityComponents struct {
	Impact         float64 `json:"impact"`
	Frequency      float64 `json:"frequency"`
	UserExperience float64 `json:"userExperience"`
	Recoverability float64 `json:"recoverability"`
}

// Severity is the composite score and its bucket.
type Severity struct {
	Score      float64            `json:"score"`
	Level      SeverityLevel      `json:"level"`
	Components SeverityComponents `json:"components"`
}

// Clustering reports whether one detector dominates recent history.
type Clustering struct {
	Clustered        bool   `json:"clustered"`
	DominantDetector Domain `json:"dominantDetector,omitempty"`
}

// Correlation lists other detectors that fired close to the current event.
type Correlation struct {
	HasCorrelation bool     `json:"hasCorrelation"`
	CorrelatedWith []Domain `json:"correlatedWith"`
}

// Patterns is the pattern analyzer's view of an event.
type Patterns struct {
	Recognized  bool        `json:"recognized"`
	Type        string      `json:"type,omitempty"`
	Confidence  float64     `json:"confidence"`
	Trend       Trend       `json:"trend"`
	Clustering  Clustering  `json:"clustering"`
	Correlation Correlation `json:"correlation"`
}

// Rule is the static classification metadata for one detector.
type Rule struct {
	Category           string        `json:"category"`
	Subcategory        string        `json:"subcategory"`
	Priority           SeverityLevel `json:"priority"`
	Recoverable        bool          `json:"recoverable"`
	DegradationOptions []string      `json:"degradationOptions"`
}

// Classification is everything the classifier adds to an event.
type Classification struct {
	Rule
	Severity     Severity  `json:"severity"`
	Patterns     Patterns  `json:"patterns"`
	ClassifiedAt time.Time `json:"classifiedAt"`
	Confidence   float64   `json:"confidence"`
}

// ClassifiedError is an EnrichedError with its classification.
type ClassifiedError struct {
	EnrichedError
	Classification Classification `json:"classification"`
}

// HistoryEntry is one record in the pattern analyzer's ring.
type HistoryEntry struct {
	Detector  Domain        `json:"detector"`
	Timestamp time.Time     `json:"timestamp"`
	Severity  SeverityLevel `json:"severity"`
}
