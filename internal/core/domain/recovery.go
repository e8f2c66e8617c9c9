package domain

import "time"

// Reasons carried by recovery decisions and results.
const (
	ReasonNoApplicableStrategy = "no_applicable_strategy"
	ReasonNoStrategy           = "no_strategy"
	ReasonUnrecoverable        = "unrecoverable"
	ReasonCircuitOpen          = "circuit_open"
)

// RecoveryResult is what a strategy reports after running.
type RecoveryResult struct {
	Action  string         `json:"action"`
	Details map[string]any `json:"details,omitempty"`
}

// ExecutionResult is one recorded recovery attempt.
type ExecutionResult struct {
	Success       bool            `json:"success"`
	Strategy      string          `json:"strategy,omitempty"`
	Detector      Domain          `json:"detector,omitempty"`
	Result        *RecoveryResult `json:"result,omitempty"`
	Error         string          `json:"error,omitempty"`
	Reason        string          `json:"reason,omitempty"`
	Attempts      int             `json:"attempts"`
	ExecutionTime time.Duration   `json:"executionTime"`
	ExecutedAt    time.Time       `json:"executedAt"`
}

// StrategyStats is the per-strategy breakdown of execution history.
type StrategyStats struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
}

// RecoveryStatistics summarizes the execution history.
type RecoveryStatistics struct {
	Total       int                      `json:"total"`
	Successful  int                      `json:"successful"`
	SuccessRate float64                  `json:"successRate"`
	ByStrategy  map[string]StrategyStats `json:"byStrategy"`
}
