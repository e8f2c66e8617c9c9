package domain

import "time"

// Degradation level bounds.
const (
	LevelNormal    = 0
	LevelEmergency = 5
)

// ActionType is the kind of mutation a degradation action performs.
type ActionType string

const (
	ActionReduceQuality ActionType = "reduce_quality"
	ActionDisable       ActionType = "disable"
	ActionEnable        ActionType = "enable"
	ActionReduce        ActionType = "reduce"
	ActionOptimize      ActionType = "optimize"
)

// DegradationAction is one step of a degradation level.
type DegradationAction struct {
	Type   ActionType `json:"type"`
	Target string     `json:"target"`
	Amount float64    `json:"amount,omitempty"`
	Level  string     `json:"level,omitempty"`
}

// DegradationLevel is one rung of the ladder.
type DegradationLevel struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Actions     []DegradationAction `json:"actions"`
}

// FeatureState is the current state of one controllable feature.
type FeatureState struct {
	Enabled      bool      `json:"enabled"`
	Quality      float64   `json:"quality"`
	LastModified time.Time `json:"lastModified"`
}

// ActionOutcome describes what an executed action changed.
type ActionOutcome struct {
	Success  bool     `json:"success"`
	Affected []string `json:"affected,omitempty"`
	Reason   string   `json:"reason,omitempty"`
}

// ExecutedAction records one action and the level it came from.
type ExecutedAction struct {
	Level  int               `json:"level"`
	Action DegradationAction `json:"action"`
	Result ActionOutcome     `json:"result"`
}

// DegradationResult is the outcome of an escalation or restoration.
type DegradationResult struct {
	Success         bool             `json:"success"`
	Action          string           `json:"action,omitempty"`
	PreviousLevel   int              `json:"previousLevel"`
	CurrentLevel    int              `json:"currentLevel"`
	ActionsExecuted []ExecutedAction `json:"actionsExecuted"`
	ExecutionTime   time.Duration    `json:"executionTime"`
	Timestamp       time.Time        `json:"timestamp"`
	Error           string           `json:"error,omitempty"`
}

// DegradationStatistics summarizes the manager's state and history.
type DegradationStatistics struct {
	CurrentLevel     int      `json:"currentLevel"`
	MaxLevel         int      `json:"maxLevel"`
	TotalEvents      int      `json:"totalEvents"`
	AverageLevel     float64  `json:"averageLevel"`
	FeatureCount     int      `json:"featureCount"`
	DisabledFeatures []string `json:"disabledFeatures"`
	ActiveModes      []string `json:"activeModes"`
}
