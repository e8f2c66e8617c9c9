package degradation

import (
	"time"

	"github.com/vietddude/perfguard/internal/core/domain"
)

// Transition reasons.
const (
	ReasonEscalate  = "escalate"
	ReasonRestore   = "restore"
	ReasonEmergency = "emergency"
)

// Transition represents a level change with metadata.
type Transition struct {
	From      int       `json:"from"`
	To        int       `json:"to"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// NewTransition creates a new transition record.
func NewTransition(from, to int, reason string) Transition {
	return Transition{
		From:      from,
		To:        to,
		Reason:    reason,
		Timestamp: time.Now(),
	}
}

func validLevel(l int) bool {
	return l >= domain.LevelNormal && l <= domain.LevelEmergency
}

// LevelDescription returns a human-readable description of a level.
func LevelDescription(level int) string {
	if !validLevel(level) {
		return "Unknown level"
	}
	l := DefaultLevels()[level]
	return l.Name + " - " + l.Description
}
