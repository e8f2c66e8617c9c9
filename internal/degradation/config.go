package degradation

import (
	"time"

	"github.com/vietddude/perfguard/internal/core/domain"
)

// Config holds degradation manager settings.
type Config struct {
	HistorySize int              `yaml:"history_size"` // Degradation history capacity (default: 20)
	Escalation  EscalationConfig `yaml:"escalation"`

	// RestoreAfter is the quiet period after which one level is restored.
	// Zero disables automatic restoration.
	RestoreAfter time.Duration `yaml:"restore_after"`
}

// EscalationConfig holds the level increments added on top of current+1
// when computing a target level.
type EscalationConfig struct {
	Critical        int                   `yaml:"critical"`
	High            int                   `yaml:"high"`
	Medium          int                   `yaml:"medium"`
	DomainBonus     map[domain.Domain]int `yaml:"domain_bonus"`
	RepeatedFailure int                   `yaml:"repeated_failure"`
}

// DefaultConfig returns the standard degradation settings.
func DefaultConfig() Config {
	return Config{
		HistorySize:  20,
		Escalation:   DefaultEscalation(),
		RestoreAfter: 30 * time.Second,
	}
}

// DefaultEscalation returns the standard escalation increments.
func DefaultEscalation() EscalationConfig {
	return EscalationConfig{
		Critical: 2,
		High:     1,
		Medium:   0,
		DomainBonus: map[domain.Domain]int{
			domain.DomainMemory:     1,
			domain.DomainJavaScript: 1,
		},
		RepeatedFailure: 1,
	}
}

func (c Config) withDefaults() Config {
	if c.HistorySize <= 0 {
		c.HistorySize = DefaultConfig().HistorySize
	}
	if c.Escalation.isZero() {
		c.Escalation = DefaultEscalation()
	}
	return c
}

// isZero reports an unset escalation section. A partially set section is
// taken as written.
func (e EscalationConfig) isZero() bool {
	return e.Critical == 0 && e.High == 0 && e.Medium == 0 &&
		e.RepeatedFailure == 0 && len(e.DomainBonus) == 0
}
