package domain

import (
	"errors"
	"testing"
)

func TestDefaultThresholds_Ordering(t *testing.T) {
	for d, th := range DefaultThresholds() {
		if err := th.Validate(DirectionOf(d)); err != nil {
			t.Errorf("%s: %v", d, err)
		}
	}
	if len(DefaultThresholds()) != len(Domains) {
		t.Errorf("expected %d domains, got %d", len(Domains), len(DefaultThresholds()))
	}
}

func TestThreshold_ValidateRejectsMisordered(t *testing.T) {
	bad := Threshold{Critical: 30, Warning: 15, Target: 60}
	if err := bad.Validate(LowerIsWorse); !errors.Is(err, ErrInvalidThreshold) {
		t.Errorf("expected ErrInvalidThreshold, got %v", err)
	}
	equal := Threshold{Critical: 0.8, Warning: 0.8, Target: 0.5}
	if err := equal.Validate(HigherIsWorse); err == nil {
		t.Error("expected error for equal critical and warning")
	}
}

func TestThreshold_Evaluate(t *testing.T) {
	fps := Threshold{Critical: 15, Warning: 30, Target: 60}
	mem := Threshold{Critical: 0.9, Warning: 0.8, Target: 0.5}

	tests := []struct {
		name  string
		th    Threshold
		dir   Direction
		value float64
		level DetectionLevel
		fire  bool
	}{
		{"fps healthy", fps, LowerIsWorse, 60, "", false},
		{"fps at warning", fps, LowerIsWorse, 30, "", false},
		{"fps below warning", fps, LowerIsWorse, 29.9, LevelWarning, true},
		{"fps at critical", fps, LowerIsWorse, 15, LevelCritical, true},
		{"fps below critical", fps, LowerIsWorse, 5, LevelCritical, true},
		{"mem healthy", mem, HigherIsWorse, 0.5, "", false},
		{"mem at warning", mem, HigherIsWorse, 0.8, "", false},
		{"mem above warning", mem, HigherIsWorse, 0.85, LevelWarning, true},
		{"mem at critical", mem, HigherIsWorse, 0.9, LevelCritical, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level, fire := tt.th.Evaluate(tt.value, tt.dir)
			if fire != tt.fire || level != tt.level {
				t.Errorf("Evaluate(%v) = (%q, %v), want (%q, %v)", tt.value, level, fire, tt.level, tt.fire)
			}
		})
	}
}
