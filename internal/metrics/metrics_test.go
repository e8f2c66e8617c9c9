package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	// None of these may panic
	m.ObserveDetection("memory", "critical")
	m.DetectorFailed("memory")
	m.ObserveCycle(time.Millisecond)
	m.ObserveClassification("memory", "high", 0.7)
	m.ObserveRecovery("garbage_collection", true, time.Millisecond)
	m.SetBreakerState("garbage_collection", 2)
	m.ObserveLevelChange(0, 3)
	m.SetDisabledFeatures(4)
	m.EventDropped()
	m.SetHealthScore(80)
	m.ObserveProbe("http", "x", time.Millisecond, true)
}

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ObserveDetection("frameRate", "warning")
	m.ObserveDetection("frameRate", "warning")
	if got := testutil.ToFloat64(m.DetectionsTotal.WithLabelValues("frameRate", "warning")); got != 2 {
		t.Errorf("expected 2 detections, got %v", got)
	}

	m.ObserveRecovery("safe_mode", false, 10*time.Millisecond)
	if got := testutil.ToFloat64(m.RecoveryExecutions.WithLabelValues("safe_mode", "failure")); got != 1 {
		t.Errorf("expected 1 failed recovery, got %v", got)
	}
}

func TestMetrics_LevelChange(t *testing.T) {
	m := NewMetrics(nil)

	m.ObserveLevelChange(0, 3)
	m.ObserveLevelChange(3, 0)
	m.ObserveLevelChange(0, 0) // ignored

	if got := testutil.ToFloat64(m.DegradationLevel); got != 0 {
		t.Errorf("expected level 0, got %v", got)
	}
	if got := testutil.ToFloat64(m.DegradationTransitions.WithLabelValues("escalate")); got != 1 {
		t.Errorf("expected 1 escalation, got %v", got)
	}
	if got := testutil.ToFloat64(m.DegradationTransitions.WithLabelValues("restore")); got != 1 {
		t.Errorf("expected 1 restore, got %v", got)
	}
}
