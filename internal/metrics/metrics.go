package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the collectors for every pipeline stage. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	// DetectionsTotal tracks emitted detector events
	DetectionsTotal *prometheus.CounterVec

	// DetectorFailures tracks detector ticks that errored or panicked
	DetectorFailures *prometheus.CounterVec

	// CycleDuration tracks the wall time of one detection cycle
	CycleDuration prometheus.Histogram

	// ClassificationsTotal tracks classified errors by severity
	ClassificationsTotal *prometheus.CounterVec

	// SeverityScore tracks the distribution of severity scores
	SeverityScore *prometheus.HistogramVec

	// RecoveryExecutions tracks recovery attempts by outcome
	RecoveryExecutions *prometheus.CounterVec

	// RecoveryDuration tracks strategy execution time
	RecoveryDuration *prometheus.HistogramVec

	// CircuitBreakerState tracks strategy breakers (0=closed, 1=half-open, 2=open)
	CircuitBreakerState *prometheus.GaugeVec

	// DegradationLevel is the current degradation level
	DegradationLevel prometheus.Gauge

	// DegradationTransitions tracks level changes by direction
	DegradationTransitions *prometheus.CounterVec

	// DisabledFeatures is the number of currently disabled features
	DisabledFeatures prometheus.Gauge

	// EventsDropped tracks detector events shed by the rate limiter
	EventsDropped prometheus.Counter

	// HealthScore is the 0-100 system health score
	HealthScore prometheus.Gauge

	// ProbeLatency tracks network probe round trips
	ProbeLatency *prometheus.HistogramVec
}

// NewMetrics registers all collectors with reg. A nil reg uses a private
// registry that is not exported anywhere.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	return &Metrics{
		DetectionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "perfguard_detections_total",
			Help: "Total number of detector events",
		}, []string{"detector", "level"}),

		DetectorFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "perfguard_detector_failures_total",
			Help: "Total number of failed detector ticks",
		}, []string{"detector"}),

		CycleDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "perfguard_detection_cycle_seconds",
			Help:    "Detection cycle duration in seconds",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
		}),

		ClassificationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "perfguard_classifications_total",
			Help: "Total number of classified errors",
		}, []string{"detector", "severity"}),

		SeverityScore: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "perfguard_severity_score",
			Help:    "Distribution of severity scores",
			Buckets: []float64{.2, .4, .6, .8, 1},
		}, []string{"detector"}),

		RecoveryExecutions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "perfguard_recovery_executions_total",
			Help: "Total number of recovery executions",
		}, []string{"strategy", "result"}),

		RecoveryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "perfguard_recovery_duration_seconds",
			Help:    "Recovery strategy execution time in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"strategy"}),

		CircuitBreakerState: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "perfguard_circuit_breaker_state",
			Help: "Current state of the strategy circuit breaker (0=closed, 1=half-open, 2=open)",
		}, []string{"strategy"}),

		DegradationLevel: f.NewGauge(prometheus.GaugeOpts{
			Name: "perfguard_degradation_level",
			Help: "Current degradation level (0-5)",
		}),

		DegradationTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "perfguard_degradation_transitions_total",
			Help: "Total number of degradation level changes",
		}, []string{"direction"}),

		DisabledFeatures: f.NewGauge(prometheus.GaugeOpts{
			Name: "perfguard_disabled_features",
			Help: "Number of currently disabled features",
		}),

		EventsDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "perfguard_events_dropped_total",
			Help: "Detector events dropped by the rate limiter",
		}),

		HealthScore: f.NewGauge(prometheus.GaugeOpts{
			Name: "perfguard_health_score",
			Help: "System health score (0-100)",
		}),

		ProbeLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "perfguard_probe_latency_seconds",
			Help:    "Network probe latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind", "target", "status"}),
	}
}

func (m *Metrics) ObserveDetection(detector, level string) {
	if m == nil {
		return
	}
	m.DetectionsTotal.WithLabelValues(detector, level).Inc()
}

func (m *Metrics) DetectorFailed(detector string) {
	if m == nil {
		return
	}
	m.DetectorFailures.WithLabelValues(detector).Inc()
}

func (m *Metrics) ObserveCycle(d time.Duration) {
	if m == nil {
		return
	}
	m.CycleDuration.Observe(d.Seconds())
}

func (m *Metrics) ObserveClassification(detector, severity string, score float64) {
	if m == nil {
		return
	}
	m.ClassificationsTotal.WithLabelValues(detector, severity).Inc()
	m.SeverityScore.WithLabelValues(detector).Observe(score)
}

func (m *Metrics) ObserveRecovery(strategy string, success bool, d time.Duration) {
	if m == nil {
		return
	}
	result := "failure"
	if success {
		result = "success"
	}
	m.RecoveryExecutions.WithLabelValues(strategy, result).Inc()
	m.RecoveryDuration.WithLabelValues(strategy).Observe(d.Seconds())
}

func (m *Metrics) SetBreakerState(strategy string, state int) {
	if m == nil {
		return
	}
	m.CircuitBreakerState.WithLabelValues(strategy).Set(float64(state))
}

// ObserveLevelChange records a move between degradation levels.
func (m *Metrics) ObserveLevelChange(from, to int) {
	if m == nil || from == to {
		return
	}
	direction := "escalate"
	if to < from {
		direction = "restore"
	}
	m.DegradationTransitions.WithLabelValues(direction).Inc()
	m.DegradationLevel.Set(float64(to))
}

func (m *Metrics) SetDisabledFeatures(n int) {
	if m == nil {
		return
	}
	m.DisabledFeatures.Set(float64(n))
}

func (m *Metrics) EventDropped() {
	if m == nil {
		return
	}
	m.EventsDropped.Inc()
}

func (m *Metrics) SetHealthScore(score int) {
	if m == nil {
		return
	}
	m.HealthScore.Set(float64(score))
}

func (m *Metrics) ObserveProbe(kind, target string, d time.Duration, ok bool) {
	if m == nil {
		return
	}
	status := "ok"
	if !ok {
		status = "error"
	}
	m.ProbeLatency.WithLabelValues(kind, target, status).Observe(d.Seconds())
}
