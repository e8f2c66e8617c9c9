package platform

import (
	"sync"
	"time"
)

// Recorder holds the most recent latency measurement for a sampled
// detector. It satisfies detection.SampleSource.
type Recorder struct {
	mu    sync.Mutex
	ms    float64
	fresh bool
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Record stores a measurement. Until the next Sample the worst value wins.
func (r *Recorder) Record(d time.Duration) {
	ms := float64(d) / float64(time.Millisecond)
	r.mu.Lock()
	if !r.fresh || ms > r.ms {
		r.ms = ms
	}
	r.fresh = true
	r.mu.Unlock()
}

// Time runs fn and records its duration.
func (r *Recorder) Time(fn func()) {
	start := time.Now()
	defer func() { r.Record(time.Since(start)) }()
	fn()
}

// Sample returns the worst unread measurement in milliseconds.
func (r *Recorder) Sample() (float64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.fresh {
		return 0, false
	}
	r.fresh = false
	return r.ms, true
}
