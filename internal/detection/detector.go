package detection

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vietddude/perfguard/internal/core/domain"
)

// ErrorCallback receives a raw event from a detector.
type ErrorCallback func(ctx context.Context, e domain.DetectedError)

// Detector samples one performance dimension per tick.
type Detector interface {
	// Name returns the domain this detector watches.
	Name() domain.Domain
	// Initialize prepares the detector. Calling it twice is harmless.
	Initialize(ctx context.Context) error
	// Detect takes one sample and emits at most one event.
	Detect(ctx context.Context) error
	// OnError adds a listener. Listeners are never replaced.
	OnError(cb ErrorCallback)
	// UpdateThresholds swaps the detector's thresholds.
	UpdateThresholds(th domain.Threshold) error
	// Status returns a diagnostic snapshot.
	Status() domain.DetectorStatus
}

// base carries the threshold logic and listener fan-out shared by every
// detector.
type base struct {
	name domain.Domain
	dir  domain.Direction
	log  *slog.Logger

	mu          sync.RWMutex
	thresholds  domain.Threshold
	callbacks   []ErrorCallback
	initialized bool
	available   bool
	lastValue   float64
	detections  int
}

func newBase(name domain.Domain, th domain.Threshold, log *slog.Logger) *base {
	if log == nil {
		log = slog.Default()
	}
	return &base{
		name:       name,
		dir:        domain.DirectionOf(name),
		log:        log.With("detector", string(name)),
		thresholds: th,
	}
}

func (b *base) Name() domain.Domain { return b.name }

func (b *base) OnError(cb ErrorCallback) {
	if cb == nil {
		return
	}
	b.mu.Lock()
	b.callbacks = append(b.callbacks, cb)
	b.mu.Unlock()
}

func (b *base) UpdateThresholds(th domain.Threshold) error {
	if err := th.Validate(b.dir); err != nil {
		return fmt.Errorf("failed to update %s thresholds: %w", b.name, err)
	}
	b.mu.Lock()
	b.thresholds = th
	b.mu.Unlock()
	return nil
}

func (b *base) markInitialized(available bool) {
	b.mu.Lock()
	b.initialized = true
	b.available = available
	b.mu.Unlock()
}

func (b *base) ready() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.initialized {
		return fmt.Errorf("%s detector: %w", b.name, domain.ErrNotInitialized)
	}
	return nil
}

func (b *base) status() domain.DetectorStatus {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return domain.DetectorStatus{
		Name:        b.name,
		Initialized: b.initialized,
		Available:   b.available,
		Thresholds:  b.thresholds,
		LastValue:   b.lastValue,
		Detections:  b.detections,
	}
}

// evaluate records value and emits an event if it crosses a threshold.
// It reports whether an event was emitted.
func (b *base) evaluate(ctx context.Context, value float64, metrics map[string]float64) bool {
	b.mu.Lock()
	b.lastValue = value
	level, fire := b.thresholds.Evaluate(value, b.dir)
	if !fire {
		b.mu.Unlock()
		return false
	}
	b.detections++
	callbacks := make([]ErrorCallback, len(b.callbacks))
	copy(callbacks, b.callbacks)
	b.mu.Unlock()

	event := domain.DetectedError{
		Type:      b.name,
		Level:     level,
		Metrics:   metrics,
		Timestamp: time.Now(),
	}
	for _, cb := range callbacks {
		b.notify(ctx, cb, event)
	}
	return true
}

func (b *base) notify(ctx context.Context, cb ErrorCallback, e domain.DetectedError) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("Detector listener panicked", "panic", r)
		}
	}()
	cb(ctx, e)
}
