package platform

import (
	"context"
	"sync"
	"time"
)

// FrameTimer measures the interval between consecutive ticks of a host
// loop. It satisfies detection.FrameSource.
type FrameTimer struct {
	mu       sync.Mutex
	last     time.Time
	interval time.Duration
	now      func() time.Time
}

// NewFrameTimer creates an idle timer.
func NewFrameTimer() *FrameTimer {
	return &FrameTimer{now: time.Now}
}

// Tick marks the start of a frame.
func (f *FrameTimer) Tick() {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.now()
	if !f.last.IsZero() {
		f.interval = now.Sub(f.last)
	}
	f.last = now
}

// LastFrameInterval returns the interval between the two most recent ticks.
func (f *FrameTimer) LastFrameInterval() (time.Duration, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.interval, f.interval > 0
}

// Run ticks at the given target interval until ctx is done, calling work
// once per frame. Slow work or scheduler delay shows up as a longer frame.
func (f *FrameTimer) Run(ctx context.Context, target time.Duration, work func()) {
	ticker := time.NewTicker(target)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.Tick()
			if work != nil {
				work()
			}
		}
	}
}
