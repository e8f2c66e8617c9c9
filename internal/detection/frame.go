package detection

import (
	"context"
	"log/slog"
	"time"

	"github.com/vietddude/perfguard/internal/core/domain"
	"github.com/vietddude/perfguard/internal/core/history"
)

// statusWindow is how many recent fps samples the status average covers.
const statusWindow = 10

// FrameRateDetector turns frame intervals into fps samples.
type FrameRateDetector struct {
	*base
	source  FrameSource
	samples *history.Ring[float64]
}

// NewFrameRateDetector creates a frame-rate detector keeping window samples.
func NewFrameRateDetector(source FrameSource, th domain.Threshold, window int, log *slog.Logger) *FrameRateDetector {
	if window <= 0 {
		window = 60
	}
	return &FrameRateDetector{
		base:    newBase(domain.DomainFrameRate, th, log),
		source:  source,
		samples: history.NewRing[float64](window),
	}
}

func (d *FrameRateDetector) Initialize(ctx context.Context) error {
	d.markInitialized(d.source != nil)
	return nil
}

func (d *FrameRateDetector) Detect(ctx context.Context) error {
	if err := d.ready(); err != nil {
		return err
	}
	if d.source == nil {
		return nil
	}
	interval, ok := d.source.LastFrameInterval()
	if !ok || interval <= 0 {
		return nil
	}

	fps := float64(time.Second) / float64(interval)
	d.mu.Lock()
	d.samples.Push(fps)
	d.mu.Unlock()

	d.evaluate(ctx, fps, map[string]float64{
		"fps":       fps,
		"frameTime": float64(interval) / float64(time.Millisecond),
	})
	return nil
}

// AverageFPS returns the mean of the most recent samples.
func (d *FrameRateDetector) AverageFPS() float64 {
	d.mu.RLock()
	recent := d.samples.Last(statusWindow)
	d.mu.RUnlock()
	if len(recent) == 0 {
		return 0
	}
	var sum float64
	for _, v := range recent {
		sum += v
	}
	return sum / float64(len(recent))
}

func (d *FrameRateDetector) Status() domain.DetectorStatus {
	s := d.status()
	d.mu.RLock()
	count := d.samples.Len()
	d.mu.RUnlock()
	s.Extra = map[string]float64{
		"averageFps": d.AverageFPS(),
		"samples":    float64(count),
	}
	return s
}
