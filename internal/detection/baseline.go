package detection

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/vietddude/perfguard/internal/core/domain"
)

// BaselineTask is the unit of work timed while establishing the baseline.
type BaselineTask func()

// syntheticTask returns a CPU-bound task of n sqrt operations.
func syntheticTask(n int) BaselineTask {
	return func() {
		var sink float64
		for i := 0; i < n; i++ {
			sink += math.Sqrt(rand.Float64() * 1000)
		}
		_ = sink
	}
}

// MeasureBaseline times task samples times, pausing spacing between runs,
// and reduces the timings to mean, min, max and population stddev.
func MeasureBaseline(ctx context.Context, task BaselineTask, samples int, spacing time.Duration) (*domain.Baseline, error) {
	if samples <= 0 {
		samples = 1
	}
	timings := make([]float64, 0, samples)

	for i := 0; i < samples; i++ {
		start := time.Now()
		task()
		timings = append(timings, float64(time.Since(start))/float64(time.Millisecond))

		if i == samples-1 || spacing <= 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(spacing):
		}
	}

	mean, std := stat.PopMeanStdDev(timings, nil)
	return &domain.Baseline{
		AverageTaskTime:   mean,
		MinTaskTime:       floats.Min(timings),
		MaxTaskTime:       floats.Max(timings),
		StandardDeviation: std,
		Samples:           len(timings),
		Timestamp:         time.Now(),
	}, nil
}
