package detection

import (
	"context"
	"log/slog"

	"github.com/vietddude/perfguard/internal/core/domain"
)

// MemoryDetector compares heap usage to the platform's heap limit.
type MemoryDetector struct {
	*base
	source HeapSource
}

func NewMemoryDetector(source HeapSource, th domain.Threshold, log *slog.Logger) *MemoryDetector {
	return &MemoryDetector{
		base:   newBase(domain.DomainMemory, th, log),
		source: source,
	}
}

func (d *MemoryDetector) Initialize(ctx context.Context) error {
	available := false
	if d.source != nil {
		_, _, available = d.source.HeapUsage()
	}
	d.markInitialized(available)
	if !available {
		d.log.Debug("Heap limit not exposed, memory detection disabled")
	}
	return nil
}

func (d *MemoryDetector) Detect(ctx context.Context) error {
	if err := d.ready(); err != nil {
		return err
	}
	if d.source == nil {
		return nil
	}
	used, limit, ok := d.source.HeapUsage()
	if !ok || limit == 0 {
		return nil
	}

	usage := float64(used) / float64(limit)
	d.evaluate(ctx, usage, map[string]float64{
		"usage": usage,
		"used":  float64(used),
		"total": float64(limit),
	})
	return nil
}

func (d *MemoryDetector) Status() domain.DetectorStatus {
	return d.status()
}
