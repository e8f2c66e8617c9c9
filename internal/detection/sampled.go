package detection

import (
	"context"
	"log/slog"

	"github.com/vietddude/perfguard/internal/core/domain"
)

// SampledDetector watches a latency-style metric read from a SampleSource.
// Rendering, network, script and resource detection all share it.
type SampledDetector struct {
	*base
	source    SampleSource
	metricKey string
}

func newSampled(name domain.Domain, key string, source SampleSource, th domain.Threshold, log *slog.Logger) *SampledDetector {
	return &SampledDetector{
		base:      newBase(name, th, log),
		source:    source,
		metricKey: key,
	}
}

// NewRenderingDetector watches render time per frame.
func NewRenderingDetector(source SampleSource, th domain.Threshold, log *slog.Logger) *SampledDetector {
	return newSampled(domain.DomainRendering, "renderTime", source, th, log)
}

// NewNetworkDetector watches request latency.
func NewNetworkDetector(source SampleSource, th domain.Threshold, log *slog.Logger) *SampledDetector {
	return newSampled(domain.DomainNetwork, "latency", source, th, log)
}

// NewScriptDetector watches long-running task duration.
func NewScriptDetector(source SampleSource, th domain.Threshold, log *slog.Logger) *SampledDetector {
	return newSampled(domain.DomainJavaScript, "duration", source, th, log)
}

// NewResourceDetector watches resource load time.
func NewResourceDetector(source SampleSource, th domain.Threshold, log *slog.Logger) *SampledDetector {
	return newSampled(domain.DomainResource, "loadTime", source, th, log)
}

func (d *SampledDetector) Initialize(ctx context.Context) error {
	d.markInitialized(d.source != nil)
	return nil
}

func (d *SampledDetector) Detect(ctx context.Context) error {
	if err := d.ready(); err != nil {
		return err
	}
	if d.source == nil {
		return nil
	}
	value, ok := d.source.Sample()
	if !ok {
		return nil
	}
	d.evaluate(ctx, value, map[string]float64{d.metricKey: value})
	return nil
}

func (d *SampledDetector) Status() domain.DetectorStatus {
	return d.status()
}
