package detection

import "time"

// FrameSource reports the interval between the two most recent frames.
type FrameSource interface {
	LastFrameInterval() (time.Duration, bool)
}

// HeapSource reports heap usage against a limit. ok is false when the
// platform exposes no limit.
type HeapSource interface {
	HeapUsage() (used, limit uint64, ok bool)
}

// SampleSource reports the latest latency-style measurement in
// milliseconds. ok is false when nothing new was measured.
type SampleSource interface {
	Sample() (ms float64, ok bool)
}

// Sources bundles the optional capability ports for the default detectors.
// Any nil source turns its detector into a no-op.
type Sources struct {
	Frame     FrameSource
	Heap      HeapSource
	Rendering SampleSource
	Network   SampleSource
	Script    SampleSource
	Resource  SampleSource
}
