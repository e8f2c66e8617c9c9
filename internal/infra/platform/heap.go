package platform

import (
	"math"
	"runtime"
	"runtime/debug"
)

// RuntimeHeap reports Go heap usage against the soft memory limit. It
// satisfies detection.HeapSource.
type RuntimeHeap struct {
	// Limit overrides the runtime limit when non-zero.
	Limit uint64
}

// HeapUsage returns live heap bytes and the effective limit. ok is false
// when no limit is configured.
func (h RuntimeHeap) HeapUsage() (used, limit uint64, ok bool) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	limit = h.Limit
	if limit == 0 {
		l := debug.SetMemoryLimit(-1)
		if l <= 0 || l == math.MaxInt64 {
			return ms.HeapAlloc, 0, false
		}
		limit = uint64(l)
	}
	return ms.HeapAlloc, limit, true
}

// CollectGarbage forces a collection, returns freed memory to the OS and
// reports how many heap bytes were released.
func CollectGarbage() uint64 {
	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)
	debug.FreeOSMemory()
	runtime.ReadMemStats(&after)
	if after.HeapAlloc >= before.HeapAlloc {
		return 0
	}
	return before.HeapAlloc - after.HeapAlloc
}
