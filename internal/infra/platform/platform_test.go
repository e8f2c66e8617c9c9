package platform

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// =============================================================================
// Frame Timer Tests
// =============================================================================

func TestFrameTimer(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := base
	f := NewFrameTimer()
	f.now = func() time.Time { return clock }

	if _, ok := f.LastFrameInterval(); ok {
		t.Error("no interval before two ticks")
	}

	f.Tick()
	if _, ok := f.LastFrameInterval(); ok {
		t.Error("no interval after one tick")
	}

	clock = clock.Add(50 * time.Millisecond)
	f.Tick()
	d, ok := f.LastFrameInterval()
	if !ok || d != 50*time.Millisecond {
		t.Errorf("interval = %v, %v; want 50ms", d, ok)
	}
}

func TestFrameTimerRun(t *testing.T) {
	f := NewFrameTimer()
	ctx, cancel := context.WithCancel(context.Background())
	frames := 0
	done := make(chan struct{})
	go func() {
		f.Run(ctx, time.Millisecond, func() {
			frames++
			if frames == 3 {
				cancel()
			}
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
	if _, ok := f.LastFrameInterval(); !ok {
		t.Error("expected a measured interval")
	}
}

// =============================================================================
// Heap Tests
// =============================================================================

func TestRuntimeHeap_ExplicitLimit(t *testing.T) {
	used, limit, ok := RuntimeHeap{Limit: 1 << 40}.HeapUsage()
	if !ok || limit != 1<<40 || used == 0 {
		t.Errorf("HeapUsage = %d, %d, %v", used, limit, ok)
	}
}

func TestCollectGarbage(t *testing.T) {
	_ = make([]byte, 1<<20)
	// Released bytes depend on the runtime; it only has to return.
	_ = CollectGarbage()
}

// =============================================================================
// Recorder Tests
// =============================================================================

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	if _, ok := r.Sample(); ok {
		t.Error("empty recorder should report nothing")
	}

	r.Record(20 * time.Millisecond)
	r.Record(80 * time.Millisecond)
	r.Record(40 * time.Millisecond)

	ms, ok := r.Sample()
	if !ok || ms != 80 {
		t.Errorf("Sample = %v, %v; want worst 80", ms, ok)
	}
	if _, ok := r.Sample(); ok {
		t.Error("sample must be consumed")
	}

	r.Record(5 * time.Millisecond)
	if ms, _ := r.Sample(); ms != 5 {
		t.Errorf("after read, Sample = %v; want 5", ms)
	}
}

func TestRecorderTime(t *testing.T) {
	r := NewRecorder()
	r.Time(func() { time.Sleep(2 * time.Millisecond) })
	ms, ok := r.Sample()
	if !ok || ms < 2 {
		t.Errorf("Sample = %v, %v", ms, ok)
	}
}

// =============================================================================
// Prober Tests
// =============================================================================

func TestProber_HTTP(t *testing.T) {
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ok.Close()
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer broken.Close()

	rec := NewRecorder()
	p := NewProber(ProbeConfig{HTTP: []string{ok.URL}, Timeout: time.Second}, rec, nil, nil)
	defer p.Close()

	if err := p.ProbeOnce(context.Background()); err != nil {
		t.Fatalf("ProbeOnce: %v", err)
	}
	if _, fresh := rec.Sample(); !fresh {
		t.Error("probe should record latency")
	}

	p = NewProber(ProbeConfig{HTTP: []string{ok.URL, broken.URL}, Timeout: time.Second}, rec, nil, nil)
	defer p.Close()
	if err := p.ProbeOnce(context.Background()); err == nil {
		t.Fatal("expected error from broken target")
	}
	if ms, _ := rec.Sample(); ms != 1000 {
		t.Errorf("failed probe should record the timeout, got %vms", ms)
	}
}

func TestProber_GRPC(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	server := grpc.NewServer()
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(server, hs)
	go func() { _ = server.Serve(lis) }()
	defer server.Stop()

	rec := NewRecorder()
	p := NewProber(ProbeConfig{GRPC: []string{lis.Addr().String()}, Timeout: 2 * time.Second}, rec, nil, nil)
	defer p.Close()

	if err := p.ProbeOnce(context.Background()); err != nil {
		t.Fatalf("ProbeOnce: %v", err)
	}

	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	if err := p.ProbeOnce(context.Background()); err == nil {
		t.Error("expected error for NOT_SERVING")
	}
}

func TestProber_RunWithoutTargets(t *testing.T) {
	p := NewProber(ProbeConfig{}, nil, nil, nil)
	done := make(chan struct{})
	go func() {
		p.Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run without targets should return immediately")
	}
}
