package platform

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/vietddude/perfguard/internal/metrics"
)

// Prober measures round-trip latency to configured HTTP and gRPC targets
// and feeds the network recorder.
type Prober struct {
	cfg      ProbeConfig
	recorder *Recorder
	metrics  *metrics.Metrics
	log      *slog.Logger
	client   *http.Client

	mu    sync.Mutex
	conns map[string]*grpc.ClientConn
}

// NewProber creates a prober. recorder may be nil.
func NewProber(cfg ProbeConfig, recorder *Recorder, m *metrics.Metrics, log *slog.Logger) *Prober {
	cfg = cfg.withDefaults()
	if log == nil {
		log = slog.Default()
	}
	return &Prober{
		cfg:      cfg,
		recorder: recorder,
		metrics:  m,
		log:      log.With("component", "prober"),
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		conns: make(map[string]*grpc.ClientConn),
	}
}

// Run probes every target each interval until ctx is done.
func (p *Prober) Run(ctx context.Context) {
	if !p.cfg.Enabled() {
		return
	}
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		_ = p.ProbeOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// ProbeOnce probes every target once. It returns the joined errors of the
// targets that failed.
func (p *Prober) ProbeOnce(ctx context.Context) error {
	var errs []error
	for _, url := range p.cfg.HTTP {
		if err := p.observe(ctx, "http", url, p.probeHTTP); err != nil {
			errs = append(errs, err)
		}
	}
	for _, target := range p.cfg.GRPC {
		if err := p.observe(ctx, "grpc", target, p.probeGRPC); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *Prober) observe(ctx context.Context, kind, target string, probe func(context.Context, string) error) error {
	pctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	start := time.Now()
	err := probe(pctx, target)
	elapsed := time.Since(start)

	p.metrics.ObserveProbe(kind, target, elapsed, err == nil)
	if err != nil {
		// A failed probe counts as a full timeout for detection.
		if p.recorder != nil {
			p.recorder.Record(p.cfg.Timeout)
		}
		p.log.Debug("Probe failed", "kind", kind, "target", target, "error", err)
		return fmt.Errorf("%s probe %s: %w", kind, target, err)
	}
	if p.recorder != nil {
		p.recorder.Record(elapsed)
	}
	return nil
}

func (p *Prober) probeHTTP(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}

func (p *Prober) probeGRPC(ctx context.Context, target string) error {
	conn, err := p.conn(target)
	if err != nil {
		return err
	}
	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		return err
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("status %s", resp.GetStatus())
	}
	return nil
}

func (p *Prober) conn(target string) (*grpc.ClientConn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.conns[target]; ok {
		return c, nil
	}
	addr := strings.TrimPrefix(target, "http://")
	c, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create grpc client for %s: %w", target, err)
	}
	p.conns[target] = c
	return c, nil
}

// Close releases gRPC connections.
func (p *Prober) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var errs []error
	for target, c := range p.conns {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", target, err))
		}
		delete(p.conns, target)
	}
	p.client.CloseIdleConnections()
	return errors.Join(errs...)
}
