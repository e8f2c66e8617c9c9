package worker

import (
	"context"
	"log/slog"
	"time"
)

// EventPruner trims an event log down to its newest keep entries.
type EventPruner interface {
	Prune(ctx context.Context, keep int) (int64, error)
}

// Pruner deletes old events based on the retention limit.
type Pruner struct {
	repo     EventPruner
	keep     int
	interval time.Duration
	log      *slog.Logger
}

// NewPruner creates a new Pruner worker.
func NewPruner(repo EventPruner, keep int, interval time.Duration, log *slog.Logger) *Pruner {
	if log == nil {
		log = slog.Default()
	}
	return &Pruner{
		repo:     repo,
		keep:     keep,
		interval: interval,
		log:      log.With("component", "pruner"),
	}
}

// Start runs the pruner loop until ctx is done.
func (p *Pruner) Start(ctx context.Context) {
	if p.keep <= 0 || p.interval <= 0 {
		return // Retention disabled
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	// Initial prune
	p.Prune(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Prune(ctx)
		}
	}
}

// Prune runs one retention pass.
func (p *Pruner) Prune(ctx context.Context) {
	n, err := p.repo.Prune(ctx, p.keep)
	if err != nil {
		p.log.Error("Failed to prune events", "error", err)
		return
	}
	if n > 0 {
		p.log.Debug("Pruned events", "deleted", n, "kept", p.keep)
	}
}
