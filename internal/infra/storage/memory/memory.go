package memory

import (
	"context"
	"sync"

	"github.com/vietddude/perfguard/internal/core/domain"
	"github.com/vietddude/perfguard/internal/core/history"
	"github.com/vietddude/perfguard/internal/infra/storage"
)

var (
	_ storage.EventLog   = (*EventLog)(nil)
	_ storage.LevelStore = (*EventLog)(nil)
)

// EventLog is an in-process bounded event log.
type EventLog struct {
	mu     sync.RWMutex
	events *history.Ring[domain.Event]
	level  int
	saved  bool
}

// NewEventLog creates a log keeping the newest limit events.
func NewEventLog(limit int) *EventLog {
	if limit <= 0 {
		limit = storage.DefaultEventLimit
	}
	return &EventLog{events: history.NewRing[domain.Event](limit)}
}

func (l *EventLog) Append(ctx context.Context, e domain.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events.Push(e)
	return nil
}

func (l *EventLog) Recent(ctx context.Context, q storage.EventQuery) ([]domain.Event, error) {
	l.mu.RLock()
	items := l.events.Items()
	l.mu.RUnlock()

	out := make([]domain.Event, 0)
	for i := len(items) - 1; i >= 0; i-- {
		if !q.Matches(items[i]) {
			continue
		}
		out = append(out, items[i])
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

func (l *EventLog) Counts(ctx context.Context) (map[domain.EventType]int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	counts := make(map[domain.EventType]int)
	for _, e := range l.events.Items() {
		counts[e.EventType]++
	}
	return counts, nil
}

func (l *EventLog) SaveLevel(ctx context.Context, level int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level, l.saved = level, true
	return nil
}

func (l *EventLog) LoadLevel(ctx context.Context) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if !l.saved {
		return 0, storage.ErrLevelNotFound
	}
	return l.level, nil
}

func (l *EventLog) Close() error { return nil }
