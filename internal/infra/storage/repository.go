package storage

import (
	"context"
	"errors"

	"github.com/vietddude/perfguard/internal/core/domain"
)

// DefaultEventLimit caps bounded event logs.
const DefaultEventLimit = 1000

var (
	// ErrLevelNotFound is returned when no degradation level was saved.
	ErrLevelNotFound = errors.New("degradation level not found")
)

// EventQuery filters Recent. Zero values match everything.
type EventQuery struct {
	Type     domain.EventType
	Detector domain.Domain
	Limit    int
}

// Matches reports whether e satisfies the type and detector filters.
func (q EventQuery) Matches(e domain.Event) bool {
	if q.Type != "" && e.EventType != q.Type {
		return false
	}
	if q.Detector != "" && e.Detector != q.Detector {
		return false
	}
	return true
}

// EventLog stores pipeline events
type EventLog interface {
	// Append stores an event. ID and CreatedAt must be set by the caller.
	Append(ctx context.Context, e domain.Event) error

	// Recent returns matching events, newest first
	Recent(ctx context.Context, q EventQuery) ([]domain.Event, error)

	// Counts returns the number of stored events per type
	Counts(ctx context.Context) (map[domain.EventType]int, error)

	// Close releases the backend
	Close() error
}

// LevelStore persists the degradation level across restarts
type LevelStore interface {
	SaveLevel(ctx context.Context, level int) error
	LoadLevel(ctx context.Context) (int, error)
}
