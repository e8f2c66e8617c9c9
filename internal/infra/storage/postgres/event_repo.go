package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vietddude/perfguard/internal/core/domain"
	"github.com/vietddude/perfguard/internal/infra/storage"
)

var (
	_ storage.EventLog   = (*EventRepo)(nil)
	_ storage.LevelStore = (*EventRepo)(nil)
)

// EventRepo implements storage.EventLog using PostgreSQL.
type EventRepo struct {
	db *DB
}

// NewEventRepo creates a new PostgreSQL event repository.
func NewEventRepo(db *DB) *EventRepo {
	return &EventRepo{db: db}
}

type eventRow struct {
	ID        string    `db:"id"`
	EventType string    `db:"event_type"`
	Detector  string    `db:"detector"`
	Level     string    `db:"level"`
	Message   string    `db:"message"`
	Data      []byte    `db:"data"`
	CreatedAt time.Time `db:"created_at"`
}

// Append inserts an event.
func (r *EventRepo) Append(ctx context.Context, e domain.Event) error {
	data, err := json.Marshal(e.Data)
	if err != nil {
		return fmt.Errorf("failed to encode event data: %w", err)
	}
	if e.Data == nil {
		data = []byte("{}")
	}

	query := `
		INSERT INTO perf_events (id, event_type, detector, level, message, data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = r.db.ExecContext(ctx, query,
		e.ID,
		string(e.EventType),
		string(e.Detector),
		e.Level,
		e.Message,
		data,
		e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

// Recent returns matching events, newest first.
func (r *EventRepo) Recent(ctx context.Context, q storage.EventQuery) ([]domain.Event, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = storage.DefaultEventLimit
	}

	query := `
		SELECT id, event_type, detector, level, message, data, created_at
		FROM perf_events
		WHERE ($1 = '' OR event_type = $1) AND ($2 = '' OR detector = $2)
		ORDER BY created_at DESC
		LIMIT $3
	`
	var rows []eventRow
	if err := r.db.SelectContext(ctx, &rows, query, string(q.Type), string(q.Detector), limit); err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}

	out := make([]domain.Event, 0, len(rows))
	for _, row := range rows {
		e := domain.Event{
			ID:        row.ID,
			EventType: domain.EventType(row.EventType),
			Detector:  domain.Domain(row.Detector),
			Level:     row.Level,
			Message:   row.Message,
			CreatedAt: row.CreatedAt,
		}
		if len(row.Data) > 0 {
			if err := json.Unmarshal(row.Data, &e.Data); err != nil {
				return nil, fmt.Errorf("failed to decode event %s: %w", row.ID, err)
			}
		}
		out = append(out, e)
	}
	return out, nil
}

// Counts returns the number of stored events per type.
func (r *EventRepo) Counts(ctx context.Context) (map[domain.EventType]int, error) {
	var rows []struct {
		EventType string `db:"event_type"`
		Count     int    `db:"count"`
	}
	query := `SELECT event_type, COUNT(*) AS count FROM perf_events GROUP BY event_type`
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to count events: %w", err)
	}
	counts := make(map[domain.EventType]int, len(rows))
	for _, row := range rows {
		counts[domain.EventType(row.EventType)] = row.Count
	}
	return counts, nil
}

// Prune deletes all but the newest keep events.
func (r *EventRepo) Prune(ctx context.Context, keep int) (int64, error) {
	query := `
		DELETE FROM perf_events
		WHERE id IN (
			SELECT id FROM perf_events ORDER BY created_at DESC OFFSET $1
		)
	`
	res, err := r.db.ExecContext(ctx, query, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune events: %w", err)
	}
	return res.RowsAffected()
}

// SaveLevel upserts the current degradation level.
func (r *EventRepo) SaveLevel(ctx context.Context, level int) error {
	query := `
		INSERT INTO degradation_state (id, level, updated_at)
		VALUES (1, $1, NOW())
		ON CONFLICT (id) DO UPDATE SET level = EXCLUDED.level, updated_at = NOW()
	`
	if _, err := r.db.ExecContext(ctx, query, level); err != nil {
		return fmt.Errorf("failed to save degradation level: %w", err)
	}
	return nil
}

// LoadLevel returns the saved degradation level.
func (r *EventRepo) LoadLevel(ctx context.Context) (int, error) {
	var level int
	err := r.db.GetContext(ctx, &level, `SELECT level FROM degradation_state WHERE id = 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, storage.ErrLevelNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load degradation level: %w", err)
	}
	return level, nil
}

// Close closes the underlying connection.
func (r *EventRepo) Close() error {
	return r.db.Close()
}
