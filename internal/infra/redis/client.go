package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/perfguard/internal/core/domain"
	"github.com/vietddude/perfguard/internal/infra/storage"
)

var (
	_ storage.EventLog   = (*Client)(nil)
	_ storage.LevelStore = (*Client)(nil)
)

// Client stores the event log and level snapshot in Redis.
type Client struct {
	rdb    *redis.Client
	prefix string
	limit  int64
}

// Config holds Redis connection configuration.
type Config struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	Prefix   string `yaml:"prefix"` // Key prefix (default: perfguard)
	Limit    int    `yaml:"limit"`  // Events kept (default: 1000)
}

// NewClient creates a new Redis client.
func NewClient(cfg Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return newClient(rdb, cfg), nil
}

func newClient(rdb *redis.Client, cfg Config) *Client {
	if cfg.Prefix == "" {
		cfg.Prefix = "perfguard"
	}
	if cfg.Limit <= 0 {
		cfg.Limit = storage.DefaultEventLimit
	}
	return &Client{rdb: rdb, prefix: cfg.Prefix, limit: int64(cfg.Limit)}
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Key helpers
func (c *Client) eventsKey() string {
	return fmt.Sprintf("%s:events", c.prefix)
}

func (c *Client) levelKey() string {
	return fmt.Sprintf("%s:degradation_level", c.prefix)
}

// Append pushes an event to the head of the list and trims the tail.
func (c *Client) Append(ctx context.Context, e domain.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	pipe := c.rdb.TxPipeline()
	pipe.LPush(ctx, c.eventsKey(), payload)
	pipe.LTrim(ctx, c.eventsKey(), 0, c.limit-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("lpush failed: %w", err)
	}
	return nil
}

// Recent returns matching events, newest first.
func (c *Client) Recent(ctx context.Context, q storage.EventQuery) ([]domain.Event, error) {
	raw, err := c.rdb.LRange(ctx, c.eventsKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("lrange failed: %w", err)
	}

	out := make([]domain.Event, 0)
	for _, item := range raw {
		var e domain.Event
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			return nil, fmt.Errorf("invalid event payload: %w", err)
		}
		if !q.Matches(e) {
			continue
		}
		out = append(out, e)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

// Counts returns the number of stored events per type.
func (c *Client) Counts(ctx context.Context) (map[domain.EventType]int, error) {
	events, err := c.Recent(ctx, storage.EventQuery{})
	if err != nil {
		return nil, err
	}
	counts := make(map[domain.EventType]int)
	for _, e := range events {
		counts[e.EventType]++
	}
	return counts, nil
}

// SaveLevel stores the current degradation level.
func (c *Client) SaveLevel(ctx context.Context, level int) error {
	return c.rdb.Set(ctx, c.levelKey(), strconv.Itoa(level), 0).Err()
}

// LoadLevel returns the stored degradation level.
func (c *Client) LoadLevel(ctx context.Context) (int, error) {
	val, err := c.rdb.Get(ctx, c.levelKey()).Result()
	if errors.Is(err, redis.Nil) {
		return 0, storage.ErrLevelNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("get failed: %w", err)
	}
	return strconv.Atoi(val)
}

// Health pings the server.
func (c *Client) Health(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}
