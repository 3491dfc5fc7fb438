package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"

	"netpulse/pkg/models"
)

// RedisConfig configures Redis access for alert persistence.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// RedisStore keeps alert rows in Redis: a dedupe-key index, a per-alert
// JSON value, a timestamp-scored id index and per-alert event lists. A
// process-local writer lock serializes upserts.
type RedisStore struct {
	mu     sync.Mutex
	client *redis.Client
	prefix string
}

// NewRedisStore constructs a Redis-backed alert store.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		cfg.Addr = "127.0.0.1:6379"
	}
	if strings.TrimSpace(cfg.KeyPrefix) == "" {
		cfg.KeyPrefix = "netpulse:alerts"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis alert store: %w", err)
	}

	return &RedisStore{client: client, prefix: strings.TrimSpace(cfg.KeyPrefix)}, nil
}

// Upsert inserts or updates the live row for the alert's dedupe key.
func (s *RedisStore) Upsert(alert *models.Alert) (*models.Alert, error) {
	if alert == nil || alert.DedupeKey == "" {
		return nil, fmt.Errorf("upsert alert: missing dedupe_key")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ctx := context.Background()

	id, err := s.client.Get(ctx, s.keyIndexKey(alert.DedupeKey)).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("lookup alert key: %w", err)
	}

	if id == "" {
		row := alert.Clone()
		if row.ID == "" {
			row.ID = uuid.NewString()
		}
		row.FirstSeen = row.Timestamp
		row.LastSeen = row.Timestamp
		row.Count = 1
		row.AckTS = nil
		row.AckNote = ""
		if err := s.writeRow(ctx, row); err != nil {
			return nil, err
		}
		if err := s.appendEvent(ctx, row.ID, "created", "system", row.Message); err != nil {
			return nil, err
		}
		return row.Clone(), nil
	}

	row, err := s.readRow(ctx, id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, fmt.Errorf("alert row %s missing for key %s", id, alert.DedupeKey)
	}

	row.Timestamp = alert.Timestamp
	row.Severity = alert.Severity
	row.Message = alert.Message
	row.LastSeen = alert.Timestamp
	row.Count++
	if err := s.writeRow(ctx, row); err != nil {
		return nil, err
	}
	if err := s.appendEvent(ctx, row.ID, "updated", "system", alert.Message); err != nil {
		return nil, err
	}
	return row.Clone(), nil
}

// GetByKey returns the live row for a dedupe key, or nil.
func (s *RedisStore) GetByKey(dedupeKey string) (*models.Alert, error) {
	ctx := context.Background()
	id, err := s.client.Get(ctx, s.keyIndexKey(dedupeKey)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup alert key: %w", err)
	}
	return s.readRow(ctx, id)
}

// List returns up to limit rows, newest first.
func (s *RedisStore) List(limit int) ([]*models.Alert, error) {
	if limit <= 0 {
		limit = 5000
	}
	ctx := context.Background()
	ids, err := s.client.ZRevRange(ctx, s.tsIndexKey(), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("read alert index: %w", err)
	}
	return s.readRows(ctx, ids)
}

// ListSince returns up to limit rows at or after since, newest first.
func (s *RedisStore) ListSince(since time.Time, limit int) ([]*models.Alert, error) {
	if limit <= 0 {
		limit = 5000
	}
	ctx := context.Background()
	ids, err := s.client.ZRevRangeByScore(ctx, s.tsIndexKey(), &redis.ZRangeBy{
		Min:   fmt.Sprintf("%d", since.Unix()),
		Max:   "+inf",
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("read alert index: %w", err)
	}
	return s.readRows(ctx, ids)
}

// Ack marks a row acknowledged and records an acked event.
func (s *RedisStore) Ack(alertID, note, actor string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx := context.Background()

	row, err := s.readRow(ctx, alertID)
	if err != nil {
		return err
	}
	if row == nil {
		return fmt.Errorf("ack alert %s: not found", alertID)
	}
	now := time.Now().UTC()
	row.AckTS = &now
	row.AckNote = note
	if err := s.writeRow(ctx, row); err != nil {
		return err
	}
	if actor == "" {
		actor = "operator"
	}
	return s.appendEvent(ctx, alertID, "acked", actor, note)
}

// InsertEvent records a lifecycle event for an alert.
func (s *RedisStore) InsertEvent(alertID, action, actor, note string) error {
	return s.appendEvent(context.Background(), alertID, action, actor, note)
}

// Events returns the lifecycle events for an alert, oldest first.
func (s *RedisStore) Events(alertID string) ([]models.AlertEvent, error) {
	ctx := context.Background()
	items, err := s.client.LRange(ctx, s.eventsKey(alertID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read alert events: %w", err)
	}
	out := make([]models.AlertEvent, 0, len(items))
	for _, item := range items {
		var ev models.AlertEvent
		if err := json.Unmarshal([]byte(item), &ev); err != nil {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

// Close closes Redis resources.
func (s *RedisStore) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *RedisStore) writeRow(ctx context.Context, row *models.Alert) error {
	payload, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("encode alert row: %w", err)
	}
	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.keyIndexKey(row.DedupeKey), row.ID, 0)
	pipe.Set(ctx, s.alertKey(row.ID), string(payload), 0)
	pipe.ZAddArgs(ctx, s.tsIndexKey(), redis.ZAddArgs{GT: true, Members: []redis.Z{{Score: float64(row.Timestamp.Unix()), Member: row.ID}}})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("write alert row: %w", err)
	}
	return nil
}

func (s *RedisStore) readRow(ctx context.Context, id string) (*models.Alert, error) {
	payload, err := s.client.Get(ctx, s.alertKey(id)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read alert row: %w", err)
	}
	var row models.Alert
	if err := json.Unmarshal([]byte(payload), &row); err != nil {
		return nil, fmt.Errorf("decode alert row: %w", err)
	}
	return &row, nil
}

func (s *RedisStore) readRows(ctx context.Context, ids []string) ([]*models.Alert, error) {
	out := make([]*models.Alert, 0, len(ids))
	for _, id := range ids {
		row, err := s.readRow(ctx, id)
		if err != nil || row == nil {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

func (s *RedisStore) appendEvent(ctx context.Context, alertID, action, actor, note string) error {
	ev := models.AlertEvent{
		AlertID:   alertID,
		Action:    action,
		Actor:     actor,
		Note:      note,
		Timestamp: time.Now().UTC(),
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode alert event: %w", err)
	}
	if err := s.client.RPush(ctx, s.eventsKey(alertID), string(payload)).Err(); err != nil {
		return fmt.Errorf("append alert event: %w", err)
	}
	return nil
}

func (s *RedisStore) keyIndexKey(dedupeKey string) string {
	return s.prefix + ":key:" + dedupeKey
}

func (s *RedisStore) alertKey(id string) string {
	return s.prefix + ":alert:" + id
}

func (s *RedisStore) tsIndexKey() string {
	return s.prefix + ":index"
}

func (s *RedisStore) eventsKey(alertID string) string {
	return s.prefix + ":events:" + alertID
}
