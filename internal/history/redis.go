package history

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"

	"netpulse/pkg/models"
)

// RedisConfig configures Redis access for history persistence.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	MaxPoints int
}

// RedisStore keeps per-series samples in Redis sorted sets scored by
// sample timestamp, plus a per-device state hash.
type RedisStore struct {
	client *redis.Client
	prefix string
	max    int
}

// NewRedisStore constructs a Redis-backed history store.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		cfg.Addr = "127.0.0.1:6379"
	}
	if strings.TrimSpace(cfg.KeyPrefix) == "" {
		cfg.KeyPrefix = "netpulse:history"
	}
	if cfg.MaxPoints <= 0 {
		cfg.MaxPoints = 500
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis history: %w", err)
	}

	return &RedisStore{client: client, prefix: strings.TrimSpace(cfg.KeyPrefix), max: cfg.MaxPoints}, nil
}

// Append records samples and trims each series to the configured cap.
func (s *RedisStore) Append(samples []models.MetricSample) error {
	if len(samples) == 0 {
		return nil
	}
	ctx := context.Background()
	pipe := s.client.Pipeline()

	for _, sample := range samples {
		if sample.DeviceID == "" || sample.Variable == "" {
			continue
		}
		payload, err := json.Marshal(sample)
		if err != nil {
			continue
		}
		key := s.seriesKey(sample.DeviceID, sample.Variable)
		score := float64(sample.Timestamp.UnixNano()) / 1e9
		pipe.ZAdd(ctx, key, redis.Z{Score: score, Member: string(payload)})
		pipe.ZRemRangeByRank(ctx, key, 0, int64(-(s.max + 1)))
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append history samples: %w", err)
	}
	return nil
}

// RecentSeries returns up to limit samples for a series, newest first.
func (s *RedisStore) RecentSeries(deviceID, variable string, limit int) ([]models.MetricSample, error) {
	if limit <= 0 {
		limit = s.max
	}
	ctx := context.Background()
	members, err := s.client.ZRevRange(ctx, s.seriesKey(deviceID, variable), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("read history series: %w", err)
	}

	out := make([]models.MetricSample, 0, len(members))
	for _, member := range members {
		var sample models.MetricSample
		if err := json.Unmarshal([]byte(member), &sample); err != nil {
			continue
		}
		out = append(out, sample)
	}
	return out, nil
}

// SetDeviceState writes the device state hash and bumps the device index.
func (s *RedisStore) SetDeviceState(state models.DeviceState) error {
	if state.DeviceID == "" {
		return nil
	}
	ctx := context.Background()
	pipe := s.client.Pipeline()

	reachable := "0"
	if state.Reachable {
		reachable = "1"
	}
	pipe.HSet(ctx, s.deviceKey(state.DeviceID),
		"device_id", state.DeviceID,
		"health_score", strconv.FormatFloat(state.HealthScore, 'f', 2, 64),
		"reachable", reachable,
		"last_seen", strconv.FormatInt(state.LastSeen.Unix(), 10),
	)
	pipe.ZAddArgs(ctx, s.devicesKey(), redis.ZAddArgs{GT: true, Members: []redis.Z{{Score: float64(state.LastSeen.Unix()), Member: state.DeviceID}}})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("write device state: %w", err)
	}
	return nil
}

// DeviceStates returns the latest known state of every device.
func (s *RedisStore) DeviceStates() ([]models.DeviceState, error) {
	ctx := context.Background()
	ids, err := s.client.ZRange(ctx, s.devicesKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read device index: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	states := make([]models.DeviceState, 0, len(ids))
	for _, id := range ids {
		hash, err := s.client.HGetAll(ctx, s.deviceKey(id)).Result()
		if err != nil || len(hash) == 0 {
			continue
		}
		health, _ := strconv.ParseFloat(hash["health_score"], 64)
		lastSeen, _ := strconv.ParseInt(hash["last_seen"], 10, 64)
		st := models.DeviceState{
			DeviceID:    id,
			HealthScore: health,
			Reachable:   hash["reachable"] == "1",
		}
		if lastSeen > 0 {
			st.LastSeen = time.Unix(lastSeen, 0).UTC()
		}
		states = append(states, st)
	}
	return states, nil
}

// Close closes Redis resources.
func (s *RedisStore) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *RedisStore) seriesKey(deviceID, variable string) string {
	return s.prefix + ":series:" + seriesMember(deviceID, variable)
}

func (s *RedisStore) deviceKey(deviceID string) string {
	return s.prefix + ":device:" + deviceID
}

func (s *RedisStore) devicesKey() string {
	return s.prefix + ":devices"
}
