package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// SyncState persists the channel sync watermark per account in Redis so a
// restarted service resumes incrementally.
type SyncState struct {
	redis  *redis.Client
	prefix string
}

func NewSyncState(client *redis.Client) *SyncState {
	return &SyncState{redis: client, prefix: "recommend:sync:"}
}

type watermark struct {
	From time.Time `json:"from"`
}

// LoadWatermark returns the last saved watermark, or the zero time if none.
func (s *SyncState) LoadWatermark(ctx context.Context, account string) (time.Time, error) {
	data, err := s.redis.Get(ctx, s.prefix+account).Bytes()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("redis get watermark: %w", err)
	}
	var w watermark
	if err := json.Unmarshal(data, &w); err != nil {
		return time.Time{}, fmt.Errorf("decode watermark: %w", err)
	}
	return w.From, nil
}

// SaveWatermark stores t for account without expiry.
func (s *SyncState) SaveWatermark(ctx context.Context, account string, t time.Time) error {
	data, err := json.Marshal(watermark{From: t.UTC()})
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, s.prefix+account, data, 0).Err()
}

// HealthCheck pings Redis.
func (s *SyncState) HealthCheck(ctx context.Context) error {
	if s.redis == nil {
		return fmt.Errorf("redis not initialized")
	}
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}
