package tokens

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisCache shares token bundles between processes using the same account.
// Entries expire together with the access token.
type RedisCache struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

// NewRedisCache creates a cache. Keys are "<prefix><account>".
func NewRedisCache(client *redis.Client, prefix string, logger *zap.Logger) *RedisCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	if prefix == "" {
		prefix = "recommend:token:"
	}
	return &RedisCache{client: client, prefix: prefix, logger: logger}
}

// Get returns the cached bundle for account. A miss is (Bundle{}, false, nil).
func (c *RedisCache) Get(ctx context.Context, account string) (Bundle, bool, error) {
	data, err := c.client.Get(ctx, c.prefix+account).Bytes()
	if errors.Is(err, redis.Nil) {
		return Bundle{}, false, nil
	}
	if err != nil {
		return Bundle{}, false, fmt.Errorf("redis get token: %w", err)
	}

	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		c.logger.Warn("tokens.cache_decode_failed", zap.String("account", account), zap.Error(err))
		return Bundle{}, false, nil
	}
	return b, b.AccessToken != "", nil
}

// Set stores b until it expires. Already-expired bundles are not stored.
func (c *RedisCache) Set(ctx context.Context, account string, b Bundle) error {
	ttl := time.Until(b.ExpiresAt())
	if ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(b)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, c.prefix+account, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set token: %w", err)
	}
	return nil
}

// Delete removes the cached bundle for account.
func (c *RedisCache) Delete(ctx context.Context, account string) error {
	return c.client.Del(ctx, c.prefix+account).Err()
}
