package statestore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/autoventas/sales-ai-platform/internal/conversation"
	"github.com/autoventas/sales-ai-platform/pkg/logging"
)

const cacheKeyPrefix = "convstate:"

// Cache is a best-effort accelerator in front of a durable Store. A miss and
// an error are indistinguishable to callers.
type Cache interface {
	Get(ctx context.Context, sessionID string) (*conversation.State, bool)
	Set(ctx context.Context, state *conversation.State)
	Delete(ctx context.Context, sessionID string)
}

// RedisCache stores JSON snapshots in Redis with a TTL. Every failure is
// logged and swallowed; Redis being down only costs latency.
type RedisCache struct {
	client redis.Cmdable
	ttl    time.Duration
	logger *logging.Logger
}

// NewRedisCache builds a cache with the given entry TTL.
func NewRedisCache(client redis.Cmdable, ttl time.Duration, logger *logging.Logger) *RedisCache {
	if client == nil {
		panic("statestore: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &RedisCache{client: client, ttl: ttl, logger: logger}
}

func (c *RedisCache) Get(ctx context.Context, sessionID string) (*conversation.State, bool) {
	raw, err := c.client.Get(ctx, cacheKeyPrefix+sessionID).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("state cache read failed", "session_id", sessionID, "error", err)
		}
		return nil, false
	}
	var state conversation.State
	if err := json.Unmarshal(raw, &state); err != nil {
		c.logger.Warn("state cache entry unreadable", "session_id", sessionID, "error", err)
		c.Delete(ctx, sessionID)
		return nil, false
	}
	return &state, true
}

func (c *RedisCache) Set(ctx context.Context, state *conversation.State) {
	raw, err := json.Marshal(state)
	if err != nil {
		c.logger.Warn("state cache marshal failed", "session_id", state.SessionID, "error", err)
		return
	}
	if err := c.client.Set(ctx, cacheKeyPrefix+state.SessionID, raw, c.ttl).Err(); err != nil {
		c.logger.Warn("state cache write failed", "session_id", state.SessionID, "error", err)
	}
}

func (c *RedisCache) Delete(ctx context.Context, sessionID string) {
	if err := c.client.Del(ctx, cacheKeyPrefix+sessionID).Err(); err != nil {
		c.logger.Warn("state cache delete failed", "session_id", sessionID, "error", err)
	}
}
