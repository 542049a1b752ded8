package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/autoventas/sales-ai-platform/pkg/logging"
)

const (
	pendingKeyPrefix = "idem:pending:"
	replyKeyPrefix   = "idem:reply:"

	pollInterval = 100 * time.Millisecond
)

// RedisGuard implements the guard with a SET NX pending marker, written the
// moment processing begins so two concurrent deliveries of the same retry
// cannot both run the turn.
type RedisGuard struct {
	client redis.Cmdable
	ttl    time.Duration
	wait   time.Duration
	logger *logging.Logger
}

// NewRedisGuard builds a guard. ttl bounds how long a message id is
// remembered; wait bounds how long a duplicate polls for the original's
// reply.
func NewRedisGuard(client redis.Cmdable, ttl, wait time.Duration, logger *logging.Logger) *RedisGuard {
	if client == nil {
		panic("idempotency: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if wait <= 0 {
		wait = 10 * time.Second
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &RedisGuard{client: client, ttl: ttl, wait: wait, logger: logger}
}

func (g *RedisGuard) Begin(ctx context.Context, messageID string) (Result, error) {
	claimed, err := g.client.SetNX(ctx, pendingKeyPrefix+messageID, "1", g.ttl).Result()
	if err != nil {
		return Result{}, fmt.Errorf("idempotency: claim %s: %w", messageID, err)
	}
	if claimed {
		return Result{Fresh: true}, nil
	}

	// Someone else holds the claim. Wait briefly for its committed reply.
	deadline := time.NewTimer(g.wait)
	defer deadline.Stop()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		reply, err := g.client.Get(ctx, replyKeyPrefix+messageID).Result()
		if err == nil {
			return Result{Reply: reply}, nil
		}
		if !errors.Is(err, redis.Nil) {
			return Result{}, fmt.Errorf("idempotency: read reply %s: %w", messageID, err)
		}
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case <-deadline.C:
			// The original never committed (crash mid-turn). Do not
			// reprocess; the caller answers with a fallback.
			g.logger.Warn("duplicate wait timed out", "message_id", messageID)
			return Result{}, nil
		case <-ticker.C:
		}
	}
}

func (g *RedisGuard) Commit(ctx context.Context, messageID, reply string) {
	if err := g.client.Set(ctx, replyKeyPrefix+messageID, reply, g.ttl).Err(); err != nil {
		g.logger.Error("idempotency commit failed", "message_id", messageID, "error", err)
	}
}
