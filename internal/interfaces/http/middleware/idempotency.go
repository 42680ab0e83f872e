package middleware

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"

	"github.com/turtacn/pushgate/internal/application/dto"
	"github.com/turtacn/pushgate/internal/config"
	"github.com/turtacn/pushgate/pkg/errors"
	"github.com/turtacn/pushgate/pkg/logger"
)

// HeaderIdempotencyKey carries the caller-chosen key of a dispatch request.
const HeaderIdempotencyKey = "Idempotency-Key"

// IdempotencyStore atomically claims a key for ttl. Claim returns false when
// the key was already claimed. Release gives up a claim so the key can be
// used again.
type IdempotencyStore interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// MemoryIdempotencyStore keeps claimed keys in process memory.
type MemoryIdempotencyStore struct {
	c *cache.Cache
}

// NewMemoryIdempotencyStore creates an in-process store.
func NewMemoryIdempotencyStore() *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{c: cache.New(cache.NoExpiration, time.Minute)}
}

// Claim implements IdempotencyStore. cache.Add fails when the key exists.
func (s *MemoryIdempotencyStore) Claim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	return s.c.Add(key, struct{}{}, ttl) == nil, nil
}

// Release implements IdempotencyStore.
func (s *MemoryIdempotencyStore) Release(_ context.Context, key string) error {
	s.c.Delete(key)
	return nil
}

// RedisIdempotencyStore shares claimed keys through redis so that several
// instances behind one address suppress the same duplicates.
type RedisIdempotencyStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisIdempotencyStore creates a redis-backed store.
func NewRedisIdempotencyStore(client redis.UniversalClient, prefix string) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{client: client, prefix: prefix}
}

// Claim implements IdempotencyStore with SETNX.
func (s *RedisIdempotencyStore) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, s.redisKey(key), 1, ttl).Result()
}

// Release implements IdempotencyStore with DEL.
func (s *RedisIdempotencyStore) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.redisKey(key)).Err()
}

func (s *RedisIdempotencyStore) redisKey(key string) string {
	return s.prefix + ":idem:" + key
}

// IdempotencyMiddleware rejects a dispatch request whose Idempotency-Key was
// already accepted within the configured TTL, so a retried POST /push does not
// send the same notification twice. A request that fails (status >= 400)
// releases its key, so the caller may retry it. Requests without the header
// pass through.
func IdempotencyMiddleware(store IdempotencyStore, cfg *config.IdempotencyConfig, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !cfg.Enabled {
			c.Next()
			return
		}

		key := strings.TrimSpace(c.GetHeader(HeaderIdempotencyKey))
		if key == "" {
			c.Next()
			return
		}
		if len(key) > 128 {
			dto.AbortWithError(c, errors.ErrInvalidArgument.WithMessage("idempotency key too long"))
			return
		}

		// Scope keys per route so one key cannot collide across endpoints.
		scoped := c.FullPath() + "|" + key
		isNew, err := store.Claim(c.Request.Context(), scoped, cfg.TTL)
		if err != nil {
			log.Error(c.Request.Context(), "idempotency check failed", err, logger.String("key", key))
			c.Next() // Fail open
			return
		}

		if !isNew {
			log.Warn(c.Request.Context(), "duplicate request suppressed", logger.String("key", key))
			dto.AbortWithError(c, errors.ErrDuplicateRequest.WithMetadata("idempotency_key", key))
			return
		}

		c.Next()

		if c.Writer.Status() >= 400 {
			if err := store.Release(context.WithoutCancel(c.Request.Context()), scoped); err != nil {
				log.Error(c.Request.Context(), "idempotency release failed", err, logger.String("key", key))
			}
		}
	}
}
