// Package redis implements the token registry storage on Redis hashes.
package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/turtacn/pushgate/internal/config"
	"github.com/turtacn/pushgate/pkg/errors"
	"github.com/turtacn/pushgate/pkg/logger"
)

const (
	defaultDialTimeout = 5 * time.Second
	defaultIOTimeout   = 3 * time.Second
	pingTimeout        = 5 * time.Second
)

// NewClient creates a standalone client and verifies connectivity.
func NewClient(ctx context.Context, cfg config.RedisConfig, log logger.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  defaultDialTimeout,
		ReadTimeout:  defaultIOTimeout,
		WriteTimeout: defaultIOTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrap(errors.ErrRegistryIO, err, "ping redis").WithMetadata("address", cfg.Address)
	}

	log.Info(ctx, "Redis connection established", logger.String("address", cfg.Address), logger.Int("db", cfg.DB))
	return client, nil
}
