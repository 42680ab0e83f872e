package redis

import (
	"context"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/turtacn/pushgate/internal/domain/repository"
	"github.com/turtacn/pushgate/pkg/errors"
)

var _ repository.KVBackend = (*Store)(nil)

// Store keeps each namespace in one hash named "<prefix>:<namespace>".
type Store struct {
	client redis.UniversalClient
	prefix string
}

// NewStore wraps an existing client.
func NewStore(client redis.UniversalClient, prefix string) *Store {
	return &Store{client: client, prefix: prefix}
}

func (s *Store) hashKey(namespace string) string {
	if s.prefix == "" {
		return namespace
	}
	return s.prefix + ":" + namespace
}

func (s *Store) Get(ctx context.Context, namespace, key string) (string, error) {
	v, err := s.client.HGet(ctx, s.hashKey(namespace), key).Result()
	if err == redis.Nil {
		return "", errors.ErrRegistryNotFound.WithMetadata("key", key)
	}
	if err != nil {
		return "", errors.Wrap(errors.ErrRegistryIO, err, "redis HGET")
	}
	return v, nil
}

func (s *Store) Put(ctx context.Context, namespace, key, value string) error {
	if err := s.client.HSet(ctx, s.hashKey(namespace), key, value).Err(); err != nil {
		return errors.Wrap(errors.ErrRegistryIO, err, "redis HSET")
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, namespace, key string) error {
	n, err := s.client.HDel(ctx, s.hashKey(namespace), key).Result()
	if err != nil {
		return errors.Wrap(errors.ErrRegistryIO, err, "redis HDEL")
	}
	if n == 0 {
		return errors.ErrRegistryNotFound.WithMetadata("key", key)
	}
	return nil
}

// Scan reads the whole hash and visits it in key order. Namespaces are
// small (the registry is bounded by the enumeration limit in practice).
func (s *Store) Scan(ctx context.Context, namespace string, limit int, fn func(key, value string) bool) (bool, error) {
	entries, err := s.client.HGetAll(ctx, s.hashKey(namespace)).Result()
	if err != nil {
		return false, errors.Wrap(errors.ErrRegistryIO, err, "redis HGETALL")
	}

	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for i, k := range keys {
		if limit > 0 && i == limit {
			return true, nil
		}
		if !fn(k, entries[k]) {
			return false, nil
		}
	}
	return false, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}
