// Package repository 定义领域仓储接口
// 仓储接口定义令牌注册表的持久化契约，与具体存储引擎无关
package repository

import "context"

// KVBackend is a namespaced string key/value store backing the token registry.
// Namespaces are fixed names such as "tok_allow_sandbox"; each namespace is an
// independent keyspace.
// 实现类：internal/infrastructure/persistence/{bbolt,redis,sql,memory}
type KVBackend interface {
	// Get returns the value stored under key.
	// 不存在时返回 errors.ErrRegistryNotFound
	Get(ctx context.Context, namespace, key string) (string, error)

	// Put stores value under key, replacing any previous value.
	Put(ctx context.Context, namespace, key, value string) error

	// Delete removes key. Missing keys yield errors.ErrRegistryNotFound.
	Delete(ctx context.Context, namespace, key string) error

	// Scan calls fn for each entry of namespace until fn returns false or
	// limit entries have been visited. It reports whether entries remained
	// unvisited because of the limit. A limit <= 0 means no limit.
	Scan(ctx context.Context, namespace string, limit int, fn func(key, value string) bool) (truncated bool, err error)

	// Close releases the underlying storage.
	Close() error
}
