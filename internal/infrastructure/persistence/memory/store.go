// Package memory provides a map-backed repository.KVBackend for tests and
// ephemeral deployments.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/turtacn/pushgate/internal/domain/repository"
	"github.com/turtacn/pushgate/pkg/errors"
)

var _ repository.KVBackend = (*Store)(nil)

// Store keeps every namespace in memory.
type Store struct {
	mu   sync.RWMutex
	data map[string]map[string]string
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{data: make(map[string]map[string]string)}
}

func (s *Store) Get(ctx context.Context, namespace, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.data[namespace][key]
	if !ok {
		return "", errors.ErrRegistryNotFound.WithMetadata("key", key)
	}
	return v, nil
}

func (s *Store) Put(ctx context.Context, namespace, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ns, ok := s.data[namespace]
	if !ok {
		ns = make(map[string]string)
		s.data[namespace] = ns
	}
	ns[key] = value
	return nil
}

func (s *Store) Delete(ctx context.Context, namespace, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data[namespace][key]; !ok {
		return errors.ErrRegistryNotFound.WithMetadata("key", key)
	}
	delete(s.data[namespace], key)
	return nil
}

// Scan visits entries in key order.
func (s *Store) Scan(ctx context.Context, namespace string, limit int, fn func(key, value string) bool) (bool, error) {
	s.mu.RLock()
	ns := s.data[namespace]
	keys := make([]string, 0, len(ns))
	for k := range ns {
		keys = append(keys, k)
	}
	values := make(map[string]string, len(ns))
	for k, v := range ns {
		values[k] = v
	}
	s.mu.RUnlock()

	sort.Strings(keys)
	for i, k := range keys {
		if limit > 0 && i == limit {
			return true, nil
		}
		if !fn(k, values[k]) {
			return false, nil
		}
	}
	return false, nil
}

func (s *Store) Close() error { return nil }
