package service

import (
	"context"
	"sync"

	"github.com/turtacn/pushgate/internal/domain/models"
	domainsvc "github.com/turtacn/pushgate/internal/domain/service"
)

var _ domainsvc.TokenRegistry = (*LockedRegistry)(nil)

// LockedRegistry serializes every registry call behind one mutex, which
// makes the guard check of Register and the copy/delete pair of the move
// operations atomic with respect to other callers in this process.
type LockedRegistry struct {
	mu    sync.Mutex
	inner domainsvc.TokenRegistry
}

// NewLockedRegistry wraps inner.
func NewLockedRegistry(inner domainsvc.TokenRegistry) *LockedRegistry {
	return &LockedRegistry{inner: inner}
}

func (r *LockedRegistry) Get(ctx context.Context, list models.ListKind, env models.Environment, key string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inner.Get(ctx, list, env, key)
}

func (r *LockedRegistry) Set(ctx context.Context, list models.ListKind, env models.Environment, key, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inner.Set(ctx, list, env, key, token)
}

func (r *LockedRegistry) Delete(ctx context.Context, list models.ListKind, env models.Environment, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inner.Delete(ctx, list, env, key)
}

func (r *LockedRegistry) DeleteByKey(ctx context.Context, list models.ListKind, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inner.DeleteByKey(ctx, list, key)
}

func (r *LockedRegistry) Enumerate(ctx context.Context, list models.ListKind, env *models.Environment) (*models.EnumerateResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inner.Enumerate(ctx, list, env)
}

func (r *LockedRegistry) Register(ctx context.Context, env models.Environment, key, token string) (models.RegisterResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inner.Register(ctx, env, key, token)
}

func (r *LockedRegistry) MoveToDeny(ctx context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inner.MoveToDeny(ctx, key)
}

func (r *LockedRegistry) MoveToAllow(ctx context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inner.MoveToAllow(ctx, key)
}

func (r *LockedRegistry) SetDeny(ctx context.Context, env *models.Environment, key, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inner.SetDeny(ctx, env, key, token)
}
