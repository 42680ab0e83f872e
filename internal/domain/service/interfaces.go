package service

import (
	"context"

	"github.com/turtacn/pushgate/internal/domain/models"
)

// CredentialProvider hands out the bearer credential used on every send.
// Implementations are not required to be safe for concurrent use; the
// dispatcher serializes access.
// CredentialProvider 提供推送请求使用的 bearer 凭证。
type CredentialProvider interface {
	// EnsureValid returns the cached credential, regenerating it when the
	// validity window has elapsed.
	EnsureValid(ctx context.Context) (models.Credential, error)

	// Invalidate drops the cached credential.
	Invalidate()
}

// PushSender delivers a single notification to the push gateway.
// PushSender 向推送网关发送单条通知。
type PushSender interface {
	// Send performs exactly one delivery attempt. A returned error means the
	// attempt never reached the gateway (signing or connection failure);
	// gateway-side results are reported through the outcome.
	Send(ctx context.Context, n models.Notification) (models.SendOutcome, error)
}

// TokenRegistry is the recipient registry consulted by the dispatcher and
// the REST adapter.
// TokenRegistry 是推送接收者注册表。
type TokenRegistry interface {
	Get(ctx context.Context, list models.ListKind, env models.Environment, key string) (string, error)
	Set(ctx context.Context, list models.ListKind, env models.Environment, key, token string) error
	Delete(ctx context.Context, list models.ListKind, env models.Environment, key string) error
	DeleteByKey(ctx context.Context, list models.ListKind, key string) error
	Enumerate(ctx context.Context, list models.ListKind, env *models.Environment) (*models.EnumerateResult, error)
	Register(ctx context.Context, env models.Environment, key, token string) (models.RegisterResult, error)
	MoveToDeny(ctx context.Context, key string) error
	MoveToAllow(ctx context.Context, key string) error
	SetDeny(ctx context.Context, env *models.Environment, key, token string) error
}
