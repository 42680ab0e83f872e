// Package repositorytest holds behavioural checks shared by every
// repository.KVBackend implementation.
package repositorytest

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/pushgate/internal/domain/repository"
	"github.com/turtacn/pushgate/pkg/errors"
)

// Factory returns a fresh, empty backend. The suite closes it.
type Factory func(t *testing.T) repository.KVBackend

// RunKVBackendSuite exercises the KVBackend contract against newBackend.
func RunKVBackendSuite(t *testing.T, newBackend Factory) {
	t.Run("get missing", func(t *testing.T) {
		b := open(t, newBackend)
		_, err := b.Get(context.Background(), "tok_allow_sandbox", "10.0.0.1")
		assert.True(t, errors.Is(err, errors.ErrRegistryNotFound))
	})

	t.Run("put get overwrite", func(t *testing.T) {
		b := open(t, newBackend)
		ctx := context.Background()

		require.NoError(t, b.Put(ctx, "tok_allow_sandbox", "10.0.0.1", "aaa"))
		got, err := b.Get(ctx, "tok_allow_sandbox", "10.0.0.1")
		require.NoError(t, err)
		assert.Equal(t, "aaa", got)

		require.NoError(t, b.Put(ctx, "tok_allow_sandbox", "10.0.0.1", "bbb"))
		got, err = b.Get(ctx, "tok_allow_sandbox", "10.0.0.1")
		require.NoError(t, err)
		assert.Equal(t, "bbb", got)
	})

	t.Run("namespaces are independent", func(t *testing.T) {
		b := open(t, newBackend)
		ctx := context.Background()

		require.NoError(t, b.Put(ctx, "tok_allow_sandbox", "k", "sandbox"))
		require.NoError(t, b.Put(ctx, "tok_allow_production", "k", "production"))

		got, err := b.Get(ctx, "tok_allow_production", "k")
		require.NoError(t, err)
		assert.Equal(t, "production", got)

		_, err = b.Get(ctx, "tok_deny_sandbox", "k")
		assert.True(t, errors.Is(err, errors.ErrRegistryNotFound))
	})

	t.Run("delete", func(t *testing.T) {
		b := open(t, newBackend)
		ctx := context.Background()

		require.NoError(t, b.Put(ctx, "tok_deny_sandbox", "k", "v"))
		require.NoError(t, b.Delete(ctx, "tok_deny_sandbox", "k"))

		_, err := b.Get(ctx, "tok_deny_sandbox", "k")
		assert.True(t, errors.Is(err, errors.ErrRegistryNotFound))

		err = b.Delete(ctx, "tok_deny_sandbox", "k")
		assert.True(t, errors.Is(err, errors.ErrRegistryNotFound))
	})

	t.Run("scan all", func(t *testing.T) {
		b := open(t, newBackend)
		ctx := context.Background()

		want := map[string]string{}
		for i := 0; i < 5; i++ {
			k := fmt.Sprintf("10.0.0.%d", i)
			want[k] = fmt.Sprintf("token%d", i)
			require.NoError(t, b.Put(ctx, "tok_allow_sandbox", k, want[k]))
		}
		require.NoError(t, b.Put(ctx, "tok_allow_production", "other", "x"))

		got := map[string]string{}
		truncated, err := b.Scan(ctx, "tok_allow_sandbox", 0, func(k, v string) bool {
			got[k] = v
			return true
		})
		require.NoError(t, err)
		assert.False(t, truncated)
		assert.Equal(t, want, got)
	})

	t.Run("scan limit", func(t *testing.T) {
		b := open(t, newBackend)
		ctx := context.Background()

		for i := 0; i < 5; i++ {
			require.NoError(t, b.Put(ctx, "tok_allow_sandbox", fmt.Sprintf("k%d", i), "v"))
		}

		visited := 0
		truncated, err := b.Scan(ctx, "tok_allow_sandbox", 3, func(k, v string) bool {
			visited++
			return true
		})
		require.NoError(t, err)
		assert.True(t, truncated)
		assert.Equal(t, 3, visited)

		visited = 0
		truncated, err = b.Scan(ctx, "tok_allow_sandbox", 5, func(k, v string) bool {
			visited++
			return true
		})
		require.NoError(t, err)
		assert.False(t, truncated)
		assert.Equal(t, 5, visited)
	})

	t.Run("scan stops early", func(t *testing.T) {
		b := open(t, newBackend)
		ctx := context.Background()

		for i := 0; i < 4; i++ {
			require.NoError(t, b.Put(ctx, "tok_deny_production", fmt.Sprintf("k%d", i), "v"))
		}

		visited := 0
		truncated, err := b.Scan(ctx, "tok_deny_production", 0, func(k, v string) bool {
			visited++
			return visited < 2
		})
		require.NoError(t, err)
		assert.False(t, truncated)
		assert.Equal(t, 2, visited)
	})

	t.Run("scan empty namespace", func(t *testing.T) {
		b := open(t, newBackend)
		truncated, err := b.Scan(context.Background(), "tok_allow_production", 64, func(k, v string) bool {
			t.Fatalf("unexpected entry %s", k)
			return true
		})
		require.NoError(t, err)
		assert.False(t, truncated)
	})
}

func open(t *testing.T, newBackend Factory) repository.KVBackend {
	t.Helper()
	b := newBackend(t)
	t.Cleanup(func() { _ = b.Close() })
	return b
}
