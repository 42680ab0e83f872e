package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"github.com/turtacn/pushgate/internal/config"
	"github.com/turtacn/pushgate/internal/infrastructure/monitoring"
	"github.com/turtacn/pushgate/pkg/constants"
	"github.com/turtacn/pushgate/pkg/logger"
)

func serve(r *gin.Engine, method, path string, mutate func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if mutate != nil {
		mutate(req)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func okHandler(c *gin.Context) { c.Status(http.StatusOK) }

func TestRequestIDMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var seen interface{}
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/", func(c *gin.Context) {
		seen = c.Request.Context().Value(constants.ContextKeyRequestID)
		c.Status(http.StatusOK)
	})

	w := serve(r, http.MethodGet, "/", nil)
	generated := w.Header().Get(constants.HeaderRequestID)
	assert.Len(t, generated, 36)
	assert.Equal(t, generated, seen)

	w = serve(r, http.MethodGet, "/", func(req *http.Request) { req.Header.Set(constants.HeaderRequestID, "abc") })
	assert.Equal(t, "abc", w.Header().Get(constants.HeaderRequestID))
}

func TestRecoveryMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RecoveryMiddleware(logger.NewNoopLogger()))
	r.GET("/", func(c *gin.Context) { panic("boom") })

	w := serve(r, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "internal_error")
}

func TestBasicAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	open := gin.New()
	open.Use(BasicAuthMiddleware("", ""))
	open.GET("/", okHandler)
	assert.Equal(t, http.StatusOK, serve(open, http.MethodGet, "/", nil).Code)

	guarded := gin.New()
	guarded.Use(BasicAuthMiddleware("admin", "secret"))
	guarded.GET("/", okHandler)
	assert.Equal(t, http.StatusUnauthorized, serve(guarded, http.MethodGet, "/", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(guarded, http.MethodGet, "/", func(req *http.Request) {
		req.SetBasicAuth("admin", "wrong")
	}).Code)
	assert.Equal(t, http.StatusOK, serve(guarded, http.MethodGet, "/", func(req *http.Request) {
		req.SetBasicAuth("admin", "secret")
	}).Code)
}

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	log := logger.NewNoopLogger()

	t.Run("should deny request when limit is exceeded", func(t *testing.T) {
		cfg := &config.RateLimitConfig{Enabled: true, RequestsPerS: 1, BurstSize: 2}
		r := gin.New()
		r.Use(RateLimitMiddleware(NewIPRateLimiter(cfg.RequestsPerS, cfg.BurstSize), cfg, log))
		r.GET("/", okHandler)

		assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/", nil).Code)
		assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/", nil).Code)
		w := serve(r, http.MethodGet, "/", nil)
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Equal(t, "1", w.Header().Get("Retry-After"))

		// A different client has its own bucket.
		assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/", func(req *http.Request) {
			req.RemoteAddr = "198.51.100.7:4000"
		}).Code)
	})

	t.Run("should allow everything when disabled", func(t *testing.T) {
		cfg := &config.RateLimitConfig{Enabled: false}
		r := gin.New()
		r.Use(RateLimitMiddleware(NewIPRateLimiter(0, 0), cfg, log))
		r.GET("/", okHandler)
		for i := 0; i < 5; i++ {
			assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/", nil).Code)
		}
	})
}

func TestIPRateLimiter_EvictsIdleClients(t *testing.T) {
	l := NewIPRateLimiter(1, 1)
	now := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"))

	now = now.Add(idleLimiterTTL + time.Second)
	assert.True(t, l.Allow("10.0.0.2"))
	assert.NotContains(t, l.clients, "10.0.0.1")
}

func idempotencyRouter(store IdempotencyStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	cfg := &config.IdempotencyConfig{Enabled: true, TTL: time.Hour}
	r := gin.New()
	r.Use(IdempotencyMiddleware(store, cfg, logger.NewNoopLogger()))
	r.POST("/push", okHandler)
	r.POST("/blast", okHandler)
	return r
}

func withKey(key string) func(*http.Request) {
	return func(req *http.Request) { req.Header.Set(HeaderIdempotencyKey, key) }
}

func TestIdempotencyMiddleware(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	stores := map[string]IdempotencyStore{
		"memory": NewMemoryIdempotencyStore(),
		"redis":  NewRedisIdempotencyStore(client, "pushgate"),
	}

	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			r := idempotencyRouter(store)

			assert.Equal(t, http.StatusOK, serve(r, http.MethodPost, "/push", withKey("k1")).Code)
			w := serve(r, http.MethodPost, "/push", withKey("k1"))
			assert.Equal(t, http.StatusConflict, w.Code)
			assert.Contains(t, w.Body.String(), "duplicate_request")

			// Same key on another route, and requests without a key, pass.
			assert.Equal(t, http.StatusOK, serve(r, http.MethodPost, "/blast", withKey("k1")).Code)
			assert.Equal(t, http.StatusOK, serve(r, http.MethodPost, "/push", nil).Code)
			assert.Equal(t, http.StatusOK, serve(r, http.MethodPost, "/push", nil).Code)
		})
	}

	assert.True(t, mr.Exists("pushgate:idem:/push|k1"))
}

func TestIdempotencyMiddleware_FailedRequestReleasesKey(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	stores := map[string]IdempotencyStore{
		"memory": NewMemoryIdempotencyStore(),
		"redis":  NewRedisIdempotencyStore(client, "pushgate"),
	}

	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			gin.SetMode(gin.TestMode)
			calls := 0
			r := gin.New()
			r.Use(IdempotencyMiddleware(store, &config.IdempotencyConfig{Enabled: true, TTL: time.Hour}, logger.NewNoopLogger()))
			r.POST("/push", func(c *gin.Context) {
				calls++
				if calls == 1 {
					c.Status(http.StatusServiceUnavailable)
					return
				}
				c.Status(http.StatusAccepted)
			})

			assert.Equal(t, http.StatusServiceUnavailable, serve(r, http.MethodPost, "/push", withKey("k1")).Code)
			assert.Equal(t, http.StatusAccepted, serve(r, http.MethodPost, "/push", withKey("k1")).Code)
			assert.Equal(t, http.StatusConflict, serve(r, http.MethodPost, "/push", withKey("k1")).Code)
			assert.Equal(t, 2, calls)
		})
	}
}

func TestIdempotencyMiddleware_FailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	r := idempotencyRouter(NewRedisIdempotencyStore(client, "pushgate"))
	assert.Equal(t, http.StatusOK, serve(r, http.MethodPost, "/push", withKey("k1")).Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodPost, "/push", withKey("k1")).Code)
}

func TestMemoryIdempotencyStore_Expires(t *testing.T) {
	s := NewMemoryIdempotencyStore()
	ctx := context.Background()

	ok, err := s.Claim(ctx, "k", 20*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, _ = s.Claim(ctx, "k", 20*time.Millisecond)
	assert.False(t, ok)

	time.Sleep(30 * time.Millisecond)
	ok, _ = s.Claim(ctx, "k", 20*time.Millisecond)
	assert.True(t, ok)
}

func TestObservabilityMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := monitoring.NewMetrics(prometheus.NewRegistry())

	r := gin.New()
	r.Use(ObservabilityMiddleware(otel.Tracer("test-tracer"), m.HTTPRequests, m.HTTPDuration))
	r.GET("/test", okHandler)

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/test", nil).Code)
	assert.Equal(t, http.StatusNotFound, serve(r, http.MethodGet, "/missing", nil).Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/test", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "not_found", "404")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.HTTPDuration))
}
