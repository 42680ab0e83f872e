// Package router assembles the REST adapter: middleware chain, routes and the HTTP server lifecycle.
package router

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"

	"github.com/turtacn/pushgate/internal/config"
	"github.com/turtacn/pushgate/internal/infrastructure/monitoring"
	"github.com/turtacn/pushgate/internal/interfaces/http/handlers"
	"github.com/turtacn/pushgate/internal/interfaces/http/middleware"
	"github.com/turtacn/pushgate/pkg/constants"
	"github.com/turtacn/pushgate/pkg/logger"
)

// Deps groups what the routes are served from.
type Deps struct {
	Health      *handlers.HealthHandler
	Tokens      *handlers.TokenHandler
	Push        *handlers.PushHandler
	Metrics     *monitoring.Metrics
	Gatherer    prometheus.Gatherer
	Idempotency middleware.IdempotencyStore
}

// Router HTTP 路由器
type Router struct {
	engine *gin.Engine
	config *config.Config
	logger logger.Logger
	deps   Deps
	server *http.Server
}

// NewRouter 创建路由器并注册全部路由
func NewRouter(cfg *config.Config, log logger.Logger, deps Deps) *Router {
	if cfg.Server.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}
	if deps.Idempotency == nil {
		deps.Idempotency = middleware.NewMemoryIdempotencyStore()
	}

	r := &Router{
		engine: gin.New(),
		config: cfg,
		logger: log.WithComponent("http"),
		deps:   deps,
	}
	r.setupRoutes()
	r.server = &http.Server{
		Addr:           cfg.Server.Address(),
		Handler:        r.engine,
		ReadTimeout:    time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1MB
	}
	return r
}

// setupRoutes 设置路由
func (r *Router) setupRoutes() {
	cfg := r.config
	origins := cfg.Server.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	// 全局中间件
	r.engine.Use(middleware.RecoveryMiddleware(r.logger))
	r.engine.Use(middleware.RequestIDMiddleware())
	if r.deps.Metrics != nil {
		r.engine.Use(middleware.ObservabilityMiddleware(
			otel.Tracer(constants.ServiceName+"/http"),
			r.deps.Metrics.HTTPRequests,
			r.deps.Metrics.HTTPDuration,
		))
	}
	r.engine.Use(middleware.LoggingMiddleware(r.logger))

	// CORS 配置
	r.engine.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", constants.HeaderRequestID, middleware.HeaderIdempotencyKey},
		ExposeHeaders:    []string{constants.HeaderRequestID, "Retry-After"},
		AllowCredentials: !containsWildcard(origins),
		MaxAge:           12 * time.Hour,
	}))

	// 健康检查与指标（不需要认证）
	r.engine.GET("/health", r.deps.Health.HealthCheck)
	r.engine.GET("/live", r.deps.Health.LivenessCheck)
	r.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(r.deps.Gatherer, promhttp.HandlerOpts{})))

	// Pprof 性能分析（仅在调试模式）
	if cfg.Server.Debug {
		pprof.Register(r.engine)
	}

	api := r.engine.Group("/")
	api.Use(middleware.BasicAuthMiddleware(cfg.Server.AuthUser, cfg.Server.AuthPass))
	api.Use(middleware.RateLimitMiddleware(
		middleware.NewIPRateLimiter(cfg.RateLimit.RequestsPerS, cfg.RateLimit.BurstSize),
		&cfg.RateLimit, r.logger,
	))
	{
		api.POST("/token", r.deps.Tokens.Register)

		tokens := api.Group("/tokens")
		tokens.GET("/send", r.deps.Tokens.ListAllow)
		tokens.DELETE("/send", r.deps.Tokens.DeleteAllow)
		tokens.GET("/block", r.deps.Tokens.ListDeny)
		tokens.POST("/block", r.deps.Tokens.Block)
		tokens.DELETE("/block", r.deps.Tokens.DeleteDeny)
		tokens.POST("/move-to-block", r.deps.Tokens.MoveToDeny)
		tokens.POST("/move-to-send", r.deps.Tokens.MoveToAllow)

		dispatch := api.Group("/")
		dispatch.Use(middleware.IdempotencyMiddleware(r.deps.Idempotency, &cfg.Idempotency, r.logger))
		dispatch.POST("/push", r.deps.Push.Push)
		dispatch.POST("/blast", r.deps.Push.Blast)

		api.GET("/blast/:id", r.deps.Push.JobStatus)
	}

	// 404 处理
	r.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":             "not_found",
			"error_description": "The requested resource was not found",
		})
	})
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}

// Start 启动 HTTP 服务器，阻塞直到 Stop 被调用或监听失败
func (r *Router) Start() error {
	r.logger.Info(context.Background(), "Starting HTTP server", logger.String("address", r.server.Addr))

	if err := r.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop 停止 HTTP 服务器
func (r *Router) Stop(ctx context.Context) error {
	r.logger.Info(ctx, "Stopping HTTP server...")
	return r.server.Shutdown(ctx)
}

// Engine exposes the gin engine, mainly for tests.
func (r *Router) Engine() *gin.Engine {
	return r.engine
}
