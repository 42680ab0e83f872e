package middleware

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/turtacn/pushgate/internal/infrastructure/monitoring"
	"github.com/turtacn/pushgate/pkg/constants"
)

// ObservabilityMiddleware returns a Gin middleware that integrates Prometheus metrics and OpenTelemetry tracing.
// For each HTTP request, it continues the caller's trace if one was propagated, starts a server span,
// and records metrics labeled with the HTTP method, route template, and status code.
// ObservabilityMiddleware 返回一个集成了 Prometheus 指标和 OpenTelemetry 跟踪的 Gin 中间件。
func ObservabilityMiddleware(
	tracer trace.Tracer,
	httpRequestsTotal *prometheus.CounterVec,
	httpRequestDuration *prometheus.HistogramVec,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		ctx := otel.GetTextMapPropagator().Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := tracer.Start(ctx, c.Request.Method+" "+c.FullPath(), trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		if id := monitoring.TraceID(ctx); id != "" {
			ctx = context.WithValue(ctx, constants.ContextKeyTraceID, id)
		}
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		duration := time.Since(start)
		status := strconv.Itoa(c.Writer.Status())
		// Use the route template for low-cardinality labels.
		path := c.FullPath()
		if path == "" {
			path = "not_found"
		}

		httpRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(duration.Seconds())

		span.SetAttributes(
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", path),
			attribute.Int("http.status_code", c.Writer.Status()),
			attribute.String("http.client_ip", c.ClientIP()),
		)
	}
}
