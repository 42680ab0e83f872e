// Package monitoring 提供日志、指标与分布式追踪的实现
package monitoring

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/turtacn/pushgate/internal/config"
	"github.com/turtacn/pushgate/pkg/logger"
)

// TracingManager 管理 OpenTelemetry 追踪
// 推送客户端与调度器通过全局 TracerProvider 获取 tracer，因此这里只负责安装与关闭
type TracingManager struct {
	provider *sdktrace.TracerProvider
	logger   logger.Logger
}

// NewTracingManager 创建追踪管理器；未启用时保留 otel 默认的 no-op provider
func NewTracingManager(cfg *config.Config, log logger.Logger) (*TracingManager, error) {
	if !cfg.Tracing.Enabled {
		log.Info(context.Background(), "Tracing is disabled")
		return &TracingManager{logger: log}, nil
	}

	// 创建 Jaeger exporter
	exporter, err := jaeger.New(jaeger.WithCollectorEndpoint(
		jaeger.WithEndpoint(cfg.Tracing.JaegerEndpoint),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create Jaeger exporter: %w", err)
	}

	// 创建资源
	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.Tracing.ServiceName),
			attribute.String("apns.bundle_id", cfg.APNs.BundleID),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.Tracing.SamplingRate))),
	)

	// 设置全局 TracerProvider 与 Propagator
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	log.Info(context.Background(), "Tracing initialized successfully",
		logger.String("endpoint", cfg.Tracing.JaegerEndpoint),
		logger.Any("sample_rate", cfg.Tracing.SamplingRate),
	)

	return &TracingManager{provider: provider, logger: log}, nil
}

// TraceID 获取当前 Trace ID，无有效 Span 时返回空串
func TraceID(ctx context.Context) string {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return ""
	}
	return sc.TraceID().String()
}

// Shutdown 刷新并关闭追踪 provider
func (tm *TracingManager) Shutdown(ctx context.Context) error {
	if tm.provider == nil {
		return nil
	}

	if err := tm.provider.Shutdown(ctx); err != nil {
		tm.logger.Error(ctx, "Failed to shutdown tracing provider", err)
		return err
	}

	tm.logger.Info(ctx, "Tracing provider shutdown successfully")
	return nil
}
