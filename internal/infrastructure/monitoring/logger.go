package monitoring

import (
	"context"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/turtacn/pushgate/internal/config"
	"github.com/turtacn/pushgate/pkg/constants"
	"github.com/turtacn/pushgate/pkg/logger"
)

// contextFields are copied from the context onto every entry.
var contextFields = []constants.ContextKey{
	constants.ContextKeyTraceID,
	constants.ContextKeyRequestID,
	constants.ContextKeyJobID,
}

type zapLogger struct {
	*zap.Logger
}

// NewZapLogger builds the process logger from the log section of the config.
func NewZapLogger(cfg *config.LogConfig) (logger.Logger, error) {
	return newZapLogger(cfg, zapcore.AddSync(os.Stdout)), nil
}

func newZapLogger(cfg *config.LogConfig, sink zapcore.WriteSyncer) logger.Logger {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	encoder := zapcore.NewJSONEncoder(encoderConfig)
	if cfg.Format == "console" {
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	core := zapcore.NewCore(encoder, sink, level)
	return &zapLogger{zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1), zap.AddStacktrace(zapcore.ErrorLevel))}
}

func (l *zapLogger) Debug(ctx context.Context, msg string, fields ...logger.Field) {
	l.Logger.Debug(msg, l.convertFields(ctx, fields)...)
}

func (l *zapLogger) Info(ctx context.Context, msg string, fields ...logger.Field) {
	l.Logger.Info(msg, l.convertFields(ctx, fields)...)
}

func (l *zapLogger) Warn(ctx context.Context, msg string, fields ...logger.Field) {
	l.Logger.Warn(msg, l.convertFields(ctx, fields)...)
}

func (l *zapLogger) Error(ctx context.Context, msg string, err error, fields ...logger.Field) {
	l.Logger.Error(msg, append(l.convertFields(ctx, fields), zap.Error(err))...)
}

func (l *zapLogger) Fatal(ctx context.Context, msg string, err error, fields ...logger.Field) {
	l.Logger.Fatal(msg, append(l.convertFields(ctx, fields), zap.Error(err))...)
}

func (l *zapLogger) WithFields(fields ...logger.Field) logger.Logger {
	return &zapLogger{l.Logger.With(l.convertFields(context.Background(), fields)...)}
}

func (l *zapLogger) WithComponent(component string) logger.Logger {
	return &zapLogger{l.Logger.With(zap.String("component", component))}
}

func (l *zapLogger) convertFields(ctx context.Context, fields []logger.Field) []zap.Field {
	zapFields := make([]zap.Field, 0, len(fields)+3)
	if ctx != nil {
		for _, key := range contextFields {
			if v, ok := ctx.Value(key).(string); ok && v != "" {
				zapFields = append(zapFields, zap.String(string(key), v))
			}
		}
	}

	for _, f := range fields {
		zapFields = append(zapFields, zap.Any(f.Key, logger.Sanitize(f.Key, f.Value)))
	}
	return zapFields
}
