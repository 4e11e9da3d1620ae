package logger

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var current atomic.Pointer[zap.Logger]

// Config selects the level and encoding of the global logger
type Config struct {
	Level  string // "debug", "info", "warn", "error"
	Format string // "json", "console"
}

type contextKey string

// Context keys carried into every WithContext logger
const (
	RequestIDKey contextKey = "request_id"
	CustomerKey  contextKey = "customer"
)

// Init builds the global logger. An empty level means info.
func Init(config Config) error {
	level := zapcore.InfoLevel
	if config.Level != "" {
		parsed, err := zapcore.ParseLevel(config.Level)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", config.Level, err)
		}
		level = parsed
	}

	zapConfig := zap.NewDevelopmentConfig()
	if config.Format == "json" {
		zapConfig = zap.NewProductionConfig()
	}
	zapConfig.Level = zap.NewAtomicLevelAt(level)

	built, err := zapConfig.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	SetLogger(built)
	return nil
}

// SetLogger replaces the global logger
func SetLogger(l *zap.Logger) {
	current.Store(l)
}

// GetLogger returns the global logger, falling back to a production logger
// when Init was never called
func GetLogger() *zap.Logger {
	if l := current.Load(); l != nil {
		return l
	}
	fallback, err := zap.NewProduction()
	if err != nil {
		fallback = zap.NewNop()
	}
	current.CompareAndSwap(nil, fallback)
	return current.Load()
}

// WithContext returns the global logger with the request id and customer
// from ctx attached
func WithContext(ctx context.Context) *zap.Logger {
	l := GetLogger()
	if requestID := GetRequestID(ctx); requestID != "" {
		l = l.With(zap.String("request_id", requestID))
	}
	if customer := GetCustomer(ctx); customer != "" {
		l = l.With(zap.String("customer", customer))
	}
	return l
}

// WithRequestID adds request ID to context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID extracts request ID from context
func GetRequestID(ctx context.Context) string {
	return stringValue(ctx, RequestIDKey)
}

// WithCustomer adds the resolved customer key to context
func WithCustomer(ctx context.Context, customer string) context.Context {
	return context.WithValue(ctx, CustomerKey, customer)
}

// GetCustomer extracts the customer key from context
func GetCustomer(ctx context.Context) string {
	return stringValue(ctx, CustomerKey)
}

func stringValue(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}

func Info(msg string, fields ...zap.Field) {
	GetLogger().Info(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	GetLogger().Error(msg, fields...)
}

func Debug(msg string, fields ...zap.Field) {
	GetLogger().Debug(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	GetLogger().Warn(msg, fields...)
}

func Fatal(msg string, fields ...zap.Field) {
	GetLogger().Fatal(msg, fields...)
}

func InfoWithContext(ctx context.Context, msg string, fields ...zap.Field) {
	WithContext(ctx).Info(msg, fields...)
}

func ErrorWithContext(ctx context.Context, msg string, fields ...zap.Field) {
	WithContext(ctx).Error(msg, fields...)
}

func DebugWithContext(ctx context.Context, msg string, fields ...zap.Field) {
	WithContext(ctx).Debug(msg, fields...)
}

func WarnWithContext(ctx context.Context, msg string, fields ...zap.Field) {
	WithContext(ctx).Warn(msg, fields...)
}
