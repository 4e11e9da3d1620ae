package reporting

import (
	"context"
	"fmt"
	"time"

	"prism/internal/config"
	"prism/pkg/logger"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"
)

// Reporter forwards unexpected failures to an error tracker. It never
// changes the response sent to the client.
type Reporter interface {
	// Capture reports err tagged with the customer key
	Capture(ctx context.Context, err error, customer string)

	// CapturePanic reports a recovered panic value
	CapturePanic(ctx context.Context, recovered interface{}, customer string)

	// Flush waits for buffered events up to timeout
	Flush(timeout time.Duration) bool
}

// New returns a Sentry reporter when a DSN is configured, otherwise a no-op
func New(cfg *config.SentryConfig) (Reporter, error) {
	if cfg.DSN == "" {
		logger.Info("Error reporting disabled")
		return NoopReporter{}, nil
	}

	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.DSN,
		Environment: cfg.Environment,
	}); err != nil {
		return nil, fmt.Errorf("failed to initialize sentry: %w", err)
	}

	logger.Info("Error reporting enabled",
		zap.String("environment", cfg.Environment))
	return &SentryReporter{hub: sentry.CurrentHub()}, nil
}

// SentryReporter implements Reporter with sentry-go
type SentryReporter struct {
	hub *sentry.Hub
}

// NewSentryReporter wraps an existing hub
func NewSentryReporter(hub *sentry.Hub) *SentryReporter {
	return &SentryReporter{hub: hub}
}

func (r *SentryReporter) Capture(ctx context.Context, err error, customer string) {
	if err == nil {
		return
	}
	hub := r.hub.Clone()
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("customer", customer)
		if requestID := logger.GetRequestID(ctx); requestID != "" {
			scope.SetTag("request_id", requestID)
		}
		hub.CaptureException(err)
	})
}

func (r *SentryReporter) CapturePanic(ctx context.Context, recovered interface{}, customer string) {
	hub := r.hub.Clone()
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("customer", customer)
		hub.RecoverWithContext(ctx, recovered)
	})
}

func (r *SentryReporter) Flush(timeout time.Duration) bool {
	return r.hub.Flush(timeout)
}

// NoopReporter drops every event
type NoopReporter struct{}

func (NoopReporter) Capture(context.Context, error, string)             {}
func (NoopReporter) CapturePanic(context.Context, interface{}, string) {}
func (NoopReporter) Flush(time.Duration) bool                          { return true }
