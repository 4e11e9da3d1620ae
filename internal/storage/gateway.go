package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"prism/internal/models"
	"prism/pkg/logger"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

const (
	// HeadTimeout bounds a single existence check attempt
	HeadTimeout = 1 * time.Second
	// GetTimeout bounds a single download attempt
	GetTimeout = 5 * time.Second
)

// RetryPolicy configures the exponential backoff around object store reads
type RetryPolicy struct {
	MaxTries        uint
	InitialInterval time.Duration
	Multiplier      float64
	MaxInterval     time.Duration
}

// DefaultRetryPolicy retries transport errors and 5xx up to five attempts
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxTries:        5,
		InitialInterval: 100 * time.Millisecond,
		Multiplier:      2,
		MaxInterval:     2 * time.Second,
	}
}

func (p RetryPolicy) options() []backoff.RetryOption {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.InitialInterval
	bo.Multiplier = p.Multiplier
	bo.MaxInterval = p.MaxInterval
	return []backoff.RetryOption{
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(p.MaxTries),
	}
}

// statusError is an unexpected HTTP status from the object store
type statusError struct {
	method string
	code   int
}

func (e statusError) Error() string {
	return fmt.Sprintf("%s returned status %d", e.method, e.code)
}

// HTTPGateway implements ObjectReader over the public object URLs
type HTTPGateway struct {
	client      *http.Client
	retry       RetryPolicy
	headTimeout time.Duration
	getTimeout  time.Duration
}

// NewHTTPGateway creates a reader with the given retry policy
func NewHTTPGateway(client *http.Client, retry RetryPolicy) *HTTPGateway {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPGateway{
		client:      client,
		retry:       retry,
		headTimeout: HeadTimeout,
		getTimeout:  GetTimeout,
	}
}

// Exists checks if an object exists
func (g *HTTPGateway) Exists(ctx context.Context, url string) (bool, error) {
	start := time.Now()

	// In-flight reads finish even if the client goes away.
	detached := context.WithoutCancel(ctx)

	found, err := backoff.Retry(detached, func() (bool, error) {
		code, _, err := g.attempt(detached, http.MethodHead, url, g.headTimeout, false)
		if err != nil {
			return false, err
		}
		switch {
		case code == http.StatusNotFound || code == http.StatusForbidden:
			return false, nil
		case code >= 500:
			return false, statusError{method: http.MethodHead, code: code}
		case code >= 400:
			return false, backoff.Permanent(statusError{method: http.MethodHead, code: code})
		}
		return true, nil
	}, g.retry.options()...)

	logger.DebugWithContext(ctx, "Object store HEAD request",
		zap.String("url", url),
		zap.Bool("exists", found),
		zap.Duration("elapsed", time.Since(start)))

	if err != nil {
		return false, g.classify("head", err)
	}
	return found, nil
}

// Fetch downloads an object
func (g *HTTPGateway) Fetch(ctx context.Context, url string) ([]byte, error) {
	start := time.Now()
	detached := context.WithoutCancel(ctx)

	data, err := backoff.Retry(detached, func() ([]byte, error) {
		code, body, err := g.attempt(detached, http.MethodGet, url, g.getTimeout, true)
		if err != nil {
			return nil, err
		}
		switch {
		case code == http.StatusNotFound || code == http.StatusForbidden:
			return nil, backoff.Permanent(models.NotFoundError{Resource: "original", ID: url})
		case code >= 500:
			return nil, statusError{method: http.MethodGet, code: code}
		case code >= 400:
			return nil, backoff.Permanent(statusError{method: http.MethodGet, code: code})
		}
		return body, nil
	}, g.retry.options()...)

	logger.InfoWithContext(ctx, "Object store GET request",
		zap.String("url", url),
		zap.Int("bytes", len(data)),
		zap.Duration("elapsed", time.Since(start)))

	if err != nil {
		var notFound models.NotFoundError
		if errors.As(err, &notFound) {
			return nil, notFound
		}
		return nil, g.classify("get", err)
	}
	if len(data) == 0 {
		return nil, models.EmptyOriginalError{Path: url}
	}
	return data, nil
}

// attempt performs one request under its own timeout
func (g *HTTPGateway) attempt(ctx context.Context, method, url string, timeout time.Duration, read bool) (int, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return 0, nil, backoff.Permanent(err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	if !read || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, body, nil
}

// classify turns a failure that survived the retry policy into a typed error
func (g *HTTPGateway) classify(operation string, err error) error {
	var status statusError
	if errors.As(err, &status) && status.code < 500 {
		return models.StorageError{Operation: operation, Backend: "http", Reason: err.Error()}
	}
	return models.UpstreamError{Operation: operation, Reason: err.Error()}
}
