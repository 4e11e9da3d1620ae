package service

import (
	"context"
	"image"

	"prism/internal/models"
)

// DerivationService defines the interface for the derive-and-cache workflow
type DerivationService interface {
	// Derive returns the derivative for path, building and uploading it when
	// it is not already stored
	Derive(ctx context.Context, customer *models.Customer, path string, spec *models.TransformSpec) (*DerivationResult, error)

	// Info returns metadata of an original without storing anything
	Info(ctx context.Context, customer *models.Customer, path string) (*models.ImageInfo, error)

	// Passthrough redirects to an original untouched, used for GIFs
	Passthrough(ctx context.Context, customer *models.Customer, path string) (*DerivationResult, error)

	// OriginalExists checks an original in the customer's read bucket
	OriginalExists(ctx context.Context, customer *models.Customer, path string) (bool, error)

	// Stats returns outcome counters since start
	Stats() DerivationStats
}

// ProcessorService defines the interface for image processing
type ProcessorService interface {
	// Decode decodes and auto-orients an original
	Decode(data []byte) (image.Image, error)

	// Transform runs the spec's command and filters over a decoded image
	Transform(ctx context.Context, img image.Image, spec *models.TransformSpec) (image.Image, error)

	// Encode serializes an image in the requested format
	Encode(img image.Image, format string, quality int, premultiplied bool) ([]byte, error)

	// Info extracts format, alpha, size and EXIF text tags
	Info(data []byte) (*models.ImageInfo, error)
}

// PointOfInterestDetector finds the most salient point of an image
type PointOfInterestDetector interface {
	PointOfInterest(img image.Image) (x, y int, err error)
}

// CustomerStore resolves tenants to their bucket credentials
type CustomerStore interface {
	// GetCustomer returns the customer registered under key
	GetCustomer(ctx context.Context, key string) (*models.Customer, error)

	// GetDefaultCustomer returns the customer used by health and test routes
	GetDefaultCustomer(ctx context.Context) (*models.Customer, error)
}

// HealthService defines the interface for health checking
type HealthService interface {
	// CheckHealth performs comprehensive health check
	CheckHealth(ctx context.Context) (*HealthStatus, error)

	// GetMetrics retrieves system metrics
	GetMetrics(ctx context.Context) (map[string]interface{}, error)
}

// ResultKind tells the handler how to answer a derivation
type ResultKind int

const (
	ResultRedirect ResultKind = iota // 302 to URL
	ResultAccel                      // X-Accel-Redirect to AccelPath
	ResultBytes                      // raw Data
	ResultInfo                       // Info as JSON
)

func (k ResultKind) String() string {
	switch k {
	case ResultRedirect:
		return "redirect"
	case ResultAccel:
		return "accel"
	case ResultBytes:
		return "bytes"
	case ResultInfo:
		return "info"
	default:
		return "unknown"
	}
}

// DerivationResult represents the outcome of a derivation
type DerivationResult struct {
	Kind        ResultKind
	URL         string
	AccelPath   string
	Data        []byte
	ContentType string
	Info        *models.ImageInfo
}

// HealthStatus represents system health status
type HealthStatus struct {
	Services map[string]string `json:"services"`
	Uptime   int64             `json:"uptime_seconds"`
	Version  string            `json:"version"`
}

// DerivationStats counts orchestrator outcomes since start
type DerivationStats struct {
	Requests    int64 `json:"requests"`
	Derived     int64 `json:"derived"`
	CacheHits   int64 `json:"cache_hits"`
	IndexHits   int64 `json:"index_hits"`
	Passthrough int64 `json:"passthrough"`
	Failures    int64 `json:"failures"`
}
