package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"prism/internal/models"
	"prism/internal/repository"
	"prism/internal/storage"
	"prism/pkg/logger"

	"go.uber.org/zap"
)

// debugContentType is what debug responses are labelled with, whatever
// encoding was produced
const debugContentType = "image/jpeg"

// DerivationServiceImpl implements the DerivationService interface
type DerivationServiceImpl struct {
	reader    storage.ObjectReader
	writer    storage.ObjectWriter
	processor ProcessorService
	index     repository.DerivativeIndex
	janitor   *Janitor
	indexTTL  time.Duration

	requests    int64
	derived     int64
	cacheHits   int64
	indexHits   int64
	passthrough int64
	failures    int64
}

// NewDerivationService creates a new derivation service. A nil index
// disables the derivative memo.
func NewDerivationService(
	reader storage.ObjectReader,
	writer storage.ObjectWriter,
	processor ProcessorService,
	index repository.DerivativeIndex,
	janitor *Janitor,
	indexTTL time.Duration,
) DerivationService {
	if index == nil {
		index = repository.NoopIndex{}
	}
	return &DerivationServiceImpl{
		reader:    reader,
		writer:    writer,
		processor: processor,
		index:     index,
		janitor:   janitor,
		indexTTL:  indexTTL,
	}
}

// Derive returns the derivative of path described by spec
func (s *DerivationServiceImpl) Derive(ctx context.Context, customer *models.Customer, path string, spec *models.TransformSpec) (*DerivationResult, error) {
	atomic.AddInt64(&s.requests, 1)

	result, err := s.derive(ctx, customer, path, spec)
	if err != nil {
		atomic.AddInt64(&s.failures, 1)
		return nil, err
	}
	return result, nil
}

func (s *DerivationServiceImpl) derive(ctx context.Context, customer *models.Customer, path string, spec *models.TransformSpec) (*DerivationResult, error) {
	if spec.Debug {
		data, _, err := s.render(ctx, customer, path, spec)
		if err != nil {
			return nil, err
		}
		return &DerivationResult{Kind: ResultBytes, Data: data, ContentType: debugContentType}, nil
	}

	key := models.DerivativeKey(path, spec)
	resultURL := storage.URLFor(customer.Write, key)

	exists := false
	if !spec.Force && !spec.WithInfo {
		var err error
		exists, err = s.derivativeExists(ctx, key, resultURL)
		if err != nil {
			return nil, err
		}
	}

	var info *models.ImageInfo
	if exists {
		atomic.AddInt64(&s.cacheHits, 1)
		logger.DebugWithContext(ctx, "Derivative already stored",
			zap.String("key", key))
	} else {
		// A client that disconnects mid-render still gets its derivative stored
		ctx := context.WithoutCancel(ctx)

		data, original, err := s.render(ctx, customer, path, spec)
		if err != nil {
			return nil, err
		}

		if err := s.writer.Put(ctx, customer.Write, key, data, spec.ContentType()); err != nil {
			return nil, err
		}
		atomic.AddInt64(&s.derived, 1)

		if err := s.index.Remember(ctx, key, resultURL, s.indexTTL); err != nil {
			logger.WarnWithContext(ctx, "Failed to record derivative in index",
				zap.String("key", key),
				zap.Error(err))
		}

		logger.InfoWithContext(ctx, "Derivative uploaded",
			zap.String("key", key),
			zap.String("bucket", customer.Write.Name),
			zap.Int("bytes", len(data)))

		if spec.WithInfo {
			info, err = s.processor.Info(original)
			if err != nil {
				return nil, withPath(err, path)
			}
		}
	}

	switch {
	case spec.WithInfo:
		info.URL = resultURL
		return &DerivationResult{Kind: ResultInfo, URL: resultURL, Info: info}, nil
	case spec.NoRedirect:
		return &DerivationResult{Kind: ResultAccel, URL: resultURL, AccelPath: storage.AccelPath(resultURL)}, nil
	default:
		return &DerivationResult{Kind: ResultRedirect, URL: resultURL}, nil
	}
}

// Info returns the metadata of an original
func (s *DerivationServiceImpl) Info(ctx context.Context, customer *models.Customer, path string) (*models.ImageInfo, error) {
	data, err := s.reader.Fetch(ctx, storage.URLFor(customer.Read, path))
	if err != nil {
		return nil, withPath(err, path)
	}

	info, err := s.processor.Info(data)
	if err != nil {
		return nil, withPath(err, path)
	}
	return info, nil
}

// Passthrough redirects to the original when it exists
func (s *DerivationServiceImpl) Passthrough(ctx context.Context, customer *models.Customer, path string) (*DerivationResult, error) {
	atomic.AddInt64(&s.passthrough, 1)

	originalURL := storage.URLFor(customer.Read, path)
	exists, err := s.reader.Exists(ctx, originalURL)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, models.NotFoundError{Resource: "original", ID: path}
	}
	return &DerivationResult{Kind: ResultRedirect, URL: originalURL}, nil
}

// OriginalExists checks an original in the customer's read bucket
func (s *DerivationServiceImpl) OriginalExists(ctx context.Context, customer *models.Customer, path string) (bool, error) {
	return s.reader.Exists(ctx, storage.URLFor(customer.Read, path))
}

// Stats returns outcome counters since start
func (s *DerivationServiceImpl) Stats() DerivationStats {
	return DerivationStats{
		Requests:    atomic.LoadInt64(&s.requests),
		Derived:     atomic.LoadInt64(&s.derived),
		CacheHits:   atomic.LoadInt64(&s.cacheHits),
		IndexHits:   atomic.LoadInt64(&s.indexHits),
		Passthrough: atomic.LoadInt64(&s.passthrough),
		Failures:    atomic.LoadInt64(&s.failures),
	}
}

// derivativeExists asks the index first and falls back to a HEAD. Index
// failures are logged and treated as a miss.
func (s *DerivationServiceImpl) derivativeExists(ctx context.Context, key, url string) (bool, error) {
	seen, err := s.index.Seen(ctx, key)
	if err != nil {
		logger.WarnWithContext(ctx, "Derivative index lookup failed",
			zap.String("key", key),
			zap.Error(err))
	}
	if seen {
		atomic.AddInt64(&s.indexHits, 1)
		return true, nil
	}

	exists, err := s.reader.Exists(ctx, url)
	if err != nil {
		return false, err
	}
	if exists {
		if err := s.index.Remember(ctx, key, url, s.indexTTL); err != nil {
			logger.WarnWithContext(ctx, "Failed to record derivative in index",
				zap.String("key", key),
				zap.Error(err))
		}
	}
	return exists, nil
}

// render fetches, decodes, transforms and encodes. It also returns the
// original bytes for callers that need its metadata.
func (s *DerivationServiceImpl) render(ctx context.Context, customer *models.Customer, path string, spec *models.TransformSpec) ([]byte, []byte, error) {
	s.janitor.Sweep()

	original, err := s.reader.Fetch(ctx, storage.URLFor(customer.Read, path))
	if err != nil {
		return nil, nil, withPath(err, path)
	}

	img, err := s.processor.Decode(original)
	if err != nil {
		return nil, nil, withPath(err, path)
	}

	img, err = s.processor.Transform(ctx, img, spec)
	if err != nil {
		return nil, nil, err
	}

	data, err := s.processor.Encode(img, spec.OutputFormat, spec.Quality, spec.PremultipliedAlpha)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode %s: %w", spec.OutputFormat, err)
	}
	return data, original, nil
}

// withPath names the original in errors that describe it
func withPath(err error, path string) error {
	var (
		notFound models.NotFoundError
		empty    models.EmptyOriginalError
		invalid  models.InvalidImageError
	)
	switch {
	case errors.As(err, &notFound):
		notFound.ID = path
		return notFound
	case errors.As(err, &empty):
		empty.Path = path
		return empty
	case errors.As(err, &invalid):
		invalid.Path = path
		return invalid
	default:
		return err
	}
}
