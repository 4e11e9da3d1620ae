package service

import (
	"context"
	"runtime"
	"time"

	"prism/internal/repository"
	"prism/pkg/logger"

	"go.uber.org/zap"
)

// HealthServiceImpl implements the HealthService interface
type HealthServiceImpl struct {
	index      repository.DerivativeIndex
	customers  CustomerStore
	derivation DerivationService
	testImage  string
	startTime  time.Time
	version    string
}

// NewHealthService creates a new health service. testImage may be empty,
// in which case the originals bucket is not checked.
func NewHealthService(
	index repository.DerivativeIndex,
	customers CustomerStore,
	derivation DerivationService,
	testImage string,
	version string,
) HealthService {
	return &HealthServiceImpl{
		index:      index,
		customers:  customers,
		derivation: derivation,
		testImage:  testImage,
		startTime:  time.Now(),
		version:    version,
	}
}

// CheckHealth performs comprehensive health check
func (s *HealthServiceImpl) CheckHealth(ctx context.Context) (*HealthStatus, error) {
	logger.DebugWithContext(ctx, "Starting health check")

	services := make(map[string]string)

	if err := s.index.Health(ctx); err != nil {
		logger.WarnWithContext(ctx, "Derivative index health check failed",
			zap.Error(err))
		services["index"] = "unhealthy: " + err.Error()
	} else {
		services["index"] = "connected"
	}

	customer, err := s.customers.GetDefaultCustomer(ctx)
	if err != nil {
		logger.WarnWithContext(ctx, "Credentials health check failed",
			zap.Error(err))
		services["credentials"] = "unhealthy: " + err.Error()
	} else {
		services["credentials"] = "loaded"
	}

	switch {
	case s.testImage == "":
		services["originals"] = "not configured"
	case customer == nil:
		services["originals"] = "unknown: no customer"
	default:
		exists, err := s.derivation.OriginalExists(ctx, customer, s.testImage)
		switch {
		case err != nil:
			logger.WarnWithContext(ctx, "Originals health check failed",
				zap.String("test_image", s.testImage),
				zap.Error(err))
			services["originals"] = "unhealthy: " + err.Error()
		case !exists:
			services["originals"] = "unhealthy: test image missing"
		default:
			services["originals"] = "connected"
		}
	}

	services["application"] = "healthy"

	uptime := time.Since(s.startTime).Milliseconds()

	status := &HealthStatus{
		Services: services,
		Uptime:   uptime,
		Version:  s.version,
	}

	logger.InfoWithContext(ctx, "Health check completed",
		zap.Any("services", services),
		zap.Int64("uptime", uptime))

	return status, nil
}

// GetMetrics retrieves system metrics
func (s *HealthServiceImpl) GetMetrics(ctx context.Context) (map[string]interface{}, error) {
	logger.DebugWithContext(ctx, "Collecting system metrics")

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	metrics := map[string]interface{}{
		"system": map[string]interface{}{
			"uptime_milliseconds": time.Since(s.startTime).Milliseconds(),
			"version":             s.version,
			"go_version":          runtime.Version(),
			"goroutines":          runtime.NumGoroutine(),
			"cpu_count":           runtime.NumCPU(),
		},
		"memory": map[string]interface{}{
			"alloc_bytes":      memStats.Alloc,
			"sys_bytes":        memStats.Sys,
			"heap_alloc_bytes": memStats.HeapAlloc,
			"heap_objects":     memStats.HeapObjects,
			"gc_runs":          memStats.NumGC,
		},
		"derivations": s.derivation.Stats(),
		"timestamp":   time.Now().Unix(),
	}

	if stats, err := s.index.Stats(ctx); err != nil {
		logger.WarnWithContext(ctx, "Failed to collect index stats", zap.Error(err))
	} else if stats != nil {
		metrics["index"] = stats
	}

	logger.DebugWithContext(ctx, "System metrics collected",
		zap.Int("goroutines", runtime.NumGoroutine()),
		zap.Uint64("heap_alloc_mb", memStats.HeapAlloc/1024/1024))

	return metrics, nil
}
