package handlers

import (
	"net/http"
	"time"

	"prism/internal/models"
	"prism/internal/service"
	"prism/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// healthyStatuses are service states that do not degrade /health
var healthyStatuses = map[string]bool{
	"connected":      true,
	"healthy":        true,
	"loaded":         true,
	"not configured": true,
}

// HealthHandler handles health check requests
type HealthHandler struct {
	healthService service.HealthService
	derivation    service.DerivationService
	customers     service.CustomerStore
	testImage     string
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(
	healthService service.HealthService,
	derivation service.DerivationService,
	customers service.CustomerStore,
	testImage string,
) *HealthHandler {
	return &HealthHandler{
		healthService: healthService,
		derivation:    derivation,
		customers:     customers,
		testImage:     testImage,
	}
}

// Health handles the main health check endpoint
// GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	ctx := c.Request.Context()

	healthStatus, err := h.healthService.CheckHealth(ctx)
	if err != nil {
		logger.ErrorWithContext(ctx, "Health check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, models.HealthResponse{
			Status:    "unhealthy",
			Services:  map[string]string{"error": err.Error()},
			Timestamp: time.Now(),
		})
		return
	}

	overallStatus := "healthy"
	statusCode := http.StatusOK
	for name, status := range healthStatus.Services {
		if !healthyStatuses[status] {
			overallStatus = "degraded"
			statusCode = http.StatusPartialContent
			logger.WarnWithContext(ctx, "Service unhealthy",
				zap.String("service", name),
				zap.String("status", status))
		}
	}

	c.JSON(statusCode, models.HealthResponse{
		Status:    overallStatus,
		Services:  healthStatus.Services,
		Timestamp: time.Now(),
	})
}

// ELBHealth answers the load balancer health check. It only checks that the test image
// is reachable in the default customer's read bucket.
// GET /elb-health/
func (h *HealthHandler) ELBHealth(c *gin.Context) {
	if h.testImage == "" {
		c.String(http.StatusOK, "OK")
		return
	}

	ctx := c.Request.Context()

	customer, err := h.customers.GetDefaultCustomer(ctx)
	if err != nil {
		logger.ErrorWithContext(ctx, "ELB health: no default customer", zap.Error(err))
		c.Status(http.StatusInternalServerError)
		return
	}

	exists, err := h.derivation.OriginalExists(ctx, customer, h.testImage)
	if err != nil || !exists {
		logger.ErrorWithContext(ctx, "ELB health: test image unreachable",
			zap.String("test_image", h.testImage),
			zap.Bool("exists", exists),
			zap.Error(err))
		c.Status(http.StatusInternalServerError)
		return
	}

	c.String(http.StatusOK, "OK")
}

// Metrics handles the metrics endpoint (debug only)
// GET /debug/vars
func (h *HealthHandler) Metrics(c *gin.Context) {
	ctx := c.Request.Context()

	metrics, err := h.healthService.GetMetrics(ctx)
	if err != nil {
		logger.ErrorWithContext(ctx, "Failed to get metrics", zap.Error(err))
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "Metrics unavailable",
			Message: err.Error(),
			Code:    http.StatusInternalServerError,
		})
		return
	}

	c.JSON(http.StatusOK, metrics)
}
