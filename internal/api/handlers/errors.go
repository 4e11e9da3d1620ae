package handlers

import (
	"errors"
	"net/http"

	"prism/internal/models"
	"prism/internal/reporting"
	"prism/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// errorResponder maps service errors to HTTP responses. Errors it does not
// recognize are reported before answering 500.
type errorResponder struct {
	reporter reporting.Reporter
}

func (r errorResponder) handleServiceError(c *gin.Context, err error, operation string) {
	ctx := c.Request.Context()

	var (
		validation models.ValidationError
		notFound   models.NotFoundError
		empty      models.EmptyOriginalError
		invalid    models.InvalidImageError
		upstream   models.UpstreamError
		storage    models.StorageError
	)

	switch {
	case errors.As(err, &validation):
		logger.WarnWithContext(ctx, "Validation error",
			zap.String("field", validation.Field),
			zap.String("message", validation.Message),
			zap.String("operation", operation))
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Validation failed",
			Message: validation.Error(),
			Code:    http.StatusBadRequest,
		})

	case errors.As(err, &notFound):
		logger.WarnWithContext(ctx, "Resource not found",
			zap.String("resource", notFound.Resource),
			zap.String("id", notFound.ID),
			zap.String("operation", operation))
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error:   "Not found",
			Message: notFound.Error(),
			Code:    http.StatusNotFound,
		})

	case errors.As(err, &empty):
		logger.WarnWithContext(ctx, "Empty original",
			zap.String("path", empty.Path),
			zap.String("operation", operation))
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Empty original",
			Message: empty.Error(),
			Code:    http.StatusBadRequest,
		})

	case errors.As(err, &invalid):
		logger.WarnWithContext(ctx, "Invalid original",
			zap.String("path", invalid.Path),
			zap.String("reason", invalid.Reason),
			zap.String("operation", operation))
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Invalid image",
			Message: invalid.Error(),
			Code:    http.StatusBadRequest,
		})

	case errors.As(err, &upstream):
		logger.ErrorWithContext(ctx, "Upstream error",
			zap.String("upstream_operation", upstream.Operation),
			zap.String("reason", upstream.Reason),
			zap.String("operation", operation))
		c.JSON(http.StatusBadGateway, models.ErrorResponse{
			Error:   "Upstream unavailable",
			Message: "The object store did not answer in time",
			Code:    http.StatusBadGateway,
		})

	case errors.As(err, &storage):
		logger.ErrorWithContext(ctx, "Storage error",
			zap.String("storage_operation", storage.Operation),
			zap.String("backend", storage.Backend),
			zap.String("reason", storage.Reason),
			zap.String("operation", operation))
		c.JSON(http.StatusBadGateway, models.ErrorResponse{
			Error:   "Storage unavailable",
			Message: "The object store rejected the request",
			Code:    http.StatusBadGateway,
		})

	default:
		logger.ErrorWithContext(ctx, "Unknown error",
			zap.Error(err),
			zap.String("operation", operation))
		r.reporter.Capture(ctx, err, logger.GetCustomer(ctx))
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "Internal server error",
			Message: "An unexpected error occurred",
			Code:    http.StatusInternalServerError,
		})
	}
}
