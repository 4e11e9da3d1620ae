package middleware

import (
	"net/http"

	"prism/internal/models"
	"prism/internal/reporting"
	"prism/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Recovery turns a panic into a 500 and hands it to the reporter
func Recovery(reporter reporting.Reporter) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			recovered := recover()
			if recovered == nil {
				return
			}

			ctx := c.Request.Context()
			customer := logger.GetCustomer(ctx)

			logger.ErrorWithContext(ctx, "Panic while serving request",
				zap.Any("panic", recovered),
				zap.String("path", c.Request.URL.Path),
				zap.Stack("stack"))

			reporter.CapturePanic(ctx, recovered, customer)

			c.AbortWithStatusJSON(http.StatusInternalServerError, models.ErrorResponse{
				Error:   "Internal server error",
				Message: "An unexpected error occurred",
				Code:    http.StatusInternalServerError,
			})
		}()

		c.Next()
	}
}
