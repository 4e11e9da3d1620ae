package middleware

import (
	"net/http"
	"strings"

	"prism/internal/config"

	"github.com/gin-gonic/gin"
)

// CORS middleware handles Cross-Origin Resource Sharing. Images are public
// and read-only, so only safe methods are advertised.
func CORS(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !cfg.CORS.Enabled {
			c.Next()
			return
		}

		origin := c.Request.Header.Get("Origin")

		if origin != "" {
			if isAllowedOrigin(origin, cfg) {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
			}
		} else if cfg.IsDevelopment() || cfg.CORS.AllowAllOrigins {
			c.Header("Access-Control-Allow-Origin", "*")
		}

		c.Header("Access-Control-Allow-Methods", "GET, HEAD, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Accept, X-Request-ID, X-Requested-With")
		c.Header("Access-Control-Expose-Headers", "X-Request-ID, Content-Length, Content-Type")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// isAllowedOrigin checks the configured list, then customer subdomains of DOMAIN
func isAllowedOrigin(origin string, cfg *config.Config) bool {
	if cfg.IsDevelopment() || cfg.CORS.AllowAllOrigins {
		return true
	}

	for _, allowed := range cfg.CORS.AllowedOrigins {
		if allowed == "*" || origin == allowed {
			return true
		}
	}

	if domain := cfg.Tenancy.Domain; domain != "" {
		return strings.HasPrefix(origin, "https://") && strings.HasSuffix(origin, "."+domain)
	}
	return false
}
