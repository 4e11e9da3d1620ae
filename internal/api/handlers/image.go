package handlers

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"prism/internal/config"
	"prism/internal/models"
	"prism/internal/reporting"
	"prism/internal/service"
	"prism/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	dprCookie       = "dpr"
	dprCookieMaxAge = 365 * 24 * 60 * 60
)

// ImageHandler handles derivation requests and the test routes
type ImageHandler struct {
	errorResponder
	derivation service.DerivationService
	customers  service.CustomerStore
	config     *config.Config
}

// NewImageHandler creates a new image handler
func NewImageHandler(
	derivation service.DerivationService,
	customers service.CustomerStore,
	reporter reporting.Reporter,
	config *config.Config,
) *ImageHandler {
	return &ImageHandler{
		errorResponder: errorResponder{reporter: reporter},
		derivation:     derivation,
		customers:      customers,
		config:         config,
	}
}

// Derive is the main entry. Every path that no other route claims ends up
// here and names an original in the customer's read bucket.
func (h *ImageHandler) Derive(c *gin.Context) {
	ctx := c.Request.Context()
	path := strings.TrimPrefix(c.Request.URL.Path, "/")

	raw := models.RawRequest{
		Path:   path,
		Query:  c.Request.URL.Query(),
		Accept: c.GetHeader("Accept"),
	}
	if dpr, err := c.Cookie(dprCookie); err == nil {
		raw.DPR = dpr
	}

	if !supportedExtension(raw.Extension()) {
		logger.DebugWithContext(ctx, "Unsupported extension",
			zap.String("path", path))
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error:   "Not found",
			Message: fmt.Sprintf("no image route for %s", c.Request.URL.Path),
			Code:    http.StatusNotFound,
		})
		return
	}

	// GIFs are served untouched unless another encoding was asked for
	if raw.Extension() == ".gif" {
		if out := strings.ToLower(raw.Query.Get("out")); out == "" || out == "gif" {
			customer, ok := h.resolveCustomer(c)
			if !ok {
				return
			}
			result, err := h.derivation.Passthrough(c.Request.Context(), customer, path)
			if err != nil {
				h.handleServiceError(c, err, "passthrough")
				return
			}
			h.respond(c, result)
			return
		}
	}

	spec, err := service.ParseRequest(raw)
	if err != nil {
		h.handleServiceError(c, err, "parse")
		return
	}

	customer, ok := h.resolveCustomer(c)
	if !ok {
		return
	}
	ctx = c.Request.Context()

	logger.InfoWithContext(ctx, "Processing derivation",
		zap.String("path", path),
		zap.String("command", string(spec.Command)),
		zap.Int("width", spec.Width),
		zap.Int("height", spec.Height),
		zap.String("format", spec.OutputFormat))

	if spec.Command == models.CommandInfo {
		info, err := h.derivation.Info(ctx, customer, path)
		if err != nil {
			h.handleServiceError(c, err, "info")
			return
		}
		c.JSON(http.StatusOK, info)
		return
	}

	result, err := h.derivation.Derive(ctx, customer, path, spec)
	if err != nil {
		h.handleServiceError(c, err, "derive")
		return
	}
	h.respond(c, result)
}

// Index handles GET /
func (h *ImageHandler) Index(c *gin.Context) {
	c.String(http.StatusOK, "Coming Soon")
}

// NotFound answers paths browsers ask for on their own
func (h *ImageHandler) NotFound(c *gin.Context) {
	c.Status(http.StatusNotFound)
}

// SetDPR stores the device pixel ratio in a cookie used by retina requests
// GET /setdpr/:dpr
func (h *ImageHandler) SetDPR(c *gin.Context) {
	dpr := c.Param("dpr")
	if _, err := strconv.ParseFloat(dpr, 64); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Validation failed",
			Message: "dpr must be a number",
			Code:    http.StatusBadRequest,
		})
		return
	}

	c.SetCookie(dprCookie, dpr, dprCookieMaxAge, "/", "", false, false)
	c.Data(http.StatusOK, "application/javascript", []byte("var prism_dpr_set="+dpr+";"))
}

// TestInfo returns the metadata of the configured test image
// GET /test/info
func (h *ImageHandler) TestInfo(c *gin.Context) {
	ctx := c.Request.Context()

	customer, ok := h.defaultCustomer(c)
	if !ok {
		return
	}

	info, err := h.derivation.Info(ctx, customer, h.config.Server.TestImage)
	if err != nil {
		h.handleServiceError(c, err, "test_info")
		return
	}
	c.JSON(http.StatusOK, info)
}

// TestResize renders the configured test image at 200x200
// GET /test/resize
func (h *ImageHandler) TestResize(c *gin.Context) {
	ctx := c.Request.Context()

	customer, ok := h.defaultCustomer(c)
	if !ok {
		return
	}

	path := h.config.Server.TestImage
	spec, err := service.ParseRequest(models.RawRequest{
		Path:  path,
		Query: url.Values{"w": {"200"}, "h": {"200"}, "out": {"jpg"}, "debug": {"1"}},
	})
	if err != nil {
		h.handleServiceError(c, err, "test_resize")
		return
	}

	result, err := h.derivation.Derive(ctx, customer, path, spec)
	if err != nil {
		h.handleServiceError(c, err, "test_resize")
		return
	}
	h.respond(c, result)
}

func (h *ImageHandler) respond(c *gin.Context, result *service.DerivationResult) {
	logger.DebugWithContext(c.Request.Context(), "Derivation answered",
		zap.String("kind", result.Kind.String()),
		zap.String("url", result.URL))

	switch result.Kind {
	case service.ResultRedirect:
		c.Redirect(http.StatusFound, result.URL)
	case service.ResultAccel:
		c.Header("X-Accel-Redirect", result.AccelPath)
		c.Status(http.StatusOK)
	case service.ResultBytes:
		c.Data(http.StatusOK, result.ContentType, result.Data)
	case service.ResultInfo:
		c.JSON(http.StatusOK, result.Info)
	default:
		h.handleServiceError(c, fmt.Errorf("unknown result kind %d", result.Kind), "respond")
	}
}

// resolveCustomer looks the tenant up from the customer parameter or the
// request host and tags the request context with it
func (h *ImageHandler) resolveCustomer(c *gin.Context) (*models.Customer, bool) {
	key := customerKey(c.Query("customer"), c.Request.Host, h.config.Tenancy.Domain)
	c.Request = c.Request.WithContext(logger.WithCustomer(c.Request.Context(), key))

	customer, err := h.customers.GetCustomer(c.Request.Context(), key)
	if err != nil {
		h.handleServiceError(c, err, "resolve_customer")
		return nil, false
	}
	return customer, true
}

func (h *ImageHandler) defaultCustomer(c *gin.Context) (*models.Customer, bool) {
	customer, err := h.customers.GetDefaultCustomer(c.Request.Context())
	if err != nil {
		h.handleServiceError(c, err, "default_customer")
		return nil, false
	}
	c.Request = c.Request.WithContext(logger.WithCustomer(c.Request.Context(), customer.Key))
	return customer, true
}

// customerKey prefers an explicit key, then the host with its port and the
// service domain removed
func customerKey(param, host, domain string) string {
	if param != "" {
		return param
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	if domain != "" {
		host = strings.TrimSuffix(host, "."+domain)
	}
	return host
}

func supportedExtension(ext string) bool {
	for _, e := range models.SourceExtensions {
		if ext == e {
			return true
		}
	}
	return false
}
