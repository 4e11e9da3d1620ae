package testutil

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"time"

	"prism/internal/config"
	"prism/internal/models"

	"github.com/gin-gonic/gin"
)

// TestImagePath is the TEST_IMAGE used by TestConfig
const TestImagePath = "health/test.png"

// ParseJSONResponse parses JSON response into target
func ParseJSONResponse(resp *httptest.ResponseRecorder, target interface{}) error {
	return json.Unmarshal(resp.Body.Bytes(), target)
}

// TestConfig returns a single customer configuration with no index
func TestConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Port:      "8080",
			GinMode:   "test",
			TestImage: TestImagePath,
		},
		Tenancy: config.TenancyConfig{
			Domain:          "img.example.com",
			DefaultCustomer: "acme",
		},
		S3: config.S3Config{
			Bucket:      "acme-originals",
			WriteBucket: "acme-derivatives",
			Region:      "eu-west-1",
			AccessKey:   "test",
			SecretKey:   "test",
		},
		Redis: config.RedisConfig{
			URL:      "redis://localhost:6379",
			PoolSize: 10,
			Timeout:  5 * time.Second,
		},
		Cache: config.CacheConfig{
			Type:      "none",
			Directory: "/tmp/prism-test-cache",
			TTL:       time.Hour,
		},
		Janitor: config.JanitorConfig{
			MaxAge: 300 * time.Second,
		},
		CORS: config.CORSConfig{
			Enabled:         true,
			AllowAllOrigins: true,
		},
		Logger: config.LoggerConfig{
			Level:  "debug",
			Format: "console",
		},
	}
}

// TestCustomer returns a customer with separate read and write buckets
func TestCustomer() *models.Customer {
	return &models.Customer{
		Key:   "acme",
		Read:  models.Bucket{Name: "acme-originals", Region: "eu-west-1"},
		Write: models.Bucket{Name: "acme-derivatives", Region: "eu-west-1"},
	}
}

// CreateTestImageData encodes a solid w x h PNG
func CreateTestImageData(w, h int, c color.Color) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// SetupTestContext creates a test Gin context with request ID
func SetupTestContext(req *http.Request) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	c.Set("request_id", "test-request-id")
	return c, w
}
