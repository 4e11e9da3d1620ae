package models

import (
	"encoding/json"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"
)

// Command names a transform the engine knows how to run
type Command string

const (
	CommandResize         Command = "resize"
	CommandResizeThenCrop Command = "resize_then_crop"
	CommandResizeThenFit  Command = "resize_then_fit"
	CommandInfo           Command = "info"
	CommandSmartCrop      Command = "smart_crop"
)

// Gravity anchors the crop window
type Gravity string

const (
	GravityCenter  Gravity = "center"
	GravityTopLeft Gravity = "top_left"
	GravitySmart   Gravity = "smart"
)

// Defaults shared by the parser and the key deriver.
// Changing any of them changes every derivative key.
const (
	DefaultQuality              = 95
	DefaultFrameBackgroundColor = "FFF"
	DefaultGravity              = GravityCenter
	DerivativePrefix            = "prism-images/"
)

// SourceExtensions lists the path extensions the main entry accepts
var SourceExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".webp"}

// OutputFormats lists the encodings a caller may request with `out`
var OutputFormats = []string{"jpg", "jpeg", "png", "webp"}

// RawRequest is the unparsed input of a derivation request
type RawRequest struct {
	Path   string     // image path without the leading slash
	Query  url.Values // query parameters
	Accept string     // Accept header
	DPR    string     // dpr cookie, empty when unset
}

// Extension returns the lowercased path extension including the dot
func (r RawRequest) Extension() string {
	return strings.ToLower(filepath.Ext(r.Path))
}

// CropRect is an explicit source rectangle
type CropRect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Usable reports whether the rectangle should drive the resize.
// A zero in any field disables the explicit crop path.
func (r *CropRect) Usable() bool {
	return r != nil && r.X != 0 && r.Y != 0 && r.Width != 0 && r.Height != 0
}

// Filter is one entry of the `filters` query value.
// On the wire it is a flat object: {"id": "...", "<param>": <value>, ...}.
type Filter struct {
	ID     string
	Params map[string]interface{}
}

// MarshalJSON flattens the filter back into its wire form
func (f Filter) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(f.Params)+1)
	for k, v := range f.Params {
		out[k] = v
	}
	out["id"] = f.ID
	return json.Marshal(out)
}

// UnmarshalJSON reads the flat wire form
func (f *Filter) UnmarshalJSON(data []byte) error {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	id, ok := raw["id"].(string)
	if !ok || id == "" {
		return fmt.Errorf("filter entry has no string id")
	}
	delete(raw, "id")
	f.ID = id
	f.Params = make(map[string]interface{}, len(raw))
	for k, v := range raw {
		f.Params[strings.ReplaceAll(k, "-", "_")] = v
	}
	return nil
}

// TransformSpec is the canonical, fully defaulted form of a request.
// Width and Height are zero when not requested.
type TransformSpec struct {
	Command              Command   `json:"command"`
	Width                int       `json:"w,omitempty"`
	Height               int       `json:"h,omitempty"`
	PreserveRatio        bool      `json:"preserve_ratio"`
	Gravity              Gravity   `json:"gravity"`
	Crop                 *CropRect `json:"crop,omitempty"`
	FrameBackgroundColor string    `json:"frame_bg_color"`
	Opacity              int       `json:"opacity"`
	PremultipliedAlpha   bool      `json:"premultiplied_alpha"`
	Quality              int       `json:"q"`
	OutputFormat         string    `json:"out_format"`
	Filters              []Filter  `json:"filters,omitempty"`

	WithInfo   bool `json:"with_info"`
	NoRedirect bool `json:"no_redirect"`
	Debug      bool `json:"debug"`
	Force      bool `json:"force"`
}

// HasBothDimensions reports whether a full target box was requested
func (s *TransformSpec) HasBothDimensions() bool {
	return s.Width > 0 && s.Height > 0
}

// Extension is the file extension of the encoded derivative
func (s *TransformSpec) Extension() string {
	if s.OutputFormat == "" {
		return "png"
	}
	return s.OutputFormat
}

// ContentType is the MIME type stored with the derivative
func (s *TransformSpec) ContentType() string {
	return ContentTypeFor(s.Extension())
}

// ContentTypeFor maps a file extension to its image MIME type
func ContentTypeFor(ext string) string {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	if ext == "jpg" {
		ext = "jpeg"
	}
	return "image/" + ext
}

// Bucket addresses one object store bucket and the credentials to write it
type Bucket struct {
	Name            string `json:"name"`
	Region          string `json:"region"`
	Endpoint        string `json:"endpoint,omitempty"`
	AccessKeyID     string `json:"-"`
	SecretAccessKey string `json:"-"`
}

// Customer is a tenant with its own read and write buckets
type Customer struct {
	Key   string `json:"key"`
	Read  Bucket `json:"read"`
	Write Bucket `json:"write"`
}

// CustomerCredentials is one entry of credentials.json
type CustomerCredentials struct {
	ReadBucketName        string `json:"read_bucket_name"`
	ReadBucketKeyID       string `json:"read_bucket_key_id"`
	ReadBucketSecretKey   string `json:"read_bucket_secret_key"`
	ReadBucketRegion      string `json:"read_bucket_region"`
	ReadBucketEndpointURL string `json:"read_bucket_endpoint_url"`

	WriteBucketName        string `json:"write_bucket_name"`
	WriteBucketKeyID       string `json:"write_bucket_key_id"`
	WriteBucketSecretKey   string `json:"write_bucket_secret_key"`
	WriteBucketRegion      string `json:"write_bucket_region"`
	WriteBucketEndpointURL string `json:"write_bucket_endpoint_url"`
}

// ToCustomer builds a Customer, filling unset write fields from the read bucket
func (c CustomerCredentials) ToCustomer(key string) *Customer {
	read := Bucket{
		Name:            c.ReadBucketName,
		Region:          c.ReadBucketRegion,
		Endpoint:        c.ReadBucketEndpointURL,
		AccessKeyID:     c.ReadBucketKeyID,
		SecretAccessKey: c.ReadBucketSecretKey,
	}
	return &Customer{
		Key:  key,
		Read: read,
		Write: Bucket{
			Name:            firstNonEmpty(c.WriteBucketName, read.Name),
			Region:          firstNonEmpty(c.WriteBucketRegion, read.Region),
			Endpoint:        firstNonEmpty(c.WriteBucketEndpointURL, read.Endpoint),
			AccessKeyID:     firstNonEmpty(c.WriteBucketKeyID, read.AccessKeyID),
			SecretAccessKey: firstNonEmpty(c.WriteBucketSecretKey, read.SecretAccessKey),
		},
	}
}

// ImageInfo is the metadata document returned by cmd=info and with_info
type ImageInfo struct {
	ImgType      string            `json:"img_type"`
	AlphaChannel bool              `json:"alpha_channel"`
	Exif         map[string]string `json:"exif"`
	Width        int               `json:"width"`
	Height       int               `json:"height"`
	URL          string            `json:"url,omitempty"`
}

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Services  map[string]string `json:"services"`
	Timestamp time.Time         `json:"timestamp"`
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
