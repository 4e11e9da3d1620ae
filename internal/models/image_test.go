package models

import (
	"encoding/json"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCropRect_Usable(t *testing.T) {
	tests := []struct {
		name string
		rect *CropRect
		want bool
	}{
		{"nil", nil, false},
		{"all set", &CropRect{X: 10, Y: 20, Width: 300, Height: 200}, true},
		{"zero x", &CropRect{X: 0, Y: 20, Width: 300, Height: 200}, false},
		{"zero height", &CropRect{X: 10, Y: 20, Width: 300, Height: 0}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rect.Usable())
		})
	}
}

func TestFilter_JSON(t *testing.T) {
	var filters []Filter
	err := json.Unmarshal([]byte(`[{"id":"translucent","background-color":"000","opacity":30}]`), &filters)
	require.NoError(t, err)
	require.Len(t, filters, 1)

	assert.Equal(t, "translucent", filters[0].ID)
	assert.Equal(t, "000", filters[0].Params["background_color"])
	assert.Equal(t, float64(30), filters[0].Params["opacity"])

	out, err := json.Marshal(filters)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"translucent","background_color":"000","opacity":30}]`, string(out))
}

func TestFilter_UnmarshalRequiresID(t *testing.T) {
	var f Filter
	assert.Error(t, json.Unmarshal([]byte(`{"opacity":30}`), &f))
	assert.Error(t, json.Unmarshal([]byte(`"foo"`), &f))
}

func TestContentTypeFor(t *testing.T) {
	assert.Equal(t, "image/jpeg", ContentTypeFor("jpg"))
	assert.Equal(t, "image/jpeg", ContentTypeFor(".JPEG"))
	assert.Equal(t, "image/png", ContentTypeFor("png"))
	assert.Equal(t, "image/webp", ContentTypeFor("webp"))
}

func TestTransformSpec_Extension(t *testing.T) {
	assert.Equal(t, "png", (&TransformSpec{}).Extension())
	assert.Equal(t, "webp", (&TransformSpec{OutputFormat: "webp"}).Extension())
}

func TestRawRequest_Extension(t *testing.T) {
	req := RawRequest{Path: "media/Photo.JPG", Query: url.Values{}}
	assert.Equal(t, ".jpg", req.Extension())
}

func TestCustomerCredentials_ToCustomer(t *testing.T) {
	t.Run("write defaults to read", func(t *testing.T) {
		creds := CustomerCredentials{
			ReadBucketName:      "acme-originals",
			ReadBucketRegion:    "eu-west-1",
			ReadBucketKeyID:     "AKIA1",
			ReadBucketSecretKey: "secret1",
		}

		customer := creds.ToCustomer("acme")

		assert.Equal(t, "acme", customer.Key)
		assert.Equal(t, customer.Read, customer.Write)
	})

	t.Run("explicit write bucket", func(t *testing.T) {
		creds := CustomerCredentials{
			ReadBucketName:   "acme-originals",
			ReadBucketRegion: "eu-west-1",
			ReadBucketKeyID:  "AKIA1",
			WriteBucketName:  "acme-derivatives",
		}

		customer := creds.ToCustomer("acme")

		assert.Equal(t, "acme-derivatives", customer.Write.Name)
		assert.Equal(t, "eu-west-1", customer.Write.Region)
		assert.Equal(t, "AKIA1", customer.Write.AccessKeyID)
	})
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "validation error on field 'w': width should be < 10000",
		ValidationError{Field: "w", Message: "width should be < 10000"}.Error())
	assert.Equal(t, "original 'a.jpg' not found",
		NotFoundError{Resource: "original", ID: "a.jpg"}.Error())
	assert.Contains(t, EmptyOriginalError{Path: "a.jpg"}.Error(), "0 bytes")
	assert.Contains(t, InvalidImageError{Path: "a.jpg", Reason: "bad header"}.Error(), "bad header")
}
