package storage

import (
	"testing"

	"prism/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestURLFor(t *testing.T) {
	tests := []struct {
		name   string
		bucket models.Bucket
		key    string
		want   string
	}{
		{
			name:   "us-east-1 uses the global host",
			bucket: models.Bucket{Name: "acme", Region: "us-east-1"},
			key:    "media/cat.jpg",
			want:   "https://s3.amazonaws.com/acme/media/cat.jpg",
		},
		{
			name:   "empty region uses the global host",
			bucket: models.Bucket{Name: "acme"},
			key:    "cat.jpg",
			want:   "https://s3.amazonaws.com/acme/cat.jpg",
		},
		{
			name:   "other regions use a regional host",
			bucket: models.Bucket{Name: "acme.images", Region: "eu-west-1"},
			key:    "cat.jpg",
			want:   "https://s3-eu-west-1.amazonaws.com/acme.images/cat.jpg",
		},
		{
			name:   "custom endpoint wins over region",
			bucket: models.Bucket{Name: "acme", Region: "eu-west-1", Endpoint: "http://minio:9000/"},
			key:    "prism-images/cat.jpg--resize--w__300.jpg",
			want:   "http://minio:9000/acme/prism-images/cat.jpg--resize--w__300.jpg",
		},
		{
			name:   "key segments are escaped",
			bucket: models.Bucket{Name: "acme"},
			key:    "media/my cat.jpg",
			want:   "https://s3.amazonaws.com/acme/media/my%20cat.jpg",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, URLFor(tt.bucket, tt.key))
		})
	}
}

func TestAccelPath(t *testing.T) {
	assert.Equal(t, "/s3/s3.amazonaws.com/acme/prism-images/a.jpg",
		AccelPath("https://s3.amazonaws.com/acme/prism-images/a.jpg"))
	assert.Equal(t, "/s3/minio:9000/acme/a.jpg",
		AccelPath("http://minio:9000/acme/a.jpg"))
}
