package storage

import (
	"context"

	"prism/internal/models"
)

// ObjectReader reads public objects over plain HTTP
type ObjectReader interface {
	// Exists reports whether the object answers a HEAD. 404 and 403 mean absent.
	Exists(ctx context.Context, url string) (bool, error)

	// Fetch downloads the whole object
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// ObjectWriter stores derivatives with the bucket's own credentials
type ObjectWriter interface {
	// Put uploads data as a public-read object
	Put(ctx context.Context, bucket models.Bucket, key string, data []byte, contentType string) error
}

// CredentialsLoader reads the customer credentials document
type CredentialsLoader interface {
	LoadCredentials(ctx context.Context) (map[string]models.CustomerCredentials, error)
}
