package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"prism/internal/models"
)

// CredentialsKey is the object holding every customer's bucket credentials
const CredentialsKey = "credentials.json"

// SecretsLoader reads credentials.json from the private secrets bucket
type SecretsLoader struct {
	store  *S3Store
	bucket models.Bucket
}

// NewSecretsLoader creates a loader for the given secrets bucket
func NewSecretsLoader(store *S3Store, bucket models.Bucket) *SecretsLoader {
	return &SecretsLoader{store: store, bucket: bucket}
}

// LoadCredentials fetches and parses the credentials document
func (l *SecretsLoader) LoadCredentials(ctx context.Context) (map[string]models.CustomerCredentials, error) {
	data, err := l.store.Get(ctx, l.bucket, CredentialsKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s from %s: %w", CredentialsKey, l.bucket.Name, err)
	}

	var creds map[string]models.CustomerCredentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", CredentialsKey, err)
	}
	return creds, nil
}
