package repository

import (
	"context"
	"time"
)

// DerivativeIndex remembers which derivative keys were already uploaded.
// It is a positive memo only: a miss says nothing, the object store decides.
type DerivativeIndex interface {
	// Seen reports whether key was remembered and has not expired
	Seen(ctx context.Context, key string) (bool, error)

	// Remember records key with the URL it was uploaded to
	Remember(ctx context.Context, key, url string, ttl time.Duration) error

	// Health checks index health
	Health(ctx context.Context) error

	// Stats retrieves index statistics
	Stats(ctx context.Context) (*IndexStats, error)

	// Close closes the index connection
	Close() error
}

// IndexStats represents derivative index statistics
type IndexStats struct {
	Type        CacheType         `json:"type"`
	Hits        int64             `json:"hits"`
	Misses      int64             `json:"misses"`
	KeyCount    int64             `json:"key_count"`
	StorageUsed int64             `json:"storage_used_bytes"`
	Connections ConnectionStats   `json:"connections"`
	Details     map[string]string `json:"details,omitempty"`
}

// ConnectionStats represents connection pool statistics
type ConnectionStats struct {
	Active  int `json:"active"`
	MaxOpen int `json:"max_open"`
}
