package repository

import (
	"context"
	"fmt"
	"time"

	"prism/internal/config"
	"prism/pkg/logger"

	"go.uber.org/zap"
)

// CacheType represents the type of index implementation
type CacheType string

const (
	CacheTypeNone   CacheType = "none"
	CacheTypeRedis  CacheType = "redis"
	CacheTypeBadger CacheType = "badger"
)

// derivedKeyPrefix namespaces index entries in a shared store
const derivedKeyPrefix = "prism:derived:"

// CacheConfig represents badger index configuration
type CacheConfig struct {
	Type      CacheType     `json:"type"`
	Directory string        `json:"directory,omitempty"`
	TTL       time.Duration `json:"ttl"`
}

// NewDerivativeIndex creates the index selected by CACHE_TYPE
func NewDerivativeIndex(cfg *config.Config) (DerivativeIndex, error) {
	logger.Info("Initializing derivative index",
		zap.String("type", cfg.Cache.Type))

	switch CacheType(cfg.Cache.Type) {
	case CacheTypeNone, "":
		return NoopIndex{}, nil

	case CacheTypeRedis:
		return NewRedisIndex(&cfg.Redis)

	case CacheTypeBadger:
		index, err := NewBadgerIndex(&CacheConfig{
			Type:      CacheTypeBadger,
			Directory: cfg.Cache.Directory,
			TTL:       cfg.Cache.TTL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize BadgerDB index: %w", err)
		}
		return index, nil

	default:
		return nil, fmt.Errorf("unsupported cache type: %s", cfg.Cache.Type)
	}
}

// NoopIndex never remembers anything, so every check goes to the object store
type NoopIndex struct{}

func (NoopIndex) Seen(ctx context.Context, key string) (bool, error) { return false, nil }

func (NoopIndex) Remember(ctx context.Context, key, url string, ttl time.Duration) error {
	return nil
}

func (NoopIndex) Health(ctx context.Context) error { return nil }

func (NoopIndex) Stats(ctx context.Context) (*IndexStats, error) {
	return &IndexStats{Type: CacheTypeNone}, nil
}

func (NoopIndex) Close() error { return nil }
