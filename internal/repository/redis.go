package repository

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"prism/internal/config"
	"prism/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// RedisIndex implements DerivativeIndex on Redis string keys with TTL
type RedisIndex struct {
	client redis.Cmdable
	config *config.RedisConfig

	hits   int64
	misses int64
}

var _ DerivativeIndex = (*RedisIndex)(nil)

// NewRedisIndex creates a new Redis backed index
func NewRedisIndex(cfg *config.RedisConfig) (*RedisIndex, error) {
	logger.Info("Initializing Redis index",
		zap.String("url", cfg.URL),
		zap.Int("db", cfg.DB),
		zap.Int("pool_size", cfg.PoolSize))

	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}

	// Override with config values
	if cfg.Password != "" {
		opt.Password = cfg.Password
	}
	opt.DB = cfg.DB
	opt.PoolSize = cfg.PoolSize
	opt.DialTimeout = cfg.Timeout
	opt.ReadTimeout = cfg.Timeout
	opt.WriteTimeout = cfg.Timeout

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Redis index initialized successfully")
	return &RedisIndex{client: client, config: cfg}, nil
}

// Seen reports whether the derivative key is remembered
func (r *RedisIndex) Seen(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, r.indexKey(key)).Result()
	if err != nil {
		logger.WarnWithContext(ctx, "Redis index lookup failed",
			zap.String("key", key),
			zap.Error(err))
		return false, fmt.Errorf("failed to check derivative key: %w", err)
	}

	if n == 0 {
		atomic.AddInt64(&r.misses, 1)
		return false, nil
	}
	atomic.AddInt64(&r.hits, 1)
	return true, nil
}

// Remember stores the derivative URL under its key
func (r *RedisIndex) Remember(ctx context.Context, key, url string, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.indexKey(key), url, ttl).Err(); err != nil {
		logger.ErrorWithContext(ctx, "Failed to remember derivative",
			zap.String("key", key),
			zap.Duration("ttl", ttl),
			zap.Error(err))
		return fmt.Errorf("failed to remember derivative: %w", err)
	}

	logger.DebugWithContext(ctx, "Derivative remembered",
		zap.String("key", key),
		zap.Duration("ttl", ttl))
	return nil
}

// Health checks index health
func (r *RedisIndex) Health(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("Redis ping failed: %w", err)
	}

	testKey := "health:check:" + strconv.FormatInt(time.Now().Unix(), 10)
	if err := r.client.Set(ctx, testKey, "ok", time.Second).Err(); err != nil {
		return fmt.Errorf("Redis write test failed: %w", err)
	}

	if err := r.client.Del(ctx, testKey).Err(); err != nil {
		logger.WarnWithContext(ctx, "Failed to cleanup health check key", zap.Error(err))
	}
	return nil
}

// Stats retrieves index statistics
func (r *RedisIndex) Stats(ctx context.Context) (*IndexStats, error) {
	info, err := r.client.Info(ctx, "memory", "clients").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get Redis info: %w", err)
	}

	keyCount, err := r.countKeys(ctx)
	if err != nil {
		logger.WarnWithContext(ctx, "Failed to count derivative keys", zap.Error(err))
		keyCount = -1
	}

	return &IndexStats{
		Type:        CacheTypeRedis,
		Hits:        atomic.LoadInt64(&r.hits),
		Misses:      atomic.LoadInt64(&r.misses),
		KeyCount:    keyCount,
		StorageUsed: parseInfoValue(info, "used_memory"),
		Connections: ConnectionStats{
			Active:  safeInt64ToInt(parseInfoValue(info, "connected_clients")),
			MaxOpen: r.config.PoolSize,
		},
	}, nil
}

// Close closes the index connection
func (r *RedisIndex) Close() error {
	if client, ok := r.client.(*redis.Client); ok {
		return client.Close()
	}
	return nil
}

func (r *RedisIndex) indexKey(key string) string {
	return derivedKeyPrefix + key
}

// countKeys walks the index keys with SCAN
func (r *RedisIndex) countKeys(ctx context.Context) (int64, error) {
	var (
		cursor uint64
		count  int64
	)
	for {
		keys, next, err := r.client.Scan(ctx, cursor, derivedKeyPrefix+"*", 100).Result()
		if err != nil {
			return 0, err
		}
		count += int64(len(keys))
		if next == 0 {
			return count, nil
		}
		cursor = next
	}
}

func safeInt64ToInt(v int64) int {
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	if v < math.MinInt32 {
		return math.MinInt32
	}
	return int(v)
}

// parseInfoValue parses a numeric value from Redis INFO output
func parseInfoValue(info, key string) int64 {
	for _, line := range strings.Split(info, "\n") {
		if !strings.HasPrefix(line, key+":") {
			continue
		}
		value := strings.TrimSpace(strings.TrimPrefix(line, key+":"))
		if v, err := strconv.ParseInt(value, 10, 64); err == nil {
			return v
		}
	}
	return 0
}
