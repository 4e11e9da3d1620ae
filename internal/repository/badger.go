package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"prism/pkg/logger"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

// BadgerIndex implements DerivativeIndex on an embedded BadgerDB. Entries
// carry a TTL so stale keys fall back to a HEAD on their own.
type BadgerIndex struct {
	db        *badger.DB
	config    *CacheConfig
	directory string

	hits   int64
	misses int64
}

var _ DerivativeIndex = (*BadgerIndex)(nil)

// NewBadgerIndex opens (or creates) the index in cfg.Directory
func NewBadgerIndex(cfg *CacheConfig) (*BadgerIndex, error) {
	logger.Info("Initializing BadgerDB index",
		zap.String("directory", cfg.Directory),
		zap.Duration("ttl", cfg.TTL))

	if err := os.MkdirAll(cfg.Directory, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	opts := badger.DefaultOptions(cfg.Directory)
	opts.Logger = &badgerLogger{}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB: %w", err)
	}

	logger.Info("BadgerDB index initialized successfully")
	return &BadgerIndex{
		db:        db,
		config:    cfg,
		directory: cfg.Directory,
	}, nil
}

// Seen reports whether the derivative key is remembered
func (b *BadgerIndex) Seen(ctx context.Context, key string) (bool, error) {
	err := b.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(b.indexKey(key))
		return err
	})

	switch {
	case err == nil:
		atomic.AddInt64(&b.hits, 1)
		return true, nil
	case errors.Is(err, badger.ErrKeyNotFound):
		atomic.AddInt64(&b.misses, 1)
		return false, nil
	default:
		return false, fmt.Errorf("failed to check derivative key: %w", err)
	}
}

// Remember stores the derivative URL under its key. A zero ttl falls back
// to the configured one.
func (b *BadgerIndex) Remember(ctx context.Context, key, url string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = b.config.TTL
	}

	err := b.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(b.indexKey(key), []byte(url))
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return txn.SetEntry(entry)
	})
	if err != nil {
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
func (b *BadgerIndex) Health(ctx context.Context) error {
	testKey := []byte("health:check:" + strconv.FormatInt(time.Now().UnixNano(), 10))

	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(testKey, []byte("ok")).WithTTL(time.Second))
	})
	if err != nil {
		return fmt.Errorf("BadgerDB write test failed: %w", err)
	}

	if err := b.db.Update(func(txn *badger.Txn) error { return txn.Delete(testKey) }); err != nil {
		logger.WarnWithContext(ctx, "Failed to cleanup health check key", zap.Error(err))
	}
	return nil
}

// Stats retrieves index statistics
func (b *BadgerIndex) Stats(ctx context.Context) (*IndexStats, error) {
	lsm, vlog := b.db.Size()

	keyCount, err := b.countKeys()
	if err != nil {
		logger.WarnWithContext(ctx, "Failed to count keys", zap.Error(err))
		keyCount = -1
	}

	return &IndexStats{
		Type:        CacheTypeBadger,
		Hits:        atomic.LoadInt64(&b.hits),
		Misses:      atomic.LoadInt64(&b.misses),
		KeyCount:    keyCount,
		StorageUsed: lsm + vlog,
		Details: map[string]string{
			"directory": b.directory,
			"lsm_size":  fmt.Sprintf("%d bytes", lsm),
			"vlog_size": fmt.Sprintf("%d bytes", vlog),
		},
	}, nil
}

// Close closes the database
func (b *BadgerIndex) Close() error {
	logger.Info("Closing BadgerDB index")
	return b.db.Close()
}

func (b *BadgerIndex) indexKey(key string) []byte {
	return []byte(derivedKeyPrefix + key)
}

// countKeys counts live derivative keys
func (b *BadgerIndex) countKeys() (int64, error) {
	var count int64
	prefix := []byte(derivedKeyPrefix)

	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		iter := txn.NewIterator(opts)
		defer iter.Close()

		for iter.Seek(prefix); iter.ValidForPrefix(prefix); iter.Next() {
			count++
		}
		return nil
	})
	return count, err
}

// badgerLogger routes BadgerDB errors to zap and drops the rest
type badgerLogger struct{}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	if strings.Contains(format, "ERROR") || strings.Contains(format, "error") {
		logger.Error("BadgerDB error", zap.String("message", fmt.Sprintf(format, args...)))
	}
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {}

func (l *badgerLogger) Infof(format string, args ...interface{}) {}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {}
