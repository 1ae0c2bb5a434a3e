package storage

import (
	"context"
	"fmt"
	"time"

	config "github.com/thirdweb-dev/archive-exporter/configs"
)

// PageCache keeps raw archive pages so reruns over the same range skip the
// network. A miss is reported as ok == false with a nil error.
type PageCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
	Close() error
}

// NewPageCache opens the first configured backend, in the order badger,
// pebble, redis. With nothing configured it falls back to an in-process LRU.
func NewPageCache(cfg *config.CacheConfig) (PageCache, error) {
	var cache PageCache
	var err error
	if cfg == nil {
		return NewMemoryCache(DefaultMemoryItems)
	}
	if cfg.Badger != nil {
		cache, err = NewBadgerCache(cfg.Badger)
	} else if cfg.Pebble != nil {
		cache, err = NewPebbleCache(cfg.Pebble)
	} else if cfg.Redis != nil {
		cache, err = NewRedisCache(cfg.Redis)
	} else {
		cache, err = NewMemoryCache(DefaultMemoryItems)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open page cache: %w", err)
	}
	return cache, nil
}

func ttlFromSeconds(seconds int) time.Duration {
	if seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
