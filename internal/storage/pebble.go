package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cockroachdb/pebble"
	config "github.com/thirdweb-dev/archive-exporter/configs"
)

type PebbleCache struct {
	db *pebble.DB
}

func NewPebbleCache(cfg *config.PebbleConfig) (*PebbleCache, error) {
	path := cfg.Path
	if path == "" {
		path = filepath.Join(os.TempDir(), "archive-exporter-pages-pebble")
	}

	cache := pebble.NewCache(64 << 20) // 64MB block cache
	defer cache.Unref()

	opts := &pebble.Options{
		MemTableSize:                32 << 20,
		MemTableStopWritesThreshold: 4,
		L0CompactionThreshold:       8,
		L0StopWritesThreshold:       24,
		Cache:                       cache,
		Levels:                      make([]pebble.LevelOptions, 7),
	}
	for i := range opts.Levels {
		opts.Levels[i] = pebble.LevelOptions{
			BlockSize:      64 << 10,
			IndexBlockSize: 128 << 10,
			Compression:    pebble.SnappyCompression,
		}
		if i > 0 {
			opts.Levels[i].TargetFileSize = opts.Levels[i-1].TargetFileSize * 2
		} else {
			opts.Levels[i].TargetFileSize = 64 << 20
		}
	}

	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble db: %w", err)
	}
	return &PebbleCache{db: db}, nil
}

func (pc *PebbleCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	value, closer, err := pc.db.Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("pebble get %s: %w", key, err)
	}
	defer closer.Close()

	out := make([]byte, len(value))
	copy(out, value)
	return out, true, nil
}

func (pc *PebbleCache) Put(_ context.Context, key string, value []byte) error {
	if err := pc.db.Set([]byte(key), value, pebble.NoSync); err != nil {
		return fmt.Errorf("pebble put %s: %w", key, err)
	}
	return nil
}

func (pc *PebbleCache) Close() error {
	return pc.db.Close()
}
