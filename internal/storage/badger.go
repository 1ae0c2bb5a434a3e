package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/rs/zerolog/log"
	config "github.com/thirdweb-dev/archive-exporter/configs"
)

type BadgerCache struct {
	db       *badger.DB
	gcTicker *time.Ticker
	stopGC   chan struct{}
}

func NewBadgerCache(cfg *config.BadgerConfig) (*BadgerCache, error) {
	path := cfg.Path
	if path == "" {
		path = filepath.Join(os.TempDir(), "archive-exporter-pages")
	}
	return openBadger(badger.DefaultOptions(path))
}

// newInMemoryBadgerCache keeps everything in RAM, used by tests.
func newInMemoryBadgerCache() (*BadgerCache, error) {
	return openBadger(badger.DefaultOptions("").WithInMemory(true))
}

func openBadger(opts badger.Options) (*BadgerCache, error) {
	opts.ValueLogFileSize = 256 * 1024 * 1024 // 256MB
	opts.SyncWrites = false                   // pages can always be refetched
	opts.DetectConflicts = false
	opts.ValueThreshold = 1024 // pages go to the value log
	opts.Compression = options.Snappy

	opts.Logger = nil // Disable badger's internal logging

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	bc := &BadgerCache{
		db:       db,
		gcTicker: time.NewTicker(60 * time.Second),
		stopGC:   make(chan struct{}),
	}
	go bc.runGC()
	return bc, nil
}

func (bc *BadgerCache) runGC() {
	for {
		select {
		case <-bc.gcTicker.C:
			err := bc.db.RunValueLogGC(0.5)
			if err != nil && !errors.Is(err, badger.ErrNoRewrite) {
				log.Debug().Err(err).Msg("BadgerDB GC error")
			}
		case <-bc.stopGC:
			return
		}
	}
}

func (bc *BadgerCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := bc.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("badger get %s: %w", key, err)
	}
	return value, true, nil
}

func (bc *BadgerCache) Put(_ context.Context, key string, value []byte) error {
	err := bc.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	if err != nil {
		return fmt.Errorf("badger put %s: %w", key, err)
	}
	return nil
}

func (bc *BadgerCache) Close() error {
	bc.gcTicker.Stop()
	close(bc.stopGC)
	return bc.db.Close()
}
