package storage

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

const DefaultMemoryItems = 1024

type MemoryCache struct {
	cache *lru.Cache[string, []byte]
}

func NewMemoryCache(maxItems int) (*MemoryCache, error) {
	if maxItems <= 0 {
		maxItems = DefaultMemoryItems
	}
	cache, err := lru.New[string, []byte](maxItems)
	if err != nil {
		return nil, fmt.Errorf("failed to create LRU cache: %w", err)
	}
	return &MemoryCache{cache: cache}, nil
}

func (m *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	value, ok := m.cache.Get(key)
	if !ok {
		return nil, false, nil
	}
	return value, true, nil
}

func (m *MemoryCache) Put(_ context.Context, key string, value []byte) error {
	stored := make([]byte, len(value))
	copy(stored, value)
	m.cache.Add(key, stored)
	return nil
}

func (m *MemoryCache) Close() error {
	m.cache.Purge()
	return nil
}
