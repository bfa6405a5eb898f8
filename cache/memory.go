package cache

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru"
)

type memoryItem struct {
	value   string
	expires time.Time // zero = no ttl
}

// MemoryKVStore is an in-process KVStore with LRU eviction, used when Redis is disabled.
type MemoryKVStore struct {
	entries *lru.Cache
	now     func() time.Time
}

func NewMemoryKVStore(size int) (*MemoryKVStore, error) {
	entries, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("failed to create lru cache: %w", err)
	}
	return &MemoryKVStore{entries: entries, now: time.Now}, nil
}

func (m *MemoryKVStore) Get(ctx context.Context, key string) (string, error) {
	raw, ok := m.entries.Get(key)
	if !ok {
		return "", ErrCacheMiss
	}
	item := raw.(memoryItem)
	if !item.expires.IsZero() && m.now().After(item.expires) {
		m.entries.Remove(key)
		return "", ErrCacheMiss
	}
	return item.value, nil
}

func (m *MemoryKVStore) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	var exp time.Time
	if ttl > 0 {
		exp = m.now().Add(ttl)
	}
	m.entries.Add(key, memoryItem{value: value, expires: exp})
	return nil
}
