package dashboard

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

// MemoryCache 是基于 go-cache 的进程内快照缓存。
type MemoryCache struct {
	store *cache.Cache
}

// NewMemoryCache 创建进程内缓存，过期条目按 ttl 的两倍周期清理。
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryCache{store: cache.New(ttl, 2*ttl)}
}

// Get 读取未过期的快照。
func (c *MemoryCache) Get(_ context.Context, key string) (*Snapshot, bool, error) {
	v, ok := c.store.Get(key)
	if !ok {
		return nil, false, nil
	}
	snap, ok := v.(*Snapshot)
	return snap, ok, nil
}

// Set 写入快照。
func (c *MemoryCache) Set(_ context.Context, key string, snap *Snapshot, ttl time.Duration) error {
	c.store.Set(key, snap, ttl)
	return nil
}
