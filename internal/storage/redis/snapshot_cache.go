package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	goredis "github.com/redis/go-redis/v9"

	"EnvioScout/internal/dashboard"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DefaultSnapshotPrefix 是快照键的默认前缀。
const DefaultSnapshotPrefix = "envioscout:dashboard:"

// SnapshotCache 以 JSON 形式把统计快照保存在 Redis，过期交给 Redis 处理。
type SnapshotCache struct {
	client goredis.Cmdable
	prefix string
}

// NewSnapshotCache 创建快照缓存。
func NewSnapshotCache(client goredis.Cmdable, prefix string) *SnapshotCache {
	if prefix == "" {
		prefix = DefaultSnapshotPrefix
	}
	return &SnapshotCache{client: client, prefix: prefix}
}

// Key 返回链对应的 Redis 键。
func (c *SnapshotCache) Key(chain string) string {
	return c.prefix + chain
}

// Get 读取快照，键不存在时返回未命中。
func (c *SnapshotCache) Get(ctx context.Context, key string) (*dashboard.Snapshot, bool, error) {
	raw, err := c.client.Get(ctx, c.Key(key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("读取 Redis 快照失败: %w", err)
	}
	snap, err := decodeSnapshot(raw)
	if err != nil {
		return nil, false, err
	}
	return snap, true, nil
}

// Set 写入快照并设置过期时间。
func (c *SnapshotCache) Set(ctx context.Context, key string, snap *dashboard.Snapshot, ttl time.Duration) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("序列化快照失败: %w", err)
	}
	if err := c.client.Set(ctx, c.Key(key), raw, ttl).Err(); err != nil {
		return fmt.Errorf("写入 Redis 快照失败: %w", err)
	}
	return nil
}

func decodeSnapshot(raw []byte) (*dashboard.Snapshot, error) {
	var snap dashboard.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("解析 Redis 快照失败: %w", err)
	}
	return &snap, nil
}
