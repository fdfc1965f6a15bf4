package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"EnvioScout/internal/config"
	"EnvioScout/internal/dashboard"
	"EnvioScout/internal/web3"
)

func TestDecodeSnapshotRejectsGarbage(t *testing.T) {
	if _, err := decodeSnapshot([]byte("{not json")); err == nil {
		t.Fatalf("expected decode error")
	}
	snap, err := decodeSnapshot([]byte(`{"success":true,"chain":"base","archiveHeight":42,"blocks":[{"number":42,"transactionCount":7}],"metrics":{"tps":1.5}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Chain != web3.Base || snap.ArchiveHeight != 42 || snap.Blocks[0].TransactionCount != 7 || snap.Metrics.TPS != 1.5 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestSnapshotCacheKeyPrefix(t *testing.T) {
	if got := NewSnapshotCache(nil, "").Key("eth"); got != "envioscout:dashboard:eth" {
		t.Fatalf("unexpected key: %s", got)
	}
	if got := NewSnapshotCache(nil, "x:").Key("base"); got != "x:base" {
		t.Fatalf("unexpected key: %s", got)
	}
}

// 需要真实 Redis：设置 ENVIOSCOUT_TEST_REDIS_ADDR 后运行。
func TestSnapshotCacheRoundTripAgainstRedis(t *testing.T) {
	addr := os.Getenv("ENVIOSCOUT_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("ENVIOSCOUT_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	client, err := Connect(ctx, config.RedisConfig{Address: addr})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()

	cache := NewSnapshotCache(client, "envioscout:test:"+t.Name()+":")
	if _, ok, err := cache.Get(ctx, "eth"); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}
	want := &dashboard.Snapshot{Success: true, Chain: web3.Ethereum, ArchiveHeight: 7}
	if err := cache.Set(ctx, "eth", want, time.Second); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, ok, err := cache.Get(ctx, "eth")
	if err != nil || !ok || got.ArchiveHeight != 7 {
		t.Fatalf("unexpected get: %+v ok=%v err=%v", got, ok, err)
	}
}
