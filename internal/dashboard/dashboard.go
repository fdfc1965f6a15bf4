// Package dashboard computes per-chain activity snapshots (recent blocks,
// block time, throughput and gas statistics) for the dashboard endpoint and
// keeps them in a short-lived cache.
package dashboard

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"time"

	"golang.org/x/sync/singleflight"

	xerrors "EnvioScout/internal/errors"
	"EnvioScout/internal/gas"
	"EnvioScout/internal/observability/metrics"
	"EnvioScout/internal/web3"
	"EnvioScout/pkg/logger"
)

const (
	// DefaultTTL 是快照的缓存时长。
	DefaultTTL = 8 * time.Second
	// DefaultBlockLimit 是每个快照分析的区块数。
	DefaultBlockLimit = 5
)

// Metrics 是由区块列表推导出的活跃度指标。
type Metrics struct {
	AvgBlockTime   float64 `json:"avgBlockTime"`
	TPS            float64 `json:"tps"`
	TotalTxs       int     `json:"totalTxs"`
	BlocksAnalyzed int     `json:"blocksAnalyzed"`
}

// Snapshot 是某条链在某一时刻的统计快照。
type Snapshot struct {
	Success       bool               `json:"success"`
	Chain         web3.ChainID       `json:"chain"`
	Timestamp     string             `json:"timestamp"`
	Blocks        []web3.BlockRecord `json:"blocks"`
	GasStats      *gas.Stats         `json:"gasStats"`
	ArchiveHeight int64              `json:"archiveHeight"`
	Metrics       Metrics            `json:"metrics"`
}

// Cache 保存快照，键为链 ID。未命中返回 (nil, false, nil)。
type Cache interface {
	Get(ctx context.Context, key string) (*Snapshot, bool, error)
	Set(ctx context.Context, key string, snap *Snapshot, ttl time.Duration) error
}

// ChainResolver 将路径中的链名解析为链定义。
type ChainResolver interface {
	Resolve(name string) web3.Chain
}

// Service 按链提供统计快照，过期后在下一次访问时惰性重算。
type Service struct {
	source web3.BlockSource
	chains ChainResolver
	cache  Cache
	ttl    time.Duration
	limit  int
	group  singleflight.Group
	now    func() time.Time
	log    *slog.Logger
}

// Option 定义服务的可选配置。
type Option func(*Service)

// WithCache 替换默认的进程内缓存。
func WithCache(c Cache) Option {
	return func(s *Service) {
		if c != nil {
			s.cache = c
		}
	}
}

// WithTTL 设置缓存时长。
func WithTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.ttl = d
		}
	}
}

// WithBlockLimit 设置每个快照分析的区块数。
func WithBlockLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.limit = n
		}
	}
}

// WithClock 替换时间来源。
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService 创建统计服务。
func NewService(source web3.BlockSource, chains ChainResolver, opts ...Option) *Service {
	s := &Service{
		source: source,
		chains: chains,
		ttl:    DefaultTTL,
		limit:  DefaultBlockLimit,
		now:    time.Now,
		log:    logger.Named("dashboard"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cache == nil {
		s.cache = NewMemoryCache(s.ttl)
	}
	return s
}

// Stats 返回链的统计快照。同一条链的并发重算会合并为一次上游请求。
func (s *Service) Stats(ctx context.Context, chainName string) (*Snapshot, error) {
	chain := s.chains.Resolve(chainName).ID
	key := string(chain)

	if snap, ok, err := s.cache.Get(ctx, key); err != nil {
		s.log.Warn("读取快照缓存失败", slog.String("chain", key), slog.Any("error", err))
	} else if ok {
		metrics.ObserveCacheLookup(true)
		return snap, nil
	}
	metrics.ObserveCacheLookup(false)

	v, err, _ := s.group.Do(key, func() (any, error) {
		// 合并后的重算为所有等待者服务，不随首个调用方取消。
		ctx := context.WithoutCancel(ctx)
		snap, err := s.compute(ctx, chain)
		if err != nil {
			return nil, err
		}
		if err := s.cache.Set(ctx, key, snap, s.ttl); err != nil {
			s.log.Warn("写入快照缓存失败", slog.String("chain", key), slog.Any("error", err))
		}
		return snap, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Snapshot), nil
}

func (s *Service) compute(ctx context.Context, chain web3.ChainID) (*Snapshot, error) {
	batch, err := s.source.RecentBlocks(ctx, chain, s.limit)
	if err != nil {
		s.log.Error("获取最近区块失败", slog.String("chain", string(chain)), slog.Any("error", err))
		if _, ok := xerrors.From(err); ok {
			return nil, err
		}
		return nil, xerrors.Wrap(xerrors.CodeUpstreamFailure, err, "获取最近区块失败")
	}
	if batch == nil || batch.Blocks == nil {
		return nil, xerrors.New(xerrors.CodeUpstreamFailure, "区块数据缺失",
			xerrors.WithMetadata("chain", string(chain)))
	}

	blocks := append([]web3.BlockRecord(nil), batch.Blocks...)
	sort.SliceStable(blocks, func(i, j int) bool { return blocks[i].Number > blocks[j].Number })

	snap := &Snapshot{
		Success:       true,
		Chain:         chain,
		Timestamp:     s.now().UTC().Format(time.RFC3339Nano),
		Blocks:        blocks,
		ArchiveHeight: batch.ArchiveHeight,
		Metrics:       Compute(blocks),
	}
	if snap.ArchiveHeight == 0 && len(blocks) > 0 {
		snap.ArchiveHeight = blocks[0].Number
	}
	if st, ok := gas.Summarize(blocks); ok {
		snap.GasStats = &st
	}
	s.log.Info("已计算链统计快照",
		slog.String("chain", string(chain)),
		slog.Int("blocks", len(blocks)),
		slog.Int("total_txs", snap.Metrics.TotalTxs),
		slog.Float64("tps", snap.Metrics.TPS))
	return snap, nil
}

// Compute 由按高度降序排列的区块计算指标：平均出块时间取相邻区块
// 正时间差的均值，TPS 为交易总数除以时间差之和，均保留两位小数。
func Compute(blocks []web3.BlockRecord) Metrics {
	m := Metrics{BlocksAnalyzed: len(blocks)}
	var gaps []float64
	for i := 1; i < len(blocks); i++ {
		diff := blocks[i-1].Timestamp.Sub(blocks[i].Timestamp).Seconds()
		if diff > 0 {
			gaps = append(gaps, diff)
		}
	}
	var total float64
	for _, g := range gaps {
		total += g
	}
	for _, b := range blocks {
		m.TotalTxs += b.TransactionCount
	}
	if len(gaps) > 0 {
		m.AvgBlockTime = round2(total / float64(len(gaps)))
	}
	if total > 0 {
		m.TPS = round2(float64(m.TotalTxs) / total)
	}
	return m
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
