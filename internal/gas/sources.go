package gas

import (
	"context"
	"fmt"
	"time"

	xerrors "EnvioScout/internal/errors"
	"EnvioScout/internal/web3"
)

// StatsProvider 是 ExplorerSource 依赖的网关能力。
type StatsProvider interface {
	Stats(ctx context.Context, chain web3.ChainID) web3.Result[web3.NetworkStats]
}

// ExplorerSource 从浏览器统计接口的 gas_prices 读取三档价格。
type ExplorerSource struct {
	stats StatsProvider
	now   func() time.Time
}

// NewExplorerSource 创建浏览器报价来源。
func NewExplorerSource(stats StatsProvider) *ExplorerSource {
	return &ExplorerSource{stats: stats, now: time.Now}
}

// Name 返回来源名称。
func (s *ExplorerSource) Name() string { return "explorer" }

// Quote 查询统计接口。
func (s *ExplorerSource) Quote(ctx context.Context, chain web3.ChainID) (*Quote, error) {
	res := s.stats.Stats(ctx, chain)
	if err := res.Err(); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeUpstreamFailure, err, "获取网络统计失败")
	}
	prices := res.Data.GasPrices
	if prices == nil || prices.Average == nil {
		return nil, xerrors.New(xerrors.CodeUpstreamFailure, fmt.Sprintf("%s 统计数据缺少 gas_prices", res.Chain))
	}
	q := &Quote{
		Chain:     res.Chain,
		Average:   prices.Average.Gwei(),
		Source:    s.Name(),
		FetchedAt: s.now().UTC(),
	}
	q.Slow, q.Fast = q.Average, q.Average
	if prices.Slow != nil {
		q.Slow = prices.Slow.Gwei()
	}
	if prices.Fast != nil {
		q.Fast = prices.Fast.Gwei()
	}
	return q, nil
}

// DefaultBlockWindow 是 BlockStatsSource 默认统计的区块数。
const DefaultBlockWindow = 10

// BlockStatsSource 基于最近区块的平均 Gas 价格给出报价：
// 最小值为 slow，均值为 average，最大值为 fast。
type BlockStatsSource struct {
	blocks web3.BlockSource
	window int
	now    func() time.Time
}

// NewBlockStatsSource 创建区块统计报价来源。
func NewBlockStatsSource(blocks web3.BlockSource, window int) *BlockStatsSource {
	if window <= 0 {
		window = DefaultBlockWindow
	}
	return &BlockStatsSource{blocks: blocks, window: window, now: time.Now}
}

// Name 返回来源名称。
func (s *BlockStatsSource) Name() string { return "blockstats" }

// Quote 汇总最近区块。
func (s *BlockStatsSource) Quote(ctx context.Context, chain web3.ChainID) (*Quote, error) {
	batch, err := s.blocks.RecentBlocks(ctx, chain, s.window)
	if err != nil {
		return nil, err
	}
	stats, ok := Summarize(batch.Blocks)
	if !ok {
		return nil, xerrors.New(xerrors.CodeUpstreamFailure, fmt.Sprintf("%s 最近区块没有可用的 Gas 价格", batch.Chain))
	}
	return &Quote{
		Chain:          batch.Chain,
		Slow:           stats.Min,
		Average:        stats.Average,
		Fast:           stats.Max,
		Source:         s.Name(),
		LatestBlock:    batch.Blocks[0].Number,
		BlocksAnalyzed: stats.Blocks,
		FetchedAt:      s.now().UTC(),
	}, nil
}

// Stats 是一组区块平均 Gas 价格的统计，单位 Gwei。
type Stats struct {
	Min     float64 `json:"min"`
	Average float64 `json:"average"`
	Max     float64 `json:"max"`
	Blocks  int     `json:"blocks"`
}

// Summarize 统计 AvgGasPrice 为正的区块，没有可用区块时返回 false。
func Summarize(blocks []web3.BlockRecord) (Stats, bool) {
	var st Stats
	var sum float64
	for _, b := range blocks {
		if b.AvgGasPrice <= 0 {
			continue
		}
		if st.Blocks == 0 || b.AvgGasPrice < st.Min {
			st.Min = b.AvgGasPrice
		}
		if b.AvgGasPrice > st.Max {
			st.Max = b.AvgGasPrice
		}
		sum += b.AvgGasPrice
		st.Blocks++
	}
	if st.Blocks == 0 {
		return Stats{}, false
	}
	st.Average = sum / float64(st.Blocks)
	return st, true
}
