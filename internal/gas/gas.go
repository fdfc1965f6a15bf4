// Package gas produces gas price quotes for a chain from interchangeable
// sources and classifies prices into qualitative bands.
package gas

import (
	"context"
	"time"

	"EnvioScout/internal/web3"
)

// Quote 是一次 Gas 报价，价格单位为 Gwei。
type Quote struct {
	Chain          web3.ChainID `json:"chain"`
	Slow           float64      `json:"slow"`
	Average        float64      `json:"average"`
	Fast           float64      `json:"fast"`
	BaseFee        float64      `json:"baseFee,omitempty"`
	Source         string       `json:"source"`
	LatestBlock    int64        `json:"latestBlock,omitempty"`
	BlocksAnalyzed int          `json:"blocksAnalyzed,omitempty"`
	FetchedAt      time.Time    `json:"fetchedAt"`
}

// Source 为指定链给出 Gas 报价。
type Source interface {
	Name() string
	Quote(ctx context.Context, chain web3.ChainID) (*Quote, error)
}
