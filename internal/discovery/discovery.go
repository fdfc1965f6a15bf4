// Package discovery finds the chains on which an address has activity.
package discovery

import (
	"cmp"
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"EnvioScout/internal/web3"
	"EnvioScout/pkg/logger"
)

// ActiveChain 是发现结果中的一条链，Info 可能为空（探测失败或回退结果）。
type ActiveChain struct {
	Chain web3.ChainID      `json:"chain"`
	Info  *web3.AddressInfo `json:"info,omitempty"`
}

// AddressProber 只需要网关的地址查询能力。
type AddressProber interface {
	Address(ctx context.Context, address string, chain web3.ChainID) web3.Result[web3.AddressInfo]
}

// Discoverer 在多条链上并发探测地址活动。
type Discoverer struct {
	prober       AddressProber
	chains       []web3.ChainID
	defaultChain web3.ChainID
	log          *slog.Logger
}

// New 创建 Discoverer。chains 的顺序决定结果的顺序。
func New(prober AddressProber, chains []web3.ChainID, defaultChain web3.ChainID) *Discoverer {
	return &Discoverer{
		prober:       prober,
		chains:       chains,
		defaultChain: defaultChain,
		log:          logger.Named("discovery"),
	}
}

// Discover 返回地址活跃的链。
//
// 指定 hint 时只探测该链，且无论探测是否成功都会包含在结果中。
// 未指定时并发探测全部链，单链失败只记录日志；若没有任何链满足活跃条件，
// 返回仅含默认链的结果，保证结果非空。
func (d *Discoverer) Discover(ctx context.Context, address string, hint web3.ChainID) []ActiveChain {
	if hint != "" {
		res := d.prober.Address(ctx, address, hint)
		chain := cmp.Or(res.Chain, hint)
		if !res.Success {
			d.log.Warn("指定链探测失败，仍按该链继续",
				slog.String("chain", string(chain)),
				slog.String("error", res.Error))
			return []ActiveChain{{Chain: chain}}
		}
		return []ActiveChain{{Chain: chain, Info: res.Data}}
	}

	results := make([]web3.Result[web3.AddressInfo], len(d.chains))
	var g errgroup.Group
	for i, chain := range d.chains {
		g.Go(func() error {
			res := d.prober.Address(ctx, address, chain)
			res.Chain = cmp.Or(res.Chain, chain)
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	seen := make(map[web3.ChainID]struct{}, len(results))
	active := make([]ActiveChain, 0, len(results))
	for _, res := range results {
		if !res.Success {
			d.log.Warn("链探测失败，已排除",
				slog.String("chain", string(res.Chain)),
				slog.Int("status", res.Status),
				slog.String("error", res.Error))
			continue
		}
		if !res.Data.IsActive() {
			continue
		}
		if _, dup := seen[res.Chain]; dup {
			continue
		}
		seen[res.Chain] = struct{}{}
		active = append(active, ActiveChain{Chain: res.Chain, Info: res.Data})
	}

	if len(active) == 0 {
		d.log.Info("未发现活跃链，回退到默认链", slog.String("chain", string(d.defaultChain)))
		return []ActiveChain{{Chain: d.defaultChain}}
	}
	return active
}
