// Package ethereum quotes gas prices straight from chain JSON-RPC endpoints.
package ethereum

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	gethrpc "github.com/ethereum/go-ethereum/rpc"

	xerrors "EnvioScout/internal/errors"
	"EnvioScout/internal/gas"
	"EnvioScout/internal/observability/metrics"
	"EnvioScout/internal/units"
	"EnvioScout/internal/web3"
	"EnvioScout/pkg/logger"
)

// Resolver 将链标识解析为链定义。
type Resolver interface {
	Resolve(name string) web3.Chain
}

type conn struct {
	rpc *gethrpc.Client
	eth *ethclient.Client
}

// DefaultTimeout 是单次报价（含全部 RPC 调用）的超时。
const DefaultTimeout = 30 * time.Second

// Oracle 通过各链的 RPC 节点给出 Gas 报价，连接按链懒加载并复用。
type Oracle struct {
	resolver Resolver
	timeout  time.Duration
	mu       sync.Mutex
	conns    map[web3.ChainID]*conn
	now      func() time.Time
	log      *slog.Logger
}

var _ gas.Source = (*Oracle)(nil)

// Option 调整 Oracle。
type Option func(*Oracle)

// WithTimeout 设置单次报价的超时，非正值保持默认。
func WithTimeout(d time.Duration) Option {
	return func(o *Oracle) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// NewOracle 创建 RPC 报价来源。
func NewOracle(resolver Resolver, opts ...Option) *Oracle {
	o := &Oracle{
		resolver: resolver,
		timeout:  DefaultTimeout,
		conns:    make(map[web3.ChainID]*conn),
		now:      time.Now,
		log:      logger.Named("rpc-gas"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

// Name 返回来源名称。
func (o *Oracle) Name() string { return "rpc" }

// header 只解码报价需要的字段，避免完整区块头校验。
type header struct {
	Number        *hexutil.Big `json:"number"`
	BaseFeePerGas *hexutil.Big `json:"baseFeePerGas"`
}

// Quote 使用 eth_gasPrice 作为 average，最新区块 base fee 作为 slow，
// 2×base fee + 小费 作为 fast。不支持 EIP-1559 的链三档都取 eth_gasPrice。
func (o *Oracle) Quote(ctx context.Context, chainID web3.ChainID) (*gas.Quote, error) {
	chain := o.resolver.Resolve(string(chainID))
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	start := time.Now()
	q, err := o.quote(ctx, chain)
	metrics.ObserveUpstreamCall("rpc", string(chain.ID), "gas_quote", err == nil, time.Since(start))
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeUpstreamFailure, err, fmt.Sprintf("RPC 获取 %s Gas 报价失败", chain.ID))
	}
	return q, nil
}

func (o *Oracle) quote(ctx context.Context, chain web3.Chain) (*gas.Quote, error) {
	c, err := o.dial(ctx, chain)
	if err != nil {
		return nil, err
	}

	price, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("eth_gasPrice: %w", err)
	}

	var head header
	if err := c.rpc.CallContext(ctx, &head, "eth_getBlockByNumber", "latest", false); err != nil {
		return nil, fmt.Errorf("eth_getBlockByNumber: %w", err)
	}

	average := units.WeiToGwei(price)
	q := &gas.Quote{
		Chain:     chain.ID,
		Slow:      average,
		Average:   average,
		Fast:      average,
		Source:    o.Name(),
		FetchedAt: o.now().UTC(),
	}
	if head.Number != nil {
		q.LatestBlock = head.Number.ToInt().Int64()
		q.BlocksAnalyzed = 1
	}
	if head.BaseFeePerGas == nil {
		return q, nil
	}

	baseFee := head.BaseFeePerGas.ToInt()
	tip, err := c.eth.SuggestGasTipCap(ctx)
	if err != nil {
		o.log.Debug("节点不支持 eth_maxPriorityFeePerGas", slog.String("chain", string(chain.ID)), slog.Any("error", err))
		tip = new(big.Int)
	}
	fast := new(big.Int).Add(new(big.Int).Mul(baseFee, big.NewInt(2)), tip)

	q.BaseFee = units.WeiToGwei(baseFee)
	q.Slow = min(q.BaseFee, average)
	q.Fast = max(units.WeiToGwei(fast), average)
	return q, nil
}

func (o *Oracle) dial(ctx context.Context, chain web3.Chain) (*conn, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if c, ok := o.conns[chain.ID]; ok {
		return c, nil
	}
	rpcURL := strings.TrimSpace(chain.RPCURL)
	if rpcURL == "" {
		return nil, fmt.Errorf("链 %s 未配置 RPC 地址", chain.ID)
	}
	rpcClient, err := gethrpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("连接 %s 节点失败: %w", chain.ID, err)
	}
	c := &conn{rpc: rpcClient, eth: ethclient.NewClient(rpcClient)}
	o.conns[chain.ID] = c
	return c, nil
}

// Close 释放所有 RPC 连接。
func (o *Oracle) Close() {
	if o == nil {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	for id, c := range o.conns {
		c.eth.Close()
		delete(o.conns, id)
	}
}
