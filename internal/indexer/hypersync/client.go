// Package hypersync reads recent block activity from Envio HyperSync.
package hypersync

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sort"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/valyala/fasthttp"

	xerrors "EnvioScout/internal/errors"
	"EnvioScout/internal/observability/metrics"
	"EnvioScout/internal/units"
	"EnvioScout/internal/web3"
	"EnvioScout/pkg/logger"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Resolver 将链标识解析为链定义。
type Resolver interface {
	Resolve(name string) web3.Chain
}

// Config 描述 HyperSync 客户端参数。
type Config struct {
	BearerToken string
	Timeout     time.Duration
}

// Client 是 HyperSync 的 HTTP 客户端。
type Client struct {
	resolver Resolver
	token    string
	timeout  time.Duration
	http     *fasthttp.Client
	log      *slog.Logger
}

// NewClient 创建客户端。
func NewClient(resolver Resolver, cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		resolver: resolver,
		token:    strings.TrimSpace(cfg.BearerToken),
		timeout:  timeout,
		http:     &fasthttp.Client{Name: "EnvioScout", MaxIdleConnDuration: 90 * time.Second},
		log:      logger.Named("hypersync"),
	}
}

type heightResponse struct {
	Height web3.Numeric `json:"height"`
}

type fieldSelection struct {
	Block       []string `json:"block"`
	Transaction []string `json:"transaction"`
}

type query struct {
	FromBlock        int64            `json:"from_block"`
	ToBlock          int64            `json:"to_block"`
	Transactions     []map[string]any `json:"transactions"`
	IncludeAllBlocks bool             `json:"include_all_blocks"`
	FieldSelection   fieldSelection   `json:"field_selection"`
	MaxNumBlocks     int              `json:"max_num_blocks"`
}

type block struct {
	Number        web3.Numeric `json:"number"`
	Timestamp     web3.Numeric `json:"timestamp"`
	Hash          string       `json:"hash"`
	GasUsed       web3.Numeric `json:"gas_used"`
	Size          web3.Numeric `json:"size"`
	BaseFeePerGas web3.Numeric `json:"base_fee_per_gas"`
}

type transaction struct {
	BlockNumber web3.Numeric `json:"block_number"`
	GasPrice    web3.Numeric `json:"gas_price"`
}

type batch struct {
	Blocks       []block       `json:"blocks"`
	Transactions []transaction `json:"transactions"`
}

// batches 兼容 data 为数组或单个对象两种响应形式。
type batches []batch

func (b *batches) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var list []batch
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		*b = list
		return nil
	}
	if trimmed == "null" || trimmed == "" {
		*b = nil
		return nil
	}
	var single batch
	if err := json.Unmarshal(data, &single); err != nil {
		return err
	}
	*b = batches{single}
	return nil
}

type queryResponse struct {
	Data          batches      `json:"data"`
	ArchiveHeight web3.Numeric `json:"archive_height"`
	NextBlock     web3.Numeric `json:"next_block"`
}

// Height 返回索引器已归档的最新区块高度。
func (c *Client) Height(ctx context.Context, chainID web3.ChainID) (int64, error) {
	chain := c.resolver.Resolve(string(chainID))
	var resp heightResponse
	if err := c.call(ctx, chain, "height", fasthttp.MethodGet, "/height", nil, &resp); err != nil {
		return 0, err
	}
	h := resp.Height.Int64()
	if h <= 0 {
		return 0, xerrors.New(xerrors.CodeUpstreamFailure, fmt.Sprintf("%s 无法确定最新区块高度", chain.ID))
	}
	return h, nil
}

// RecentBlocks 返回最近 limit 个区块的活动统计，按高度降序。
// 没有任何区块返回时视为失败。
func (c *Client) RecentBlocks(ctx context.Context, chainID web3.ChainID, limit int) (*web3.BlockBatch, error) {
	if limit <= 0 {
		limit = 5
	}
	chain := c.resolver.Resolve(string(chainID))
	height, err := c.Height(ctx, chain.ID)
	if err != nil {
		return nil, err
	}

	q := query{
		FromBlock:        max(0, height+1-int64(limit)),
		ToBlock:          height + 1,
		Transactions:     []map[string]any{{}},
		IncludeAllBlocks: true,
		FieldSelection: fieldSelection{
			Block:       []string{"number", "timestamp", "hash", "gas_used", "size", "base_fee_per_gas"},
			Transaction: []string{"block_number", "gas_price"},
		},
		MaxNumBlocks: limit,
	}
	body, err := json.Marshal(q)
	if err != nil {
		return nil, fmt.Errorf("编码 HyperSync 查询失败: %w", err)
	}

	var resp queryResponse
	if err := c.call(ctx, chain, "query", fasthttp.MethodPost, "/query", body, &resp); err != nil {
		return nil, err
	}

	records := aggregate(resp.Data, chain.ID)
	if len(records) == 0 {
		return nil, xerrors.New(xerrors.CodeUpstreamFailure, fmt.Sprintf("%s 未返回任何区块", chain.ID))
	}
	if len(records) > limit {
		records = records[:limit]
	}

	archive := resp.ArchiveHeight.Int64()
	if archive == 0 {
		archive = resp.NextBlock.Int64()
	}
	c.log.Debug("已获取最近区块",
		slog.String("chain", string(chain.ID)),
		slog.Int("blocks", len(records)),
		slog.Int64("archive_height", archive))
	return &web3.BlockBatch{Chain: chain.ID, Blocks: records, ArchiveHeight: archive}, nil
}

// aggregate 把查询结果合并为区块记录：统计每个区块的交易数，
// 平均 Gas 价格取交易 gas_price 的整数均值，没有交易时使用 base fee。
func aggregate(data []batch, chain web3.ChainID) []web3.BlockRecord {
	counts := make(map[int64]int)
	sums := make(map[int64]*big.Int)
	priced := make(map[int64]int64)
	var blocks []block
	for _, b := range data {
		blocks = append(blocks, b.Blocks...)
		for _, tx := range b.Transactions {
			n := tx.BlockNumber.Int64()
			counts[n]++
			if price, ok := tx.GasPrice.BigInt(); ok {
				if sums[n] == nil {
					sums[n] = new(big.Int)
				}
				sums[n].Add(sums[n], price)
				priced[n]++
			}
		}
	}

	seen := make(map[int64]struct{}, len(blocks))
	records := make([]web3.BlockRecord, 0, len(blocks))
	for _, b := range blocks {
		n := b.Number.Int64()
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}

		avg := new(big.Int)
		if sum, ok := sums[n]; ok && priced[n] > 0 {
			avg.Quo(sum, big.NewInt(priced[n]))
		} else if fee, ok := b.BaseFeePerGas.BigInt(); ok {
			avg.Set(fee)
		}
		gasUsed, _ := b.GasUsed.BigInt()
		if gasUsed == nil {
			gasUsed = new(big.Int)
		}
		feeWei := new(big.Int).Mul(gasUsed, avg)

		records = append(records, web3.BlockRecord{
			Number:           n,
			Timestamp:        time.Unix(b.Timestamp.Int64(), 0).UTC(),
			Hash:             b.Hash,
			GasUsed:          gasUsed.Uint64(),
			Size:             b.Size.Int64(),
			TransactionCount: counts[n],
			BaseFeePerGas:    baseFee(b.BaseFeePerGas),
			AvgGasPrice:      units.WeiToGwei(avg),
			GasFee:           units.BigToFloat(feeWei, units.DefaultDecimals),
			Chain:            chain,
		})
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Number > records[j].Number })
	return records
}

func baseFee(n web3.Numeric) string {
	if n == "" {
		return ""
	}
	return n.String()
}

func (c *Client) call(ctx context.Context, chain web3.Chain, op, method, path string, body []byte, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(strings.TrimRight(chain.HyperSyncURL, "/") + path)
	req.Header.SetMethod(method)
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if body != nil {
		req.Header.SetContentType("application/json")
		req.SetBody(body)
	}

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	err := c.http.DoDeadline(req, resp, deadline)
	ok := err == nil && resp.StatusCode() < 300
	metrics.ObserveUpstreamCall("hypersync", string(chain.ID), op, ok, time.Since(start))
	if err != nil {
		return xerrors.Wrap(xerrors.CodeUpstreamFailure, err, fmt.Sprintf("请求 HyperSync %s 失败", chain.ID))
	}
	if resp.StatusCode() >= 300 {
		snippet := resp.Body()
		if len(snippet) > 512 {
			snippet = snippet[:512]
		}
		return xerrors.New(xerrors.CodeUpstreamFailure,
			fmt.Sprintf("HyperSync %s 返回状态 %d: %s", chain.ID, resp.StatusCode(), strings.TrimSpace(string(snippet))),
			xerrors.WithMetadata("chain", string(chain.ID)))
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return xerrors.Wrap(xerrors.CodeUpstreamFailure, err, "解析 HyperSync 响应失败")
	}
	return nil
}
