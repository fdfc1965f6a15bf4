// Package blockscout implements the explorer data gateway over the
// Blockscout REST v2 API of every supported chain.
package blockscout

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/valyala/fasthttp"

	xerrors "EnvioScout/internal/errors"
	"EnvioScout/internal/observability/metrics"
	"EnvioScout/internal/web3"
	"EnvioScout/pkg/logger"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DefaultTimeout 是单次请求的默认超时。
const DefaultTimeout = 30 * time.Second

// Resolver 将链标识解析为链定义，未知链回退到默认链。
type Resolver interface {
	Resolve(name string) web3.Chain
}

// Client 是 Blockscout 网关。
type Client struct {
	resolver Resolver
	http     *fasthttp.Client
	timeout  time.Duration
	log      *slog.Logger
}

// Option 定义网关的可选配置。
type Option func(*Client)

// WithTimeout 覆盖单次请求超时。
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHTTPClient 替换底层 fasthttp 客户端。
func WithHTTPClient(hc *fasthttp.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// NewClient 创建网关实例。
func NewClient(resolver Resolver, opts ...Option) *Client {
	c := &Client{
		resolver: resolver,
		http: &fasthttp.Client{
			Name:                "EnvioScout",
			MaxConnsPerHost:     64,
			MaxIdleConnDuration: 90 * time.Second,
		},
		timeout: DefaultTimeout,
		log:     logger.Named("blockscout"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

var _ web3.Gateway = (*Client)(nil)

// Address 查询地址详情。
func (c *Client) Address(ctx context.Context, address string, chain web3.ChainID) web3.Result[web3.AddressInfo] {
	return get[web3.AddressInfo](ctx, c, chain, "address", "addresses/"+url.PathEscape(address), nil)
}

// AddressTokens 查询地址持有的 ERC-20 代币。
func (c *Client) AddressTokens(ctx context.Context, address string, chain web3.ChainID) web3.Result[web3.TokenList] {
	q := url.Values{"type": []string{"ERC-20"}}
	return get[web3.TokenList](ctx, c, chain, "address_tokens", "addresses/"+url.PathEscape(address)+"/tokens", q)
}

// AddressTransactions 查询地址最近的交易。
func (c *Client) AddressTransactions(ctx context.Context, address string, chain web3.ChainID) web3.Result[web3.TransactionList] {
	return get[web3.TransactionList](ctx, c, chain, "address_transactions", "addresses/"+url.PathEscape(address)+"/transactions", nil)
}

// Transaction 查询交易详情。
func (c *Client) Transaction(ctx context.Context, hash string, chain web3.ChainID) web3.Result[web3.Transaction] {
	return get[web3.Transaction](ctx, c, chain, "transaction", "transactions/"+url.PathEscape(hash), nil)
}

// Block 按高度或哈希查询区块。
func (c *Client) Block(ctx context.Context, number string, chain web3.ChainID) web3.Result[web3.Block] {
	return get[web3.Block](ctx, c, chain, "block", "blocks/"+url.PathEscape(number), nil)
}

// SmartContract 查询合约验证信息。
func (c *Client) SmartContract(ctx context.Context, address string, chain web3.ChainID) web3.Result[web3.SmartContract] {
	return get[web3.SmartContract](ctx, c, chain, "smart_contract", "smart-contracts/"+url.PathEscape(address), nil)
}

// Token 查询代币元数据。
func (c *Client) Token(ctx context.Context, address string, chain web3.ChainID) web3.Result[web3.TokenInfo] {
	return get[web3.TokenInfo](ctx, c, chain, "token", "tokens/"+url.PathEscape(address), nil)
}

// Search 执行全文搜索。
func (c *Client) Search(ctx context.Context, query string, chain web3.ChainID) web3.Result[web3.SearchResults] {
	q := url.Values{"q": []string{query}}
	return get[web3.SearchResults](ctx, c, chain, "search", "search", q)
}

// Stats 查询链的总体统计。
func (c *Client) Stats(ctx context.Context, chain web3.ChainID) web3.Result[web3.NetworkStats] {
	return get[web3.NetworkStats](ctx, c, chain, "stats", "stats", nil)
}

// RecentBlocks 查询最近的区块并转换为统一的区块记录，最多保留 limit 条。
func (c *Client) RecentBlocks(ctx context.Context, chain web3.ChainID, limit int) web3.Result[web3.BlockBatch] {
	q := url.Values{"type": []string{"block"}}
	res := get[web3.BlockList](ctx, c, chain, "recent_blocks", "blocks", q)
	if !res.Success {
		return web3.Fail[web3.BlockBatch](res.Chain, res.Status, res.Error)
	}
	if res.Data.Items == nil {
		return web3.Fail[web3.BlockBatch](res.Chain, res.Status, "response has no block items")
	}

	items := res.Data.Items
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	batch := &web3.BlockBatch{Chain: res.Chain, Blocks: make([]web3.BlockRecord, 0, len(items))}
	for _, b := range items {
		batch.Blocks = append(batch.Blocks, ToRecord(b, res.Chain))
	}
	if len(batch.Blocks) > 0 {
		batch.ArchiveHeight = batch.Blocks[0].Number
	}
	return web3.OK(res.Chain, batch)
}

// ToRecord 把浏览器区块转换为统一记录。
func ToRecord(b web3.Block, chain web3.ChainID) web3.BlockRecord {
	ts, _ := time.Parse(time.RFC3339, b.Timestamp)
	gasUsed, _ := strconv.ParseUint(b.GasUsed.String(), 10, 64)
	return web3.BlockRecord{
		Number:           b.Height.Int64(),
		Timestamp:        ts.UTC(),
		Hash:             b.Hash,
		GasUsed:          gasUsed,
		Size:             b.Size.Int64(),
		TransactionCount: b.Transactions(),
		BaseFeePerGas:    optional(b.BaseFeePerGas),
		Chain:            chain,
	}
}

func optional(n web3.Numeric) string {
	if n == "" {
		return ""
	}
	return n.String()
}

// get 发出一次 GET 请求并解码为 T。任何失败都被折叠进信封。
func get[T any](ctx context.Context, c *Client, chainName web3.ChainID, op, path string, query url.Values) web3.Result[T] {
	chain := c.resolver.Resolve(string(chainName))
	endpoint := strings.TrimRight(chain.ExplorerURL, "/") + "/" + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	start := time.Now()
	status, body, err := c.do(ctx, endpoint)
	ok := err == nil && status >= 200 && status < 300
	metrics.ObserveUpstreamCall("blockscout", string(chain.ID), op, ok, time.Since(start))

	if err != nil {
		c.log.Warn("浏览器请求失败",
			slog.String("chain", string(chain.ID)),
			slog.String("op", op),
			slog.Any("error", err))
		return web3.Fail[T](chain.ID, 0, err.Error())
	}
	if !ok {
		msg := upstreamMessage(body)
		if msg == "" {
			msg = fmt.Sprintf("HTTP %d", status)
		}
		c.log.Warn("浏览器返回错误状态",
			slog.String("chain", string(chain.ID)),
			slog.String("op", op),
			slog.Int("status", status),
			slog.String("message", msg))
		return web3.Fail[T](chain.ID, status, msg)
	}

	var data T
	if err := json.Unmarshal(body, &data); err != nil {
		c.log.Warn("解析浏览器响应失败",
			slog.String("chain", string(chain.ID)),
			slog.String("op", op),
			slog.Any("error", err))
		return web3.Fail[T](chain.ID, status, "invalid response body: "+err.Error())
	}
	return web3.OK(chain.ID, &data)
}

func (c *Client) do(ctx context.Context, endpoint string) (int, []byte, error) {
	if err := ctx.Err(); err != nil {
		return 0, nil, err
	}
	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	req.SetRequestURI(endpoint)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/json")

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		return 0, nil, fmt.Errorf("request %s: %w", endpoint, err)
	}
	body := append([]byte(nil), resp.Body()...)
	return resp.StatusCode(), body, nil
}

// upstreamMessage 提取上游错误体中的 message 字段。
func upstreamMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	return strings.TrimSpace(payload.Message)
}

// BlockSource 把网关的最近区块查询适配为 web3.BlockSource。
type BlockSource struct {
	Gateway web3.Gateway
}

// RecentBlocks 调用网关并把失败信封转换为错误。
func (s BlockSource) RecentBlocks(ctx context.Context, chain web3.ChainID, limit int) (*web3.BlockBatch, error) {
	res := s.Gateway.RecentBlocks(ctx, chain, limit)
	if err := res.Err(); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeUpstreamFailure, err, "获取最近区块失败")
	}
	if len(res.Data.Blocks) == 0 {
		return nil, xerrors.New(xerrors.CodeUpstreamFailure, fmt.Sprintf("%s 未返回任何区块", res.Chain))
	}
	return res.Data, nil
}
