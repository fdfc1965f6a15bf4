package web3

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"
)

// Numeric 保存上游返回的数值文本。浏览器 API 会混用 JSON 数字、十进制字符串、
// 十六进制字符串与 null，这里统一保留原文，按需解析。
type Numeric string

// UnmarshalJSON accepts numbers, strings and null.
func (n *Numeric) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*n = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = Numeric(strings.TrimSpace(s))
		return nil
	}
	*n = Numeric(data)
	return nil
}

// MarshalJSON 输出为字符串，避免大整数丢精度。
func (n Numeric) MarshalJSON() ([]byte, error) {
	if n == "" {
		return []byte("null"), nil
	}
	return json.Marshal(string(n))
}

// String 返回十进制整数文本；十六进制输入会被转换，空值返回 "0"。
func (n Numeric) String() string {
	if v, ok := n.BigInt(); ok {
		return v.String()
	}
	if n == "" {
		return "0"
	}
	return string(n)
}

// BigInt 将整数形式的值解析为 big.Int。
func (n Numeric) BigInt() (*big.Int, bool) {
	s := string(n)
	if s == "" {
		return nil, false
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return new(big.Int).SetString(s[2:], 16)
	}
	return new(big.Int).SetString(s, 10)
}

// Float64 解析为浮点数，失败返回 0。
func (n Numeric) Float64() float64 {
	if v, ok := n.BigInt(); ok {
		f, _ := new(big.Float).SetInt(v).Float64()
		return f
	}
	f, err := strconv.ParseFloat(string(n), 64)
	if err != nil {
		return 0
	}
	return f
}

// Int64 解析为整数，失败返回 0。
func (n Numeric) Int64() int64 {
	if v, ok := n.BigInt(); ok && v.IsInt64() {
		return v.Int64()
	}
	return int64(n.Float64())
}

// IsZero 判断值是否为空或为零。
func (n Numeric) IsZero() bool {
	if n == "" {
		return true
	}
	if v, ok := n.BigInt(); ok {
		return v.Sign() == 0
	}
	return n.Float64() == 0
}

// Result 是网关操作的统一返回信封，网关从不以 Go error 报告上游失败。
type Result[T any] struct {
	Success bool    `json:"success"`
	Data    *T      `json:"data,omitempty"`
	Error   string  `json:"error,omitempty"`
	Status  int     `json:"status,omitempty"`
	Chain   ChainID `json:"chain"`
}

// OK 构造成功信封。
func OK[T any](chain ChainID, data *T) Result[T] {
	if data == nil {
		return Fail[T](chain, 0, "empty response")
	}
	return Result[T]{Success: true, Data: data, Chain: chain}
}

// Fail 构造失败信封。
func Fail[T any](chain ChainID, status int, msg string) Result[T] {
	if msg == "" {
		msg = "request failed"
	}
	return Result[T]{Success: false, Error: msg, Status: status, Chain: chain}
}

// Err 把失败信封转换为 error，成功时返回 nil。
func (r Result[T]) Err() error {
	if r.Success {
		return nil
	}
	if r.Status > 0 {
		return fmt.Errorf("%s: status %d: %s", r.Chain, r.Status, r.Error)
	}
	return fmt.Errorf("%s: %s", r.Chain, r.Error)
}

// AddressRef 是浏览器 API 中嵌套的地址对象。
type AddressRef struct {
	Hash       string `json:"hash"`
	Name       string `json:"name,omitempty"`
	IsContract bool   `json:"is_contract,omitempty"`
}

// AddressInfo 是地址详情。
type AddressInfo struct {
	Hash              string  `json:"hash"`
	Name              string  `json:"name,omitempty"`
	ENSDomainName     string  `json:"ens_domain_name,omitempty"`
	CoinBalance       Numeric `json:"coin_balance"`
	ExchangeRate      Numeric `json:"exchange_rate"`
	IsContract        bool    `json:"is_contract"`
	HasTokens         bool    `json:"has_tokens"`
	HasTokenTransfers bool    `json:"has_token_transfers"`
	TransactionsCount Numeric `json:"transactions_count"`
}

// IsActive 判断地址在该链上是否有活动痕迹。
func (a *AddressInfo) IsActive() bool {
	if a == nil {
		return false
	}
	return !a.CoinBalance.IsZero() || a.HasTokenTransfers || a.TransactionsCount.Int64() > 0
}

// TokenInfo 是代币元数据，兼容新旧字段名。
type TokenInfo struct {
	Address              string  `json:"address"`
	AddressHash          string  `json:"address_hash"`
	Name                 string  `json:"name"`
	Symbol               string  `json:"symbol"`
	Decimals             Numeric `json:"decimals"`
	Type                 string  `json:"type"`
	TotalSupply          Numeric `json:"total_supply"`
	Holders              Numeric `json:"holders"`
	HoldersCount         Numeric `json:"holders_count"`
	ExchangeRate         Numeric `json:"exchange_rate"`
	CirculatingMarketCap Numeric `json:"circulating_market_cap"`
	Volume24h            Numeric `json:"volume_24h"`
}

// Hash 返回代币合约地址。
func (t TokenInfo) Hash() string {
	if t.AddressHash != "" {
		return t.AddressHash
	}
	return t.Address
}

// HolderCount 返回持有人数。
func (t TokenInfo) HolderCount() Numeric {
	if t.HoldersCount != "" {
		return t.HoldersCount
	}
	return t.Holders
}

// TokenBalance 是地址持有的一种代币。
type TokenBalance struct {
	Token   TokenInfo `json:"token"`
	Value   Numeric   `json:"value"`
	TokenID Numeric   `json:"token_id"`
}

// TokenList 是地址代币列表。
type TokenList struct {
	Items          []TokenBalance  `json:"items"`
	NextPageParams json.RawMessage `json:"next_page_params,omitempty"`
}

// Fee 是交易手续费。
type Fee struct {
	Type  string  `json:"type"`
	Value Numeric `json:"value"`
}

// Transaction 是交易详情。
type Transaction struct {
	Hash        string      `json:"hash"`
	From        *AddressRef `json:"from"`
	To          *AddressRef `json:"to"`
	Value       Numeric     `json:"value"`
	Timestamp   string      `json:"timestamp"`
	Status      string      `json:"status"`
	Result      string      `json:"result"`
	Method      string      `json:"method"`
	Fee         *Fee        `json:"fee"`
	BlockNumber Numeric     `json:"block_number"`
	Block       Numeric     `json:"block"`
	GasUsed     Numeric     `json:"gas_used"`
	GasPrice    Numeric     `json:"gas_price"`
	Types       []string    `json:"transaction_types"`
}

// FromHash 返回发送方地址。
func (t Transaction) FromHash() string {
	if t.From == nil {
		return ""
	}
	return t.From.Hash
}

// ToHash 返回接收方地址，合约创建交易为空。
func (t Transaction) ToHash() string {
	if t.To == nil {
		return ""
	}
	return t.To.Hash
}

// Height 返回交易所在区块高度。
func (t Transaction) Height() int64 {
	if t.BlockNumber != "" {
		return t.BlockNumber.Int64()
	}
	return t.Block.Int64()
}

// TransactionList 是地址交易列表。
type TransactionList struct {
	Items          []Transaction   `json:"items"`
	NextPageParams json.RawMessage `json:"next_page_params,omitempty"`
}

// HasMore 判断上游是否还有下一页。
func (l TransactionList) HasMore() bool {
	p := bytes.TrimSpace(l.NextPageParams)
	return len(p) > 0 && !bytes.Equal(p, []byte("null"))
}

// Block 是浏览器返回的区块详情。
type Block struct {
	Height           Numeric     `json:"height"`
	Timestamp        string      `json:"timestamp"`
	Hash             string      `json:"hash"`
	GasUsed          Numeric     `json:"gas_used"`
	GasLimit         Numeric     `json:"gas_limit"`
	Size             Numeric     `json:"size"`
	TxCount          Numeric     `json:"tx_count"`
	TransactionCount Numeric     `json:"transaction_count"`
	BaseFeePerGas    Numeric     `json:"base_fee_per_gas"`
	Miner            *AddressRef `json:"miner"`
}

// Transactions 返回区块交易数，兼容新旧字段名。
func (b Block) Transactions() int {
	if b.TransactionCount != "" {
		return int(b.TransactionCount.Int64())
	}
	return int(b.TxCount.Int64())
}

// BlockList 是区块列表。
type BlockList struct {
	Items []Block `json:"items"`
}

// BlockRecord 是统一后的区块记录，供提示词与仪表盘使用。
type BlockRecord struct {
	Number           int64     `json:"number"`
	Timestamp        time.Time `json:"timestamp"`
	Hash             string    `json:"hash"`
	GasUsed          uint64    `json:"gasUsed"`
	Size             int64     `json:"size"`
	TransactionCount int       `json:"transactionCount"`
	BaseFeePerGas    string    `json:"baseFeePerGas,omitempty"`
	// AvgGasPrice 以 Gwei 计。
	AvgGasPrice float64 `json:"avgGasPrice"`
	// GasFee 以原生代币计。
	GasFee float64 `json:"gasFee"`
	Chain  ChainID `json:"chain"`
}

// BlockBatch 是一次最近区块查询的结果。
type BlockBatch struct {
	Chain         ChainID       `json:"chain"`
	Blocks        []BlockRecord `json:"blocks"`
	ArchiveHeight int64         `json:"archiveHeight"`
}

// ABIEntry 是合约 ABI 中的一项，只保留统计所需字段。
type ABIEntry struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

// Implementation 是代理合约的实现合约。
type Implementation struct {
	Address     string `json:"address"`
	AddressHash string `json:"address_hash"`
	Name        string `json:"name"`
}

// SmartContract 是合约验证信息。
type SmartContract struct {
	Name                string           `json:"name"`
	IsVerified          bool             `json:"is_verified"`
	CompilerVersion     string           `json:"compiler_version"`
	OptimizationEnabled bool             `json:"optimization_enabled"`
	EVMVersion          string           `json:"evm_version"`
	Language            string           `json:"language"`
	ABI                 []ABIEntry       `json:"abi"`
	ProxyType           string           `json:"proxy_type"`
	Implementations     []Implementation `json:"implementations"`
}

// CountABI 返回 ABI 中指定类型条目的数量。
func (c SmartContract) CountABI(kind string) int {
	n := 0
	for _, e := range c.ABI {
		if e.Type == kind {
			n++
		}
	}
	return n
}

// SearchItem 是搜索结果中的一项。
type SearchItem struct {
	Type            string  `json:"type"`
	Name            string  `json:"name"`
	Symbol          string  `json:"symbol"`
	Address         string  `json:"address"`
	AddressHash     string  `json:"address_hash"`
	TransactionHash string  `json:"transaction_hash"`
	BlockNumber     Numeric `json:"block_number"`
	URL             string  `json:"url"`
}

// SearchResults 是搜索结果。
type SearchResults struct {
	Items []SearchItem `json:"items"`
}

// GasPrice 兼容 gas_prices 里的纯数值与 {"price": x} 对象两种形式，单位 Gwei。
type GasPrice struct {
	Price Numeric
}

// UnmarshalJSON accepts a bare number/string or an object carrying "price".
func (g *GasPrice) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var obj struct {
			Price Numeric `json:"price"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		g.Price = obj.Price
		return nil
	}
	return g.Price.UnmarshalJSON(data)
}

// MarshalJSON 输出为纯数值。
func (g GasPrice) MarshalJSON() ([]byte, error) {
	return json.Marshal(g.Price.Float64())
}

// Gwei 返回价格数值。
func (g GasPrice) Gwei() float64 {
	return g.Price.Float64()
}

// GasPrices 是浏览器统计中的三档 Gas 价格。
type GasPrices struct {
	Slow    *GasPrice `json:"slow"`
	Average *GasPrice `json:"average"`
	Fast    *GasPrice `json:"fast"`
}

// NetworkStats 是链的总体统计。
type NetworkStats struct {
	TotalBlocks                  Numeric    `json:"total_blocks"`
	TotalAddresses               Numeric    `json:"total_addresses"`
	TotalTransactions            Numeric    `json:"total_transactions"`
	AverageBlockTime             Numeric    `json:"average_block_time"`
	CoinPrice                    Numeric    `json:"coin_price"`
	MarketCap                    Numeric    `json:"market_cap"`
	GasPrices                    *GasPrices `json:"gas_prices"`
	GasUsedToday                 Numeric    `json:"gas_used_today"`
	TransactionsToday            Numeric    `json:"transactions_today"`
	NetworkUtilizationPercentage Numeric    `json:"network_utilization_percentage"`
}

// Gateway 是区块浏览器数据网关。每个操作恰好发出一次上游请求，
// 并总是返回携带所查询链 ID 的信封。
type Gateway interface {
	Address(ctx context.Context, address string, chain ChainID) Result[AddressInfo]
	AddressTokens(ctx context.Context, address string, chain ChainID) Result[TokenList]
	AddressTransactions(ctx context.Context, address string, chain ChainID) Result[TransactionList]
	Transaction(ctx context.Context, hash string, chain ChainID) Result[Transaction]
	Block(ctx context.Context, number string, chain ChainID) Result[Block]
	SmartContract(ctx context.Context, address string, chain ChainID) Result[SmartContract]
	Token(ctx context.Context, address string, chain ChainID) Result[TokenInfo]
	Search(ctx context.Context, query string, chain ChainID) Result[SearchResults]
	Stats(ctx context.Context, chain ChainID) Result[NetworkStats]
	RecentBlocks(ctx context.Context, chain ChainID, limit int) Result[BlockBatch]
}

// BlockSource 提供最近区块记录，失败以 error 返回。
// HyperSync 索引器与浏览器网关都可以充当来源。
type BlockSource interface {
	RecentBlocks(ctx context.Context, chain ChainID, limit int) (*BlockBatch, error)
}
