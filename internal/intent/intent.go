// Package intent turns a free-text chat message into a structured request:
// what kind of data is wanted, on which chain and for which address.
package intent

import (
	"regexp"
	"strconv"
	"strings"

	"EnvioScout/internal/web3"
)

// Intent 是消息所请求的数据类别。
type Intent string

const (
	Blocks           Intent = "blocks"
	GasFees          Intent = "gas_fees"
	Transactions     Intent = "transactions"
	ContractAnalysis Intent = "contract_analysis"
	Analysis         Intent = "analysis"
	Tokens           Intent = "tokens"
	General          Intent = "general"
)

const (
	// DefaultBlockCount 是消息未指明数量时查询的区块数。
	DefaultBlockCount = 5
	// MaxBlockCount 是单次查询的区块数上限。
	MaxBlockCount = 10
)

var (
	addressPattern    = regexp.MustCompile(`0x[0-9a-fA-F]{40}`)
	blockCountPattern = regexp.MustCompile(`(?i)(\d+)\s*blocks?`)
	recentBlocks      = regexp.MustCompile(`recent \d+ blocks`)
)

// Parsed 汇总一条消息的解析结果。
type Parsed struct {
	Intent     Intent
	Chain      web3.ChainID
	HasChain   bool
	Address    string
	HasAddress bool
	BlockCount int
}

// Parser 按给定链表识别链名与别名。
type Parser struct {
	chains   []web3.Chain
	explicit []*regexp.Regexp
	bare     []*regexp.Regexp
}

// NewParser 创建解析器，链表顺序决定同时出现多个链名时的优先级。
func NewParser(chains []web3.Chain) *Parser {
	p := &Parser{chains: chains}
	for _, c := range chains {
		names := make([]string, 0, len(c.Names()))
		for _, n := range c.Names() {
			names = append(names, regexp.QuoteMeta(n))
		}
		alt := strings.Join(names, "|")
		p.explicit = append(p.explicit, regexp.MustCompile(`\bon\s+(?:the\s+)?(?:`+alt+`)\b`))
		p.bare = append(p.bare, regexp.MustCompile(`\b(?:`+alt+`)\b`))
	}
	return p
}

var defaultParser = NewParser(web3.DefaultChains())

// Classify 使用内置链表对消息分类。
func Classify(message string) Intent { return defaultParser.Classify(message) }

// ExtractChain 使用内置链表提取链。
func ExtractChain(message string) (web3.ChainID, bool) { return defaultParser.ExtractChain(message) }

// Parse 使用内置链表完整解析消息。
func Parse(message string) Parsed { return defaultParser.Parse(message) }

// Classify 按固定优先级判断意图：
// contract_analysis > gas_fees > blocks > transactions > analysis > tokens > general。
func (p *Parser) Classify(message string) Intent {
	m := strings.ToLower(message)

	if containsAny(m, "analyze", "analyse", "analysis") &&
		containsAny(m, "contract", "smartcontract") &&
		p.mentionsNetwork(m) {
		return ContractAnalysis
	}
	if strings.Contains(m, "gas") && containsAny(m, "fee", "price", "cost") {
		return GasFees
	}
	if strings.Contains(m, "block") || recentBlocks.MatchString(m) {
		return Blocks
	}
	if containsAny(m, "transaction", "tx", "transfers", "recent activity") {
		return Transactions
	}
	if strings.Contains(m, "analy") {
		return Analysis
	}
	if containsAny(m, "token", "balance", "holdings", "assets") {
		return Tokens
	}
	return General
}

// mentionsNetwork 判断消息是否以 "on <链名>" 的形式显式指定了网络。
func (p *Parser) mentionsNetwork(lower string) bool {
	for _, re := range p.explicit {
		if re.MatchString(lower) {
			return true
		}
	}
	return false
}

// ExtractChain 先查找 "on <链名>" 形式，再查找独立出现的链名或别名，
// 各轮内按链表顺序取第一个命中。
func (p *Parser) ExtractChain(message string) (web3.ChainID, bool) {
	m := strings.ToLower(message)
	for i, re := range p.explicit {
		if re.MatchString(m) {
			return p.chains[i].ID, true
		}
	}
	for i, re := range p.bare {
		if re.MatchString(m) {
			return p.chains[i].ID, true
		}
	}
	return "", false
}

// ExtractAddress 返回消息中的第一个 EVM 地址。
func ExtractAddress(message string) (string, bool) {
	addr := addressPattern.FindString(message)
	return addr, addr != ""
}

// ExtractBlockCount 解析 "N blocks"，结果限制在 [1, MaxBlockCount]，缺省为 DefaultBlockCount。
func ExtractBlockCount(message string) int {
	return ExtractBlockCountBounded(message, DefaultBlockCount, MaxBlockCount)
}

// ExtractBlockCountBounded 与 ExtractBlockCount 相同，但使用自定义的缺省值与上限。
func ExtractBlockCountBounded(message string, def, limit int) int {
	if limit < 1 {
		limit = MaxBlockCount
	}
	if def < 1 || def > limit {
		def = min(DefaultBlockCount, limit)
	}
	match := blockCountPattern.FindStringSubmatch(message)
	if match == nil {
		return def
	}
	n, err := strconv.Atoi(match[1])
	if err != nil {
		// 数字超出 int 范围，按上限处理。
		return limit
	}
	return min(max(n, 1), limit)
}

// Parse 一次性完成分类与实体提取。
func (p *Parser) Parse(message string) Parsed {
	chain, hasChain := p.ExtractChain(message)
	addr, hasAddr := ExtractAddress(message)
	return Parsed{
		Intent:     p.Classify(message),
		Chain:      chain,
		HasChain:   hasChain,
		Address:    addr,
		HasAddress: hasAddr,
		BlockCount: ExtractBlockCount(message),
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
