package prompt

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"EnvioScout/internal/gas"
	"EnvioScout/internal/web3"
)

func chain(id web3.ChainID) web3.Chain {
	for _, c := range web3.DefaultChains() {
		if c.ID == id {
			return c
		}
	}
	panic("unknown chain " + string(id))
}

func TestBlocksSortedDescendingRegardlessOfInput(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	blocks := []web3.BlockRecord{
		{Number: 101, Timestamp: base, Hash: "0x0101010101010101010101010101", TransactionCount: 10, GasUsed: 1000},
		{Number: 103, Timestamp: base.Add(24 * time.Second), Hash: "0x0303030303030303030303030303", TransactionCount: 30, GasUsed: 3000},
		{Number: 102, Timestamp: base.Add(12 * time.Second), Hash: "0x0202020202020202020202020202", TransactionCount: 20, GasUsed: 2000},
	}
	out := Blocks("show me the recent 3 blocks", chain(web3.Ethereum), blocks)

	i103 := strings.Index(out, "| 103 |")
	i102 := strings.Index(out, "| 102 |")
	i101 := strings.Index(out, "| 101 |")
	require.True(t, i103 > 0 && i102 > 0 && i101 > 0, out)
	assert.Less(t, i103, i102)
	assert.Less(t, i102, i101)
	assert.Contains(t, out, "| Block # | Timestamp | Transactions | Gas Used | Hash (Short) |")
	assert.Contains(t, out, "Total transactions: 60")
	assert.Contains(t, out, "0x03030303...03030303")
	assert.Contains(t, out, "2024-05-01 12:00:24 UTC")
	assert.Equal(t, int64(101), blocks[0].Number, "input must not be reordered")

	again := Blocks("show me the recent 3 blocks", chain(web3.Ethereum), []web3.BlockRecord{blocks[1], blocks[2], blocks[0]})
	assert.Equal(t, out, again)
}

func TestBlocksEmpty(t *testing.T) {
	out := Blocks("latest blocks on base", chain(web3.Base), nil)
	assert.Contains(t, out, "## No Block Data Available")
	assert.Contains(t, out, "BASE")
	assert.NotContains(t, out, "| Block # |")
}

func TestGasFeesIncludesLevelAndBands(t *testing.T) {
	q := &gas.Quote{Chain: web3.Ethereum, Slow: 10, Average: 25, Fast: 40, Source: "explorer"}
	out := GasFees("gas price?", chain(web3.Ethereum), q)
	assert.Contains(t, out, "Current level: Medium")
	assert.Contains(t, out, "- Average (standard): 25.00 Gwei")
	assert.Contains(t, out, "- Medium: 20-50 Gwei")
	assert.Contains(t, out, "explorer network statistics")

	l2 := GasFees("gas on base", chain(web3.Base), &gas.Quote{Average: 0.005, Source: "blockstats", BlocksAnalyzed: 10, LatestBlock: 1234})
	assert.Contains(t, l2, "Current level: Low")
	assert.Contains(t, l2, "0.005 Gwei")
	assert.Contains(t, l2, "10 blocks, latest block 1,234")

	missing := GasFees("gas?", chain(web3.Gnosis), nil)
	assert.Contains(t, missing, "Gas Data Unavailable for GNOSIS")
}

func TestTransactionsPerChainSections(t *testing.T) {
	addr := "0x1111111111111111111111111111111111111111"
	sections := []TransactionSection{
		{Chain: chain(web3.Ethereum), Result: web3.OK(web3.Ethereum, &web3.TransactionList{Items: []web3.Transaction{{
			Hash:  "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
			From:  &web3.AddressRef{Hash: addr},
			To:    &web3.AddressRef{Hash: "0x2222222222222222222222222222222222222222"},
			Value: "1500000000000000000",
		}}})},
		{Chain: chain(web3.Base), Result: web3.Fail[web3.TransactionList](web3.Base, 502, "HTTP 502")},
		{Chain: chain(web3.Polygon), Result: web3.OK(web3.Polygon, &web3.TransactionList{})},
	}
	out := Transactions("show transactions", addr, sections)

	assert.Contains(t, out, "## ETH Network")
	assert.Contains(t, out, "1.500000 ETH")
	assert.Contains(t, out, "## BASE Network\nError: HTTP 502")
	assert.Contains(t, out, "## POLYGON Network\nNo transactions found.")
	assert.Less(t, strings.Index(out, "## ETH"), strings.Index(out, "## BASE"))
}

func TestAnalysisTotalsAndTokenFiltering(t *testing.T) {
	addr := "0x1111111111111111111111111111111111111111"
	tokens := &web3.TokenList{Items: []web3.TokenBalance{
		{Token: web3.TokenInfo{Symbol: "USDC", Decimals: "6", ExchangeRate: "1"}, Value: "2500000"},
		{Token: web3.TokenInfo{Symbol: "DUST", Decimals: "18"}, Value: "0"},
		{Token: web3.TokenInfo{Symbol: "NOPRICE", Decimals: "18"}, Value: "3000000000000000000"},
	}}
	sections := []WalletSection{
		{
			Chain:   chain(web3.Ethereum),
			Address: web3.OK(web3.Ethereum, &web3.AddressInfo{CoinBalance: "2000000000000000000", ExchangeRate: "3000"}),
			Tokens:  web3.OK(web3.Ethereum, tokens),
		},
		{
			Chain:   chain(web3.Polygon),
			Address: web3.OK(web3.Polygon, &web3.AddressInfo{CoinBalance: "1000000000000000000", ExchangeRate: "0.5"}),
			Tokens:  web3.Fail[web3.TokenList](web3.Polygon, 500, "HTTP 500"),
		},
	}
	out := Analysis("analyze my wallet", addr, sections)

	assert.Contains(t, out, "Native Balance: 2.000000 ETH (≈ $6,000.00)")
	assert.Contains(t, out, "- USDC: 2.500000 (≈ $2.50)")
	assert.Contains(t, out, "- NOPRICE: 3.000000\n")
	assert.NotContains(t, out, "DUST")
	assert.Contains(t, out, "Chain subtotal: $6,002.50")
	assert.Contains(t, out, "Native Balance: 1.000000 POL (≈ $0.50)")
	assert.Contains(t, out, "Error: token data unavailable: HTTP 500")
	assert.Contains(t, out, "Total portfolio value across 2 networks: $6,003.00")

	single := Analysis("analyze", addr, sections[:1])
	assert.NotContains(t, single, "Consolidated Total")
}

func TestHoldingsOrderAndLimit(t *testing.T) {
	list := &web3.TokenList{}
	for i := 0; i < 15; i++ {
		list.Items = append(list.Items, web3.TokenBalance{
			Token: web3.TokenInfo{Symbol: "T" + string(rune('A'+i)), Decimals: "0", ExchangeRate: "1"},
			Value: web3.Numeric(strings.Repeat("1", i+1)),
		})
	}
	h := Holdings(list)
	require.Len(t, h, 15)
	assert.Equal(t, "TO", h[0].Symbol)
	for i := 1; i < len(h); i++ {
		assert.GreaterOrEqual(t, h[i-1].USD, h[i].USD)
	}

	out := Analysis("q", "0xabc", []WalletSection{{
		Chain:   chain(web3.Gnosis),
		Address: web3.OK(web3.Gnosis, &web3.AddressInfo{}),
		Tokens:  web3.OK(web3.Gnosis, list),
	}})
	assert.Contains(t, out, "Tokens (15 held, top 10 shown)")
	assert.Equal(t, 10, strings.Count(out, "\n- T"))
	assert.Contains(t, out, "0.000000 xDAI")
}

func TestContractAnalysisTokenNotFound(t *testing.T) {
	contract := web3.OK(web3.Base, &web3.SmartContract{
		Name:            "Router",
		IsVerified:      true,
		CompilerVersion: "v0.8.20",
		ABI:             []web3.ABIEntry{{Type: "function"}, {Type: "function"}, {Type: "event"}},
		ProxyType:       "eip1967",
		Implementations: []web3.Implementation{{AddressHash: "0xImpl", Name: "RouterV2"}},
	})
	token := web3.Fail[web3.TokenInfo](web3.Base, http.StatusNotFound, "Not found")

	out := ContractAnalysis("analyze contract", "0xabc", chain(web3.Base), contract, token)
	assert.Contains(t, out, "# Contract 0xabc on BASE")
	assert.Contains(t, out, "- Verified: Yes")
	assert.Contains(t, out, "- ABI: 2 functions, 1 events")
	assert.Contains(t, out, "Implementation: 0xImpl (RouterV2)")
	assert.Contains(t, out, "not recognized as a standard token contract")
	assert.NotContains(t, out, "Error: token data unavailable")
}

func TestContractAnalysisWithToken(t *testing.T) {
	contract := web3.Fail[web3.SmartContract](web3.Ethereum, 500, "HTTP 500")
	token := web3.OK(web3.Ethereum, &web3.TokenInfo{
		Type: "ERC-20", Name: "USD Coin", Symbol: "USDC", Decimals: "6",
		TotalSupply: "1000000000000", HoldersCount: "2500", ExchangeRate: "1.0",
	})
	out := ContractAnalysis("analyze", "0xusdc", chain(web3.Ethereum), contract, token)
	assert.Contains(t, out, "Error: contract data unavailable: HTTP 500")
	assert.Contains(t, out, "- Total Supply: 1,000,000.000000")
	assert.Contains(t, out, "- Holders: 2,500")
	assert.Contains(t, out, "- Price: $1.00")
}

func TestGeneralMentionsCapabilities(t *testing.T) {
	out := General("what can you do?")
	assert.Contains(t, out, "User question: \"what can you do?\"")
	assert.Contains(t, out, "Smart contract analysis")
}
