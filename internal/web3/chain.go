package web3

import "strings"

// ChainID 标识受支持的链，取值为闭集。
type ChainID string

const (
	Ethereum ChainID = "eth"
	Polygon  ChainID = "polygon"
	Base     ChainID = "base"
	Optimism ChainID = "optimism"
	Arbitrum ChainID = "arbitrum"
	Gnosis   ChainID = "gnosis"
)

// Chain 描述一条链的全部端点与展示信息。
type Chain struct {
	ID           ChainID
	DisplayName  string
	ExplorerURL  string
	HyperSyncURL string
	RPCURL       string
	NativeSymbol string
	Aliases      []string
}

// Label 返回提示词里使用的大写链名。
func (c Chain) Label() string {
	return strings.ToUpper(string(c.ID))
}

// Names 返回链 ID 与所有别名，均为小写。
func (c Chain) Names() []string {
	names := make([]string, 0, 1+len(c.Aliases))
	names = append(names, string(c.ID))
	for _, a := range c.Aliases {
		names = append(names, strings.ToLower(a))
	}
	return names
}

// DefaultChains 返回固定顺序的内置链表。
func DefaultChains() []Chain {
	return []Chain{
		newChain(Ethereum, "Ethereum", "ETH", "https://eth.llamarpc.com", "ethereum"),
		newChain(Polygon, "Polygon", "POL", "https://polygon-rpc.com", "matic"),
		newChain(Base, "Base", "ETH", "https://mainnet.base.org"),
		newChain(Optimism, "Optimism", "ETH", "https://mainnet.optimism.io"),
		newChain(Arbitrum, "Arbitrum", "ETH", "https://arb1.arbitrum.io/rpc"),
		newChain(Gnosis, "Gnosis", "xDAI", "https://rpc.gnosischain.com", "xdai"),
	}
}

func newChain(id ChainID, display, symbol, rpc string, aliases ...string) Chain {
	return Chain{
		ID:           id,
		DisplayName:  display,
		ExplorerURL:  "https://" + string(id) + ".blockscout.com/api/v2",
		HyperSyncURL: "https://" + string(id) + ".hypersync.xyz",
		RPCURL:       rpc,
		NativeSymbol: symbol,
		Aliases:      aliases,
	}
}
