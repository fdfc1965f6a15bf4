// Package prompt renders deterministic generation prompts from normalized
// chain data. Every function is pure: the same inputs give the same text.
package prompt

import "strings"

// General 渲染不依赖链上数据的通用对话提示词。
func General(question string) string {
	var b strings.Builder
	b.WriteString("You are EnvioScout, a multi-chain blockchain assistant with live access to explorer and indexer data for Ethereum, Polygon, Base, Optimism, Arbitrum and Gnosis.\n\n")
	writeList(&b, "You can help users with", []string{
		"Wallet analysis: native balances, ERC-20 holdings and USD values across chains",
		"Recent transactions and activity for any address",
		"Latest blocks on any supported chain (for example \"show me the last 5 blocks on base\")",
		"Current gas prices and whether fees are low or high",
		"Smart contract analysis: verification, compiler settings, proxies and token metadata (\"analyze contract 0x... on base\")",
	})
	b.WriteString("\n")
	writeQuestion(&b, question)
	writeList(&b, "Guidelines", []string{
		"Answer concisely and in a friendly tone",
		"If the question needs on-chain data, explain which request format to use, including an address or a network name",
		"NEVER say you can't access real-time data; you have live blockchain data tools",
		"Do not invent balances, prices or transaction details",
	})
	return b.String()
}
