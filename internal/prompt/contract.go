package prompt

import (
	"net/http"
	"strings"

	"EnvioScout/internal/units"
	"EnvioScout/internal/web3"
)

// ContractAnalysis 渲染合约验证信息与代币元数据。代币接口 404 表示该地址
// 不是标准代币合约，按信息而非错误处理。
func ContractAnalysis(question, address string, chain web3.Chain, contract web3.Result[web3.SmartContract], token web3.Result[web3.TokenInfo]) string {
	var b strings.Builder
	writeQuestion(&b, question)
	fprintf(&b, "# Contract %s on %s\n\n", address, chain.Label())

	b.WriteString("## Contract Verification\n")
	if contract.Success {
		c := contract.Data
		fprintf(&b, "- Name: %s\n", orUnknown(c.Name))
		fprintf(&b, "- Verified: %s\n", yesNo(c.IsVerified))
		fprintf(&b, "- Compiler: %s\n", orUnknown(c.CompilerVersion))
		fprintf(&b, "- Optimization Enabled: %s\n", yesNo(c.OptimizationEnabled))
		fprintf(&b, "- EVM Version: %s\n", orUnknown(c.EVMVersion))
		if c.Language != "" {
			fprintf(&b, "- Language: %s\n", c.Language)
		}
		fprintf(&b, "- ABI: %d functions, %d events\n", c.CountABI("function"), c.CountABI("event"))
		if c.ProxyType != "" || len(c.Implementations) > 0 {
			fprintf(&b, "- Proxy: %s\n", orUnknown(c.ProxyType))
			for _, impl := range c.Implementations {
				addr := impl.AddressHash
				if addr == "" {
					addr = impl.Address
				}
				fprintf(&b, "  - Implementation: %s (%s)\n", addr, orUnknown(impl.Name))
			}
		}
	} else {
		fprintf(&b, "Error: contract data unavailable: %s\n", contract.Error)
	}

	b.WriteString("\n## Token Information\n")
	switch {
	case token.Success:
		t := token.Data
		decimals := units.ParseDecimals(string(t.Decimals))
		fprintf(&b, "- Type: %s\n", orUnknown(t.Type))
		fprintf(&b, "- Name: %s\n", orUnknown(t.Name))
		fprintf(&b, "- Symbol: %s\n", orUnknown(t.Symbol))
		fprintf(&b, "- Decimals: %d\n", decimals)
		if t.TotalSupply != "" {
			fprintf(&b, "- Total Supply: %s\n", amount(units.Normalize(t.TotalSupply.String(), decimals)))
		}
		if holders := t.HolderCount(); holders != "" {
			fprintf(&b, "- Holders: %s\n", count(holders.Int64()))
		}
		if t.ExchangeRate != "" {
			fprintf(&b, "- Price: %s\n", usd(t.ExchangeRate.Float64()))
		}
		if t.CirculatingMarketCap != "" {
			fprintf(&b, "- Market Cap: %s\n", usd(t.CirculatingMarketCap.Float64()))
		}
	case token.Status == http.StatusNotFound:
		b.WriteString("This address is not recognized as a standard token contract.\n")
	default:
		fprintf(&b, "Error: token data unavailable: %s\n", token.Error)
	}

	b.WriteString("\n### Instructions\n")
	writeList(&b, "REQUIRED", []string{
		"Explain what this contract is and whether it is verified, using only the facts above",
		"If it is a proxy, say so and name the implementation",
		"If token information is present, summarize supply, holders and market data",
	})
	writeList(&b, "ABSOLUTELY FORBIDDEN", append([]string{
		"Claiming the contract is safe or unsafe; do not give security audits",
		"Describing functions that are not evidenced by the data above",
	}, commonForbidden...))
	return b.String()
}
