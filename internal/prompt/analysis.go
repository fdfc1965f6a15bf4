package prompt

import (
	"sort"
	"strings"

	"EnvioScout/internal/units"
	"EnvioScout/internal/web3"
)

// MaxTokensPerChain 是每条链展示的代币上限。
const MaxTokensPerChain = 10

// WalletSection 是一条链上的地址与代币数据。
type WalletSection struct {
	Chain   web3.Chain
	Address web3.Result[web3.AddressInfo]
	Tokens  web3.Result[web3.TokenList]
}

// Holding 是归一化后的一种代币持仓。
type Holding struct {
	Symbol  string
	Name    string
	Balance float64
	USD     float64
	Priced  bool
}

// Holdings 归一化代币余额，过滤掉零余额，按美元价值、再按数量降序。
func Holdings(list *web3.TokenList) []Holding {
	if list == nil {
		return nil
	}
	out := make([]Holding, 0, len(list.Items))
	for _, item := range list.Items {
		bal := units.Normalize(item.Value.String(), units.ParseDecimals(string(item.Token.Decimals)))
		if bal <= 0 {
			continue
		}
		h := Holding{Symbol: orUnknown(item.Token.Symbol), Name: item.Token.Name, Balance: bal}
		if item.Token.ExchangeRate != "" {
			h.USD = bal * item.Token.ExchangeRate.Float64()
			h.Priced = true
		}
		out = append(out, h)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].USD != out[j].USD {
			return out[i].USD > out[j].USD
		}
		return out[i].Balance > out[j].Balance
	})
	return out
}

// Analysis 渲染多链钱包分析：每条链的原生余额、主要代币、美元小计，
// 多于一条链时附加合计。
func Analysis(question, address string, sections []WalletSection) string {
	var b strings.Builder
	writeQuestion(&b, question)
	fprintf(&b, "# Wallet Analysis for %s\n\n", address)

	var total float64
	for _, s := range sections {
		fprintf(&b, "## %s Network\n", s.Chain.Label())
		subtotal := 0.0

		if s.Address.Success {
			info := s.Address.Data
			native := units.Normalize(info.CoinBalance.String(), units.DefaultDecimals)
			fprintf(&b, "Native Balance: %s %s", amount(native), s.Chain.NativeSymbol)
			if info.ExchangeRate != "" {
				value := native * info.ExchangeRate.Float64()
				subtotal += value
				fprintf(&b, " (≈ %s)", usd(value))
			}
			b.WriteString("\n")
			if info.IsContract {
				b.WriteString("Address type: smart contract\n")
			}
			if info.ENSDomainName != "" {
				fprintf(&b, "ENS name: %s\n", info.ENSDomainName)
			}
		} else {
			fprintf(&b, "Error: address data unavailable: %s\n", s.Address.Error)
		}

		if s.Tokens.Success {
			holdings := Holdings(s.Tokens.Data)
			if len(holdings) == 0 {
				b.WriteString("Tokens: none with a non-zero balance\n")
			} else {
				fprintf(&b, "Tokens (%d held, top %d shown):\n", len(holdings), min(len(holdings), MaxTokensPerChain))
				for i, h := range holdings {
					if h.Priced {
						subtotal += h.USD
					}
					if i >= MaxTokensPerChain {
						continue
					}
					fprintf(&b, "- %s: %s", h.Symbol, amount(h.Balance))
					if h.Priced {
						fprintf(&b, " (≈ %s)", usd(h.USD))
					}
					b.WriteString("\n")
				}
			}
		} else {
			fprintf(&b, "Error: token data unavailable: %s\n", s.Tokens.Error)
		}

		fprintf(&b, "Chain subtotal: %s\n\n", usd(subtotal))
		total += subtotal
	}

	if len(sections) > 1 {
		fprintf(&b, "## Consolidated Total\nTotal portfolio value across %d networks: %s\n\n", len(sections), usd(total))
	}

	b.WriteString("### Instructions\n")
	writeList(&b, "REQUIRED", []string{
		"Present balances per network with the exact amounts and USD values listed",
		"Report every network error above as a short note for that network",
		"Close with a brief overview of where the portfolio value is concentrated",
	})
	writeList(&b, "ABSOLUTELY FORBIDDEN", append([]string{
		"Assigning USD values to tokens that have none listed",
		"Giving investment advice",
	}, commonForbidden...))
	return b.String()
}
