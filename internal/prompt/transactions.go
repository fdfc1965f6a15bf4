package prompt

import (
	"strings"

	"EnvioScout/internal/units"
	"EnvioScout/internal/web3"
)

// MaxTransactionsPerChain 是每条链展示的交易上限。
const MaxTransactionsPerChain = 10

// TransactionSection 是一条链的交易查询结果。
type TransactionSection struct {
	Chain  web3.Chain
	Result web3.Result[web3.TransactionList]
}

// Transactions 渲染多链交易列表，每条链一个小节，失败的链显示错误行。
func Transactions(question, address string, sections []TransactionSection) string {
	var b strings.Builder
	writeQuestion(&b, question)
	fprintf(&b, "# Recent Transactions for %s\n\n", address)

	for _, s := range sections {
		fprintf(&b, "## %s Network\n", s.Chain.Label())
		if !s.Result.Success {
			fprintf(&b, "Error: %s\n\n", s.Result.Error)
			continue
		}
		items := s.Result.Data.Items
		if len(items) == 0 {
			b.WriteString("No transactions found.\n\n")
			continue
		}
		shown := items
		if len(shown) > MaxTransactionsPerChain {
			shown = shown[:MaxTransactionsPerChain]
		}
		for i, tx := range shown {
			writeTransaction(&b, i+1, tx, s.Chain.NativeSymbol)
		}
		if len(items) > len(shown) || s.Result.Data.HasMore() {
			fprintf(&b, "(Showing the %d most recent transactions; more are available.)\n", len(shown))
		}
		b.WriteString("\n")
	}

	b.WriteString("### Instructions\n")
	writeList(&b, "REQUIRED", []string{
		"Summarize the transactions per network, newest first, using the values listed",
		"Report every network error above as a short note for that network",
		"Mention notable patterns such as failed transactions or repeated contract methods",
	})
	writeList(&b, "ABSOLUTELY FORBIDDEN", append([]string{
		"Mixing transactions between networks",
		"Showing full details for more than " + printer.Sprintf("%d", MaxTransactionsPerChain) + " transactions per network",
	}, commonForbidden...))
	return b.String()
}

func writeTransaction(b *strings.Builder, n int, tx web3.Transaction, symbol string) {
	to := tx.ToHash()
	if to == "" {
		to = "Contract Creation"
	}
	status := tx.Status
	if tx.Result != "" && tx.Result != "success" {
		status = tx.Result
	}
	fprintf(b, "%d. Hash: %s\n", n, tx.Hash)
	fprintf(b, "   From: %s\n", orUnknown(tx.FromHash()))
	fprintf(b, "   To: %s\n", to)
	fprintf(b, "   Value: %s %s\n", amount(units.Normalize(tx.Value.String(), units.DefaultDecimals)), symbol)
	fprintf(b, "   Time: %s\n", isoTimestamp(tx.Timestamp))
	fprintf(b, "   Status: %s\n", orUnknown(status))
	if tx.Method != "" {
		fprintf(b, "   Method: %s\n", tx.Method)
	}
}
