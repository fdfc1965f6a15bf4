package prompt

import (
	"strings"

	"EnvioScout/internal/gas"
	"EnvioScout/internal/web3"
)

// GasFees 渲染 Gas 报价。等级由统一的区间表预先计算，模型只需照抄。
func GasFees(question string, chain web3.Chain, q *gas.Quote) string {
	var b strings.Builder
	writeQuestion(&b, question)

	if q == nil {
		fprintf(&b, "## Gas Data Unavailable for %s\n\n", chain.Label())
		writeList(&b, "REQUIRED", []string{"Tell the user that gas price data is temporarily unavailable and suggest retrying shortly"})
		writeList(&b, "ABSOLUTELY FORBIDDEN", commonForbidden)
		return b.String()
	}

	level := gas.Classify(chain.ID, q.Average)
	fprintf(&b, "## Current Gas Prices on %s\n\n", chain.Label())
	fprintf(&b, "Source: %s\n", sourceLabel(q))
	fprintf(&b, "- Slow: %s Gwei\n", gwei(q.Slow))
	fprintf(&b, "- Average (standard): %s Gwei\n", gwei(q.Average))
	fprintf(&b, "- Fast: %s Gwei\n", gwei(q.Fast))
	if q.BaseFee > 0 {
		fprintf(&b, "- Base fee: %s Gwei\n", gwei(q.BaseFee))
	}
	fprintf(&b, "\nCurrent level: %s (standard price %s Gwei)\n\n", level, gwei(q.Average))

	fprintf(&b, "### Reference Bands for %s\n", chain.Label())
	for _, band := range gas.Bands(chain.ID) {
		fprintf(&b, "- %s: %s\n", band.Label, band.Range())
	}

	b.WriteString("\n### Instructions\n")
	writeList(&b, "REQUIRED", []string{
		"Report the slow, average and fast prices exactly as listed, in Gwei",
		"Describe the current level as \"" + level + "\" and nothing else",
		"Give one practical tip about timing transactions on " + chain.Label(),
	})
	writeList(&b, "ABSOLUTELY FORBIDDEN", append([]string{
		"Using any other price bands or thresholds than the reference bands above",
		"Quoting USD transaction costs that are not derivable from the data above",
	}, commonForbidden...))
	return b.String()
}

func sourceLabel(q *gas.Quote) string {
	switch q.Source {
	case "blockstats":
		return printer.Sprintf("recent block statistics (%d blocks, latest block %d)", q.BlocksAnalyzed, q.LatestBlock)
	case "rpc":
		if q.LatestBlock > 0 {
			return printer.Sprintf("network RPC node (block %d)", q.LatestBlock)
		}
		return "network RPC node"
	default:
		return "explorer network statistics"
	}
}
