package prompt

import (
	"sort"
	"strings"

	"EnvioScout/internal/web3"
)

// Blocks 渲染最近区块表格，行按高度降序排列，与输入顺序无关。
func Blocks(question string, chain web3.Chain, blocks []web3.BlockRecord) string {
	var b strings.Builder
	writeQuestion(&b, question)

	if len(blocks) == 0 {
		fprintf(&b, "## No Block Data Available\n\nNo recent blocks could be retrieved for %s.\n\n", chain.Label())
		writeList(&b, "REQUIRED", []string{
			"Tell the user that recent block data for " + chain.Label() + " is temporarily unavailable",
			"Suggest trying again in a moment or asking about another network",
		})
		writeList(&b, "ABSOLUTELY FORBIDDEN", commonForbidden)
		return b.String()
	}

	rows := append([]web3.BlockRecord(nil), blocks...)
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Number > rows[j].Number })

	fprintf(&b, "## Latest %d Blocks on %s\n\n", len(rows), chain.Label())
	b.WriteString("| Block # | Timestamp | Transactions | Gas Used | Hash (Short) |\n")
	b.WriteString("|---------|-----------|--------------|----------|--------------|\n")
	totalTxs := 0
	for _, r := range rows {
		fprintf(&b, "| %s | %s | %s | %s | %s |\n",
			count(r.Number), timestamp(r.Timestamp), count(r.TransactionCount), count(r.GasUsed), shortHash(r.Hash))
		totalTxs += r.TransactionCount
	}

	b.WriteString("\n### Summary\n")
	fprintf(&b, "- Block range: %s to %s\n", count(rows[len(rows)-1].Number), count(rows[0].Number))
	fprintf(&b, "- Total transactions: %s\n", count(totalTxs))
	fprintf(&b, "- Average transactions per block: %.1f\n", float64(totalTxs)/float64(len(rows)))
	if span := rows[0].Timestamp.Sub(rows[len(rows)-1].Timestamp); span > 0 {
		fprintf(&b, "- Time span: %s\n", span.String())
	}
	b.WriteString("\n### Instructions\n")
	writeList(&b, "REQUIRED", []string{
		"Reproduce the table above exactly, with the same columns, rows and order (newest block first)",
		"State that these are the latest blocks on " + chain.Label(),
		"Add one or two sentences summarizing activity using the summary figures",
	})
	writeList(&b, "ABSOLUTELY FORBIDDEN", append([]string{
		"Adding, removing or reordering blocks",
		"Changing block numbers, hashes, timestamps or counts",
	}, commonForbidden...))
	return b.String()
}
