package prompt

import (
	"io"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

func fprintf(w io.Writer, format string, args ...any) {
	_, _ = printer.Fprintf(w, format, args...)
}

// shortHash 保留前 10 位与后 8 位。
func shortHash(h string) string {
	if len(h) <= 18 {
		return h
	}
	return h[:10] + "..." + h[len(h)-8:]
}

// gwei 对大于 1 的价格保留两位小数，对 L2 上的极小价格保留有效位。
func gwei(v float64) string {
	if v >= 1 || v == 0 {
		return printer.Sprintf("%.2f", v)
	}
	s := strconv.FormatFloat(v, 'f', 6, 64)
	s = strings.TrimRight(s, "0")
	if strings.HasSuffix(s, ".") {
		s += "0"
	}
	return s
}

func amount(v float64) string {
	return printer.Sprintf("%.6f", v)
}

func usd(v float64) string {
	return printer.Sprintf("$%.2f", v)
}

func count[T ~int | ~int64 | ~uint64](v T) string {
	return printer.Sprintf("%d", v)
}

func timestamp(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return t.UTC().Format("2006-01-02 15:04:05 UTC")
}

// isoTimestamp 把浏览器返回的 ISO 时间整理为统一格式，无法解析时原样返回。
func isoTimestamp(s string) string {
	if s == "" {
		return "unknown"
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return s
	}
	return timestamp(t)
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "Unknown"
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func writeQuestion(b *strings.Builder, question string) {
	fprintf(b, "User question: \"%s\"\n\n", strings.TrimSpace(question))
}

func writeList(b *strings.Builder, title string, items []string) {
	b.WriteString(title)
	b.WriteString(":\n")
	for _, item := range items {
		b.WriteString("- ")
		b.WriteString(item)
		b.WriteString("\n")
	}
}

// commonForbidden 是所有数据类提示词共享的禁止项。
var commonForbidden = []string{
	"Inventing, estimating or rounding away any value that is not listed in the data above",
	"Saying that you cannot access real-time or blockchain data; the data above is live",
	"Referring the user to external explorers instead of answering from the data above",
}
