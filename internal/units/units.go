// Package units converts on-chain fixed-point integers into floating point
// amounts for display.
package units

import (
	"fmt"
	"log/slog"
	"math/big"
	"strconv"
	"strings"

	xerrors "EnvioScout/internal/errors"
	"EnvioScout/pkg/logger"
)

// DefaultDecimals 是未声明精度时使用的小数位数（原生代币与大多数 ERC-20）。
const DefaultDecimals = 18

// GweiDecimals 是 wei 到 Gwei 的精度。
const GweiDecimals = 9

// Parse 将十进制整数字符串按 decimals 位小数换算为浮点数。
// 空字符串视为 "0"。负数、非数字或负精度返回错误。
func Parse(value string, decimals int) (float64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		value = "0"
	}
	if decimals < 0 {
		return 0, xerrors.New(xerrors.CodeNormalizationFailure, fmt.Sprintf("精度不能为负数: %d", decimals))
	}
	raw, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return 0, xerrors.New(xerrors.CodeNormalizationFailure, fmt.Sprintf("无法解析数值 %q", value))
	}
	if raw.Sign() < 0 {
		return 0, xerrors.New(xerrors.CodeNormalizationFailure, fmt.Sprintf("数值不能为负数: %s", value))
	}
	return fromBig(raw, decimals)
}

func fromBig(raw *big.Int, decimals int) (float64, error) {
	if decimals == 0 {
		f, _ := new(big.Float).SetInt(raw).Float64()
		return f, nil
	}
	divisor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	quotient, remainder := new(big.Int).QuoRem(raw, divisor, new(big.Int))

	frac := remainder.String()
	if pad := decimals - len(frac); pad > 0 {
		frac = strings.Repeat("0", pad) + frac
	}
	f, err := strconv.ParseFloat(quotient.String()+"."+frac, 64)
	if err != nil {
		return 0, xerrors.Wrap(xerrors.CodeNormalizationFailure, err, "数值超出浮点范围")
	}
	return f, nil
}

// Normalize 与 Parse 相同，但从不失败：任何解析错误都记录告警并返回 0。
func Normalize(value string, decimals int) float64 {
	f, err := Parse(value, decimals)
	if err != nil {
		logger.L().Warn("数值归一化失败，按 0 处理",
			slog.String("value", value),
			slog.Int("decimals", decimals),
			slog.Any("error", err))
		return 0
	}
	return f
}

// NormalizeString 接受文本形式的精度（代币元数据中的 decimals 字段），
// 为空或无法解析时使用 DefaultDecimals。
func NormalizeString(value, decimals string) float64 {
	return Normalize(value, ParseDecimals(decimals))
}

// ParseDecimals 解析代币精度，失败时回退到 DefaultDecimals。
func ParseDecimals(decimals string) int {
	d, err := strconv.Atoi(strings.TrimSpace(decimals))
	if err != nil || d < 0 {
		return DefaultDecimals
	}
	return d
}

// BigToFloat 对已解析的大整数做同样的换算，nil 与负数视为 0。
func BigToFloat(v *big.Int, decimals int) float64 {
	if v == nil || v.Sign() < 0 || decimals < 0 {
		return 0
	}
	f, err := fromBig(v, decimals)
	if err != nil {
		return 0
	}
	return f
}

// WeiToGwei 把 wei 数量换算为 Gwei。
func WeiToGwei(wei *big.Int) float64 {
	return BigToFloat(wei, GweiDecimals)
}
