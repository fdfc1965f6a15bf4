package gas

import (
	"fmt"
	"math"
	"strconv"

	"EnvioScout/internal/web3"
)

// Band 是一个价格区间，Upper 为开区间上界。
type Band struct {
	Label string
	Lower float64
	Upper float64
}

// Range 返回区间的可读描述。
func (b Band) Range() string {
	switch {
	case b.Lower <= 0:
		return "< " + trim(b.Upper) + " Gwei"
	case math.IsInf(b.Upper, 1):
		return "> " + trim(b.Lower) + " Gwei"
	default:
		return fmt.Sprintf("%s-%s Gwei", trim(b.Lower), trim(b.Upper))
	}
}

func trim(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

var inf = math.Inf(1)

// 区块统计口径下的旧阈值（主网 <5/5-20，Rollup 多一档 0.1-1）与下表不一致，
// 统一采用浏览器口径的区间表。
var (
	mainnetBands = []Band{
		{"Very Low", 0, 1},
		{"Low", 1, 20},
		{"Medium", 20, 50},
		{"High", 50, 100},
		{"Very High", 100, inf},
	}
	polygonBands = []Band{
		{"Low", 0, 30},
		{"Medium", 30, 80},
		{"High", 80, 150},
		{"Very High", 150, inf},
	}
	rollupBands = []Band{
		{"Low", 0, 0.01},
		{"Medium", 0.01, 0.1},
		{"High", 0.1, inf},
	}
)

// Bands 返回链使用的价格区间表。以太坊与 Gnosis 共用主网表，
// Base、Optimism、Arbitrum 共用 Rollup 表。
func Bands(chain web3.ChainID) []Band {
	switch chain {
	case web3.Polygon:
		return polygonBands
	case web3.Base, web3.Optimism, web3.Arbitrum:
		return rollupBands
	default:
		return mainnetBands
	}
}

// Classify 返回价格所在区间的标签。
func Classify(chain web3.ChainID, gwei float64) string {
	bands := Bands(chain)
	for _, b := range bands {
		if gwei < b.Upper {
			return b.Label
		}
	}
	return bands[len(bands)-1].Label
}
