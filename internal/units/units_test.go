package units

import (
	"math/big"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xerrors "EnvioScout/internal/errors"
)

func TestNormalizeKnownValues(t *testing.T) {
	cases := []struct {
		value    string
		decimals int
		want     float64
	}{
		{"1000000000000000000", 18, 1.0},
		{"1500000", 6, 1.5},
		{"0", 18, 0},
		{"", 18, 0},
		{"1", 18, 1e-18},
		{"123", 0, 123},
		{"42", 2, 0.42},
		{"1000000000", 9, 1},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Normalize(tc.value, tc.decimals), "value=%q decimals=%d", tc.value, tc.decimals)
	}
}

func TestNormalizeInvalidReturnsZero(t *testing.T) {
	assert.Equal(t, 0.0, Normalize("abc", 18))
	assert.Equal(t, 0.0, Normalize("-5", 18))
	assert.Equal(t, 0.0, Normalize("10", -1))
	assert.Equal(t, 0.0, Normalize("1.5", 18))
}

func TestParseReportsNormalizationCode(t *testing.T) {
	_, err := Parse("0xzz", 18)
	require.Error(t, err)
	assert.Equal(t, xerrors.CodeNormalizationFailure, xerrors.CodeOf(err))
}

func TestParseLargeDecimals(t *testing.T) {
	v := "1" + strings.Repeat("0", 77)
	got, err := Parse(v, 77)
	require.NoError(t, err)
	assert.Equal(t, 1.0, got)
}

// 与 big.Rat 的精确结果比较，误差应在一个 ulp 量级内。
func TestParseMatchesRational(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		raw := new(big.Int).Rand(rng, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(1+rng.Intn(40))), nil))
		decimals := rng.Intn(30)

		got, err := Parse(raw.String(), decimals)
		require.NoError(t, err)

		denom := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
		want, _ := new(big.Rat).SetFrac(raw, denom).Float64()
		if want == 0 {
			assert.Equal(t, 0.0, got)
			continue
		}
		assert.InEpsilon(t, want, got, 1e-15, "raw=%s decimals=%d", raw, decimals)
	}
}

func TestParseDecimals(t *testing.T) {
	assert.Equal(t, 6, ParseDecimals("6"))
	assert.Equal(t, DefaultDecimals, ParseDecimals(""))
	assert.Equal(t, DefaultDecimals, ParseDecimals("null"))
	assert.Equal(t, DefaultDecimals, ParseDecimals("-3"))
	assert.Equal(t, 1.5, NormalizeString("1500000", "6"))
}

func TestWeiToGwei(t *testing.T) {
	assert.Equal(t, 25.5, WeiToGwei(big.NewInt(25_500_000_000)))
	assert.Equal(t, 0.0, WeiToGwei(nil))
}
