package web3

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNumericAcceptsMixedEncodings(t *testing.T) {
	var payload struct {
		A Numeric `json:"a"`
		B Numeric `json:"b"`
		C Numeric `json:"c"`
		D Numeric `json:"d"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": 42, "b": "1000000000000000000000", "c": "0x1a", "d": null}`), &payload))

	assert.Equal(t, int64(42), payload.A.Int64())
	assert.Equal(t, "1000000000000000000000", payload.B.String())
	assert.Equal(t, int64(26), payload.C.Int64())
	assert.Equal(t, "0", payload.D.String())
	assert.True(t, payload.D.IsZero())
	assert.False(t, payload.B.IsZero())
	assert.InDelta(t, 2.5, Numeric("2.5").Float64(), 1e-12)
}

func TestGasPriceAcceptsBareAndObject(t *testing.T) {
	var prices GasPrices
	require.NoError(t, json.Unmarshal([]byte(`{"slow": 1.2, "average": {"price": 3.4, "time": 12000}, "fast": "5"}`), &prices))

	assert.InDelta(t, 1.2, prices.Slow.Gwei(), 1e-12)
	assert.InDelta(t, 3.4, prices.Average.Gwei(), 1e-12)
	assert.InDelta(t, 5.0, prices.Fast.Gwei(), 1e-12)
}

func TestAddressInfoIsActive(t *testing.T) {
	assert.False(t, (*AddressInfo)(nil).IsActive())
	assert.False(t, (&AddressInfo{CoinBalance: "0"}).IsActive())
	assert.True(t, (&AddressInfo{CoinBalance: "1"}).IsActive())
	assert.True(t, (&AddressInfo{HasTokenTransfers: true}).IsActive())
	assert.True(t, (&AddressInfo{TransactionsCount: "3"}).IsActive())
}

func TestResultEnvelope(t *testing.T) {
	ok := OK(Base, &Block{Hash: "0xabc"})
	assert.True(t, ok.Success)
	assert.NoError(t, ok.Err())
	assert.Equal(t, Base, ok.Chain)

	empty := OK[Block](Base, nil)
	assert.False(t, empty.Success)

	failed := Fail[Block](Gnosis, 404, "Not found")
	assert.False(t, failed.Success)
	assert.Nil(t, failed.Data)
	assert.EqualError(t, failed.Err(), "gnosis: status 404: Not found")
}

func TestChainDefinitionsApply(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chains.yaml")
	body := `chains:
  polygon:
    native_symbol: MATIC
    explorer_url: https://polygon.example/api/v2/
  eth:
    rpc_url: https://rpc.example
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	defs, err := LoadChainDefinitions(path)
	require.NoError(t, err)
	chains, err := defs.Apply(DefaultChains())
	require.NoError(t, err)

	require.Len(t, chains, 6)
	assert.Equal(t, Ethereum, chains[0].ID)
	assert.Equal(t, "https://rpc.example", chains[0].RPCURL)
	assert.Equal(t, "MATIC", chains[1].NativeSymbol)
	assert.Equal(t, "https://polygon.example/api/v2", chains[1].ExplorerURL)
	assert.Equal(t, "POL", DefaultChains()[1].NativeSymbol, "built-in table must stay untouched")
}

func TestChainDefinitionsRejectUnknownChain(t *testing.T) {
	defs := ChainDefinitions{Chains: map[string]ChainDefinition{"solana": {}}}
	_, err := defs.Apply(DefaultChains())
	require.Error(t, err)
}

func TestDefaultChainEndpoints(t *testing.T) {
	for _, c := range DefaultChains() {
		assert.Equal(t, "https://"+string(c.ID)+".blockscout.com/api/v2", c.ExplorerURL)
		assert.Equal(t, "https://"+string(c.ID)+".hypersync.xyz", c.HyperSyncURL)
	}
	assert.Equal(t, []string{"eth", "ethereum"}, DefaultChains()[0].Names())
}
