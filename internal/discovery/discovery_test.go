package discovery

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"EnvioScout/internal/web3"
)

type stubProber struct {
	mu      sync.Mutex
	calls   []web3.ChainID
	answers map[web3.ChainID]web3.Result[web3.AddressInfo]
}

func (s *stubProber) Address(_ context.Context, _ string, chain web3.ChainID) web3.Result[web3.AddressInfo] {
	s.mu.Lock()
	s.calls = append(s.calls, chain)
	s.mu.Unlock()
	if res, ok := s.answers[chain]; ok {
		return res
	}
	return web3.OK(chain, &web3.AddressInfo{CoinBalance: "0"})
}

var allChains = []web3.ChainID{web3.Ethereum, web3.Polygon, web3.Base, web3.Optimism, web3.Arbitrum, web3.Gnosis}

const addr = "0x1111111111111111111111111111111111111111"

func TestDiscoverKeepsChainOrder(t *testing.T) {
	prober := &stubProber{answers: map[web3.ChainID]web3.Result[web3.AddressInfo]{
		web3.Gnosis:   web3.OK(web3.Gnosis, &web3.AddressInfo{HasTokenTransfers: true}),
		web3.Base:     web3.OK(web3.Base, &web3.AddressInfo{CoinBalance: "12"}),
		web3.Arbitrum: web3.OK(web3.Arbitrum, &web3.AddressInfo{TransactionsCount: "4"}),
		web3.Polygon:  web3.Fail[web3.AddressInfo](web3.Polygon, 500, "boom"),
	}}
	d := New(prober, allChains, web3.Ethereum)

	got := d.Discover(context.Background(), addr, "")
	require.Len(t, got, 3)
	assert.Equal(t, web3.Base, got[0].Chain)
	assert.Equal(t, web3.Arbitrum, got[1].Chain)
	assert.Equal(t, web3.Gnosis, got[2].Chain)
	assert.NotNil(t, got[0].Info)
	assert.Len(t, prober.calls, len(allChains))
}

func TestDiscoverFallsBackToDefault(t *testing.T) {
	prober := &stubProber{answers: map[web3.ChainID]web3.Result[web3.AddressInfo]{
		web3.Ethereum: web3.Fail[web3.AddressInfo](web3.Ethereum, 0, "timeout"),
	}}
	d := New(prober, allChains, web3.Ethereum)

	got := d.Discover(context.Background(), addr, "")
	require.Equal(t, []ActiveChain{{Chain: web3.Ethereum}}, got)
}

func TestDiscoverWithHintProbesOnlyHint(t *testing.T) {
	prober := &stubProber{}
	d := New(prober, allChains, web3.Ethereum)

	got := d.Discover(context.Background(), addr, web3.Optimism)
	require.Len(t, got, 1)
	assert.Equal(t, web3.Optimism, got[0].Chain)
	require.NotNil(t, got[0].Info, "inactive hinted chain is still included with its info")
	assert.Equal(t, []web3.ChainID{web3.Optimism}, prober.calls)
}

func TestDiscoverHintFailureStillIncluded(t *testing.T) {
	prober := &stubProber{answers: map[web3.ChainID]web3.Result[web3.AddressInfo]{
		web3.Base: web3.Fail[web3.AddressInfo](web3.Base, 404, "Not found"),
	}}
	d := New(prober, allChains, web3.Ethereum)

	got := d.Discover(context.Background(), addr, web3.Base)
	require.Equal(t, []ActiveChain{{Chain: web3.Base}}, got)
}

func TestDiscoverDeduplicates(t *testing.T) {
	prober := &stubProber{answers: map[web3.ChainID]web3.Result[web3.AddressInfo]{
		web3.Base: web3.OK(web3.Base, &web3.AddressInfo{CoinBalance: "1"}),
	}}
	d := New(prober, []web3.ChainID{web3.Base, web3.Base}, web3.Ethereum)

	got := d.Discover(context.Background(), addr, "")
	require.Len(t, got, 1)
	assert.Equal(t, web3.Base, got[0].Chain)
}

func TestDiscoverHintSurvivesEmptyEnvelopeChain(t *testing.T) {
	prober := &stubProber{answers: map[web3.ChainID]web3.Result[web3.AddressInfo]{
		web3.Polygon: {Success: false, Error: "connection reset"},
		web3.Base:    {Success: true, Data: &web3.AddressInfo{CoinBalance: "3"}},
	}}
	d := New(prober, allChains, web3.Ethereum)

	got := d.Discover(context.Background(), addr, web3.Polygon)
	require.Equal(t, []ActiveChain{{Chain: web3.Polygon}}, got)

	got = d.Discover(context.Background(), addr, web3.Base)
	require.Len(t, got, 1)
	assert.Equal(t, web3.Base, got[0].Chain)
	assert.NotNil(t, got[0].Info)
}

func TestDiscoverFanOutFillsMissingEnvelopeChain(t *testing.T) {
	prober := &stubProber{answers: map[web3.ChainID]web3.Result[web3.AddressInfo]{
		web3.Arbitrum: {Success: true, Data: &web3.AddressInfo{TransactionsCount: "2"}},
	}}
	d := New(prober, allChains, web3.Ethereum)

	got := d.Discover(context.Background(), addr, "")
	require.Equal(t, []ActiveChain{{Chain: web3.Arbitrum, Info: &web3.AddressInfo{TransactionsCount: "2"}}}, got)
}
