package provider

import (
	"testing"

	"EnvioScout/internal/web3"
)

func TestResolveAliasesAndFallback(t *testing.T) {
	reg, err := NewRegistry(web3.DefaultChains(), "eth")
	if err != nil {
		t.Fatalf("NewRegistry returned error: %v", err)
	}

	cases := map[string]web3.ChainID{
		"eth":      web3.Ethereum,
		"Ethereum": web3.Ethereum,
		"MATIC":    web3.Polygon,
		"xdai":     web3.Gnosis,
		" base ":   web3.Base,
		"solana":   web3.Ethereum,
		"":         web3.Ethereum,
	}
	for in, want := range cases {
		if got := reg.Resolve(in).ID; got != want {
			t.Fatalf("Resolve(%q) = %s, want %s", in, got, want)
		}
	}
	if _, ok := reg.Lookup("solana"); ok {
		t.Fatalf("Lookup should not resolve unknown chains")
	}
}

func TestRegistryKeepsOrder(t *testing.T) {
	reg, err := NewRegistry(web3.DefaultChains(), "")
	if err != nil {
		t.Fatalf("NewRegistry returned error: %v", err)
	}
	want := []web3.ChainID{web3.Ethereum, web3.Polygon, web3.Base, web3.Optimism, web3.Arbitrum, web3.Gnosis}
	got := reg.IDs()
	if len(got) != len(want) {
		t.Fatalf("unexpected ids: %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unexpected order: %v", got)
		}
	}
	if reg.Default().ID != web3.Ethereum {
		t.Fatalf("first chain should be the implicit default")
	}
}

func TestRegistryDefaultAlias(t *testing.T) {
	reg, err := NewRegistry(web3.DefaultChains(), "matic")
	if err != nil {
		t.Fatalf("NewRegistry returned error: %v", err)
	}
	if reg.Default().ID != web3.Polygon {
		t.Fatalf("expected polygon default, got %s", reg.Default().ID)
	}
	if reg.Resolve("nope").ID != web3.Polygon {
		t.Fatalf("fallback should use configured default")
	}
}

func TestRegistryRejectsUnknownDefault(t *testing.T) {
	if _, err := NewRegistry(web3.DefaultChains(), "solana"); err == nil {
		t.Fatalf("expected error for unknown default chain")
	}
	if _, err := NewRegistry(nil, "eth"); err == nil {
		t.Fatalf("expected error for empty chain table")
	}
}
