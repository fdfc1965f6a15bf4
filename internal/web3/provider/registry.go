package provider

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"EnvioScout/internal/web3"
	"EnvioScout/pkg/logger"
)

// Registry resolves chain identifiers, including aliases, to chain
// definitions while preserving the fixed chain order.
type Registry struct {
	defaultChain web3.ChainID
	order        []web3.ChainID
	chains       map[web3.ChainID]web3.Chain
	names        map[string]web3.ChainID
}

// NewRegistry builds a registry from the chain table.
func NewRegistry(chains []web3.Chain, defaultChain string) (*Registry, error) {
	if len(chains) == 0 {
		return nil, errors.New("未配置任何链")
	}
	r := &Registry{
		chains: make(map[web3.ChainID]web3.Chain, len(chains)),
		names:  make(map[string]web3.ChainID),
	}
	for _, c := range chains {
		if _, dup := r.chains[c.ID]; dup {
			return nil, fmt.Errorf("链 %s 重复定义", c.ID)
		}
		r.order = append(r.order, c.ID)
		r.chains[c.ID] = c
		for _, name := range c.Names() {
			r.names[name] = c.ID
		}
	}

	def := strings.ToLower(strings.TrimSpace(defaultChain))
	if def == "" {
		def = string(r.order[0])
	}
	id, ok := r.names[def]
	if !ok {
		return nil, fmt.Errorf("默认链 %s 未在配置中找到", defaultChain)
	}
	r.defaultChain = id
	return r, nil
}

// FromDefinitions loads the optional YAML overrides and builds a registry
// over the built-in chain table.
func FromDefinitions(path, defaultChain string) (*Registry, error) {
	defs, err := web3.LoadChainDefinitions(path)
	if err != nil {
		return nil, err
	}
	chains, err := defs.Apply(web3.DefaultChains())
	if err != nil {
		return nil, err
	}
	return NewRegistry(chains, defaultChain)
}

// Lookup finds a chain by id or alias, case-insensitively.
func (r *Registry) Lookup(name string) (web3.Chain, bool) {
	if r == nil {
		return web3.Chain{}, false
	}
	id, ok := r.names[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return web3.Chain{}, false
	}
	return r.chains[id], true
}

// Resolve never fails: unknown names fall back to the default chain with a
// warning.
func (r *Registry) Resolve(name string) web3.Chain {
	if c, ok := r.Lookup(name); ok {
		return c
	}
	logger.L().Warn("未知的链标识，使用默认链",
		slog.String("chain", name),
		slog.String("default", string(r.defaultChain)))
	return r.chains[r.defaultChain]
}

// Default returns the default chain.
func (r *Registry) Default() web3.Chain {
	return r.chains[r.defaultChain]
}

// IDs returns chain ids in the fixed order.
func (r *Registry) IDs() []web3.ChainID {
	if r == nil {
		return nil
	}
	return append([]web3.ChainID(nil), r.order...)
}

// Chains returns chain definitions in the fixed order.
func (r *Registry) Chains() []web3.Chain {
	if r == nil {
		return nil
	}
	out := make([]web3.Chain, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.chains[id])
	}
	return out
}
