package web3

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ChainDefinitions models the structure of configs/chains.yaml.
type ChainDefinitions struct {
	Chains map[string]ChainDefinition `yaml:"chains"`
}

// ChainDefinition overrides endpoints of a built-in chain. Empty fields keep
// the built-in value.
type ChainDefinition struct {
	DisplayName  string   `yaml:"display_name"`
	ExplorerURL  string   `yaml:"explorer_url"`
	HyperSyncURL string   `yaml:"hypersync_url"`
	RPCURL       string   `yaml:"rpc_url"`
	NativeSymbol string   `yaml:"native_symbol"`
	Aliases      []string `yaml:"aliases"`
}

// LoadChainDefinitions parses the YAML file containing chain overrides.
func LoadChainDefinitions(path string) (ChainDefinitions, error) {
	if strings.TrimSpace(path) == "" {
		return ChainDefinitions{Chains: map[string]ChainDefinition{}}, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return ChainDefinitions{}, fmt.Errorf("读取链配置失败: %w", err)
	}

	var defs ChainDefinitions
	if err := yaml.Unmarshal(content, &defs); err != nil {
		return ChainDefinitions{}, fmt.Errorf("解析链配置失败: %w", err)
	}
	if defs.Chains == nil {
		defs.Chains = map[string]ChainDefinition{}
	}
	return defs, nil
}

// Apply 将覆盖项合并到内置链表上，返回新的切片。
// 链集合是闭集，未知名称返回错误。
func (d ChainDefinitions) Apply(chains []Chain) ([]Chain, error) {
	out := make([]Chain, len(chains))
	copy(out, chains)
	index := make(map[ChainID]int, len(out))
	for i, c := range out {
		index[c.ID] = i
	}
	for name, def := range d.Chains {
		i, ok := index[ChainID(strings.ToLower(strings.TrimSpace(name)))]
		if !ok {
			return nil, fmt.Errorf("链配置包含不支持的链 %s", name)
		}
		c := &out[i]
		if def.DisplayName != "" {
			c.DisplayName = def.DisplayName
		}
		if def.ExplorerURL != "" {
			c.ExplorerURL = strings.TrimRight(def.ExplorerURL, "/")
		}
		if def.HyperSyncURL != "" {
			c.HyperSyncURL = strings.TrimRight(def.HyperSyncURL, "/")
		}
		if def.RPCURL != "" {
			c.RPCURL = def.RPCURL
		}
		if def.NativeSymbol != "" {
			c.NativeSymbol = def.NativeSymbol
		}
		if len(def.Aliases) > 0 {
			c.Aliases = append([]string(nil), def.Aliases...)
		}
	}
	return out, nil
}
