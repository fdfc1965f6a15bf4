package agent

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"EnvioScout/internal/discovery"
	xerrors "EnvioScout/internal/errors"
	"EnvioScout/internal/gas"
	"EnvioScout/internal/intent"
	"EnvioScout/internal/observability/metrics"
	"EnvioScout/internal/prompt"
	"EnvioScout/internal/web3"
	"EnvioScout/pkg/logger"
)

// 返回给用户的固定提示语。
const (
	AddressGuidance = "Please include a wallet or contract address (0x followed by 40 hexadecimal characters) so I can look it up. " +
		"For example: 'show recent transactions for 0x...' or 'analyze 0x... on base'."
	ContractChainClarification = "Please specify which network to analyze the contract on (e.g., 'analyze contract on base network')"
)

// 各意图使用的工具名称。
var (
	toolsBlocks       = []string{"getBlocks"}
	toolsGas          = []string{"getGasFees"}
	toolsContract     = []string{"getSmartContract", "getToken"}
	toolsTransactions = []string{"getAddress", "getAddressTransactions"}
	toolsAnalysis     = []string{"getAddress", "getAddressTokens"}
)

// ChatResult 是一轮对话的结果，生成后不再修改。
type ChatResult struct {
	Response  string         `json:"response"`
	ToolsUsed []string       `json:"toolsUsed"`
	Timestamp string         `json:"timestamp"`
	Intent    intent.Intent  `json:"intent,omitempty"`
	Chains    []web3.ChainID `json:"chains,omitempty"`
	Logs      []string       `json:"logs,omitempty"`
}

// Generator 把渲染好的提示词交给大模型。
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// MessageParser 从消息中解析意图与实体，*intent.Parser 是默认实现。
type MessageParser interface {
	Parse(message string) intent.Parsed
}

// Discoverer 找出地址活跃的链。
type Discoverer interface {
	Discover(ctx context.Context, address string, hint web3.ChainID) []discovery.ActiveChain
}

// ChainResolver 将链标识解析为链定义。
type ChainResolver interface {
	Resolve(name string) web3.Chain
	Default() web3.Chain
	IDs() []web3.ChainID
	Chains() []web3.Chain
}

// Agent 是对话编排器，是系统的业务核心。
type Agent struct {
	gateway    web3.Gateway
	chains     ChainResolver
	generator  Generator
	parser     MessageParser
	discoverer Discoverer
	gasSource  gas.Source
	blocks     web3.BlockSource
	history    *History
	llmTimeout time.Duration
	blockDef   int
	blockMax   int
	now        func() time.Time
	log        *slog.Logger
}

// Option 定义可选的 Agent 配置。
type Option func(*Agent)

// defaultMemoryDepth 是保留的历史对话轮数的默认值。
const defaultMemoryDepth = 50

// WithMemoryDepth 设置保留的历史对话轮数。
func WithMemoryDepth(depth int) Option {
	return func(a *Agent) {
		if depth > 0 {
			a.history = NewHistory(depth)
		}
	}
}

// WithGasSource 替换 Gas 报价来源，默认使用浏览器统计接口。
func WithGasSource(src gas.Source) Option {
	return func(a *Agent) {
		if src != nil {
			a.gasSource = src
		}
	}
}

// WithBlockSource 让区块查询走独立的数据源（例如 HyperSync），默认使用网关。
func WithBlockSource(src web3.BlockSource) Option {
	return func(a *Agent) {
		a.blocks = src
	}
}

// WithDiscoverer 替换链发现组件。
func WithDiscoverer(d Discoverer) Option {
	return func(a *Agent) {
		if d != nil {
			a.discoverer = d
		}
	}
}

// WithParser 替换意图解析器。
func WithParser(p MessageParser) Option {
	return func(a *Agent) {
		if p != nil {
			a.parser = p
		}
	}
}

// WithBlockCounts 设置区块数量的缺省值与上限。
func WithBlockCounts(def, limit int) Option {
	return func(a *Agent) {
		a.blockDef, a.blockMax = def, limit
	}
}

// WithLLMTimeout 设置调用大模型的超时时间（包含重试等待）。
func WithLLMTimeout(timeout time.Duration) Option {
	return func(a *Agent) {
		if timeout <= 0 {
			a.llmTimeout = 0
			return
		}
		a.llmTimeout = timeout
	}
}

// WithClock 替换时间来源，主要用于测试。
func WithClock(now func() time.Time) Option {
	return func(a *Agent) {
		if now != nil {
			a.now = now
		}
	}
}

// New 创建一个 Agent。
func New(gateway web3.Gateway, chains ChainResolver, generator Generator, opts ...Option) *Agent {
	ag := &Agent{
		gateway:   gateway,
		chains:    chains,
		generator: generator,
		history:   NewHistory(defaultMemoryDepth),
		blockDef:  intent.DefaultBlockCount,
		blockMax:  intent.MaxBlockCount,
		now:       time.Now,
		log:       logger.Named("agent"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(ag)
		}
	}
	if ag.parser == nil {
		table := web3.DefaultChains()
		if chains != nil {
			table = chains.Chains()
		}
		ag.parser = intent.NewParser(table)
	}
	if ag.discoverer == nil && gateway != nil && chains != nil {
		ag.discoverer = discovery.New(gateway, chains.IDs(), chains.Default().ID)
	}
	if ag.gasSource == nil && gateway != nil {
		ag.gasSource = gas.NewExplorerSource(gateway)
	}
	return ag
}

// turn 收集一轮对话中的中间状态。
type turn struct {
	parsed intent.Parsed
	tools  []string
	chains []web3.ChainID
	logs   []string
}

func (t *turn) logf(format string, args ...any) {
	t.logs = append(t.logs, fmt.Sprintf(format, args...))
}

// Chat 处理一条用户消息。
//
// 数据缺失（没有地址、合约未指定链）以引导语作为正常回复返回；
// 无法恢复的错误会转换为安全的提示语放入结果，同时返回带错误码的 error，
// 原始错误只写入日志。
func (a *Agent) Chat(ctx context.Context, message string) (*ChatResult, error) {
	if strings.TrimSpace(message) == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "消息不能为空")
	}
	if a.generator == nil || a.gateway == nil || a.chains == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "编排器依赖未配置完整")
	}

	t := &turn{parsed: a.parser.Parse(message)}
	metrics.ObserveIntent(string(t.parsed.Intent))
	a.log.Info("收到对话消息",
		slog.String("intent", string(t.parsed.Intent)),
		slog.String("chain", string(t.parsed.Chain)),
		slog.Bool("has_address", t.parsed.HasAddress))

	response, err := a.dispatch(ctx, message, t)
	result := &ChatResult{
		Response:  response,
		ToolsUsed: t.tools,
		Timestamp: a.now().UTC().Format(time.RFC3339Nano),
		Intent:    t.parsed.Intent,
		Chains:    t.chains,
		Logs:      t.logs,
	}
	if result.ToolsUsed == nil {
		result.ToolsUsed = []string{}
	}
	if err != nil {
		a.log.Error("对话处理失败",
			slog.String("intent", string(t.parsed.Intent)),
			slog.Any("error", err))
		result.Response = xerrors.PublicMessage(err)
		return result, err
	}

	a.history.Add(Turn{
		Message:   message,
		Response:  result.Response,
		Intent:    result.Intent,
		ToolsUsed: result.ToolsUsed,
		Timestamp: result.Timestamp,
	})
	return result, nil
}

func (a *Agent) dispatch(ctx context.Context, message string, t *turn) (string, error) {
	p := t.parsed
	switch p.Intent {
	case intent.Blocks:
		return a.handleBlocks(ctx, message, t)
	case intent.GasFees:
		return a.handleGas(ctx, message, t)
	case intent.General:
		return a.generate(ctx, prompt.General(message))
	}

	if !p.HasAddress {
		t.logf("No address found in the message")
		return AddressGuidance, nil
	}
	switch p.Intent {
	case intent.ContractAnalysis:
		if !p.HasChain {
			return ContractChainClarification, nil
		}
		return a.handleContract(ctx, message, t)
	case intent.Transactions:
		return a.handleTransactions(ctx, message, t)
	default:
		return a.handleAnalysis(ctx, message, t)
	}
}

func (a *Agent) targetChain(p intent.Parsed) web3.Chain {
	if p.HasChain {
		return a.chains.Resolve(string(p.Chain))
	}
	return a.chains.Default()
}

func (a *Agent) handleBlocks(ctx context.Context, message string, t *turn) (string, error) {
	t.tools = toolsBlocks
	chain := a.targetChain(t.parsed)
	t.chains = []web3.ChainID{chain.ID}
	count := intent.ExtractBlockCountBounded(message, a.blockDef, a.blockMax)
	t.logf("Fetching %d recent blocks on %s", count, chain.ID)

	blocks, err := a.recentBlocks(ctx, chain.ID, count)
	if err != nil || len(blocks) == 0 {
		if err != nil {
			a.log.Warn("获取最近区块失败", slog.String("chain", string(chain.ID)), slog.Any("error", err))
		}
		return fmt.Sprintf("Sorry, I couldn't fetch recent blocks from %s. The API might be temporarily unavailable.", chain.Label()), nil
	}
	return a.generate(ctx, prompt.Blocks(message, chain, blocks))
}

func (a *Agent) recentBlocks(ctx context.Context, chain web3.ChainID, count int) ([]web3.BlockRecord, error) {
	if a.blocks != nil {
		batch, err := a.blocks.RecentBlocks(ctx, chain, count)
		if err != nil {
			return nil, err
		}
		return batch.Blocks, nil
	}
	res := a.gateway.RecentBlocks(ctx, chain, count)
	if !res.Success {
		return nil, xerrors.Wrap(xerrors.CodeUpstreamFailure, res.Err(), "获取最近区块失败")
	}
	return res.Data.Blocks, nil
}

func (a *Agent) handleGas(ctx context.Context, message string, t *turn) (string, error) {
	t.tools = toolsGas
	chain := a.targetChain(t.parsed)
	t.chains = []web3.ChainID{chain.ID}
	t.logf("Fetching gas prices on %s from %s", chain.ID, a.gasSource.Name())

	quote, err := a.gasSource.Quote(ctx, chain.ID)
	if err != nil {
		a.log.Warn("获取 Gas 报价失败",
			slog.String("chain", string(chain.ID)),
			slog.String("source", a.gasSource.Name()),
			slog.Any("error", err))
		return fmt.Sprintf("Sorry, I couldn't fetch current gas fee data for %s. The network might be temporarily unavailable.", chain.Label()), nil
	}
	return a.generate(ctx, prompt.GasFees(message, chain, quote))
}

func (a *Agent) handleContract(ctx context.Context, message string, t *turn) (string, error) {
	t.tools = toolsContract
	chain := a.chains.Resolve(string(t.parsed.Chain))
	t.chains = []web3.ChainID{chain.ID}
	address := t.parsed.Address
	t.logf("Analyzing contract %s on %s", address, chain.ID)

	var (
		contract web3.Result[web3.SmartContract]
		token    web3.Result[web3.TokenInfo]
		g        errgroup.Group
	)
	g.Go(func() error {
		contract = a.gateway.SmartContract(ctx, address, chain.ID)
		return nil
	})
	g.Go(func() error {
		token = a.gateway.Token(ctx, address, chain.ID)
		return nil
	})
	_ = g.Wait()

	return a.generate(ctx, prompt.ContractAnalysis(message, address, chain, contract, token))
}

func (a *Agent) handleTransactions(ctx context.Context, message string, t *turn) (string, error) {
	t.tools = toolsTransactions
	address := t.parsed.Address
	active := a.discover(ctx, t)
	t.logf("Fetching transactions for %d chain(s): %s", len(active), joinChains(t.chains))

	sections := make([]prompt.TransactionSection, len(active))
	var g errgroup.Group
	for i, ac := range active {
		g.Go(func() error {
			res := a.gateway.AddressTransactions(ctx, address, ac.Chain)
			sections[i] = prompt.TransactionSection{Chain: a.chains.Resolve(string(ac.Chain)), Result: res}
			return nil
		})
	}
	_ = g.Wait()

	for _, s := range sections {
		if s.Result.Success {
			t.logf("Fetched %d transactions for %s", len(s.Result.Data.Items), s.Chain.ID)
		} else {
			t.logf("Failed to fetch transactions for %s: %s (status %d)", s.Chain.ID, s.Result.Error, s.Result.Status)
		}
	}
	return a.generate(ctx, prompt.Transactions(message, address, sections))
}

func (a *Agent) handleAnalysis(ctx context.Context, message string, t *turn) (string, error) {
	t.tools = toolsAnalysis
	address := t.parsed.Address
	active := a.discover(ctx, t)
	t.logf("Analyzing wallet on %d chain(s): %s", len(active), joinChains(t.chains))

	sections := make([]prompt.WalletSection, len(active))
	var g errgroup.Group
	for i, ac := range active {
		g.Go(func() error {
			chain := a.chains.Resolve(string(ac.Chain))
			info := web3.OK(chain.ID, ac.Info)
			if ac.Info == nil {
				info = a.gateway.Address(ctx, address, chain.ID)
			}
			sections[i] = prompt.WalletSection{
				Chain:   chain,
				Address: info,
				Tokens:  a.gateway.AddressTokens(ctx, address, chain.ID),
			}
			return nil
		})
	}
	_ = g.Wait()

	return a.generate(ctx, prompt.Analysis(message, address, sections))
}

// discover 运行一次链发现，指定链时只探测该链。
func (a *Agent) discover(ctx context.Context, t *turn) []discovery.ActiveChain {
	var hint web3.ChainID
	if t.parsed.HasChain {
		hint = a.chains.Resolve(string(t.parsed.Chain)).ID
	}
	active := a.discoverer.Discover(ctx, t.parsed.Address, hint)
	for _, ac := range active {
		t.chains = append(t.chains, ac.Chain)
	}
	return active
}

func (a *Agent) generate(ctx context.Context, text string) (string, error) {
	llmCtx := ctx
	if a.llmTimeout > 0 {
		var cancel context.CancelFunc
		llmCtx, cancel = context.WithTimeout(ctx, a.llmTimeout)
		defer cancel()
	}
	out, err := a.generator.Generate(llmCtx, text)
	if err != nil {
		if stdErrors.Is(err, context.DeadlineExceeded) {
			return "", xerrors.Wrap(xerrors.CodeTimeout, err, "大模型推理超时")
		}
		if _, ok := xerrors.From(err); ok {
			return "", err
		}
		return "", xerrors.Wrap(xerrors.CodeGenerationFailure, err, "大模型推理失败")
	}
	return out, nil
}

// History 返回最近 limit 轮对话，按时间先后排列；limit <= 0 返回全部。
func (a *Agent) History(limit int) []Turn {
	return a.history.List(limit)
}

// ClearHistory 清空对话历史。
func (a *Agent) ClearHistory() {
	a.history.Clear()
}

func joinChains(ids []web3.ChainID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = string(id)
	}
	return strings.Join(parts, ", ")
}
