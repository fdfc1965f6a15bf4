package main

import (
	"context"
	"fmt"
	"time"

	"EnvioScout/internal/agent"
	"EnvioScout/internal/config"
	"EnvioScout/internal/dashboard"
	"EnvioScout/internal/discovery"
	xerrors "EnvioScout/internal/errors"
	"EnvioScout/internal/gas"
	"EnvioScout/internal/indexer/hypersync"
	"EnvioScout/internal/llm"
	"EnvioScout/internal/llm/gemini"
	"EnvioScout/internal/llm/openai"
	storeredis "EnvioScout/internal/storage/redis"
	"EnvioScout/internal/task"
	"EnvioScout/internal/web3"
	"EnvioScout/internal/web3/blockscout"
	"EnvioScout/internal/web3/ethereum"
	"EnvioScout/internal/web3/provider"
	"EnvioScout/pkg/logger"
)

// application 持有一次进程运行所需的全部组件。
type application struct {
	agent     *agent.Agent
	dashboard *dashboard.Service
	closers   []func() error
}

func (a *application) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.L().Warn("释放资源失败", "error", err)
		}
	}
}

func build(ctx context.Context, cfg *config.Config) (*application, error) {
	app := &application{}

	chains, err := provider.FromDefinitions(cfg.Chains.Definitions, cfg.Chains.DefaultChain)
	if err != nil {
		return nil, err
	}
	gateway := blockscout.NewClient(chains, blockscout.WithTimeout(cfg.Gateway.Timeout()))
	indexer := hypersync.NewClient(chains, hypersync.Config{
		BearerToken: cfg.Indexer.BearerToken,
		Timeout:     cfg.Indexer.Timeout(),
	})

	generator, err := buildGenerator(cfg.LLM)
	if err != nil {
		return nil, err
	}

	gasSource, err := buildGasSource(cfg.Gas, cfg.Gateway.Timeout(), gateway, indexer, chains, app)
	if err != nil {
		return nil, err
	}

	agentOpts := []agent.Option{
		agent.WithDiscoverer(discovery.New(gateway, chains.IDs(), chains.Default().ID)),
		agent.WithMemoryDepth(cfg.Agent.MemoryDepth),
		agent.WithBlockCounts(cfg.Agent.DefaultBlockCount, cfg.Agent.MaxBlockCount),
		agent.WithGasSource(gasSource),
		agent.WithLLMTimeout(generationBudget(cfg.LLM)),
	}
	switch cfg.Agent.BlockSource {
	case "explorer", "":
	case "hypersync":
		agentOpts = append(agentOpts, agent.WithBlockSource(indexer))
	default:
		return nil, xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("未知的区块数据来源: %s", cfg.Agent.BlockSource))
	}
	app.agent = agent.New(gateway, chains, generator, agentOpts...)

	var blocks web3.BlockSource = indexer
	if cfg.Dashboard.Source == "explorer" {
		blocks = blockscout.BlockSource{Gateway: gateway}
	}
	cache, err := buildSnapshotCache(ctx, cfg.Dashboard, app)
	if err != nil {
		return nil, err
	}
	app.dashboard = dashboard.NewService(blocks, chains,
		dashboard.WithCache(cache),
		dashboard.WithTTL(cfg.Dashboard.CacheTTL()),
		dashboard.WithBlockLimit(cfg.Dashboard.BlockLimit),
	)
	return app, nil
}

// generationBudget 覆盖全部尝试的单次超时与其间的退避等待。
func generationBudget(cfg config.LLMConfig) time.Duration {
	budget := cfg.Timeout() * time.Duration(cfg.MaxRetries)
	wait := cfg.RetryBaseDelay()
	for i := 1; i < cfg.MaxRetries; i++ {
		budget += wait
		wait *= 2
	}
	return budget
}

func buildGenerator(cfg config.LLMConfig) (*llm.Generator, error) {
	var (
		client llm.Client
		model  config.ModelConfig
		err    error
	)
	switch cfg.Provider {
	case "gemini", "":
		model = cfg.Gemini
		client, err = gemini.NewClient(gemini.Config{
			APIKey:  model.APIKey,
			BaseURL: model.BaseURL,
			Model:   model.Model,
			Timeout: cfg.Timeout(),
		})
	case "openai":
		model = cfg.OpenAI
		client, err = openai.NewClient(openai.Config{
			APIKey:  model.APIKey,
			BaseURL: model.BaseURL,
			Model:   model.Model,
			Timeout: cfg.Timeout(),
		})
	default:
		return nil, xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("未知的大模型提供方: %s", cfg.Provider))
	}
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInitializationFailure, err, "初始化大模型客户端失败")
	}
	return llm.NewGenerator(client,
		llm.WithMaxRetries(cfg.MaxRetries),
		llm.WithBaseDelay(cfg.RetryBaseDelay()),
		llm.WithSampling(model.Temperature, model.MaxOutputTokens),
	), nil
}

func buildGasSource(cfg config.GasConfig, timeout time.Duration, gateway *blockscout.Client, indexer *hypersync.Client, chains *provider.Registry, app *application) (gas.Source, error) {
	switch cfg.Source {
	case "explorer", "":
		return gas.NewExplorerSource(gateway), nil
	case "blockstats":
		return gas.NewBlockStatsSource(indexer, 0), nil
	case "rpc":
		oracle := ethereum.NewOracle(chains, ethereum.WithTimeout(timeout))
		app.closers = append(app.closers, func() error {
			oracle.Close()
			return nil
		})
		return oracle, nil
	default:
		return nil, xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("未知的 Gas 报价来源: %s", cfg.Source))
	}
}

func buildSnapshotCache(ctx context.Context, cfg config.DashboardConfig, app *application) (dashboard.Cache, error) {
	switch cfg.Cache.Driver {
	case "memory", "":
		return dashboard.NewMemoryCache(cfg.CacheTTL()), nil
	case "redis":
		client, err := storeredis.Connect(ctx, cfg.Cache.Redis)
		if err != nil {
			return nil, xerrors.Wrap(xerrors.CodeInitializationFailure, err, "初始化仪表盘缓存失败")
		}
		app.closers = append(app.closers, client.Close)
		return storeredis.NewSnapshotCache(client, cfg.Cache.Redis.Prefix), nil
	default:
		return nil, xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("未知的缓存驱动: %s", cfg.Cache.Driver))
	}
}

func buildJobs(ctx context.Context, cfg *config.Config, executor task.Executor) (*jobRuntime, error) {
	var queue task.Queue
	switch cfg.TaskQueue.Driver {
	case "memory", "":
		queue = task.NewMemoryQueue(cfg.TaskQueue.Buffer)
	case "redis":
		q, err := task.NewRedisQueue(ctx, cfg.TaskQueue.Redis)
		if err != nil {
			return nil, err
		}
		queue = q
	case "rabbitmq":
		q, err := task.NewRabbitMQQueue(cfg.TaskQueue.RabbitMQ)
		if err != nil {
			return nil, err
		}
		queue = q
	default:
		return nil, xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("未知的队列驱动: %s", cfg.TaskQueue.Driver))
	}

	store := task.NewMemoryStore()
	return &jobRuntime{
		service: task.NewService(store, queue, cfg.TaskQueue.MaxRetries),
		processor: task.NewProcessor(executor, store, queue, queue,
			task.WithWorkerCount(cfg.TaskQueue.Workers),
			task.WithProcessorLogger(logger.Named("task")),
		),
	}, nil
}
