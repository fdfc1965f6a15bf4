package config

import (
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"EnvioScout/pkg/logger"
)

// EnvConfigPath 指定配置文件路径的环境变量。
const EnvConfigPath = "ENVIOSCOUT_CONFIG"

// DefaultPath 是未设置环境变量时使用的配置文件路径。
const DefaultPath = "configs/envioscout.json"

// Config 描述 EnvioScout 启动阶段需要加载的全部配置。
type Config struct {
	Server    ServerConfig    `json:"server"`
	Logging   logger.Config   `json:"logging"`
	Chains    ChainsConfig    `json:"chains"`
	Gateway   GatewayConfig   `json:"gateway"`
	Indexer   IndexerConfig   `json:"indexer"`
	LLM       LLMConfig       `json:"llm"`
	Agent     AgentConfig     `json:"agent"`
	Gas       GasConfig       `json:"gas"`
	Dashboard DashboardConfig `json:"dashboard"`
	TaskQueue TaskQueueConfig `json:"task_queue"`
	Metrics   MetricsConfig   `json:"metrics"`
}

// ServerConfig 控制 HTTP 服务的监听地址与跨域来源。
type ServerConfig struct {
	Address        string   `json:"address"`
	AllowedOrigins []string `json:"allowed_origins"`
}

// ChainsConfig 描述链表覆盖文件与默认链。
type ChainsConfig struct {
	Definitions  string `json:"definitions"`
	DefaultChain string `json:"default_chain"`
}

// GatewayConfig 配置区块浏览器网关。
type GatewayConfig struct {
	TimeoutSeconds int `json:"timeout_seconds"`
}

// Timeout 返回单次请求超时。
func (g GatewayConfig) Timeout() time.Duration {
	return time.Duration(g.TimeoutSeconds) * time.Second
}

// IndexerConfig 配置 HyperSync 索引器访问。
type IndexerConfig struct {
	BearerTokenEnv string `json:"bearer_token_env"`
	BearerToken    string `json:"-"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// Timeout 返回单次请求超时。
func (i IndexerConfig) Timeout() time.Duration {
	return time.Duration(i.TimeoutSeconds) * time.Second
}

// LLMConfig 描述生成式模型的提供方与重试策略。
type LLMConfig struct {
	Provider         string      `json:"provider"`
	MaxRetries       int         `json:"max_retries"`
	RetryBaseDelayMS int         `json:"retry_base_delay_ms"`
	TimeoutSeconds   int         `json:"timeout_seconds"`
	Gemini           ModelConfig `json:"gemini"`
	OpenAI           ModelConfig `json:"openai"`
}

// RetryBaseDelay 返回首次重试前的等待时间。
func (l LLMConfig) RetryBaseDelay() time.Duration {
	return time.Duration(l.RetryBaseDelayMS) * time.Millisecond
}

// Timeout 返回单次生成调用的超时。
func (l LLMConfig) Timeout() time.Duration {
	return time.Duration(l.TimeoutSeconds) * time.Second
}

// ModelConfig 为某个模型提供方提供连接参数。
type ModelConfig struct {
	APIKeyEnv       string  `json:"api_key_env"`
	APIKey          string  `json:"-"`
	BaseURL         string  `json:"base_url"`
	Model           string  `json:"model"`
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"max_output_tokens"`
}

// AgentConfig 控制编排器的行为。
type AgentConfig struct {
	MemoryDepth       int `json:"memory_depth"`
	DefaultBlockCount int `json:"default_block_count"`
	MaxBlockCount     int `json:"max_block_count"`
	// BlockSource 为 explorer（默认）或 hypersync。
	BlockSource string `json:"block_source"`
}

// GasConfig 选择 Gas 报价的数据来源：explorer、blockstats 或 rpc。
type GasConfig struct {
	Source string `json:"source"`
}

// DashboardConfig 配置仪表盘统计。
type DashboardConfig struct {
	Source     string      `json:"source"`
	BlockLimit int         `json:"block_limit"`
	CacheTTLMS int         `json:"cache_ttl_ms"`
	Cache      CacheConfig `json:"cache"`
}

// CacheTTL 返回快照缓存的有效期。
func (d DashboardConfig) CacheTTL() time.Duration {
	return time.Duration(d.CacheTTLMS) * time.Millisecond
}

// CacheConfig 选择快照缓存的后端。
type CacheConfig struct {
	Driver string      `json:"driver"`
	Redis  RedisConfig `json:"redis"`
}

// RedisConfig 描述 Redis 连接。
type RedisConfig struct {
	Address  string `json:"address"`
	Username string `json:"username"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	Prefix   string `json:"prefix"`
}

// TaskQueueConfig 配置异步对话任务。
type TaskQueueConfig struct {
	Driver     string         `json:"driver"`
	Workers    int            `json:"workers"`
	MaxRetries int            `json:"max_retries"`
	Buffer     int            `json:"buffer"`
	Redis      RedisConfig    `json:"redis"`
	RabbitMQ   RabbitMQConfig `json:"rabbitmq"`
}

// RabbitMQConfig 描述 RabbitMQ 连接。
type RabbitMQConfig struct {
	URL      string `json:"url"`
	Queue    string `json:"queue"`
	Prefetch int    `json:"prefetch"`
}

// MetricsConfig 控制 Prometheus 指标暴露。Address 非空时指标改由独立端口提供。
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
	Address string `json:"address"`
}

// Load 解析指定路径的 JSON 配置文件，随后叠加 .env 与环境变量。
// 文件不存在时使用默认配置。
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, stdErrors.New("配置文件路径为空")
	}

	// .env 缺失是常态，忽略该错误。
	_ = godotenv.Load()

	cfg := &Config{Metrics: MetricsConfig{Enabled: true}}
	content, err := readFile(path)
	switch {
	case stdErrors.Is(err, fs.ErrNotExist):
		logger.L().Warn("配置文件不存在，使用默认配置", "path", path)
	case err != nil:
		return nil, err
	default:
		if err := json.Unmarshal(content, cfg); err != nil {
			return nil, fmt.Errorf("解析配置失败: %w", err)
		}
	}

	cfg.applyDefaults(filepath.Dir(path))
	cfg.applyEnv()
	return cfg, nil
}

// PathFromEnv 返回配置文件路径。
func PathFromEnv() string {
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return p
	}
	return DefaultPath
}

func readFile(path string) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		if stdErrors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		return nil, fmt.Errorf("打开配置文件失败: %w", err)
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}
	return content, nil
}

// applyDefaults 在用户未填写部分字段时设置默认值。
func (c *Config) applyDefaults(baseDir string) {
	if c.Server.Address == "" {
		c.Server.Address = ":3001"
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"http://localhost:5173"}
	}

	if c.Chains.DefaultChain == "" {
		c.Chains.DefaultChain = "eth"
	}
	if c.Chains.Definitions != "" && !filepath.IsAbs(c.Chains.Definitions) {
		c.Chains.Definitions = filepath.Join(baseDir, c.Chains.Definitions)
	}

	if c.Gateway.TimeoutSeconds <= 0 {
		c.Gateway.TimeoutSeconds = 30
	}
	if c.Indexer.TimeoutSeconds <= 0 {
		c.Indexer.TimeoutSeconds = 30
	}
	if c.Indexer.BearerTokenEnv == "" {
		c.Indexer.BearerTokenEnv = "HYPERSYNC_BEARER_TOKEN"
	}

	if c.LLM.Provider == "" {
		c.LLM.Provider = "gemini"
	}
	if c.LLM.MaxRetries <= 0 {
		c.LLM.MaxRetries = 3
	}
	if c.LLM.RetryBaseDelayMS <= 0 {
		c.LLM.RetryBaseDelayMS = 1000
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = 60
	}
	if c.LLM.Gemini.APIKeyEnv == "" {
		c.LLM.Gemini.APIKeyEnv = "GEMINI_API_KEY"
	}
	if c.LLM.Gemini.Model == "" {
		c.LLM.Gemini.Model = "gemini-2.0-flash-exp"
	}
	if c.LLM.OpenAI.APIKeyEnv == "" {
		c.LLM.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
	}
	if c.LLM.OpenAI.Model == "" {
		c.LLM.OpenAI.Model = "gpt-4o-mini"
	}
	for _, m := range []*ModelConfig{&c.LLM.Gemini, &c.LLM.OpenAI} {
		if m.Temperature == 0 {
			m.Temperature = 0.7
		}
		if m.MaxOutputTokens <= 0 {
			m.MaxOutputTokens = 2048
		}
	}

	if c.Agent.MemoryDepth <= 0 {
		c.Agent.MemoryDepth = 50
	}
	if c.Agent.MaxBlockCount <= 0 {
		c.Agent.MaxBlockCount = 10
	}
	if c.Agent.DefaultBlockCount <= 0 {
		c.Agent.DefaultBlockCount = 5
	}
	if c.Agent.DefaultBlockCount > c.Agent.MaxBlockCount {
		c.Agent.DefaultBlockCount = c.Agent.MaxBlockCount
	}

	if c.Gas.Source == "" {
		c.Gas.Source = "explorer"
	}

	if c.Dashboard.Source == "" {
		c.Dashboard.Source = "hypersync"
	}
	if c.Dashboard.BlockLimit <= 0 {
		c.Dashboard.BlockLimit = 5
	}
	if c.Dashboard.CacheTTLMS <= 0 {
		c.Dashboard.CacheTTLMS = 8000
	}
	if c.Dashboard.Cache.Driver == "" {
		c.Dashboard.Cache.Driver = "memory"
	}
	if c.Dashboard.Cache.Redis.Prefix == "" {
		c.Dashboard.Cache.Redis.Prefix = "envioscout:dashboard:"
	}

	if c.TaskQueue.Driver == "" {
		c.TaskQueue.Driver = "memory"
	}
	if c.TaskQueue.Workers <= 0 {
		c.TaskQueue.Workers = 4
	}
	if c.TaskQueue.MaxRetries <= 0 {
		c.TaskQueue.MaxRetries = 3
	}
	if c.TaskQueue.Buffer <= 0 {
		c.TaskQueue.Buffer = 128
	}
	if c.TaskQueue.Redis.Prefix == "" {
		c.TaskQueue.Redis.Prefix = "envioscout:chat:jobs"
	}
	if c.TaskQueue.RabbitMQ.Queue == "" {
		c.TaskQueue.RabbitMQ.Queue = "envioscout.chat.jobs"
	}
	if c.TaskQueue.RabbitMQ.Prefetch <= 0 {
		c.TaskQueue.RabbitMQ.Prefetch = c.TaskQueue.Workers
	}

	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// applyEnv 使用环境变量覆盖敏感信息和部署相关字段。
func (c *Config) applyEnv() {
	c.LLM.Gemini.APIKey = strings.TrimSpace(os.Getenv(c.LLM.Gemini.APIKeyEnv))
	c.LLM.OpenAI.APIKey = strings.TrimSpace(os.Getenv(c.LLM.OpenAI.APIKeyEnv))
	c.Indexer.BearerToken = strings.TrimSpace(os.Getenv(c.Indexer.BearerTokenEnv))

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		c.Server.Address = ":" + strings.TrimPrefix(port, ":")
	}
	if origins := strings.TrimSpace(os.Getenv("ALLOWED_ORIGINS")); origins != "" {
		parts := strings.Split(origins, ",")
		c.Server.AllowedOrigins = c.Server.AllowedOrigins[:0]
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				c.Server.AllowedOrigins = append(c.Server.AllowedOrigins, p)
			}
		}
	}
}
