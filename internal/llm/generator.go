package llm

import (
	"context"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	xerrors "EnvioScout/internal/errors"
	"EnvioScout/internal/observability/metrics"
	"EnvioScout/pkg/logger"
)

const (
	// DefaultMaxRetries 是包含首次调用在内的最大尝试次数。
	DefaultMaxRetries = 3
	// DefaultBaseDelay 是第一次重试前的等待，之后每次翻倍。
	DefaultBaseDelay = time.Second

	defaultTemperature     = 0.7
	defaultMaxOutputTokens = 2048
)

// Generator 在 Client 之上实现有界指数退避重试，调用之间不保留状态。
type Generator struct {
	client      Client
	maxRetries  int
	baseDelay   time.Duration
	temperature float64
	maxTokens   int
	timer       func() backoff.Timer
	log         *slog.Logger
}

// Option 定义生成器的可选配置。
type Option func(*Generator)

// WithMaxRetries 设置最大尝试次数。
func WithMaxRetries(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.maxRetries = n
		}
	}
}

// WithBaseDelay 设置首次重试前的等待。
func WithBaseDelay(d time.Duration) Option {
	return func(g *Generator) {
		if d > 0 {
			g.baseDelay = d
		}
	}
}

// WithSampling 设置温度与最大输出长度。
func WithSampling(temperature float64, maxOutputTokens int) Option {
	return func(g *Generator) {
		if temperature > 0 {
			g.temperature = temperature
		}
		if maxOutputTokens > 0 {
			g.maxTokens = maxOutputTokens
		}
	}
}

// WithTimer 替换退避计时器，主要用于测试。
func WithTimer(factory func() backoff.Timer) Option {
	return func(g *Generator) {
		g.timer = factory
	}
}

// NewGenerator 创建生成器。
func NewGenerator(client Client, opts ...Option) *Generator {
	g := &Generator{
		client:      client,
		maxRetries:  DefaultMaxRetries,
		baseDelay:   DefaultBaseDelay,
		temperature: defaultTemperature,
		maxTokens:   defaultMaxOutputTokens,
		log:         logger.Named("llm"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Provider 返回底层模型提供方名称。
func (g *Generator) Provider() string {
	return g.client.Name()
}

// Generate 使用默认采样参数生成文本。
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	return g.GenerateRequest(ctx, Request{Prompt: prompt, Temperature: g.temperature, MaxOutputTokens: g.maxTokens})
}

// GenerateWithRetries 与 Generate 相同，但本次调用使用指定的最大尝试次数。
func (g *Generator) GenerateWithRetries(ctx context.Context, prompt string, maxRetries int) (string, error) {
	if maxRetries <= 0 {
		return g.Generate(ctx, prompt)
	}
	clone := *g
	clone.maxRetries = maxRetries
	return clone.Generate(ctx, prompt)
}

// GenerateRequest 调用模型。仅 503 会触发重试，第 n 次重试前等待
// baseDelay * 2^(n-1)；其他错误立即返回。
func (g *Generator) GenerateRequest(ctx context.Context, req Request) (string, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return "", xerrors.New(xerrors.CodeInvalidArgument, "提示词不能为空")
	}
	provider := g.client.Name()

	attempt := 0
	var text string
	op := func() error {
		attempt++
		resp, err := g.client.Generate(ctx, req)
		if err != nil {
			if IsUnavailable(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		text = resp.Text
		return nil
	}
	notify := func(err error, wait time.Duration) {
		metrics.ObserveGeneration(provider, "retry")
		g.log.Warn("模型服务暂不可用，准备重试",
			slog.String("provider", provider),
			slog.Int("attempt", attempt),
			slog.Duration("wait", wait),
			slog.Any("error", err))
	}

	var timer backoff.Timer
	if g.timer != nil {
		timer = g.timer()
	}
	err := backoff.RetryNotifyWithTimer(op, g.policy(ctx), notify, timer)
	switch {
	case err == nil:
		metrics.ObserveGeneration(provider, "success")
		return text, nil
	case IsUnavailable(err):
		metrics.ObserveGeneration(provider, "exhausted")
		return "", xerrors.Wrap(xerrors.CodeRetriesExhausted, err, "模型服务重试次数已用尽",
			xerrors.WithMetadata("provider", provider),
			xerrors.WithMetadata("attempts", strconv.Itoa(attempt)))
	default:
		metrics.ObserveGeneration(provider, "failure")
		return "", xerrors.Wrap(xerrors.CodeGenerationFailure, err, "模型生成失败",
			xerrors.WithMetadata("provider", provider))
	}
}

func (g *Generator) policy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = g.baseDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = time.Duration(math.MaxInt64)
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(g.maxRetries-1)), ctx)
}
