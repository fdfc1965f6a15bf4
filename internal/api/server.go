package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"EnvioScout/internal/agent"
	"EnvioScout/internal/config"
	"EnvioScout/internal/dashboard"
	"EnvioScout/internal/observability/metrics"
	"EnvioScout/internal/task"
	"EnvioScout/pkg/logger"
)

const shutdownTimeout = 5 * time.Second

// ChatService 是对话接口依赖的编排能力，由 agent.Agent 实现。
type ChatService interface {
	Chat(ctx context.Context, message string) (*agent.ChatResult, error)
	History(limit int) []agent.Turn
	ClearHistory()
}

// StatsService 提供仪表盘快照，由 dashboard.Service 实现。
type StatsService interface {
	Stats(ctx context.Context, chain string) (*dashboard.Snapshot, error)
}

// JobService 提供异步对话任务，由 task.Service 实现。
type JobService interface {
	Submit(ctx context.Context, req task.SubmitRequest) (*task.Job, error)
	Get(ctx context.Context, id string) (*task.Job, error)
}

// Server 负责暴露 REST 接口。
type Server struct {
	addr           string
	allowedOrigins []string
	metricsPath    string
	chat           ChatService
	stats          StatsService
	jobs           JobService
	log            *slog.Logger
	now            func() time.Time
}

// Option 定义可选配置。
type Option func(*Server)

// WithJobs 启用异步任务接口。
func WithJobs(jobs JobService) Option {
	return func(s *Server) {
		s.jobs = jobs
	}
}

// WithMetrics 在指定路径暴露 Prometheus 指标，路径为空时不暴露。
func WithMetrics(path string) Option {
	return func(s *Server) {
		s.metricsPath = path
	}
}

// WithClock 替换时间来源，便于测试。
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// NewServer 构造 API 服务实例。
func NewServer(cfg config.ServerConfig, chat ChatService, stats StatsService, opts ...Option) *Server {
	s := &Server{
		addr:           cfg.Address,
		allowedOrigins: cfg.AllowedOrigins,
		chat:           chat,
		stats:          stats,
		log:            logger.Named("api"),
		now:            time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Handler 构建 gin 路由。
func (s *Server) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestID(), observe(s.log), cors.New(s.corsConfig()))

	router.GET("/health", s.health)

	chat := router.Group("/api/chat")
	{
		chat.POST("/message", s.postMessage)
		chat.GET("/history", s.getHistory)
		chat.POST("/clear", s.clearHistory)
		chat.POST("/jobs", s.submitJob)
		chat.GET("/jobs/:id", s.getJob)
	}
	router.GET("/api/dashboard/stats/:chain", s.dashboardStats)

	if s.metricsPath != "" {
		router.GET(s.metricsPath, gin.WrapH(metrics.Handler()))
	}
	return router
}

func (s *Server) corsConfig() cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", headerRequestID},
		ExposeHeaders:    []string{headerRequestID},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(s.allowedOrigins) == 0 || slices.Contains(s.allowedOrigins, "*") {
		cfg.AllowCredentials = false
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = s.allowedOrigins
	return cfg
}

// Start 启动 HTTP 服务，直到上下文取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	s.log.Info("HTTP 服务已启动", slog.String("address", s.addr))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.log.Warn("HTTP 服务关闭超时", slog.Any("error", err))
		}
		return ctx.Err()
	case err, ok := <-errCh:
		if !ok {
			return nil
		}
		return err
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": s.timestamp()})
}

func (s *Server) timestamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}
