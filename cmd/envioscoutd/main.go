package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"EnvioScout/internal/config"
	"EnvioScout/pkg/logger"
)

var configFile string

// main 是 EnvioScout 守护进程的入口。
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := &cobra.Command{
		Use:           "envioscoutd",
		Short:         "多链区块链数据对话助手",
		Long:          `通过区块浏览器与 HyperSync 获取链上数据，并由大模型生成自然语言回答`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "配置文件路径（默认读取 ENVIOSCOUT_CONFIG）")

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "启动 HTTP 服务与异步任务处理",
			Args:  cobra.NoArgs,
			RunE:  runServe,
		},
		&cobra.Command{
			Use:   "chat <message>",
			Short: "执行一次对话并输出回答",
			Args:  cobra.MinimumNArgs(1),
			RunE:  runChat,
		},
		&cobra.Command{
			Use:   "stats <chain>",
			Short: "输出某条链的仪表盘统计",
			Args:  cobra.ExactArgs(1),
			RunE:  runStats,
		},
	)

	err := rootCmd.ExecuteContext(ctx)
	_ = logger.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "envioscoutd 运行失败: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig 读取配置并初始化全局日志。
func loadConfig() (*config.Config, error) {
	path := configFile
	if path == "" {
		path = config.PathFromEnv()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := logger.Init(cfg.Logging); err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}
	return cfg, nil
}
