package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"EnvioScout/internal/api"
	"EnvioScout/internal/observability/metrics"
	"EnvioScout/internal/task"
	"EnvioScout/pkg/logger"
)

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	app, err := build(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	jobs, err := buildJobs(ctx, cfg, app.agent)
	if err != nil {
		return err
	}
	defer jobs.service.Close()

	opts := []api.Option{api.WithJobs(jobs.service)}
	standaloneMetrics := cfg.Metrics.Enabled && cfg.Metrics.Address != ""
	if cfg.Metrics.Enabled && !standaloneMetrics {
		opts = append(opts, api.WithMetrics(cfg.Metrics.Path))
	}
	server := api.NewServer(cfg.Server, app.agent, app.dashboard, opts...)

	log := logger.Named("envioscoutd")
	log.Info("EnvioScout 启动",
		slog.String("address", cfg.Server.Address),
		slog.String("llm_provider", cfg.LLM.Provider),
		slog.String("gas_source", cfg.Gas.Source),
		slog.String("dashboard_source", cfg.Dashboard.Source),
		slog.String("queue_driver", cfg.TaskQueue.Driver),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ignoreCanceled(jobs.processor.Start(gctx))
	})
	g.Go(func() error {
		return ignoreCanceled(server.Start(gctx))
	})
	if standaloneMetrics {
		g.Go(func() error {
			return ignoreCanceled(metrics.StartServer(gctx, cfg.Metrics.Address))
		})
	}
	return g.Wait()
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	app, err := build(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	result, err := app.agent.Chat(cmd.Context(), strings.Join(args, " "))
	if result != nil {
		fmt.Fprintln(cmd.OutOrStdout(), result.Response)
	}
	return err
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	app, err := build(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	snapshot, err := app.dashboard.Stats(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	out, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

type jobRuntime struct {
	service   *task.Service
	processor *task.Processor
}

func ignoreCanceled(err error) error {
	if err == nil || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
