package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bagula/platform/internal/config"
	"github.com/bagula/platform/internal/db"
	"github.com/bagula/platform/internal/models"
	"github.com/bagula/platform/internal/notify"
	"github.com/bagula/platform/internal/regression"
	"github.com/bagula/platform/internal/scheduler"
	"github.com/spf13/cobra"
)

func newWorkerCmd() *cobra.Command {
	var (
		configPath string
		workerID   string
	)

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run the analysis worker pools",
		Long:  "Claims queued analysis jobs and runs the cost, performance, quality, and regression analyzers until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorker(cmd, configPath, workerID)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Bagula config file")
	cmd.Flags().StringVar(&workerID, "id", "", "worker ID prefix for job claims (default: hostname)")
	return cmd
}

func runWorker(cmd *cobra.Command, configPath, workerID string) error {
	out := cmd.OutOrStdout()

	cfg, loadedPath, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	provider := config.NewProvider(loadedPath, cfg)

	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return err
	}

	fanout, err := buildFanout(cfg)
	if err != nil {
		return err
	}
	defer fanout.Close()

	if workerID == "" {
		host, err := os.Hostname()
		if err != nil {
			host = "worker"
		}
		workerID = host
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	provider.StartReload(ctx, cfg.Workers.PollInterval.Std()*10)

	runner := &scheduler.Runner{
		DB:     gormDB,
		Config: provider,
		Regression: &regression.Detector{
			Judge:        &regression.CommandJudge{Command: cfg.Judge.Command},
			JudgeTimeout: cfg.Judge.Timeout.Std(),
			Thresholds:   cfg.Analysis.Regression,
			Baseline:     cfg.Analysis.Baseline,
		},
		Notify: func(ctx context.Context, op models.Opportunity) {
			fanout.Send(ctx, notify.FromOpportunity(op))
		},
		WorkerID: workerID,
	}

	fmt.Fprintf(out, "Workers started (id: %s, concurrency: %d+%d)\n",
		workerID, cfg.Workers.Concurrency, cfg.Workers.RegressionConcurrency)
	return runner.Run(ctx)
}
