package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/bagula/platform/internal/config"
	"github.com/bagula/platform/internal/db"
	"github.com/bagula/platform/internal/metrics"
	"github.com/bagula/platform/internal/notify"
	"github.com/bagula/platform/internal/scheduler"
	"github.com/bagula/platform/internal/server"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

// digestSchedule posts the opportunity digest every morning at 09:00.
const digestSchedule = "0 9 * * *"

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Bagula API server",
		Long:  "Serves the ingestion and query API, and runs periodic maintenance: the stale-job reaper, the daily opportunity digest, and config hot reload.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Bagula config file")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string) error {
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
	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	if err := db.SeedPrices(gormDB); err != nil {
		return err
	}

	prices, err := metrics.LoadPriceTable(gormDB)
	if err != nil {
		return fmt.Errorf("load price table: %w", err)
	}

	fanout, err := buildFanout(cfg)
	if err != nil {
		return err
	}
	defer fanout.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := cron.New()
	c.AddFunc("@every 10m", func() {
		snap := provider.Snapshot()
		reaped, err := scheduler.ReapStale(gormDB, snap.Workers.ReapAfter.Std(), snap.Workers.MaxAttempts)
		if err != nil {
			log.Printf("serve: reap stale jobs: %v", err)
			return
		}
		if reaped > 0 {
			log.Printf("serve: reaped %d stale jobs", reaped)
		}
	})
	c.AddFunc(digestSchedule, func() {
		ev, ok, err := notify.DailyDigest(gormDB, time.Now().Add(-24*time.Hour))
		if err != nil {
			log.Printf("serve: build daily digest: %v", err)
			return
		}
		if !ok {
			return
		}
		dctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		fanout.Send(dctx, ev)
	})
	c.AddFunc("@every 1m", provider.Reload)
	c.Start()
	defer c.Stop()

	return server.Start(ctx, server.Opts{
		DB:     gormDB,
		Config: provider,
		Prices: prices,
		Out:    out,
	})
}
