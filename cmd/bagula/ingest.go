package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/bagula/platform/internal/db"
	"github.com/bagula/platform/internal/ingest"
	"github.com/bagula/platform/internal/metrics"
	"github.com/spf13/cobra"
)

func newIngestCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "ingest <batch.json>",
		Short: "Ingest a session batch from a JSON file",
		Long:  "Validates and stores a batch of session traces, then queues analysis jobs for every stored session.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd, configPath, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Bagula config file")
	return cmd
}

func runIngest(cmd *cobra.Command, configPath, batchPath string) error {
	out := cmd.OutOrStdout()

	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(batchPath)
	if err != nil {
		return fmt.Errorf("read batch: %w", err)
	}
	var batch ingest.Batch
	if err := json.Unmarshal(data, &batch); err != nil {
		return fmt.Errorf("parse batch: %w", err)
	}

	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return err
	}
	prices, err := metrics.LoadPriceTable(gormDB)
	if err != nil {
		return fmt.Errorf("load price table: %w", err)
	}

	stored, err := ingest.StoreBatch(gormDB, prices, &batch)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Received %d sessions, stored %d\n", len(batch.Sessions), stored)
	if stored < len(batch.Sessions) {
		fmt.Fprintf(out, "%d sessions were already stored and skipped\n", len(batch.Sessions)-stored)
	}
	return nil
}
