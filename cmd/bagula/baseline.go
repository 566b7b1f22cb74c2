package main

import (
	"fmt"

	"github.com/bagula/platform/internal/baseline"
	"github.com/bagula/platform/internal/db"
	"github.com/bagula/platform/internal/models"
	"github.com/spf13/cobra"
)

func newBaselineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "baseline",
		Short: "Manage agent baselines",
	}

	cmd.AddCommand(newBaselineSaveCmd())
	cmd.AddCommand(newBaselineShowCmd())
	cmd.AddCommand(newBaselineHistoryCmd())
	return cmd
}

func newBaselineSaveCmd() *cobra.Command {
	var (
		configPath string
		tags       []string
	)

	cmd := &cobra.Command{
		Use:   "save <agent> <session-id>",
		Short: "Save a session as the agent's active baseline",
		Long:  "Captures the session's metric snapshot as the new active baseline. The previous baseline is deactivated but kept in history.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			gormDB, err := db.Connect(cfg.Database)
			if err != nil {
				return err
			}
			b, err := baseline.Save(gormDB, args[0], args[1], tags)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved baseline %s for agent %q (session %s)\n", b.ID, b.AgentName, b.SessionID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Bagula config file")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "tag to attach to the baseline (repeatable)")
	return cmd
}

func newBaselineShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show <agent>",
		Short: "Show the agent's active baseline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			gormDB, err := db.Connect(cfg.Database)
			if err != nil {
				return err
			}
			b, err := baseline.GetActive(gormDB, args[0])
			if err != nil {
				return err
			}
			if b == nil {
				return fmt.Errorf("no active baseline for agent %q", args[0])
			}
			printBaseline(cmd, b)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Bagula config file")
	return cmd
}

func newBaselineHistoryCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "history <agent>",
		Short: "List all baselines for an agent, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			gormDB, err := db.Connect(cfg.Database)
			if err != nil {
				return err
			}
			history, err := baseline.History(gormDB, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(history) == 0 {
				fmt.Fprintf(out, "No baselines for agent %q\n", args[0])
				return nil
			}
			for _, b := range history {
				marker := " "
				if b.Active {
					marker = "*"
				}
				fmt.Fprintf(out, "%s %s  session %s  %s  cost %s  %s tokens\n",
					marker, b.ID, b.SessionID, b.CreatedAt.Format("2006-01-02 15:04"),
					formatUSD(b.TotalCostUSD), formatTokens(b.TotalTokens))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Bagula config file")
	return cmd
}

func printBaseline(cmd *cobra.Command, b *models.Baseline) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Baseline %s (agent %q)\n", b.ID, b.AgentName)
	fmt.Fprintf(out, "  Session:     %s\n", b.SessionID)
	fmt.Fprintf(out, "  Created:     %s\n", b.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "  Turns:       %d\n", b.TurnCount)
	fmt.Fprintf(out, "  Cost:        %s\n", formatUSD(b.TotalCostUSD))
	fmt.Fprintf(out, "  Tokens:      %s\n", formatTokens(b.TotalTokens))
	fmt.Fprintf(out, "  Avg latency: %.0fms\n", b.AvgLatencyMS)
	if b.ToolNames != "" {
		fmt.Fprintf(out, "  Tools:       %s\n", b.ToolNames)
	}
	if b.Tags != "" && b.Tags != "null" {
		fmt.Fprintf(out, "  Tags:        %s\n", b.Tags)
	}
}
