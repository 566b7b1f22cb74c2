package main

import (
	"fmt"
	"time"

	"github.com/bagula/platform/internal/db"
	"github.com/bagula/platform/internal/opportunity"
	"github.com/spf13/cobra"
)

func newOpportunitiesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "opportunities",
		Aliases: []string{"ops"},
		Short:   "Inspect and resolve detected opportunities",
	}

	cmd.AddCommand(newOpportunitiesListCmd())
	cmd.AddCommand(newOpportunitiesResolveCmd())
	return cmd
}

func newOpportunitiesListCmd() *cobra.Command {
	var (
		configPath string
		opType     string
		severity   string
		hours      int
		unresolved bool
	)

	cmd := &cobra.Command{
		Use:   "list <agent>",
		Short: "List opportunities for an agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opportunity.Filters{Type: opType, Severity: severity}
			if hours > 0 {
				f.Since = time.Now().Add(-time.Duration(hours) * time.Hour)
			}
			if unresolved {
				resolved := false
				f.Resolved = &resolved
			}
			return runOpportunitiesList(cmd, configPath, args[0], f)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Bagula config file")
	cmd.Flags().StringVar(&opType, "type", "", "filter by type (cost, performance, quality, regression)")
	cmd.Flags().StringVar(&severity, "severity", "", "filter by severity (low, medium, high)")
	cmd.Flags().IntVar(&hours, "hours", 0, "only opportunities detected within the last N hours")
	cmd.Flags().BoolVar(&unresolved, "unresolved", false, "only unresolved opportunities")
	return cmd
}

func runOpportunitiesList(cmd *cobra.Command, configPath, agent string, f opportunity.Filters) error {
	out := cmd.OutOrStdout()

	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return err
	}

	ops, err := opportunity.ForAgent(gormDB, agent, f)
	if err != nil {
		return err
	}
	if len(ops) == 0 {
		fmt.Fprintf(out, "No opportunities for agent %q\n", agent)
		return nil
	}

	for _, op := range ops {
		status := " "
		if op.Resolved {
			status = "R"
		}
		fmt.Fprintf(out, "[%s] %-8s %-11s %s  %s\n", status, op.Severity, op.Type, op.ID, op.Title)
		if op.EstimatedSavingsUSD != nil {
			fmt.Fprintf(out, "      est. savings: %s\n", formatUSD(*op.EstimatedSavingsUSD))
		}
		if op.EstimatedLatencySavingMS != nil {
			fmt.Fprintf(out, "      est. latency saving: %dms\n", *op.EstimatedLatencySavingMS)
		}
	}

	s := opportunity.Summarize(ops)
	fmt.Fprintf(out, "\n%d opportunities (%d unresolved)", s.Total, s.Unresolved)
	if s.EstimatedSavingsUSD > 0 {
		fmt.Fprintf(out, ", est. savings %s", formatUSD(s.EstimatedSavingsUSD))
	}
	fmt.Fprintln(out)
	return nil
}

func newOpportunitiesResolveCmd() *cobra.Command {
	var (
		configPath string
		note       string
	)

	cmd := &cobra.Command{
		Use:   "resolve <opportunity-id>",
		Short: "Mark an opportunity as resolved",
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
			op, err := opportunity.Resolve(gormDB, args[0], note)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Resolved %s: %s\n", op.ID, op.Title)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Bagula config file")
	cmd.Flags().StringVar(&note, "note", "", "resolution note")
	return cmd
}
