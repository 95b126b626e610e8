package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/sqlforge/internal/cli/config"
	"github.com/leapstack-labs/sqlforge/internal/state"
)

// NewRunsCommand creates the runs command.
func NewRunsCommand() *cobra.Command {
	var limit int
	var showStages bool

	cmd := &cobra.Command{
		Use:   "runs [run-id]",
		Short: "Show pipeline run history",
		Long: `List recorded pipeline runs from the state database, newest first.
With a run ID argument, show that run's stage breakdown.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := config.GetLogger(cmd.Context())

			cfg, err := config.LoadConfig(configFileFromContext(cmd.Context()), cmd.Flags())
			if err != nil {
				return err
			}

			store := state.NewSQLiteStore(logger)
			if err := store.Open(cfg.StatePath); err != nil {
				return fmt.Errorf("failed to open state database %s: %w", cfg.StatePath, err)
			}
			defer store.Close()
			if err := store.Migrate(); err != nil {
				return err
			}

			if len(args) == 1 {
				return printRun(cmd, store, args[0], showStages)
			}
			return printRuns(cmd, store, limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to list")
	cmd.Flags().BoolVar(&showStages, "stages", true, "Show the stage breakdown for a single run")
	cmd.Flags().String("state-path", "", "Path to the run history database")

	return cmd
}

func printRuns(cmd *cobra.Command, store *state.SQLiteStore, limit int) error {
	runs, err := store.ListRuns(limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded")
		return nil
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%-36s  %-20s  %-10s  %-9s  %s\n",
		"RUN", "DATABASE", "VERSION", "STATUS", "STARTED")
	for _, r := range runs {
		fmt.Fprintf(cmd.OutOrStdout(), "%-36s  %-20s  %-10s  %-9s  %s\n",
			r.ID, r.DatabaseName, r.Version, r.Status,
			r.StartedAt.Format(time.RFC3339))
	}
	return nil
}

func printRun(cmd *cobra.Command, store *state.SQLiteStore, id string, showStages bool) error {
	run, err := store.GetRun(id)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Run:      %s\n", run.ID)
	fmt.Fprintf(cmd.OutOrStdout(), "Database: %s\n", run.DatabaseName)
	fmt.Fprintf(cmd.OutOrStdout(), "Version:  %s\n", run.Version)
	fmt.Fprintf(cmd.OutOrStdout(), "Status:   %s\n", run.Status)
	fmt.Fprintf(cmd.OutOrStdout(), "Started:  %s\n", run.StartedAt.Format(time.RFC3339))
	if run.CompletedAt != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "Finished: %s\n", run.CompletedAt.Format(time.RFC3339))
	}
	if run.Error != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Error:    %s\n", run.Error)
	}

	if !showStages {
		return nil
	}

	stages, err := store.GetStagesForRun(id)
	if err != nil {
		return err
	}
	if len(stages) == 0 {
		return nil
	}

	fmt.Fprintln(cmd.OutOrStdout())
	for _, s := range stages {
		duration := ""
		if s.CompletedAt != nil {
			duration = s.CompletedAt.Sub(s.StartedAt).Round(time.Millisecond).String()
		}
		fmt.Fprintf(cmd.OutOrStdout(), "  %-20s  %-8s  %s\n", s.Stage, s.Status, duration)
		if s.Error != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "    %s\n", s.Error)
		}
	}
	return nil
}
