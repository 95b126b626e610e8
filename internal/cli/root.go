// Package cli provides the command-line interface for sqlforge.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/sqlforge/internal/cli/commands"
	"github.com/leapstack-labs/sqlforge/internal/cli/config"
)

var (
	cfgFile string
	verbose bool
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "sqlforge",
		Short: "sqlforge - Database artifact build pipeline",
		Long: `sqlforge restores a SQL Server backup into a throwaway engine instance,
extracts its schema into a SQL project, compiles and packages versioned
artifacts, generates an EF Core data access model, and records the whole
run in a build manifest.`,
		Version: Version,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

			ctx := context.WithValue(cmd.Context(), config.LoggerKey(), logger)
			ctx = context.WithValue(ctx, commands.ConfigFileKey(), cfgFile)
			cmd.SetContext(ctx)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
Database artifact build pipeline
`)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./sqlforge.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	rootCmd.AddCommand(commands.NewVersionCommand(Version, BuildDate, GitCommit))
	rootCmd.AddCommand(commands.NewBuildCommand())
	rootCmd.AddCommand(commands.NewRunsCommand())

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
