// Package commands implements the sqlforge subcommands.
package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/sqlforge/internal/artifact"
	"github.com/leapstack-labs/sqlforge/internal/cli/config"
	"github.com/leapstack-labs/sqlforge/internal/dbserver"
	"github.com/leapstack-labs/sqlforge/internal/extract"
	"github.com/leapstack-labs/sqlforge/internal/fetch"
	"github.com/leapstack-labs/sqlforge/internal/modelgen"
	"github.com/leapstack-labs/sqlforge/internal/pipeline"
	"github.com/leapstack-labs/sqlforge/internal/state"
)

// configFileKey is used to store the --config flag value in context.
type configFileKey struct{}

// ConfigFileKey returns the context key the root command stores the
// --config flag value under.
func ConfigFileKey() interface{} {
	return configFileKey{}
}

// configFileFromContext retrieves the --config flag value, if any.
func configFileFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(configFileKey{}).(string); ok {
		return v
	}
	return ""
}

// NewBuildCommand creates the build command.
func NewBuildCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Restore a backup and build its database artifacts",
		Long: `Restore the configured backup into a local SQL Server instance, extract
its schema into a SQL project, compile and package versioned artifacts,
generate the EF Core model, and write the build manifest.

The engine instance is always stopped when the pipeline ends, whether it
succeeded or failed.`,
		Example: `  # Build from a local backup file
  sqlforge build --database-name Sales --version 2.1.0 --backup-file /backups/Sales.bak

  # Build from a remote backup, with an explicit generator config
  sqlforge build --database-name Sales --version 2.1.0 \
    --backup-url https://backups.example.com/Sales.bak \
    --efcpt-config-url https://config.example.com/efcpt-config.json`,
		RunE: runBuild,
	}

	cmd.Flags().String("database-name", "", "Name of the database to restore and build")
	cmd.Flags().String("version", "", "Version stamped into every produced artifact")
	cmd.Flags().String("backup-file", "", "Path to a local backup file")
	cmd.Flags().String("backup-url", "", "URL to download the backup from")
	cmd.Flags().String("output-dir", "", "Directory artifacts are written under")
	cmd.Flags().String("state-path", "", "Path to the run history database")
	cmd.Flags().String("data-dir", "", "Engine data directory for restored files")
	cmd.Flags().String("efcpt-config-file", "", "Local generator config file")
	cmd.Flags().String("efcpt-config-url", "", "Remote generator config URL")
	cmd.Flags().String("generator-tool-version", "", "Version of the model generator tool")
	cmd.Flags().String("model-framework-version", "", "Target framework version for the generated model")
	cmd.Flags().String("sa-password", "", "SA password (prefer --sa-password-file)")
	cmd.Flags().String("sa-password-file", "", "File containing the SA password")
	cmd.Flags().String("image-repository", "", "Image repository label recorded in the manifest")
	cmd.Flags().String("commit-sha", "", "Source revision recorded in the manifest")
	cmd.Flags().Bool("insecure", false, "Skip certificate validation on outbound fetches")

	return cmd
}

func runBuild(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	logger := config.GetLogger(ctx)

	cfg, err := config.LoadConfig(configFileFromContext(ctx), cmd.Flags())
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	bctx, err := cfg.BuildContext()
	if err != nil {
		return err
	}

	store := state.NewSQLiteStore(logger)
	stateDir := filepath.Dir(cfg.StatePath)
	if stateDir != "." && stateDir != "" {
		if err := os.MkdirAll(stateDir, 0o750); err != nil {
			return fmt.Errorf("failed to create state directory: %w", err)
		}
	}
	if err := store.Open(cfg.StatePath); err != nil {
		return err
	}
	defer store.Close()
	if err := store.Migrate(); err != nil {
		return err
	}

	conn := cfg.Connection(bctx.Password)

	fetchOpts := []fetch.Option{fetch.WithLogger(logger)}
	if cfg.Insecure {
		logger.Warn("certificate validation disabled for outbound fetches")
		fetchOpts = append(fetchOpts, fetch.WithInsecureTransport())
	}

	driver := pipeline.New(pipeline.Config{
		Context:    bctx,
		Connection: conn,
		Database: dbserver.New(dbserver.Config{
			Connection: conn,
			LogPath:    filepath.Join(cfg.OutputDir, "sqlservr.log"),
			Logger:     logger,
		}),
		Extraction: &extract.SQLPackageTool{Logger: logger},
		Build:      &artifact.DotnetTool{Logger: logger},
		Generator:  &modelgen.EFCPTTool{Logger: logger},
		Fetcher:    fetch.NewClient(fetchOpts...),
		Store:      store,
		DataDir:    cfg.DataDir,
		Logger:     logger,
	})

	result, err := driver.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Build %s %s completed\n", cfg.DatabaseName, cfg.Version)
	fmt.Fprintf(cmd.OutOrStdout(), "Manifest: %s\n", result.ManifestPath)
	for _, a := range result.Artifacts {
		fmt.Fprintf(cmd.OutOrStdout(), "  %-24s %s\n", a.Kind, a.VersionedFileName)
	}
	return nil
}
