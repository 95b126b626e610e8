package restore

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/leapstack-labs/sqlforge/pkg/core"
)

// Outcome reports what the restore operation did.
type Outcome string

// Restore outcomes.
const (
	// OutcomeRestored means the backup was materialized into a new database.
	OutcomeRestored Outcome = "restored"
	// OutcomeAlreadyExists means the target database was already present
	// and the restore was skipped. Not an error; re-running the pipeline
	// against a persistent data directory is expected.
	OutcomeAlreadyExists Outcome = "already-exists"
)

// DefaultDataDir is where the engine keeps its data files.
const DefaultDataDir = "/var/opt/mssql/data"

// Executor performs idempotent database restores.
type Executor struct {
	db      core.DatabaseService
	dataDir string
	logger  *slog.Logger
}

// NewExecutor creates an Executor. dataDir defaults to the engine's stock
// data directory when empty.
func NewExecutor(db core.DatabaseService, dataDir string, logger *slog.Logger) *Executor {
	if dataDir == "" {
		dataDir = DefaultDataDir
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Executor{db: db, dataDir: dataDir, logger: logger}
}

// BuildSpec discovers the backup's logical names and derives the full
// restore specification. Fails with ResolutionError when either name
// cannot be determined.
func (e *Executor) BuildSpec(ctx context.Context, databaseName, backupPath string) (*core.RestoreSpec, error) {
	names, err := ResolveLogicalNames(ctx, e.db, backupPath)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("resolved logical names", "data", names.Data, "log", names.Log)

	return &core.RestoreSpec{
		DatabaseName:       databaseName,
		BackupFilePath:     backupPath,
		DataLogicalName:    names.Data,
		LogLogicalName:     names.Log,
		DataFileTargetPath: filepath.Join(e.dataDir, databaseName+".mdf"),
		LogFileTargetPath:  filepath.Join(e.dataDir, databaseName+"_log.ldf"),
	}, nil
}

// Restore materializes the backup described by spec. It is idempotent:
// when the target database already exists the restore is skipped and
// OutcomeAlreadyExists is returned.
func (e *Executor) Restore(ctx context.Context, spec *core.RestoreSpec) (Outcome, error) {
	if spec.DataLogicalName == "" || spec.LogLogicalName == "" {
		return "", fmt.Errorf("restore spec has empty logical names for %s", spec.DatabaseName)
	}

	exists, err := e.databaseExists(ctx, spec.DatabaseName)
	if err != nil {
		return "", fmt.Errorf("failed to check for existing database %s: %w", spec.DatabaseName, err)
	}
	if exists {
		e.logger.Info("database already restored, skipping", "database", spec.DatabaseName)
		return OutcomeAlreadyExists, nil
	}

	stmt := fmt.Sprintf(
		"RESTORE DATABASE [%s] FROM DISK = N'%s' WITH "+
			"MOVE N'%s' TO N'%s', "+
			"MOVE N'%s' TO N'%s', "+
			"REPLACE, RECOVERY",
		escapeIdentifier(spec.DatabaseName),
		escapeLiteral(spec.BackupFilePath),
		escapeLiteral(spec.DataLogicalName), escapeLiteral(spec.DataFileTargetPath),
		escapeLiteral(spec.LogLogicalName), escapeLiteral(spec.LogFileTargetPath),
	)

	e.logger.Info("restoring database", "database", spec.DatabaseName, "backup", spec.BackupFilePath)

	if err := e.db.Exec(ctx, stmt); err != nil {
		return "", fmt.Errorf("restore of %s failed: %w", spec.DatabaseName, err)
	}
	return OutcomeRestored, nil
}

// databaseExists checks the catalog for the database by name.
func (e *Executor) databaseExists(ctx context.Context, name string) (bool, error) {
	rs, err := e.db.Query(ctx, fmt.Sprintf(
		"SELECT name FROM sys.databases WHERE name = N'%s'", escapeLiteral(name)))
	if err != nil {
		return false, err
	}
	return !rs.Empty(), nil
}
