package commands

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cliconfig "github.com/leapstack-labs/sqlforge/internal/cli/config"
	"github.com/leapstack-labs/sqlforge/internal/state"
	"github.com/leapstack-labs/sqlforge/pkg/core"
)

// execute runs a command with captured output.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	cliconfig.ResetConfig()

	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	cmd.SetContext(context.Background())
	err := cmd.Execute()
	return buf.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, NewVersionCommand("1.2.3", "2026-08-29", "abc1234"))
	require.NoError(t, err)
	assert.Contains(t, out, "sqlforge v1.2.3")
	assert.Contains(t, out, "abc1234")
}

func TestRunsCommand_EmptyStore(t *testing.T) {
	statePath := filepath.Join(t.TempDir(), "state.db")

	out, err := execute(t, NewRunsCommand(), "--state-path", statePath)
	require.NoError(t, err)
	assert.Contains(t, out, "No runs recorded")
}

func TestRunsCommand_ListsRuns(t *testing.T) {
	statePath := filepath.Join(t.TempDir(), "state.db")

	store := state.NewSQLiteStore(nil)
	require.NoError(t, store.Open(statePath))
	require.NoError(t, store.Migrate())
	run, err := store.CreateRun("Sales", "2.1.0")
	require.NoError(t, err)
	require.NoError(t, store.CompleteRun(run.ID, core.RunStatusCompleted, ""))
	require.NoError(t, store.Close())

	out, err := execute(t, NewRunsCommand(), "--state-path", statePath)
	require.NoError(t, err)
	assert.Contains(t, out, "Sales")
	assert.Contains(t, out, "2.1.0")
	assert.Contains(t, out, "completed")
}

func TestRunsCommand_SingleRunShowsStages(t *testing.T) {
	statePath := filepath.Join(t.TempDir(), "state.db")

	store := state.NewSQLiteStore(nil)
	require.NoError(t, store.Open(statePath))
	require.NoError(t, store.Migrate())
	run, err := store.CreateRun("Sales", "2.1.0")
	require.NoError(t, err)
	stage := &core.StageRun{RunID: run.ID, Stage: "Restoring"}
	require.NoError(t, store.RecordStage(stage))
	require.NoError(t, store.CompleteStage(stage.ID, core.StageStatusSuccess, ""))
	require.NoError(t, store.CompleteRun(run.ID, core.RunStatusFailed, "stage Building failed"))
	require.NoError(t, store.Close())

	out, err := execute(t, NewRunsCommand(), "--state-path", statePath, run.ID)
	require.NoError(t, err)
	assert.Contains(t, out, run.ID)
	assert.Contains(t, out, "Restoring")
	assert.Contains(t, out, "stage Building failed")
}

func TestBuildCommand_RejectsIncompleteConfig(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := execute(t, NewBuildCommand(), "--database-name", "Sales")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "version is required")
}

func TestBuildCommand_RequiresBackupSource(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := execute(t, NewBuildCommand(),
		"--database-name", "Sales", "--version", "1.0.0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backup_file or backup_url")
}
