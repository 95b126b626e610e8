package extract

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/sqlforge/internal/testutil"
	"github.com/leapstack-labs/sqlforge/pkg/core"
)

var testConn = core.ConnectionInfo{Host: "localhost", Port: 1433, Database: "Sales"}

func TestExtractSchema(t *testing.T) {
	tool := &testutil.FakeExtractionTool{
		Files: map[string]string{
			"dbo/Tables/Customers.sql": "CREATE TABLE ...",
			"acct/Tables/Ledger.sql":   "CREATE TABLE ...",
		},
	}

	projectDir := filepath.Join(t.TempDir(), "Sales.Database")
	desc, err := NewExtractor(tool, nil).ExtractSchema(context.Background(), testConn, projectDir)
	require.NoError(t, err)

	assert.Equal(t, core.ArtifactSchemaProject, desc.Kind)
	assert.Equal(t, "Sales.Database", desc.Name)
	assert.FileExists(t, filepath.Join(projectDir, "dbo", "Tables", "Customers.sql"))
	assert.FileExists(t, filepath.Join(projectDir, "acct", "Tables", "Ledger.sql"))

	// No staging leftovers next to the project.
	entries, err := os.ReadDir(filepath.Dir(projectDir))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestExtractSchema_ToolFailureIsFatal(t *testing.T) {
	tool := &testutil.FakeExtractionTool{Err: assert.AnError}

	projectDir := filepath.Join(t.TempDir(), "Sales.Database")
	_, err := NewExtractor(tool, nil).ExtractSchema(context.Background(), testConn, projectDir)
	require.Error(t, err)
	assert.NoDirExists(t, projectDir)
}

func TestExtractSchema_EmptyStagingIsFatal(t *testing.T) {
	tool := &testutil.FakeExtractionTool{Files: map[string]string{}}

	projectDir := filepath.Join(t.TempDir(), "Sales.Database")
	_, err := NewExtractor(tool, nil).ExtractSchema(context.Background(), testConn, projectDir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no files")
}

func TestExtractSchema_ReplacesPreviousProject(t *testing.T) {
	projectDir := filepath.Join(t.TempDir(), "Sales.Database")
	require.NoError(t, os.MkdirAll(projectDir, 0o755))
	stale := filepath.Join(projectDir, "stale.sql")
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o644))

	tool := &testutil.FakeExtractionTool{
		Files: map[string]string{"dbo/Tables/Customers.sql": "CREATE TABLE ..."},
	}

	_, err := NewExtractor(tool, nil).ExtractSchema(context.Background(), testConn, projectDir)
	require.NoError(t, err)

	assert.NoFileExists(t, stale)
	assert.FileExists(t, filepath.Join(projectDir, "dbo", "Tables", "Customers.sql"))
}
