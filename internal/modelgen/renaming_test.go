package modelgen

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/sqlforge/internal/testutil"
	"github.com/leapstack-labs/sqlforge/pkg/core"
)

func TestGenerateSchemaRenaming(t *testing.T) {
	db := &testutil.FakeDatabase{
		Results: map[string]*core.ResultSet{
			"sys.schemas": testutil.SchemaResult("sales", "hr"),
		},
	}

	outDir := t.TempDir()
	names, desc, err := GenerateSchemaRenaming(context.Background(), db, outDir, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"hr", "sales"}, names)
	assert.Equal(t, core.ArtifactConfigDocument, desc.Kind)

	body, err := os.ReadFile(desc.Path)
	require.NoError(t, err)

	var renames []core.SchemaRename
	require.NoError(t, json.Unmarshal(body, &renames))
	require.Len(t, renames, 2)
	assert.Equal(t, "hr", renames[0].SchemaName)
	assert.Equal(t, "sales", renames[1].SchemaName)
	assert.True(t, renames[0].UseSchemaName)
	assert.True(t, renames[1].UseSchemaName)
}

func TestGenerateSchemaRenaming_EmptySetYieldsEmptyArray(t *testing.T) {
	db := &testutil.FakeDatabase{
		Results: map[string]*core.ResultSet{
			"sys.schemas": testutil.SchemaResult(),
		},
	}

	outDir := t.TempDir()
	names, desc, err := GenerateSchemaRenaming(context.Background(), db, outDir, nil)
	require.NoError(t, err)
	assert.Empty(t, names)

	body, err := os.ReadFile(desc.Path)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(body))
}

func TestGenerateSchemaRenaming_Deterministic(t *testing.T) {
	db := &testutil.FakeDatabase{
		Results: map[string]*core.ResultSet{
			"sys.schemas": testutil.SchemaResult("ops", "acct"),
		},
	}

	outDir := t.TempDir()
	first, _, err := GenerateSchemaRenaming(context.Background(), db, outDir, nil)
	require.NoError(t, err)
	firstBody, err := os.ReadFile(filepath.Join(outDir, RenamingFileName))
	require.NoError(t, err)

	second, _, err := GenerateSchemaRenaming(context.Background(), db, outDir, nil)
	require.NoError(t, err)
	secondBody, err := os.ReadFile(filepath.Join(outDir, RenamingFileName))
	require.NoError(t, err)

	assert.Equal(t, []string{"acct", "ops"}, first)
	assert.Equal(t, first, second)
	assert.Equal(t, firstBody, secondBody)
}

func TestGenerateSchemaRenaming_ExcludesDefaultSchema(t *testing.T) {
	// The catalog query filters dbo out server-side; the fake returns it
	// anyway to exercise the belt-and-braces client-side filter.
	db := &testutil.FakeDatabase{
		Results: map[string]*core.ResultSet{
			"sys.schemas": testutil.SchemaResult("dbo", "sales"),
		},
	}

	names, _, err := GenerateSchemaRenaming(context.Background(), db, t.TempDir(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"sales"}, names)
}
