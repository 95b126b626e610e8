package artifact

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/sqlforge/internal/testutil"
	"github.com/leapstack-labs/sqlforge/pkg/core"
)

func TestBuild_ProducesVersionedArtifacts(t *testing.T) {
	root := t.TempDir()
	projectDir := filepath.Join(root, "Sales.Database")
	require.NoError(t, os.MkdirAll(projectDir, 0o755))
	distDir := filepath.Join(root, "dist")

	tool := &testutil.FakeBuildTool{}
	result, err := NewBuilder(tool, nil).Build(context.Background(),
		projectDir, "Sales", "2.1.0", distDir,
		core.ArtifactDacpac, core.ArtifactCompiledPackage)
	require.NoError(t, err)

	require.NotNil(t, result.Primary)
	assert.Equal(t, "Sales.2.1.0.dacpac", result.Primary.VersionedFileName)
	assert.FileExists(t, result.Primary.Path)

	require.NotNil(t, result.Package)
	assert.Equal(t, "Sales.Database.2.1.0.nupkg", result.Package.VersionedFileName)
	assert.FileExists(t, result.Package.Path)
}

func TestBuild_MissingPrimaryIsWarningNotError(t *testing.T) {
	root := t.TempDir()
	projectDir := filepath.Join(root, "Sales.Database")
	require.NoError(t, os.MkdirAll(projectDir, 0o755))

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	tool := &testutil.FakeBuildTool{SkipBinary: true}
	result, err := NewBuilder(tool, logger).Build(context.Background(),
		projectDir, "Sales", "2.1.0", filepath.Join(root, "dist"),
		core.ArtifactDacpac, core.ArtifactCompiledPackage)
	require.NoError(t, err)

	assert.Nil(t, result.Primary)
	assert.NotNil(t, result.Package, "packaging still runs after a missing primary artifact")
	assert.Contains(t, buf.String(), "primary build artifact missing")
}

func TestBuild_ToolFailureIsFatal(t *testing.T) {
	root := t.TempDir()

	tool := &testutil.FakeBuildTool{BuildErr: assert.AnError}
	_, err := NewBuilder(tool, nil).Build(context.Background(),
		filepath.Join(root, "Sales.Database"), "Sales", "2.1.0", filepath.Join(root, "dist"),
		core.ArtifactDacpac, core.ArtifactCompiledPackage)
	require.Error(t, err)
}

func TestBuild_PackageFailureIsFatal(t *testing.T) {
	root := t.TempDir()
	projectDir := filepath.Join(root, "Sales.Database")
	require.NoError(t, os.MkdirAll(projectDir, 0o755))

	tool := &testutil.FakeBuildTool{PackageErr: assert.AnError}
	_, err := NewBuilder(tool, nil).Build(context.Background(),
		projectDir, "Sales", "2.1.0", filepath.Join(root, "dist"),
		core.ArtifactDacpac, core.ArtifactCompiledPackage)
	require.Error(t, err)
}
