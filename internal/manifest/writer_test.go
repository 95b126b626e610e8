package manifest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/sqlforge/pkg/core"
)

func fixedWriter() *Writer {
	w := NewWriter(nil)
	w.Now = func() time.Time {
		return time.Date(2026, 8, 29, 12, 30, 45, 0, time.UTC)
	}
	return w
}

func fullArtifactSet() *core.ArtifactSet {
	set := &core.ArtifactSet{}
	set.Add(core.ArtifactDescriptor{Kind: core.ArtifactSchemaProject, Name: "Sales.Database"})
	set.Add(core.ArtifactDescriptor{Kind: core.ArtifactDacpac, VersionedFileName: "Sales.2.1.0.dacpac"})
	set.Add(core.ArtifactDescriptor{Kind: core.ArtifactCompiledPackage, VersionedFileName: "Sales.Database.2.1.0.nupkg"})
	set.Add(core.ArtifactDescriptor{Kind: core.ArtifactGeneratedPackage, VersionedFileName: "Sales.Data.2.1.0.nupkg"})
	return set
}

func TestWrite_RoundTrip(t *testing.T) {
	bctx := &core.BuildContext{
		DatabaseName:    "Sales",
		Version:         "2.1.0",
		RepositoryLabel: "registry.example.com/sales-db",
		CommitSHA:       "abc1234",
	}

	outDir := t.TempDir()
	path, err := fixedWriter().Write(bctx, fullArtifactSet(), outDir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(outDir, FileName), path)

	body, err := os.ReadFile(path)
	require.NoError(t, err)

	var m core.Manifest
	require.NoError(t, json.Unmarshal(body, &m))

	assert.Equal(t, "Sales", m.DatabaseName)
	assert.Equal(t, "2.1.0", m.Version)
	assert.Equal(t, "Sales.2.1.0.dacpac", m.DacpacFileName)
	assert.Equal(t, "Sales.Database.2.1.0.nupkg", m.SQLProjectPackageFileName)
	assert.Equal(t, "Sales.Data.2.1.0.nupkg", m.EFCorePackageFileName)
	assert.Equal(t, "Sales.Data", m.EFCoreProjectName)
	assert.Equal(t, "registry.example.com/sales-db", m.ImageRepository)
	assert.Equal(t, []string{"2.1.0", "latest"}, m.ImageTags)
	assert.Equal(t, "abc1234", m.CommitSHA)
	assert.Equal(t, "2026-08-29T12:30:45Z", m.GeneratedAtUTC)
}

func TestWrite_AbsentArtifactsBecomeEmptyFields(t *testing.T) {
	bctx := &core.BuildContext{DatabaseName: "Sales", Version: "2.1.0"}

	path, err := fixedWriter().Write(bctx, &core.ArtifactSet{}, t.TempDir())
	require.NoError(t, err)

	body, err := os.ReadFile(path)
	require.NoError(t, err)

	var m core.Manifest
	require.NoError(t, json.Unmarshal(body, &m))
	assert.Empty(t, m.DacpacFileName)
	assert.Empty(t, m.SQLProjectPackageFileName)
	assert.Empty(t, m.EFCorePackageFileName)
	assert.Equal(t, []string{"2.1.0", "latest"}, m.ImageTags)
}

func TestWrite_NoTempFileLeftBehind(t *testing.T) {
	bctx := &core.BuildContext{DatabaseName: "Sales", Version: "2.1.0"}

	outDir := t.TempDir()
	_, err := fixedWriter().Write(bctx, &core.ArtifactSet{}, outDir)
	require.NoError(t, err)

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, FileName, entries[0].Name())
}
