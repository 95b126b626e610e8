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

const sampleTemplate = `{
  "names": {"root-namespace": "placeholder"},
  "tables": [{"name": "[dbo].[Old]"}],
  "code-generation": {"type": "all"}
}`

func TestResolve_LocalFileWins(t *testing.T) {
	root := t.TempDir()
	localPath := filepath.Join(root, "my-config.json")
	require.NoError(t, os.WriteFile(localPath, []byte(`{"local":true}`), 0o644))

	fetcher := &testutil.FakeFetcher{}
	bctx := &core.BuildContext{
		DatabaseName:        "Sales",
		GeneratorConfigFile: localPath,
		GeneratorConfigURL:  "https://example.com/config.json",
	}

	cfg, err := NewConfigResolver(fetcher, "", nil).Resolve(context.Background(), bctx, root)
	require.NoError(t, err)
	assert.Equal(t, core.ConfigOriginLocalFile, cfg.Origin)
	assert.JSONEq(t, `{"local":true}`, string(cfg.Body))
	assert.Empty(t, fetcher.Requests, "URL must never be fetched when a local file exists")
}

func TestResolve_RemoteURL(t *testing.T) {
	url := "https://example.com/config.json"
	fetcher := &testutil.FakeFetcher{
		Responses: map[string][]byte{url: []byte(`{"remote":true}`)},
	}
	bctx := &core.BuildContext{DatabaseName: "Sales", GeneratorConfigURL: url}

	cfg, err := NewConfigResolver(fetcher, "", nil).Resolve(context.Background(), bctx, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, core.ConfigOriginRemoteURL, cfg.Origin)
	assert.JSONEq(t, `{"remote":true}`, string(cfg.Body))
}

func TestResolve_MissingLocalFileFallsThroughToURL(t *testing.T) {
	url := "https://example.com/config.json"
	fetcher := &testutil.FakeFetcher{
		Responses: map[string][]byte{url: []byte(`{"remote":true}`)},
	}
	bctx := &core.BuildContext{
		DatabaseName:        "Sales",
		GeneratorConfigFile: filepath.Join(t.TempDir(), "does-not-exist.json"),
		GeneratorConfigURL:  url,
	}

	cfg, err := NewConfigResolver(fetcher, "", nil).Resolve(context.Background(), bctx, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, core.ConfigOriginRemoteURL, cfg.Origin)
}

func TestResolve_DefaultTemplatePatched(t *testing.T) {
	templateURL := "https://example.com/template.json"
	fetcher := &testutil.FakeFetcher{
		Responses: map[string][]byte{templateURL: []byte(sampleTemplate)},
	}
	bctx := &core.BuildContext{DatabaseName: "Sales"}

	cfg, err := NewConfigResolver(fetcher, templateURL, nil).Resolve(context.Background(), bctx, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, core.ConfigOriginDefault, cfg.Origin)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(cfg.Body, &doc))

	names := doc["names"].(map[string]any)
	assert.Equal(t, "Sales.Data", names["root-namespace"])
	assert.Equal(t, "SalesContext", names["dbcontext-name"])

	layout := doc["file-layout"].(map[string]any)
	assert.Equal(t, true, layout["use-schema-folders-preview"])
	assert.Equal(t, true, layout["use-schema-namespaces-preview"])

	mappings := doc["type-mappings"].(map[string]any)
	assert.Equal(t, true, mappings["use-DateOnly-TimeOnly"])

	_, hasTables := doc["tables"]
	assert.False(t, hasTables, "object filters from the template must be dropped")

	// Untouched template sections survive the patch.
	assert.Contains(t, doc, "code-generation")
}

func TestResolve_WritesResolvedDocument(t *testing.T) {
	templateURL := "https://example.com/template.json"
	fetcher := &testutil.FakeFetcher{
		Responses: map[string][]byte{templateURL: []byte(sampleTemplate)},
	}
	outDir := t.TempDir()

	cfg, err := NewConfigResolver(fetcher, templateURL, nil).
		Resolve(context.Background(), &core.BuildContext{DatabaseName: "Sales"}, outDir)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(outDir, ConfigFileName), cfg.Path)
	onDisk, err := os.ReadFile(cfg.Path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Body, onDisk)
}

func TestResolve_TemplateFetchFailureIsFatal(t *testing.T) {
	fetcher := &testutil.FakeFetcher{Err: assert.AnError}

	_, err := NewConfigResolver(fetcher, "https://example.com/t.json", nil).
		Resolve(context.Background(), &core.BuildContext{DatabaseName: "Sales"}, t.TempDir())
	require.Error(t, err)
}
