// Package manifest aggregates the artifacts of a pipeline run into one
// structured output document.
package manifest

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/leapstack-labs/sqlforge/pkg/core"
)

// FileName is the manifest document name under the output root.
const FileName = "manifest.json"

// timeFormat is strict ISO-8601 UTC, second precision.
const timeFormat = "2006-01-02T15:04:05Z"

// Writer produces the manifest document. Now is injectable for tests and
// defaults to the wall clock.
type Writer struct {
	Now    func() time.Time
	Logger *slog.Logger
}

// NewWriter creates a Writer on the wall clock.
func NewWriter(logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Writer{Now: time.Now, Logger: logger}
}

// Write aggregates whatever artifact descriptors exist into a manifest
// and writes it under outputDir. Absent artifacts become empty-string
// fields: a partially successful run is still inspectable. The document
// is written to a temp file and renamed into place, so a manifest is
// never observed partially written.
func (w *Writer) Write(bctx *core.BuildContext, artifacts *core.ArtifactSet, outputDir string) (string, error) {
	m := core.Manifest{
		DatabaseName:              bctx.DatabaseName,
		Version:                   bctx.Version,
		DacpacFileName:            artifacts.FileName(core.ArtifactDacpac),
		SQLProjectPackageFileName: artifacts.FileName(core.ArtifactCompiledPackage),
		EFCorePackageFileName:     artifacts.FileName(core.ArtifactGeneratedPackage),
		EFCoreProjectName:         bctx.ModelProjectName(),
		ImageRepository:           bctx.RepositoryLabel,
		ImageTags:                 []string{bctx.Version, "latest"},
		CommitSHA:                 bctx.CommitSHA,
		GeneratedAtUTC:            w.Now().UTC().Format(timeFormat),
	}

	body, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode manifest: %w", err)
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", outputDir, err)
	}

	path := filepath.Join(outputDir, FileName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, body, 0o644); err != nil {
		return "", fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("failed to move manifest into place: %w", err)
	}

	w.Logger.Info("manifest written", "path", path)
	return path, nil
}
