// Package extract decomposes a live database's structure into a file-based
// SQL project.
package extract

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/sqlforge/pkg/core"
)

// Extractor drives the external schema-extraction tool and owns the
// staging dance around it.
type Extractor struct {
	tool   core.SchemaExtractionTool
	logger *slog.Logger
}

// NewExtractor creates an Extractor around the given tool.
func NewExtractor(tool core.SchemaExtractionTool, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Extractor{tool: tool, logger: logger}
}

// ExtractSchema extracts the schema of the connected database into
// projectDir, one file per schema object. The tool writes into a staging
// directory first; the staged tree replaces projectDir only after the tool
// succeeds, so a re-run never observes partial or mixed state. Tool
// failure and an empty staging tree are both fatal.
func (e *Extractor) ExtractSchema(ctx context.Context, conn core.ConnectionInfo, projectDir string) (*core.ArtifactDescriptor, error) {
	parent := filepath.Dir(projectDir)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", parent, err)
	}

	staging, err := os.MkdirTemp(parent, ".extract-staging-")
	if err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	e.logger.Info("extracting schema", "database", conn.Database, "staging", staging)

	if err := e.tool.Extract(ctx, conn, staging); err != nil {
		return nil, fmt.Errorf("schema extraction failed: %w", err)
	}

	staged, err := countFiles(staging)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect staging directory: %w", err)
	}
	if staged == 0 {
		return nil, fmt.Errorf("schema extraction produced no files for %s", conn.Database)
	}

	if err := os.RemoveAll(projectDir); err != nil {
		return nil, fmt.Errorf("failed to clear %s: %w", projectDir, err)
	}
	if err := os.Rename(staging, projectDir); err != nil {
		return nil, fmt.Errorf("failed to move staged project into place: %w", err)
	}

	e.logger.Info("schema extracted", "files", staged, "project", projectDir)

	return &core.ArtifactDescriptor{
		Kind: core.ArtifactSchemaProject,
		Name: filepath.Base(projectDir),
		Path: projectDir,
	}, nil
}

// countFiles counts regular files under root.
func countFiles(root string) (int, error) {
	count := 0
	err := filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			count++
		}
		return nil
	})
	return count, err
}
