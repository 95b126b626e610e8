// Package modelgen derives the schema renaming document, resolves the
// generator configuration, and produces the generated model package.
package modelgen

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/leapstack-labs/sqlforge/pkg/core"
)

// RenamingFileName is the renaming document consumed by the generator.
const RenamingFileName = "efcpt-renaming.json"

// DefaultSchema is excluded from the renaming document.
const DefaultSchema = "dbo"

// schemaQuery lists user schemas, excluding the default schema and the
// engine's built-in ones.
const schemaQuery = `SELECT name FROM sys.schemas ` +
	`WHERE name NOT IN ('dbo', 'guest', 'sys', 'INFORMATION_SCHEMA') ` +
	`AND name NOT LIKE 'db[_]%' ORDER BY name ASC`

// GenerateSchemaRenaming queries the restored database's schema catalog
// and writes the renaming document into outputDir: one record per
// non-default schema, ordered by name, with the schema name used as a
// namespace. Zero non-default schemas yields an empty JSON array. The
// document is a pure projection of catalog state and is reproducible by
// re-running against the same database.
func GenerateSchemaRenaming(ctx context.Context, db core.DatabaseService, outputDir string, logger *slog.Logger) ([]string, *core.ArtifactDescriptor, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	rs, err := db.Query(ctx, schemaQuery)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query schema catalog: %w", err)
	}

	names := make([]string, 0, len(rs.Rows))
	for _, row := range rs.Rows {
		if len(row) > 0 && row[0] != "" && row[0] != DefaultSchema {
			names = append(names, row[0])
		}
	}
	sort.Strings(names)

	renames := make([]core.SchemaRename, 0, len(names))
	for _, name := range names {
		renames = append(renames, core.SchemaRename{SchemaName: name, UseSchemaName: true})
	}

	body, err := json.MarshalIndent(renames, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode renaming document: %w", err)
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create %s: %w", outputDir, err)
	}
	path := filepath.Join(outputDir, RenamingFileName)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return nil, nil, fmt.Errorf("failed to write renaming document: %w", err)
	}

	logger.Info("renaming document written", "schemas", len(names), "path", path)

	return names, &core.ArtifactDescriptor{
		Kind:              core.ArtifactConfigDocument,
		Name:              RenamingFileName,
		VersionedFileName: RenamingFileName,
		Path:              path,
	}, nil
}
