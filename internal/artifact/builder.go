// Package artifact compiles extracted projects and produces versioned,
// immutable distribution artifacts.
package artifact

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/sqlforge/pkg/core"
)

// Builder wraps the external build tool and owns version stamping and the
// distribution directory layout.
type Builder struct {
	tool   core.BuildTool
	logger *slog.Logger
}

// NewBuilder creates a Builder around the given tool.
func NewBuilder(tool core.BuildTool, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Builder{tool: tool, logger: logger}
}

// Result holds the descriptors a build produced. Primary is nil when the
// build reported success but the primary product was absent; that is a
// warning, not a failure, because downstream stages may still produce
// partial value.
type Result struct {
	Primary *core.ArtifactDescriptor
	Package *core.ArtifactDescriptor
}

// Build compiles the project with version stamped into every
// version-bearing field, copies the primary product into distDir under an
// immutable <name>.<version>.<ext> file name, and packages the project.
// Tool failures are fatal; a missing primary product after a successful
// build is logged and skipped.
func (b *Builder) Build(ctx context.Context, projectPath, name, version, distDir string, primaryKind, packageKind core.ArtifactKind) (*Result, error) {
	if err := os.MkdirAll(distDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create dist directory: %w", err)
	}

	b.logger.Info("building project", "project", projectPath, "version", version)

	binaryPath, err := b.tool.Build(ctx, projectPath, version)
	if err != nil {
		return nil, fmt.Errorf("build of %s failed: %w", name, err)
	}

	result := &Result{}

	if _, statErr := os.Stat(binaryPath); statErr != nil {
		b.logger.Warn("primary build artifact missing, continuing without it",
			"project", name, "expected", binaryPath)
	} else {
		versioned := fmt.Sprintf("%s.%s%s", name, version, filepath.Ext(binaryPath))
		dest := filepath.Join(distDir, versioned)
		if err := copyFile(binaryPath, dest); err != nil {
			return nil, fmt.Errorf("failed to copy %s into dist: %w", versioned, err)
		}
		result.Primary = &core.ArtifactDescriptor{
			Kind:              primaryKind,
			Name:              name,
			VersionedFileName: versioned,
			Path:              dest,
		}
		b.logger.Info("primary artifact produced", "file", versioned)
	}

	packagePath, err := b.tool.Package(ctx, projectPath, version, distDir)
	if err != nil {
		return nil, fmt.Errorf("packaging of %s failed: %w", name, err)
	}
	result.Package = &core.ArtifactDescriptor{
		Kind:              packageKind,
		Name:              name,
		VersionedFileName: filepath.Base(packagePath),
		Path:              packagePath,
	}
	b.logger.Info("package produced", "file", result.Package.VersionedFileName)

	return result, nil
}

// copyFile copies src to dst, truncating dst if present.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
