package modelgen

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/leapstack-labs/sqlforge/pkg/core"
)

// EFCPTTool implements core.ModelGeneratorTool via the EF Core Power
// Tools CLI, installed as a dotnet global tool.
type EFCPTTool struct {
	// BinaryPath is the efcpt executable ("efcpt" when on PATH).
	BinaryPath string
	// Logger is the structured logger (optional, uses discard if nil).
	Logger *slog.Logger
}

// Generate runs efcpt against the dacpac, working inside projectDir so
// the generated sources land there. efcpt resolves its config and the
// renaming document by conventional file name relative to the working
// directory, so both are placed into projectDir before the tool runs.
func (t *EFCPTTool) Generate(ctx context.Context, binaryPath string, config *core.GeneratorConfig, projectDir string) error {
	logger := t.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if err := os.MkdirAll(projectDir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", projectDir, err)
	}

	localConfig := filepath.Join(projectDir, ConfigFileName)
	if config.Path != localConfig {
		if err := os.WriteFile(localConfig, config.Body, 0o644); err != nil {
			return fmt.Errorf("failed to place generator config: %w", err)
		}
	}

	// The renaming document is written next to the project; mirror it into
	// the working directory where efcpt looks for it.
	if body, err := os.ReadFile(filepath.Join(filepath.Dir(projectDir), RenamingFileName)); err == nil {
		if err := os.WriteFile(filepath.Join(projectDir, RenamingFileName), body, 0o644); err != nil {
			return fmt.Errorf("failed to place renaming document: %w", err)
		}
	}

	bin := t.BinaryPath
	if bin == "" {
		bin = "efcpt"
	}
	cmd := exec.CommandContext(ctx, bin, binaryPath, "mssql")
	cmd.Dir = projectDir

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	logger.Debug("running efcpt", "dacpac", binaryPath, "dir", projectDir)

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("efcpt failed: %w\n%s", err, output.String())
	}
	return nil
}
