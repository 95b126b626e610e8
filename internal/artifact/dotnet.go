package artifact

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
)

// DotnetTool implements core.BuildTool via the dotnet CLI.
type DotnetTool struct {
	// BinaryPath is the dotnet executable ("dotnet" when on PATH).
	BinaryPath string
	// Logger is the structured logger (optional, uses discard if nil).
	Logger *slog.Logger
}

func (t *DotnetTool) logger() *slog.Logger {
	if t.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return t.Logger
}

func (t *DotnetTool) binary() string {
	if t.BinaryPath == "" {
		return "dotnet"
	}
	return t.BinaryPath
}

func (t *DotnetTool) run(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, t.binary(), args...)

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	t.logger().Debug("running dotnet", "args", args)

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("dotnet %s failed: %w\n%s", args[0], err, output.String())
	}
	return nil
}

// Build compiles the project in Release configuration with version stamped
// into the assembly and package metadata, returning the expected primary
// product path.
func (t *DotnetTool) Build(ctx context.Context, projectPath, version string) (string, error) {
	err := t.run(ctx, "build", projectPath,
		"-c", "Release",
		"/p:Version="+version,
		"/p:NetCoreBuild=true",
	)
	if err != nil {
		return "", err
	}

	name := filepath.Base(projectPath)
	return filepath.Join(projectPath, "bin", "Release", name+".dacpac"), nil
}

// Package produces a nupkg for the project under outDir.
func (t *DotnetTool) Package(ctx context.Context, projectPath, version, outDir string) (string, error) {
	err := t.run(ctx, "pack", projectPath,
		"-c", "Release",
		"--no-build",
		"-o", outDir,
		"/p:PackageVersion="+version,
	)
	if err != nil {
		return "", err
	}

	name := filepath.Base(projectPath)
	return filepath.Join(outDir, fmt.Sprintf("%s.%s.nupkg", name, version)), nil
}
