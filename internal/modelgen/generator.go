package modelgen

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/sqlforge/pkg/core"
)

// scaffoldFiles are generator-tool boilerplate with no relevance to the
// generated model; they are removed after generation.
var scaffoldFiles = []string{
	"Program.cs",
	"appsettings.json",
	"appsettings.Development.json",
}

// Generator produces and packages the model project.
type Generator struct {
	tool      core.ModelGeneratorTool
	buildTool core.BuildTool
	logger    *slog.Logger
}

// NewGenerator creates a Generator around the given tools.
func NewGenerator(tool core.ModelGeneratorTool, buildTool core.BuildTool, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Generator{tool: tool, buildTool: buildTool, logger: logger}
}

// GenerateModel invokes the external generator against the compiled
// binary artifact using the resolved config, strips scaffolding
// boilerplate, and packages the generated project into a versioned
// package under distDir. Generator tool failure is fatal.
func (g *Generator) GenerateModel(ctx context.Context, binaryPath string, config *core.GeneratorConfig, projectDir, version, distDir string) (*core.ArtifactDescriptor, error) {
	if binaryPath == "" {
		return nil, fmt.Errorf("no binary artifact available for model generation")
	}

	g.logger.Info("generating model", "binary", binaryPath, "project", projectDir,
		"config_origin", string(config.Origin))

	if err := g.tool.Generate(ctx, binaryPath, config, projectDir); err != nil {
		return nil, fmt.Errorf("model generation failed: %w", err)
	}

	g.removeScaffolding(projectDir)

	packagePath, err := g.buildTool.Package(ctx, projectDir, version, distDir)
	if err != nil {
		return nil, fmt.Errorf("packaging of generated model failed: %w", err)
	}

	desc := &core.ArtifactDescriptor{
		Kind:              core.ArtifactGeneratedPackage,
		Name:              filepath.Base(projectDir),
		VersionedFileName: filepath.Base(packagePath),
		Path:              packagePath,
	}
	g.logger.Info("model package produced", "file", desc.VersionedFileName)
	return desc, nil
}

// removeScaffolding deletes known generator boilerplate from the project.
func (g *Generator) removeScaffolding(projectDir string) {
	for _, name := range scaffoldFiles {
		path := filepath.Join(projectDir, name)
		if err := os.Remove(path); err == nil {
			g.logger.Debug("removed generator scaffolding", "file", name)
		}
	}
}
