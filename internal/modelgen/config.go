package modelgen

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/sqlforge/pkg/core"
)

// ConfigFileName is where the resolved generator config is materialized.
const ConfigFileName = "efcpt-config.json"

// DefaultTemplateURL is the canonical default generator config template.
const DefaultTemplateURL = "https://raw.githubusercontent.com/ErikEJ/EFCorePowerTools/master/samples/efcpt-config.json"

// NamespaceSuffix is appended to the database name to form the generated
// model's root namespace and project name.
const NamespaceSuffix = ".Data"

// ConfigResolver selects and materializes the generator configuration.
type ConfigResolver struct {
	fetcher     core.HTTPFetcher
	templateURL string
	logger      *slog.Logger
}

// NewConfigResolver creates a resolver. templateURL defaults to the
// canonical template location when empty.
func NewConfigResolver(fetcher core.HTTPFetcher, templateURL string, logger *slog.Logger) *ConfigResolver {
	if templateURL == "" {
		templateURL = DefaultTemplateURL
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ConfigResolver{fetcher: fetcher, templateURL: templateURL, logger: logger}
}

// Resolve picks the generator config by strict first-match priority:
// an explicit local file that exists, then a supplied remote URL, then the
// canonical default template patched with fields derived from the build
// context. Origins are never mixed; when the local file is used, no URL is
// fetched. The resolved document is written into outputDir.
func (r *ConfigResolver) Resolve(ctx context.Context, bctx *core.BuildContext, outputDir string) (*core.GeneratorConfig, error) {
	if bctx.GeneratorConfigFile != "" {
		if _, err := os.Stat(bctx.GeneratorConfigFile); err == nil {
			body, err := os.ReadFile(bctx.GeneratorConfigFile)
			if err != nil {
				return nil, fmt.Errorf("failed to read generator config %s: %w", bctx.GeneratorConfigFile, err)
			}
			r.logger.Info("using local generator config", "path", bctx.GeneratorConfigFile)
			return r.materialize(core.ConfigOriginLocalFile, body, outputDir)
		}
		r.logger.Warn("generator config file not found, falling through",
			"path", bctx.GeneratorConfigFile)
	}

	if bctx.GeneratorConfigURL != "" {
		body, err := r.fetcher.Get(ctx, bctx.GeneratorConfigURL)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch generator config: %w", err)
		}
		r.logger.Info("using remote generator config", "url", bctx.GeneratorConfigURL)
		return r.materialize(core.ConfigOriginRemoteURL, body, outputDir)
	}

	template, err := r.fetcher.Get(ctx, r.templateURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch default config template: %w", err)
	}

	body, err := patchTemplate(template, bctx)
	if err != nil {
		return nil, err
	}
	r.logger.Info("using default generator config template", "url", r.templateURL)
	return r.materialize(core.ConfigOriginDefault, body, outputDir)
}

// materialize writes the config body into outputDir and builds the result.
func (r *ConfigResolver) materialize(origin core.GeneratorConfigOrigin, body []byte, outputDir string) (*core.GeneratorConfig, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", outputDir, err)
	}
	path := filepath.Join(outputDir, ConfigFileName)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write generator config: %w", err)
	}
	return &core.GeneratorConfig{Origin: origin, Path: path, Body: body}, nil
}

// patchTemplate applies the fixed derived-field overrides to the default
// template.
func patchTemplate(template []byte, bctx *core.BuildContext) ([]byte, error) {
	var doc map[string]any
	if err := json.Unmarshal(template, &doc); err != nil {
		return nil, fmt.Errorf("default config template is not valid JSON: %w", err)
	}

	setNested(doc, "names", "root-namespace", bctx.DatabaseName+NamespaceSuffix)
	setNested(doc, "names", "dbcontext-name", bctx.DatabaseName+"Context")
	setNested(doc, "file-layout", "output-path", "Models")
	setNested(doc, "file-layout", "use-schema-folders-preview", true)
	setNested(doc, "file-layout", "use-schema-namespaces-preview", true)
	setNested(doc, "type-mappings", "use-DateOnly-TimeOnly", true)
	setNested(doc, "type-mappings", "use-HierarchyId", true)
	setNested(doc, "type-mappings", "use-spatial", true)

	// Object filters from the template would silently exclude schema
	// objects; the pipeline always generates the full model.
	delete(doc, "tables")
	delete(doc, "views")
	delete(doc, "stored-procedures")
	delete(doc, "functions")

	return json.MarshalIndent(doc, "", "  ")
}

// setNested sets doc[section][key], creating the section as needed.
func setNested(doc map[string]any, section, key string, value any) {
	sub, ok := doc[section].(map[string]any)
	if !ok {
		sub = map[string]any{}
		doc[section] = sub
	}
	sub[key] = value
}
