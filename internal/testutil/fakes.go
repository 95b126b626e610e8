// Package testutil provides in-memory fakes for the pipeline's capability
// interfaces. The orchestration core is tested entirely against these.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/leapstack-labs/sqlforge/pkg/core"
)

// FakeDatabase implements core.DatabaseService in memory.
type FakeDatabase struct {
	mu sync.Mutex

	// ProbeFailures is how many probes fail before the engine reports
	// ready.
	ProbeFailures int
	// StartErr, when set, fails Start.
	StartErr error
	// ExecErr, when set, fails every Exec.
	ExecErr error
	// Results maps a query substring to the result set returned for it.
	Results map[string]*core.ResultSet
	// QueryErr, when set, fails every Query without a matching result.
	QueryErr error

	Started    bool
	StopCalls  int
	ProbeCalls int
	Execs      []string
	Queries    []string
}

// Start records the engine start.
func (f *FakeDatabase) Start(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.StartErr != nil {
		return f.StartErr
	}
	f.Started = true
	return nil
}

// Probe fails ProbeFailures times, then succeeds.
func (f *FakeDatabase) Probe(_ context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ProbeCalls++
	if f.ProbeCalls <= f.ProbeFailures {
		return "engine still starting", errors.New("connection refused")
	}
	return "", nil
}

// Query returns the result registered for the first matching substring.
func (f *FakeDatabase) Query(_ context.Context, query string) (*core.ResultSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Queries = append(f.Queries, query)
	for substr, rs := range f.Results {
		if strings.Contains(query, substr) {
			return rs, nil
		}
	}
	if f.QueryErr != nil {
		return nil, f.QueryErr
	}
	return &core.ResultSet{}, nil
}

// Exec records the statement.
func (f *FakeDatabase) Exec(_ context.Context, stmt string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ExecErr != nil {
		return f.ExecErr
	}
	f.Execs = append(f.Execs, stmt)
	return nil
}

// Stop counts invocations.
func (f *FakeDatabase) Stop(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.StopCalls++
	return nil
}

// FileListResult builds a well-formed FILELISTONLY result set.
func FileListResult(dataName, logName string) *core.ResultSet {
	return &core.ResultSet{
		Columns: []string{"LogicalName", "PhysicalName", "Type"},
		Rows: [][]string{
			{dataName, "C:\\old\\" + dataName + ".mdf", "D"},
			{logName, "C:\\old\\" + logName + ".ldf", "L"},
		},
	}
}

// SchemaResult builds a sys.schemas result set from schema names.
func SchemaResult(names ...string) *core.ResultSet {
	rs := &core.ResultSet{Columns: []string{"name"}}
	for _, n := range names {
		rs.Rows = append(rs.Rows, []string{n})
	}
	return rs
}

// FakeExtractionTool implements core.SchemaExtractionTool by writing a
// canned set of files into the target directory.
type FakeExtractionTool struct {
	// Files maps relative path to content.
	Files map[string]string
	// Err, when set, fails Extract.
	Err error

	Extractions []string
}

// Extract writes the canned files under targetDir.
func (f *FakeExtractionTool) Extract(_ context.Context, _ core.ConnectionInfo, targetDir string) error {
	if f.Err != nil {
		return f.Err
	}
	f.Extractions = append(f.Extractions, targetDir)
	for rel, content := range f.Files {
		path := filepath.Join(targetDir, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return err
		}
	}
	return nil
}

// FakeBuildTool implements core.BuildTool by creating placeholder outputs.
type FakeBuildTool struct {
	// BuildErr fails Build; PackageErr fails Package.
	BuildErr   error
	PackageErr error
	// SkipBinary makes Build succeed without producing the binary file,
	// simulating the missing-primary-artifact warning path.
	SkipBinary bool

	Builds   []string
	Packages []string
}

// Build writes <project>.dacpac next to the project and returns its path.
func (f *FakeBuildTool) Build(_ context.Context, projectPath, version string) (string, error) {
	if f.BuildErr != nil {
		return "", f.BuildErr
	}
	f.Builds = append(f.Builds, projectPath)
	name := filepath.Base(projectPath)
	binary := filepath.Join(projectPath, "bin", name+".dacpac")
	if f.SkipBinary {
		return binary, nil
	}
	if err := os.MkdirAll(filepath.Dir(binary), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(binary, []byte("dacpac "+version), 0o644); err != nil {
		return "", err
	}
	return binary, nil
}

// Package writes <project>.<version>.nupkg under outDir and returns its path.
func (f *FakeBuildTool) Package(_ context.Context, projectPath, version, outDir string) (string, error) {
	if f.PackageErr != nil {
		return "", f.PackageErr
	}
	f.Packages = append(f.Packages, projectPath)
	name := fmt.Sprintf("%s.%s.nupkg", filepath.Base(projectPath), version)
	path := filepath.Join(outDir, name)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte("nupkg"), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// FakeGeneratorTool implements core.ModelGeneratorTool by writing a model
// project skeleton.
type FakeGeneratorTool struct {
	Err error

	Generations []string
	LastConfig  *core.GeneratorConfig
}

// Generate writes a minimal generated project under projectDir.
func (f *FakeGeneratorTool) Generate(_ context.Context, binaryPath string, config *core.GeneratorConfig, projectDir string) error {
	if f.Err != nil {
		return f.Err
	}
	f.Generations = append(f.Generations, binaryPath)
	f.LastConfig = config
	if err := os.MkdirAll(projectDir, 0o755); err != nil {
		return err
	}
	name := filepath.Base(projectDir)
	files := map[string]string{
		name + ".csproj": "<Project/>",
		"Program.cs":     "// scaffold",
		"Models.cs":      "// generated",
	}
	for rel, content := range files {
		if err := os.WriteFile(filepath.Join(projectDir, rel), []byte(content), 0o644); err != nil {
			return err
		}
	}
	return nil
}

// FakeFetcher implements core.HTTPFetcher from a URL-to-body map.
type FakeFetcher struct {
	Responses map[string][]byte
	Err       error

	Requests []string
}

// Get returns the registered body for url.
func (f *FakeFetcher) Get(_ context.Context, url string) ([]byte, error) {
	f.Requests = append(f.Requests, url)
	if f.Err != nil {
		return nil, f.Err
	}
	if body, ok := f.Responses[url]; ok {
		return body, nil
	}
	return nil, fmt.Errorf("no response registered for %s", url)
}
