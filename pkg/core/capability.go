package core

import "context"

// ConnectionInfo identifies the live database instance external tools
// operate against.
type ConnectionInfo struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

// DatabaseService is the dependent database engine capability. The real
// implementation runs the engine as a detached background process; tests
// substitute in-memory fakes.
type DatabaseService interface {
	// Start launches the engine as a background process. It returns as
	// soon as the process is spawned; readiness is established separately
	// via Probe.
	Start(ctx context.Context) error

	// Probe issues a trivial liveness query. The returned string is the
	// probe's captured diagnostic output (stdout/stderr of the attempt),
	// useful for debugging when err is non-nil.
	Probe(ctx context.Context) (diagnostics string, err error)

	// Query executes a statement that returns rows.
	Query(ctx context.Context, query string) (*ResultSet, error)

	// Exec executes a statement that returns no rows.
	Exec(ctx context.Context, stmt string) error

	// Stop terminates the background process. It is safe to call when the
	// process is already dead, and must not hang indefinitely: a short
	// grace period followed by forced termination is acceptable.
	Stop(ctx context.Context) error
}

// SchemaExtractionTool decomposes a live database's structure into a
// file-based project representation under targetDir.
type SchemaExtractionTool interface {
	Extract(ctx context.Context, conn ConnectionInfo, targetDir string) error
}

// BuildTool compiles and packages an extracted project.
type BuildTool interface {
	// Build compiles the project, stamping version into all
	// version-bearing fields, and returns the primary build product path.
	Build(ctx context.Context, projectPath, version string) (binaryPath string, err error)

	// Package produces a distributable package for the project under
	// outDir and returns its path.
	Package(ctx context.Context, projectPath, version, outDir string) (packagePath string, err error)
}

// ModelGeneratorTool generates a code model from a compiled artifact and a
// resolved generator config.
type ModelGeneratorTool interface {
	Generate(ctx context.Context, binaryPath string, config *GeneratorConfig, projectDir string) error
}

// HTTPFetcher retrieves remote resources. Implementations may relax
// certificate validation when the run is configured with insecure
// transport.
type HTTPFetcher interface {
	Get(ctx context.Context, url string) ([]byte, error)
}
