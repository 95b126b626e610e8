// Package core defines the shared types and capability contracts for the
// sqlforge build pipeline. The orchestration code in internal/pipeline is
// written against these types only; concrete tool integrations live in
// internal/ packages.
package core

import "path/filepath"

// BuildContext is the process-wide configuration for one pipeline run.
// It is constructed once by the CLI, validated, and passed by reference
// through every stage. It is never mutated after the pipeline starts.
type BuildContext struct {
	// DatabaseName is the name of the database to restore and build from.
	DatabaseName string

	// BackupLocalFile is the path to a local backup file. Takes priority
	// over BackupRemoteURL when the file exists.
	BackupLocalFile string

	// BackupRemoteURL is the URL to download the backup from when no
	// usable local file is present.
	BackupRemoteURL string

	// Version is the version string stamped into every produced artifact.
	Version string

	// GeneratorToolVersion is the version of the external model generator tool.
	GeneratorToolVersion string

	// ModelFrameworkVersion is the target framework version for the
	// generated model project.
	ModelFrameworkVersion string

	// OutputRoot is the root directory all artifacts are written under.
	OutputRoot string

	// GeneratorConfigFile is an optional local generator config file.
	// Mutually exclusive with GeneratorConfigURL.
	GeneratorConfigFile string

	// GeneratorConfigURL is an optional remote generator config URL.
	GeneratorConfigURL string

	// Password is the SA credential for the restored instance. Populated
	// from the secret channel when available, else the plaintext fallback.
	Password string

	// RepositoryLabel is free-text metadata recorded in the manifest as
	// the image repository. Not validated.
	RepositoryLabel string

	// CommitSHA identifies the source revision that produced this build.
	// Empty when not running in CI.
	CommitSHA string

	// InsecureTransport relaxes certificate validation for outbound
	// fetches. Defaults to false.
	InsecureTransport bool
}

// DistDir returns the distribution directory artifacts are copied into.
func (c *BuildContext) DistDir() string {
	return filepath.Join(c.OutputRoot, "dist")
}

// ProjectDir returns the directory the extracted SQL project lives in.
func (c *BuildContext) ProjectDir() string {
	return filepath.Join(c.OutputRoot, c.DatabaseName+".Database")
}

// ModelProjectName returns the name of the generated EF Core project.
func (c *BuildContext) ModelProjectName() string {
	return c.DatabaseName + ".Data"
}

// ModelProjectDir returns the directory the generated model project lives in.
func (c *BuildContext) ModelProjectDir() string {
	return filepath.Join(c.OutputRoot, c.ModelProjectName())
}

// RestoreSpec carries everything the restore operation needs. The logical
// names are discovered from the backup's file list, never configured.
type RestoreSpec struct {
	DatabaseName       string
	BackupFilePath     string
	DataLogicalName    string
	LogLogicalName     string
	DataFileTargetPath string
	LogFileTargetPath  string
}
