// Package config provides configuration management for the sqlforge CLI.
//
// Configuration is layered: defaults, then an optional sqlforge.yaml file,
// then SQLFORGE_-prefixed environment variables, then explicit CLI flags.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/leapstack-labs/sqlforge/pkg/core"
)

// Config holds all CLI configuration options.
type Config struct {
	DatabaseName string `koanf:"database_name"`
	Version      string `koanf:"version"`

	BackupFile string `koanf:"backup_file"`
	BackupURL  string `koanf:"backup_url"`

	OutputDir string `koanf:"output_dir"`
	StatePath string `koanf:"state_path"`
	DataDir   string `koanf:"data_dir"`

	Host string `koanf:"host"`
	Port int    `koanf:"port"`

	// SAPasswordFile is the secret channel for the SA credential; when the
	// file exists its contents win over the plaintext SAPassword fallback.
	SAPasswordFile string `koanf:"sa_password_file"`
	SAPassword     string `koanf:"sa_password"`

	EfcptConfigFile string `koanf:"efcpt_config_file"`
	EfcptConfigURL  string `koanf:"efcpt_config_url"`

	GeneratorToolVersion  string `koanf:"generator_tool_version"`
	ModelFrameworkVersion string `koanf:"model_framework_version"`

	ImageRepository string `koanf:"image_repository"`
	CommitSHA       string `koanf:"commit_sha"`

	Insecure bool `koanf:"insecure"`
	Verbose  bool `koanf:"verbose"`
}

// Default configuration values.
const (
	DefaultOutputDir = "out"
	DefaultStateFile = ".sqlforge/state.db"
	DefaultHost      = "localhost"
	DefaultPort      = 1433
)

// Validate checks that the configuration can drive a build.
func (c *Config) Validate() error {
	if c.DatabaseName == "" {
		return fmt.Errorf("database_name is required")
	}
	if c.Version == "" {
		return fmt.Errorf("version is required")
	}
	if c.BackupFile == "" && c.BackupURL == "" {
		return fmt.Errorf("either backup_file or backup_url is required")
	}
	return nil
}

// ResolvePassword returns the SA credential. The secret file takes
// priority over the plaintext value.
func (c *Config) ResolvePassword() (string, error) {
	if c.SAPasswordFile != "" {
		body, err := os.ReadFile(c.SAPasswordFile)
		if err == nil {
			return strings.TrimSpace(string(body)), nil
		}
		if c.SAPassword == "" {
			return "", fmt.Errorf("failed to read password file %s: %w", c.SAPasswordFile, err)
		}
	}
	if c.SAPassword == "" {
		return "", fmt.Errorf("no SA password configured")
	}
	return c.SAPassword, nil
}

// BuildContext derives the pipeline build context from the configuration.
func (c *Config) BuildContext() (*core.BuildContext, error) {
	password, err := c.ResolvePassword()
	if err != nil {
		return nil, err
	}
	return &core.BuildContext{
		DatabaseName:          c.DatabaseName,
		BackupLocalFile:       c.BackupFile,
		BackupRemoteURL:       c.BackupURL,
		Version:               c.Version,
		GeneratorToolVersion:  c.GeneratorToolVersion,
		ModelFrameworkVersion: c.ModelFrameworkVersion,
		OutputRoot:            c.OutputDir,
		GeneratorConfigFile:   c.EfcptConfigFile,
		GeneratorConfigURL:    c.EfcptConfigURL,
		Password:              password,
		RepositoryLabel:       c.ImageRepository,
		CommitSHA:             c.CommitSHA,
		InsecureTransport:     c.Insecure,
	}, nil
}

// Connection derives the engine connection info from the configuration.
func (c *Config) Connection(password string) core.ConnectionInfo {
	return core.ConnectionInfo{
		Host:     c.Host,
		Port:     c.Port,
		User:     "sa",
		Password: password,
	}
}
