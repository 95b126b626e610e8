package core

import "time"

// Store defines the interface for run state bookkeeping.
type Store interface {
	Open(path string) error
	Close() error
	Migrate() error

	// Run operations
	CreateRun(databaseName, version string) (*Run, error)
	GetRun(id string) (*Run, error)
	CompleteRun(id string, status RunStatus, errMsg string) error
	ListRuns(limit int) ([]*Run, error)

	// Stage operations
	RecordStage(stage *StageRun) error
	CompleteStage(id string, status StageStatus, errMsg string) error
	GetStagesForRun(runID string) ([]*StageRun, error)
}

// RunStatus represents the status of a pipeline run.
type RunStatus string

// Run status constants.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Run represents one pipeline execution.
type Run struct {
	ID           string
	DatabaseName string
	Version      string
	Status       RunStatus
	StartedAt    time.Time
	CompletedAt  *time.Time
	Error        string
}

// StageStatus represents the status of an individual pipeline stage.
type StageStatus string

// Stage status constants.
const (
	StageStatusRunning StageStatus = "running"
	StageStatusSuccess StageStatus = "success"
	StageStatusWarning StageStatus = "warning"
	StageStatusFailed  StageStatus = "failed"
)

// StageRun represents a single stage execution within a run.
type StageRun struct {
	ID          string
	RunID       string
	Stage       string
	Status      StageStatus
	StartedAt   time.Time
	CompletedAt *time.Time
	Error       string
}
