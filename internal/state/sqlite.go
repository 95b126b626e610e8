// Package state persists pipeline run and stage history in SQLite.
package state

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver (pure Go)

	"github.com/leapstack-labs/sqlforge/pkg/core"
)

// SQLiteStore implements core.Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite state store instance.
func NewSQLiteStore(logger *slog.Logger) *SQLiteStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SQLiteStore{logger: logger}
}

// Open opens a connection to the SQLite database.
// Use ":memory:" for an in-memory database.
func (s *SQLiteStore) Open(path string) error {
	dsn := path
	if path != ":memory:" {
		dsn = fmt.Sprintf("%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	s.db = db
	s.path = path
	return nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// generateID creates a new UUID.
func generateID() string {
	return uuid.New().String()
}

// CreateRun creates a new pipeline run record.
func (s *SQLiteStore) CreateRun(databaseName, version string) (*core.Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	run := &core.Run{
		ID:           generateID(),
		DatabaseName: databaseName,
		Version:      version,
		Status:       core.RunStatusRunning,
		StartedAt:    time.Now().UTC(),
	}

	s.logger.Debug("creating run", "id", run.ID, "database", databaseName, "version", version)

	_, err := s.db.Exec(
		`INSERT INTO runs (id, database_name, version, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.DatabaseName, run.Version, string(run.Status), run.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	return run, nil
}

// GetRun retrieves a run by ID.
func (s *SQLiteStore) GetRun(id string) (*core.Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	run := &core.Run{}
	var completedAt sql.NullTime
	var errMsg sql.NullString
	var status string

	err := s.db.QueryRow(
		`SELECT id, database_name, version, status, started_at, completed_at, error
		 FROM runs WHERE id = ?`, id,
	).Scan(&run.ID, &run.DatabaseName, &run.Version, &status, &run.StartedAt, &completedAt, &errMsg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	run.Status = core.RunStatus(status)
	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}
	if errMsg.Valid {
		run.Error = errMsg.String
	}
	return run, nil
}

// CompleteRun marks a run as finished with the given status.
func (s *SQLiteStore) CompleteRun(id string, status core.RunStatus, errMsg string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	now := time.Now().UTC()
	var errPtr *string
	if errMsg != "" {
		errPtr = &errMsg
	}

	_, err := s.db.Exec(
		`UPDATE runs SET status = ?, completed_at = ?, error = ? WHERE id = ?`,
		string(status), now, errPtr, id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	return nil
}

// ListRuns retrieves the most recent runs up to the given limit.
func (s *SQLiteStore) ListRuns(limit int) ([]*core.Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.Query(
		`SELECT id, database_name, version, status, started_at, completed_at, error
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*core.Run
	for rows.Next() {
		run := &core.Run{}
		var completedAt sql.NullTime
		var errMsg sql.NullString
		var status string
		if err := rows.Scan(&run.ID, &run.DatabaseName, &run.Version, &status,
			&run.StartedAt, &completedAt, &errMsg); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.Status = core.RunStatus(status)
		if completedAt.Valid {
			run.CompletedAt = &completedAt.Time
		}
		if errMsg.Valid {
			run.Error = errMsg.String
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// RecordStage inserts a stage record, filling in ID, status and start time.
func (s *SQLiteStore) RecordStage(stage *core.StageRun) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	if stage.ID == "" {
		stage.ID = generateID()
	}
	if stage.Status == "" {
		stage.Status = core.StageStatusRunning
	}
	if stage.StartedAt.IsZero() {
		stage.StartedAt = time.Now().UTC()
	}

	_, err := s.db.Exec(
		`INSERT INTO stage_runs (id, run_id, stage, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		stage.ID, stage.RunID, stage.Stage, string(stage.Status), stage.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record stage: %w", err)
	}
	return nil
}

// CompleteStage marks a stage as finished with the given status.
func (s *SQLiteStore) CompleteStage(id string, status core.StageStatus, errMsg string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	now := time.Now().UTC()
	var errPtr *string
	if errMsg != "" {
		errPtr = &errMsg
	}

	_, err := s.db.Exec(
		`UPDATE stage_runs SET status = ?, completed_at = ?, error = ? WHERE id = ?`,
		string(status), now, errPtr, id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete stage: %w", err)
	}
	return nil
}

// GetStagesForRun retrieves all stage records for a run in start order.
func (s *SQLiteStore) GetStagesForRun(runID string) ([]*core.StageRun, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.Query(
		`SELECT id, run_id, stage, status, started_at, completed_at, error
		 FROM stage_runs WHERE run_id = ? ORDER BY started_at ASC, rowid ASC`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get stages: %w", err)
	}
	defer rows.Close()

	var stages []*core.StageRun
	for rows.Next() {
		stage := &core.StageRun{}
		var completedAt sql.NullTime
		var errMsg sql.NullString
		var status string
		if err := rows.Scan(&stage.ID, &stage.RunID, &stage.Stage, &status,
			&stage.StartedAt, &completedAt, &errMsg); err != nil {
			return nil, fmt.Errorf("failed to scan stage: %w", err)
		}
		stage.Status = core.StageStatus(status)
		if completedAt.Valid {
			stage.CompletedAt = &completedAt.Time
		}
		if errMsg.Valid {
			stage.Error = errMsg.String
		}
		stages = append(stages, stage)
	}
	return stages, rows.Err()
}
