// Package dbserver runs the SQL Server engine as a background process and
// implements the DatabaseService capability against it.
package dbserver

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	_ "github.com/microsoft/go-mssqldb" // sqlserver driver

	"github.com/leapstack-labs/sqlforge/pkg/core"
)

// engineLogTail is how much of the engine log is attached to probe
// diagnostics.
const engineLogTail = 2048

// DefaultBinaryPath is the engine executable's stock install location.
const DefaultBinaryPath = "/opt/mssql/bin/sqlservr"

// Config holds the engine process configuration.
type Config struct {
	// BinaryPath is the path to the sqlservr executable.
	BinaryPath string
	// LogPath receives the engine's stdout/stderr.
	LogPath string
	// Connection identifies the listening endpoint and credentials.
	Connection core.ConnectionInfo
	// GracePeriod bounds how long Stop waits after SIGTERM before SIGKILL.
	GracePeriod time.Duration
	// Logger is the structured logger (optional, uses discard if nil).
	Logger *slog.Logger
}

// Service implements core.DatabaseService for SQL Server.
type Service struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	cmd     *exec.Cmd
	waitCh  chan error
	logFile *os.File
	db      *sql.DB
}

// New creates a Service. The engine process is not started until Start.
func New(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.BinaryPath == "" {
		cfg.BinaryPath = DefaultBinaryPath
	}
	if cfg.GracePeriod == 0 {
		cfg.GracePeriod = 10 * time.Second
	}
	return &Service{cfg: cfg, logger: logger}
}

// Start launches the engine as a detached background process. The process
// runs alongside the orchestrator and is polled out-of-band.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cmd != nil {
		return fmt.Errorf("engine already started")
	}

	logFile, err := os.Create(s.cfg.LogPath)
	if err != nil {
		return fmt.Errorf("failed to create engine log %s: %w", s.cfg.LogPath, err)
	}

	cmd := exec.Command(s.cfg.BinaryPath)
	cmd.Env = append(os.Environ(),
		"ACCEPT_EULA=Y",
		"MSSQL_SA_PASSWORD="+s.cfg.Connection.Password,
	)
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	if err := cmd.Start(); err != nil {
		_ = logFile.Close()
		return fmt.Errorf("failed to start engine %s: %w", s.cfg.BinaryPath, err)
	}

	s.logger.Info("engine started", "pid", cmd.Process.Pid, "binary", s.cfg.BinaryPath)

	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	s.cmd = cmd
	s.waitCh = waitCh
	s.logFile = logFile
	return nil
}

// ensureDB lazily opens the driver connection pool.
func (s *Service) ensureDB() (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return s.db, nil
	}

	conn := s.cfg.Connection
	dsn := fmt.Sprintf("sqlserver://%s:%s@%s:%d?database=%s&encrypt=disable",
		conn.User, conn.Password, conn.Host, conn.Port, conn.Database)

	db, err := sql.Open("sqlserver", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlserver connection: %w", err)
	}
	s.db = db
	return db, nil
}

// Probe issues a trivial query against the engine. On failure the returned
// diagnostics carry the driver error and the tail of the engine log.
func (s *Service) Probe(ctx context.Context) (string, error) {
	db, err := s.ensureDB()
	if err != nil {
		return err.Error(), err
	}

	var one int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Sprintf("%v\n%s", err, s.logTail()), err
	}
	return "", nil
}

// logTail returns the last engineLogTail bytes of the engine log.
func (s *Service) logTail() string {
	f, err := os.Open(s.cfg.LogPath)
	if err != nil {
		return ""
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return ""
	}
	offset := info.Size() - engineLogTail
	if offset < 0 {
		offset = 0
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return ""
	}
	tail, _ := io.ReadAll(f)
	return string(tail)
}

// Query executes a statement that returns rows.
func (s *Service) Query(ctx context.Context, query string) (*core.ResultSet, error) {
	db, err := s.ensureDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	return resultSetFromRows(rows)
}

// Exec executes a statement that returns no rows.
func (s *Service) Exec(ctx context.Context, stmt string) error {
	db, err := s.ensureDB()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("exec failed: %w", err)
	}
	return nil
}

// Stop terminates the engine process: SIGTERM, a bounded grace period,
// then SIGKILL. Safe to call when the process is already dead.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	cmd := s.cmd
	waitCh := s.waitCh
	logFile := s.logFile
	db := s.db
	s.cmd = nil
	s.waitCh = nil
	s.logFile = nil
	s.db = nil
	s.mu.Unlock()

	if db != nil {
		_ = db.Close()
	}
	if logFile != nil {
		defer logFile.Close()
	}
	if cmd == nil || cmd.Process == nil {
		return nil
	}

	s.logger.Info("stopping engine", "pid", cmd.Process.Pid)

	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
		// Already gone; nothing to wait for.
		return nil
	}

	grace := time.NewTimer(s.cfg.GracePeriod)
	defer grace.Stop()

	select {
	case <-waitCh:
		return nil
	case <-grace.C:
	case <-ctx.Done():
	}

	s.logger.Warn("engine did not exit in time, killing", "pid", cmd.Process.Pid)
	_ = cmd.Process.Kill()

	// Reap the process, but never hang on shutdown.
	select {
	case <-waitCh:
	case <-time.After(2 * time.Second):
	}
	return nil
}

// resultSetFromRows materializes *sql.Rows into a ResultSet, rendering
// every value as a string and NULLs as empty strings.
func resultSetFromRows(rows *sql.Rows) (*core.ResultSet, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	rs := &core.ResultSet{Columns: cols}
	for rows.Next() {
		values := make([]sql.NullString, len(cols))
		scanTargets := make([]any, len(cols))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		row := make([]string, len(cols))
		for i, v := range values {
			if v.Valid {
				row[i] = v.String
			}
		}
		rs.Rows = append(rs.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration failed: %w", err)
	}
	return rs, nil
}
