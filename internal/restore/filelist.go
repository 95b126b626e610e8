// Package restore discovers a backup's logical file names and materializes
// the backup into a running database.
package restore

import (
	"context"
	"fmt"
	"strings"

	"github.com/leapstack-labs/sqlforge/pkg/core"
)

// ResolutionError reports that the backup's file list did not yield both
// logical names. It is always a hard stop: restoring with a guessed name
// fails later with a far less diagnosable error.
type ResolutionError struct {
	BackupPath string
	Reason     string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("cannot resolve logical names from %s: %s", e.BackupPath, e.Reason)
}

// fileListRow is one typed row of the backup's file list.
type fileListRow struct {
	LogicalName string
	Type        string
}

// LogicalNames holds the discovered data and log file identifiers.
type LogicalNames struct {
	Data string
	Log  string
}

// ResolveLogicalNames issues a metadata-only query against the backup file
// and returns the logical names of its data and log files. It never
// mutates state.
func ResolveLogicalNames(ctx context.Context, db core.DatabaseService, backupPath string) (*LogicalNames, error) {
	rs, err := db.Query(ctx, fmt.Sprintf("RESTORE FILELISTONLY FROM DISK = N'%s'", escapeLiteral(backupPath)))
	if err != nil {
		return nil, &ResolutionError{BackupPath: backupPath, Reason: err.Error()}
	}

	rows, err := parseFileList(rs)
	if err != nil {
		return nil, &ResolutionError{BackupPath: backupPath, Reason: err.Error()}
	}

	names := &LogicalNames{}
	for _, row := range rows {
		switch row.Type {
		case "D":
			if names.Data == "" {
				names.Data = row.LogicalName
			}
		case "L":
			if names.Log == "" {
				names.Log = row.LogicalName
			}
		}
	}

	if names.Data == "" {
		return nil, &ResolutionError{BackupPath: backupPath, Reason: "no data file row in file list"}
	}
	if names.Log == "" {
		return nil, &ResolutionError{BackupPath: backupPath, Reason: "no log file row in file list"}
	}
	return names, nil
}

// parseFileList converts the raw result set into typed rows. An empty file
// list or a row with a blank logical name is an error, never a fallthrough
// with empty variables.
func parseFileList(rs *core.ResultSet) ([]fileListRow, error) {
	if rs.Empty() {
		return nil, fmt.Errorf("file list is empty")
	}

	nameIdx := rs.ColumnIndex("LogicalName")
	typeIdx := rs.ColumnIndex("Type")
	if nameIdx < 0 || typeIdx < 0 {
		return nil, fmt.Errorf("file list is missing LogicalName or Type column")
	}

	rows := make([]fileListRow, 0, len(rs.Rows))
	for i, raw := range rs.Rows {
		name := strings.TrimSpace(raw[nameIdx])
		fileType := strings.TrimSpace(raw[typeIdx])
		if name == "" {
			return nil, fmt.Errorf("row %d has a blank logical name", i)
		}
		rows = append(rows, fileListRow{LogicalName: name, Type: fileType})
	}
	return rows, nil
}

// escapeLiteral doubles single quotes for embedding in a T-SQL string
// literal.
func escapeLiteral(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// escapeIdentifier doubles closing brackets for embedding in a
// bracket-delimited T-SQL identifier.
func escapeIdentifier(s string) string {
	return strings.ReplaceAll(s, "]", "]]")
}
