package extract

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"

	"github.com/leapstack-labs/sqlforge/pkg/core"
)

// SQLPackageTool implements core.SchemaExtractionTool by invoking the
// sqlpackage CLI against a live connection.
type SQLPackageTool struct {
	// BinaryPath is the path to the sqlpackage executable ("sqlpackage"
	// when on PATH).
	BinaryPath string
	// Logger is the structured logger (optional, uses discard if nil).
	Logger *slog.Logger
}

func (t *SQLPackageTool) binary() string {
	if t.BinaryPath == "" {
		return "sqlpackage"
	}
	return t.BinaryPath
}

// Extract runs sqlpackage in extract mode, one file per schema object.
func (t *SQLPackageTool) Extract(ctx context.Context, conn core.ConnectionInfo, targetDir string) error {
	logger := t.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	sourceConn := fmt.Sprintf(
		"Server=%s,%d;Database=%s;User Id=%s;Password=%s;TrustServerCertificate=True",
		conn.Host, conn.Port, conn.Database, conn.User, conn.Password)

	cmd := exec.CommandContext(ctx, t.binary(),
		"/Action:Extract",
		"/SourceConnectionString:"+sourceConn,
		"/TargetFile:"+targetDir,
		"/p:ExtractTarget=SchemaObjectType",
	)

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	logger.Debug("running sqlpackage", "database", conn.Database, "target", targetDir)

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("sqlpackage extract failed: %w\n%s", err, output.String())
	}
	return nil
}
