package dbserver

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newMockedService returns a Service whose connection pool is backed by
// sqlmock, skipping the real engine process entirely.
func newMockedService(t *testing.T) (*Service, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	svc := New(Config{GracePeriod: time.Second})
	svc.db = db
	return svc, mock
}

func TestQuery_MaterializesRows(t *testing.T) {
	svc, mock := newMockedService(t)

	mock.ExpectQuery("SELECT name FROM sys.schemas").WillReturnRows(
		sqlmock.NewRows([]string{"name"}).AddRow("acct").AddRow("ops"))

	rs, err := svc.Query(context.Background(), "SELECT name FROM sys.schemas")
	require.NoError(t, err)
	assert.Equal(t, []string{"name"}, rs.Columns)
	require.Len(t, rs.Rows, 2)
	assert.Equal(t, "acct", rs.Rows[0][0])
	assert.Equal(t, "ops", rs.Rows[1][0])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuery_NullsBecomeEmptyStrings(t *testing.T) {
	svc, mock := newMockedService(t)

	mock.ExpectQuery("RESTORE FILELISTONLY").WillReturnRows(
		sqlmock.NewRows([]string{"LogicalName", "Type"}).AddRow(nil, "D"))

	rs, err := svc.Query(context.Background(), "RESTORE FILELISTONLY FROM DISK = N'x'")
	require.NoError(t, err)
	require.Len(t, rs.Rows, 1)
	assert.Equal(t, "", rs.Rows[0][0])
	assert.Equal(t, "D", rs.Rows[0][1])
}

func TestExec(t *testing.T) {
	svc, mock := newMockedService(t)

	mock.ExpectExec("RESTORE DATABASE").WillReturnResult(sqlmock.NewResult(0, 0))

	err := svc.Exec(context.Background(), "RESTORE DATABASE [Sales] FROM DISK = N'x'")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProbe_ReturnsDiagnosticsOnFailure(t *testing.T) {
	svc, mock := newMockedService(t)

	mock.ExpectQuery("SELECT 1").WillReturnError(assert.AnError)

	diag, err := svc.Probe(context.Background())
	require.Error(t, err)
	assert.Contains(t, diag, assert.AnError.Error())
}

func TestStop_NoProcessIsNoop(t *testing.T) {
	svc := New(Config{GracePeriod: time.Second})
	require.NoError(t, svc.Stop(context.Background()))
	// A second call is equally harmless.
	require.NoError(t, svc.Stop(context.Background()))
}
