package executor

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talkdata-labs/talkdata/internal/datasource"
	"github.com/talkdata-labs/talkdata/internal/testutil"
)

// mockSource adapts a sqlmock database to the DataSource interface.
type mockSource struct {
	db *sql.DB
}

func (m *mockSource) Connect(ctx context.Context, cfg datasource.Config) error { return nil }
func (m *mockSource) Close() error                                             { return m.db.Close() }
func (m *mockSource) DB() *sql.DB                                              { return m.db }
func (m *mockSource) Kind() string                                             { return "mock" }

func TestExecuteUsesReadOnlyTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM t").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)).AddRow(int64(2)))
	mock.ExpectRollback()

	exec := New(10, time.Second, testutil.NewTestLogger(t))
	out, err := exec.Execute(context.Background(), &mockSource{db: db}, "SELECT id FROM t")
	require.NoError(t, err)

	assert.Equal(t, [][]string{{"1"}, {"2"}}, out.Rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteFallsBackWhenTransactionsUnsupported(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin().WillReturnError(errors.New("transactions not supported"))
	mock.ExpectQuery("SELECT id FROM t").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	exec := New(10, time.Second, testutil.NewTestLogger(t))
	out, err := exec.Execute(context.Background(), &mockSource{db: db}, "SELECT id FROM t")
	require.NoError(t, err)

	assert.Equal(t, [][]string{{"7"}}, out.Rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteRollsBackOnQueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT boom").WillReturnError(errors.New(`syntax error at "boom"`))
	mock.ExpectRollback()

	exec := New(10, time.Second, testutil.NewTestLogger(t))
	_, err = exec.Execute(context.Background(), &mockSource{db: db}, "SELECT boom")
	require.Error(t, err)

	var execErr *Error
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, KindSyntax, execErr.Kind)
	assert.NoError(t, mock.ExpectationsWereMet())
}
