package mysql

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/joacominatel/sqlzen/internal/database"
	"github.com/joacominatel/sqlzen/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockClient(t *testing.T) (*Client, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(db, testutil.NewTestLogger(t)), mock
}

func TestClient_Query(t *testing.T) {
	tests := []struct {
		name      string
		setupMock func(mock sqlmock.Sqlmock)
		sql       string
		columns   []string
		rows      [][]database.CellValue
		expectErr bool
	}{
		{
			name: "text cells",
			setupMock: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{"id", "name"}).
					AddRow([]byte("1"), []byte("alice")).
					AddRow([]byte("2"), nil)
				mock.ExpectPrepare("SELECT id, name FROM users").WillBeClosed().ExpectQuery().WillReturnRows(rows)
			},
			sql:     "SELECT id, name FROM users",
			columns: []string{"id", "name"},
			rows: [][]database.CellValue{
				{database.Text("1"), database.Text("alice")},
				{database.Text("2"), database.Null()},
			},
		},
		{
			name: "native values are stringified",
			setupMock: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{"i", "f", "b", "s"}).
					AddRow(int64(42), 1.5, true, "txt")
				mock.ExpectPrepare("SELECT").ExpectQuery().WillReturnRows(rows)
			},
			sql:     "SELECT 42, 1.5, true, 'txt'",
			columns: []string{"i", "f", "b", "s"},
			rows: [][]database.CellValue{
				{database.Text("42"), database.Text("1.5"), database.Text("1"), database.Text("txt")},
			},
		},
		{
			name: "undecodable cell defaults to empty text",
			setupMock: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{"ok", "odd"}).
					AddRow([]byte("fine"), struct{ X int }{1})
				mock.ExpectPrepare("SELECT").ExpectQuery().WillReturnRows(rows)
			},
			sql:     "SELECT ok, odd FROM t",
			columns: []string{"ok", "odd"},
			rows: [][]database.CellValue{
				{database.Text("fine"), database.Text("")},
			},
		},
		{
			name: "zero rows keep columns",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectPrepare("SELECT").ExpectQuery().WillReturnRows(sqlmock.NewRows([]string{"a", "b"}))
			},
			sql:     "SELECT a, b FROM t WHERE 1 = 0",
			columns: []string{"a", "b"},
			rows:    [][]database.CellValue{},
		},
		{
			name: "engine failure",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectPrepare("SELEC").WillReturnError(errors.New("Error 1064 (42000): You have an error in your SQL syntax"))
			},
			sql:       "SELEC 1",
			expectErr: true,
		},
		{
			name: "row iteration failure",
			setupMock: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{"a"}).
					AddRow([]byte("1")).
					RowError(0, errors.New("connection lost"))
				mock.ExpectPrepare("SELECT").ExpectQuery().WillReturnRows(rows)
			},
			sql:       "SELECT a FROM t",
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, mock := newMockClient(t)
			tt.setupMock(mock)

			res, err := c.Query(context.Background(), tt.sql)
			if tt.expectErr {
				require.Error(t, err)
				assert.True(t, database.IsEngine(err), "want engine error, got %T", err)
				assert.NoError(t, mock.ExpectationsWereMet())
				return
			}

			require.NoError(t, err)
			require.NoError(t, res.Validate())
			assert.Equal(t, tt.columns, res.ColumnNames())
			assert.Equal(t, tt.rows, res.Rows)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestClient_UnpreparableStatementRunsAsText(t *testing.T) {
	c, mock := newMockClient(t)
	mock.ExpectPrepare("SHOW BINLOG EVENTS").WillReturnError(&mysql.MySQLError{
		Number:  errUnsupportedPS,
		Message: "This command is not supported in the prepared statement protocol yet",
	})
	mock.ExpectQuery("SHOW BINLOG EVENTS").WillReturnRows(sqlmock.NewRows([]string{"Log_name"}).AddRow([]byte("binlog.000001")))

	res, err := c.Query(context.Background(), "SHOW BINLOG EVENTS")
	require.NoError(t, err)
	assert.Equal(t, []string{"Log_name"}, res.ColumnNames())
	assert.Equal(t, [][]database.CellValue{{database.Text("binlog.000001")}}, res.Rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClient_PrepareFailureIsNotRetried(t *testing.T) {
	c, mock := newMockClient(t)
	mock.ExpectPrepare("SELECT").WillReturnError(&mysql.MySQLError{Number: 1146, Message: "Table 'app.nope' doesn't exist"})

	_, err := c.Query(context.Background(), "SELECT * FROM nope")
	require.Error(t, err)
	assert.True(t, database.IsEngine(err))
	assert.Contains(t, err.Error(), "doesn't exist")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClient_TypeIDSentinel(t *testing.T) {
	c, mock := newMockClient(t)
	mock.ExpectPrepare("SELECT").ExpectQuery().WillReturnRows(sqlmock.NewRows([]string{"a", "b"}).AddRow([]byte("1"), []byte("2")))

	res, err := c.Query(context.Background(), "SELECT 1 AS a, 2 AS b")
	require.NoError(t, err)

	for _, col := range res.Columns {
		require.NotNil(t, col.TypeID)
		assert.Equal(t, UnknownTypeID, *col.TypeID)
		assert.Nil(t, col.TypeName)
	}
}

func TestClient_Close(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.ExpectClose()

	c := New(db, nil)
	require.NoError(t, c.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTextCell(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 30, 0, 500000000, time.UTC)
	tests := []struct {
		name string
		in   any
		want database.CellValue
		ok   bool
	}{
		{"nil", nil, database.Null(), true},
		{"bytes", []byte("x"), database.Text("x"), true},
		{"uint64", uint64(18446744073709551615), database.Text("18446744073709551615"), true},
		{"float32", float32(0.25), database.Text("0.25"), true},
		{"false", false, database.Text("0"), true},
		{"time", ts, database.Text("2024-03-01 12:30:00.5"), true},
		{"unsupported", []int{1}, database.Text(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := textCell(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestConnect_MalformedDSN(t *testing.T) {
	c, err := Connect(context.Background(), "not a dsn", nil)
	require.Error(t, err)
	assert.Nil(t, c)
	assert.True(t, database.IsEngine(err))
}

func TestConnect_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := Connect(ctx, "root:secret@tcp(127.0.0.1:1)/app?timeout=2s", nil)
	require.Error(t, err)
	assert.Nil(t, c)
	assert.True(t, database.IsEngine(err))
}

func TestClient_Live(t *testing.T) {
	dsn := testutil.EnvOrSkip(t, "SQLZEN_TEST_MYSQL_DSN")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	c, err := Connect(ctx, dsn, testutil.NewTestLogger(t))
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	res, err := c.Query(ctx, "SELECT 1 AS a, 'x' AS b, NULL AS c")
	require.NoError(t, err)
	require.NoError(t, res.Validate())
	assert.Equal(t, []string{"a", "b", "c"}, res.ColumnNames())
	assert.Equal(t, []database.CellValue{database.Text("1"), database.Text("x"), database.Null()}, res.Rows[0])

	empty, err := c.Query(ctx, "SELECT 1 AS a FROM DUAL WHERE 1 = 0")
	require.NoError(t, err)
	assert.Len(t, empty.Columns, 1)
	assert.Empty(t, empty.Rows)
}
