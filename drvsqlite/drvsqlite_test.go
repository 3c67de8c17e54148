package drvsqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ninjasync/nxsqlite/internal/testutil"
	"github.com/ninjasync/nxsqlite/sqlitepool"
	"github.com/ninjasync/nxsqlite/sqliteh"
	"github.com/ninjasync/nxsqlite/sqlvalue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	sqldb, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	conn, err := sqldb.Conn(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() {
		conn.Close()
		sqldb.Close()
	})
	return New(conn), mock
}

func TestDSN(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		flags    sqliteh.OpenFlags
		vfs      string
		want     string
	}{
		{"default", "/tmp/a.db", sqliteh.OpenFlagsDefault, "", "file:/tmp/a.db?mode=rwc"},
		{"read only", "/tmp/a.db", sqliteh.SQLITE_OPEN_READONLY, "", "file:/tmp/a.db?mode=ro"},
		{"read write", "/tmp/a.db", sqliteh.SQLITE_OPEN_READWRITE, "", "file:/tmp/a.db?mode=rw"},
		{"escaped", "/tmp/a b#.db", sqliteh.SQLITE_OPEN_READWRITE, "", "file:/tmp/a%20b%23.db?mode=rw"},
		{"memory", ":memory:", sqliteh.OpenFlagsDefault, "", "file::memory:?mode=rwc"},
		{"uri keeps mode", "file:x?mode=memory", sqliteh.OpenFlagsDefault, "", "file:x?mode=memory"},
		{"shared cache vfs", "a.db", sqliteh.OpenFlagsDefault | sqliteh.SQLITE_OPEN_SHAREDCACHE, "memdb", "file:a.db?cache=shared&mode=rwc&vfs=memdb"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DSN(tt.filename, tt.flags, tt.vfs))
		})
	}
}

func TestSplitStatement(t *testing.T) {
	tests := []struct {
		query, first, rest string
	}{
		{"SELECT 1", "SELECT 1", ""},
		{"SELECT 1; SELECT 2;", "SELECT 1;", " SELECT 2;"},
		{"SELECT ';' AS \"a;b\"; x", "SELECT ';' AS \"a;b\";", " x"},
		{"SELECT 1 -- ;\n; x", "SELECT 1 -- ;\n;", " x"},
		{"SELECT /* ; */ 1; x", "SELECT /* ; */ 1;", " x"},
		{"SELECT [a;b] FROM t; x", "SELECT [a;b] FROM t;", " x"},
		{
			"CREATE TRIGGER tr AFTER INSERT ON t BEGIN UPDATE t SET a=1; DELETE FROM u; END; SELECT 1",
			"CREATE TRIGGER tr AFTER INSERT ON t BEGIN UPDATE t SET a=1; DELETE FROM u; END;",
			" SELECT 1",
		},
		{
			"CREATE TEMP TRIGGER tr INSTEAD OF UPDATE ON v BEGIN SELECT 1; END ; x",
			"CREATE TEMP TRIGGER tr INSTEAD OF UPDATE ON v BEGIN SELECT 1; END ;",
			" x",
		},
		{"SELECT trigger_name FROM x; y", "SELECT trigger_name FROM x;", " y"},
		{"SELECT 'unterminated;", "SELECT 'unterminated;", ""},
	}
	for _, tt := range tests {
		first, rest := splitStatement(tt.query)
		assert.Equal(t, tt.first, first, tt.query)
		assert.Equal(t, tt.rest, rest, tt.query)
	}
}

func TestIsBlank(t *testing.T) {
	assert.True(t, isBlank(""))
	assert.True(t, isBlank("  -- only a comment"))
	assert.True(t, isBlank("/* a */ -- b\n  "))
	assert.False(t, isBlank("-- c\nSELECT 1"))
	assert.False(t, isBlank("/* a */ SELECT 1"))
}

func TestMockQuery(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectPrepare("SELECT id, name, score, data, at FROM t WHERE id > ?").
		ExpectQuery().
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "score", "data", "at"}).
			AddRow(int64(2), "two", 2.5, []byte{1, 2}, time.Date(2024, 2, 29, 10, 15, 30, 0, time.UTC)).
			AddRow(int64(3), nil, "12abc", nil, "x"))

	stmt, rest, err := db.Prepare("SELECT id, name, score, data, at FROM t WHERE id > ?", 0)
	require.NoError(t, err)
	assert.Empty(t, rest)
	assert.Equal(t, db, stmt.DBHandle())
	require.NoError(t, stmt.BindInt64(1, 1))
	assert.Equal(t, 1, stmt.BindParameterCount())

	row, err := stmt.Step()
	require.NoError(t, err)
	require.True(t, row)
	assert.Equal(t, 5, stmt.ColumnCount())
	assert.Equal(t, "name", stmt.ColumnName(1))
	assert.Equal(t, sqliteh.SQLITE_INTEGER, stmt.ColumnType(0))
	assert.Equal(t, int64(2), stmt.ColumnInt64(0))
	assert.Equal(t, sqliteh.SQLITE_TEXT, stmt.ColumnType(1))
	assert.Equal(t, "two", stmt.ColumnText(1))
	assert.Equal(t, sqliteh.SQLITE_FLOAT, stmt.ColumnType(2))
	assert.Equal(t, int64(2), stmt.ColumnInt64(2))
	assert.Equal(t, sqliteh.SQLITE_BLOB, stmt.ColumnType(3))
	assert.Equal(t, []byte{1, 2}, stmt.ColumnBlob(3))
	assert.Equal(t, sqliteh.SQLITE_TEXT, stmt.ColumnType(4))
	assert.Equal(t, "2024-02-29T10:15:30Z", stmt.ColumnText(4))

	row, err = stmt.Step()
	require.NoError(t, err)
	require.True(t, row)
	assert.Equal(t, sqliteh.SQLITE_NULL, stmt.ColumnType(1))
	assert.Equal(t, "", stmt.ColumnText(1))
	assert.Equal(t, int64(12), stmt.ColumnInt64(2))
	assert.Equal(t, 12.0, stmt.ColumnDouble(2))
	assert.Nil(t, stmt.ColumnBlob(3))

	// Codec rules hold over this engine too.
	v, err := sqlvalue.Codec{}.Decode(stmt, 4, sqlvalue.TypeFloat64)
	require.NoError(t, err)
	assert.True(t, v.Float64() != v.Float64(), "want NaN, got %v", v)

	row, err = stmt.Step()
	require.NoError(t, err)
	assert.False(t, row)

	require.NoError(t, stmt.Finalize())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMockErrors(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectPrepare("SELEKT").WillReturnError(errors.New("near \"SELEKT\": syntax error"))

	_, _, err := db.Prepare("SELEKT", 0)
	var de *Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, sqliteh.SQLITE_ERROR, de.Code)
	assert.True(t, errors.Is(err, sqliteh.ErrCode(sqliteh.SQLITE_ERROR)))
	assert.Equal(t, `near "SELEKT": syntax error`, db.ErrMsg())

	stmt, _, err := db.Prepare("-- nothing", 0)
	require.NoError(t, err)
	assert.Nil(t, stmt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMockReset(t *testing.T) {
	db, mock := newMock(t)
	prep := mock.ExpectPrepare("INSERT INTO t (a) VALUES (?)")
	prep.ExpectQuery().WithArgs("x").WillReturnRows(sqlmock.NewRows(nil))
	prep.ExpectQuery().WithArgs("y").WillReturnRows(sqlmock.NewRows(nil))

	stmt, _, err := db.Prepare("INSERT INTO t (a) VALUES (?)", 0)
	require.NoError(t, err)
	for _, v := range []string{"x", "y"} {
		require.NoError(t, stmt.BindText64(1, v))
		row, err := stmt.Step()
		require.NoError(t, err)
		assert.False(t, row)
		require.NoError(t, stmt.Reset())
		require.NoError(t, stmt.ClearBindings())
		assert.Zero(t, stmt.BindParameterCount())
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestRegistry runs the pool over this engine with the real driver.
func TestRegistry(t *testing.T) {
	reg := sqlitepool.NewRegistry(sqlitepool.Options{
		Open:   OpenFunc,
		Logger: testutil.NewTestLogger(t),
	})
	path := filepath.Join(t.TempDir(), "drv.db")
	db, err := reg.Acquire(path, sqliteh.OpenFlagsDefault)
	require.NoError(t, err)
	t.Cleanup(func() {
		reg.Release(db)
		_, err := reg.Purge()
		assert.NoError(t, err)
	})

	require.NoError(t, sqlitepool.ExecScript(db, `
		CREATE TABLE t (id INTEGER PRIMARY KEY, name TEXT UNIQUE, data BLOB);
		INSERT INTO t (name, data) VALUES ('a', x'0102');
	`))
	assert.Equal(t, int64(1), db.LastInsertRowid())
	assert.Equal(t, 1, db.Changes())

	stmt, _, err := db.Prepare("INSERT INTO t (name) VALUES (?)", 0)
	require.NoError(t, err)
	require.NoError(t, stmt.BindText64(1, "a"))
	_, err = stmt.Step()
	assert.True(t, errors.Is(err, sqliteh.ErrCode(sqliteh.SQLITE_CONSTRAINT)), "err = %v", err)
	assert.Contains(t, db.ErrMsg(), "UNIQUE")
	require.NoError(t, stmt.Finalize())

	stmt, _, err = db.Prepare("SELECT name, data FROM t", 0)
	require.NoError(t, err)
	assert.Equal(t, "data", stmt.ColumnName(1))
	row, err := stmt.Step()
	require.NoError(t, err)
	require.True(t, row)
	assert.Equal(t, "a", stmt.ColumnText(0))
	assert.Equal(t, []byte{1, 2}, stmt.ColumnBlob(1))
	require.NoError(t, stmt.Finalize())
}

func TestOpenError(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing", "x.db"), sqliteh.SQLITE_OPEN_READWRITE, "")
	var de *Error
	assert.ErrorAs(t, err, &de)
}

func TestGetInfo(t *testing.T) {
	info := GetInfo()
	assert.Equal(t, DriverName, info.DriverName)
	assert.Contains(t, []string{"purego", "cgo"}, info.DriverType)
}
