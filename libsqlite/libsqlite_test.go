package libsqlite

import (
	"bytes"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ninjasync/nxsqlite/sqliteh"
)

func openTestDB(t testing.TB) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path, sqliteh.OpenFlagsDefault, "")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Error(err)
		}
	})
	return db
}

func exec(t testing.TB, db *DB, query string) {
	t.Helper()
	stmt, _, err := db.Prepare(query, 0)
	if err != nil {
		t.Fatalf("%s: %v", query, err)
	}
	defer stmt.Finalize()
	if _, err := stmt.Step(); err != nil {
		t.Fatalf("%s: %v", query, err)
	}
}

func TestBindAndColumns(t *testing.T) {
	db := openTestDB(t)
	exec(t, db, "CREATE TABLE t (i INTEGER, f REAL, s TEXT, b BLOB, n)")

	stmt, _, err := db.Prepare("INSERT INTO t VALUES (?, ?, ?, ?, ?)", sqliteh.SQLITE_PREPARE_PERSISTENT)
	if err != nil {
		t.Fatal(err)
	}
	if got := stmt.BindParameterCount(); got != 5 {
		t.Fatalf("BindParameterCount=%d, want 5", got)
	}
	if err := stmt.BindInt64(1, -42); err != nil {
		t.Fatal(err)
	}
	if err := stmt.BindDouble(2, 1.5); err != nil {
		t.Fatal(err)
	}
	if err := stmt.BindText64(3, "héllo"); err != nil {
		t.Fatal(err)
	}
	if err := stmt.BindBlob64(4, []byte{0, 1, 2}); err != nil {
		t.Fatal(err)
	}
	if err := stmt.BindNull(5); err != nil {
		t.Fatal(err)
	}
	if row, err := stmt.Step(); err != nil || row {
		t.Fatalf("Step=%v, %v", row, err)
	}
	if got := db.Changes(); got != 1 {
		t.Errorf("Changes=%d, want 1", got)
	}
	if got := db.LastInsertRowid(); got != 1 {
		t.Errorf("LastInsertRowid=%d, want 1", got)
	}
	if err := stmt.Finalize(); err != nil {
		t.Fatal(err)
	}

	stmt, _, err = db.Prepare("SELECT i, f, s, b, n FROM t", 0)
	if err != nil {
		t.Fatal(err)
	}
	defer stmt.Finalize()
	if row, err := stmt.Step(); err != nil || !row {
		t.Fatalf("Step=%v, %v", row, err)
	}
	if got := stmt.ColumnCount(); got != 5 {
		t.Fatalf("ColumnCount=%d", got)
	}
	wantTypes := []sqliteh.ColumnType{
		sqliteh.SQLITE_INTEGER,
		sqliteh.SQLITE_FLOAT,
		sqliteh.SQLITE_TEXT,
		sqliteh.SQLITE_BLOB,
		sqliteh.SQLITE_NULL,
	}
	for i, want := range wantTypes {
		if got := stmt.ColumnType(i); got != want {
			t.Errorf("ColumnType(%d)=%v, want %v", i, got, want)
		}
	}
	if got := stmt.ColumnName(2); got != "s" {
		t.Errorf("ColumnName(2)=%q", got)
	}
	if got := stmt.ColumnDeclType(1); got != "REAL" {
		t.Errorf("ColumnDeclType(1)=%q", got)
	}
	if got := stmt.ColumnInt64(0); got != -42 {
		t.Errorf("ColumnInt64=%d", got)
	}
	if got := stmt.ColumnDouble(1); got != 1.5 {
		t.Errorf("ColumnDouble=%v", got)
	}
	if got := stmt.ColumnText(2); got != "héllo" {
		t.Errorf("ColumnText=%q", got)
	}
	if got := stmt.ColumnBlob(3); !bytes.Equal(got, []byte{0, 1, 2}) {
		t.Errorf("ColumnBlob=%v", got)
	}
	if row, err := stmt.Step(); err != nil || row {
		t.Fatalf("second Step=%v, %v", row, err)
	}
}

func TestEmptyBlobIsNotNull(t *testing.T) {
	db := openTestDB(t)
	stmt, _, err := db.Prepare("SELECT ?", 0)
	if err != nil {
		t.Fatal(err)
	}
	defer stmt.Finalize()
	if err := stmt.BindBlob64(1, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := stmt.Step(); err != nil {
		t.Fatal(err)
	}
	if got := stmt.ColumnType(0); got != sqliteh.SQLITE_BLOB {
		t.Fatalf("ColumnType=%v, want SQLITE_BLOB", got)
	}
	if got := stmt.ColumnBlob(0); got == nil || len(got) != 0 {
		t.Fatalf("ColumnBlob=%#v, want empty non-nil", got)
	}
}

func TestRebindReleasesMemory(t *testing.T) {
	db := openTestDB(t)
	s0, _, err := db.Prepare("SELECT ?", 0)
	if err != nil {
		t.Fatal(err)
	}
	stmt := s0.(*Stmt)
	defer stmt.Finalize()

	for _, s := range []string{"a", "bb", "ccc"} {
		if err := stmt.BindText64(1, s); err != nil {
			t.Fatal(err)
		}
		if len(stmt.allocs) != 1 {
			t.Fatalf("allocs=%d after binding %q", len(stmt.allocs), s)
		}
		if _, err := stmt.Step(); err != nil {
			t.Fatal(err)
		}
		if got := stmt.ColumnText(0); got != s {
			t.Errorf("got %q, want %q", got, s)
		}
		if err := stmt.Reset(); err != nil {
			t.Fatal(err)
		}
	}
	if err := stmt.ClearBindings(); err != nil {
		t.Fatal(err)
	}
	if len(stmt.allocs) != 0 {
		t.Errorf("allocs=%d after ClearBindings", len(stmt.allocs))
	}
}

func TestPrepareRemaining(t *testing.T) {
	db := openTestDB(t)
	stmt, rem, err := db.Prepare("SELECT 1; SELECT 2;", 0)
	if err != nil {
		t.Fatal(err)
	}
	defer stmt.Finalize()
	if rem != " SELECT 2;" {
		t.Errorf("remaining=%q", rem)
	}
	if got := stmt.SQL(); got != "SELECT 1;" {
		t.Errorf("SQL=%q", got)
	}

	stmt, rem, err = db.Prepare("  -- nothing here", 0)
	if err != nil {
		t.Fatal(err)
	}
	if stmt != nil {
		t.Errorf("comment-only query prepared a statement")
	}
	if rem != "" {
		t.Errorf("remaining=%q", rem)
	}
}

func TestErrors(t *testing.T) {
	db := openTestDB(t)
	_, _, err := db.Prepare("SELEKT 1", 0)
	if err == nil {
		t.Fatal("want syntax error")
	}
	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("err=%T, want *Error", err)
	}
	if e.Code != sqliteh.SQLITE_ERROR {
		t.Errorf("Code=%v", e.Code)
	}
	if !errors.Is(err, sqliteh.ErrCode(sqliteh.SQLITE_ERROR)) {
		t.Errorf("errors.Is(SQLITE_ERROR) false for %v", err)
	}

	exec(t, db, "CREATE TABLE u (id INTEGER PRIMARY KEY, v TEXT UNIQUE)")
	exec(t, db, "INSERT INTO u (v) VALUES ('x')")
	stmt, _, err := db.Prepare("INSERT INTO u (v) VALUES ('x')", 0)
	if err != nil {
		t.Fatal(err)
	}
	defer stmt.Finalize()
	_, err = stmt.Step()
	if !errors.Is(err, sqliteh.ErrCode(sqliteh.SQLITE_CONSTRAINT_UNIQUE)) {
		t.Errorf("err=%v, want SQLITE_CONSTRAINT_UNIQUE", err)
	}
	if got := db.ExtendedErrCode(); got != sqliteh.SQLITE_CONSTRAINT_UNIQUE {
		t.Errorf("ExtendedErrCode=%v", got)
	}
}

func TestOpenFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "nope.db")
	db, err := Open(path, sqliteh.SQLITE_OPEN_READWRITE, "")
	if err == nil {
		db.Close()
		t.Fatal("want error opening a file in a missing directory")
	}
	if db != nil {
		t.Errorf("failed Open returned a handle")
	}
	if !errors.Is(err, sqliteh.ErrCode(sqliteh.SQLITE_CANTOPEN)) {
		t.Errorf("err=%v, want SQLITE_CANTOPEN", err)
	}
}

func TestSharedHandle(t *testing.T) {
	db := openTestDB(t)
	exec(t, db, "CREATE TABLE c (n INTEGER)")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			stmt, _, err := db.Prepare("INSERT INTO c VALUES (?)", 0)
			if err != nil {
				t.Error(err)
				return
			}
			defer stmt.Finalize()
			for j := 0; j < 25; j++ {
				if err := stmt.BindInt64(1, int64(i*100+j)); err != nil {
					t.Error(err)
					return
				}
				if _, err := stmt.Step(); err != nil {
					t.Error(err)
					return
				}
				if err := stmt.Reset(); err != nil {
					t.Error(err)
					return
				}
			}
		}(i)
	}
	wg.Wait()

	stmt, _, err := db.Prepare("SELECT count(*) FROM c", 0)
	if err != nil {
		t.Fatal(err)
	}
	defer stmt.Finalize()
	if _, err := stmt.Step(); err != nil {
		t.Fatal(err)
	}
	if got := stmt.ColumnInt64(0); got != 200 {
		t.Errorf("count=%d, want 200", got)
	}
}
