// Package libsqlite is a low-level interface onto the pure-Go
// translation of SQLite published as modernc.org/sqlite/lib.
//
// It wraps the C API one call per method, the same way a cgo binding
// would, so that nothing above it needs to know which engine it runs
// on. Every call on a DB, and on the statements prepared from it, is
// serialized by the DB: one handle may be shared by any number of
// goroutines.
package libsqlite

import (
	"fmt"
	"sync"
	"time"
	"unsafe"

	"github.com/ninjasync/nxsqlite/sqliteh"
	"modernc.org/libc"
	"modernc.org/libc/sys/types"
	sqlite3 "modernc.org/sqlite/lib"
)

const ptrSize = unsafe.Sizeof(uintptr(0))

// Error is a result code reported by the engine along with the
// message the engine attached to it.
type Error struct {
	Code sqliteh.Code
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Code.String()
	}
	return e.Msg + " (" + e.Code.String() + ")"
}

// Unwrap returns the sqliteh.ErrCode for e.Code.
func (e *Error) Unwrap() error { return sqliteh.CodeAsError(e.Code) }

// DB is an sqlite3* database connection object.
// https://sqlite.org/c3ref/sqlite3.html
type DB struct {
	mu  sync.Mutex // guards tls and every call through db
	tls *libc.TLS
	db  uintptr // *sqlite3.Xsqlite3
}

// Stmt is an sqlite3_stmt* prepared statement object.
// https://sqlite.org/c3ref/stmt.html
type Stmt struct {
	db   *DB
	stmt uintptr // *sqlite3.Xsqlite3_stmt

	// allocs holds the C memory bound to each parameter.
	// SQLite reads it in place until the parameter is rebound,
	// the bindings are cleared or the statement is finalized.
	allocs map[int]uintptr
}

// Open is sqlite3_open_v2.
//
// Unlike the C function, a failed open does not hand back a handle:
// it is closed here and only the error is returned.
//
// https://sqlite.org/c3ref/open.html
func Open(filename string, flags sqliteh.OpenFlags, vfs string) (_ *DB, err error) {
	db := &DB{tls: libc.NewTLS()}
	defer func() {
		if err != nil {
			if db.db != 0 {
				sqlite3.Xsqlite3_close_v2(db.tls, db.db)
			}
			db.tls.Close()
		}
	}()

	var p, s, cvfs uintptr
	defer func() {
		db.free(p)
		db.free(s)
		db.free(cvfs)
	}()

	if p, err = db.malloc(int(ptrSize)); err != nil {
		return nil, err
	}
	*(*uintptr)(unsafe.Pointer(p)) = 0
	if s, err = libc.CString(filename); err != nil {
		return nil, err
	}
	if vfs != "" {
		if cvfs, err = libc.CString(vfs); err != nil {
			return nil, err
		}
	}

	rc := sqlite3.Xsqlite3_open_v2(db.tls, s, p, int32(flags), cvfs)
	db.db = *(*uintptr)(unsafe.Pointer(p))
	if rc != sqlite3.SQLITE_OK {
		return nil, db.errorf(rc)
	}
	if rc := sqlite3.Xsqlite3_extended_result_codes(db.tls, db.db, libc.Bool32(true)); rc != sqlite3.SQLITE_OK {
		return nil, db.errorf(rc)
	}
	return db, nil
}

// Close is sqlite3_close_v2.
// https://sqlite.org/c3ref/close.html
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.db == 0 {
		return nil
	}
	if rc := sqlite3.Xsqlite3_close_v2(db.tls, db.db); rc != sqlite3.SQLITE_OK {
		return db.errorf(rc)
	}
	db.db = 0
	db.tls.Close()
	db.tls = nil
	return nil
}

// ErrMsg is sqlite3_errmsg.
// https://sqlite.org/c3ref/errcode.html
func (db *DB) ErrMsg() string {
	db.mu.Lock()
	defer db.mu.Unlock()
	return libc.GoString(sqlite3.Xsqlite3_errmsg(db.tls, db.db))
}

// Changes is sqlite3_changes.
// https://sqlite.org/c3ref/changes.html
func (db *DB) Changes() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return int(sqlite3.Xsqlite3_changes(db.tls, db.db))
}

// TotalChanges is sqlite3_total_changes.
// https://sqlite.org/c3ref/total_changes.html
func (db *DB) TotalChanges() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return int(sqlite3.Xsqlite3_total_changes(db.tls, db.db))
}

// ExtendedErrCode is sqlite3_extended_errcode.
// https://sqlite.org/c3ref/errcode.html
func (db *DB) ExtendedErrCode() sqliteh.Code {
	db.mu.Lock()
	defer db.mu.Unlock()
	return sqliteh.Code(sqlite3.Xsqlite3_extended_errcode(db.tls, db.db))
}

// LastInsertRowid is sqlite3_last_insert_rowid.
// https://sqlite.org/c3ref/last_insert_rowid.html
func (db *DB) LastInsertRowid() int64 {
	db.mu.Lock()
	defer db.mu.Unlock()
	return sqlite3.Xsqlite3_last_insert_rowid(db.tls, db.db)
}

// BusyTimeout is sqlite3_busy_timeout.
// https://www.sqlite.org/c3ref/busy_timeout.html
func (db *DB) BusyTimeout(d time.Duration) {
	db.mu.Lock()
	defer db.mu.Unlock()
	sqlite3.Xsqlite3_busy_timeout(db.tls, db.db, int32(d/time.Millisecond))
}

// Prepare is sqlite3_prepare_v3.
//
// If query holds no statement (it is empty or only a comment),
// stmt is nil and err is nil.
//
// https://www.sqlite.org/c3ref/prepare.html
func (db *DB) Prepare(query string, prepFlags sqliteh.PrepareFlags) (stmt sqliteh.Stmt, remainingQuery string, err error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	csql, err := libc.CString(query)
	if err != nil {
		return nil, "", err
	}
	defer db.free(csql)

	var ppstmt, pptail uintptr
	defer func() {
		db.free(ppstmt)
		db.free(pptail)
	}()
	if ppstmt, err = db.malloc(int(ptrSize)); err != nil {
		return nil, "", err
	}
	if pptail, err = db.malloc(int(ptrSize)); err != nil {
		return nil, "", err
	}

	rc := sqlite3.Xsqlite3_prepare_v3(db.tls, db.db, csql, int32(len(query)+1), uint32(prepFlags), ppstmt, pptail)
	if rc != sqlite3.SQLITE_OK {
		return nil, "", db.errorf(rc)
	}
	if tail := *(*uintptr)(unsafe.Pointer(pptail)); tail != 0 {
		if off := int(tail - csql); off >= 0 && off <= len(query) {
			remainingQuery = query[off:]
		}
	}
	pstmt := *(*uintptr)(unsafe.Pointer(ppstmt))
	if pstmt == 0 {
		return nil, remainingQuery, nil
	}
	return &Stmt{db: db, stmt: pstmt}, remainingQuery, nil
}

// DBHandle is sqlite3_db_handle.
// https://www.sqlite.org/c3ref/db_handle.html.
func (stmt *Stmt) DBHandle() sqliteh.DB {
	return stmt.db
}

// SQL is sqlite3_sql.
// https://www.sqlite.org/c3ref/expanded_sql.html
func (stmt *Stmt) SQL() string {
	stmt.db.mu.Lock()
	defer stmt.db.mu.Unlock()
	return libc.GoString(sqlite3.Xsqlite3_sql(stmt.db.tls, stmt.stmt))
}

// Reset is sqlite3_reset.
// https://www.sqlite.org/c3ref/reset.html
func (stmt *Stmt) Reset() error {
	stmt.db.mu.Lock()
	defer stmt.db.mu.Unlock()
	if rc := sqlite3.Xsqlite3_reset(stmt.db.tls, stmt.stmt); rc != sqlite3.SQLITE_OK {
		return stmt.db.errorf(rc)
	}
	return nil
}

// ClearBindings is sqlite3_clear_bindings.
// https://www.sqlite.org/c3ref/clear_bindings.html
func (stmt *Stmt) ClearBindings() error {
	stmt.db.mu.Lock()
	defer stmt.db.mu.Unlock()
	if rc := sqlite3.Xsqlite3_clear_bindings(stmt.db.tls, stmt.stmt); rc != sqlite3.SQLITE_OK {
		return stmt.db.errorf(rc)
	}
	stmt.freeAllocs()
	return nil
}

// Finalize is sqlite3_finalize.
// https://sqlite.org/c3ref/finalize.html
func (stmt *Stmt) Finalize() error {
	stmt.db.mu.Lock()
	defer stmt.db.mu.Unlock()
	if stmt.stmt == 0 {
		return nil
	}
	rc := sqlite3.Xsqlite3_finalize(stmt.db.tls, stmt.stmt)
	stmt.stmt = 0
	stmt.freeAllocs()
	if rc != sqlite3.SQLITE_OK {
		return stmt.db.errorf(rc)
	}
	return nil
}

// Step is sqlite3_step.
// https://www.sqlite.org/c3ref/step.html
func (stmt *Stmt) Step() (row bool, err error) {
	stmt.db.mu.Lock()
	defer stmt.db.mu.Unlock()
	switch rc := sqlite3.Xsqlite3_step(stmt.db.tls, stmt.stmt); rc {
	case sqlite3.SQLITE_ROW:
		return true, nil
	case sqlite3.SQLITE_DONE:
		return false, nil
	default:
		return false, stmt.db.errorf(rc)
	}
}

// BindDouble is sqlite3_bind_double.
// https://sqlite.org/c3ref/bind_blob.html
func (stmt *Stmt) BindDouble(col int, val float64) error {
	stmt.db.mu.Lock()
	defer stmt.db.mu.Unlock()
	rc := sqlite3.Xsqlite3_bind_double(stmt.db.tls, stmt.stmt, int32(col), val)
	return stmt.bound(col, 0, rc)
}

// BindInt64 is sqlite3_bind_int64.
// https://sqlite.org/c3ref/bind_blob.html
func (stmt *Stmt) BindInt64(col int, val int64) error {
	stmt.db.mu.Lock()
	defer stmt.db.mu.Unlock()
	rc := sqlite3.Xsqlite3_bind_int64(stmt.db.tls, stmt.stmt, int32(col), val)
	return stmt.bound(col, 0, rc)
}

// BindNull is sqlite3_bind_null.
// https://sqlite.org/c3ref/bind_blob.html
func (stmt *Stmt) BindNull(col int) error {
	stmt.db.mu.Lock()
	defer stmt.db.mu.Unlock()
	rc := sqlite3.Xsqlite3_bind_null(stmt.db.tls, stmt.stmt, int32(col))
	return stmt.bound(col, 0, rc)
}

// BindText64 is sqlite3_bind_text64.
// https://sqlite.org/c3ref/bind_blob.html
func (stmt *Stmt) BindText64(col int, val string) error {
	stmt.db.mu.Lock()
	defer stmt.db.mu.Unlock()
	p, err := libc.CString(val)
	if err != nil {
		return err
	}
	rc := sqlite3.Xsqlite3_bind_text(stmt.db.tls, stmt.stmt, int32(col), p, int32(len(val)), 0)
	return stmt.bound(col, p, rc)
}

// BindBlob64 is sqlite3_bind_blob64.
// https://sqlite.org/c3ref/bind_blob.html
func (stmt *Stmt) BindBlob64(col int, val []byte) error {
	stmt.db.mu.Lock()
	defer stmt.db.mu.Unlock()
	if len(val) == 0 {
		rc := sqlite3.Xsqlite3_bind_zeroblob(stmt.db.tls, stmt.stmt, int32(col), 0)
		return stmt.bound(col, 0, rc)
	}
	p, err := stmt.db.malloc(len(val))
	if err != nil {
		return err
	}
	copy((*libc.RawMem)(unsafe.Pointer(p))[:len(val):len(val)], val)
	rc := sqlite3.Xsqlite3_bind_blob(stmt.db.tls, stmt.stmt, int32(col), p, int32(len(val)), 0)
	return stmt.bound(col, p, rc)
}

// bound records the memory p now bound to col, releasing whatever
// was bound there before. If the bind failed p is released instead.
func (stmt *Stmt) bound(col int, p uintptr, rc int32) error {
	if rc != sqlite3.SQLITE_OK {
		stmt.db.free(p)
		return stmt.db.errorf(rc)
	}
	if old, ok := stmt.allocs[col]; ok {
		stmt.db.free(old)
		delete(stmt.allocs, col)
	}
	if p != 0 {
		if stmt.allocs == nil {
			stmt.allocs = make(map[int]uintptr)
		}
		stmt.allocs[col] = p
	}
	return nil
}

func (stmt *Stmt) freeAllocs() {
	for col, p := range stmt.allocs {
		stmt.db.free(p)
		delete(stmt.allocs, col)
	}
}

// BindParameterCount is sqlite3_bind_parameter_count.
// https://sqlite.org/c3ref/bind_parameter_count.html
func (stmt *Stmt) BindParameterCount() int {
	stmt.db.mu.Lock()
	defer stmt.db.mu.Unlock()
	return int(sqlite3.Xsqlite3_bind_parameter_count(stmt.db.tls, stmt.stmt))
}

// ColumnCount is sqlite3_column_count.
// https://sqlite.org/c3ref/column_count.html
func (stmt *Stmt) ColumnCount() int {
	stmt.db.mu.Lock()
	defer stmt.db.mu.Unlock()
	return int(sqlite3.Xsqlite3_column_count(stmt.db.tls, stmt.stmt))
}

// ColumnName is sqlite3_column_name.
// https://sqlite.org/c3ref/column_name.html
func (stmt *Stmt) ColumnName(col int) string {
	stmt.db.mu.Lock()
	defer stmt.db.mu.Unlock()
	return libc.GoString(sqlite3.Xsqlite3_column_name(stmt.db.tls, stmt.stmt, int32(col)))
}

// ColumnText is sqlite3_column_text.
// https://sqlite.org/c3ref/column_blob.html
func (stmt *Stmt) ColumnText(col int) string {
	stmt.db.mu.Lock()
	defer stmt.db.mu.Unlock()
	p := sqlite3.Xsqlite3_column_text(stmt.db.tls, stmt.stmt, int32(col))
	n := int(sqlite3.Xsqlite3_column_bytes(stmt.db.tls, stmt.stmt, int32(col)))
	if p == 0 || n == 0 {
		return ""
	}
	return string((*libc.RawMem)(unsafe.Pointer(p))[:n:n])
}

// ColumnBlob is sqlite3_column_blob.
//
// The bytes are copied out of engine memory. An empty blob is
// reported as a non-nil empty slice.
//
// https://sqlite.org/c3ref/column_blob.html
func (stmt *Stmt) ColumnBlob(col int) []byte {
	stmt.db.mu.Lock()
	defer stmt.db.mu.Unlock()
	p := sqlite3.Xsqlite3_column_blob(stmt.db.tls, stmt.stmt, int32(col))
	n := int(sqlite3.Xsqlite3_column_bytes(stmt.db.tls, stmt.stmt, int32(col)))
	if p == 0 || n == 0 {
		return []byte{}
	}
	b := make([]byte, n)
	copy(b, (*libc.RawMem)(unsafe.Pointer(p))[:n:n])
	return b
}

// ColumnDouble is sqlite3_column_double.
// https://sqlite.org/c3ref/column_blob.html
func (stmt *Stmt) ColumnDouble(col int) float64 {
	stmt.db.mu.Lock()
	defer stmt.db.mu.Unlock()
	return sqlite3.Xsqlite3_column_double(stmt.db.tls, stmt.stmt, int32(col))
}

// ColumnInt64 is sqlite3_column_int64.
// https://sqlite.org/c3ref/column_blob.html
func (stmt *Stmt) ColumnInt64(col int) int64 {
	stmt.db.mu.Lock()
	defer stmt.db.mu.Unlock()
	return sqlite3.Xsqlite3_column_int64(stmt.db.tls, stmt.stmt, int32(col))
}

// ColumnType is sqlite3_column_type.
// https://www.sqlite.org/c3ref/column_blob.html
func (stmt *Stmt) ColumnType(col int) sqliteh.ColumnType {
	stmt.db.mu.Lock()
	defer stmt.db.mu.Unlock()
	return sqliteh.ColumnType(sqlite3.Xsqlite3_column_type(stmt.db.tls, stmt.stmt, int32(col)))
}

// ColumnDeclType is sqlite3_column_decltype.
// https://sqlite.org/c3ref/column_decltype.html
func (stmt *Stmt) ColumnDeclType(col int) string {
	stmt.db.mu.Lock()
	defer stmt.db.mu.Unlock()
	return libc.GoString(sqlite3.Xsqlite3_column_decltype(stmt.db.tls, stmt.stmt, int32(col)))
}

func (db *DB) malloc(n int) (uintptr, error) {
	if p := libc.Xmalloc(db.tls, types.Size_t(n)); p != 0 || n == 0 {
		return p, nil
	}
	return 0, fmt.Errorf("libsqlite: cannot allocate %d bytes of memory", n)
}

func (db *DB) free(p uintptr) {
	if p != 0 {
		libc.Xfree(db.tls, p)
	}
}

// errorf builds an *Error for rc, attaching the connection's current
// message when it says more than the generic text for rc.
func (db *DB) errorf(rc int32) error {
	str := libc.GoString(sqlite3.Xsqlite3_errstr(db.tls, rc))
	msg := ""
	if db.db != 0 {
		msg = libc.GoString(sqlite3.Xsqlite3_errmsg(db.tls, db.db))
	}
	e := &Error{Code: sqliteh.Code(rc), Msg: str}
	if msg != "" && msg != str {
		e.Msg = str + ": " + msg
	}
	return e
}

var (
	_ sqliteh.DB   = (*DB)(nil)
	_ sqliteh.Stmt = (*Stmt)(nil)
)
