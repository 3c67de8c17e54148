// Package drvsqlite runs nxsqlite over a database/sql SQLite driver
// instead of the built-in engine binding.
//
// By default the pure-Go driver modernc.org/sqlite is used. Build with
// the cgo_sqlite tag to use github.com/mattn/go-sqlite3:
//
//	CGO_ENABLED=1 go build -tags cgo_sqlite
//
// To use it, hand Open to a registry:
//
//	reg := sqlitepool.NewRegistry(sqlitepool.Options{Open: drvsqlite.OpenFunc})
//
// database/sql hides some of the C API. Statements run when first
// stepped or when their columns are first asked for, and rows are
// copied out one at a time. BindParameterCount only knows the
// positions bound so far. Changes and LastInsertRowid cost a query
// each.
package drvsqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ninjasync/nxsqlite/isodate"
	"github.com/ninjasync/nxsqlite/sqliteh"
)

// Error is a failure reported by the driver, with the SQLite result
// code recovered from it where the driver exposes one.
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

// DB is one database/sql connection presented as an sqliteh.DB.
// Calls are serialized.
type DB struct {
	db   *sql.DB // nil when wrapping a caller's connection
	conn *sql.Conn

	mu      sync.Mutex
	errMsg  string
	errCode sqliteh.Code
}

// Stmt is a prepared database/sql statement presented as an
// sqliteh.Stmt.
type Stmt struct {
	db    *DB
	query string
	stmt  *sql.Stmt

	args  []any // by position - 1
	rows  *sql.Rows
	types []*sql.ColumnType
	cur   []any
}

// OpenFunc is Open as an sqliteh.OpenFunc.
func OpenFunc(filename string, flags sqliteh.OpenFlags, vfs string) (sqliteh.DB, error) {
	db, err := Open(filename, flags, vfs)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// Open opens filename with the driver named by DriverName.
// The database/sql pool is limited to the one connection held by DB.
func Open(filename string, flags sqliteh.OpenFlags, vfs string) (*DB, error) {
	sqldb, err := sql.Open(DriverName, DSN(filename, flags, vfs))
	if err != nil {
		return nil, wrapErr(err)
	}
	sqldb.SetMaxOpenConns(1)
	conn, err := sqldb.Conn(context.Background())
	if err == nil {
		// Connecting is lazy in some drivers; make it report now.
		err = conn.PingContext(context.Background())
	}
	if err == nil {
		_, err = conn.ExecContext(context.Background(), "PRAGMA schema_version")
	}
	if err != nil {
		if conn != nil {
			conn.Close()
		}
		sqldb.Close()
		return nil, wrapErr(err)
	}
	return &DB{db: sqldb, conn: conn}, nil
}

// New wraps an open connection. Closing the DB closes conn.
func New(conn *sql.Conn) *DB {
	return &DB{conn: conn}
}

// DSN builds the file: URI that opens filename with flags.
func DSN(filename string, flags sqliteh.OpenFlags, vfs string) string {
	var u string
	switch {
	case strings.HasPrefix(filename, "file:"):
		u = filename
	case filename == ":memory:" || filename == "":
		u = "file::memory:"
	default:
		u = "file:" + (&url.URL{Path: filename}).EscapedPath()
	}

	q := url.Values{}
	switch {
	case flags&sqliteh.SQLITE_OPEN_MEMORY != 0:
		q.Set("mode", "memory")
	case flags&sqliteh.SQLITE_OPEN_READONLY != 0:
		q.Set("mode", "ro")
	case flags.Create():
		q.Set("mode", "rwc")
	default:
		q.Set("mode", "rw")
	}
	if flags&sqliteh.SQLITE_OPEN_SHAREDCACHE != 0 {
		q.Set("cache", "shared")
	} else if flags&sqliteh.SQLITE_OPEN_PRIVATECACHE != 0 {
		q.Set("cache", "private")
	}
	if vfs != "" {
		q.Set("vfs", vfs)
	}
	if strings.Contains(u, "mode=") {
		q.Del("mode")
	}
	if len(q) == 0 {
		return u
	}
	sep := "?"
	if strings.Contains(u, "?") {
		sep = "&"
	}
	return u + sep + q.Encode()
}

func (db *DB) Close() error {
	err := db.conn.Close()
	if db.db != nil {
		if cerr := db.db.Close(); err == nil {
			err = cerr
		}
	}
	return wrapErr(err)
}

func (db *DB) ErrMsg() string {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.errMsg == "" {
		return "not an error"
	}
	return db.errMsg
}

func (db *DB) ExtendedErrCode() sqliteh.Code {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.errCode
}

// fail records err as the connection's most recent error.
func (db *DB) fail(err error) error {
	if err == nil {
		return nil
	}
	e := wrapErr(err)
	var de *Error
	errors.As(e, &de)
	db.mu.Lock()
	db.errMsg, db.errCode = de.Msg, de.Code
	db.mu.Unlock()
	return e
}

func (db *DB) queryInt(query string) int64 {
	var n int64
	if err := db.conn.QueryRowContext(context.Background(), query).Scan(&n); err != nil {
		db.fail(err)
		return 0
	}
	return n
}

func (db *DB) Changes() int           { return int(db.queryInt("SELECT changes()")) }
func (db *DB) TotalChanges() int      { return int(db.queryInt("SELECT total_changes()")) }
func (db *DB) LastInsertRowid() int64 { return db.queryInt("SELECT last_insert_rowid()") }

func (db *DB) BusyTimeout(d time.Duration) {
	q := "PRAGMA busy_timeout = " + strconv.FormatInt(d.Milliseconds(), 10)
	if _, err := db.conn.ExecContext(context.Background(), q); err != nil {
		db.fail(err)
	}
}

// Prepare compiles the first statement of query. database/sql does not
// report unused trailing text, so the statement is split off here.
func (db *DB) Prepare(query string, _ sqliteh.PrepareFlags) (stmt sqliteh.Stmt, remainingQuery string, err error) {
	first, rest := splitStatement(query)
	if isBlank(first) {
		return nil, rest, nil
	}
	s, err := db.conn.PrepareContext(context.Background(), first)
	if err != nil {
		return nil, "", db.fail(err)
	}
	return &Stmt{db: db, query: first, stmt: s}, rest, nil
}

// isBlank reports whether query holds only whitespace and comments.
func isBlank(query string) bool {
	for {
		query = strings.TrimSpace(query)
		switch {
		case query == "":
			return true
		case strings.HasPrefix(query, "--"):
			i := strings.IndexByte(query, '\n')
			if i < 0 {
				return true
			}
			query = query[i+1:]
		case strings.HasPrefix(query, "/*"):
			i := strings.Index(query, "*/")
			if i < 0 {
				return true
			}
			query = query[i+2:]
		default:
			return false
		}
	}
}

func (s *Stmt) DBHandle() sqliteh.DB { return s.db }
func (s *Stmt) SQL() string          { return s.query }

func (s *Stmt) Reset() error {
	return s.closeRows()
}

func (s *Stmt) ClearBindings() error {
	s.args = nil
	return nil
}

func (s *Stmt) Finalize() error {
	err := s.closeRows()
	if cerr := s.stmt.Close(); err == nil {
		err = s.db.fail(cerr)
	}
	return err
}

func (s *Stmt) closeRows() error {
	if s.rows == nil {
		return nil
	}
	err := s.rows.Close()
	s.rows, s.types, s.cur = nil, nil, nil
	return s.db.fail(err)
}

// Step runs the statement on its first call after a Reset and then
// advances through its rows.
func (s *Stmt) Step() (row bool, err error) {
	if s.rows == nil {
		rows, err := s.stmt.QueryContext(context.Background(), s.args...)
		if err != nil {
			return false, s.db.fail(err)
		}
		s.rows = rows
		if s.types, err = rows.ColumnTypes(); err != nil {
			return false, s.db.fail(err)
		}
	}
	if !s.rows.Next() {
		if err := s.rows.Err(); err != nil {
			return false, s.db.fail(err)
		}
		s.cur = nil
		return false, nil
	}
	s.cur = make([]any, len(s.types))
	ptrs := make([]any, len(s.cur))
	for i := range s.cur {
		ptrs[i] = &s.cur[i]
	}
	if err := s.rows.Scan(ptrs...); err != nil {
		return false, s.db.fail(err)
	}
	return true, nil
}

func (s *Stmt) bind(col int, v any) error {
	if col < 1 {
		return &Error{Code: sqliteh.SQLITE_RANGE, Msg: fmt.Sprintf("bind position %d", col)}
	}
	for len(s.args) < col {
		s.args = append(s.args, nil)
	}
	s.args[col-1] = v
	return nil
}

func (s *Stmt) BindDouble(col int, val float64) error { return s.bind(col, val) }
func (s *Stmt) BindInt64(col int, val int64) error    { return s.bind(col, val) }
func (s *Stmt) BindNull(col int) error                { return s.bind(col, nil) }
func (s *Stmt) BindText64(col int, val string) error  { return s.bind(col, val) }

func (s *Stmt) BindBlob64(col int, val []byte) error {
	if val == nil {
		val = []byte{}
	}
	return s.bind(col, val)
}

// BindParameterCount is the highest position bound so far.
func (s *Stmt) BindParameterCount() int { return len(s.args) }

func (s *Stmt) ColumnCount() int {
	if s.rows == nil {
		cols, err := s.peekColumns()
		if err != nil {
			return 0
		}
		return len(cols)
	}
	return len(s.types)
}

// peekColumns learns the result columns before the first Step by
// running the statement; the rows are kept for Step.
func (s *Stmt) peekColumns() ([]*sql.ColumnType, error) {
	rows, err := s.stmt.QueryContext(context.Background(), s.args...)
	if err != nil {
		return nil, s.db.fail(err)
	}
	s.rows = rows
	if s.types, err = rows.ColumnTypes(); err != nil {
		return nil, s.db.fail(err)
	}
	return s.types, nil
}

func (s *Stmt) ColumnName(col int) string {
	if s.rows == nil {
		if _, err := s.peekColumns(); err != nil {
			return ""
		}
	}
	if col < 0 || col >= len(s.types) {
		return ""
	}
	return s.types[col].Name()
}

func (s *Stmt) ColumnDeclType(col int) string {
	if col < 0 || col >= len(s.types) {
		return ""
	}
	return s.types[col].DatabaseTypeName()
}

func (s *Stmt) cell(col int) any {
	if col < 0 || col >= len(s.cur) {
		return nil
	}
	return s.cur[col]
}

// ColumnType reports the storage class of the cell as the driver
// returned it. Drivers that turn date-typed columns into time.Time
// are reported as TEXT, and the value is formatted back by ColumnText.
func (s *Stmt) ColumnType(col int) sqliteh.ColumnType {
	switch s.cell(col).(type) {
	case nil:
		return sqliteh.SQLITE_NULL
	case int64, int, int32, bool:
		return sqliteh.SQLITE_INTEGER
	case float64, float32:
		return sqliteh.SQLITE_FLOAT
	case []byte:
		return sqliteh.SQLITE_BLOB
	default:
		return sqliteh.SQLITE_TEXT
	}
}

func (s *Stmt) ColumnInt64(col int) int64 {
	switch v := s.cell(col).(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case bool:
		if v {
			return 1
		}
		return 0
	case float64:
		return floatToInt(v)
	case float32:
		return floatToInt(float64(v))
	case nil:
		return 0
	default:
		return textToInt(s.ColumnText(col))
	}
}

func (s *Stmt) ColumnDouble(col int) float64 {
	switch v := s.cell(col).(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case nil:
		return 0
	case int64, int, int32, bool:
		return float64(s.ColumnInt64(col))
	default:
		return textToFloat(s.ColumnText(col))
	}
}

func (s *Stmt) ColumnText(col int) string {
	switch v := s.cell(col).(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case time.Time:
		return isodate.FromTime(v).Format()
	case float64:
		return strconv.FormatFloat(v, 'g', 15, 64)
	default:
		return fmt.Sprint(v)
	}
}

func (s *Stmt) ColumnBlob(col int) []byte {
	switch v := s.cell(col).(type) {
	case nil:
		return nil
	case []byte:
		return append([]byte(nil), v...)
	default:
		return []byte(s.ColumnText(col))
	}
}

// floatToInt converts the way sqlite3_column_int64 does: truncating,
// and saturating out of range.
func floatToInt(f float64) int64 {
	switch {
	case math.IsNaN(f):
		return 0
	case f <= math.MinInt64:
		return math.MinInt64
	case f >= math.MaxInt64:
		return math.MaxInt64
	}
	return int64(f)
}

// textToInt reads the longest numeric prefix of s, as SQLite's text
// to integer conversion does.
func textToInt(s string) int64 {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && (s[end] >= '0' && s[end] <= '9' || end == 0 && (s[end] == '-' || s[end] == '+')) {
		end++
	}
	if n, err := strconv.ParseInt(s[:end], 10, 64); err == nil {
		return n
	}
	return floatToInt(textToFloat(s))
}

func textToFloat(s string) float64 {
	s = strings.TrimSpace(s)
	for end := len(s); end > 0; end-- {
		if f, err := strconv.ParseFloat(s[:end], 64); err == nil {
			return f
		}
	}
	return 0
}

// wrapErr turns a driver error into an *Error, keeping *Error as is.
func wrapErr(err error) error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) {
		return err
	}
	code, ok := driverCode(err)
	if !ok {
		code = sqliteh.SQLITE_ERROR
	}
	return &Error{Code: code, Msg: err.Error()}
}

var (
	_ sqliteh.DB   = (*DB)(nil)
	_ sqliteh.Stmt = (*Stmt)(nil)
)
