package nxsqlite

import (
	"errors"
	"strings"

	"github.com/ninjasync/nxsqlite/sqlitepool"
	"github.com/ninjasync/nxsqlite/sqliteh"
	"github.com/ninjasync/nxsqlite/sqlvalue"
)

type (
	// ConnectionError is returned when the database cannot be opened.
	ConnectionError = sqlitepool.ConnectionError
	// AlreadyClosedError is returned when a connection is closed twice.
	AlreadyClosedError = sqlitepool.AlreadyClosedError
	// UnsupportedTypeError is returned for Go types that cannot be
	// bound or decoded.
	UnsupportedTypeError = sqlvalue.UnsupportedTypeError
)

// ErrNoResult is returned by First and ElementAt when the query
// produced no row. ExecuteScalar returns the zero value instead.
var ErrNoResult = errors.New("nxsqlite: no result")

// EngineError is a failure reported by SQLite while preparing, binding,
// stepping or finalizing a statement.
type EngineError struct {
	Code  sqliteh.Code // SQLite extended error code (SQLITE_OK is an invalid value)
	Loc   string       // method name that generated the error
	Query string       // original SQL query text
	Msg   string       // value of sqlite3_errmsg
}

func (err *EngineError) Error() string {
	b := new(strings.Builder)
	b.WriteString("nxsqlite")
	if err.Loc != "" {
		b.WriteByte('.')
		b.WriteString(err.Loc)
	}
	b.WriteString(": ")
	b.WriteString(err.Code.String())
	if err.Msg != "" {
		b.WriteString(": ")
		b.WriteString(err.Msg)
	}
	if err.Query != "" {
		b.WriteString(" (")
		b.WriteString(err.Query)
		b.WriteByte(')')
	}
	return b.String()
}

// Unwrap returns the code as an sqliteh.ErrCode, so that
// errors.Is(err, sqliteh.ErrCode(sqliteh.SQLITE_CONSTRAINT)) works.
func (err *EngineError) Unwrap() error {
	return sqliteh.CodeAsError(err.Code)
}

func reserr(db sqliteh.DB, loc, query string, err error) error {
	if err == nil {
		return nil
	}
	e := &EngineError{
		Code:  sqliteh.SQLITE_ERROR,
		Loc:   loc,
		Query: query,
	}
	var code sqliteh.ErrCode
	if errors.As(err, &code) {
		e.Code = sqliteh.Code(code)
	}
	if e.Msg = db.ErrMsg(); e.Msg == "" || e.Msg == "not an error" {
		e.Msg = err.Error()
	}
	return e
}
