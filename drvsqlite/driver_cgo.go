//go:build cgo_sqlite

package drvsqlite

import (
	"errors"

	"github.com/mattn/go-sqlite3"
	"github.com/ninjasync/nxsqlite/sqliteh"
)

const (
	// DriverName is the database/sql driver Open uses.
	DriverName = "sqlite3"
	// DriverType identifies the implementation: "purego" or "cgo".
	DriverType    = "cgo"
	driverPackage = "github.com/mattn/go-sqlite3"
)

func driverCode(err error) (sqliteh.Code, bool) {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return sqliteh.Code(se.ExtendedCode), true
	}
	return 0, false
}
