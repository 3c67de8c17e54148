//go:build !cgo_sqlite

package drvsqlite

import (
	"errors"

	"github.com/ninjasync/nxsqlite/sqliteh"
	"modernc.org/sqlite"
)

const (
	// DriverName is the database/sql driver Open uses.
	DriverName = "sqlite"
	// DriverType identifies the implementation: "purego" or "cgo".
	DriverType    = "purego"
	driverPackage = "modernc.org/sqlite"
)

func driverCode(err error) (sqliteh.Code, bool) {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return sqliteh.Code(se.Code()), true
	}
	return 0, false
}
