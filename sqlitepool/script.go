package sqlitepool

import (
	"fmt"
	"strings"

	"github.com/ninjasync/nxsqlite/sqliteh"
)

// ExecScript executes a series of SQL statements against a database
// handle. It suits one-off setup such as the PRAGMAs of an Init
// function: no statement is cached.
func ExecScript(db sqliteh.DB, queries string) error {
	for {
		queries = strings.TrimSpace(queries)
		if queries == "" {
			return nil
		}
		stmt, rem, err := db.Prepare(queries, 0)
		if err != nil {
			return fmt.Errorf("ExecScript: %w, in remaining script: %s", err, queries)
		}
		queries = rem
		if stmt == nil {
			// Only comments were left.
			continue
		}
		_, err = stmt.Step()
		if err != nil {
			err = fmt.Errorf("ExecScript: %w: %s", err, stmt.SQL())
		}
		stmt.Finalize()
		if err != nil {
			return err
		}
	}
}
