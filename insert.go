package nxsqlite

import (
	"strings"
	"sync"

	"github.com/ninjasync/nxsqlite/sqliteh"
	"go.uber.org/multierr"
)

// PreparedInsertCommand is a statement prepared on first use and then
// reused: each execution binds new arguments, steps and resets.
// It is safe for concurrent use.
type PreparedInsertCommand struct {
	conn        *Conn
	CommandText string

	mu   sync.Mutex
	stmt sqliteh.Stmt // nil until first use and after Close
}

// NewPreparedInsertCommand returns a command for query. Nothing is
// prepared until the first ExecuteNonQuery.
func (c *Conn) NewPreparedInsertCommand(query string) *PreparedInsertCommand {
	return &PreparedInsertCommand{conn: c, CommandText: query}
}

func newInsertCommand(c *Conn, m Mapping) *PreparedInsertCommand {
	return c.NewPreparedInsertCommand(insertSQL(m))
}

// insertSQL builds the INSERT for m, leaving out autoinc columns.
func insertSQL(m Mapping) string {
	var names []string
	for _, col := range m.Columns() {
		if fc, ok := col.(*FieldColumn); ok && fc.AutoIncrement() {
			continue
		}
		names = append(names, quoteIdent(col.Name()))
	}
	b := new(strings.Builder)
	b.WriteString("INSERT INTO ")
	b.WriteString(quoteIdent(m.TableName()))
	if len(names) == 0 {
		b.WriteString(" DEFAULT VALUES")
		return b.String()
	}
	b.WriteString(" (")
	b.WriteString(strings.Join(names, ", "))
	b.WriteString(") VALUES (")
	b.WriteString(strings.Repeat("?, ", len(names)-1))
	b.WriteString("?)")
	return b.String()
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// ExecuteNonQuery binds args to positions 1, 2, ... and runs the
// statement, returning the number of rows changed.
func (p *PreparedInsertCommand) ExecuteNonQuery(args ...any) (n int, err error) {
	c := p.conn
	if c.trace {
		c.logger.Debug("Executing: " + p.CommandText)
	}
	done := c.track(p.CommandText, "insert")
	defer func() { done(err) }()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stmt == nil {
		if p.stmt, err = c.prepare(p.CommandText); err != nil {
			return 0, err
		}
	}
	defer func() {
		// Reset reports the step error again.
		rerr := p.stmt.Reset()
		if err == nil && rerr != nil {
			err = reserr(c.db, "Reset", p.CommandText, rerr)
		}
		err = multierr.Append(err, p.stmt.ClearBindings())
	}()
	if err := c.bindAll(p.stmt, p.CommandText, args); err != nil {
		return 0, err
	}
	if _, err := p.stmt.Step(); err != nil {
		return 0, reserr(c.db, "Step", p.CommandText, err)
	}
	return c.db.Changes(), nil
}

// Close finalizes the statement. The command prepares again if it is
// used afterwards.
func (p *PreparedInsertCommand) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stmt == nil {
		return nil
	}
	err := p.stmt.Finalize()
	p.stmt = nil
	if err != nil {
		return reserr(p.conn.db, "Finalize", p.CommandText, err)
	}
	return nil
}
