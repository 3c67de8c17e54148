package nxsqlite

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/ninjasync/nxsqlite/sqlitepool"
	"github.com/ninjasync/nxsqlite/sqliteh"
	"github.com/ninjasync/nxsqlite/sqlvalue"
	"go.uber.org/multierr"
)

// Command is SQL text with positional arguments.
//
// Arguments are bound in order to positions 1, 2, ... when the command
// runs; parameter names in the SQL text are not consulted. Every
// execution prepares and finalizes its own statement, so a Command may
// be run repeatedly but not concurrently.
type Command struct {
	conn     *Conn
	bindings []any

	CommandText string

	// OnInstanceCreated, if set, is called with each struct row after
	// its columns are set. It receives a pointer to the struct.
	OnInstanceCreated func(obj any)
}

// CreateCommand returns a command for query with args bound in order.
func (c *Conn) CreateCommand(query string, args ...any) *Command {
	return &Command{
		conn:        c,
		CommandText: query,
		bindings:    append([]any(nil), args...),
	}
}

// Bind appends an argument.
func (cmd *Command) Bind(arg any) *Command {
	cmd.bindings = append(cmd.bindings, arg)
	return cmd
}

// Bindings returns the arguments in binding order.
func (cmd *Command) Bindings() []any { return cmd.bindings }

// Conn returns the connection the command runs on.
func (cmd *Command) Conn() *Conn { return cmd.conn }

// String renders the SQL text followed by one indented line per
// argument, numbered from zero.
func (cmd *Command) String() string {
	b := new(strings.Builder)
	b.WriteString(cmd.CommandText)
	for i, arg := range cmd.bindings {
		b.WriteByte('\n')
		fmt.Fprintf(b, "  %d: ", i)
		if v, err := sqlvalue.Of(arg); err == nil {
			b.WriteString(v.String())
		} else {
			fmt.Fprint(b, arg)
		}
	}
	return b.String()
}

// ExecuteNonQuery runs the command and reports how many rows it
// changed.
func (cmd *Command) ExecuteNonQuery() (n int, err error) {
	c := cmd.conn
	if c.trace {
		c.logger.Debug("Executing: " + cmd.String())
	}
	done := c.track(cmd.CommandText, "non-query")
	defer func() { done(err) }()

	stmt, err := c.prepare(cmd.CommandText)
	if err != nil {
		return 0, err
	}
	defer func() {
		err = multierr.Append(err, c.finalize(stmt, cmd.CommandText, err))
	}()
	if err := c.bindAll(stmt, cmd.CommandText, cmd.bindings); err != nil {
		return 0, err
	}
	if _, err := stmt.Step(); err != nil {
		return 0, reserr(c.db, "Step", cmd.CommandText, err)
	}
	return c.db.Changes(), nil
}

// ExecuteScalar runs cmd and returns the first column of its first
// row as a T. An empty result, or a NULL cell, returns the zero T.
//
// Integer and string targets are read directly from the cell; any other
// storable type is decoded as in ExecuteQuery. T may also be
// sqlvalue.Value or any to read the cell by its storage class.
func ExecuteScalar[T any](cmd *Command) (out T, err error) {
	c := cmd.conn
	read, err := scalarReader[T](c)
	if err != nil {
		return out, err
	}
	if c.trace {
		c.logger.Debug("Executing Query: " + cmd.String())
	}
	done := c.track(cmd.CommandText, "scalar")
	defer func() { done(err) }()

	stmt, err := c.prepare(cmd.CommandText)
	if err != nil {
		return out, err
	}
	defer func() {
		err = multierr.Append(err, c.finalize(stmt, cmd.CommandText, err))
	}()
	if err := c.bindAll(stmt, cmd.CommandText, cmd.bindings); err != nil {
		return out, err
	}
	row, err := stmt.Step()
	if err != nil {
		return out, reserr(c.db, "Step", cmd.CommandText, err)
	}
	if !row {
		return out, nil
	}
	if stmt.ColumnCount() == 0 {
		return out, &EngineError{Code: sqliteh.SQLITE_MISUSE, Loc: "ExecuteScalar", Query: cmd.CommandText, Msg: "statement returns no columns"}
	}
	return read(stmt)
}

func scalarReader[T any](c *Conn) (func(sqliteh.Stmt) (T, error), error) {
	var zero T
	switch any(zero).(type) {
	case int, int64, int32, int16, int8, uint8, string:
		return func(stmt sqliteh.Stmt) (T, error) {
			var out T
			switch p := any(&out).(type) {
			case *int:
				*p = int(stmt.ColumnInt64(0))
			case *int64:
				*p = stmt.ColumnInt64(0)
			case *int32:
				*p = int32(stmt.ColumnInt64(0))
			case *int16:
				*p = int16(stmt.ColumnInt64(0))
			case *int8:
				*p = int8(stmt.ColumnInt64(0))
			case *uint8:
				*p = uint8(stmt.ColumnInt64(0))
			case *string:
				*p = stmt.ColumnText(0)
			}
			return out, nil
		}, nil
	}
	return valueReader[T](c)
}

// valueReader decodes column 0 as a T, for primitive row shapes.
func valueReader[T any](c *Conn) (func(sqliteh.Stmt) (T, error), error) {
	switch any((*T)(nil)).(type) {
	case *sqlvalue.Value:
		return func(stmt sqliteh.Stmt) (T, error) {
			return any(c.codec.DecodeAny(stmt, 0)).(T), nil
		}, nil
	case *any:
		return func(stmt sqliteh.Stmt) (T, error) {
			var out T
			if v := c.codec.DecodeAny(stmt, 0).Interface(); v != nil {
				out = v.(T)
			}
			return out, nil
		}, nil
	}
	typ, err := sqlvalue.TypeFor(reflect.TypeFor[T]())
	if err != nil {
		return nil, err
	}
	return func(stmt sqliteh.Stmt) (T, error) {
		var out T
		v, err := c.codec.Decode(stmt, 0, typ)
		if err != nil {
			return out, err
		}
		if err := v.Assign(reflect.ValueOf(&out).Elem()); err != nil {
			return out, err
		}
		return out, nil
	}, nil
}

func (c *Conn) prepare(query string) (sqliteh.Stmt, error) {
	if c.closed.Load() {
		return nil, &AlreadyClosedError{Path: sqlitepool.Canonical(c.path)}
	}
	stmt, _, err := c.db.Prepare(query, 0)
	if err != nil {
		return nil, reserr(c.db, "Prepare", query, err)
	}
	if stmt == nil {
		// The text held only whitespace or comments.
		return nil, &EngineError{Code: sqliteh.SQLITE_MISUSE, Loc: "Prepare", Query: query, Msg: "no statement"}
	}
	return stmt, nil
}

// finalize releases stmt. A failed statement reports its error again
// on finalize, so that error is dropped when prev is already set.
func (c *Conn) finalize(stmt sqliteh.Stmt, query string, prev error) error {
	err := stmt.Finalize()
	if err == nil || prev != nil {
		return nil
	}
	return reserr(c.db, "Finalize", query, err)
}

func (c *Conn) bindAll(stmt sqliteh.Stmt, query string, args []any) error {
	for i, arg := range args {
		v, err := sqlvalue.Of(arg)
		if err != nil {
			return err
		}
		if err := c.codec.Bind(stmt, i+1, v); err != nil {
			if errors.Is(err, sqlvalue.ErrDateTimeRange) {
				return err
			}
			return reserr(c.db, "Bind", query, err)
		}
	}
	return nil
}

// track starts timing one execution. The returned function must be
// called exactly once with the execution's outcome.
func (c *Conn) track(query, msg string) func(error) {
	start := time.Now()
	stop := c.timer.Time(msg)
	return func(err error) {
		if stop != nil {
			stop()
		}
		if c.tracer != nil {
			c.tracer.Query(query, time.Since(start), err)
		}
	}
}
