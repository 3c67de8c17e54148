package nxsqlite

import (
	"fmt"
	"iter"
	"reflect"
	"strings"

	"github.com/ninjasync/nxsqlite/sqliteh"
	"github.com/ninjasync/nxsqlite/sqlvalue"
)

// Record is a row shape that keeps every column, decoded by storage
// class.
type Record struct {
	Columns []string
	Values  []sqlvalue.Value
}

// Get returns the value of the named column, ignoring case.
func (r Record) Get(name string) (sqlvalue.Value, bool) {
	for i, col := range r.Columns {
		if strings.EqualFold(col, name) {
			return r.Values[i], true
		}
	}
	return sqlvalue.Value{}, false
}

// Rows is a forward-only cursor over the rows of a query, each decoded
// as a T. It holds a prepared statement until Close, or until Next
// returns false.
//
//	rows, err := nxsqlite.OpenRows[Item](cmd)
//	if err != nil {
//		return err
//	}
//	defer rows.Close()
//	for rows.Next() {
//		item := rows.Value()
//		...
//	}
//	return rows.Err()
type Rows[T any] struct {
	cmd    *Command
	stmt   sqliteh.Stmt
	decode func() (T, error)
	done   func(error)
	cur    T
	err    error
}

// OpenRows runs cmd and returns a cursor over its rows.
func OpenRows[T any](cmd *Command) (_ *Rows[T], err error) {
	c := cmd.conn
	if c.trace {
		c.logger.Debug("Executing Query: " + cmd.String())
	}
	done := c.track(cmd.CommandText, "query")
	defer func() {
		if err != nil {
			done(err)
		}
	}()

	stmt, err := c.prepare(cmd.CommandText)
	if err != nil {
		return nil, err
	}
	rows := &Rows[T]{cmd: cmd, stmt: stmt, done: done}
	if err := c.bindAll(stmt, cmd.CommandText, cmd.bindings); err != nil {
		stmt.Finalize()
		return nil, err
	}
	if rows.decode, err = newDecoder[T](cmd, stmt); err != nil {
		stmt.Finalize()
		return nil, err
	}
	return rows, nil
}

// Next advances to the next row. It returns false at the end of the
// result or on error, and the statement is then already finalized.
func (r *Rows[T]) Next() bool {
	if r.stmt == nil {
		return false
	}
	c := r.cmd.conn
	row, err := r.stmt.Step()
	if err != nil {
		r.err = reserr(c.db, "Step", r.cmd.CommandText, err)
		r.Close()
		return false
	}
	if !row {
		r.Close()
		return false
	}
	if r.cur, err = r.decode(); err != nil {
		r.err = err
		r.Close()
		return false
	}
	return true
}

// Value returns the current row.
func (r *Rows[T]) Value() T { return r.cur }

// Err returns the error that ended iteration, if any.
func (r *Rows[T]) Err() error { return r.err }

// Close finalizes the statement. It is safe to call more than once.
func (r *Rows[T]) Close() error {
	if r.stmt == nil {
		return nil
	}
	stmt := r.stmt
	r.stmt = nil
	err := r.cmd.conn.finalize(stmt, r.cmd.CommandText, r.err)
	if r.err == nil {
		r.err = err
	}
	r.done(r.err)
	return err
}

// All returns the remaining rows as a sequence. The cursor is closed
// when the sequence ends, whether exhausted or abandoned.
func (r *Rows[T]) All() iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		defer r.Close()
		for r.Next() {
			if !yield(r.cur, nil) {
				return
			}
		}
		if r.err != nil {
			var zero T
			yield(zero, r.err)
		}
	}
}

// ExecuteQuery runs cmd and returns every row.
func ExecuteQuery[T any](cmd *Command) ([]T, error) {
	rows, err := OpenRows[T](cmd)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []T
	for rows.Next() {
		out = append(out, rows.Value())
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ExecuteDeferredQuery returns a sequence that runs cmd when iterated
// and yields one row at a time. Each iteration runs the query again.
// An error ends the sequence with a zero T and the error.
func ExecuteDeferredQuery[T any](cmd *Command) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		rows, err := OpenRows[T](cmd)
		if err != nil {
			var zero T
			yield(zero, err)
			return
		}
		rows.All()(yield)
	}
}

var recordType = reflect.TypeFor[Record]()

// newDecoder picks the row decoding for T against stmt's columns.
// Column names are resolved once here rather than per row.
func newDecoder[T any](cmd *Command, stmt sqliteh.Stmt) (func() (T, error), error) {
	c := cmd.conn
	t := reflect.TypeFor[T]()

	if t == recordType {
		n := stmt.ColumnCount()
		cols := make([]string, n)
		for i := range cols {
			cols[i] = stmt.ColumnName(i)
		}
		return func() (T, error) {
			rec := Record{Columns: cols, Values: make([]sqlvalue.Value, n)}
			for i := range rec.Values {
				rec.Values[i] = c.codec.DecodeAny(stmt, i)
			}
			return any(rec).(T), nil
		}, nil
	}

	if read, err := valueReader[T](c); err == nil {
		return func() (T, error) { return read(stmt) }, nil
	}

	st := t
	if st.Kind() == reflect.Pointer {
		st = st.Elem()
	}
	if st.Kind() != reflect.Struct {
		return nil, &UnsupportedTypeError{Type: t, Op: "decode"}
	}
	m, err := c.GetMapping(st)
	if err != nil {
		return nil, err
	}

	n := stmt.ColumnCount()
	cols := make([]Column, n)
	types := make([]sqlvalue.Type, n)
	for i := range n {
		col, ok := m.FindColumn(stmt.ColumnName(i))
		if !ok {
			continue
		}
		typ, err := sqlvalue.TypeFor(col.Type())
		if err != nil {
			return nil, err
		}
		cols[i], types[i] = col, typ
	}
	ptr := t.Kind() == reflect.Pointer

	return func() (T, error) {
		var out T
		obj := m.New()
		for i, col := range cols {
			if col == nil {
				continue
			}
			v, err := c.codec.Decode(stmt, i, types[i])
			if err != nil {
				return out, fmt.Errorf("nxsqlite: column %q: %w", col.Name(), err)
			}
			if err := col.Set(obj, v); err != nil {
				return out, err
			}
		}
		if cmd.OnInstanceCreated != nil {
			cmd.OnInstanceCreated(obj.Interface())
		}
		if ptr {
			return obj.Interface().(T), nil
		}
		return obj.Elem().Interface().(T), nil
	}, nil
}
