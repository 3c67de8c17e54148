package nxsqlite

import (
	"iter"
	"reflect"
	"strconv"
	"strings"
)

// TableQuery builds a SELECT over one table.
//
// Where, OrderBy, Take, Skip and Deferred modify the query and return
// it, so calls chain. Use Clone to branch a query.
type TableQuery[T any] struct {
	conn     *Conn
	table    string
	err      error // from resolving the table, reported by terminal calls
	selector string

	where     []string
	whereArgs []any
	orderBy   string
	limit     int
	hasLimit  bool
	offset    int
	hasOffset bool
	deferred  bool
}

// Table returns a query over the table T is mapped to.
func Table[T any](c *Conn) *TableQuery[T] {
	q := &TableQuery[T]{conn: c}
	m, err := c.GetMapping(reflect.TypeFor[T]())
	if err != nil {
		q.err = err
		return q
	}
	q.table = m.TableName()
	return q
}

// TableNamed returns a query over the named table. T may be any row
// shape, including Record.
func TableNamed[T any](c *Conn, table string) *TableQuery[T] {
	return &TableQuery[T]{conn: c, table: table}
}

// Where adds a predicate with its positional arguments. Multiple
// predicates are joined with AND.
func (q *TableQuery[T]) Where(pred string, args ...any) *TableQuery[T] {
	q.where = append(q.where, pred)
	q.whereArgs = append(q.whereArgs, args...)
	return q
}

// OrderBy sets the ORDER BY expression, replacing any earlier one.
func (q *TableQuery[T]) OrderBy(expr string) *TableQuery[T] {
	q.orderBy = expr
	return q
}

// Take limits the query to n rows.
func (q *TableQuery[T]) Take(n int) *TableQuery[T] {
	q.limit, q.hasLimit = n, true
	return q
}

// Skip skips the first n rows.
func (q *TableQuery[T]) Skip(n int) *TableQuery[T] {
	q.offset, q.hasOffset = n, true
	return q
}

// Deferred makes All yield rows lazily from an open cursor.
func (q *TableQuery[T]) Deferred() *TableQuery[T] {
	q.deferred = true
	return q
}

// Clone returns an independent copy of q.
func (q *TableQuery[T]) Clone() *TableQuery[T] {
	c := CloneAs[T](q)
	c.selector = q.selector
	return c
}

// CloneAs copies q's table, predicates, ordering and paging into a
// query yielding U rows. The selection list is not copied.
func CloneAs[U, T any](q *TableQuery[T]) *TableQuery[U] {
	return &TableQuery[U]{
		conn:      q.conn,
		table:     q.table,
		err:       q.err,
		where:     append([]string(nil), q.where...),
		whereArgs: append([]any(nil), q.whereArgs...),
		orderBy:   q.orderBy,
		limit:     q.limit,
		hasLimit:  q.hasLimit,
		offset:    q.offset,
		hasOffset: q.hasOffset,
		deferred:  q.deferred,
	}
}

// Select returns a copy of q selecting the given column list, with rows
// read as U.
//
//	names := nxsqlite.Select[string](nxsqlite.Table[Item](conn), "name")
func Select[U, T any](q *TableQuery[T], selector string) *TableQuery[U] {
	c := CloneAs[U](q)
	c.selector = selector
	return c
}

// TableName returns the queried table.
func (q *TableQuery[T]) TableName() string { return q.table }

// SQL returns the SELECT text and its arguments.
func (q *TableQuery[T]) SQL() (string, []any) {
	cmd := q.selectCommand()
	return cmd.CommandText, cmd.bindings
}

func (q *TableQuery[T]) command(selection string) *Command {
	b := new(strings.Builder)
	b.WriteString("SELECT ")
	b.WriteString(selection)
	b.WriteString(` FROM "`)
	b.WriteString(q.table)
	b.WriteString(`"`)
	if len(q.where) > 0 {
		b.WriteString(" WHERE ( ")
		b.WriteString(strings.Join(q.where, " ) AND ( "))
		b.WriteString(" )")
	}
	if q.orderBy != "" {
		b.WriteString(" ORDER BY ")
		b.WriteString(q.orderBy)
	}
	if q.hasLimit {
		b.WriteString(" LIMIT ")
		b.WriteString(strconv.Itoa(q.limit))
	}
	if q.hasOffset {
		if !q.hasLimit {
			// OFFSET is only valid after a LIMIT; -1 means no limit.
			b.WriteString(" LIMIT -1 ")
		}
		b.WriteString(" OFFSET ")
		b.WriteString(strconv.Itoa(q.offset))
	}
	return q.conn.CreateCommand(b.String(), q.whereArgs...)
}

func (q *TableQuery[T]) selectCommand() *Command {
	sel := q.selector
	if sel == "" {
		sel = "*"
	}
	return q.command(sel)
}

// Count returns the number of rows the query matches.
func (q *TableQuery[T]) Count() (int, error) {
	if q.err != nil {
		return 0, q.err
	}
	return ExecuteScalar[int](q.command("COUNT(*)"))
}

// ToList runs the query and returns every row.
func (q *TableQuery[T]) ToList() ([]T, error) {
	if q.err != nil {
		return nil, q.err
	}
	return ExecuteQuery[T](q.selectCommand())
}

// All runs the query and yields its rows. A deferred query reads rows
// from the cursor as the loop asks for them; otherwise every row is
// read before the first is yielded. An error ends the sequence with a
// zero T and the error.
func (q *TableQuery[T]) All() iter.Seq2[T, error] {
	if q.err != nil {
		err := q.err
		return func(yield func(T, error) bool) {
			var zero T
			yield(zero, err)
		}
	}
	if q.deferred {
		return ExecuteDeferredQuery[T](q.selectCommand())
	}
	return func(yield func(T, error) bool) {
		rows, err := q.ToList()
		if err != nil {
			var zero T
			yield(zero, err)
			return
		}
		for _, row := range rows {
			if !yield(row, nil) {
				return
			}
		}
	}
}

// First returns the first row, querying with a limit of one. It
// returns ErrNoResult if there is none. q is not modified.
func (q *TableQuery[T]) First() (T, error) {
	rows, err := q.Clone().Take(1).ToList()
	if err != nil {
		var zero T
		return zero, err
	}
	if len(rows) == 0 {
		var zero T
		return zero, ErrNoResult
	}
	return rows[0], nil
}

// FirstOrDefault is like First but returns the zero T, and no error,
// if there is no row.
func (q *TableQuery[T]) FirstOrDefault() (T, error) {
	v, err := q.First()
	if err == ErrNoResult {
		return v, nil
	}
	return v, err
}

// ElementAt returns the row at index, counting from zero. It returns
// ErrNoResult if there are not that many rows.
func (q *TableQuery[T]) ElementAt(index int) (T, error) {
	return q.Clone().Skip(index).First()
}
