// Package nxsqlite is a small object mapper over SQLite.
//
// A Conn is a logical connection. Every Conn opened on the same file
// shares one physical handle through a sqlitepool.Registry, so opening
// many Conns is cheap and closing one does not disturb the others.
//
// # Commands
//
// Commands are SQL text plus positional arguments:
//
//	cmd := conn.CreateCommand("UPDATE item SET name = ? WHERE id = ?", "x", 7)
//	n, err := cmd.ExecuteNonQuery()
//
//	count, err := nxsqlite.ExecuteScalar[int](conn.CreateCommand("SELECT COUNT(*) FROM item"))
//
//	items, err := nxsqlite.ExecuteQuery[Item](conn.CreateCommand("SELECT * FROM item"))
//
// Query results are decoded by row shape: a struct (or pointer to one)
// is filled column by column through its Mapping, a single storable
// type such as int64, string or time.Time is read from the first
// column, and Record keeps every column untyped.
//
// ExecuteDeferredQuery returns a lazy sequence for range-over-func.
// The statement is finalized when the loop ends, including by break.
//
// # Table queries
//
//	q := nxsqlite.Table[Item](conn).Where("price > ?", 10).OrderBy("name").Take(5)
//	items, err := q.ToList()
//
// # Binding Time
//
// Date-times are stored either as ISO 8601 text (the default) or as
// integer ticks of 100ns since 0001-01-01, chosen per connection by
// Config.StoreDateTimeAsTicks. A database must be read with the same
// setting it was written with. See package sqlvalue for the full set
// of storable types.
package nxsqlite

import (
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ninjasync/nxsqlite/sqlitepool"
	"github.com/ninjasync/nxsqlite/sqliteh"
	"github.com/ninjasync/nxsqlite/sqlvalue"
	"go.uber.org/multierr"
)

// Config configures a Conn.
type Config struct {
	Path  string
	Flags sqliteh.OpenFlags // zero means sqliteh.OpenFlagsDefault

	// StoreDateTimeAsTicks stores date-times as integer ticks instead
	// of ISO 8601 text.
	StoreDateTimeAsTicks bool

	// Trace logs every command at debug level before it runs.
	Trace bool
	// TimeExecution logs the duration of every command at debug level.
	TimeExecution bool
	// Logger is the trace sink. Nil means slog.Default().
	Logger *slog.Logger

	// Tracer, if set, is told about every command that runs.
	Tracer sqliteh.Tracer
	// Registry shares handles between Conns. Nil means
	// sqlitepool.Default.
	Registry *sqlitepool.Registry
	// Location is the zone that ISO text with an offset is converted
	// into when read. Nil means time.Local.
	Location *time.Location
}

// Conn is a logical connection to a database.
// It is safe for concurrent use; statements against the shared handle
// are serialized by SQLite.
type Conn struct {
	db     sqliteh.DB
	path   string
	reg    *sqlitepool.Registry
	codec  sqlvalue.Codec
	trace  bool
	logger *slog.Logger
	tracer sqliteh.Tracer
	timer  *ExecutionTimer

	mappings sync.Map // reflect.Type -> Mapping
	inserts  sync.Map // reflect.Type -> *PreparedInsertCommand
	closed   atomic.Bool
}

// Open opens path with flags and default settings.
func Open(path string, flags sqliteh.OpenFlags) (*Conn, error) {
	return OpenConfig(Config{Path: path, Flags: flags})
}

// OpenConfig opens cfg.Path. The returned error is a *ConnectionError
// if the database could not be opened.
func OpenConfig(cfg Config) (*Conn, error) {
	reg := cfg.Registry
	if reg == nil {
		reg = sqlitepool.Default
	}
	flags := cfg.Flags
	if flags == 0 {
		flags = sqliteh.OpenFlagsDefault
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	db, err := reg.Acquire(cfg.Path, flags)
	if err != nil {
		return nil, err
	}
	c := &Conn{
		db:     db,
		path:   cfg.Path,
		reg:    reg,
		codec:  sqlvalue.Codec{Ticks: cfg.StoreDateTimeAsTicks, Location: cfg.Location},
		trace:  cfg.Trace,
		logger: logger,
		tracer: cfg.Tracer,
	}
	if cfg.TimeExecution {
		c.timer = NewExecutionTimer(logger)
	}
	return c, nil
}

// Close releases the connection's hold on the shared handle and
// finalizes its cached insert statements. Closing twice returns an
// *AlreadyClosedError.
func (c *Conn) Close() error {
	if c.closed.Swap(true) {
		return &AlreadyClosedError{Path: sqlitepool.Canonical(c.path)}
	}
	var err error
	c.inserts.Range(func(k, v any) bool {
		err = multierr.Append(err, v.(*PreparedInsertCommand).Close())
		c.inserts.Delete(k)
		return true
	})
	return multierr.Append(err, c.reg.Release(c.db))
}

// Handle returns the shared handle. It must not be closed.
func (c *Conn) Handle() sqliteh.DB { return c.db }

// Path returns the path the connection was opened with.
func (c *Conn) Path() string { return c.path }

func (c *Conn) StoreDateTimeAsTicks() bool { return c.codec.Ticks }

// Timer returns the execution timer, or nil when timing is off.
func (c *Conn) Timer() *ExecutionTimer { return c.timer }

// LastInsertRowid is the rowid of the most recent insert on the
// shared handle.
func (c *Conn) LastInsertRowid() int64 { return c.db.LastInsertRowid() }

// Execute runs a statement that returns no rows and reports the number
// of rows it changed.
func (c *Conn) Execute(query string, args ...any) (int, error) {
	return c.CreateCommand(query, args...).ExecuteNonQuery()
}

// GetMapping returns the mapping for t, a struct type or pointer to
// one. Mappings are built once per type and cached.
func (c *Conn) GetMapping(t reflect.Type) (Mapping, error) {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if m, ok := c.mappings.Load(t); ok {
		return m.(Mapping), nil
	}
	m, err := NewTableMapping(t)
	if err != nil {
		return nil, err
	}
	actual, _ := c.mappings.LoadOrStore(t, Mapping(m))
	return actual.(Mapping), nil
}

// RegisterMapping makes m the mapping for t on this connection,
// replacing the reflection-based one.
func (c *Conn) RegisterMapping(t reflect.Type, m Mapping) {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	c.mappings.Store(t, m)
}

// Insert inserts obj, a struct or pointer to struct, into its mapped
// table. If the mapping has an autoinc column and obj is a pointer,
// the column is set to the new rowid.
func (c *Conn) Insert(obj any) (int, error) {
	rv := reflect.ValueOf(obj)
	if !rv.IsValid() || (rv.Kind() == reflect.Pointer && rv.IsNil()) {
		return 0, fmt.Errorf("nxsqlite: cannot insert %v", obj)
	}
	m, err := c.GetMapping(rv.Type())
	if err != nil {
		return 0, err
	}
	if rv.Kind() != reflect.Pointer {
		p := reflect.New(rv.Type())
		p.Elem().Set(rv)
		rv = p
	}

	if c.closed.Load() {
		return 0, &AlreadyClosedError{Path: sqlitepool.Canonical(c.path)}
	}
	t := rv.Type().Elem()
	cmd, ok := c.inserts.Load(t)
	if !ok {
		var loaded bool
		cmd, loaded = c.inserts.LoadOrStore(t, newInsertCommand(c, m))
		if !loaded && c.closed.Load() {
			// Close may have swept the cache before this store.
			c.inserts.Delete(t)
			return 0, &AlreadyClosedError{Path: sqlitepool.Canonical(c.path)}
		}
	}
	ins := cmd.(*PreparedInsertCommand)

	var autoinc Column
	var args []any
	for _, col := range m.Columns() {
		if fc, ok := col.(*FieldColumn); ok && fc.AutoIncrement() {
			autoinc = col
			continue
		}
		args = append(args, col.Get(rv))
	}
	n, err := ins.ExecuteNonQuery(args...)
	if err != nil {
		return 0, err
	}
	if autoinc != nil {
		if err := autoinc.Set(rv, sqlvalue.Int(c.db.LastInsertRowid())); err != nil {
			return n, err
		}
	}
	return n, nil
}
