// Package sqlitepool shares one SQLite database handle per file.
//
// A Registry counts how many logical connections use each handle.
// Every Acquire of a path returns the same handle until it is purged,
// and Release only decrements the count: handles stay open at zero
// usage and are reused by the next Acquire. Call Purge to close them.
package sqlitepool

import (
	"expvar"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/ninjasync/nxsqlite/libsqlite"
	"github.com/ninjasync/nxsqlite/sqliteh"
	"go.uber.org/multierr"
)

// Metrics counts registry events. The keys are "open", "reuse",
// "release", "double-release", "open-error" and "purge".
// It is not published; callers may expvar.Publish it.
var Metrics expvar.Map

// Default is the process-wide registry.
var Default = NewRegistry(Options{})

// Options configures a Registry.
type Options struct {
	// Open opens a new handle. Nil means the native engine.
	Open sqliteh.OpenFunc
	// Init is called once on each newly opened handle, before it is
	// handed out. An Init error closes the handle and fails Acquire.
	Init func(sqliteh.DB) error
	// Logger receives debug logs. Nil means slog.Default().
	Logger *slog.Logger
}

// A Registry maps canonical database paths to shared handles.
// It is safe for concurrent use.
type Registry struct {
	open   sqliteh.OpenFunc
	init   func(sqliteh.DB) error
	logger *slog.Logger

	mu      sync.Mutex
	entries map[string]*entry // by canonical path
}

type entry struct {
	path  string
	db    sqliteh.DB
	usage int
}

// Entry describes one shared handle.
type Entry struct {
	Path  string
	Usage int
}

func NewRegistry(opts Options) *Registry {
	r := &Registry{
		open:    opts.Open,
		init:    opts.Init,
		logger:  opts.Logger,
		entries: make(map[string]*entry),
	}
	if r.open == nil {
		r.open = func(filename string, flags sqliteh.OpenFlags, vfs string) (sqliteh.DB, error) {
			db, err := libsqlite.Open(filename, flags, vfs)
			if err != nil {
				return nil, err
			}
			return db, nil
		}
	}
	return r
}

func (r *Registry) log() *slog.Logger {
	if r.logger != nil {
		return r.logger
	}
	return slog.Default()
}

// ConnectionError is returned when a database cannot be opened.
type ConnectionError struct {
	Path string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("sqlitepool: cannot open %q: %v", e.Path, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// AlreadyClosedError is returned by Release for a handle the registry
// does not know or whose usage is already zero.
type AlreadyClosedError struct {
	Path string // empty if the handle is unknown
}

func (e *AlreadyClosedError) Error() string {
	if e.Path == "" {
		return "sqlitepool: database already closed"
	}
	return fmt.Sprintf("sqlitepool: database %q already closed", e.Path)
}

// Canonical returns the key under which path is shared: the cleaned
// absolute file name. In-memory databases and file: URIs are used as
// given.
func Canonical(path string) string {
	if path == "" || path == ":memory:" || strings.HasPrefix(path, "file:") {
		return path
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return abs
}

// Acquire returns the shared handle for path, opening it with flags if
// the registry has none. Flags are only used by that first open;
// later calls share the handle whatever flags they pass.
func (r *Registry) Acquire(path string, flags sqliteh.OpenFlags) (sqliteh.DB, error) {
	key := Canonical(path)

	r.mu.Lock()
	defer r.mu.Unlock()

	if e := r.entries[key]; e != nil {
		e.usage++
		Metrics.Add("reuse", 1)
		r.log().Debug("database usage changed", "path", key, "usage", e.usage)
		return e.db, nil
	}

	r.log().Debug("opening database", "path", key, "flags", flags)
	db, err := r.open(key, flags, "")
	if err != nil {
		Metrics.Add("open-error", 1)
		return nil, &ConnectionError{Path: key, Err: err}
	}
	if r.init != nil {
		if err := r.init(db); err != nil {
			Metrics.Add("open-error", 1)
			return nil, &ConnectionError{Path: key, Err: multierr.Append(err, db.Close())}
		}
	}
	r.entries[key] = &entry{path: key, db: db, usage: 1}
	Metrics.Add("open", 1)
	r.log().Debug("database usage changed", "path", key, "usage", 1)
	return db, nil
}

// Release gives back one use of db. The handle itself stays open.
func (r *Registry) Release(db sqliteh.DB) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.lookup(db)
	if e == nil {
		Metrics.Add("double-release", 1)
		return &AlreadyClosedError{}
	}
	if e.usage == 0 {
		Metrics.Add("double-release", 1)
		return &AlreadyClosedError{Path: e.path}
	}
	e.usage--
	Metrics.Add("release", 1)
	r.log().Debug("database usage reduced", "path", e.path, "usage", e.usage)
	return nil
}

func (r *Registry) lookup(db sqliteh.DB) *entry {
	for _, e := range r.entries {
		if e.db == db {
			return e
		}
	}
	return nil
}

// Usage reports the usage count of path.
func (r *Registry) Usage(path string) (usage int, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.entries[Canonical(path)]
	if e == nil {
		return 0, false
	}
	return e.usage, true
}

// Entries returns the registry's entries sorted by path.
func (r *Registry) Entries() []Entry {
	r.mu.Lock()
	ents := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		ents = append(ents, Entry{Path: e.path, Usage: e.usage})
	}
	r.mu.Unlock()

	sort.Slice(ents, func(i, j int) bool { return ents[i].Path < ents[j].Path })
	return ents
}

// Purge closes and forgets every handle with zero usage. It returns
// how many were removed and the errors from closing them.
func (r *Registry) Purge() (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int
	var err error
	for key, e := range r.entries {
		if e.usage > 0 {
			continue
		}
		delete(r.entries, key)
		n++
		if cerr := e.db.Close(); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("%s: %w", key, cerr))
		}
		r.log().Debug("database closed", "path", key)
	}
	Metrics.Add("purge", int64(n))
	return n, err
}
