package nxsqlite

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/ninjasync/nxsqlite/sqlvalue"
)

// Mapping describes how rows of one table map onto a Go struct type.
// TableMapping is the reflection-based implementation; others may be
// registered with Conn.RegisterMapping.
type Mapping interface {
	TableName() string
	Columns() []Column
	// FindColumn resolves a result column name, ignoring case.
	FindColumn(name string) (Column, bool)
	// New returns a pointer to a new zero instance.
	New() reflect.Value
}

// Column is one mapped struct member. obj is always a pointer to the
// struct, as returned by Mapping.New.
type Column interface {
	Name() string
	// Type is the member's declared type, which selects the decoding.
	Type() reflect.Type
	Set(obj reflect.Value, v sqlvalue.Value) error
	Get(obj reflect.Value) any
}

// Tabler may be implemented by mapped types to name their table.
type Tabler interface {
	TableName() string
}

// TableMapping maps a struct type by reflection.
//
// Every exported field is a column, named by its db tag or else by the
// field name. A tag of "-" skips the field. The tag option autoinc
// marks an INTEGER PRIMARY KEY filled in by SQLite: it is left out of
// inserts and set from the new rowid afterwards.
//
//	type Item struct {
//		ID    int64  `db:"id,autoinc"`
//		Name  string `db:"name"`
//		Notes *string
//		cache []byte // unexported, not mapped
//	}
//
// The table is named by a TableName method if the type implements
// Tabler, and by the type name otherwise.
type TableMapping struct {
	typ     reflect.Type
	name    string
	cols    []*FieldColumn
	byName  map[string]*FieldColumn // lower-cased names
	autoinc *FieldColumn
}

// FieldColumn is a Column backed by a struct field.
type FieldColumn struct {
	name    string
	index   []int
	typ     reflect.Type
	autoinc bool
}

func (c *FieldColumn) Name() string        { return c.name }
func (c *FieldColumn) Type() reflect.Type  { return c.typ }
func (c *FieldColumn) AutoIncrement() bool { return c.autoinc }

func (c *FieldColumn) Set(obj reflect.Value, v sqlvalue.Value) error {
	if err := v.Assign(obj.Elem().FieldByIndex(c.index)); err != nil {
		return fmt.Errorf("column %q: %w", c.name, err)
	}
	return nil
}

func (c *FieldColumn) Get(obj reflect.Value) any {
	return obj.Elem().FieldByIndex(c.index).Interface()
}

var tablerType = reflect.TypeFor[Tabler]()

// NewTableMapping builds the mapping of t, a struct type or a pointer
// to one. Every mapped field must have a storable type.
func NewTableMapping(t reflect.Type) (*TableMapping, error) {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("nxsqlite: cannot map %v: not a struct", t)
	}

	m := &TableMapping{
		typ:    t,
		name:   t.Name(),
		byName: make(map[string]*FieldColumn),
	}
	switch {
	case t.Implements(tablerType):
		m.name = reflect.Zero(t).Interface().(Tabler).TableName()
	case reflect.PointerTo(t).Implements(tablerType):
		m.name = reflect.New(t).Interface().(Tabler).TableName()
	}

	for _, f := range reflect.VisibleFields(t) {
		if f.Anonymous || !f.IsExported() {
			continue
		}
		name, opts, _ := strings.Cut(f.Tag.Get("db"), ",")
		if name == "-" {
			continue
		}
		if name == "" {
			name = f.Name
		}
		if _, err := sqlvalue.TypeFor(f.Type); err != nil {
			return nil, fmt.Errorf("nxsqlite: field %s.%s: %w", t.Name(), f.Name, err)
		}
		key := strings.ToLower(name)
		if _, dup := m.byName[key]; dup {
			return nil, fmt.Errorf("nxsqlite: %s maps column %q twice", t.Name(), name)
		}
		col := &FieldColumn{name: name, index: f.Index, typ: f.Type}
		for _, opt := range strings.Split(opts, ",") {
			if opt == "autoinc" {
				col.autoinc = true
				m.autoinc = col
			}
		}
		m.cols = append(m.cols, col)
		m.byName[key] = col
	}
	if len(m.cols) == 0 {
		return nil, fmt.Errorf("nxsqlite: %s has no mapped fields", t.Name())
	}
	return m, nil
}

func (m *TableMapping) TableName() string        { return m.name }
func (m *TableMapping) MappedType() reflect.Type { return m.typ }
func (m *TableMapping) New() reflect.Value       { return reflect.New(m.typ) }

func (m *TableMapping) Columns() []Column {
	cols := make([]Column, len(m.cols))
	for i, c := range m.cols {
		cols[i] = c
	}
	return cols
}

func (m *TableMapping) FindColumn(name string) (Column, bool) {
	c, ok := m.byName[strings.ToLower(name)]
	if !ok {
		return nil, false
	}
	return c, true
}

// AutoIncrement returns the autoinc column, if any.
func (m *TableMapping) AutoIncrement() (*FieldColumn, bool) {
	return m.autoinc, m.autoinc != nil
}
