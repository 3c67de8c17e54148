package nxsqlite

import (
	"reflect"
	"testing"

	"github.com/ninjasync/nxsqlite/sqlvalue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Base struct {
	Created string
}

type Tagged struct {
	Base
	Key    string `db:"key"`
	Skip   int    `db:"-"`
	Plain  float64
	hidden int
}

type ptrTabler struct {
	N int
}

func (*ptrTabler) TableName() string { return "ptr_tabler" }

func TestTableMapping(t *testing.T) {
	m, err := NewTableMapping(reflect.TypeFor[*Tagged]())
	require.NoError(t, err)
	assert.Equal(t, "Tagged", m.TableName())
	assert.Equal(t, reflect.TypeFor[Tagged](), m.MappedType())

	var names []string
	for _, c := range m.Columns() {
		names = append(names, c.Name())
	}
	assert.Equal(t, []string{"Created", "key", "Plain"}, names)

	col, ok := m.FindColumn("KEY")
	require.True(t, ok)
	assert.Equal(t, reflect.TypeFor[string](), col.Type())
	_, ok = m.FindColumn("Skip")
	assert.False(t, ok)
	_, ok = m.FindColumn("hidden")
	assert.False(t, ok)

	obj := m.New()
	require.NoError(t, col.Set(obj, sqlvalue.Text("k1")))
	created, _ := m.FindColumn("created")
	require.NoError(t, created.Set(obj, sqlvalue.Text("now")))
	assert.Equal(t, "k1", col.Get(obj))
	assert.Equal(t, Tagged{Base: Base{Created: "now"}, Key: "k1"}, *obj.Interface().(*Tagged))

	_, hasAuto := m.AutoIncrement()
	assert.False(t, hasAuto)

	pm, err := NewTableMapping(reflect.TypeFor[ptrTabler]())
	require.NoError(t, err)
	assert.Equal(t, "ptr_tabler", pm.TableName())

	im, err := NewTableMapping(reflect.TypeFor[Item]())
	require.NoError(t, err)
	auto, ok := im.AutoIncrement()
	require.True(t, ok)
	assert.Equal(t, "id", auto.Name())
}

func TestTableMappingErrors(t *testing.T) {
	type dup struct {
		A int `db:"x"`
		B int `db:"X"`
	}
	type empty struct {
		a int
	}
	for _, typ := range []reflect.Type{
		reflect.TypeFor[int](),
		reflect.TypeFor[dup](),
		reflect.TypeFor[empty](),
		reflect.TypeFor[unmappable](),
	} {
		_, err := NewTableMapping(typ)
		assert.Error(t, err, "%v", typ)
	}
}

func TestColumnSetTypeMismatch(t *testing.T) {
	m, err := NewTableMapping(reflect.TypeFor[Tagged]())
	require.NoError(t, err)
	col, _ := m.FindColumn("plain")
	err = col.Set(m.New(), sqlvalue.Text("not a number"))
	assert.ErrorContains(t, err, `column "Plain"`)
}

// upperMapping maps Tagged with every column name upper-cased.
type upperMapping struct {
	*TableMapping
}

func (m upperMapping) TableName() string { return "TAGGED" }

func TestRegisterMapping(t *testing.T) {
	conn := openTestConn(t, Config{})
	base, err := NewTableMapping(reflect.TypeFor[Tagged]())
	require.NoError(t, err)
	conn.RegisterMapping(reflect.TypeFor[*Tagged](), upperMapping{base})

	got, err := conn.GetMapping(reflect.TypeFor[Tagged]())
	require.NoError(t, err)
	assert.Equal(t, "TAGGED", got.TableName())

	_, err = conn.Execute(`CREATE TABLE TAGGED (Created TEXT, key TEXT, Plain REAL)`)
	require.NoError(t, err)
	_, err = conn.Insert(Tagged{Key: "a", Plain: 1.5})
	require.NoError(t, err)
	rows, err := Table[Tagged](conn).ToList()
	require.NoError(t, err)
	assert.Equal(t, []Tagged{{Key: "a", Plain: 1.5}}, rows)
}
