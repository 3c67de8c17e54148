package nxsqlite

import (
	"testing"

	"github.com/ninjasync/nxsqlite/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableQuerySQL(t *testing.T) {
	conn := openTestConn(t, Config{})

	tests := []struct {
		name     string
		q        *TableQuery[Item]
		wantSQL  string
		wantArgs []any
	}{
		{
			name:    "all",
			q:       Table[Item](conn),
			wantSQL: `SELECT * FROM "item"`,
		},
		{
			name:    "skip without take",
			q:       Table[Item](conn).Skip(5),
			wantSQL: `SELECT * FROM "item" LIMIT -1  OFFSET 5`,
		},
		{
			name:    "take and skip",
			q:       Table[Item](conn).Skip(5).Take(10),
			wantSQL: `SELECT * FROM "item" LIMIT 10 OFFSET 5`,
		},
		{
			name:     "where order take",
			q:        Table[Item](conn).Where("price > ?", 1).Where("name LIKE ? OR name = ?", "a%", "z").OrderBy("name DESC").Take(3),
			wantSQL:  `SELECT * FROM "item" WHERE ( price > ? ) AND ( name LIKE ? OR name = ? ) ORDER BY name DESC LIMIT 3`,
			wantArgs: []any{1, "a%", "z"},
		},
		{
			name:    "named table",
			q:       TableNamed[Item](conn, "archive").OrderBy("id"),
			wantSQL: `SELECT * FROM "archive" ORDER BY id`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args := tt.q.SQL()
			assert.Equal(t, tt.wantSQL, sql)
			assert.Equal(t, tt.wantArgs, args)
		})
	}

	sel := Select[string](Table[Item](conn).Where("id > ?", 2), "name")
	sql, args := sel.SQL()
	assert.Equal(t, `SELECT name FROM "item" WHERE ( id > ? )`, sql)
	assert.Equal(t, []any{2}, args)
}

func TestTableQueryClone(t *testing.T) {
	conn := openTestConn(t, Config{})
	q := Table[Item](conn).Where("price > ?", 1).Take(2)
	c := q.Clone().Where("name = ?", "x").Skip(1)

	sql, args := q.SQL()
	assert.Equal(t, `SELECT * FROM "item" WHERE ( price > ? ) LIMIT 2`, sql)
	assert.Equal(t, []any{1}, args)

	sql, args = c.SQL()
	assert.Equal(t, `SELECT * FROM "item" WHERE ( price > ? ) AND ( name = ? ) LIMIT 2 OFFSET 1`, sql)
	assert.Equal(t, []any{1, "x"}, args)

	r := CloneAs[Record](q)
	r.Where("color = ?", 2)
	sql, _ = r.SQL()
	assert.Equal(t, `SELECT * FROM "item" WHERE ( price > ? ) AND ( color = ? ) LIMIT 2`, sql)
	sql, _ = q.SQL()
	assert.Equal(t, `SELECT * FROM "item" WHERE ( price > ? ) LIMIT 2`, sql)
}

func TestFirstAfterWhere(t *testing.T) {
	logger, buf := testutil.NewLogBuffer()
	conn := openItems(t, Config{Trace: true, Logger: logger})
	insertItems(t, conn, "miss", "hit")

	q := Table[Item](conn).Where("name = ?", "hit")
	got, err := q.First()
	require.NoError(t, err)
	assert.Equal(t, "hit", got.Name)
	assert.Equal(t, int64(2), got.ID)

	msgs := buf.Messages()
	assert.Equal(t, "Executing Query: SELECT * FROM \"item\" WHERE ( name = ? ) LIMIT 1\n  0: hit", msgs[len(msgs)-1])

	// First does not leave a limit behind.
	sql, _ := q.SQL()
	assert.Equal(t, `SELECT * FROM "item" WHERE ( name = ? )`, sql)
}

func TestTableQueryTerminals(t *testing.T) {
	conn := openItems(t, Config{})
	insertItems(t, conn, "a", "b", "c", "d", "e")

	n, err := Table[Item](conn).Where("price > ?", 1).Count()
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	all, err := Table[*Item](conn).OrderBy("id").ToList()
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, "e", all[4].Name)

	page, err := Table[Item](conn).OrderBy("id").Skip(1).Take(2).ToList()
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "b", page[0].Name)
	assert.Equal(t, "c", page[1].Name)

	third, err := Table[Item](conn).OrderBy("id").ElementAt(2)
	require.NoError(t, err)
	assert.Equal(t, "c", third.Name)

	_, err = Table[Item](conn).ElementAt(10)
	assert.ErrorIs(t, err, ErrNoResult)

	_, err = Table[Item](conn).Where("name = ?", "none").First()
	assert.ErrorIs(t, err, ErrNoResult)

	zero, err := Table[Item](conn).Where("name = ?", "none").FirstOrDefault()
	require.NoError(t, err)
	assert.Equal(t, Item{}, zero)

	names, err := Select[string](Table[Item](conn).OrderBy("id DESC"), "name").Take(2).ToList()
	require.NoError(t, err)
	assert.Equal(t, []string{"e", "d"}, names)

	recs, err := TableNamed[Record](conn, "item").Where("id = ?", 1).ToList()
	require.NoError(t, err)
	require.Len(t, recs, 1)
	v, ok := recs[0].Get("name")
	require.True(t, ok)
	assert.Equal(t, "a", v.Text())
}

func TestTableQueryAll(t *testing.T) {
	conn := openItems(t, Config{})
	insertItems(t, conn, "a", "b", "c")

	for _, deferred := range []bool{false, true} {
		q := Table[Item](conn).OrderBy("id")
		if deferred {
			q.Deferred()
		}
		var names []string
		for it, err := range q.All() {
			require.NoError(t, err)
			names = append(names, it.Name)
			if len(names) == 2 {
				break
			}
		}
		assert.Equal(t, []string{"a", "b"}, names, "deferred=%v", deferred)
	}

	_, err := conn.Execute("DROP TABLE item")
	require.NoError(t, err)
}

type unmappable struct {
	Ch chan int
}

func TestTableQueryMappingError(t *testing.T) {
	conn := openTestConn(t, Config{})
	q := Table[unmappable](conn)
	_, err := q.Count()
	var unsupported *UnsupportedTypeError
	assert.ErrorAs(t, err, &unsupported)
	_, err = q.ToList()
	assert.ErrorAs(t, err, &unsupported)
	for _, err := range q.All() {
		assert.ErrorAs(t, err, &unsupported)
	}
}
