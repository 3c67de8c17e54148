package sqlitestats

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ninjasync/nxsqlite/internal/testutil"
	"github.com/ninjasync/nxsqlite/sqlitepool"
	"github.com/ninjasync/nxsqlite/sqliteh"
)

func fetch(t *testing.T, s *Stats, query string) string {
	t.Helper()
	srv := httptest.NewServer(s)
	defer srv.Close()
	resp, err := srv.Client().Get(srv.URL + query)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func TestEntries(t *testing.T) {
	reg := sqlitepool.NewRegistry(sqlitepool.Options{Logger: testutil.NewTestLogger(t)})
	dir := t.TempDir()
	busy := filepath.Join(dir, "busy.db")
	idle := filepath.Join(dir, "idle.db")

	db1, err := reg.Acquire(busy, sqliteh.OpenFlagsDefault)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := reg.Acquire(busy, sqliteh.OpenFlagsDefault); err != nil {
		t.Fatal(err)
	}
	db2, err := reg.Acquire(idle, sqliteh.OpenFlagsDefault)
	if err != nil {
		t.Fatal(err)
	}
	if err := reg.Release(db2); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		reg.Release(db1)
		reg.Release(db1)
		reg.Purge()
	})

	s := fetch(t, Handler(reg), "")
	if want := "sqlite databases (2, 1 in use):"; !strings.Contains(s, want) {
		t.Fatalf("want %q, got:\n%s", want, s)
	}
	if want := "busy.db\t2\t"; !strings.Contains(s, want) {
		t.Fatalf("want %q, got:\n%s", want, s)
	}
	if want := "idle.db\t0\tidle"; !strings.Contains(s, want) {
		t.Fatalf("want %q, got:\n%s", want, s)
	}

	var ents []sqlitepool.Entry
	if err := json.Unmarshal([]byte(fetch(t, Handler(reg), "?format=json")), &ents); err != nil {
		t.Fatal(err)
	}
	if len(ents) != 2 || ents[0].Usage != 2 || ents[1].Usage != 0 {
		t.Fatalf("entries = %+v", ents)
	}
}

func TestEmpty(t *testing.T) {
	reg := sqlitepool.NewRegistry(sqlitepool.Options{})
	if got := fetch(t, Handler(reg), "?format=json"); strings.TrimSpace(got) != "[]" {
		t.Fatalf("got %q, want []", got)
	}
	if want := "(0, 0 in use)"; !strings.Contains(fetch(t, Handler(reg), ""), want) {
		t.Fatalf("missing %q", want)
	}
}
