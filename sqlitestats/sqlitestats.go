// Package sqlitestats serves the state of a connection registry for
// debugging.
package sqlitestats

import (
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"

	"github.com/ninjasync/nxsqlite/sqlitepool"
)

// Stats reports the shared handles of a registry.
//
// Stats implements http.Handler.
type Stats struct {
	reg *sqlitepool.Registry
}

// Handler returns a Stats for reg. A nil reg means sqlitepool.Default.
func Handler(reg *sqlitepool.Registry) *Stats {
	if reg == nil {
		reg = sqlitepool.Default
	}
	return &Stats{reg: reg}
}

// ServeHTTP lists every entry with its usage count. With ?format=json
// the entries are written as a JSON array instead of HTML.
func (s *Stats) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ents := s.reg.Entries()

	if r.URL.Query().Get("format") == "json" {
		w.Header().Set("Content-Type", "application/json")
		if ents == nil {
			ents = []sqlitepool.Entry{}
		}
		json.NewEncoder(w).Encode(ents)
		return
	}

	var open int
	for _, e := range ents {
		if e.Usage > 0 {
			open++
		}
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(200)
	io.WriteString(w, "<html><head><title>sqlite databases</title></head><body><pre>\n")
	fmt.Fprintf(w, "sqlite databases (%d, %d in use):", len(ents), open)
	for _, e := range ents {
		idle := ""
		if e.Usage == 0 {
			idle = "idle"
		}
		fmt.Fprintf(w, "\n\t%s\t%d\t%s", html.EscapeString(e.Path), e.Usage, idle)
	}
	io.WriteString(w, "\n</pre></body></html>")
}
