// Package sqlstats implements an sqliteh.Tracer that collects query stats.
package sqlstats

import (
	"fmt"
	"html"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Tracer implements sqliteh.Tracer and collects per-query stats.
//
// To use, set it as nxsqlite.Config.Tracer, then serve
// http.HandlerFunc(tracer.Handle) on a debug server.
type Tracer struct {
	// Once a query has been seen, only the read lock is
	// required to update its stats.
	mu      sync.RWMutex
	queries map[string]*queryStats // normalized query -> stats
}

type queryStats struct {
	count    atomic.Int64
	errors   atomic.Int64
	duration atomic.Int64 // time.Duration
}

// QueryStats is a snapshot of the stats of one normalized query.
type QueryStats struct {
	Query    string
	Count    int64
	Errors   int64
	Duration time.Duration // total
	Mean     time.Duration
}

var inList = regexp.MustCompile(`(?i)\bIN\s*\(\s*[^()\s][^()]*\)`)

// normalizeQuery collapses literal IN lists so that queries differing
// only in the length of such a list share one entry. Subqueries are
// left alone.
func normalizeQuery(q string) string {
	if !strings.Contains(strings.ToUpper(q), "IN") {
		return q
	}
	return inList.ReplaceAllStringFunc(q, func(m string) string {
		inner := strings.TrimSpace(m[strings.IndexByte(m, '(')+1 : len(m)-1])
		if len(inner) >= 6 && strings.EqualFold(inner[:6], "SELECT") {
			return m
		}
		return "IN (...)"
	})
}

func (t *Tracer) queryStats(query string) *queryStats {
	t.mu.RLock()
	stats := t.queries[query]
	t.mu.RUnlock()

	if stats != nil {
		return stats
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.queries == nil {
		t.queries = make(map[string]*queryStats)
	}
	stats = t.queries[query]
	if stats == nil {
		stats = new(queryStats)
		t.queries[query] = stats
	}
	return stats
}

// Query records one execution of query.
func (t *Tracer) Query(query string, duration time.Duration, err error) {
	stats := t.queryStats(normalizeQuery(query))

	stats.count.Add(1)
	stats.duration.Add(int64(duration))
	if err != nil {
		stats.errors.Add(1)
	}
}

// Collect returns a snapshot of the stats, in no particular order.
func (t *Tracer) Collect() []*QueryStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	rows := make([]*QueryStats, 0, len(t.queries))
	for query, s := range t.queries {
		row := &QueryStats{
			Query:    query,
			Count:    s.count.Load(),
			Errors:   s.errors.Load(),
			Duration: time.Duration(s.duration.Load()),
		}
		if row.Count > 0 {
			row.Mean = row.Duration / time.Duration(row.Count)
		}
		rows = append(rows, row)
	}
	return rows
}

// Reset forgets all collected stats.
func (t *Tracer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.queries = nil
}

// Handle serves the stats as an HTML table. The sort parameter is one
// of count (the default), query, duration, errors or mean.
func (t *Tracer) Handle(w http.ResponseWriter, r *http.Request) {
	sortParam := strings.TrimSpace(r.URL.Query().Get("sort"))
	rows := t.Collect()

	var less func(a, b *QueryStats) bool
	switch sortParam {
	case "", "count":
		less = func(a, b *QueryStats) bool { return a.Count > b.Count }
	case "query":
		less = func(a, b *QueryStats) bool { return a.Query < b.Query }
	case "duration":
		less = func(a, b *QueryStats) bool { return a.Duration > b.Duration }
	case "errors":
		less = func(a, b *QueryStats) bool { return a.Errors > b.Errors }
	case "mean":
		less = func(a, b *QueryStats) bool { return a.Mean > b.Mean }
	default:
		http.Error(w, fmt.Sprintf("unknown sort: %q", sortParam), http.StatusBadRequest)
		return
	}
	sort.SliceStable(rows, func(i, j int) bool { return less(rows[i], rows[j]) })

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `<!DOCTYPE html><html><body>
	<p>Trace of SQLite queries run via nxsqlite.</p>
	<table border="1">
	<tr>
	<th><a href="?sort=query">Query</a></th>
	<th><a href="?sort=count">Count</a></th>
	<th><a href="?sort=duration">Duration</a></th>
	<th><a href="?sort=mean">Mean</a></th>
	<th><a href="?sort=errors">Errors</a></th>
	</tr>
	`)
	for _, row := range rows {
		fmt.Fprintf(w, "<tr><td>%s</td><td>%d</td><td>%s</td><td>%s</td><td>%d</td></tr>\n",
			html.EscapeString(row.Query),
			row.Count,
			row.Duration.Round(time.Millisecond),
			row.Mean.Round(time.Microsecond),
			row.Errors,
		)
	}
	fmt.Fprintf(w, "</table></body></html>")
}
