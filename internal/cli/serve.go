package cli

import (
	"context"
	"errors"
	"expvar"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/ninjasync/nxsqlite"
	"github.com/ninjasync/nxsqlite/sqlitepool"
	"github.com/ninjasync/nxsqlite/sqlitestats"
	"github.com/ninjasync/nxsqlite/sqlstats"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var publishMetrics sync.Once

// newRouter routes the debug pages and the query endpoint.
func newRouter(e *env, conn *nxsqlite.Conn, tracer *sqlstats.Tracer) chi.Router {
	publishMetrics.Do(func() { expvar.Publish("sqlitepool", &sqlitepool.Metrics) })

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Route("/debug", func(r chi.Router) {
		r.Get("/sqlstats", tracer.Handle)
		r.Method(http.MethodGet, "/sqlite", sqlitestats.Handler(e.reg))
		r.Method(http.MethodGet, "/vars", expvar.Handler())
	})
	r.Get("/query", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		sql := q.Get("q")
		if sql == "" {
			http.Error(w, "missing q", http.StatusBadRequest)
			return
		}
		recs, err := nxsqlite.ExecuteQuery[nxsqlite.Record](conn.CreateCommand(sql, parseArgs(q["arg"])...))
		if err != nil {
			e.logger.Warn("query failed", "query", sql, "err", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := renderJSON(w, recs); err != nil {
			e.logger.Warn("writing response", "err", err)
		}
	})
	return r
}

// openServing opens the database for /query. Unless writable, the
// handle refuses writes; the registry is private to this process, so
// nothing else shares it.
func (e *env) openServing(writable bool) (*nxsqlite.Conn, func(), error) {
	conn, done, err := e.open()
	if err != nil || writable {
		return conn, done, err
	}
	if _, err := conn.Execute("PRAGMA query_only = ON"); err != nil {
		done()
		return nil, nil, err
	}
	return conn, done, nil
}

func newServeCmd() *cobra.Command {
	var writable bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve queries and debug pages over HTTP",
		Long: `Serve the database over HTTP until interrupted.

  GET /query?q=<sql>&arg=<v>...   run a query, rows as JSON
  GET /debug/sqlstats             per-query statistics
  GET /debug/sqlite               open databases and their usage
  GET /debug/vars                 expvar counters

/query is read-only unless --writable is given. It has no
authentication, so keep --addr on a loopback address.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e := getEnv(cmd)
			tracer := &sqlstats.Tracer{}
			e.tracer = tracer
			conn, done, err := e.openServing(writable)
			if err != nil {
				return err
			}
			defer done()

			srv := &http.Server{
				Addr:              e.cfg.Addr,
				Handler:           newRouter(e, conn, tracer),
				ReadHeaderTimeout: 10 * time.Second,
			}
			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error {
				e.logger.Info("serving", "addr", srv.Addr, "db", e.cfg.DB)
				if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
			return g.Wait()
		},
	}
	cmd.Flags().String("addr", "", "listen address (default localhost:8080)")
	cmd.Flags().BoolVar(&writable, "writable", false, "allow /query to modify the database")
	return cmd
}
