// Package cli implements the nxsql command.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/ninjasync/nxsqlite"
	"github.com/ninjasync/nxsqlite/drvsqlite"
	"github.com/ninjasync/nxsqlite/internal/config"
	"github.com/ninjasync/nxsqlite/internal/logging"
	"github.com/ninjasync/nxsqlite/sqlitepool"
	"github.com/ninjasync/nxsqlite/sqliteh"
	"github.com/spf13/cobra"
)

// Version is set at build time.
var Version = "dev"

// envKey is the context key of the *env set up before each command.
type envKey struct{}

// env is what every subcommand needs to reach the database.
type env struct {
	cfg    *config.Config
	logger *slog.Logger
	reg    *sqlitepool.Registry
	tracer sqliteh.Tracer // set by serve
}

func getEnv(cmd *cobra.Command) *env {
	if e, ok := cmd.Context().Value(envKey{}).(*env); ok {
		return e
	}
	panic("cli: command run without environment")
}

// open opens the configured database on a registry private to this
// invocation. The returned func closes it and purges the registry.
func (e *env) open() (*nxsqlite.Conn, func(), error) {
	conn, err := nxsqlite.OpenConfig(nxsqlite.Config{
		Path:                 e.cfg.DB,
		StoreDateTimeAsTicks: e.cfg.Ticks,
		Trace:                e.cfg.Trace,
		TimeExecution:        e.cfg.Time,
		Logger:               e.logger,
		Tracer:               e.tracer,
		Registry:             e.reg,
	})
	if err != nil {
		return nil, nil, err
	}
	return conn, func() {
		if err := conn.Close(); err != nil {
			e.logger.Warn("closing database", "path", e.cfg.DB, "err", err)
		}
		if _, err := e.reg.Purge(); err != nil {
			e.logger.Warn("purging registry", "err", err)
		}
	}, nil
}

func newEnv(cfg *config.Config, logger *slog.Logger) *env {
	opts := sqlitepool.Options{Logger: logger}
	if cfg.Engine == config.EngineDatabase {
		opts.Open = drvsqlite.OpenFunc
	}
	return &env{cfg: cfg, logger: logger, reg: sqlitepool.NewRegistry(opts)}
}

// newLogger builds the logger for cfg. Tracing and timing log at debug
// level, so either lowers the level to debug.
func newLogger(cmd *cobra.Command, cfg *config.Config) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(cfg.LogFormat)
	if err != nil {
		return nil, err
	}
	if (cfg.Trace || cfg.Time) && level > slog.LevelDebug {
		level = slog.LevelDebug
	}
	return logging.New(cmd.ErrOrStderr(), level, format), nil
}

// NewRootCmd returns the nxsql command tree.
func NewRootCmd() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:   "nxsql",
		Short: "Query SQLite databases through nxsqlite",
		Long: `nxsql runs SQL against a SQLite database using the nxsqlite command
layer, so values are bound and read with the same codec applications use.

Settings come from nxsql.yaml, NXSQL_* environment variables and flags,
in increasing order of precedence.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}
			cfg, err := config.Load(cfgFile, cmd.Flags())
			if err != nil {
				return err
			}
			logger, err := newLogger(cmd, cfg)
			if err != nil {
				return err
			}
			if cfg.File != "" {
				logger.Debug("using config file", "path", cfg.File)
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cmd.SetContext(context.WithValue(ctx, envKey{}, newEnv(cfg, logger)))
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: ./nxsql.yaml)")
	pf.String("db", "", "database path (default :memory:)")
	pf.Bool("ticks", true, "store date-times as integer ticks instead of ISO 8601 text")
	pf.Bool("trace", false, "log every command before it runs")
	pf.Bool("time", false, "log the duration of every command")
	pf.String("engine", "", "SQLite engine: native or database (default native)")
	pf.StringP("format", "o", "", "output format: table, json or csv (default table)")
	pf.String("log-level", "", "log level: debug, info, warn or error (default info)")
	pf.String("log-format", "", "log format: text or json (default text)")

	_ = root.RegisterFlagCompletionFunc("format", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return []string{"table", "json", "csv"}, cobra.ShellCompDirectiveNoFileComp
	})
	_ = root.RegisterFlagCompletionFunc("engine", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return []string{config.EngineNative, config.EngineDatabase}, cobra.ShellCompDirectiveNoFileComp
	})

	root.AddCommand(
		newQueryCmd(),
		newExecCmd(),
		newScalarCmd(),
		newIsodateCmd(),
		newDropAllCmd(),
		newServeCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and engine information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := drvsqlite.GetInfo()
			fmt.Fprintf(cmd.OutOrStdout(), "nxsql %s\ndatabase engine: %s (%s)\n", Version, info.DriverName, info.DriverType)
			return nil
		},
	}
}

// Execute runs the root command with ctx.
func Execute(ctx context.Context) error {
	root := NewRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
