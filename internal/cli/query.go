package cli

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/ninjasync/nxsqlite"
	"github.com/ninjasync/nxsqlite/sqlitepool"
	"github.com/ninjasync/nxsqlite/sqlvalue"
	"github.com/spf13/cobra"
)

// parseArgs turns command-line arguments into bindings. Integers and
// floats bind as numbers, everything else as text.
func parseArgs(args []string) []any {
	out := make([]any, len(args))
	for i, a := range args {
		if n, err := strconv.ParseInt(a, 10, 64); err == nil {
			out[i] = n
		} else if f, err := strconv.ParseFloat(a, 64); err == nil {
			out[i] = f
		} else {
			out[i] = a
		}
	}
	return out
}

func newQueryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "query <sql> [args...]",
		Short: "Run a query and print its rows",
		Long: `Run a query and print its rows.

Arguments after the SQL bind to its ? parameters in order.`,
		Example: `  nxsql --db app.db query 'SELECT * FROM item WHERE price > ?' 10`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e := getEnv(cmd)
			conn, done, err := e.open()
			if err != nil {
				return err
			}
			defer done()

			recs, err := nxsqlite.ExecuteQuery[nxsqlite.Record](conn.CreateCommand(args[0], parseArgs(args[1:])...))
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), e.cfg.Format, recs)
		},
	}
}

func newExecCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "exec [<sql> [args...]]",
		Short: "Run a statement and print the number of changed rows",
		Long: `Run a statement and print the number of changed rows.

With --file the statements in the file are run in order instead and
nothing is printed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (file == "") == (len(args) == 0) {
				return errors.New("need either SQL or --file, not both")
			}
			conn, done, err := getEnv(cmd).open()
			if err != nil {
				return err
			}
			defer done()

			if file != "" {
				script, err := os.ReadFile(file)
				if err != nil {
					return err
				}
				return sqlitepool.ExecScript(conn.Handle(), string(script))
			}
			n, err := conn.Execute(args[0], parseArgs(args[1:])...)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d rows changed\n", n)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "run the SQL script in this file")
	return cmd
}

func newScalarCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scalar <sql> [args...]",
		Short: "Run a query and print the first column of its first row",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, done, err := getEnv(cmd).open()
			if err != nil {
				return err
			}
			defer done()

			v, err := nxsqlite.ExecuteScalar[sqlvalue.Value](conn.CreateCommand(args[0], parseArgs(args[1:])...))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatValue(v))
			return nil
		},
	}
}

func newDropAllCmd() *cobra.Command {
	var schema string
	cmd := &cobra.Command{
		Use:   "drop-all",
		Short: "Drop every table, view, index and trigger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e := getEnv(cmd)
			conn, done, err := e.open()
			if err != nil {
				return err
			}
			defer done()

			if err := nxsqlite.DropAll(conn, schema); err != nil {
				return err
			}
			e.logger.Info("dropped schema", "path", e.cfg.DB, "schema", schema)
			return nil
		},
	}
	cmd.Flags().StringVar(&schema, "schema", "main", "schema to empty")
	return cmd
}
