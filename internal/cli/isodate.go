package cli

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/ninjasync/nxsqlite/isodate"
	"github.com/spf13/cobra"
)

func newIsodateCmd() *cobra.Command {
	var zone string
	cmd := &cobra.Command{
		Use:   "isodate <text>",
		Short: "Parse an ISO 8601 date-time and show how it is stored",
		Long: `Parse an ISO 8601 date-time of the form

  YYYY-MM-DDTHH:mm:ss[.fffffff][Z|±HH[:]mm]

and print its kind, its tick count and its text form. Times with an
offset are converted to --zone.`,
		Example: `  nxsql isodate 2024-02-29T10:15:30.25+01:00 --zone UTC`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loc := time.Local
			if zone != "" {
				var err error
				if loc, err = time.LoadLocation(zone); err != nil {
					return err
				}
			}
			d, ok := isodate.ParseIn(args[0], loc)
			if !ok {
				return fmt.Errorf("not an ISO 8601 date-time: %q", args[0])
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendRows([]table.Row{
				{"kind", d.Kind},
				{"ticks", d.Ticks},
				{"iso", d.Format()},
				{"time", d.Time().Format(time.RFC3339Nano)},
			})
			if d.Kind == isodate.Local {
				t.AppendRow(table.Row{"offset", d.Offset})
			}
			t.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&zone, "zone", "", "IANA zone offsets are converted into (default local)")
	return cmd
}
