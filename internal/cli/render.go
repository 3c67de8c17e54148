package cli

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/ninjasync/nxsqlite"
	"github.com/ninjasync/nxsqlite/sqlvalue"
)

// render writes recs to w in format: table, json or csv.
func render(w io.Writer, format string, recs []nxsqlite.Record) error {
	var cols []string
	if len(recs) > 0 {
		cols = recs[0].Columns
	}
	switch format {
	case "json":
		return renderJSON(w, recs)
	case "csv":
		return renderCSV(w, cols, recs)
	default:
		return renderTable(w, cols, recs)
	}
}

func renderTable(w io.Writer, cols []string, recs []nxsqlite.Record) error {
	if len(recs) == 0 {
		_, err := fmt.Fprintln(w, "(0 rows)")
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	header := make(table.Row, len(cols))
	for i, col := range cols {
		header[i] = col
	}
	t.AppendHeader(header)
	for _, rec := range recs {
		row := make(table.Row, len(rec.Values))
		for i, v := range rec.Values {
			row[i] = formatValue(v)
		}
		t.AppendRow(row)
	}
	t.Render()
	_, err := fmt.Fprintf(w, "(%s rows)\n", humanize.Comma(int64(len(recs))))
	return err
}

func renderJSON(w io.Writer, recs []nxsqlite.Record) error {
	out := make([]map[string]any, len(recs))
	for i, rec := range recs {
		row := make(map[string]any, len(rec.Columns))
		for j, col := range rec.Columns {
			row[col] = rec.Values[j].Interface()
		}
		out[i] = row
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func renderCSV(w io.Writer, cols []string, recs []nxsqlite.Record) error {
	cw := csv.NewWriter(w)
	if len(cols) > 0 {
		if err := cw.Write(cols); err != nil {
			return err
		}
	}
	for _, rec := range recs {
		line := make([]string, len(rec.Values))
		for i, v := range rec.Values {
			if v.IsNull() {
				continue
			}
			line[i] = v.String()
		}
		if err := cw.Write(line); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// formatValue renders one cell for the table. Blobs show their size.
func formatValue(v sqlvalue.Value) string {
	if v.Kind() == sqlvalue.KindBlob {
		return fmt.Sprintf("<blob %s>", humanize.IBytes(uint64(len(v.Blob()))))
	}
	return v.String()
}
