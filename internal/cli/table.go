package cli

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/mgpai22/voxsrt/internal/batch"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

// printSummary writes the per-file table followed by "succeeded/total".
func printSummary(w io.Writer, verb string, summary batch.Summary) {
	if summary.Total > 0 {
		rows := make([][]string, 0, len(summary.Results))
		for _, r := range summary.Results {
			status := "ok"
			detail := r.Detail
			if !r.OK() {
				status = "failed"
				if detail == "" {
					detail = r.Err.Error()
				} else {
					detail += ": " + r.Err.Error()
				}
			}
			rows = append(rows, []string{
				filepath.Base(r.Path),
				status,
				detail,
				r.Elapsed.Round(10 * time.Millisecond).String(),
			})
		}
		fmt.Fprintln(w, renderTable(
			[]string{"File", "Status", "Detail", "Elapsed"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight},
		))
	}
	fmt.Fprintf(w, "%s %d/%d files\n", verb, summary.Succeeded, summary.Total)
}
