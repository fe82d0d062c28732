package main

import (
	"encoding/json"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"gopkg.in/yaml.v3"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

// view is what a command prints: v is encoded for json and yaml output,
// the table otherwise.
type view struct {
	v       any
	headers []string
	rows    [][]string
	aligns  []columnAlignment
	footer  string
}

func (a *app) print(out view) error {
	switch a.cli.Output {
	case "json":
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out.v)
	case "yaml":
		enc := yaml.NewEncoder(a.stdout)
		enc.SetIndent(2)
		if err := enc.Encode(out.v); err != nil {
			return err
		}
		return enc.Close()
	}
	if len(out.rows) == 0 {
		fmt.Fprintln(a.stdout, "(none)")
	} else {
		fmt.Fprintln(a.stdout, renderTable(out.headers, out.rows, out.aligns))
	}
	if out.footer != "" {
		fmt.Fprintln(a.stdout, out.footer)
	}
	return nil
}

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

// short cuts a digest or id for table output.
func short(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
