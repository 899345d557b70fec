// Package output renders command results as tables, JSON, CSV or
// markdown. The "auto" format picks tables on a TTY and markdown
// elsewhere so piped output stays readable.
package output

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"golang.org/x/term"
)

// ResolveFormat maps "auto" to a concrete format for the writer.
func ResolveFormat(format string, w io.Writer) string {
	if format != "auto" && format != "" {
		return format
	}
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return "table"
	}
	return "markdown"
}

// RenderRows renders a SQL result set in the given format.
func RenderRows(w io.Writer, rows *sql.Rows, format string) error {
	cols, err := rows.Columns()
	if err != nil {
		return err
	}

	var records [][]string
	for rows.Next() {
		values := make([]any, len(cols))
		valuePtrs := make([]any, len(cols))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return err
		}

		record := make([]string, len(cols))
		for i, val := range values {
			if b, ok := val.([]byte); ok {
				val = string(b)
			}
			record[i] = FormatValue(val)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if err := Render(w, cols, records, format); err != nil {
		return err
	}
	if format != "json" && format != "csv" {
		_, _ = fmt.Fprintf(w, "(%d rows)\n", len(records))
	}
	return nil
}

// Render renders a header and string records in the given format.
func Render(w io.Writer, header []string, records [][]string, format string) error {
	switch ResolveFormat(format, w) {
	case "json":
		return renderJSON(w, header, records)
	case "csv":
		return renderCSV(w, header, records)
	case "md", "markdown":
		renderMarkdown(w, header, records)
		return nil
	default:
		renderTable(w, header, records)
		return nil
	}
}

func renderTable(w io.Writer, header []string, records [][]string) {
	if len(records) == 0 {
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	headerRow := make(table.Row, len(header))
	for i, col := range header {
		headerRow[i] = col
	}
	t.AppendHeader(headerRow)

	for _, record := range records {
		row := make(table.Row, len(record))
		for i, v := range record {
			row[i] = v
		}
		t.AppendRow(row)
	}
	t.Render()
}

func renderJSON(w io.Writer, header []string, records [][]string) error {
	results := make([]map[string]string, 0, len(records))
	for _, record := range records {
		row := make(map[string]string, len(header))
		for i, col := range header {
			row[col] = record[i]
		}
		results = append(results, row)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

func renderCSV(w io.Writer, header []string, records [][]string) error {
	_, _ = fmt.Fprintln(w, strings.Join(header, ","))
	for _, record := range records {
		escaped := make([]string, len(record))
		for i, v := range record {
			escaped[i] = escapeCSV(v)
		}
		_, _ = fmt.Fprintln(w, strings.Join(escaped, ","))
	}
	return nil
}

func renderMarkdown(w io.Writer, header []string, records [][]string) {
	if len(records) == 0 {
		return
	}

	_, _ = fmt.Fprintf(w, "| %s |\n", strings.Join(header, " | "))
	seps := make([]string, len(header))
	for i := range seps {
		seps[i] = "---"
	}
	_, _ = fmt.Fprintf(w, "| %s |\n", strings.Join(seps, " | "))

	for _, record := range records {
		_, _ = fmt.Fprintf(w, "| %s |\n", strings.Join(record, " | "))
	}
}

// FormatValue renders a scanned SQL value for display.
func FormatValue(v any) string {
	if v == nil {
		return "NULL"
	}
	return fmt.Sprintf("%v", v)
}

func escapeCSV(s string) string {
	if strings.ContainsAny(s, ",\"\n") {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return s
}
