package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
)

// Format is an output encoding for computed tables.
type Format string

const (
	FormatText Format = "text"
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// ParseFormat validates a format name, ignoring case.
func ParseFormat(name string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(name))) {
	case "", FormatText:
		return FormatText, nil
	case FormatCSV:
		return FormatCSV, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported output format %q (use text, csv or json)", name)
	}
}

// Table is a rendered view of a computed table. Value keeps the typed data
// for the JSON encoding.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
	Value   any
}

// Write encodes table to w.
func Write(w io.Writer, format Format, table *Table) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, table)
	case FormatCSV:
		return writeCSV(w, table)
	default:
		return writeText(w, table)
	}
}

// WriteFile encodes table into path, creating its directory.
func WriteFile(path string, format Format, table *Table) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	if err := Write(file, format, table); err != nil {
		return err
	}
	return file.Close()
}

func writeJSON(w io.Writer, table *Table) error {
	value := table.Value
	if value == nil {
		value = table.Rows
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(value); err != nil {
		return fmt.Errorf("failed to encode %s as JSON: %w", table.Title, err)
	}
	return nil
}

func writeCSV(w io.Writer, table *Table) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(table.Headers); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	if err := writer.WriteAll(table.Rows); err != nil {
		return fmt.Errorf("failed to write CSV rows: %w", err)
	}
	return nil
}

func writeText(w io.Writer, table *Table) error {
	if table.Title != "" {
		if _, err := fmt.Fprintf(w, "%s\n\n", table.Title); err != nil {
			return err
		}
	}

	if len(table.Rows) == 0 {
		_, err := fmt.Fprintln(w, "No data found")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(table.Headers, "\t"))
	for _, row := range table.Rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}
