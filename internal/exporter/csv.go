package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
)

// Table is a CSV document. BOM prefixes the output with a UTF-8 byte order
// mark so Excel on Windows detects the encoding of accented names.
type Table struct {
	Header  []string
	Records [][]string
	BOM     bool
}

// WriteCSV encodes t to out. A nil Header writes records only.
func WriteCSV(out io.Writer, t Table) error {
	if t.BOM {
		if _, err := io.WriteString(out, "\uFEFF"); err != nil {
			return fmt.Errorf("write bom: %w", err)
		}
	}

	cw := csv.NewWriter(out)
	if t.Header != nil {
		if err := cw.Write(t.Header); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	if err := cw.WriteAll(t.Records); err != nil {
		return fmt.Errorf("write records: %w", err)
	}
	return nil
}
