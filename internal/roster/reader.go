package roster

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ReadCSV reads a roster CSV. Rows may be ragged; a leading UTF-8 BOM is
// dropped from the first header cell by New.
func ReadCSV(r io.Reader) (Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return Table{}, fmt.Errorf("failed to read CSV: %w", err)
	}
	return tableFromRecords(records)
}

// ReadXLSX reads a roster from a workbook. An empty sheet name selects the
// first sheet. Cells are read unformatted so that date-typed header cells
// arrive as serials and can be rendered as YYYY-MM-DD.
func ReadXLSX(r io.Reader, sheet string) (Table, error) {
	f, err := excelize.OpenReader(r, excelize.Options{RawCellValue: true})
	if err != nil {
		return Table{}, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return Table{}, ErrEmptyTable
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return Table{}, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}

	table, err := tableFromRecords(rows)
	if err != nil {
		return Table{}, err
	}

	date1904 := false
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		date1904 = *props.Date1904
	}
	header := make([]string, len(table.Header))
	copy(header, table.Header)
	for i := 1; i < len(header); i++ {
		header[i] = serialToDateKey(header[i], date1904)
	}
	table.Header = header
	return table, nil
}

// serialToDateKey renders a numeric Excel date serial as YYYY-MM-DD.
// Anything else is returned unchanged for New to judge.
func serialToDateKey(cell string, date1904 bool) string {
	serial, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
	if err != nil || serial <= 0 {
		return cell
	}
	t, err := excelize.ExcelDateToTime(serial, date1904)
	if err != nil {
		return cell
	}
	return t.Format(DateLayout)
}

// FromValues converts a Google Sheets value range into a Table. Non-string
// cells are formatted with %v.
func FromValues(values [][]interface{}) (Table, error) {
	records := make([][]string, len(values))
	for i, row := range values {
		rec := make([]string, len(row))
		for j, v := range row {
			if v == nil {
				continue
			}
			if s, ok := v.(string); ok {
				rec[j] = s
				continue
			}
			rec[j] = fmt.Sprintf("%v", v)
		}
		records[i] = rec
	}
	return tableFromRecords(records)
}

// ParseFile reads and validates a roster file, choosing the reader from the
// file extension.
func ParseFile(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	table, err := Read(f, filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	return New(table)
}

// Read dispatches on a file extension (".csv" or ".xlsx").
func Read(r io.Reader, ext string) (Table, error) {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "csv":
		return ReadCSV(r)
	case "xlsx":
		return ReadXLSX(r, "")
	default:
		return Table{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// WriteCSV writes a table as CSV.
func WriteCSV(w io.Writer, t Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return fmt.Errorf("failed to write rows: %w", err)
	}
	return nil
}

func tableFromRecords(records [][]string) (Table, error) {
	// leading blank lines are not a header
	for len(records) > 0 && blankRow(records[0]) {
		records = records[1:]
	}
	if len(records) == 0 {
		return Table{}, ErrEmptyTable
	}

	header := records[0]
	// spreadsheets often pad the header with empty trailing cells
	for len(header) > 1 && strings.TrimSpace(header[len(header)-1]) == "" {
		header = header[:len(header)-1]
	}
	return Table{Header: header, Rows: records[1:]}, nil
}
