package roster

import (
	"strconv"
	"strings"
	"time"

	"rollbook/pkg/contracts/domain"
)

const (
	// NameColumn is the required header of the first column.
	NameColumn = "Name"
	// DateLayout is the only accepted format for date headers.
	DateLayout = "2006-01-02"
	// MonthLayout formats the monthly bucket key.
	MonthLayout = "2006-01"

	utf8BOM = "\ufeff"
)

// Table is a raw roster: a header row followed by data rows of strings.
type Table struct {
	Header []string
	Rows   [][]string
}

// Dataset is a validated, immutable attendance table. Students keep row
// order and dates keep column order.
type Dataset struct {
	students []string
	dates    []time.Time
	keys     []string
	cells    [][]domain.Status

	studentIndex map[string]int
	dateIndex    map[string]int
}

// New validates a raw table and builds a Dataset from it.
func New(table Table) (*Dataset, error) {
	if len(table.Header) == 0 {
		return nil, ErrEmptyTable
	}

	header := make([]string, len(table.Header))
	for i, h := range table.Header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, utf8BOM))
	}

	if header[0] != NameColumn {
		return nil, &SchemaError{Column: header[0], Message: "CSV must contain a 'Name' column as the first column"}
	}
	if len(header) < 2 {
		return nil, &SchemaError{Message: "CSV must contain at least one date column"}
	}

	ds := &Dataset{
		dates:        make([]time.Time, 0, len(header)-1),
		keys:         make([]string, 0, len(header)-1),
		studentIndex: make(map[string]int),
		dateIndex:    make(map[string]int, len(header)-1),
	}

	for _, col := range header[1:] {
		d, err := time.Parse(DateLayout, col)
		if err != nil {
			return nil, &SchemaError{Column: col, Message: "Invalid date format. Expected format: YYYY-MM-DD"}
		}
		key := d.Format(DateLayout)
		if _, dup := ds.dateIndex[key]; dup {
			return nil, &SchemaError{Column: col, Message: "duplicate date column"}
		}
		ds.dateIndex[key] = len(ds.keys)
		ds.dates = append(ds.dates, d)
		ds.keys = append(ds.keys, key)
	}

	for r, row := range table.Rows {
		rowNum := r + 1
		if blankRow(row) {
			continue
		}
		if len(row) > len(header) {
			for _, extra := range row[len(header):] {
				if strings.TrimSpace(extra) != "" {
					return nil, &SchemaError{Message: "row " + strconv.Itoa(rowNum) + " has more cells than the header"}
				}
			}
		}

		// surrounding whitespace is not part of a name, so " Alice" and "Alice" collide
		name := strings.TrimSpace(row[0])
		if name == "" {
			return nil, &ValueCheckError{Column: NameColumn, Row: rowNum, Value: row[0], Message: "student name is empty"}
		}
		if _, dup := ds.studentIndex[name]; dup {
			return nil, &ValueCheckError{Column: NameColumn, Row: rowNum, Value: name, Message: "duplicate student name"}
		}

		statuses := make([]domain.Status, len(ds.keys))
		for j := range ds.keys {
			col := j + 1
			if col >= len(row) {
				break
			}
			st, ok := domain.ParseStatus(row[col])
			if !ok {
				return nil, &ValueCheckError{
					Column:  header[col],
					Row:     rowNum,
					Value:   row[col],
					Message: "Only 'P', 'A', or empty values are allowed",
				}
			}
			statuses[j] = st
		}

		ds.studentIndex[name] = len(ds.students)
		ds.students = append(ds.students, name)
		ds.cells = append(ds.cells, statuses)
	}

	return ds, nil
}

// Students returns the student identifiers in row order.
func (d *Dataset) Students() []string {
	return append([]string(nil), d.students...)
}

// Dates returns the parsed date columns in column order.
func (d *Dataset) Dates() []time.Time {
	return append([]time.Time(nil), d.dates...)
}

// DateKeys returns the dates formatted as YYYY-MM-DD.
func (d *Dataset) DateKeys() []string {
	return append([]string(nil), d.keys...)
}

func (d *Dataset) NumStudents() int { return len(d.students) }

func (d *Dataset) NumDates() int { return len(d.dates) }

// Student returns the identifier at row i.
func (d *Dataset) Student(i int) string { return d.students[i] }

// Date returns the date at column j.
func (d *Dataset) Date(j int) time.Time { return d.dates[j] }

// DateKey returns the YYYY-MM-DD key of column j.
func (d *Dataset) DateKey(j int) string { return d.keys[j] }

// StatusAt returns the status of student i on date j. Indices must be in range.
func (d *Dataset) StatusAt(i, j int) domain.Status {
	return d.cells[i][j]
}

// IndexOf returns the row of an exactly matching student.
func (d *Dataset) IndexOf(student string) (int, bool) {
	i, ok := d.studentIndex[student]
	return i, ok
}

// Cell returns the status for a declared (student, date) pair. The date is
// given as YYYY-MM-DD.
func (d *Dataset) Cell(student, date string) (domain.Status, error) {
	i, ok := d.studentIndex[student]
	if !ok {
		return domain.Unmarked, ErrUnknownStudent
	}
	j, ok := d.dateIndex[date]
	if !ok {
		return domain.Unmarked, ErrUnknownDate
	}
	return d.cells[i][j], nil
}

// Table renders the dataset back into its normalized raw form.
func (d *Dataset) Table() Table {
	header := append([]string{NameColumn}, d.keys...)
	rows := make([][]string, len(d.students))
	for i, s := range d.students {
		row := make([]string, 0, len(d.keys)+1)
		row = append(row, s)
		for j := range d.keys {
			row = append(row, d.cells[i][j].Code())
		}
		rows[i] = row
	}
	return Table{Header: header, Rows: rows}
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
