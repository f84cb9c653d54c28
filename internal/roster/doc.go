// Package roster parses and validates roster-by-date attendance tables.
//
// A roster has a "Name" column followed by one column per class date in
// YYYY-MM-DD format. Each cell is P (present), A (absent) or empty
// (unmarked), case-insensitively. New turns a raw Table into an immutable
// Dataset or fails with a *SchemaError or *ValueCheckError; the readers in
// this package produce Tables from CSV, XLSX workbooks and Google Sheets.
package roster
