// Package exporter renders attendance reports as CSV and as an Excel
// workbook. The encoders write to any io.Writer so HTTP downloads stream
// them directly; ReportWriter persists the same output under the reports
// directory with temp-file-and-rename replacement.
package exporter
