package exporter

import (
	"io"

	"rollbook/pkg/contracts/domain"
)

// AttendanceReportHeaders are the columns of attendance_report.csv.
var AttendanceReportHeaders = []string{"Name", "Present", "Attendance (%)"}

// AttendanceReportRecords converts per-student percentages into CSV rows.
func AttendanceReportRecords(rows []domain.StudentPercentage) [][]string {
	records := make([][]string, len(rows))
	for i, r := range rows {
		records[i] = []string{r.Student, formatInt(r.Present), formatPercentage(r.Percentage)}
	}
	return records
}

// EncodeAttendanceReport streams the per-student report to out.
func EncodeAttendanceReport(out io.Writer, rows []domain.StudentPercentage) error {
	return WriteCSV(out, Table{
		Header:  AttendanceReportHeaders,
		Records: AttendanceReportRecords(rows),
	})
}
