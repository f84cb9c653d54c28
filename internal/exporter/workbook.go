package exporter

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"rollbook/pkg/contracts/domain"
)

// Workbook sheet names.
const (
	SheetSummary   = "Summary"
	SheetMonthly   = "Monthly"
	SheetDayOfWeek = "Day Of Week"
	SheetStudents  = "Students"
	SheetCalendar  = "Calendar"
)

// WorkbookData is everything the summary workbook renders.
type WorkbookData struct {
	Summary  domain.SummaryStatistics
	Students []domain.StudentPercentage
	Calendar []domain.CalendarDay
}

// BuildWorkbook lays out the summary workbook in memory. The caller closes it.
func BuildWorkbook(data WorkbookData) (*excelize.File, error) {
	f := excelize.NewFile()

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	if err := f.SetSheetName(f.GetSheetName(0), SheetSummary); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to rename default sheet: %w", err)
	}

	s := data.Summary
	summaryRows := [][]interface{}{
		{"Metric", "Value"},
		{"Total Students", s.TotalStudents},
		{"Total Dates", s.TotalDates},
		{"Average Attendance (%)", percentageCell(s.AverageAttendance)},
		{"Most Consistent Day", s.MostConsistentDay},
		{"Least Consistent Day", s.LeastConsistentDay},
		{"Best Month", s.BestMonth},
		{"Worst Month", s.WorstMonth},
		{"Total Present", s.Overall.Present},
		{"Total Absent", s.Overall.Absent},
	}
	for i, r := range s.Top3 {
		summaryRows = append(summaryRows, []interface{}{fmt.Sprintf("Top %d", i+1), fmt.Sprintf("%s (%s%%)", r.Student, r.Rate.Format(1))})
	}
	for i, r := range s.Bottom3 {
		summaryRows = append(summaryRows, []interface{}{fmt.Sprintf("Bottom %d", i+1), fmt.Sprintf("%s (%s%%)", r.Student, r.Rate.Format(1))})
	}

	sheets := []struct {
		name string
		rows [][]interface{}
	}{
		{SheetSummary, summaryRows},
		{SheetMonthly, seriesRows("Month", s.MonthlyStats)},
		{SheetDayOfWeek, seriesRows("Day", s.DayPatterns)},
		{SheetStudents, studentRows(data.Students, s.StudentTrends)},
		{SheetCalendar, calendarRows(data.Calendar)},
	}

	for _, sh := range sheets {
		if sh.name != SheetSummary {
			if _, err := f.NewSheet(sh.name); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to create sheet %s: %w", sh.name, err)
			}
		}
		if err := writeRows(f, sh.name, sh.rows, header); err != nil {
			f.Close()
			return nil, err
		}
	}

	return f, nil
}

// WriteWorkbook writes the summary workbook to out.
func WriteWorkbook(out io.Writer, data WorkbookData) error {
	f, err := BuildWorkbook(data)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteTo(out); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}, headerStyle int) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		r := row
		if err := f.SetSheetRow(sheet, cell, &r); err != nil {
			return fmt.Errorf("failed to write row %d of %s: %w", i+1, sheet, err)
		}
	}

	if len(rows) > 0 && len(rows[0]) > 0 {
		last, err := excelize.CoordinatesToCellName(len(rows[0]), 1)
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
			return fmt.Errorf("failed to style header of %s: %w", sheet, err)
		}
	}

	return f.SetColWidth(sheet, "A", "A", 24)
}

func seriesRows(keyHeader string, series domain.RateSeries) [][]interface{} {
	rows := [][]interface{}{{keyHeader, "Present", "Total", "Attendance Rate (%)"}}
	for _, b := range series {
		rows = append(rows, []interface{}{b.Key, b.Present, b.Total, percentageCell(b.Rate)})
	}
	return rows
}

func studentRows(pcts []domain.StudentPercentage, trends []domain.StudentTrend) [][]interface{} {
	rows := [][]interface{}{{"Name", "Present", "Absent", "Attendance (%)"}}
	for i, p := range pcts {
		absent := 0
		if i < len(trends) {
			absent = trends[i].TotalAbsent
		}
		rows = append(rows, []interface{}{p.Student, p.Present, absent, percentageCell(p.Percentage)})
	}
	return rows
}

func calendarRows(days []domain.CalendarDay) [][]interface{} {
	rows := [][]interface{}{{"Date", "Present", "Total Students", "Attendance (%)"}}
	for _, d := range days {
		rows = append(rows, []interface{}{d.Date, d.PresentCount, d.TotalStudents, percentageCell(d.AttendancePercentage)})
	}
	return rows
}
