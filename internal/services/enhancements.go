package services

import (
	"strconv"

	"rollbook/internal/analytics"
	"rollbook/pkg/contracts/domain"
)

const rateColumn = "Attendance Rate (%)"

// EnhancementTypes lists the dashboard enhancements in display order.
var EnhancementTypes = []domain.EnhancementType{
	domain.EnhancementMonthlyTrend,
	domain.EnhancementDayPattern,
	domain.EnhancementHeatmap,
}

func buildEnhancement(a *analytics.Analyzer, kind domain.EnhancementType) (domain.Enhancement, error) {
	switch kind {
	case domain.EnhancementMonthlyTrend:
		return domain.Enhancement{
			Type:        kind,
			Title:       "Monthly Attendance Trend",
			Description: "Attendance rate for each month, showing seasonal patterns and the overall trajectory.",
			Chart:       "monthly_attendance_trend",
			Columns:     []string{"Month", rateColumn},
			Rows:        seriesTable(a.MonthlyAttendance()),
		}, nil
	case domain.EnhancementDayPattern:
		return domain.Enhancement{
			Type:        kind,
			Title:       "Attendance by Day of Week",
			Description: "Attendance rate for each weekday with classes, showing which days are attended best.",
			Chart:       "day_wise_attendance",
			Columns:     []string{"Day", rateColumn},
			Rows:        seriesTable(a.AttendancePatterns()),
		}, nil
	case domain.EnhancementHeatmap:
		pcts := a.StudentPercentages()
		rows := make([][]string, 0, len(pcts))
		for _, p := range pcts {
			rows = append(rows, []string{p.Student, strconv.Itoa(p.Present), p.Percentage.Format(1)})
		}
		return domain.Enhancement{
			Type:        kind,
			Title:       "Student Attendance Heatmap",
			Description: "Every student across every class date, color coded by presence.",
			Chart:       "attendance_heatmap",
			Columns:     []string{"Student", "Present", rateColumn},
			Rows:        rows,
		}, nil
	default:
		return domain.Enhancement{}, ErrUnknownEnhancement
	}
}

func seriesTable(series domain.RateSeries) [][]string {
	rows := make([][]string, 0, len(series))
	for _, b := range series {
		rows = append(rows, []string{b.Key, b.Rate.Format(1)})
	}
	return rows
}
