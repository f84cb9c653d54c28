package analytics

import (
	"time"

	"rollbook/pkg/contracts/domain"
)

// CalendarSummary returns the class-wide result of each date column, in
// column order. Percentages are rounded to one decimal.
func (a *Analyzer) CalendarSummary() []domain.CalendarDay {
	students := a.ds.NumStudents()
	days := make([]domain.CalendarDay, a.ds.NumDates())
	for j := range days {
		present := 0
		for i := 0; i < students; i++ {
			if a.ds.StatusAt(i, j) == domain.Present {
				present++
			}
		}
		days[j] = domain.CalendarDay{
			Date:                 a.ds.DateKey(j),
			AttendancePercentage: domain.Ratio(present, students).Round(1),
			PresentCount:         present,
			TotalStudents:        students,
		}
	}
	return days
}

// CalendarMonth lays out a month as Monday-first weeks and attaches the
// calendar summary of every date column that falls inside it.
func (a *Analyzer) CalendarMonth(year int, month time.Month) domain.CalendarMonth {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	// normalize out-of-range months (e.g. 13) the way time.Date does
	year, month = first.Year(), first.Month()

	prev := first.AddDate(0, -1, 0)
	next := first.AddDate(0, 1, 0)

	cal := domain.CalendarMonth{
		Year:      year,
		Month:     int(month),
		MonthName: month.String(),
		Weeks:     monthGrid(first),
		Days:      []domain.CalendarDay{},
		Previous:  domain.MonthRef{Year: prev.Year(), Month: int(prev.Month())},
		Next:      domain.MonthRef{Year: next.Year(), Month: int(next.Month())},
	}

	summary := a.CalendarSummary()
	for j, day := range summary {
		d := a.ds.Date(j)
		if d.Year() == year && d.Month() == month {
			cal.Days = append(cal.Days, day)
		}
	}
	return cal
}

// monthGrid returns the weeks of the month starting at first. Each week runs
// Monday to Sunday; cells outside the month are zero.
func monthGrid(first time.Time) [][7]int {
	offset := (int(first.Weekday()) + 6) % 7
	daysInMonth := first.AddDate(0, 1, -1).Day()

	var weeks [][7]int
	var week [7]int
	col := offset
	for day := 1; day <= daysInMonth; day++ {
		week[col] = day
		col++
		if col == 7 {
			weeks = append(weeks, week)
			week = [7]int{}
			col = 0
		}
	}
	if col > 0 {
		weeks = append(weeks, week)
	}
	return weeks
}

// StudentPercentages returns each student's present count and percentage
// rounded to two decimals, the rows of the attendance report.
func (a *Analyzer) StudentPercentages() []domain.StudentPercentage {
	trends := a.StudentTrends()
	out := make([]domain.StudentPercentage, len(trends))
	for i, t := range trends {
		out[i] = domain.StudentPercentage{
			Student:    t.Student,
			Present:    t.TotalPresent,
			Percentage: t.AttendanceRate.Round(2),
		}
	}
	return out
}

// Heatmap returns a students by dates matrix with 1 for present.
func (a *Analyzer) Heatmap() domain.Heatmap {
	h := domain.Heatmap{
		Students: a.ds.Students(),
		Dates:    a.ds.DateKeys(),
		Cells:    make([][]int, a.ds.NumStudents()),
	}
	for i := range h.Cells {
		row := make([]int, a.ds.NumDates())
		for j := range row {
			if a.ds.StatusAt(i, j) == domain.Present {
				row[j] = 1
			}
		}
		h.Cells[i] = row
	}
	return h
}
