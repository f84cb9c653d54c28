package analytics

import (
	"errors"
	"sort"

	"rollbook/internal/roster"
	"rollbook/pkg/contracts/domain"
)

// ErrStudentNotFound is returned by StudentDetail for an unknown student.
var ErrStudentNotFound = errors.New("student not found")

// rankingSize is the number of students in each of top_3 and bottom_3.
const rankingSize = 3

// Analyzer computes derived attendance views over a single Dataset. It never
// mutates the dataset and is safe for concurrent use.
type Analyzer struct {
	ds *roster.Dataset
}

// New returns an analyzer bound to ds.
func New(ds *roster.Dataset) *Analyzer {
	return &Analyzer{ds: ds}
}

// Dataset returns the dataset the analyzer reads from.
func (a *Analyzer) Dataset() *roster.Dataset {
	return a.ds
}

// MonthlyAttendance buckets every (student, date) pair by YYYY-MM.
func (a *Analyzer) MonthlyAttendance() domain.RateSeries {
	return a.bucketBy(func(j int) string {
		return a.ds.Date(j).Format(roster.MonthLayout)
	})
}

// AttendancePatterns buckets every (student, date) pair by weekday name.
// Weekdays with no date column are omitted.
func (a *Analyzer) AttendancePatterns() domain.RateSeries {
	return a.bucketBy(func(j int) string {
		return a.ds.Date(j).Weekday().String()
	})
}

func (a *Analyzer) bucketBy(keyOf func(j int) string) domain.RateSeries {
	acc := newAccumulator()
	students := a.ds.NumStudents()
	for j := 0; j < a.ds.NumDates(); j++ {
		present := 0
		for i := 0; i < students; i++ {
			if a.ds.StatusAt(i, j) == domain.Present {
				present++
			}
		}
		acc.add(keyOf(j), present, students)
	}
	return acc.series()
}

// StudentTrends returns every student's overall record in row order.
func (a *Analyzer) StudentTrends() []domain.StudentTrend {
	trends := make([]domain.StudentTrend, a.ds.NumStudents())
	for i := range trends {
		trends[i] = a.trend(i)
	}
	return trends
}

func (a *Analyzer) trend(i int) domain.StudentTrend {
	dates := a.ds.NumDates()
	present := 0
	for j := 0; j < dates; j++ {
		if a.ds.StatusAt(i, j) == domain.Present {
			present++
		}
	}
	return domain.StudentTrend{
		Student:        a.ds.Student(i),
		AttendanceRate: domain.Ratio(present, dates),
		TotalPresent:   present,
		TotalAbsent:    dates - present,
	}
}

// StudentDetail returns the drill-down for an exactly matching student.
func (a *Analyzer) StudentDetail(student string) (domain.StudentDetail, error) {
	i, ok := a.ds.IndexOf(student)
	if !ok {
		return domain.StudentDetail{}, ErrStudentNotFound
	}

	t := a.trend(i)
	detail := domain.StudentDetail{
		Student:        t.Student,
		AttendanceRate: t.AttendanceRate,
		TotalPresent:   t.TotalPresent,
		TotalAbsent:    t.TotalAbsent,
		Calendar:       make([]domain.CalendarEntry, a.ds.NumDates()),
	}

	acc := newAccumulator()
	for j := 0; j < a.ds.NumDates(); j++ {
		status := a.ds.StatusAt(i, j)
		detail.Calendar[j] = domain.CalendarEntry{Date: a.ds.DateKey(j), Status: status}

		present := 0
		if status == domain.Present {
			present = 1
		}
		acc.add(a.ds.Date(j).Format(roster.MonthLayout), present, 1)
	}

	for _, b := range acc.series() {
		detail.MonthlyPerformance = append(detail.MonthlyPerformance, domain.MonthlyPerformance{
			Month:   b.Key,
			Present: b.Present,
			Total:   b.Total,
			Rate:    b.Rate,
			Absent:  b.Total - b.Present,
		})
	}

	return detail, nil
}

// SummaryStatistics builds the dashboard overview.
func (a *Analyzer) SummaryStatistics() domain.SummaryStatistics {
	monthly := a.MonthlyAttendance()
	patterns := a.AttendancePatterns()
	trends := a.StudentTrends()

	summary := domain.SummaryStatistics{
		TotalStudents:     a.ds.NumStudents(),
		TotalDates:        a.ds.NumDates(),
		AverageAttendance: averageRate(trends),
		MonthlyStats:      monthly,
		DayPatterns:       patterns,
		StudentTrends:     trends,
	}
	summary.MostConsistentDay, summary.LeastConsistentDay = extremes(patterns)
	summary.BestMonth, summary.WorstMonth = extremes(monthly)
	summary.Top3, summary.Bottom3 = rankings(trends)

	for _, t := range trends {
		summary.Overall.Present += t.TotalPresent
		summary.Overall.Absent += t.TotalAbsent
	}

	return summary
}

// averageRate is the arithmetic mean of defined student rates. It is
// undefined when no student has a defined rate.
func averageRate(trends []domain.StudentTrend) domain.Percentage {
	sum, n := 0.0, 0
	for _, t := range trends {
		if !t.AttendanceRate.Defined() {
			continue
		}
		sum += float64(t.AttendanceRate)
		n++
	}
	if n == 0 {
		return domain.Undefined()
	}
	return domain.Percentage(sum / float64(n))
}

// extremes returns the keys of the highest and lowest defined rates. Ties go
// to the earliest bucket in series order.
func extremes(series domain.RateSeries) (maxKey, minKey string) {
	var maxRate, minRate domain.Percentage
	found := false
	for _, b := range series {
		if !b.Rate.Defined() {
			continue
		}
		if !found {
			maxKey, minKey = b.Key, b.Key
			maxRate, minRate = b.Rate, b.Rate
			found = true
			continue
		}
		if b.Rate > maxRate {
			maxKey, maxRate = b.Key, b.Rate
		}
		if b.Rate < minRate {
			minKey, minRate = b.Key, b.Rate
		}
	}
	return maxKey, minKey
}

// rankings sorts students by rate descending, keeping row order among equal
// rates, and takes the first and last rankingSize entries. Students with an
// undefined rate sort last.
func rankings(trends []domain.StudentTrend) (top, bottom []domain.RankedStudent) {
	ranked := make([]domain.RankedStudent, len(trends))
	for i, t := range trends {
		ranked[i] = domain.RankedStudent{Student: t.Student, Rate: t.AttendanceRate}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		ri, rj := ranked[i].Rate, ranked[j].Rate
		if !rj.Defined() {
			return ri.Defined()
		}
		return ri.Defined() && ri > rj
	})

	n := rankingSize
	if len(ranked) < n {
		n = len(ranked)
	}
	top = append([]domain.RankedStudent{}, ranked[:n]...)
	bottom = append([]domain.RankedStudent{}, ranked[len(ranked)-n:]...)
	return top, bottom
}
