package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Status is the attendance mark recorded for one student on one date.
type Status int

const (
	// Unmarked is an empty cell. It counts toward totals but never as present.
	Unmarked Status = iota
	Present
	Absent
)

// ParseStatus maps a raw cell value onto a Status. Values are matched after
// trimming whitespace and are case-insensitive.
func ParseStatus(raw string) (Status, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "P":
		return Present, true
	case "A":
		return Absent, true
	case "":
		return Unmarked, true
	default:
		return Unmarked, false
	}
}

// String returns the name used in JSON payloads.
func (s Status) String() string {
	switch s {
	case Present:
		return "present"
	case Absent:
		return "absent"
	default:
		return "unmarked"
	}
}

// Code returns the single-letter cell code ("P", "A" or "").
func (s Status) Code() string {
	switch s {
	case Present:
		return "P"
	case Absent:
		return "A"
	default:
		return ""
	}
}

// MarshalJSON encodes the status by name.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON accepts either the status name or the cell code.
func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch strings.ToLower(raw) {
	case "present", "p":
		*s = Present
	case "absent", "a":
		*s = Absent
	case "unmarked", "":
		*s = Unmarked
	default:
		return fmt.Errorf("unknown attendance status %q", raw)
	}
	return nil
}

// Percentage is a rate in [0, 100]. A NaN value means the rate is undefined
// because its denominator was zero.
type Percentage float64

// Undefined returns the undefined percentage.
func Undefined() Percentage {
	return Percentage(math.NaN())
}

// Ratio builds a percentage from a count and a total. A zero total yields an
// undefined percentage.
func Ratio(part, total int) Percentage {
	if total == 0 {
		return Undefined()
	}
	return Percentage(float64(part) / float64(total) * 100)
}

// Defined reports whether p holds a number.
func (p Percentage) Defined() bool {
	return !math.IsNaN(float64(p))
}

// Round rounds a defined percentage to the given number of decimals,
// sending exact halves to the even digit (6.25 -> 6.2).
func (p Percentage) Round(decimals int) Percentage {
	if !p.Defined() {
		return p
	}
	scale := math.Pow(10, float64(decimals))
	return Percentage(math.RoundToEven(float64(p)*scale) / scale)
}

// Format renders the percentage with fixed decimals, or "N/A" when undefined.
func (p Percentage) Format(decimals int) string {
	if !p.Defined() {
		return "N/A"
	}
	return strconv.FormatFloat(float64(p), 'f', decimals, 64)
}

// MarshalJSON writes null for undefined percentages.
func (p Percentage) MarshalJSON() ([]byte, error) {
	if !p.Defined() {
		return []byte("null"), nil
	}
	return json.Marshal(float64(p))
}

// UnmarshalJSON reads null back as undefined.
func (p *Percentage) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*p = Undefined()
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*p = Percentage(f)
	return nil
}

// BucketRate is the aggregate of every (student, date) pair whose date falls
// in one bucket (a month or a weekday).
type BucketRate struct {
	Key     string     `json:"key"`
	Present int        `json:"present"`
	Total   int        `json:"total"`
	Rate    Percentage `json:"rate"`
}

// RateSeries is an ordered set of buckets. Order is the first occurrence of
// each key across the dataset's date columns.
type RateSeries []BucketRate

// Lookup returns the bucket with the given key.
func (s RateSeries) Lookup(key string) (BucketRate, bool) {
	for _, b := range s {
		if b.Key == key {
			return b, true
		}
	}
	return BucketRate{}, false
}

// Keys returns the bucket keys in series order.
func (s RateSeries) Keys() []string {
	keys := make([]string, len(s))
	for i, b := range s {
		keys[i] = b.Key
	}
	return keys
}

// StudentTrend is a student's overall record across all dates.
type StudentTrend struct {
	Student        string     `json:"student"`
	AttendanceRate Percentage `json:"attendance_rate"`
	TotalPresent   int        `json:"total_present"`
	TotalAbsent    int        `json:"total_absent"`
}

// CalendarEntry is one date of a student's calendar.
type CalendarEntry struct {
	Date   string `json:"date"`
	Status Status `json:"status"`
}

// MonthlyPerformance is a student's record within a single month.
type MonthlyPerformance struct {
	Month   string     `json:"month"`
	Present int        `json:"present"`
	Total   int        `json:"total"`
	Rate    Percentage `json:"rate"`
	Absent  int        `json:"absent"`
}

// StudentDetail is the drill-down view for a single student.
type StudentDetail struct {
	Student            string               `json:"student"`
	AttendanceRate     Percentage           `json:"attendance_rate"`
	TotalPresent       int                  `json:"total_present"`
	TotalAbsent        int                  `json:"total_absent"`
	Calendar           []CalendarEntry      `json:"calendar"`
	MonthlyPerformance []MonthlyPerformance `json:"monthly_performance"`
}

// RankedStudent is an entry of the top/bottom rankings.
type RankedStudent struct {
	Student string     `json:"student"`
	Rate    Percentage `json:"rate"`
}

// OverallSplit counts every present mark against everything else in the table.
type OverallSplit struct {
	Present int `json:"present"`
	Absent  int `json:"absent"`
}

// SummaryStatistics is the dashboard overview.
type SummaryStatistics struct {
	TotalStudents      int             `json:"total_students"`
	TotalDates         int             `json:"total_dates"`
	AverageAttendance  Percentage      `json:"average_attendance"`
	MonthlyStats       RateSeries      `json:"monthly_stats"`
	DayPatterns        RateSeries      `json:"day_patterns"`
	StudentTrends      []StudentTrend  `json:"student_trends"`
	MostConsistentDay  string          `json:"most_consistent_day"`
	LeastConsistentDay string          `json:"least_consistent_day"`
	BestMonth          string          `json:"best_month"`
	WorstMonth         string          `json:"worst_month"`
	Top3               []RankedStudent `json:"top_3"`
	Bottom3            []RankedStudent `json:"bottom_3"`
	Overall            OverallSplit    `json:"overall"`
}

// CalendarDay is the class-wide summary of one date column.
type CalendarDay struct {
	Date                 string     `json:"date"`
	AttendancePercentage Percentage `json:"attendance_percentage"`
	PresentCount         int        `json:"present_count"`
	TotalStudents        int        `json:"total_students"`
}

// MonthRef identifies a calendar month.
type MonthRef struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

// CalendarMonth is a Monday-first grid of one month. Days outside the month
// are zero.
type CalendarMonth struct {
	Year      int           `json:"year"`
	Month     int           `json:"month"`
	MonthName string        `json:"month_name"`
	Weeks     [][7]int      `json:"weeks"`
	Days      []CalendarDay `json:"days"`
	Previous  MonthRef      `json:"previous"`
	Next      MonthRef      `json:"next"`
}

// StudentPercentage is a row of the attendance report.
type StudentPercentage struct {
	Student    string     `json:"student"`
	Present    int        `json:"present"`
	Percentage Percentage `json:"percentage"`
}

// Heatmap is a students by dates matrix, 1 for present and 0 otherwise.
type Heatmap struct {
	Students []string `json:"students"`
	Dates    []string `json:"dates"`
	Cells    [][]int  `json:"cells"`
}
