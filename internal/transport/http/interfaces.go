package http

import (
	"context"
	"io"

	"rollbook/internal/leave"
	"rollbook/pkg/contracts/domain"
)

// AttendanceService defines the roster and analytics operations used by
// AttendanceHandler
type AttendanceService interface {
	Info(ctx context.Context) domain.RosterInfo
	Upload(ctx context.Context, filename string, data []byte) (domain.RosterInfo, error)
	ImportFromSheets(ctx context.Context, req domain.SheetsImportRequest) (domain.RosterInfo, error)
	Summary(ctx context.Context) (domain.SummaryStatistics, error)
	Monthly(ctx context.Context) (domain.RateSeries, error)
	Patterns(ctx context.Context) (domain.RateSeries, error)
	Students(ctx context.Context) ([]domain.StudentTrend, error)
	StudentDetail(ctx context.Context, name string) (domain.StudentDetail, error)
	Calendar(ctx context.Context) ([]domain.CalendarDay, error)
	CalendarMonth(ctx context.Context, year, month int) (domain.CalendarMonth, error)
	Heatmap(ctx context.Context) (domain.Heatmap, error)
	Enhancement(ctx context.Context, kind domain.EnhancementType) (domain.Enhancement, error)
	Export(ctx context.Context, format string, w io.Writer) error
}

// LeaveService defines the leave request operations used by LeaveHandler
type LeaveService interface {
	Submit(ctx context.Context, req domain.SubmitLeaveRequest) (domain.LeaveRequest, error)
	Decide(ctx context.Context, id string, req domain.LeaveDecisionRequest) (domain.LeaveRequest, error)
	List(ctx context.Context, filter leave.Filter) ([]domain.LeaveRequest, error)
	Grouped(ctx context.Context, filter leave.Filter) (map[string][]domain.LeaveRequest, error)
	Summary(ctx context.Context) (domain.LeaveSummary, error)
}
