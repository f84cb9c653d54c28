package http

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"rollbook/internal/leave"
	"rollbook/internal/services"
	"rollbook/pkg/contracts/domain"
)

// MockAttendanceService is a mock implementation of AttendanceService
type MockAttendanceService struct {
	mock.Mock
}

func (m *MockAttendanceService) Info(ctx context.Context) domain.RosterInfo {
	return m.Called().Get(0).(domain.RosterInfo)
}

func (m *MockAttendanceService) Upload(ctx context.Context, filename string, data []byte) (domain.RosterInfo, error) {
	args := m.Called(filename, data)
	return args.Get(0).(domain.RosterInfo), args.Error(1)
}

func (m *MockAttendanceService) ImportFromSheets(ctx context.Context, req domain.SheetsImportRequest) (domain.RosterInfo, error) {
	args := m.Called(req)
	return args.Get(0).(domain.RosterInfo), args.Error(1)
}

func (m *MockAttendanceService) Summary(ctx context.Context) (domain.SummaryStatistics, error) {
	args := m.Called()
	return args.Get(0).(domain.SummaryStatistics), args.Error(1)
}

func (m *MockAttendanceService) Monthly(ctx context.Context) (domain.RateSeries, error) {
	args := m.Called()
	return args.Get(0).(domain.RateSeries), args.Error(1)
}

func (m *MockAttendanceService) Patterns(ctx context.Context) (domain.RateSeries, error) {
	args := m.Called()
	return args.Get(0).(domain.RateSeries), args.Error(1)
}

func (m *MockAttendanceService) Students(ctx context.Context) ([]domain.StudentTrend, error) {
	args := m.Called()
	return args.Get(0).([]domain.StudentTrend), args.Error(1)
}

func (m *MockAttendanceService) StudentDetail(ctx context.Context, name string) (domain.StudentDetail, error) {
	args := m.Called(name)
	return args.Get(0).(domain.StudentDetail), args.Error(1)
}

func (m *MockAttendanceService) Calendar(ctx context.Context) ([]domain.CalendarDay, error) {
	args := m.Called()
	return args.Get(0).([]domain.CalendarDay), args.Error(1)
}

func (m *MockAttendanceService) CalendarMonth(ctx context.Context, year, month int) (domain.CalendarMonth, error) {
	args := m.Called(year, month)
	return args.Get(0).(domain.CalendarMonth), args.Error(1)
}

func (m *MockAttendanceService) Heatmap(ctx context.Context) (domain.Heatmap, error) {
	args := m.Called()
	return args.Get(0).(domain.Heatmap), args.Error(1)
}

func (m *MockAttendanceService) Enhancement(ctx context.Context, kind domain.EnhancementType) (domain.Enhancement, error) {
	args := m.Called(kind)
	return args.Get(0).(domain.Enhancement), args.Error(1)
}

func (m *MockAttendanceService) Export(ctx context.Context, format string, w io.Writer) error {
	args := m.Called(format, w)
	if fn, ok := args.Get(0).(func(io.Writer) error); ok {
		return fn(w)
	}
	return args.Error(0)
}

// MockLeaveService is a mock implementation of LeaveService
type MockLeaveService struct {
	mock.Mock
}

func (m *MockLeaveService) Submit(ctx context.Context, req domain.SubmitLeaveRequest) (domain.LeaveRequest, error) {
	args := m.Called(req)
	return args.Get(0).(domain.LeaveRequest), args.Error(1)
}

func (m *MockLeaveService) Decide(ctx context.Context, id string, req domain.LeaveDecisionRequest) (domain.LeaveRequest, error) {
	args := m.Called(id, req)
	return args.Get(0).(domain.LeaveRequest), args.Error(1)
}

func (m *MockLeaveService) List(ctx context.Context, filter leave.Filter) ([]domain.LeaveRequest, error) {
	args := m.Called(filter)
	return args.Get(0).([]domain.LeaveRequest), args.Error(1)
}

func (m *MockLeaveService) Grouped(ctx context.Context, filter leave.Filter) (map[string][]domain.LeaveRequest, error) {
	args := m.Called(filter)
	return args.Get(0).(map[string][]domain.LeaveRequest), args.Error(1)
}

func (m *MockLeaveService) Summary(ctx context.Context) (domain.LeaveSummary, error) {
	args := m.Called()
	return args.Get(0).(domain.LeaveSummary), args.Error(1)
}

// MockHealthService is a mock implementation of HealthService
type MockHealthService struct {
	mock.Mock
}

func (m *MockHealthService) HealthCheck(ctx context.Context) services.HealthStatus {
	return m.Called().Get(0).(services.HealthStatus)
}

func (m *MockHealthService) ReadinessCheck(ctx context.Context) services.HealthStatus {
	return m.Called().Get(0).(services.HealthStatus)
}

func (m *MockHealthService) LivenessCheck(ctx context.Context) services.HealthStatus {
	return m.Called().Get(0).(services.HealthStatus)
}

func (m *MockHealthService) Version() services.VersionResponse {
	return m.Called().Get(0).(services.VersionResponse)
}
