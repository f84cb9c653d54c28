package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"rollbook/internal/infrastructure"
	"rollbook/internal/leave"
	"rollbook/internal/roster"
	"rollbook/pkg/contracts/domain"
	"rollbook/pkg/contracts/events"
)

// LeaveStore is the subset of leave.Service used here.
type LeaveStore interface {
	Submit(ctx context.Context, req domain.SubmitLeaveRequest) (domain.LeaveRequest, error)
	Decide(ctx context.Context, id string, req domain.LeaveDecisionRequest) (domain.LeaveRequest, error)
	List(ctx context.Context, filter leave.Filter) ([]domain.LeaveRequest, error)
	Summary(ctx context.Context) (domain.LeaveSummary, error)
}

// LeaveService adds roster checks, metrics and broadcasts to leave requests.
type LeaveService struct {
	store      LeaveStore
	attendance *AttendanceService
	hub        Broadcaster
	metrics    *infrastructure.AttendanceMetrics
	logger     *slog.Logger
}

// NewLeaveService creates a leave service. attendance, hub and metrics may be nil.
func NewLeaveService(store LeaveStore, attendance *AttendanceService, hub Broadcaster, metrics *infrastructure.AttendanceMetrics, logger *slog.Logger) *LeaveService {
	if logger == nil {
		logger = slog.Default()
	}
	return &LeaveService{
		store:      store,
		attendance: attendance,
		hub:        hub,
		metrics:    metrics,
		logger:     logger.With(slog.String("component", "leave_service")),
	}
}

// Submit stores a pending request. When a roster is active the student must
// be on it.
func (s *LeaveService) Submit(ctx context.Context, req domain.SubmitLeaveRequest) (domain.LeaveRequest, error) {
	if err := s.checkStudent(ctx, req.StudentName); err != nil {
		return domain.LeaveRequest{}, err
	}

	created, err := s.store.Submit(ctx, req)
	if err != nil {
		return domain.LeaveRequest{}, err
	}

	s.metrics.RecordLeave(ctx, "submit")
	s.broadcast(ctx, events.MessageTypeLeaveSubmitted, created)
	return created, nil
}

// Decide approves or rejects a pending request.
func (s *LeaveService) Decide(ctx context.Context, id string, req domain.LeaveDecisionRequest) (domain.LeaveRequest, error) {
	decided, err := s.store.Decide(ctx, id, req)
	if err != nil {
		return domain.LeaveRequest{}, err
	}

	s.metrics.RecordLeave(ctx, string(req.Action))
	s.broadcast(ctx, events.MessageTypeLeaveDecided, decided)
	return decided, nil
}

// List returns requests in submission order.
func (s *LeaveService) List(ctx context.Context, filter leave.Filter) ([]domain.LeaveRequest, error) {
	return s.store.List(ctx, filter)
}

// Grouped returns requests keyed by student, each in submission order.
func (s *LeaveService) Grouped(ctx context.Context, filter leave.Filter) (map[string][]domain.LeaveRequest, error) {
	all, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	grouped := make(map[string][]domain.LeaveRequest)
	for _, req := range all {
		grouped[req.StudentName] = append(grouped[req.StudentName], req)
	}
	return grouped, nil
}

// Summary counts requests per status.
func (s *LeaveService) Summary(ctx context.Context) (domain.LeaveSummary, error) {
	return s.store.Summary(ctx)
}

func (s *LeaveService) checkStudent(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if s.attendance == nil || name == "" {
		return nil
	}
	snap, err := s.attendance.active(ctx)
	if err != nil {
		// leave requests are accepted before any roster exists
		return nil
	}
	if _, ok := snap.analyzer.Dataset().IndexOf(name); !ok {
		s.logger.WarnContext(ctx, "Leave request for unknown student", slog.String("student", name))
		return fmt.Errorf("%w: %s", roster.ErrUnknownStudent, name)
	}
	return nil
}

func (s *LeaveService) broadcast(ctx context.Context, msgType events.MessageType, req domain.LeaveRequest) {
	if s.hub == nil {
		return
	}
	msg := events.NewMessage(msgType, events.LeaveEvent{
		ID:          req.ID,
		StudentName: req.StudentName,
		LeaveDate:   req.LeaveDate,
		Status:      string(req.Status),
	})
	msg.TraceID = infrastructure.GetTraceID(ctx)
	s.hub.BroadcastMessage(msg)
}
