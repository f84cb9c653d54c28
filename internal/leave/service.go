package leave

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"

	"rollbook/internal/validation"
	"rollbook/pkg/contracts/domain"
)

// ErrAlreadyDecided is returned when a request is no longer pending.
var ErrAlreadyDecided = errors.New("leave request already decided")

// Service manages leave requests.
type Service struct {
	repo      Repository
	validate  *validator.Validate
	sanitizer *bluemonday.Policy
	logger    *slog.Logger
	now       func() time.Time
}

// NewService creates a leave service on top of repo.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		validate:  validation.NewValidator(),
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With("component", "leave_service"),
		now:       time.Now,
	}
}

// Submit validates and stores a new pending request.
func (s *Service) Submit(ctx context.Context, req domain.SubmitLeaveRequest) (domain.LeaveRequest, error) {
	req.StudentName = strings.TrimSpace(req.StudentName)
	req.LeaveType = s.clean(req.LeaveType)
	req.Reason = s.clean(req.Reason)

	if err := s.validate.StructCtx(ctx, req); err != nil {
		return domain.LeaveRequest{}, err
	}

	rec := &Record{
		ID:          uuid.NewString(),
		StudentName: req.StudentName,
		LeaveDate:   req.LeaveDate,
		LeaveType:   req.LeaveType,
		Reason:      req.Reason,
		Status:      string(domain.LeaveStatusPending),
		CreatedAt:   s.now().UTC(),
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		return domain.LeaveRequest{}, fmt.Errorf("failed to store leave request: %w", err)
	}

	s.logger.InfoContext(ctx, "Leave request submitted",
		slog.String("leave_id", rec.ID),
		slog.String("student", rec.StudentName),
		slog.String("leave_date", rec.LeaveDate))

	return rec.toDomain(), nil
}

// Decide approves or rejects a pending request.
func (s *Service) Decide(ctx context.Context, id string, req domain.LeaveDecisionRequest) (domain.LeaveRequest, error) {
	if err := s.validate.StructCtx(ctx, req); err != nil {
		return domain.LeaveRequest{}, err
	}

	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.LeaveRequest{}, err
	}
	if rec.Status != string(domain.LeaveStatusPending) {
		return domain.LeaveRequest{}, ErrAlreadyDecided
	}

	decidedAt := s.now().UTC()
	status := req.Action.Status()
	// the repository only flips pending rows, so a concurrent decision
	// surfaces here as ErrAlreadyDecided
	if err := s.repo.UpdateStatus(ctx, id, status, decidedAt); err != nil {
		if errors.Is(err, ErrAlreadyDecided) || errors.Is(err, ErrNotFound) {
			return domain.LeaveRequest{}, err
		}
		return domain.LeaveRequest{}, fmt.Errorf("failed to update leave request: %w", err)
	}

	rec.Status = string(status)
	rec.DecidedAt = &decidedAt

	s.logger.InfoContext(ctx, "Leave request decided",
		slog.String("leave_id", id),
		slog.String("student", rec.StudentName),
		slog.String("status", rec.Status))

	return rec.toDomain(), nil
}

// List returns requests in submission order.
func (s *Service) List(ctx context.Context, filter Filter) ([]domain.LeaveRequest, error) {
	records, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list leave requests: %w", err)
	}

	out := make([]domain.LeaveRequest, len(records))
	for i, rec := range records {
		out[i] = rec.toDomain()
	}
	return out, nil
}

// Summary counts requests by status.
func (s *Service) Summary(ctx context.Context) (domain.LeaveSummary, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return domain.LeaveSummary{}, fmt.Errorf("failed to count leave requests: %w", err)
	}

	summary := domain.LeaveSummary{
		Pending:  counts[domain.LeaveStatusPending],
		Approved: counts[domain.LeaveStatusApproved],
		Rejected: counts[domain.LeaveStatusRejected],
	}
	for _, n := range counts {
		summary.Total += n
	}
	return summary, nil
}

// clean strips markup from free text. StrictPolicy escapes what it keeps,
// so entities are decoded back to plain text for storage.
func (s *Service) clean(text string) string {
	return strings.TrimSpace(html.UnescapeString(s.sanitizer.Sanitize(text)))
}
