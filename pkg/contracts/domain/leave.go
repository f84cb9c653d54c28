package domain

import "time"

// LeaveStatus is the review state of a leave request.
type LeaveStatus string

const (
	LeaveStatusPending  LeaveStatus = "pending"
	LeaveStatusApproved LeaveStatus = "approved"
	LeaveStatusRejected LeaveStatus = "rejected"
)

// LeaveDecision is the reviewer's action on a pending request.
type LeaveDecision string

const (
	LeaveApprove LeaveDecision = "approve"
	LeaveReject  LeaveDecision = "reject"
)

// Status returns the status a decision moves a request to.
func (d LeaveDecision) Status() LeaveStatus {
	if d == LeaveApprove {
		return LeaveStatusApproved
	}
	return LeaveStatusRejected
}

// LeaveRequest is a student's request to be excused on a date.
type LeaveRequest struct {
	ID          string      `json:"id"`
	StudentName string      `json:"student_name"`
	LeaveDate   string      `json:"leave_date"`
	LeaveType   string      `json:"leave_type"`
	Reason      string      `json:"reason"`
	Status      LeaveStatus `json:"status"`
	SubmittedAt time.Time   `json:"submitted_at"`
	DecidedAt   *time.Time  `json:"decided_at,omitempty"`
}

// SubmitLeaveRequest is the payload for a new leave request.
type SubmitLeaveRequest struct {
	StudentName string `json:"student_name" validate:"required,max=128"`
	LeaveDate   string `json:"leave_date" validate:"required,datetime=2006-01-02"`
	LeaveType   string `json:"leave_type" validate:"required,max=32"`
	Reason      string `json:"reason" validate:"max=1000"`
}

// LeaveDecisionRequest is the payload for approving or rejecting a request.
type LeaveDecisionRequest struct {
	Action LeaveDecision `json:"action" validate:"required,oneof=approve reject"`
}

// LeaveSummary counts leave requests by status.
type LeaveSummary struct {
	Total    int64 `json:"total"`
	Pending  int64 `json:"pending"`
	Approved int64 `json:"approved"`
	Rejected int64 `json:"rejected"`
}
