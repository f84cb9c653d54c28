package services

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"rollbook/internal/leave"
	"rollbook/internal/roster"
	"rollbook/pkg/contracts/domain"
	"rollbook/pkg/contracts/events"
)

// recordingHub collects broadcast messages
type recordingHub struct {
	mu       sync.Mutex
	messages []events.WebSocketMessage
}

func (h *recordingHub) BroadcastMessage(msg events.WebSocketMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, msg)
}

func (h *recordingHub) types() []events.MessageType {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]events.MessageType, 0, len(h.messages))
	for _, m := range h.messages {
		out = append(out, m.Type)
	}
	return out
}

func (h *recordingHub) last() events.WebSocketMessage {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.messages[len(h.messages)-1]
}

// MockSheetsFetcher is a mock for SheetsFetcher
type MockSheetsFetcher struct {
	mock.Mock
}

func (m *MockSheetsFetcher) Fetch(ctx context.Context, spreadsheetID, readRange string) (roster.Table, error) {
	args := m.Called(ctx, spreadsheetID, readRange)
	return args.Get(0).(roster.Table), args.Error(1)
}

// MockLeaveStore is a mock for LeaveStore
type MockLeaveStore struct {
	mock.Mock
}

func (m *MockLeaveStore) Submit(ctx context.Context, req domain.SubmitLeaveRequest) (domain.LeaveRequest, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(domain.LeaveRequest), args.Error(1)
}

func (m *MockLeaveStore) Decide(ctx context.Context, id string, req domain.LeaveDecisionRequest) (domain.LeaveRequest, error) {
	args := m.Called(ctx, id, req)
	return args.Get(0).(domain.LeaveRequest), args.Error(1)
}

func (m *MockLeaveStore) List(ctx context.Context, filter leave.Filter) ([]domain.LeaveRequest, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]domain.LeaveRequest), args.Error(1)
}

func (m *MockLeaveStore) Summary(ctx context.Context) (domain.LeaveSummary, error) {
	args := m.Called(ctx)
	return args.Get(0).(domain.LeaveSummary), args.Error(1)
}

// MockPinger is a mock for Pinger
type MockPinger struct {
	mock.Mock
}

func (m *MockPinger) PingContext(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}
