// Package events defines the messages pushed to WebSocket clients.
package events

import (
	"time"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// MessageTypeRosterUpdated is sent after a new roster replaces the active one
	MessageTypeRosterUpdated MessageType = "roster:updated"
	// MessageTypeRosterRejected is sent when an upload or import fails validation
	MessageTypeRosterRejected MessageType = "roster:rejected"
	// MessageTypeLeaveSubmitted is sent for every new leave request
	MessageTypeLeaveSubmitted MessageType = "leave:submitted"
	// MessageTypeLeaveDecided is sent when a request is approved or rejected
	MessageTypeLeaveDecided MessageType = "leave:decided"

	MessageTypeConnect MessageType = "connect"
	MessageTypeError   MessageType = "error"
)

// BaseMessage represents the base structure for all WebSocket messages
type BaseMessage struct {
	ID        string      `json:"id,omitempty"`
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	TraceID   string      `json:"trace_id,omitempty"`
}

// WebSocketMessage represents a complete WebSocket message
type WebSocketMessage struct {
	BaseMessage
	Data interface{} `json:"data,omitempty"`
}

// RosterUpdated describes the roster that just became active
type RosterUpdated struct {
	Source    string    `json:"source"` // upload|sheets|disk
	FileName  string    `json:"file_name,omitempty"`
	Students  int       `json:"students"`
	Dates     int       `json:"dates"`
	FirstDate string    `json:"first_date,omitempty"`
	LastDate  string    `json:"last_date,omitempty"`
	LoadedAt  time.Time `json:"loaded_at"`
}

// RosterRejected carries the reason an upload was refused
type RosterRejected struct {
	Source   string `json:"source"`
	FileName string `json:"file_name,omitempty"`
	Reason   string `json:"reason"`
}

// LeaveEvent announces a leave request change
type LeaveEvent struct {
	ID          string `json:"id"`
	StudentName string `json:"student_name"`
	LeaveDate   string `json:"leave_date"`
	Status      string `json:"status"`
}

// NewMessage stamps a message of the given type
func NewMessage(msgType MessageType, data interface{}) WebSocketMessage {
	return WebSocketMessage{
		BaseMessage: BaseMessage{
			Type:      msgType,
			Timestamp: time.Now().UTC(),
		},
		Data: data,
	}
}
