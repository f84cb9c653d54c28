package infrastructure

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// AttendanceMetrics holds the application instruments. All Record methods
// are safe on a nil receiver.
type AttendanceMetrics struct {
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram
	HTTPActiveRequests  metric.Int64UpDownCounter

	RosterLoadsTotal metric.Int64Counter
	UploadRejections metric.Int64Counter
	RosterStudents   metric.Int64Gauge
	RosterDates      metric.Int64Gauge
	AnalysisDuration metric.Float64Histogram
	ReportWrites     metric.Int64Counter

	LeaveRequestsTotal metric.Int64Counter
	WebSocketClients   metric.Int64UpDownCounter
}

// CreateAttendanceMetrics registers the application instruments on meter.
func CreateAttendanceMetrics(meter metric.Meter) (*AttendanceMetrics, error) {
	m := &AttendanceMetrics{}
	var err error

	if m.HTTPRequestsTotal, err = meter.Int64Counter("http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("1")); err != nil {
		return nil, fmt.Errorf("failed to create http_requests_total: %w", err)
	}
	if m.HTTPRequestDuration, err = meter.Float64Histogram("http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10)); err != nil {
		return nil, fmt.Errorf("failed to create http_request_duration_seconds: %w", err)
	}
	if m.HTTPActiveRequests, err = meter.Int64UpDownCounter("http_active_requests",
		metric.WithDescription("Number of in-flight HTTP requests")); err != nil {
		return nil, fmt.Errorf("failed to create http_active_requests: %w", err)
	}

	if m.RosterLoadsTotal, err = meter.Int64Counter("roster_loads_total",
		metric.WithDescription("Roster loads by source and result")); err != nil {
		return nil, fmt.Errorf("failed to create roster_loads_total: %w", err)
	}
	if m.UploadRejections, err = meter.Int64Counter("roster_upload_rejections_total",
		metric.WithDescription("Uploads rejected before parsing")); err != nil {
		return nil, fmt.Errorf("failed to create roster_upload_rejections_total: %w", err)
	}
	if m.RosterStudents, err = meter.Int64Gauge("roster_students",
		metric.WithDescription("Students in the active roster")); err != nil {
		return nil, fmt.Errorf("failed to create roster_students: %w", err)
	}
	if m.RosterDates, err = meter.Int64Gauge("roster_dates",
		metric.WithDescription("Date columns in the active roster")); err != nil {
		return nil, fmt.Errorf("failed to create roster_dates: %w", err)
	}
	if m.AnalysisDuration, err = meter.Float64Histogram("analysis_duration_seconds",
		metric.WithDescription("Time spent computing an analytics view"),
		metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("failed to create analysis_duration_seconds: %w", err)
	}
	if m.ReportWrites, err = meter.Int64Counter("report_writes_total",
		metric.WithDescription("Report files written by format and result")); err != nil {
		return nil, fmt.Errorf("failed to create report_writes_total: %w", err)
	}

	if m.LeaveRequestsTotal, err = meter.Int64Counter("leave_requests_total",
		metric.WithDescription("Leave request submissions and decisions")); err != nil {
		return nil, fmt.Errorf("failed to create leave_requests_total: %w", err)
	}
	if m.WebSocketClients, err = meter.Int64UpDownCounter("websocket_clients",
		metric.WithDescription("Connected WebSocket clients")); err != nil {
		return nil, fmt.Errorf("failed to create websocket_clients: %w", err)
	}

	return m, nil
}

func resultAttr(err error) attribute.KeyValue {
	if err != nil {
		return attribute.String("result", "error")
	}
	return attribute.String("result", "success")
}

// RecordRosterLoad counts a load attempt and, on success, updates the size gauges.
func (m *AttendanceMetrics) RecordRosterLoad(ctx context.Context, source string, students, dates int, err error) {
	if m == nil {
		return
	}
	m.RosterLoadsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("source", source), resultAttr(err)))
	if err == nil {
		m.RosterStudents.Record(ctx, int64(students))
		m.RosterDates.Record(ctx, int64(dates))
	}
}

// RecordUploadRejection counts an upload refused by validation.
func (m *AttendanceMetrics) RecordUploadRejection(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.UploadRejections.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordAnalysis records how long a view took to compute.
func (m *AttendanceMetrics) RecordAnalysis(ctx context.Context, view string, d time.Duration) {
	if m == nil {
		return
	}
	m.AnalysisDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("view", view)))
}

// RecordReportWrite counts a report file write.
func (m *AttendanceMetrics) RecordReportWrite(ctx context.Context, format string, err error) {
	if m == nil {
		return
	}
	m.ReportWrites.Add(ctx, 1, metric.WithAttributes(attribute.String("format", format), resultAttr(err)))
}

// RecordLeave counts a leave submission or decision.
func (m *AttendanceMetrics) RecordLeave(ctx context.Context, action string) {
	if m == nil {
		return
	}
	m.LeaveRequestsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("action", action)))
}

// RecordWebSocketClients adjusts the connected client count.
func (m *AttendanceMetrics) RecordWebSocketClients(ctx context.Context, delta int64) {
	if m == nil {
		return
	}
	m.WebSocketClients.Add(ctx, delta)
}
