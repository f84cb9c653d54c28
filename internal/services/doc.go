// Package services holds the application layer between the HTTP handlers
// and the attendance engine.
//
// AttendanceService owns the active roster. It keeps an immutable snapshot
// (dataset, analyzer and metadata) behind an atomic pointer; uploads and
// Google Sheets imports build a fresh snapshot and swap it in, so readers
// never see a half-built roster. The last accepted upload is kept on disk
// and loaded lazily on first use.
//
// LeaveService wraps the leave request store with roster checks, metrics
// and live update broadcasts. HealthService answers the health, readiness
// and version endpoints.
//
// Errors returned by services are either domain errors from the roster,
// analytics and leave packages or *errors.APIError values; both are mapped
// to problem details by internal/errors.
package services
