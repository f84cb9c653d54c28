// Package http implements the JSON API of the attendance dashboard.
//
// Handlers stay thin: they parse and validate the request, call a service
// and render the result with go-chi/render. Every failure goes through
// errors.ErrorHandler, which turns domain errors into RFC 7807 problem
// details, so handlers never build error bodies themselves.
//
// Each handler exposes Routes() returning a chi.Router that the
// application mounts under /api.
package http
