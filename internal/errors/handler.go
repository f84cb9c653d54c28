package errors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"rollbook/internal/analytics"
	"rollbook/internal/infrastructure"
	"rollbook/internal/leave"
	"rollbook/internal/roster"
	"rollbook/internal/validation"
)

// sentinel maps a package-level error to the problem it is reported as.
// The error text becomes the detail.
type sentinel struct {
	errs   []error
	status int
	typ    string
	title  string
}

var sentinels = []sentinel{
	{[]error{context.DeadlineExceeded, context.Canceled}, http.StatusGatewayTimeout, TypeTimeout, "Request Timeout"},
	{[]error{roster.ErrEmptyTable}, http.StatusUnprocessableEntity, TypeRosterEmpty, "Empty Attendance Table"},
	{[]error{validation.ErrFileTooLarge}, http.StatusRequestEntityTooLarge, TypePayloadTooLarge, "Payload Too Large"},
	{[]error{validation.ErrExtensionNotAllowed, validation.ErrContentMismatch, roster.ErrUnsupportedFormat},
		http.StatusUnsupportedMediaType, TypeUnsupportedMedia, "Unsupported File"},
	{[]error{validation.ErrEmptyUpload}, http.StatusBadRequest, TypeValidation, "Validation Failed"},
	{[]error{analytics.ErrStudentNotFound, roster.ErrUnknownStudent}, http.StatusNotFound, TypeStudentUnknown, "Student Not Found"},
	{[]error{roster.ErrUnknownDate}, http.StatusNotFound, TypeNotFound, "Resource Not Found"},
	{[]error{leave.ErrNotFound}, http.StatusNotFound, TypeLeaveNotFound, "Leave Request Not Found"},
	{[]error{leave.ErrAlreadyDecided}, http.StatusConflict, TypeLeaveDecided, "Leave Request Already Decided"},
	{[]error{roster.ErrSheetsNotConfigured}, http.StatusServiceUnavailable, TypeServiceDown, "Service Unavailable"},
}

// ErrorHandler renders errors as RFC 7807 problems and logs them once.
type ErrorHandler struct {
	logger *slog.Logger
	debug  bool
}

// NewErrorHandler creates an error handler. With debug set, 5xx responses
// carry the panic value and goroutine stack.
func NewErrorHandler(logger *slog.Logger, debug bool) *ErrorHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ErrorHandler{
		logger: logger.With(slog.String("component", "error_handler")),
		debug:  debug,
	}
}

// HandleError logs err and writes it as a problem. A nil err writes nothing.
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	p := h.ErrorToProblem(err, r)
	level := slog.LevelWarn
	if p.Status >= http.StatusInternalServerError {
		level = slog.LevelError
		if h.debug {
			p.WithExtension("stack", string(debug.Stack()))
		}
	}
	h.logger.LogAttrs(r.Context(), level, "request failed",
		slog.String("error", err.Error()),
		slog.String("problem", p.Type),
		slog.Int("status", p.Status),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path))

	h.write(w, r, p)
}

// ErrorToProblem classifies err. Structured roster errors keep their
// location as extensions so the dashboard can point at the bad cell.
func (h *ErrorHandler) ErrorToProblem(err error, r *http.Request) *ProblemDetails {
	at := r.URL.Path

	var (
		verrs     validator.ValidationErrors
		apiErr    *APIError
		schemaErr *roster.SchemaError
		valueErr  *roster.ValueCheckError
		maxErr    *http.MaxBytesError
	)
	switch {
	case errors.As(err, &verrs):
		return fromAPIError(FromValidator(verrs), at)
	case errors.As(err, &apiErr):
		return fromAPIError(apiErr, at)
	case errors.As(err, &schemaErr):
		return NewProblemDetails(http.StatusUnprocessableEntity, TypeRosterSchema, "Invalid Attendance Table", schemaErr.Error(), at).
			WithExtension("column", schemaErr.Column)
	case errors.As(err, &valueErr):
		return NewProblemDetails(http.StatusUnprocessableEntity, TypeRosterValue, "Invalid Attendance Value", valueErr.Error(), at).
			WithExtension("column", valueErr.Column).
			WithExtension("row", valueErr.Row).
			WithExtension("value", valueErr.Value)
	case errors.As(err, &maxErr):
		return NewProblemDetails(http.StatusRequestEntityTooLarge, TypePayloadTooLarge, "Payload Too Large",
			fmt.Sprintf("The request body exceeds %d bytes", maxErr.Limit), at)
	}

	for _, s := range sentinels {
		for _, target := range s.errs {
			if errors.Is(err, target) {
				return NewProblemDetails(s.status, s.typ, s.title, err.Error(), at)
			}
		}
	}

	// internal details stay in the log
	return NewProblemDetails(http.StatusInternalServerError, TypeInternal, "Internal Server Error",
		"An unexpected error occurred while processing your request", at)
}

func fromAPIError(e *APIError, at string) *ProblemDetails {
	p := NewProblemDetails(e.StatusCode, e.problemType(), http.StatusText(e.StatusCode), e.Message, at).
		WithExtension("error_code", e.ErrorCode)
	if e.Details != nil {
		p.WithExtension("details", e.Details)
	}
	return p
}

// write stamps the trace ID on p and renders it.
func (h *ErrorHandler) write(w http.ResponseWriter, r *http.Request, p *ProblemDetails) {
	p.WithExtension("trace_id", infrastructure.GetTraceID(r.Context()))
	render.Render(w, r, p)
}

// HandlePanic answers 500 for a recovered panic value.
func (h *ErrorHandler) HandlePanic(w http.ResponseWriter, r *http.Request, recovered interface{}) {
	stack := string(debug.Stack())
	h.logger.ErrorContext(r.Context(), "panic recovered",
		slog.Any("panic", recovered),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("stack", stack))

	p := NewProblemDetails(http.StatusInternalServerError, TypeInternal, "Internal Server Error",
		"An unexpected error occurred", r.URL.Path)
	if h.debug {
		p.WithExtension("panic", fmt.Sprint(recovered))
		p.WithExtension("stack", stack)
	}
	h.write(w, r, p)
}

func (h *ErrorHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.write(w, r, NewProblemDetails(http.StatusNotFound, TypeNotFound, "Not Found",
		"The requested resource was not found", r.URL.Path))
}

func (h *ErrorHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	h.write(w, r, NewProblemDetails(http.StatusMethodNotAllowed, TypeMethodNotAllowed, "Method Not Allowed",
		fmt.Sprintf("Method %s is not allowed for this endpoint", r.Method), r.URL.Path))
}

// RecoveryMiddleware converts handler panics into problem responses.
// http.ErrAbortHandler is re-raised so net/http can abort the connection.
func RecoveryMiddleware(h *ErrorHandler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				h.HandlePanic(w, r, rec)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
