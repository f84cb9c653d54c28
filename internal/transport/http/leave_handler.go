package http

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "rollbook/internal/errors"
	"rollbook/internal/leave"
	"rollbook/internal/middleware"
	"rollbook/pkg/contracts/domain"
)

var leaveStatuses = []string{
	string(domain.LeaveStatusPending),
	string(domain.LeaveStatusApproved),
	string(domain.LeaveStatusRejected),
}

// LeaveHandler handles leave request endpoints
type LeaveHandler struct {
	service      LeaveService
	validation   *middleware.ValidationMiddleware
	query        *middleware.QueryParamValidator
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewLeaveHandler creates a new leave handler
func NewLeaveHandler(service LeaveService, validation *middleware.ValidationMiddleware, query *middleware.QueryParamValidator, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *LeaveHandler {
	return &LeaveHandler{
		service:      service,
		validation:   validation,
		query:        query,
		logger:       logger.With(slog.String("component", "leave_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the leave routes
func (h *LeaveHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/", h.List)
	r.Post("/", h.Submit)
	r.Get("/summary", h.Summary)
	r.Post("/{id}/decision", h.Decide)

	return r
}

// List handles GET /api/leave. Supports ?student=, ?status= and ?group=student.
func (h *LeaveHandler) List(w http.ResponseWriter, r *http.Request) {
	status, ok := h.query.ValidateEnum(w, r, "status", leaveStatuses, "")
	if !ok {
		return
	}
	group, ok := h.query.ValidateEnum(w, r, "group", []string{"student"}, "")
	if !ok {
		return
	}

	filter := leave.Filter{
		StudentName: strings.TrimSpace(r.URL.Query().Get("student")),
		Status:      domain.LeaveStatus(status),
	}

	if group == "student" {
		grouped, err := h.service.Grouped(r.Context(), filter)
		if err != nil {
			h.errorHandler.HandleError(w, r, err)
			return
		}
		render.JSON(w, r, map[string]interface{}{
			"data":  grouped,
			"count": len(grouped),
		})
		return
	}

	requests, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"data":  requests,
		"count": len(requests),
	})
}

// Submit handles POST /api/leave
func (h *LeaveHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req domain.SubmitLeaveRequest
	if err := h.validation.DecodeAndValidate(r, &req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	created, err := h.service.Submit(r.Context(), req)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, created)
}

// Decide handles POST /api/leave/{id}/decision
func (h *LeaveHandler) Decide(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req domain.LeaveDecisionRequest
	if err := h.validation.DecodeAndValidate(r, &req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	decided, err := h.service.Decide(r.Context(), id, req)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "Leave request decided",
		slog.String("leave_id", id),
		slog.String("status", string(decided.Status)))

	render.JSON(w, r, decided)
}

// Summary handles GET /api/leave/summary
func (h *LeaveHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Summary(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, summary)
}
