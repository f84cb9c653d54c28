package http

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "rollbook/internal/errors"
	"rollbook/internal/middleware"
	"rollbook/internal/services"
	"rollbook/pkg/contracts/domain"
)

// multipartOverhead is allowed on top of the file size for form framing
const multipartOverhead = 1 << 20

// exportContentTypes maps export formats to their media types
var exportContentTypes = map[string]string{
	services.ExportCSV:  "text/csv; charset=utf-8",
	services.ExportXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// AttendanceHandler serves the roster upload and analytics endpoints
type AttendanceHandler struct {
	service      AttendanceService
	validation   *middleware.ValidationMiddleware
	query        *middleware.QueryParamValidator
	maxUpload    int64
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewAttendanceHandler creates a new attendance handler. maxUpload bounds
// the uploaded file size in bytes.
func NewAttendanceHandler(service AttendanceService, validation *middleware.ValidationMiddleware, query *middleware.QueryParamValidator, maxUpload int64, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *AttendanceHandler {
	return &AttendanceHandler{
		service:      service,
		validation:   validation,
		query:        query,
		maxUpload:    maxUpload,
		logger:       logger.With(slog.String("component", "attendance_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the attendance routes
func (h *AttendanceHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.GetInfo)
	r.Post("/upload", h.Upload)
	r.Post("/import/sheets", h.ImportSheets)

	r.Group(func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Get("/summary", h.GetSummary)
		r.Get("/monthly", h.GetMonthly)
		r.Get("/patterns", h.GetPatterns)
		r.Get("/students", h.GetStudents)
		r.Get("/students/{name}", h.GetStudentDetail)
		r.Get("/calendar", h.GetCalendar)
		r.Get("/calendar/{year}/{month}", h.GetCalendarMonth)
		r.Get("/heatmap", h.GetHeatmap)
		r.Get("/enhancements/{type}", h.GetEnhancement)
	})

	r.Get("/export/{format}", h.Export)

	return r
}

// GetInfo handles GET /api/attendance
func (h *AttendanceHandler) GetInfo(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.service.Info(r.Context()))
}

// Upload handles POST /api/attendance/upload (multipart field "file")
func (h *AttendanceHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+multipartOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		h.errorHandler.HandleError(w, r, uploadFormError(err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("file", "A roster file is required in the \"file\" field"))
		return
	}
	defer file.Close()

	// read one byte past the limit so oversize files are detected
	data, err := io.ReadAll(io.LimitReader(file, h.maxUpload+1))
	if err != nil {
		h.errorHandler.HandleError(w, r, fmt.Errorf("failed to read upload: %w", err))
		return
	}

	info, err := h.service.Upload(r.Context(), header.Filename, data)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "Roster uploaded",
		slog.String("file", header.Filename),
		slog.Int("students", info.Students),
		slog.Int("dates", info.Dates))

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, info)
}

func uploadFormError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return err
	}
	return apierrors.InvalidRequestWithError(err)
}

// ImportSheets handles POST /api/attendance/import/sheets
func (h *AttendanceHandler) ImportSheets(w http.ResponseWriter, r *http.Request) {
	var req domain.SheetsImportRequest
	if err := h.validation.DecodeAndValidate(r, &req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	info, err := h.service.ImportFromSheets(r.Context(), req)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, info)
}

// GetSummary handles GET /api/attendance/summary
func (h *AttendanceHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Summary(r.Context())
	h.respond(w, r, summary, err)
}

// GetMonthly handles GET /api/attendance/monthly
func (h *AttendanceHandler) GetMonthly(w http.ResponseWriter, r *http.Request) {
	series, err := h.service.Monthly(r.Context())
	h.respond(w, r, series, err)
}

// GetPatterns handles GET /api/attendance/patterns
func (h *AttendanceHandler) GetPatterns(w http.ResponseWriter, r *http.Request) {
	series, err := h.service.Patterns(r.Context())
	h.respond(w, r, series, err)
}

// GetStudents handles GET /api/attendance/students
func (h *AttendanceHandler) GetStudents(w http.ResponseWriter, r *http.Request) {
	trends, err := h.service.Students(r.Context())
	h.respond(w, r, trends, err)
}

// GetStudentDetail handles GET /api/attendance/students/{name}
func (h *AttendanceHandler) GetStudentDetail(w http.ResponseWriter, r *http.Request) {
	// chi matches on RawPath when the request carried one, leaving the
	// param escaped; otherwise it is already decoded
	name := chi.URLParam(r, "name")
	if r.URL.RawPath != "" {
		if unescaped, err := url.PathUnescape(name); err == nil {
			name = unescaped
		}
	}
	if strings.TrimSpace(name) == "" {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("name", "Student name is required"))
		return
	}

	detail, err := h.service.StudentDetail(r.Context(), name)
	h.respond(w, r, detail, err)
}

// GetCalendar handles GET /api/attendance/calendar
func (h *AttendanceHandler) GetCalendar(w http.ResponseWriter, r *http.Request) {
	days, err := h.service.Calendar(r.Context())
	h.respond(w, r, days, err)
}

// GetCalendarMonth handles GET /api/attendance/calendar/{year}/{month}
func (h *AttendanceHandler) GetCalendarMonth(w http.ResponseWriter, r *http.Request) {
	year, ok := h.query.ParseInt(w, r, "year", chi.URLParam(r, "year"), 1, 9999, 0)
	if !ok {
		return
	}
	month, ok := h.query.ParseInt(w, r, "month", chi.URLParam(r, "month"), 1, 12, 0)
	if !ok {
		return
	}

	cal, err := h.service.CalendarMonth(r.Context(), year, month)
	h.respond(w, r, cal, err)
}

// GetHeatmap handles GET /api/attendance/heatmap
func (h *AttendanceHandler) GetHeatmap(w http.ResponseWriter, r *http.Request) {
	heatmap, err := h.service.Heatmap(r.Context())
	h.respond(w, r, heatmap, err)
}

// GetEnhancement handles GET /api/attendance/enhancements/{type}
func (h *AttendanceHandler) GetEnhancement(w http.ResponseWriter, r *http.Request) {
	kind := domain.EnhancementType(strings.ToLower(chi.URLParam(r, "type")))
	enhancement, err := h.service.Enhancement(r.Context(), kind)
	h.respond(w, r, enhancement, err)
}

// Export handles GET /api/attendance/export/{format}
func (h *AttendanceHandler) Export(w http.ResponseWriter, r *http.Request) {
	format := strings.ToLower(chi.URLParam(r, "format"))
	contentType, ok := exportContentTypes[format]
	if !ok {
		h.errorHandler.HandleError(w, r, services.ErrUnsupportedExport)
		return
	}

	// buffer so a failure can still be reported as a problem response
	var buf bytes.Buffer
	if err := h.service.Export(r.Context(), format, &buf); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", services.ExportFileName(format)))
	w.Header().Set("Content-Length", fmt.Sprint(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.WarnContext(r.Context(), "Failed to write export",
			slog.String("format", format),
			slog.String("error", err.Error()))
	}
}

func (h *AttendanceHandler) respond(w http.ResponseWriter, r *http.Request, v interface{}, err error) {
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, v)
}
