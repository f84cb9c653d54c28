package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apierrors "rollbook/internal/errors"
	"rollbook/internal/middleware"
	"rollbook/internal/roster"
	"rollbook/internal/services"
	"rollbook/internal/shared/testutil"
	"rollbook/internal/validation"
	"rollbook/pkg/contracts/domain"
)

const testMaxUpload = 1 << 16

func newAttendanceRouter(t *testing.T, svc *MockAttendanceService) http.Handler {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	errorHandler := apierrors.NewErrorHandler(logger, false)
	handler := NewAttendanceHandler(svc,
		middleware.NewValidationMiddleware(logger, errorHandler, 1<<20),
		middleware.NewQueryParamValidator(logger, errorHandler),
		testMaxUpload, logger, errorHandler)

	r := chi.NewRouter()
	r.Mount("/api/attendance", handler.Routes())
	return r
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func multipartUpload(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestAttendanceHandler_GetSummary(t *testing.T) {
	tests := []struct {
		name           string
		setupMock      func(*MockAttendanceService)
		expectedStatus int
		check          func(t *testing.T, body map[string]interface{})
	}{
		{
			name: "summary available",
			setupMock: func(m *MockAttendanceService) {
				m.On("Summary").Return(domain.SummaryStatistics{
					TotalStudents:     3,
					TotalDates:        4,
					AverageAttendance: domain.Percentage(50),
					BestMonth:         "2024-01",
				}, nil)
			},
			expectedStatus: http.StatusOK,
			check: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, float64(3), body["total_students"])
				assert.Equal(t, float64(50), body["average_attendance"])
				assert.Equal(t, "2024-01", body["best_month"])
			},
		},
		{
			name: "undefined average renders null",
			setupMock: func(m *MockAttendanceService) {
				m.On("Summary").Return(domain.SummaryStatistics{
					AverageAttendance: domain.Undefined(),
				}, nil)
			},
			expectedStatus: http.StatusOK,
			check: func(t *testing.T, body map[string]interface{}) {
				v, ok := body["average_attendance"]
				assert.True(t, ok)
				assert.Nil(t, v)
			},
		},
		{
			name: "no dataset",
			setupMock: func(m *MockAttendanceService) {
				m.On("Summary").Return(domain.SummaryStatistics{}, services.ErrNoDataset)
			},
			expectedStatus: http.StatusNotFound,
			check: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "NO_DATASET", body["error_code"])
				assert.Equal(t, apierrors.TypeNoDataset, body["type"])
			},
		},
		{
			name: "internal error",
			setupMock: func(m *MockAttendanceService) {
				m.On("Summary").Return(domain.SummaryStatistics{}, errors.New("disk failure"))
			},
			expectedStatus: http.StatusInternalServerError,
			check: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "Internal Server Error", body["title"])
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockAttendanceService)
			tt.setupMock(svc)

			req := httptest.NewRequest(http.MethodGet, "/api/attendance/summary", nil)
			rec := httptest.NewRecorder()
			newAttendanceRouter(t, svc).ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			tt.check(t, decodeBody(t, rec))
			svc.AssertExpectations(t)
		})
	}
}

func TestAttendanceHandler_GetInfo(t *testing.T) {
	svc := new(MockAttendanceService)
	svc.On("Info").Return(domain.RosterInfo{Loaded: false})

	req := httptest.NewRequest(http.MethodGet, "/api/attendance/", nil)
	rec := httptest.NewRecorder()
	newAttendanceRouter(t, svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decodeBody(t, rec)["loaded"])
}

func TestAttendanceHandler_Upload(t *testing.T) {
	content := []byte(testutil.SampleRosterCSV)

	tests := []struct {
		name           string
		field          string
		setupMock      func(*MockAttendanceService)
		expectedStatus int
		expectedType   string
	}{
		{
			name:  "accepted",
			field: "file",
			setupMock: func(m *MockAttendanceService) {
				m.On("Upload", "roster.csv", content).Return(domain.RosterInfo{
					Loaded: true, Source: services.SourceUpload, Students: 3, Dates: 4,
				}, nil)
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "missing file field",
			field:          "attachment",
			setupMock:      func(m *MockAttendanceService) {},
			expectedStatus: http.StatusBadRequest,
			expectedType:   apierrors.TypeValidation,
		},
		{
			name:  "schema error",
			field: "file",
			setupMock: func(m *MockAttendanceService) {
				m.On("Upload", "roster.csv", content).Return(domain.RosterInfo{},
					&roster.SchemaError{Column: "2024-13-01", Message: "not a date"})
			},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedType:   apierrors.TypeRosterSchema,
		},
		{
			name:  "too large",
			field: "file",
			setupMock: func(m *MockAttendanceService) {
				m.On("Upload", "roster.csv", content).Return(domain.RosterInfo{}, validation.ErrFileTooLarge)
			},
			expectedStatus: http.StatusRequestEntityTooLarge,
			expectedType:   apierrors.TypePayloadTooLarge,
		},
		{
			name:  "unsupported",
			field: "file",
			setupMock: func(m *MockAttendanceService) {
				m.On("Upload", "roster.csv", content).Return(domain.RosterInfo{}, services.ErrUnsupportedUpload)
			},
			expectedStatus: http.StatusUnsupportedMediaType,
			expectedType:   apierrors.TypeUnsupportedMedia,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockAttendanceService)
			tt.setupMock(svc)

			body, contentType := multipartUpload(t, tt.field, "roster.csv", content)
			req := httptest.NewRequest(http.MethodPost, "/api/attendance/upload", body)
			req.Header.Set("Content-Type", contentType)
			rec := httptest.NewRecorder()
			newAttendanceRouter(t, svc).ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code, rec.Body.String())
			resp := decodeBody(t, rec)
			if tt.expectedType != "" {
				assert.Equal(t, tt.expectedType, resp["type"])
			} else {
				assert.Equal(t, float64(3), resp["students"])
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestAttendanceHandler_UploadNotMultipart(t *testing.T) {
	svc := new(MockAttendanceService)

	req := httptest.NewRequest(http.MethodPost, "/api/attendance/upload", strings.NewReader("Name,2024-01-01"))
	req.Header.Set("Content-Type", "text/csv")
	rec := httptest.NewRecorder()
	newAttendanceRouter(t, svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything)
}

func TestAttendanceHandler_ImportSheets(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		setupMock      func(*MockAttendanceService)
		expectedStatus int
	}{
		{
			name: "imported",
			body: `{"spreadsheet_id":"abc123","range":"Sheet1!A:Z"}`,
			setupMock: func(m *MockAttendanceService) {
				m.On("ImportFromSheets", domain.SheetsImportRequest{SpreadsheetID: "abc123", Range: "Sheet1!A:Z"}).
					Return(domain.RosterInfo{Loaded: true, Source: services.SourceSheets}, nil)
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "missing spreadsheet id",
			body:           `{"range":"A:Z"}`,
			setupMock:      func(m *MockAttendanceService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "empty body",
			body:           ``,
			setupMock:      func(m *MockAttendanceService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "sheets not configured",
			body: `{"spreadsheet_id":"abc123"}`,
			setupMock: func(m *MockAttendanceService) {
				m.On("ImportFromSheets", domain.SheetsImportRequest{SpreadsheetID: "abc123"}).
					Return(domain.RosterInfo{}, roster.ErrSheetsNotConfigured)
			},
			expectedStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockAttendanceService)
			tt.setupMock(svc)

			req := httptest.NewRequest(http.MethodPost, "/api/attendance/import/sheets", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			newAttendanceRouter(t, svc).ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code, rec.Body.String())
			svc.AssertExpectations(t)
		})
	}
}

func TestAttendanceHandler_GetStudentDetail(t *testing.T) {
	svc := new(MockAttendanceService)
	svc.On("StudentDetail", "Mary Ann").Return(domain.StudentDetail{
		Student:        "Mary Ann",
		AttendanceRate: domain.Percentage(75),
		TotalPresent:   3,
	}, nil)
	svc.On("StudentDetail", "Nobody").Return(domain.StudentDetail{}, roster.ErrUnknownStudent)

	router := newAttendanceRouter(t, svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/attendance/students/Mary%20Ann", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Mary Ann", decodeBody(t, rec)["student"])

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/attendance/students/Nobody", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, apierrors.TypeStudentUnknown, decodeBody(t, rec)["type"])
}

func TestAttendanceHandler_GetStudentDetail_EscapedNames(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		wantName string
	}{
		{"encoded space", "/api/attendance/students/Mary%20Ann", "Mary Ann"},
		{"literal percent sequence", "/api/attendance/students/A%2541", "A%41"},
		{"percent sign", "/api/attendance/students/100%25%20Club", "100% Club"},
		{"encoded slash", "/api/attendance/students/A%2FB", "A/B"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockAttendanceService)
			svc.On("StudentDetail", tt.wantName).Return(domain.StudentDetail{Student: tt.wantName}, nil)
			router := newAttendanceRouter(t, svc)

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.wantName, decodeBody(t, rec)["student"])
			svc.AssertExpectations(t)
		})
	}
}

func TestAttendanceHandler_GetCalendarMonth(t *testing.T) {
	tests := []struct {
		name           string
		path           string
		setupMock      func(*MockAttendanceService)
		expectedStatus int
	}{
		{
			name: "valid month",
			path: "/api/attendance/calendar/2024/1",
			setupMock: func(m *MockAttendanceService) {
				m.On("CalendarMonth", 2024, 1).Return(domain.CalendarMonth{Year: 2024, Month: 1, MonthName: "January"}, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "month out of range",
			path:           "/api/attendance/calendar/2024/13",
			setupMock:      func(m *MockAttendanceService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "year not a number",
			path:           "/api/attendance/calendar/next/1",
			setupMock:      func(m *MockAttendanceService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "no dataset",
			path: "/api/attendance/calendar/2024/2",
			setupMock: func(m *MockAttendanceService) {
				m.On("CalendarMonth", 2024, 2).Return(domain.CalendarMonth{}, services.ErrNoDataset)
			},
			expectedStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockAttendanceService)
			tt.setupMock(svc)

			rec := httptest.NewRecorder()
			newAttendanceRouter(t, svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, tt.expectedStatus, rec.Code, rec.Body.String())
			svc.AssertExpectations(t)
		})
	}
}

func TestAttendanceHandler_SeriesEndpoints(t *testing.T) {
	series := domain.RateSeries{
		{Key: "2024-01", Present: 4, Total: 6, Rate: domain.Ratio(4, 6)},
		{Key: "2024-02", Present: 2, Total: 6, Rate: domain.Ratio(2, 6)},
	}
	svc := new(MockAttendanceService)
	svc.On("Monthly").Return(series, nil)
	svc.On("Patterns").Return(domain.RateSeries{}, nil)
	svc.On("Students").Return([]domain.StudentTrend{{Student: "Alice", AttendanceRate: domain.Percentage(100)}}, nil)
	svc.On("Calendar").Return([]domain.CalendarDay{{Date: "2024-01-05", PresentCount: 2, TotalStudents: 3}}, nil)
	svc.On("Heatmap").Return(domain.Heatmap{Students: []string{"Alice"}, Dates: []string{"2024-01-05"}, Cells: [][]int{{1}}}, nil)

	router := newAttendanceRouter(t, svc)
	for _, path := range []string{"monthly", "patterns", "students", "calendar", "heatmap"} {
		t.Run(path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/attendance/"+path, nil))
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
		})
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/attendance/monthly", nil))
	var got []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "2024-01", got[0]["key"])
}

func TestAttendanceHandler_GetEnhancement(t *testing.T) {
	svc := new(MockAttendanceService)
	svc.On("Enhancement", domain.EnhancementDayPattern).Return(domain.Enhancement{
		Type:    domain.EnhancementDayPattern,
		Columns: []string{"Day", "Attendance Rate (%)"},
		Rows:    [][]string{{"Friday", "66.7"}},
	}, nil)
	svc.On("Enhancement", domain.EnhancementType("forecast")).Return(domain.Enhancement{}, services.ErrUnknownEnhancement)

	router := newAttendanceRouter(t, svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/attendance/enhancements/DAY_PATTERN", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "day_pattern", decodeBody(t, rec)["type"])

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/attendance/enhancements/forecast", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAttendanceHandler_Export(t *testing.T) {
	tests := []struct {
		name            string
		format          string
		setupMock       func(*MockAttendanceService)
		expectedStatus  int
		expectedType    string
		expectedFile    string
		expectedContent string
	}{
		{
			name:   "csv",
			format: "csv",
			setupMock: func(m *MockAttendanceService) {
				m.On("Export", "csv", mock.Anything).Return(func(w io.Writer) error {
					_, err := io.WriteString(w, "Student,Present,Percentage\nAlice,3,75.00\n")
					return err
				})
			},
			expectedStatus:  http.StatusOK,
			expectedType:    "text/csv; charset=utf-8",
			expectedFile:    "attendance_report.csv",
			expectedContent: "Alice,3,75.00",
		},
		{
			name:   "xlsx uppercase",
			format: "XLSX",
			setupMock: func(m *MockAttendanceService) {
				m.On("Export", "xlsx", mock.Anything).Return(func(w io.Writer) error {
					_, err := w.Write([]byte("PK"))
					return err
				})
			},
			expectedStatus: http.StatusOK,
			expectedType:   "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			expectedFile:   "attendance_summary.xlsx",
		},
		{
			name:           "unsupported format",
			format:         "pdf",
			setupMock:      func(m *MockAttendanceService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:   "no dataset",
			format: "csv",
			setupMock: func(m *MockAttendanceService) {
				m.On("Export", "csv", mock.Anything).Return(services.ErrNoDataset)
			},
			expectedStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockAttendanceService)
			tt.setupMock(svc)

			rec := httptest.NewRecorder()
			newAttendanceRouter(t, svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/attendance/export/"+tt.format, nil))

			assert.Equal(t, tt.expectedStatus, rec.Code, rec.Body.String())
			if tt.expectedFile != "" {
				assert.Equal(t, tt.expectedType, rec.Header().Get("Content-Type"))
				assert.Contains(t, rec.Header().Get("Content-Disposition"), tt.expectedFile)
				assert.Contains(t, rec.Body.String(), tt.expectedContent)
			}
			svc.AssertExpectations(t)
		})
	}
}
