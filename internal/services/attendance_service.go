package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"rollbook/internal/analytics"
	"rollbook/internal/config"
	"rollbook/internal/exporter"
	"rollbook/internal/infrastructure"
	"rollbook/internal/roster"
	"rollbook/internal/validation"
	"rollbook/pkg/contracts/domain"
	"rollbook/pkg/contracts/events"
)

// Roster sources reported in RosterInfo and events.
const (
	SourceUpload = "upload"
	SourceSheets = "sheets"
	SourceDisk   = "disk"
)

// Export formats
const (
	ExportCSV  = "csv"
	ExportXLSX = "xlsx"
)

// DefaultSheetsRange is read when an import request names no range.
const DefaultSheetsRange = "A:ZZ"

// Broadcaster pushes live update messages to connected clients.
type Broadcaster interface {
	BroadcastMessage(msg events.WebSocketMessage)
}

// SheetsFetcher reads a spreadsheet range as a roster table.
type SheetsFetcher interface {
	Fetch(ctx context.Context, spreadsheetID, readRange string) (roster.Table, error)
}

// snapshot is one immutable generation of the active roster.
type snapshot struct {
	analyzer *analytics.Analyzer
	info     domain.RosterInfo
}

// AttendanceService owns the active roster and serves every derived view.
type AttendanceService struct {
	paths    *config.Paths
	files    *validation.FileValidator
	sheets   SheetsFetcher
	reports  *exporter.ReportWriter
	hub      Broadcaster
	metrics  *infrastructure.AttendanceMetrics
	validate *validator.Validate
	logger   *slog.Logger

	current atomic.Pointer[snapshot]
	loads   singleflight.Group
	// writeMu serializes uploads and imports so the file on disk always
	// matches the active snapshot.
	writeMu sync.Mutex
}

// NewAttendanceService creates the attendance service. sheets, hub and
// metrics may be nil.
func NewAttendanceService(paths *config.Paths, files *validation.FileValidator, sheets SheetsFetcher, hub Broadcaster, metrics *infrastructure.AttendanceMetrics, logger *slog.Logger) *AttendanceService {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "attendance_service"))
	return &AttendanceService{
		paths:    paths,
		files:    files,
		sheets:   sheets,
		reports:  exporter.NewReportWriter(paths, logger),
		hub:      hub,
		metrics:  metrics,
		validate: validation.NewValidator(),
		logger:   logger,
	}
}

// Load reads the last accepted roster from the uploads directory. It is a
// no-op when a roster is already active or nothing was ever uploaded.
// Concurrent callers share one load.
func (s *AttendanceService) Load(ctx context.Context) error {
	if s.current.Load() != nil {
		return nil
	}
	_, err, _ := s.loads.Do("roster", func() (interface{}, error) {
		if s.current.Load() != nil {
			return nil, nil
		}
		return nil, s.loadFromDisk(ctx)
	})
	return err
}

func (s *AttendanceService) loadFromDisk(ctx context.Context) error {
	path, ok := s.storedRosterPath()
	if !ok {
		s.logger.DebugContext(ctx, "No stored roster found", slog.String("uploads_dir", s.paths.UploadsDir))
		return nil
	}

	ctx = infrastructure.WithLogAttrs(infrastructure.EnsureTraceID(ctx), slog.String("roster_source", SourceDisk))
	ctx, span := infrastructure.StartSpan(ctx, "roster.load", attribute.String("roster.path", path))
	defer span.End()

	ds, err := roster.ParseFile(path)
	s.metrics.RecordRosterLoad(ctx, SourceDisk, datasetStudents(ds), datasetDates(ds), err)
	if err != nil {
		infrastructure.RecordError(ctx, err)
		s.logger.ErrorContext(ctx, "Stored roster could not be loaded",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to load stored roster: %w", err)
	}

	info, _ := os.Stat(path)
	loadedAt := time.Now().UTC()
	if info != nil {
		loadedAt = info.ModTime().UTC()
	}
	s.install(newSnapshot(ds, SourceDisk, filepath.Base(path), loadedAt))

	s.logger.InfoContext(ctx, "Loaded stored roster",
		slog.String("path", path),
		slog.Int("students", ds.NumStudents()),
		slog.Int("dates", ds.NumDates()))
	return nil
}

// storedRosterPath returns the first persisted roster among the readable
// formats.
func (s *AttendanceService) storedRosterPath() (string, bool) {
	for _, ext := range []string{"csv", "xlsx"} {
		path := s.paths.GetRosterPath(ext)
		if config.FileExists(path) {
			return path, true
		}
	}
	return "", false
}

// Upload validates an uploaded roster file and, when it parses cleanly,
// makes it the active roster. A rejected upload leaves the current roster
// and the stored file untouched.
func (s *AttendanceService) Upload(ctx context.Context, filename string, data []byte) (domain.RosterInfo, error) {
	ctx = infrastructure.WithLogAttrs(ctx, slog.String("roster_source", SourceUpload))
	ctx, span := infrastructure.StartSpan(ctx, "roster.upload",
		attribute.String("roster.file_name", filename),
		attribute.Int("roster.size", len(data)))
	defer span.End()

	filename = filepath.Base(filename)

	ext, err := s.files.ValidateUpload(filename, data)
	if err != nil {
		return domain.RosterInfo{}, s.reject(ctx, SourceUpload, filename, "invalid_file", err)
	}

	table, err := roster.Read(bytes.NewReader(data), ext)
	if err != nil {
		if errors.Is(err, roster.ErrUnsupportedFormat) {
			err = ErrUnsupportedUpload
		}
		return domain.RosterInfo{}, s.reject(ctx, SourceUpload, filename, "unreadable", err)
	}
	s.logger.DebugContext(ctx, "Read roster upload",
		slog.String("file_name", filename),
		slog.Int("total_rows", len(table.Rows)))

	ds, err := roster.New(table)
	if err != nil {
		return domain.RosterInfo{}, s.reject(ctx, SourceUpload, filename, rejectReason(err), err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.persist(ctx, ext, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	}); err != nil {
		infrastructure.RecordError(ctx, err)
		return domain.RosterInfo{}, err
	}

	return s.activate(ctx, ds, SourceUpload, filename), nil
}

// ImportFromSheets reads a Google Sheets range and makes it the active
// roster. The imported table is stored as CSV.
func (s *AttendanceService) ImportFromSheets(ctx context.Context, req domain.SheetsImportRequest) (domain.RosterInfo, error) {
	req.SpreadsheetID = strings.TrimSpace(req.SpreadsheetID)
	req.Range = strings.TrimSpace(req.Range)
	if err := s.validate.StructCtx(ctx, req); err != nil {
		return domain.RosterInfo{}, err
	}
	if s.sheets == nil {
		return domain.RosterInfo{}, roster.ErrSheetsNotConfigured
	}
	if req.Range == "" {
		req.Range = DefaultSheetsRange
	}

	ctx = infrastructure.WithLogAttrs(ctx, slog.String("roster_source", SourceSheets))
	ctx, span := infrastructure.StartSpan(ctx, "roster.import_sheets",
		attribute.String("sheets.spreadsheet_id", req.SpreadsheetID),
		attribute.String("sheets.range", req.Range))
	defer span.End()

	table, err := s.sheets.Fetch(ctx, req.SpreadsheetID, req.Range)
	if err != nil {
		infrastructure.RecordError(ctx, err)
		s.metrics.RecordRosterLoad(ctx, SourceSheets, 0, 0, err)
		return domain.RosterInfo{}, err
	}

	ds, err := roster.New(table)
	if err != nil {
		return domain.RosterInfo{}, s.reject(ctx, SourceSheets, req.SpreadsheetID, rejectReason(err), err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.persist(ctx, "csv", func(w io.Writer) error {
		return roster.WriteCSV(w, ds.Table())
	}); err != nil {
		infrastructure.RecordError(ctx, err)
		return domain.RosterInfo{}, err
	}

	return s.activate(ctx, ds, SourceSheets, req.SpreadsheetID), nil
}

// activate swaps in a new snapshot and fans out the side effects.
func (s *AttendanceService) activate(ctx context.Context, ds *roster.Dataset, source, name string) domain.RosterInfo {
	snap := newSnapshot(ds, source, name, time.Now().UTC())
	s.install(snap)
	s.metrics.RecordRosterLoad(ctx, source, ds.NumStudents(), ds.NumDates(), nil)

	s.logger.InfoContext(ctx, "Roster replaced",
		slog.String("name", name),
		slog.Int("students", ds.NumStudents()),
		slog.Int("dates", ds.NumDates()))

	if err := s.writeReports(ctx, snap.analyzer); err != nil {
		// the roster is already active; a stale report is not worth failing the upload
		s.logger.ErrorContext(ctx, "Failed to regenerate reports", slog.String("error", err.Error()))
	}

	s.broadcast(ctx, events.MessageTypeRosterUpdated, events.RosterUpdated{
		Source:    source,
		FileName:  name,
		Students:  snap.info.Students,
		Dates:     snap.info.Dates,
		FirstDate: snap.info.FirstDate,
		LastDate:  snap.info.LastDate,
		LoadedAt:  snap.info.LoadedAt,
	})
	return snap.info
}

func (s *AttendanceService) install(snap *snapshot) {
	s.current.Store(snap)
}

func (s *AttendanceService) reject(ctx context.Context, source, name, reason string, err error) error {
	infrastructure.RecordError(ctx, err)
	s.metrics.RecordUploadRejection(ctx, reason)
	s.logger.WarnContext(ctx, "Roster rejected",
		slog.String("name", name),
		slog.String("reason", reason),
		slog.String("error", err.Error()))

	s.broadcast(ctx, events.MessageTypeRosterRejected, events.RosterRejected{
		Source:   source,
		FileName: name,
		Reason:   err.Error(),
	})
	return err
}

func rejectReason(err error) string {
	var schemaErr *roster.SchemaError
	var valueErr *roster.ValueCheckError
	switch {
	case errors.As(err, &schemaErr):
		return "schema"
	case errors.As(err, &valueErr):
		return "value"
	case errors.Is(err, roster.ErrEmptyTable):
		return "empty"
	default:
		return "invalid"
	}
}

// persist writes the roster file for ext atomically and removes the stored
// copies in other formats.
func (s *AttendanceService) persist(ctx context.Context, ext string, write func(io.Writer) error) error {
	target := s.paths.GetRosterPath(ext)
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("failed to create uploads directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write roster: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close roster: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("failed to store roster: %w", err)
	}

	for _, other := range []string{"csv", "xlsx"} {
		if other == ext {
			continue
		}
		if err := os.Remove(s.paths.GetRosterPath(other)); err != nil && !os.IsNotExist(err) {
			s.logger.WarnContext(ctx, "Failed to remove superseded roster",
				slog.String("extension", other),
				slog.String("error", err.Error()))
		}
	}
	return nil
}

// writeReports regenerates the CSV report and the summary workbook.
func (s *AttendanceService) writeReports(ctx context.Context, a *analytics.Analyzer) error {
	percentages := a.StudentPercentages()
	data := exporter.WorkbookData{
		Summary:  a.SummaryStatistics(),
		Students: percentages,
		Calendar: a.CalendarSummary(),
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := s.reports.SaveAttendanceReport(config.AttendanceReport, percentages)
		s.metrics.RecordReportWrite(ctx, ExportCSV, err)
		return err
	})
	g.Go(func() error {
		err := s.reports.SaveWorkbook(config.AttendanceWorkbook, data)
		s.metrics.RecordReportWrite(ctx, ExportXLSX, err)
		return err
	})
	return g.Wait()
}

func (s *AttendanceService) broadcast(ctx context.Context, msgType events.MessageType, data interface{}) {
	if s.hub == nil {
		return
	}
	msg := events.NewMessage(msgType, data)
	msg.TraceID = infrastructure.GetTraceID(ctx)
	s.hub.BroadcastMessage(msg)
}

func newSnapshot(ds *roster.Dataset, source, name string, loadedAt time.Time) *snapshot {
	info := domain.RosterInfo{
		Loaded:   true,
		Source:   source,
		FileName: name,
		Students: ds.NumStudents(),
		Dates:    ds.NumDates(),
		LoadedAt: loadedAt,
	}
	if n := ds.NumDates(); n > 0 {
		info.FirstDate = ds.DateKey(0)
		info.LastDate = ds.DateKey(n - 1)
	}
	return &snapshot{analyzer: analytics.New(ds), info: info}
}

func datasetStudents(ds *roster.Dataset) int {
	if ds == nil {
		return 0
	}
	return ds.NumStudents()
}

func datasetDates(ds *roster.Dataset) int {
	if ds == nil {
		return 0
	}
	return ds.NumDates()
}

// active returns the current snapshot, loading the stored roster on first use.
func (s *AttendanceService) active(ctx context.Context) (*snapshot, error) {
	if snap := s.current.Load(); snap != nil {
		return snap, nil
	}
	if err := s.Load(ctx); err != nil {
		return nil, err
	}
	if snap := s.current.Load(); snap != nil {
		return snap, nil
	}
	return nil, ErrNoDataset
}

// analyze runs one analyzer view under a span and records its duration.
func analyze[T any](ctx context.Context, s *AttendanceService, view string, fn func(*analytics.Analyzer) (T, error)) (T, error) {
	var zero T
	snap, err := s.active(ctx)
	if err != nil {
		return zero, err
	}

	ctx, span := infrastructure.StartSpan(ctx, "analytics."+view)
	defer span.End()

	start := time.Now()
	result, err := fn(snap.analyzer)
	s.metrics.RecordAnalysis(ctx, view, time.Since(start))
	if err != nil {
		infrastructure.RecordError(ctx, err)
		return zero, err
	}
	return result, nil
}

// Info describes the active roster. Loaded is false when there is none.
func (s *AttendanceService) Info(ctx context.Context) domain.RosterInfo {
	snap, err := s.active(ctx)
	if err != nil {
		return domain.RosterInfo{}
	}
	return snap.info
}

// Loaded reports whether a roster is active without touching the disk.
func (s *AttendanceService) Loaded() bool {
	return s.current.Load() != nil
}

// Summary returns the dashboard summary statistics.
func (s *AttendanceService) Summary(ctx context.Context) (domain.SummaryStatistics, error) {
	return analyze(ctx, s, "summary", func(a *analytics.Analyzer) (domain.SummaryStatistics, error) {
		return a.SummaryStatistics(), nil
	})
}

// Monthly returns the attendance rate per month.
func (s *AttendanceService) Monthly(ctx context.Context) (domain.RateSeries, error) {
	return analyze(ctx, s, "monthly", func(a *analytics.Analyzer) (domain.RateSeries, error) {
		return a.MonthlyAttendance(), nil
	})
}

// Patterns returns the attendance rate per weekday.
func (s *AttendanceService) Patterns(ctx context.Context) (domain.RateSeries, error) {
	return analyze(ctx, s, "patterns", func(a *analytics.Analyzer) (domain.RateSeries, error) {
		return a.AttendancePatterns(), nil
	})
}

// Students returns every student's trend in roster order.
func (s *AttendanceService) Students(ctx context.Context) ([]domain.StudentTrend, error) {
	return analyze(ctx, s, "students", func(a *analytics.Analyzer) ([]domain.StudentTrend, error) {
		return a.StudentTrends(), nil
	})
}

// StudentDetail returns one student's drill-down.
func (s *AttendanceService) StudentDetail(ctx context.Context, name string) (domain.StudentDetail, error) {
	return analyze(ctx, s, "student_detail", func(a *analytics.Analyzer) (domain.StudentDetail, error) {
		return a.StudentDetail(name)
	})
}

// Calendar returns the per-date summary.
func (s *AttendanceService) Calendar(ctx context.Context) ([]domain.CalendarDay, error) {
	return analyze(ctx, s, "calendar", func(a *analytics.Analyzer) ([]domain.CalendarDay, error) {
		return a.CalendarSummary(), nil
	})
}

// CalendarMonth returns the month grid for year and month (1-12).
func (s *AttendanceService) CalendarMonth(ctx context.Context, year, month int) (domain.CalendarMonth, error) {
	if month < 1 || month > 12 {
		return domain.CalendarMonth{}, ErrInvalidMonth
	}
	return analyze(ctx, s, "calendar_month", func(a *analytics.Analyzer) (domain.CalendarMonth, error) {
		return a.CalendarMonth(year, time.Month(month)), nil
	})
}

// Heatmap returns the students x dates presence matrix.
func (s *AttendanceService) Heatmap(ctx context.Context) (domain.Heatmap, error) {
	return analyze(ctx, s, "heatmap", func(a *analytics.Analyzer) (domain.Heatmap, error) {
		return a.Heatmap(), nil
	})
}

// StudentPercentages returns the per-student report rows.
func (s *AttendanceService) StudentPercentages(ctx context.Context) ([]domain.StudentPercentage, error) {
	return analyze(ctx, s, "student_percentages", func(a *analytics.Analyzer) ([]domain.StudentPercentage, error) {
		return a.StudentPercentages(), nil
	})
}

// Enhancement returns one of the captioned dashboard tables.
func (s *AttendanceService) Enhancement(ctx context.Context, kind domain.EnhancementType) (domain.Enhancement, error) {
	return analyze(ctx, s, "enhancement", func(a *analytics.Analyzer) (domain.Enhancement, error) {
		return buildEnhancement(a, kind)
	})
}

// Export writes the report in format ("csv" or "xlsx") to w.
func (s *AttendanceService) Export(ctx context.Context, format string, w io.Writer) error {
	format = strings.ToLower(format)
	if format != ExportCSV && format != ExportXLSX {
		return ErrUnsupportedExport
	}

	_, err := analyze(ctx, s, "export", func(a *analytics.Analyzer) (struct{}, error) {
		var err error
		switch format {
		case ExportCSV:
			err = exporter.EncodeAttendanceReport(w, a.StudentPercentages())
		case ExportXLSX:
			err = exporter.WriteWorkbook(w, exporter.WorkbookData{
				Summary:  a.SummaryStatistics(),
				Students: a.StudentPercentages(),
				Calendar: a.CalendarSummary(),
			})
		}
		s.metrics.RecordReportWrite(ctx, format, err)
		return struct{}{}, err
	})
	return err
}

// ExportFileName returns the download name for an export format.
func ExportFileName(format string) string {
	if strings.EqualFold(format, ExportXLSX) {
		return config.AttendanceWorkbook
	}
	return config.AttendanceReport
}
