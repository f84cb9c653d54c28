package exporter

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"rollbook/internal/config"
	"rollbook/pkg/contracts/domain"
)

// ReportWriter saves reports into the reports directory. Every save goes
// through a temp file and a rename, so the dashboard download endpoints never
// serve a half-written report.
type ReportWriter struct {
	paths  *config.Paths
	logger *slog.Logger
}

func NewReportWriter(paths *config.Paths, logger *slog.Logger) *ReportWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportWriter{paths: paths, logger: logger}
}

// Path returns where name is saved. Absolute names are used as is.
func (w *ReportWriter) Path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return w.paths.GetReportPath(name)
}

// Save runs encode against a temp file next to the target and renames it
// into place once encode and close both succeed.
func (w *ReportWriter) Save(name string, encode func(io.Writer) error) error {
	target := w.Path(name)
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(target)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if err := encode(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("replace %s: %w", target, err)
	}

	w.logger.Debug("report saved", slog.String("path", target))
	return nil
}

// SaveCSV saves t as name.
func (w *ReportWriter) SaveCSV(name string, t Table) error {
	return w.Save(name, func(out io.Writer) error { return WriteCSV(out, t) })
}

// SaveAttendanceReport saves the per-student percentage report.
func (w *ReportWriter) SaveAttendanceReport(name string, rows []domain.StudentPercentage) error {
	return w.Save(name, func(out io.Writer) error { return EncodeAttendanceReport(out, rows) })
}

// SaveWorkbook saves the summary workbook.
func (w *ReportWriter) SaveWorkbook(name string, data WorkbookData) error {
	return w.Save(name, func(out io.Writer) error { return WriteWorkbook(out, data) })
}
