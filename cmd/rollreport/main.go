// Command rollreport analyzes a roster file offline. It prints the summary
// statistics as JSON and can write the CSV and XLSX reports the dashboard
// produces after an upload.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"rollbook/internal/analytics"
	"rollbook/internal/config"
	"rollbook/internal/exporter"
	"rollbook/internal/infrastructure"
	"rollbook/internal/roster"
	"rollbook/internal/validation"
)

type options struct {
	input    string
	output   string
	student  string
	printOut bool
	logLevel string
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("rollreport", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.input, "in", "", "roster file to analyze (.csv or .xlsx)")
	fs.StringVar(&opts.output, "out", "", "directory for attendance_report.csv and attendance_summary.xlsx (skipped when empty)")
	fs.StringVar(&opts.student, "student", "", "print the drill-down for one student instead of the summary")
	fs.BoolVar(&opts.printOut, "json", true, "print the result as JSON on stdout")
	fs.StringVar(&opts.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if opts.input == "" {
		fs.Usage()
		return opts, errors.New("-in is required")
	}
	return opts, nil
}

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger := infrastructure.NewLogger(os.Stderr, opts.logLevel)
	if err := run(opts, os.Stdout, logger); err != nil {
		logger.Error("Report failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(opts options, stdout io.Writer, logger *slog.Logger) error {
	defaults := config.Default().Upload
	files := validation.NewFileValidator(logger, defaults.MaxBytes, defaults.AllowedExtensions)
	if err := files.ValidateFile(opts.input); err != nil {
		return err
	}

	ds, err := roster.ParseFile(opts.input)
	if err != nil {
		return fmt.Errorf("failed to read roster %s: %w", opts.input, err)
	}
	analyzer := analytics.New(ds)

	logger.Info("Roster parsed",
		slog.String("file", opts.input),
		slog.Int("students", ds.NumStudents()),
		slog.Int("dates", ds.NumDates()))

	if opts.output != "" {
		if err := writeReports(files, analyzer, opts.output, logger); err != nil {
			return err
		}
	}

	if !opts.printOut {
		return nil
	}

	var result interface{}
	if opts.student != "" {
		detail, err := analyzer.StudentDetail(opts.student)
		if err != nil {
			return err
		}
		result = detail
	} else {
		result = analyzer.SummaryStatistics()
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func writeReports(files *validation.FileValidator, a *analytics.Analyzer, dir string, logger *slog.Logger) error {
	if err := files.ValidateOutputDirectory(dir); err != nil {
		return err
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("failed to resolve output directory: %w", err)
	}

	writer := exporter.NewReportWriter(&config.Paths{ReportsDir: abs}, logger)
	percentages := a.StudentPercentages()

	if err := writer.SaveAttendanceReport(config.AttendanceReport, percentages); err != nil {
		return fmt.Errorf("failed to write %s: %w", config.AttendanceReport, err)
	}
	if err := writer.SaveWorkbook(config.AttendanceWorkbook, exporter.WorkbookData{
		Summary:  a.SummaryStatistics(),
		Students: percentages,
		Calendar: a.CalendarSummary(),
	}); err != nil {
		return fmt.Errorf("failed to write %s: %w", config.AttendanceWorkbook, err)
	}

	logger.Info("Reports written", slog.String("directory", abs))
	return nil
}
