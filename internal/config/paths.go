package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Well-known files inside the uploads and reports directories.
const (
	RosterBaseName     = "attendance"
	AttendanceReport   = "attendance_report.csv"
	AttendanceWorkbook = "attendance_summary.xlsx"
)

// Paths contains all resolved application paths
type Paths struct {
	BaseDir      string
	DataDir      string
	UploadsDir   string
	ReportsDir   string
	LogsDir      string
	DatabaseFile string
}

// GetExecutableDir returns the directory of the running binary with
// symlinks resolved.
func GetExecutableDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to get executable path: %w", err)
	}

	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return "", fmt.Errorf("failed to resolve executable symlinks: %w", err)
	}

	return filepath.Dir(exe), nil
}

// ResolvePaths turns a PathsConfig into absolute paths.
func ResolvePaths(cfg PathsConfig) (*Paths, error) {
	base := cfg.BaseDir
	if base == "" {
		exeDir, err := GetExecutableDir()
		if err != nil {
			return nil, err
		}
		base = exeDir
	}
	base, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base directory: %w", err)
	}

	dataDir := under(base, cfg.DataDir)
	return &Paths{
		BaseDir:      base,
		DataDir:      dataDir,
		UploadsDir:   under(dataDir, cfg.UploadsDir),
		ReportsDir:   under(dataDir, cfg.ReportsDir),
		LogsDir:      under(base, cfg.LogsDir),
		DatabaseFile: under(dataDir, cfg.DatabaseFile),
	}, nil
}

func under(parent, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(parent, p)
}

// EnsureDirectories creates all required directories if they don't exist
func (p *Paths) EnsureDirectories() error {
	directories := []string{
		p.DataDir,
		p.UploadsDir,
		p.ReportsDir,
		p.LogsDir,
		filepath.Dir(p.DatabaseFile),
	}

	for _, dir := range directories {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		slog.Debug("Ensured directory exists", slog.String("directory", dir))
	}

	return nil
}

// GetUploadPath returns the path for a stored upload
func (p *Paths) GetUploadPath(filename string) string {
	return filepath.Join(p.UploadsDir, filename)
}

// GetRosterPath returns where an accepted roster with the given extension is stored.
func (p *Paths) GetRosterPath(ext string) string {
	return p.GetUploadPath(RosterBaseName + "." + ext)
}

// GetReportPath returns the path for a report file
func (p *Paths) GetReportPath(filename string) string {
	return filepath.Join(p.ReportsDir, filename)
}

// GetLogPath returns the path for a log file
func (p *Paths) GetLogPath(filename string) string {
	return filepath.Join(p.LogsDir, filename)
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// LogPathResolution logs the resolved directories
func (p *Paths) LogPathResolution(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("Path resolution summary",
		slog.Group("directories",
			slog.String("base", p.BaseDir),
			slog.String("data", p.DataDir),
			slog.String("uploads", p.UploadsDir),
			slog.String("reports", p.ReportsDir),
			slog.String("logs", p.LogsDir),
		),
		slog.Group("files",
			slog.String("database", p.DatabaseFile),
			slog.Bool("database_exists", FileExists(p.DatabaseFile)),
		))
}
