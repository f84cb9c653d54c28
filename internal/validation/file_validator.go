package validation

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

var (
	// ErrEmptyUpload is returned for a zero-byte upload.
	ErrEmptyUpload = errors.New("uploaded file is empty")
	// ErrFileTooLarge is returned when an upload exceeds the size limit.
	ErrFileTooLarge = errors.New("uploaded file is too large")
	// ErrExtensionNotAllowed is returned for extensions outside the allow-list.
	ErrExtensionNotAllowed = errors.New("file type not allowed")
	// ErrContentMismatch is returned when the bytes do not look like the
	// declared extension.
	ErrContentMismatch = errors.New("file content does not match its extension")
)

// acceptedMIME lists, per extension, the detected types that are accepted.
// Parents are matched too, so "text/plain" also covers "text/csv".
var acceptedMIME = map[string][]string{
	"csv":  {"text/plain"},
	"xlsx": {"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "application/zip"},
}

// FileValidator checks roster files before they are parsed
type FileValidator struct {
	logger     *slog.Logger
	maxBytes   int64
	extensions map[string]bool
}

// NewFileValidator creates a validator accepting the given extensions (without
// the dot) up to maxBytes.
func NewFileValidator(logger *slog.Logger, maxBytes int64, extensions []string) *FileValidator {
	if logger == nil {
		logger = slog.Default()
	}
	allowed := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		allowed[normalizeExt(ext)] = true
	}
	return &FileValidator{
		logger:     logger,
		maxBytes:   maxBytes,
		extensions: allowed,
	}
}

// ValidateUpload checks an uploaded file's name, size and content, and
// returns its normalized extension.
func (v *FileValidator) ValidateUpload(filename string, data []byte) (string, error) {
	ext := normalizeExt(filepath.Ext(filename))
	if !v.extensions[ext] {
		v.logger.Warn("Rejected upload extension",
			slog.String("file", filename),
			slog.String("extension", ext))
		return "", fmt.Errorf("%w: %q", ErrExtensionNotAllowed, filepath.Ext(filename))
	}

	if len(data) == 0 {
		return "", ErrEmptyUpload
	}
	if v.maxBytes > 0 && int64(len(data)) > v.maxBytes {
		v.logger.Warn("Rejected oversized upload",
			slog.String("file", filename),
			slog.Int("size", len(data)),
			slog.Int64("max_bytes", v.maxBytes))
		return "", fmt.Errorf("%w: %d bytes exceeds %d", ErrFileTooLarge, len(data), v.maxBytes)
	}

	detected, err := mimetype.DetectReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to detect content type: %w", err)
	}
	if !matchesAny(detected, acceptedMIME[ext]) {
		v.logger.Warn("Rejected upload content",
			slog.String("file", filename),
			slog.String("extension", ext),
			slog.String("detected", detected.String()))
		return "", fmt.Errorf("%w: %s looks like %s", ErrContentMismatch, filename, detected.String())
	}

	v.logger.Debug("Upload validated",
		slog.String("file", filename),
		slog.String("mime", detected.String()),
		slog.Int("size", len(data)))
	return ext, nil
}

// ValidateFile vets a roster file on disk with the same extension and size
// rules as an upload. Content sniffing happens when the file is read.
func (v *FileValidator) ValidateFile(path string) error {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("roster file %s not found", path)
	case err != nil:
		return fmt.Errorf("stat %s: %w", path, err)
	case !info.Mode().IsRegular():
		return fmt.Errorf("%s is not a regular file", path)
	}

	if ext := normalizeExt(filepath.Ext(path)); !v.extensions[ext] {
		return fmt.Errorf("%w: %q", ErrExtensionNotAllowed, filepath.Ext(path))
	}
	if v.maxBytes > 0 && info.Size() > v.maxBytes {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrFileTooLarge, info.Size(), v.maxBytes)
	}
	return nil
}

// ValidateOutputDirectory creates dir if needed and proves it is writable
// by creating and removing a temp file there.
func (v *FileValidator) ValidateOutputDirectory(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".rollbook-write-*")
	if err != nil {
		v.logger.Warn("Output directory not writable", slog.String("directory", dir), slog.String("error", err.Error()))
		return fmt.Errorf("output directory %s is not writable: %w", dir, err)
	}
	tmp.Close()
	return os.Remove(tmp.Name())
}

func matchesAny(detected *mimetype.MIME, accepted []string) bool {
	for m := detected; m != nil; m = m.Parent() {
		for _, a := range accepted {
			if m.Is(a) {
				return true
			}
		}
	}
	return false
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}
