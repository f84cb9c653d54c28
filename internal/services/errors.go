package services

import (
	"net/http"

	apierrors "rollbook/internal/errors"
)

// Service errors. They are APIErrors so handlers can render them directly.
var (
	// Roster errors
	ErrNoDataset          = apierrors.New(http.StatusNotFound, apierrors.CodeNoDataset, "No attendance data has been uploaded yet")
	ErrUnsupportedUpload  = apierrors.New(http.StatusUnsupportedMediaType, apierrors.CodeUnsupportedUpload, "Uploaded file format cannot be read as a roster")
	ErrUnknownEnhancement = apierrors.New(http.StatusNotFound, apierrors.CodeNotFound, "Unknown dashboard enhancement")
	ErrUnsupportedExport  = apierrors.New(http.StatusBadRequest, apierrors.CodeInvalidRequest, "Unsupported export format")

	// Month navigation
	ErrInvalidMonth = apierrors.New(http.StatusBadRequest, apierrors.CodeValidationFailed, "Month must be between 1 and 12")
)
