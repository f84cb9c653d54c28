package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	apierrors "rollbook/internal/errors"
	"rollbook/internal/validation"
)

// ValidationMiddleware gates request bodies and decodes JSON payloads into
// validated request structs.
type ValidationMiddleware struct {
	validator    *validator.Validate
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
	maxBodySize  int64
}

// NewValidationMiddleware creates the middleware. maxBodySize bounds JSON
// bodies; uploads are bounded by their handler.
func NewValidationMiddleware(logger *slog.Logger, errorHandler *apierrors.ErrorHandler, maxBodySize int64) *ValidationMiddleware {
	if maxBodySize <= 0 {
		maxBodySize = 1 << 20
	}
	return &ValidationMiddleware{
		validator:    validation.NewValidator(),
		logger:       logger.With(slog.String("component", "validation_middleware")),
		errorHandler: errorHandler,
		maxBodySize:  maxBodySize,
	}
}

// ValidateRequest accepts JSON and multipart bodies only. JSON bodies are
// capped at maxBodySize; the cap is enforced while the handler reads.
func (m *ValidationMiddleware) ValidateRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body == nil || r.Body == http.NoBody || r.ContentLength == 0 {
			next.ServeHTTP(w, r)
			return
		}

		mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
		switch mediaType {
		case "multipart/form-data":
			next.ServeHTTP(w, r)
			return
		case "application/json":
		default:
			m.logger.DebugContext(r.Context(), "Rejected request body",
				slog.String("content_type", r.Header.Get("Content-Type")),
				slog.String("path", r.URL.Path))
			m.errorHandler.HandleError(w, r, apierrors.New(
				http.StatusUnsupportedMediaType,
				apierrors.CodeUnsupportedMedia,
				"Request body must be application/json or multipart/form-data",
			))
			return
		}

		if r.ContentLength > m.maxBodySize {
			m.errorHandler.HandleError(w, r, apierrors.NewWithDetails(
				http.StatusRequestEntityTooLarge,
				apierrors.CodePayloadTooLarge,
				"Request body exceeds maximum allowed size",
				map[string]int64{"max_size": m.maxBodySize, "size": r.ContentLength},
			))
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, m.maxBodySize)
		next.ServeHTTP(w, r)
	})
}

// DecodeAndValidate decodes one JSON object into dst, rejecting unknown
// fields, and validates its tags.
func (m *ValidationMiddleware) DecodeAndValidate(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		var syntaxErr *json.SyntaxError
		switch {
		case errors.Is(err, io.EOF):
			return apierrors.New(http.StatusBadRequest, apierrors.CodeInvalidRequest, "Request body is empty")
		case errors.As(err, &maxErr):
			return err
		case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
			return apierrors.NewWithDetails(http.StatusBadRequest, apierrors.CodeInvalidJSON,
				"Request body contains invalid JSON", err.Error())
		default:
			return apierrors.InvalidRequestWithError(err)
		}
	}
	if dec.More() {
		return apierrors.New(http.StatusBadRequest, apierrors.CodeInvalidJSON, "Request body must contain a single JSON object")
	}
	return m.ValidateStruct(dst)
}

// ValidateStruct runs the validate tags of v.
func (m *ValidationMiddleware) ValidateStruct(v interface{}) error {
	err := m.validator.Struct(v)
	var verrs validator.ValidationErrors
	switch {
	case err == nil:
		return nil
	case errors.As(err, &verrs):
		return apierrors.FromValidator(verrs)
	default:
		return apierrors.InvalidRequestWithError(err)
	}
}

// QueryParamValidator parses path and query parameters. Its methods write
// the problem response themselves and report ok=false on failure.
type QueryParamValidator struct {
	errorHandler *apierrors.ErrorHandler
}

// NewQueryParamValidator creates a query parameter validator.
func NewQueryParamValidator(_ *slog.Logger, errorHandler *apierrors.ErrorHandler) *QueryParamValidator {
	return &QueryParamValidator{errorHandler: errorHandler}
}

// ParseInt parses value within [min, max]; an empty value yields defaultValue.
func (v *QueryParamValidator) ParseInt(w http.ResponseWriter, r *http.Request, param, value string, min, max, defaultValue int) (int, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return defaultValue, true
	}

	n, err := strconv.Atoi(value)
	if err != nil || n < min || n > max {
		v.errorHandler.HandleError(w, r, apierrors.ErrValidation(param,
			fmt.Sprintf("%s must be an integer between %d and %d", param, min, max)))
		return 0, false
	}
	return n, true
}

// ValidateEnum matches query parameter param case-insensitively against
// allowed and returns the canonical spelling.
func (v *QueryParamValidator) ValidateEnum(w http.ResponseWriter, r *http.Request, param string, allowed []string, defaultValue string) (string, bool) {
	value := strings.TrimSpace(r.URL.Query().Get(param))
	if value == "" {
		return defaultValue, true
	}

	for _, a := range allowed {
		if strings.EqualFold(value, a) {
			return a, true
		}
	}

	v.errorHandler.HandleError(w, r, apierrors.ErrValidation(param,
		fmt.Sprintf("%s must be one of: %s", param, strings.Join(allowed, ", "))))
	return "", false
}
