package roster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// ErrSheetsNotConfigured is returned when no credentials were supplied.
var ErrSheetsNotConfigured = errors.New("google sheets import is not configured")

// SheetsConfig holds the credentials used to reach the Sheets API. Either an
// API key (public sheets) or a service account credentials file is required.
type SheetsConfig struct {
	APIKey          string
	CredentialsFile string
	// Endpoint overrides the API base URL.
	Endpoint string
}

// SheetsSource reads roster tables from Google Sheets.
type SheetsSource struct {
	service *sheets.Service
	logger  *slog.Logger
}

// NewSheetsSource creates a Sheets-backed roster source.
func NewSheetsSource(ctx context.Context, cfg SheetsConfig, logger *slog.Logger) (*SheetsSource, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var opts []option.ClientOption
	switch {
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	case cfg.APIKey != "":
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	case cfg.Endpoint != "":
		opts = append(opts, option.WithoutAuthentication())
	default:
		return nil, ErrSheetsNotConfigured
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	service, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return &SheetsSource{service: service, logger: logger.With("component", "sheets_source")}, nil
}

// Fetch reads the A1 range of a spreadsheet into a Table.
func (s *SheetsSource) Fetch(ctx context.Context, spreadsheetID, readRange string) (Table, error) {
	resp, err := s.service.Spreadsheets.Values.Get(spreadsheetID, readRange).Context(ctx).Do()
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to read spreadsheet range",
			slog.String("spreadsheet_id", spreadsheetID),
			slog.String("range", readRange),
			slog.String("error", err.Error()))
		return Table{}, fmt.Errorf("failed to read spreadsheet %s: %w", spreadsheetID, err)
	}

	s.logger.InfoContext(ctx, "Read spreadsheet range",
		slog.String("spreadsheet_id", spreadsheetID),
		slog.String("range", resp.Range),
		slog.Int("rows", len(resp.Values)))

	return FromValues(resp.Values)
}
