package domain

import "time"

// EnhancementType names a dashboard enhancement table
type EnhancementType string

const (
	EnhancementMonthlyTrend EnhancementType = "monthly_trend"
	EnhancementDayPattern   EnhancementType = "day_pattern"
	EnhancementHeatmap      EnhancementType = "heatmap"
)

// Enhancement is a small captioned table for the dashboard
type Enhancement struct {
	Type        EnhancementType `json:"type"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Chart       string          `json:"chart"`
	Columns     []string        `json:"columns"`
	Rows        [][]string      `json:"rows"`
}

// RosterInfo describes the active roster
type RosterInfo struct {
	Loaded    bool      `json:"loaded"`
	Source    string    `json:"source,omitempty"`
	FileName  string    `json:"file_name,omitempty"`
	Students  int       `json:"students"`
	Dates     int       `json:"dates"`
	FirstDate string    `json:"first_date,omitempty"`
	LastDate  string    `json:"last_date,omitempty"`
	LoadedAt  time.Time `json:"loaded_at,omitempty"`
}

// SheetsImportRequest selects a Google Sheets range to import
type SheetsImportRequest struct {
	SpreadsheetID string `json:"spreadsheet_id" validate:"required,max=128"`
	Range         string `json:"range" validate:"max=128"`
}
