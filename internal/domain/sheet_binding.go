package domain

import "time"

// ColumnMapping maps one record field to a spreadsheet column label
type ColumnMapping struct {
	Field string `json:"field"`
	Label string `json:"label"`
}

// SheetBinding configures outbound mirroring of one collection into an external spreadsheet
type SheetBinding struct {
	ID             string          `json:"id"`
	CollectionID   string          `json:"collection_id"`
	BusinessID     string          `json:"business_id"`
	SpreadsheetRef string          `json:"spreadsheet_ref"` // Spreadsheet id, already extracted from any URL
	TabName        string          `json:"tab_name,omitempty"`
	FieldMapping   []ColumnMapping `json:"field_mapping,omitempty"` // Order defines column order
	Enabled        bool            `json:"enabled"`
	LastExportAt   *time.Time      `json:"last_export_at,omitempty"`
	LastError      string          `json:"last_error,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Mirrors reports whether exports should run for this binding
func (b *SheetBinding) Mirrors() bool {
	return b != nil && b.Enabled && b.SpreadsheetRef != ""
}

// SheetMetadata is the subset of spreadsheet metadata the mirror needs
type SheetMetadata struct {
	SpreadsheetID string
	Title         string
	TabTitles     []string
}
