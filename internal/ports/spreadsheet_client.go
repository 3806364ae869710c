package ports

import (
	"context"

	"call-companion-core/internal/domain"
)

// SpreadsheetClient defines the external spreadsheet operations used by the record mirror
type SpreadsheetClient interface {
	GetSheetMetadata(ctx context.Context, spreadsheetRef string) (*domain.SheetMetadata, error)
	ClearRange(ctx context.Context, spreadsheetRef string, rng string) error
	// WriteValues writes rows of scalar values starting at the top-left cell of rng
	WriteValues(ctx context.Context, spreadsheetRef string, rng string, rows [][]interface{}) error
}
