package sheets

import (
	"context"
	"errors"
	"fmt"

	"call-companion-core/internal/domain"

	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"
)

// Client implements the spreadsheet operations on top of the Google Sheets v4 API
type Client struct {
	service *sheetsapi.Service
	logger  zerolog.Logger
}

// Credentials selects how the client authenticates; JSON takes precedence over File
type Credentials struct {
	File string
	JSON string
}

// ClientOptions turns credentials into API client options
func (c Credentials) ClientOptions() []option.ClientOption {
	switch {
	case c.JSON != "":
		return []option.ClientOption{option.WithCredentialsJSON([]byte(c.JSON))}
	case c.File != "":
		return []option.ClientOption{option.WithCredentialsFile(c.File)}
	}
	return nil
}

// Configured reports whether any credentials were provided
func (c Credentials) Configured() bool {
	return c.JSON != "" || c.File != ""
}

// NewClient creates a Sheets client. opts are passed to the API client as-is.
func NewClient(ctx context.Context, logger zerolog.Logger, opts ...option.ClientOption) (*Client, error) {
	opts = append([]option.ClientOption{option.WithScopes(sheetsapi.SpreadsheetsScope)}, opts...)
	service, err := sheetsapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}
	return &Client{
		service: service,
		logger:  logger.With().Str("component", "sheets_client").Logger(),
	}, nil
}

// GetSheetMetadata returns the spreadsheet title and its tab titles in display order
func (c *Client) GetSheetMetadata(ctx context.Context, spreadsheetRef string) (*domain.SheetMetadata, error) {
	resp, err := c.service.Spreadsheets.Get(spreadsheetRef).
		Fields("spreadsheetId,properties.title,sheets.properties.title,sheets.properties.index").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get spreadsheet %s: %w", spreadsheetRef, err)
	}

	meta := &domain.SheetMetadata{SpreadsheetID: resp.SpreadsheetId}
	if resp.Properties != nil {
		meta.Title = resp.Properties.Title
	}
	for _, sheet := range resp.Sheets {
		if sheet.Properties != nil {
			meta.TabTitles = append(meta.TabTitles, sheet.Properties.Title)
		}
	}
	return meta, nil
}

// ClearRange removes all values in rng, keeping formatting
func (c *Client) ClearRange(ctx context.Context, spreadsheetRef string, rng string) error {
	_, err := c.service.Spreadsheets.Values.Clear(spreadsheetRef, rng, &sheetsapi.ClearValuesRequest{}).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to clear %s: %w", rng, err)
	}
	return nil
}

// WriteValues writes rows starting at the top-left cell of rng. Values are stored as entered.
func (c *Client) WriteValues(ctx context.Context, spreadsheetRef string, rng string, rows [][]interface{}) error {
	resp, err := c.service.Spreadsheets.Values.Update(spreadsheetRef, rng, &sheetsapi.ValueRange{
		MajorDimension: "ROWS",
		Values:         rows,
	}).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", rng, err)
	}

	c.logger.Debug().
		Str("spreadsheet", spreadsheetRef).
		Str("range", resp.UpdatedRange).
		Int64("cells", resp.UpdatedCells).
		Msg("Wrote sheet values")
	return nil
}

// ErrNotConfigured is returned by Disabled for every call
var ErrNotConfigured = errors.New("spreadsheet credentials not configured")

// Disabled is used when no credentials are configured. Exports of enabled bindings fail
// and the failure is recorded on the binding.
type Disabled struct{}

func (Disabled) GetSheetMetadata(ctx context.Context, spreadsheetRef string) (*domain.SheetMetadata, error) {
	return nil, ErrNotConfigured
}

func (Disabled) ClearRange(ctx context.Context, spreadsheetRef string, rng string) error {
	return ErrNotConfigured
}

func (Disabled) WriteValues(ctx context.Context, spreadsheetRef string, rng string, rows [][]interface{}) error {
	return ErrNotConfigured
}
