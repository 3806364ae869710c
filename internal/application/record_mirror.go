package application

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"call-companion-core/internal/domain"
	"call-companion-core/internal/ports"

	"github.com/rs/zerolog"
)

// Export results reported to metrics
const (
	ExportResultSkipped = "skipped"
	ExportResultSuccess = "success"
	ExportResultFailure = "failure"
)

// DefaultColumns is the column set used when a binding has no field mapping
var DefaultColumns = []domain.ColumnMapping{
	{Field: domain.FieldName, Label: "Name"},
	{Field: domain.FieldCompany, Label: "Company"},
	{Field: domain.FieldPhone, Label: "Phone"},
	{Field: domain.FieldStatus, Label: "Status"},
	{Field: domain.FieldRemark, Label: "Remark"},
	{Field: domain.FieldNextCallDate, Label: "Next Call Date"},
	{Field: domain.FieldNextCallTime, Label: "Next Call Time"},
	{Field: domain.FieldLastCallDate, Label: "Last Call Date"},
}

// RecordMirror exports a collection's records into its bound spreadsheet.
// Each export clears the destination tab and rewrites it in full.
type RecordMirror struct {
	store    ports.CustomerRecordStore
	bindings ports.SheetBindingRepository
	sheets   ports.SpreadsheetClient
	metrics  ports.MetricsRecorder
	logger   zerolog.Logger
}

// NewRecordMirror creates a new record mirror
func NewRecordMirror(
	store ports.CustomerRecordStore,
	bindings ports.SheetBindingRepository,
	sheets ports.SpreadsheetClient,
	metrics ports.MetricsRecorder,
	logger zerolog.Logger,
) *RecordMirror {
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	return &RecordMirror{
		store:    store,
		bindings: bindings,
		sheets:   sheets,
		metrics:  metrics,
		logger:   logger.With().Str("component", "record_mirror").Logger(),
	}
}

// Export mirrors one collection. It does nothing when mirroring is disabled or unconfigured.
func (m *RecordMirror) Export(ctx context.Context, collectionID string) error {
	binding, err := m.bindings.GetByCollectionID(ctx, collectionID)
	if err != nil {
		return fmt.Errorf("failed to load sheet binding: %w", err)
	}
	if !binding.Mirrors() {
		m.metrics.ExportFinished(collectionID, ExportResultSkipped)
		return nil
	}

	err = m.export(ctx, binding)

	exportErr := ""
	if err != nil {
		exportErr = err.Error()
		m.metrics.ExportFinished(collectionID, ExportResultFailure)
		m.logger.Error().
			Err(err).
			Str("collection_id", collectionID).
			Str("spreadsheet", binding.SpreadsheetRef).
			Msg("Sheet export failed")
	} else {
		m.metrics.ExportFinished(collectionID, ExportResultSuccess)
	}
	if recErr := m.bindings.RecordExport(ctx, collectionID, exportErr); recErr != nil {
		m.logger.Warn().Err(recErr).Str("collection_id", collectionID).Msg("Failed to record export outcome")
	}

	return err
}

func (m *RecordMirror) export(ctx context.Context, binding *domain.SheetBinding) error {
	records, err := m.store.FindByCollectionOrdered(ctx, binding.CollectionID)
	if err != nil {
		return fmt.Errorf("failed to load records: %w", err)
	}

	// Resolve the destination tab
	meta, err := m.sheets.GetSheetMetadata(ctx, binding.SpreadsheetRef)
	if err != nil {
		return domain.NewExternalAPIError("sheets", "get metadata", err)
	}
	tab, err := resolveTab(binding.TabName, meta)
	if err != nil {
		return err
	}

	rows := BuildSheetRows(binding.FieldMapping, records)
	target := quoteTab(tab)

	// Full overwrite: clear the tab, then write from A1
	if err := m.sheets.ClearRange(ctx, binding.SpreadsheetRef, target); err != nil {
		return domain.NewExternalAPIError("sheets", "clear range", err)
	}
	if err := m.sheets.WriteValues(ctx, binding.SpreadsheetRef, target+"!A1", rows); err != nil {
		return domain.NewExternalAPIError("sheets", "write values", err)
	}

	m.logger.Info().
		Str("collection_id", binding.CollectionID).
		Str("spreadsheet", binding.SpreadsheetRef).
		Str("tab", tab).
		Int("rows", len(rows)-1).
		Msg("Exported collection to sheet")
	return nil
}

// BuildSheetRows renders the header row followed by one row per record.
// Output depends only on its inputs, so unchanged data yields identical rows.
func BuildSheetRows(mapping []domain.ColumnMapping, records []*domain.CustomerRecord) [][]interface{} {
	columns := mapping
	if len(columns) == 0 {
		columns = defaultColumnsFor(records)
	}

	rows := make([][]interface{}, 0, len(records)+1)
	header := make([]interface{}, len(columns))
	for i, col := range columns {
		label := col.Label
		if label == "" {
			label = col.Field
		}
		header[i] = label
	}
	rows = append(rows, header)

	for _, record := range records {
		row := make([]interface{}, len(columns))
		for i, col := range columns {
			value, _ := record.FieldValue(col.Field)
			row[i] = value
		}
		rows = append(rows, row)
	}
	return rows
}

// defaultColumnsFor appends every external attribute key seen in records, sorted, to DefaultColumns
func defaultColumnsFor(records []*domain.CustomerRecord) []domain.ColumnMapping {
	seen := make(map[string]struct{})
	for _, record := range records {
		for key := range record.ExternalAttributes {
			seen[key] = struct{}{}
		}
	}
	keys := make([]string, 0, len(seen))
	for key := range seen {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	columns := make([]domain.ColumnMapping, 0, len(DefaultColumns)+len(keys))
	columns = append(columns, DefaultColumns...)
	for _, key := range keys {
		columns = append(columns, domain.ColumnMapping{
			Field: domain.AttributeFieldPrefix + key,
			Label: key,
		})
	}
	return columns
}

func resolveTab(configured string, meta *domain.SheetMetadata) (string, error) {
	if meta == nil || len(meta.TabTitles) == 0 {
		return "", fmt.Errorf("%w: spreadsheet has no tabs", domain.ErrInvalidTarget)
	}
	if configured == "" {
		return meta.TabTitles[0], nil
	}
	for _, title := range meta.TabTitles {
		if title == configured {
			return title, nil
		}
	}
	return "", fmt.Errorf("%w: tab %q not found in spreadsheet", domain.ErrInvalidTarget, configured)
}

func quoteTab(tab string) string {
	return "'" + strings.ReplaceAll(tab, "'", "''") + "'"
}
