package application

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"call-companion-core/internal/domain"
	"call-companion-core/internal/ports"

	"github.com/rs/zerolog"
)

var (
	spreadsheetURLPattern = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9_-]+)`)
	spreadsheetIDPattern  = regexp.MustCompile(`^[a-zA-Z0-9_-]{10,}$`)
)

// ParseSpreadsheetRef extracts the spreadsheet id from a bare id or a spreadsheet URL
func ParseSpreadsheetRef(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("%w: spreadsheet reference is empty", domain.ErrInvalidTarget)
	}
	if m := spreadsheetURLPattern.FindStringSubmatch(ref); m != nil {
		return m[1], nil
	}
	if spreadsheetIDPattern.MatchString(ref) {
		return ref, nil
	}
	return "", fmt.Errorf("%w: %q is not a spreadsheet id or URL", domain.ErrInvalidTarget, ref)
}

// ConfigureBindingInput represents input for configuring a collection's sheet binding
type ConfigureBindingInput struct {
	BusinessID     string
	CollectionID   string
	SpreadsheetRef string
	TabName        string
	FieldMapping   []domain.ColumnMapping
	Enabled        bool
}

// BindingService manages sheet bindings
type BindingService struct {
	bindings ports.SheetBindingRepository
	exporter Exporter
	exports  ExportTrigger
	logger   zerolog.Logger
}

// NewBindingService creates a new binding service
func NewBindingService(
	bindings ports.SheetBindingRepository,
	exporter Exporter,
	exports ExportTrigger,
	logger zerolog.Logger,
) *BindingService {
	return &BindingService{
		bindings: bindings,
		exporter: exporter,
		exports:  exports,
		logger:   logger.With().Str("component", "binding_service").Logger(),
	}
}

// Configure creates or replaces the binding of a collection. Enabling mirroring schedules an initial export.
func (s *BindingService) Configure(ctx context.Context, input ConfigureBindingInput) (*domain.SheetBinding, error) {
	if input.CollectionID == "" {
		return nil, fmt.Errorf("%w: collection id is required", domain.ErrInvalidInput)
	}

	ref := ""
	if input.Enabled || strings.TrimSpace(input.SpreadsheetRef) != "" {
		parsed, err := ParseSpreadsheetRef(input.SpreadsheetRef)
		if err != nil {
			return nil, err
		}
		ref = parsed
	}

	mapping, err := normalizeMapping(input.FieldMapping)
	if err != nil {
		return nil, err
	}

	existing, err := s.bindings.GetByCollectionID(ctx, input.CollectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load sheet binding: %w", err)
	}
	if existing != nil && existing.BusinessID != "" && input.BusinessID != "" && existing.BusinessID != input.BusinessID {
		return nil, fmt.Errorf("collection %s: %w", input.CollectionID, domain.ErrNotFound)
	}

	binding := &domain.SheetBinding{
		CollectionID:   input.CollectionID,
		BusinessID:     input.BusinessID,
		SpreadsheetRef: ref,
		TabName:        strings.TrimSpace(input.TabName),
		FieldMapping:   mapping,
		Enabled:        input.Enabled,
	}
	if existing != nil {
		binding.ID = existing.ID
		binding.CreatedAt = existing.CreatedAt
		binding.LastExportAt = existing.LastExportAt
		binding.LastError = existing.LastError
	}

	if err := s.bindings.Save(ctx, binding); err != nil {
		return nil, fmt.Errorf("failed to save sheet binding: %w", err)
	}

	s.logger.Info().
		Str("collection_id", binding.CollectionID).
		Str("spreadsheet", binding.SpreadsheetRef).
		Bool("enabled", binding.Enabled).
		Int("columns", len(binding.FieldMapping)).
		Msg("Sheet binding configured")

	if binding.Mirrors() && s.exports != nil {
		s.exports.Trigger(binding.CollectionID)
	}
	return binding, nil
}

// Get returns the binding of a collection owned by businessID
func (s *BindingService) Get(ctx context.Context, businessID, collectionID string) (*domain.SheetBinding, error) {
	binding, err := s.bindings.GetByCollectionID(ctx, collectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load sheet binding: %w", err)
	}
	if binding == nil || (businessID != "" && binding.BusinessID != "" && binding.BusinessID != businessID) {
		return nil, fmt.Errorf("sheet binding for %s: %w", collectionID, domain.ErrNotFound)
	}
	return binding, nil
}

// ExportNow runs one export synchronously and returns its outcome
func (s *BindingService) ExportNow(ctx context.Context, businessID, collectionID string) error {
	if _, err := s.Get(ctx, businessID, collectionID); err != nil {
		return err
	}
	return s.exporter.Export(ctx, collectionID)
}

func normalizeMapping(mapping []domain.ColumnMapping) ([]domain.ColumnMapping, error) {
	if len(mapping) == 0 {
		return nil, nil
	}
	seen := make(map[string]struct{}, len(mapping))
	out := make([]domain.ColumnMapping, 0, len(mapping))
	for _, col := range mapping {
		field := strings.TrimSpace(col.Field)
		if field == "" {
			return nil, fmt.Errorf("%w: mapping field is empty", domain.ErrInvalidInput)
		}
		if _, dup := seen[field]; dup {
			return nil, fmt.Errorf("%w: field %q mapped twice", domain.ErrInvalidInput, field)
		}
		seen[field] = struct{}{}

		label := strings.TrimSpace(col.Label)
		if label == "" {
			label = field
		}
		out = append(out, domain.ColumnMapping{Field: field, Label: label})
	}
	return out, nil
}
