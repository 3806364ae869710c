package application

import (
	"context"
	"fmt"
	"strings"

	"call-companion-core/internal/domain"
	"call-companion-core/internal/ports"

	"github.com/rs/zerolog"
)

// ExportTrigger schedules a background mirror export
type ExportTrigger interface {
	Trigger(collectionID string)
}

// RecordService applies record writes and fans them out to sibling records and mirrors
type RecordService struct {
	store   ports.CustomerRecordStore
	sync    *Synchronizer
	exports ExportTrigger
	logger  zerolog.Logger
}

// NewRecordService creates a new record service
func NewRecordService(
	store ports.CustomerRecordStore,
	sync *Synchronizer,
	exports ExportTrigger,
	logger zerolog.Logger,
) *RecordService {
	return &RecordService{
		store:   store,
		sync:    sync,
		exports: exports,
		logger:  logger.With().Str("component", "record_service").Logger(),
	}
}

// UpdateRecord writes fields on one record of businessID. Shared lead fields are then
// propagated to sibling records, and every affected collection is scheduled for export.
// Propagation and export failures are logged and never undo the write.
func (s *RecordService) UpdateRecord(ctx context.Context, businessID, recordID string, fields map[string]string) (*domain.CustomerRecord, error) {
	if err := validateUpdateFields(fields); err != nil {
		return nil, err
	}

	current, err := s.store.FindByID(ctx, recordID)
	if err != nil {
		return nil, fmt.Errorf("failed to load record: %w", err)
	}
	if current == nil || current.Deleted || (businessID != "" && current.BusinessID != businessID) {
		return nil, fmt.Errorf("record %s: %w", recordID, domain.ErrNotFound)
	}

	// Write the source record first; siblings follow
	updated, err := s.store.UpdateFields(ctx, recordID, fields)
	if err != nil {
		return nil, fmt.Errorf("failed to update record: %w", err)
	}
	if updated == nil {
		return nil, fmt.Errorf("record %s: %w", recordID, domain.ErrNotFound)
	}

	collections := []string{updated.CollectionID}
	siblings, err := s.sync.Propagate(ctx, recordID, fields)
	if err != nil {
		s.logger.Error().Err(err).Str("record_id", recordID).Msg("Failed to propagate record update")
	}
	for _, sibling := range siblings {
		collections = append(collections, sibling.CollectionID)
	}
	s.triggerExports(collections)

	s.logger.Info().
		Str("record_id", recordID).
		Str("business_id", updated.BusinessID).
		Int("fields", len(fields)).
		Int("siblings", len(siblings)).
		Msg("Record updated")
	return updated, nil
}

// IngestLead materializes an inbound lead as one record per target owner/collection, all sharing
// the lead id. Redelivered leads do not duplicate copies that already exist, and new copies start
// from the shared fields of existing siblings.
func (s *RecordService) IngestLead(ctx context.Context, input domain.LeadInput) ([]*domain.CustomerRecord, error) {
	if input.BusinessID == "" || input.ExternalLeadID == "" {
		return nil, fmt.Errorf("%w: business id and lead id are required", domain.ErrInvalidInput)
	}
	if len(input.Targets) == 0 {
		return nil, fmt.Errorf("%w: lead has no target owners", domain.ErrInvalidInput)
	}

	// Find copies from earlier deliveries
	existing, err := s.store.FindByBusinessAndLeadID(ctx, input.BusinessID, input.ExternalLeadID)
	if err != nil {
		return nil, fmt.Errorf("failed to load existing lead records: %w", err)
	}

	present := make(map[domain.LeadTarget]struct{}, len(existing))
	var template *domain.CustomerRecord
	for _, record := range existing {
		present[domain.LeadTarget{OwnerUserID: record.OwnerUserID, CollectionID: record.CollectionID}] = struct{}{}
		if template == nil && !record.Deleted {
			template = record
		}
	}

	var created []*domain.CustomerRecord
	for _, target := range input.Targets {
		if target.OwnerUserID == "" || target.CollectionID == "" {
			return created, fmt.Errorf("%w: lead target needs owner and collection", domain.ErrInvalidInput)
		}
		if _, ok := present[target]; ok {
			continue
		}
		present[target] = struct{}{}

		record := &domain.CustomerRecord{
			BusinessID:         input.BusinessID,
			OwnerUserID:        target.OwnerUserID,
			CollectionID:       target.CollectionID,
			Name:               input.Name,
			Company:            input.Company,
			Phone:              input.Phone,
			ExternalLeadID:     input.ExternalLeadID,
			ExternalAttributes: copyAttributes(input.Attributes),
		}
		// Start converged with the rest of the group
		if template != nil {
			record.Status = template.Status
			record.Remark = template.Remark
			record.NextCallDate = template.NextCallDate
			record.NextCallTime = template.NextCallTime
			record.LastCallDate = template.LastCallDate
		}

		if err := s.store.Create(ctx, record); err != nil {
			return created, fmt.Errorf("failed to create lead record: %w", err)
		}
		created = append(created, record)
	}

	// Mirror every collection that gained a record
	collections := make([]string, 0, len(created))
	for _, record := range created {
		collections = append(collections, record.CollectionID)
	}
	s.triggerExports(collections)

	s.logger.Info().
		Str("business_id", input.BusinessID).
		Str("external_lead_id", input.ExternalLeadID).
		Int("created", len(created)).
		Int("existing", len(existing)).
		Msg("Lead ingested")
	return created, nil
}

func (s *RecordService) triggerExports(collections []string) {
	if s.exports == nil {
		return
	}
	seen := make(map[string]struct{}, len(collections))
	for _, id := range collections {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		s.exports.Trigger(id)
	}
}

func validateUpdateFields(fields map[string]string) error {
	if len(fields) == 0 {
		return fmt.Errorf("%w: no fields to update", domain.ErrInvalidInput)
	}
	for key := range fields {
		if !domain.IsKnownField(key) && !domain.IsAttributeField(key) {
			return fmt.Errorf("%w: unknown field %q", domain.ErrInvalidInput, key)
		}
	}
	if name, ok := fields[domain.FieldName]; ok && strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name cannot be empty", domain.ErrInvalidInput)
	}
	return nil
}

func copyAttributes(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
